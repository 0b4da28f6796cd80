package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"dapurpos/backend/internal/domain"
	"dapurpos/backend/internal/store"
)

// CreateOrder validates and persists a new order. The intended business date
// is routed past already-closed dates: an order arriving after its date was
// closed is moved wholesale to the next calendar day with an audit note.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderCreateRequest) (*domain.OrderResponse, error) {
	branchID := s.branchOrDefault(req.BranchID)

	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order requires at least one item", store.ErrValidation)
	}
	subTotal := int64(0)
	for _, item := range req.Items {
		if strings.TrimSpace(item.Name) == "" || item.Qty < 1 || item.UnitPrice < 0 {
			return nil, fmt.Errorf("%w: bad order item", store.ErrValidation)
		}
		subTotal += item.UnitPrice * int64(item.Qty)
	}
	if req.VAT < 0 || req.Discount < 0 || req.Discount > subTotal+req.VAT {
		return nil, fmt.Errorf("%w: bad vat/discount", store.ErrValidation)
	}
	total := subTotal + req.VAT - req.Discount

	salesType := req.SalesType
	if salesType == "" {
		salesType = domain.SalesTypeRestaurant
	}
	switch salesType {
	case domain.SalesTypeRestaurant, domain.SalesTypeOnline, domain.SalesTypeMembership:
	default:
		return nil, fmt.Errorf("%w: unknown sales type %q", store.ErrValidation, salesType)
	}

	paid := int64(0)
	payments := make([]domain.Payment, 0, len(req.Payments))
	for _, payment := range req.Payments {
		if err := validPayment(payment); err != nil {
			return nil, err
		}
		paid += payment.Amount
		payments = append(payments, payment)
	}
	if paid > total {
		return nil, fmt.Errorf("%w: payments exceed order total", store.ErrValidation)
	}

	saleDate := req.Date
	if saleDate == "" && req.StartDate != "" {
		saleDate = req.StartDate
	}
	if saleDate == "" {
		saleDate = s.today()
	}
	if _, err := s.parseDate(saleDate); err != nil {
		return nil, err
	}

	var startDate, endDate *time.Time
	if req.StartDate != "" {
		start, err := s.parseDate(req.StartDate)
		if err != nil {
			return nil, err
		}
		startDate = &start
	}
	if req.EndDate != "" {
		end, err := s.parseDate(req.EndDate)
		if err != nil {
			return nil, err
		}
		if startDate != nil && end.Before(*startDate) {
			return nil, fmt.Errorf("%w: end date precedes start date", store.ErrValidation)
		}
		endDate = &end
	}

	now := s.now().UTC()
	note := req.Note

	saleDate, startDate, endDate, now, note, err := s.routePastClosedDate(ctx, branchID, saleDate, startDate, endDate, now, note)
	if err != nil {
		return nil, err
	}

	invoiceNo, orderNo, err := s.nextOrderNumbers(ctx, saleDate)
	if err != nil {
		return nil, err
	}

	status := domain.OrderStatusUnpaid
	if total > 0 && paid == total {
		status = domain.OrderStatusPaid
	}

	order := domain.Order{
		InvoiceNo:      invoiceNo,
		OrderNo:        orderNo,
		BranchID:       branchID,
		SaleDate:       saleDate,
		StartDate:      startDate,
		EndDate:        endDate,
		Items:          req.Items,
		SubTotal:       subTotal,
		VAT:            req.VAT,
		Discount:       req.Discount,
		Total:          total,
		PayableAmount:  total,
		Payments:       payments,
		CumulativePaid: paid,
		Status:         status,
		SalesType:      salesType,
		OrderType:      req.OrderType,
		Note:           note,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	order.PaymentHistory = append(order.PaymentHistory, historyEntry(order, domain.HistoryActionCreated, paid, now, "order created"))

	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	return s.orderResponse(*created), nil
}

// routePastClosedDate rewrites an order's business date to the next calendar
// day when the intended date is already closed. A closed-date lookup failure
// is logged and the order proceeds on its original date.
func (s *Service) routePastClosedDate(ctx context.Context, branchID string, saleDate string, startDate, endDate *time.Time, createdAt time.Time, note string) (string, *time.Time, *time.Time, time.Time, string, error) {
	closed, err := s.repo.IsDateClosed(ctx, branchID, saleDate)
	if err != nil {
		log.Printf("[service] WARN: closed-date lookup failed branch=%s date=%s: %v", branchID, saleDate, err)
		return saleDate, startDate, endDate, createdAt, note, nil
	}
	if !closed {
		return saleDate, startDate, endDate, createdAt, note, nil
	}

	day, err := s.parseDate(saleDate)
	if err != nil {
		return "", nil, nil, time.Time{}, "", err
	}
	nextDay := day.AddDate(0, 0, 1)
	nextDate := nextDay.Format(dateLayout)

	if startDate != nil {
		shifted := startDate.AddDate(0, 0, 1)
		startDate = &shifted
	}
	if endDate != nil {
		shifted := endDate.AddDate(0, 0, 1)
		endDate = &shifted
	}
	if note != "" {
		note += "; "
	}
	note += fmt.Sprintf("moved to %s: %s was already closed", nextDate, saleDate)
	return nextDate, startDate, endDate, nextDay.UTC(), note, nil
}

// nextOrderNumbers draws invoice and order numbers from per-day atomic
// counters in the repository, so numbering survives restarts and holds up
// across concurrent instances.
func (s *Service) nextOrderNumbers(ctx context.Context, saleDate string) (string, string, error) {
	day := strings.ReplaceAll(saleDate, "-", "")
	invSeq, err := s.repo.NextSequence(ctx, "INV-"+day)
	if err != nil {
		return "", "", fmt.Errorf("invoice sequence: %w", err)
	}
	ordSeq, err := s.repo.NextSequence(ctx, "ORD-"+day)
	if err != nil {
		return "", "", fmt.Errorf("order sequence: %w", err)
	}
	return fmt.Sprintf("INV-%s-%04d", day, invSeq), fmt.Sprintf("ORD-%s-%04d", day, ordSeq), nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.OrderResponse, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.orderResponse(*order), nil
}

func (s *Service) ListOrders(ctx context.Context, branchID string, saleDate string, limit int) ([]domain.Order, error) {
	if saleDate != "" {
		if _, err := s.parseDate(saleDate); err != nil {
			return nil, err
		}
	}
	if limit < 1 {
		limit = 200
	}
	return s.repo.ListOrders(ctx, s.branchOrDefault(branchID), saleDate, limit)
}

// UpdateOrder applies a partial edit and appends the matching payment-history
// entry. Orders already swept into a day close are immutable.
func (s *Service) UpdateOrder(ctx context.Context, id string, req domain.OrderUpdateRequest) (*domain.OrderResponse, error) {
	existing, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.DayCloseID != "" {
		return nil, fmt.Errorf("%w: order is part of closed day %s", store.ErrConflict, existing.DayCloseDate)
	}
	if existing.Canceled {
		return nil, fmt.Errorf("%w: order is canceled", store.ErrConflict)
	}

	updated := *existing
	if req.Items != nil {
		if len(*req.Items) == 0 {
			return nil, fmt.Errorf("%w: order requires at least one item", store.ErrValidation)
		}
		subTotal := int64(0)
		for _, item := range *req.Items {
			if strings.TrimSpace(item.Name) == "" || item.Qty < 1 || item.UnitPrice < 0 {
				return nil, fmt.Errorf("%w: bad order item", store.ErrValidation)
			}
			subTotal += item.UnitPrice * int64(item.Qty)
		}
		updated.Items = *req.Items
		updated.SubTotal = subTotal
	}
	if req.VAT != nil {
		if *req.VAT < 0 {
			return nil, fmt.Errorf("%w: negative vat", store.ErrValidation)
		}
		updated.VAT = *req.VAT
	}
	if req.Discount != nil {
		if *req.Discount < 0 {
			return nil, fmt.Errorf("%w: negative discount", store.ErrValidation)
		}
		updated.Discount = *req.Discount
	}
	updated.Total = updated.SubTotal + updated.VAT - updated.Discount
	if updated.Total < 0 {
		return nil, fmt.Errorf("%w: discount exceeds order value", store.ErrValidation)
	}
	updated.PayableAmount = updated.Total

	if req.Payments != nil {
		paid := int64(0)
		for _, payment := range *req.Payments {
			if err := validPayment(payment); err != nil {
				return nil, err
			}
			paid += payment.Amount
		}
		if paid > updated.Total {
			return nil, fmt.Errorf("%w: payments exceed order total", store.ErrValidation)
		}
		updated.Payments = *req.Payments
		updated.CumulativePaid = paid
	} else if updated.CumulativePaid > updated.Total {
		// Shrinking the order below what was already paid would leave a
		// negative remaining balance.
		return nil, fmt.Errorf("%w: existing payments exceed new order total", store.ErrValidation)
	}
	if req.Note != nil {
		updated.Note = *req.Note
	}

	if updated.Total > 0 && updated.CumulativePaid == updated.Total {
		updated.Status = domain.OrderStatusPaid
	} else {
		updated.Status = domain.OrderStatusUnpaid
	}

	now := s.now().UTC()
	action := classifyAction(*existing, updated)
	updated.PaymentHistory = append(updated.PaymentHistory, historyEntry(updated, action, updated.CumulativePaid-existing.CumulativePaid, now, ""))
	updated.UpdatedAt = now

	saved, err := s.repo.UpdateOrder(ctx, updated)
	if err != nil {
		return nil, err
	}
	return s.orderResponse(*saved), nil
}

// SettleOrder records additional payments against an unpaid order, marking it
// paid once the cumulative total covers the order in full.
func (s *Service) SettleOrder(ctx context.Context, id string, req domain.OrderSettleRequest) (*domain.OrderResponse, error) {
	if len(req.Payments) == 0 {
		return nil, fmt.Errorf("%w: settle requires payments", store.ErrValidation)
	}

	existing, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.DayCloseID != "" {
		return nil, fmt.Errorf("%w: order is part of closed day %s", store.ErrConflict, existing.DayCloseDate)
	}
	if existing.Status == domain.OrderStatusPaid {
		return nil, fmt.Errorf("%w: order is already settled", store.ErrConflict)
	}
	if existing.Canceled {
		return nil, fmt.Errorf("%w: order is canceled", store.ErrConflict)
	}

	updated := *existing
	incoming := int64(0)
	for _, payment := range req.Payments {
		if err := validPayment(payment); err != nil {
			return nil, err
		}
		incoming += payment.Amount
		updated.Payments = append(updated.Payments, payment)
	}
	updated.CumulativePaid += incoming
	if updated.CumulativePaid > updated.Total {
		return nil, fmt.Errorf("%w: payments exceed order total", store.ErrValidation)
	}
	if updated.CumulativePaid == updated.Total && updated.Total > 0 {
		updated.Status = domain.OrderStatusPaid
	}

	now := s.now().UTC()
	updated.PaymentHistory = append(updated.PaymentHistory, historyEntry(updated, domain.HistoryActionPaymentReceived, incoming, now, ""))
	updated.UpdatedAt = now

	saved, err := s.repo.UpdateOrder(ctx, updated)
	if err != nil {
		return nil, err
	}
	return s.orderResponse(*saved), nil
}

// ChangePaymentModeSimple rewrites every payment of a fully paid, same-day
// order to a single payment type, preserving amounts. Every change that
// actually moves the distinct-type set appends to the change-sequence log,
// including a change back to an earlier set; a change to the set the order
// already carries appends nothing.
func (s *Service) ChangePaymentModeSimple(ctx context.Context, id string, req domain.PaymentModeSimpleRequest) (*domain.OrderResponse, error) {
	newType := req.PaymentType
	switch newType {
	case domain.PaymentTypeCash, domain.PaymentTypeCard, domain.PaymentTypeGateway, domain.PaymentTypeOnlineTransfer, domain.PaymentTypePaymentLink:
	default:
		return nil, fmt.Errorf("%w: unknown payment type %q", store.ErrValidation, newType)
	}

	existing, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != domain.OrderStatusPaid {
		return nil, fmt.Errorf("%w: payment mode change requires a paid order", store.ErrConflict)
	}
	if existing.SaleDate != s.today() {
		return nil, fmt.Errorf("%w: payment mode change is same-day only", store.ErrConflict)
	}
	if existing.DayCloseID != "" {
		return nil, fmt.Errorf("%w: order is part of closed day %s", store.ErrConflict, existing.DayCloseDate)
	}
	if len(existing.Payments) == 0 {
		return nil, fmt.Errorf("%w: order has no payments", store.ErrConflict)
	}

	oldTypes := distinctTypes(existing.Payments)

	updated := *existing
	payments := make([]domain.Payment, len(existing.Payments))
	copy(payments, existing.Payments)
	for i := range payments {
		payments[i].Type = newType
	}
	updated.Payments = payments
	newTypes := distinctTypes(payments)

	now := s.now().UTC()
	updated.PaymentHistory = append(updated.PaymentHistory, historyEntry(updated, domain.HistoryActionModeChanged, 0, now,
		fmt.Sprintf("payment mode %s -> %s", strings.Join(oldTypes, "+"), strings.Join(newTypes, "+"))))

	if !sameTypeSet(oldTypes, newTypes) {
		updated.ChangeSequence = append(updated.ChangeSequence, domain.PaymentModeChange{
			From: oldTypes,
			To:   newTypes,
			At:   now,
		})
	}
	updated.UpdatedAt = now

	saved, err := s.repo.UpdateOrder(ctx, updated)
	if err != nil {
		return nil, err
	}
	return s.orderResponse(*saved), nil
}

func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	existing, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.DayCloseID != "" {
		return fmt.Errorf("%w: order is part of closed day %s", store.ErrConflict, existing.DayCloseDate)
	}
	return s.repo.SoftDeleteOrder(ctx, id)
}

func (s *Service) orderResponse(order domain.Order) *domain.OrderResponse {
	resp := &domain.OrderResponse{Order: order}
	if order.OrderType == domain.OrderTypeMembershipMeal {
		resp.MealUsage = mealUsage(order, s.now().In(s.loc))
	}
	return resp
}

func validPayment(payment domain.Payment) error {
	switch payment.Type {
	case domain.PaymentTypeCash, domain.PaymentTypeCard, domain.PaymentTypeGateway, domain.PaymentTypeOnlineTransfer, domain.PaymentTypePaymentLink:
	default:
		return fmt.Errorf("%w: unknown payment type %q", store.ErrValidation, payment.Type)
	}
	if payment.Amount < 1 {
		return fmt.Errorf("%w: payment amount must be positive", store.ErrValidation)
	}
	return nil
}
