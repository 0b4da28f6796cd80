package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"dapurpos/backend/internal/domain"
	"dapurpos/backend/internal/store"
)

func testOrder(branchID string, saleDate string) domain.Order {
	return domain.Order{
		BranchID: branchID,
		SaleDate: saleDate,
		Items:    []domain.OrderItem{{Name: "Nasi Campur", UnitPrice: 100, Qty: 1}},
		SubTotal: 100,
		Total:    100,
		Payments: []domain.Payment{{Type: domain.PaymentTypeCash, Amount: 100}},
		Status:   domain.OrderStatusPaid,
	}
}

func TestNextSequenceIsIndependentPerKey(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := s.NextSequence(ctx, "INV-20240315")
		if err != nil {
			t.Fatalf("next sequence: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}

	got, err := s.NextSequence(ctx, "ORD-20240315")
	if err != nil {
		t.Fatalf("next sequence other key: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected independent counter starting at 1, got %d", got)
	}
}

func TestCreateShiftNumbersPerBranchAndDate(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	first, err := s.CreateShift(ctx, domain.Shift{BranchID: "b1", SaleDate: "2024-03-15"})
	if err != nil {
		t.Fatalf("create shift: %v", err)
	}
	if first.ShiftNumber != 1 || first.Status != domain.ShiftStatusOpen {
		t.Fatalf("unexpected first shift %+v", first)
	}

	if _, err := s.CreateShift(ctx, domain.Shift{BranchID: "b1", SaleDate: "2024-03-15"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for second open shift, got %v", err)
	}

	// A different branch opens independently.
	other, err := s.CreateShift(ctx, domain.Shift{BranchID: "b2", SaleDate: "2024-03-15"})
	if err != nil {
		t.Fatalf("create shift other branch: %v", err)
	}
	if other.ShiftNumber != 1 {
		t.Fatalf("expected branch-scoped numbering, got %d", other.ShiftNumber)
	}

	end := first.StartTime.Add(time.Hour)
	if _, err := s.CloseOpenShift(ctx, "b1", domain.Denominations{}, 0, domain.SalesSummary{}, end); err != nil {
		t.Fatalf("close shift: %v", err)
	}
	second, err := s.CreateShift(ctx, domain.Shift{BranchID: "b1", SaleDate: "2024-03-15"})
	if err != nil {
		t.Fatalf("reopen shift: %v", err)
	}
	if second.ShiftNumber != 2 {
		t.Fatalf("expected shift number 2 after close, got %d", second.ShiftNumber)
	}
}

func TestCloseOpenShiftRequiresOpenShift(t *testing.T) {
	s := NewSeeded()

	_, err := s.CloseOpenShift(context.Background(), "b1", domain.Denominations{}, 0, domain.SalesSummary{}, time.Now().UTC())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListOrdersInWindowFiltersByStatusAndTime(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	inside := testOrder("b1", "2024-03-15")
	inside.CreatedAt = base
	inside.UpdatedAt = base
	if _, err := s.CreateOrder(ctx, inside); err != nil {
		t.Fatalf("create inside order: %v", err)
	}

	unpaid := testOrder("b1", "2024-03-15")
	unpaid.Status = domain.OrderStatusUnpaid
	unpaid.CreatedAt = base
	unpaid.UpdatedAt = base
	if _, err := s.CreateOrder(ctx, unpaid); err != nil {
		t.Fatalf("create unpaid order: %v", err)
	}

	outside := testOrder("b1", "2024-03-15")
	outside.CreatedAt = base.Add(-5 * time.Hour)
	outside.UpdatedAt = outside.CreatedAt
	if _, err := s.CreateOrder(ctx, outside); err != nil {
		t.Fatalf("create outside order: %v", err)
	}

	orders, err := s.ListOrdersInWindow(ctx, "b1", base.Add(-time.Hour), base.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("list orders in window: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected only the paid in-window order, got %d", len(orders))
	}
}

func TestFinalizeDayCloseIsAtomicAndStampsOrders(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	order, err := s.CreateOrder(ctx, testOrder("b1", "2024-03-15"))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	shift, err := s.CreateShift(ctx, domain.Shift{BranchID: "b1", SaleDate: "2024-03-15"})
	if err != nil {
		t.Fatalf("create shift: %v", err)
	}

	end := shift.StartTime.Add(8 * time.Hour)
	shift.EndTime = &end
	shift.Sales = &domain.SalesSummary{TotalOrders: 1, CashSales: 100, TotalSales: 100}

	saved, err := s.FinalizeDayClose(ctx, domain.DaySales{
		BranchID: "b1",
		SaleDate: "2024-03-15",
		ShiftIDs: []string{shift.ID},
	}, []domain.Shift{*shift}, nil)
	if err != nil {
		t.Fatalf("finalize day close: %v", err)
	}

	closed, err := s.IsDateClosed(ctx, "b1", "2024-03-15")
	if err != nil || !closed {
		t.Fatalf("expected date closed, got %v %v", closed, err)
	}

	stamped, err := s.GetOrderByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get stamped order: %v", err)
	}
	if stamped.DayCloseID != saved.ID || stamped.DayCloseDate != "2024-03-15" {
		t.Fatalf("expected order stamped with day close, got %+v", stamped)
	}

	if _, err := s.GetOpenShift(ctx, "b1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected promoted shift no longer open, got %v", err)
	}

	_, err = s.FinalizeDayClose(ctx, domain.DaySales{BranchID: "b1", SaleDate: "2024-03-15"}, nil, nil)
	if !errors.Is(err, store.ErrAlreadyClosed) {
		t.Fatalf("expected already closed, got %v", err)
	}
}

func TestFinalizeDayCloseMarkerClosesDate(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	marker := &domain.DayClose{BranchID: "b1", SaleDate: "2024-03-15", StartTime: time.Now().UTC(), EndTime: time.Now().UTC()}
	if _, err := s.FinalizeDayClose(ctx, domain.DaySales{BranchID: "b1", SaleDate: "2024-03-15"}, nil, marker); err != nil {
		t.Fatalf("finalize with marker: %v", err)
	}

	closed, err := s.IsDateClosed(ctx, "b1", "2024-03-15")
	if err != nil || !closed {
		t.Fatalf("expected marker to close the date, got %v %v", closed, err)
	}
}

func TestDeleteDaySalesReopensDate(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	order, err := s.CreateOrder(ctx, testOrder("b1", "2024-03-15"))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	shift, err := s.CreateShift(ctx, domain.Shift{BranchID: "b1", SaleDate: "2024-03-15"})
	if err != nil {
		t.Fatalf("create shift: %v", err)
	}
	end := shift.StartTime.Add(time.Hour)
	shift.EndTime = &end
	shift.Sales = &domain.SalesSummary{}

	if _, err := s.FinalizeDayClose(ctx, domain.DaySales{BranchID: "b1", SaleDate: "2024-03-15"}, []domain.Shift{*shift}, nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := s.DeleteDaySales(ctx, "b1", "2024-03-15"); err != nil {
		t.Fatalf("delete day sales: %v", err)
	}

	closed, err := s.IsDateClosed(ctx, "b1", "2024-03-15")
	if err != nil || closed {
		t.Fatalf("expected date reopened, got %v %v", closed, err)
	}

	shifts, err := s.ListShifts(ctx, "b1", "2024-03-15", 0)
	if err != nil || len(shifts) != 1 {
		t.Fatalf("list shifts: %v (%d)", err, len(shifts))
	}
	if shifts[0].Status != domain.ShiftStatusClosed {
		t.Fatalf("expected shift demoted to closed, got %s", shifts[0].Status)
	}

	unstamped, err := s.GetOrderByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if unstamped.DayCloseID != "" || unstamped.DayCloseDate != "" {
		t.Fatalf("expected order day-close stamp cleared, got %+v", unstamped)
	}

	if err := s.DeleteDaySales(ctx, "b1", "2024-03-15"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestOrderClonesAreIsolated(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	created, err := s.CreateOrder(ctx, testOrder("b1", "2024-03-15"))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	created.Items[0].Name = "mutated"
	created.Payments[0].Amount = 9999

	stored, err := s.GetOrderByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Items[0].Name != "Nasi Campur" || stored.Payments[0].Amount != 100 {
		t.Fatalf("stored order mutated through returned copy: %+v", stored)
	}
}
