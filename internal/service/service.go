package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"dapurpos/backend/internal/cache"
	"dapurpos/backend/internal/domain"
	"dapurpos/backend/internal/store"
	"dapurpos/backend/internal/xid"
)

const dateLayout = "2006-01-02"

// orderScanLimit caps the number of orders pulled into a single aggregation
// window. Reconciliation scans a single business day, so the cap is generous.
const orderScanLimit = 5000

const reportCacheTTL = 12 * time.Hour

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo            store.Repository
	reports         cache.ReportCache
	defaultBranchID string
	loc             *time.Location

	// now is swappable in tests; everything date-sensitive goes through it.
	now func() time.Time
}

func New(repo store.Repository, reports cache.ReportCache, defaultBranchID string, loc *time.Location) *Service {
	if reports == nil {
		reports = cache.Noop{}
	}
	if defaultBranchID == "" {
		defaultBranchID = "main-branch"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:            repo,
		reports:         reports,
		defaultBranchID: defaultBranchID,
		loc:             loc,
		now:             time.Now,
	}
}

func (s *Service) branchOrDefault(branchID string) string {
	if branchID == "" {
		return s.defaultBranchID
	}
	return branchID
}

func (s *Service) today() string {
	return s.now().In(s.loc).Format(dateLayout)
}

func (s *Service) parseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, value, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", store.ErrValidation, value)
	}
	return t, nil
}

// dayWindow returns the half-open [midnight, next midnight) window of a
// business date in the service's timezone.
func (s *Service) dayWindow(saleDate string) (time.Time, time.Time, error) {
	start, err := s.parseDate(saleDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.AddDate(0, 0, 1), nil
}

// summarizeWindow aggregates paid orders over [from, to). Scan failures are
// returned to the caller; a zero summary is never persisted in their place.
func (s *Service) summarizeWindow(ctx context.Context, branchID string, from time.Time, to time.Time) (domain.SalesSummary, error) {
	orders, err := s.repo.ListOrdersInWindow(ctx, branchID, from, to, orderScanLimit)
	if err != nil {
		return domain.SalesSummary{}, fmt.Errorf("aggregate sales window: %w", err)
	}
	return summarizeSales(orders), nil
}

func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (*domain.Shift, error) {
	branchID := s.branchOrDefault(req.BranchID)

	saleDate := req.LoginDate
	if saleDate == "" {
		saleDate = s.today()
	} else if _, err := s.parseDate(saleDate); err != nil {
		return nil, err
	}

	closed, err := s.repo.IsDateClosed(ctx, branchID, saleDate)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, fmt.Errorf("%w: %s is already closed for branch %s", store.ErrConflict, saleDate, branchID)
	}

	startTime := s.now().UTC()
	if req.LoginTime != "" {
		startTime, err = parseTimestamp(req.LoginTime)
		if err != nil {
			return nil, err
		}
	}
	var plannedEnd *time.Time
	if req.PlannedEndTime != "" {
		planned, err := parseTimestamp(req.PlannedEndTime)
		if err != nil {
			return nil, err
		}
		if !planned.After(startTime) {
			return nil, fmt.Errorf("%w: planned end must be after login time", store.ErrValidation)
		}
		plannedEnd = &planned
	}

	shift := domain.Shift{
		BranchID:       branchID,
		SaleDate:       saleDate,
		StartTime:      startTime,
		PlannedEndTime: plannedEnd,
		Note:           req.Note,
	}
	return s.repo.CreateShift(ctx, shift)
}

func (s *Service) CloseShift(ctx context.Context, req domain.ShiftCloseRequest) (*domain.ShiftResponse, error) {
	branchID := s.branchOrDefault(req.BranchID)
	if !req.Denominations.Valid() {
		return nil, fmt.Errorf("%w: negative denomination count", store.ErrValidation)
	}

	open, err := s.repo.GetOpenShift(ctx, branchID)
	if err != nil {
		return nil, err
	}

	endTime := s.now().UTC()
	if req.LogoutTime != "" {
		endTime, err = parseTimestamp(req.LogoutTime)
		if err != nil {
			return nil, err
		}
	}
	if !endTime.After(open.StartTime) {
		return nil, fmt.Errorf("%w: logout time precedes shift start", store.ErrValidation)
	}

	sales, err := s.summarizeWindow(ctx, branchID, open.StartTime, endTime)
	if err != nil {
		return nil, err
	}

	totalCash := req.Denominations.Total()
	closed, err := s.repo.CloseOpenShift(ctx, branchID, req.Denominations, totalCash, sales, endTime)
	if err != nil {
		return nil, err
	}

	warning := ""
	if closed.PlannedEndTime != nil && endTime.Before(*closed.PlannedEndTime) {
		warning = fmt.Sprintf("shift closed %s before planned end", closed.PlannedEndTime.Sub(endTime).Round(time.Minute))
	}
	return &domain.ShiftResponse{Shift: *closed, Warning: warning}, nil
}

func (s *Service) ActiveShift(ctx context.Context, branchID string) (*domain.Shift, error) {
	return s.repo.GetOpenShift(ctx, s.branchOrDefault(branchID))
}

func (s *Service) ListShifts(ctx context.Context, branchID string, saleDate string, limit int) ([]domain.Shift, error) {
	if saleDate != "" {
		if _, err := s.parseDate(saleDate); err != nil {
			return nil, err
		}
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListShifts(ctx, s.branchOrDefault(branchID), saleDate, limit)
}

// DayClose closes the current business date for a branch: every shift of the
// date is promoted to day-close status, the whole-day and shift-wise sales
// are snapshotted side by side, and counted cash is reconciled against
// expected cash. The repository applies all writes in one atomic unit.
func (s *Service) DayClose(ctx context.Context, req domain.DayCloseRequest) (*domain.DayCloseResponse, error) {
	branchID := s.branchOrDefault(req.BranchID)
	saleDate := s.today()

	closed, err := s.repo.IsDateClosed(ctx, branchID, saleDate)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, store.ErrAlreadyClosed
	}

	unpaidIDs, err := s.repo.ListUnpaidOrderIDs(ctx, branchID, saleDate)
	if err != nil {
		return nil, err
	}
	if len(unpaidIDs) > 0 {
		return nil, &store.UnsettledOrdersError{OrderIDs: unpaidIDs}
	}

	dayStart, dayEnd, err := s.dayWindow(saleDate)
	if err != nil {
		return nil, err
	}
	dayWise, err := s.summarizeWindow(ctx, branchID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	shifts, err := s.repo.ListShifts(ctx, branchID, saleDate, 0)
	if err != nil {
		return nil, err
	}

	closedAt := s.now().UTC()
	var shiftWise domain.SalesSummary
	var marker *domain.DayClose
	promoted := make([]domain.Shift, 0, len(shifts))
	shiftIDs := make([]string, 0, len(shifts))

	if len(shifts) == 0 {
		marker = &domain.DayClose{
			ID:        xid.New("dc"),
			BranchID:  branchID,
			SaleDate:  saleDate,
			StartTime: dayStart,
			EndTime:   closedAt,
			Note:      req.Note,
		}
	} else {
		for _, shift := range shifts {
			if shift.Sales == nil {
				// Shift still open or closed without a snapshot: aggregate
				// its own window before promoting.
				windowEnd := closedAt
				if shift.EndTime != nil {
					windowEnd = *shift.EndTime
				}
				sales, err := s.summarizeWindow(ctx, branchID, shift.StartTime, windowEnd)
				if err != nil {
					return nil, err
				}
				shift.Sales = &sales
				if shift.EndTime == nil {
					end := closedAt
					shift.EndTime = &end
				}
			}
			shiftWise.Add(*shift.Sales)
			promoted = append(promoted, shift)
			shiftIDs = append(shiftIDs, shift.ID)
		}
	}

	var counts domain.Denominations
	if req.Denominations != nil {
		if !req.Denominations.Valid() {
			return nil, fmt.Errorf("%w: negative denomination count", store.ErrValidation)
		}
		counts = *req.Denominations
	}
	denomination := domain.DenominationReport{
		Counts:           counts,
		CountedTotalCash: counts.Total(),
		ExpectedCash:     dayWise.CashSales,
	}
	denomination.Difference = denomination.CountedTotalCash - denomination.ExpectedCash

	daySales := domain.DaySales{
		ID:             xid.New("ds"),
		BranchID:       branchID,
		SaleDate:       saleDate,
		DaySales:       dayWise,
		ShiftWiseSales: shiftWise,
		Denomination:   denomination,
		ShiftIDs:       shiftIDs,
		Note:           req.Note,
		ClosedAt:       closedAt,
	}

	saved, err := s.repo.FinalizeDayClose(ctx, daySales, promoted, marker)
	if err != nil {
		return nil, err
	}
	if err := s.reports.DeleteDaySales(ctx, branchID, saleDate); err != nil {
		log.Printf("[service] WARN: report cache invalidation failed branch=%s date=%s: %v", branchID, saleDate, err)
	}

	return &domain.DayCloseResponse{
		SaleDate:         saved.SaleDate,
		BranchID:         saved.BranchID,
		DayWiseLabel:     "Day Wise Sale",
		DayWiseSales:     saved.DaySales,
		ShiftWiseLabel:   "Shift Wise Sale",
		ShiftWiseSales:   saved.ShiftWiseSales,
		Denomination:     saved.Denomination,
		PromotedShiftIDs: saved.ShiftIDs,
		ClosedAt:         saved.ClosedAt.Format(time.RFC3339),
	}, nil
}

// DayCloseReport reads a persisted day-close snapshot by date or by id.
// Downstream reporting never re-scans orders; it reads these snapshots, so
// date lookups are fronted by the report cache.
func (s *Service) DayCloseReport(ctx context.Context, branchID string, ref string) (*domain.DaySales, error) {
	branchID = s.branchOrDefault(branchID)

	if _, err := time.ParseInLocation(dateLayout, ref, s.loc); err == nil {
		cached, ok, err := s.reports.GetDaySales(ctx, branchID, ref)
		if err != nil {
			log.Printf("[service] WARN: report cache read failed branch=%s date=%s: %v", branchID, ref, err)
		}
		if ok {
			return cached, nil
		}
		report, err := s.repo.GetDaySales(ctx, branchID, ref)
		if err != nil {
			return nil, err
		}
		if err := s.reports.SetDaySales(ctx, *report, reportCacheTTL); err != nil {
			log.Printf("[service] WARN: report cache write failed branch=%s date=%s: %v", branchID, ref, err)
		}
		return report, nil
	}
	return s.repo.GetDaySalesByID(ctx, ref)
}

func (s *Service) ListDayCloseReports(ctx context.Context, branchID string, limit int) ([]domain.DaySales, error) {
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListDaySales(ctx, s.branchOrDefault(branchID), limit)
}

func (s *Service) DeleteDayCloseReport(ctx context.Context, branchID string, saleDate string) error {
	branchID = s.branchOrDefault(branchID)
	if _, err := s.parseDate(saleDate); err != nil {
		return err
	}
	if err := s.repo.DeleteDaySales(ctx, branchID, saleDate); err != nil {
		return err
	}
	if err := s.reports.DeleteDaySales(ctx, branchID, saleDate); err != nil {
		log.Printf("[service] WARN: report cache invalidation failed branch=%s date=%s: %v", branchID, saleDate, err)
	}
	log.Printf("[service] day close report deleted branch=%s date=%s", branchID, saleDate)
	return nil
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", store.ErrValidation, value)
	}
	return t.UTC(), nil
}
