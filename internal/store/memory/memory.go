package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dapurpos/backend/internal/domain"
	"dapurpos/backend/internal/store"
	"dapurpos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	ordersByID      map[string]domain.Order
	shiftsByID      map[string]domain.Shift
	openShiftByKey  map[string]string
	dayClosesByID   map[string]domain.DayClose
	daySalesByID    map[string]domain.DaySales
	daySalesByKey   map[string]string
	counters        map[string]int64
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_MANAGER_PASSWORD and SEED_CASHIER_PASSWORD.
// If unset, hardcoded dev defaults are used with a warning. These are never
// used in production (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	managerPwd := envOr("SEED_MANAGER_PASSWORD", "manager123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_MANAGER_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_MANAGER_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"manager", managerPwd, "manager"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	return &Store{
		ordersByID:      make(map[string]domain.Order),
		shiftsByID:      make(map[string]domain.Shift),
		openShiftByKey:  make(map[string]string),
		dayClosesByID:   make(map[string]domain.DayClose),
		daySalesByID:    make(map[string]domain.DaySales),
		daySalesByKey:   make(map[string]string),
		counters:        make(map[string]int64),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) CreateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(order.BranchID) == "" || order.SaleDate == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	if _, exists := s.ordersByID[order.ID]; exists {
		return nil, store.ErrConflict
	}

	s.ordersByID[order.ID] = cloneOrder(order)
	created := cloneOrder(order)
	return &created, nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.ordersByID[id]
	if !exists || order.Deleted {
		return nil, store.ErrNotFound
	}
	result := cloneOrder(order)
	return &result, nil
}

func (s *Store) UpdateOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.ordersByID[order.ID]
	if !exists || current.Deleted {
		return nil, store.ErrNotFound
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now().UTC()
	}
	s.ordersByID[order.ID] = cloneOrder(order)
	updated := cloneOrder(order)
	return &updated, nil
}

func (s *Store) ListOrders(_ context.Context, branchID string, saleDate string, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, 64)
	for _, order := range s.ordersByID {
		if order.Deleted {
			continue
		}
		if branchID != "" && order.BranchID != branchID {
			continue
		}
		if saleDate != "" && order.SaleDate != saleDate {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	slices.SortFunc(result, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListOrdersInWindow(_ context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, 64)
	for _, order := range s.ordersByID {
		if order.Deleted || order.Canceled || order.Status != domain.OrderStatusPaid {
			continue
		}
		if branchID != "" && order.BranchID != branchID {
			continue
		}
		if !inWindow(order.CreatedAt, from, to) && !inWindow(order.UpdatedAt, from, to) {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	slices.SortFunc(result, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListUnpaidOrderIDs(_ context.Context, branchID string, saleDate string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, 8)
	for _, order := range s.ordersByID {
		if order.Deleted || order.Canceled {
			continue
		}
		if order.Status != domain.OrderStatusUnpaid {
			continue
		}
		if branchID != "" && order.BranchID != branchID {
			continue
		}
		if order.SaleDate != saleDate {
			continue
		}
		ids = append(ids, order.ID)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) SoftDeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.ordersByID[id]
	if !exists || order.Deleted {
		return store.ErrNotFound
	}
	order.Deleted = true
	order.UpdatedAt = time.Now().UTC()
	s.ordersByID[id] = order
	return nil
}

func (s *Store) NextSequence(_ context.Context, key string) (int64, error) {
	if strings.TrimSpace(key) == "" {
		return 0, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[key]++
	return s.counters[key], nil
}

func (s *Store) CreateShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	if strings.TrimSpace(shift.BranchID) == "" || shift.SaleDate == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.openShiftByKey[shift.BranchID]; exists {
		return nil, store.ErrConflict
	}
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.StartTime.IsZero() {
		shift.StartTime = time.Now().UTC()
	}
	shift.Status = domain.ShiftStatusOpen
	shift.EndTime = nil
	shift.Sales = nil

	nextNumber := 1
	for _, existing := range s.shiftsByID {
		if existing.BranchID == shift.BranchID && existing.SaleDate == shift.SaleDate && existing.ShiftNumber >= nextNumber {
			nextNumber = existing.ShiftNumber + 1
		}
	}
	shift.ShiftNumber = nextNumber

	s.shiftsByID[shift.ID] = cloneShift(shift)
	s.openShiftByKey[shift.BranchID] = shift.ID
	created := cloneShift(shift)
	return &created, nil
}

func (s *Store) GetOpenShift(_ context.Context, branchID string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shiftID, exists := s.openShiftByKey[branchID]
	if !exists {
		return nil, store.ErrNotFound
	}
	shift, exists := s.shiftsByID[shiftID]
	if !exists || shift.Status != domain.ShiftStatusOpen {
		return nil, store.ErrNotFound
	}
	result := cloneShift(shift)
	return &result, nil
}

func (s *Store) CloseOpenShift(_ context.Context, branchID string, denominations domain.Denominations, totalCash int64, sales domain.SalesSummary, endTime time.Time) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shiftID, exists := s.openShiftByKey[branchID]
	if !exists {
		return nil, store.ErrNotFound
	}
	shift, exists := s.shiftsByID[shiftID]
	if !exists || shift.Status != domain.ShiftStatusOpen {
		return nil, store.ErrNotFound
	}
	if endTime.IsZero() {
		endTime = time.Now().UTC()
	}

	shift.Status = domain.ShiftStatusClosed
	shift.Denominations = denominations
	shift.TotalCash = totalCash
	salesCopy := sales
	shift.Sales = &salesCopy
	shift.EndTime = &endTime

	delete(s.openShiftByKey, branchID)
	s.shiftsByID[shiftID] = cloneShift(shift)
	closed := cloneShift(shift)
	return &closed, nil
}

func (s *Store) ListShifts(_ context.Context, branchID string, saleDate string, limit int) ([]domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Shift, 0, 16)
	for _, shift := range s.shiftsByID {
		if branchID != "" && shift.BranchID != branchID {
			continue
		}
		if saleDate != "" && shift.SaleDate != saleDate {
			continue
		}
		result = append(result, cloneShift(shift))
	}

	slices.SortFunc(result, func(a, b domain.Shift) int {
		if a.SaleDate == b.SaleDate {
			return a.ShiftNumber - b.ShiftNumber
		}
		return cmpString(b.SaleDate, a.SaleDate)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) IsDateClosed(_ context.Context, branchID string, saleDate string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.isDateClosedLocked(branchID, saleDate), nil
}

func (s *Store) isDateClosedLocked(branchID string, saleDate string) bool {
	if _, exists := s.daySalesByKey[daySalesKey(branchID, saleDate)]; exists {
		return true
	}
	for _, shift := range s.shiftsByID {
		if shift.BranchID == branchID && shift.SaleDate == saleDate && shift.Status == domain.ShiftStatusDayClose {
			return true
		}
	}
	for _, marker := range s.dayClosesByID {
		if marker.BranchID == branchID && marker.SaleDate == saleDate {
			return true
		}
	}
	return false
}

func (s *Store) FinalizeDayClose(_ context.Context, daySales domain.DaySales, promotedShifts []domain.Shift, marker *domain.DayClose) (*domain.DaySales, error) {
	if strings.TrimSpace(daySales.BranchID) == "" || daySales.SaleDate == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := daySalesKey(daySales.BranchID, daySales.SaleDate)
	if _, exists := s.daySalesByKey[key]; exists {
		return nil, store.ErrAlreadyClosed
	}

	for _, promoted := range promotedShifts {
		existing, exists := s.shiftsByID[promoted.ID]
		if !exists {
			return nil, store.ErrNotFound
		}
		if existing.Status == domain.ShiftStatusOpen {
			delete(s.openShiftByKey, existing.BranchID)
		}
		promoted.Status = domain.ShiftStatusDayClose
		s.shiftsByID[promoted.ID] = cloneShift(promoted)
	}

	if marker != nil {
		markerCopy := *marker
		if markerCopy.ID == "" {
			markerCopy.ID = xid.New("dc")
		}
		s.dayClosesByID[markerCopy.ID] = markerCopy
	}

	if daySales.ID == "" {
		daySales.ID = xid.New("ds")
	}
	if daySales.ClosedAt.IsZero() {
		daySales.ClosedAt = time.Now().UTC()
	}

	for id, order := range s.ordersByID {
		if order.Deleted || order.BranchID != daySales.BranchID || order.SaleDate != daySales.SaleDate {
			continue
		}
		order.DayCloseID = daySales.ID
		order.DayCloseDate = daySales.SaleDate
		s.ordersByID[id] = order
	}

	s.daySalesByID[daySales.ID] = cloneDaySales(daySales)
	s.daySalesByKey[key] = daySales.ID
	saved := cloneDaySales(daySales)
	return &saved, nil
}

func (s *Store) GetDaySales(_ context.Context, branchID string, saleDate string) (*domain.DaySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.daySalesByKey[daySalesKey(branchID, saleDate)]
	if !exists {
		return nil, store.ErrNotFound
	}
	record := s.daySalesByID[id]
	result := cloneDaySales(record)
	return &result, nil
}

func (s *Store) GetDaySalesByID(_ context.Context, id string) (*domain.DaySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.daySalesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	result := cloneDaySales(record)
	return &result, nil
}

func (s *Store) ListDaySales(_ context.Context, branchID string, limit int) ([]domain.DaySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.DaySales, 0, len(s.daySalesByID))
	for _, record := range s.daySalesByID {
		if branchID != "" && record.BranchID != branchID {
			continue
		}
		result = append(result, cloneDaySales(record))
	}

	slices.SortFunc(result, func(a, b domain.DaySales) int {
		if a.SaleDate == b.SaleDate {
			return cmpString(a.BranchID, b.BranchID)
		}
		return cmpString(b.SaleDate, a.SaleDate)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DeleteDaySales removes the day close for (branch, date) and reopens the
// date: the snapshot and any standalone marker are dropped and promoted
// shifts are demoted back to closed status.
func (s *Store) DeleteDaySales(_ context.Context, branchID string, saleDate string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := daySalesKey(branchID, saleDate)
	id, exists := s.daySalesByKey[key]
	if !exists {
		return store.ErrNotFound
	}
	delete(s.daySalesByID, id)
	delete(s.daySalesByKey, key)

	for shiftID, shift := range s.shiftsByID {
		if shift.BranchID == branchID && shift.SaleDate == saleDate && shift.Status == domain.ShiftStatusDayClose {
			shift.Status = domain.ShiftStatusClosed
			s.shiftsByID[shiftID] = shift
		}
	}
	for markerID, marker := range s.dayClosesByID {
		if marker.BranchID == branchID && marker.SaleDate == saleDate {
			delete(s.dayClosesByID, markerID)
		}
	}
	for orderID, order := range s.ordersByID {
		if order.DayCloseID == id {
			order.DayCloseID = ""
			order.DayCloseDate = ""
			s.ordersByID[orderID] = order
		}
	}
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrValidation
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrValidation
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func daySalesKey(branchID string, saleDate string) string {
	return branchID + "::" + saleDate
}

func inWindow(t time.Time, from time.Time, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneOrder(src domain.Order) domain.Order {
	dup := src
	items := make([]domain.OrderItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	payments := make([]domain.Payment, len(src.Payments))
	copy(payments, src.Payments)
	dup.Payments = payments
	history := make([]domain.PaymentHistoryEntry, len(src.PaymentHistory))
	for i, entry := range src.PaymentHistory {
		entryPayments := make([]domain.Payment, len(entry.Payments))
		copy(entryPayments, entry.Payments)
		entry.Payments = entryPayments
		history[i] = entry
	}
	dup.PaymentHistory = history
	sequence := make([]domain.PaymentModeChange, len(src.ChangeSequence))
	for i, change := range src.ChangeSequence {
		from := make([]string, len(change.From))
		copy(from, change.From)
		change.From = from
		to := make([]string, len(change.To))
		copy(to, change.To)
		change.To = to
		sequence[i] = change
	}
	dup.ChangeSequence = sequence
	ranges := make([]domain.HoldRange, len(src.Membership.HoldRanges))
	copy(ranges, src.Membership.HoldRanges)
	dup.Membership.HoldRanges = ranges
	return dup
}

func cloneShift(src domain.Shift) domain.Shift {
	dup := src
	if src.EndTime != nil {
		end := *src.EndTime
		dup.EndTime = &end
	}
	if src.PlannedEndTime != nil {
		planned := *src.PlannedEndTime
		dup.PlannedEndTime = &planned
	}
	if src.Sales != nil {
		sales := *src.Sales
		dup.Sales = &sales
	}
	return dup
}

func cloneDaySales(src domain.DaySales) domain.DaySales {
	dup := src
	ids := make([]string, len(src.ShiftIDs))
	copy(ids, src.ShiftIDs)
	dup.ShiftIDs = ids
	return dup
}
