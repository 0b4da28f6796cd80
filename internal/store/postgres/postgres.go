package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"dapurpos/backend/internal/domain"
	"dapurpos/backend/internal/store"
	"dapurpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const orderColumns = `id, invoice_no, order_no, branch_id, sale_date, start_date, end_date,
	items, sub_total, vat, discount, total, payable_amount, payments, cumulative_paid,
	status, sales_type, order_type, membership, note, canceled, deleted,
	day_close_id, day_close_date, payment_history, change_sequence, created_at, updated_at`

func (s *Store) CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if strings.TrimSpace(order.BranchID) == "" || order.SaleDate == "" {
		return nil, store.ErrValidation
	}
	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}

	items, payments, membership, history, sequence, err := orderJSON(order)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
	`, order.ID, order.InvoiceNo, order.OrderNo, order.BranchID, order.SaleDate,
		nullTime(order.StartDate), nullTime(order.EndDate),
		items, order.SubTotal, order.VAT, order.Discount, order.Total, order.PayableAmount,
		payments, order.CumulativePaid, order.Status, order.SalesType, nullIfEmpty(order.OrderType),
		membership, strings.TrimSpace(order.Note), order.Canceled, order.Deleted,
		nullIfEmpty(order.DayCloseID), nullIfEmpty(order.DayCloseDate),
		history, sequence, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := order
	return &created, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND deleted = false
	`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *Store) UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now().UTC()
	}
	items, payments, membership, history, sequence, err := orderJSON(order)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET invoice_no = $2, order_no = $3, branch_id = $4, sale_date = $5,
			start_date = $6, end_date = $7, items = $8, sub_total = $9, vat = $10,
			discount = $11, total = $12, payable_amount = $13, payments = $14,
			cumulative_paid = $15, status = $16, sales_type = $17, order_type = $18,
			membership = $19, note = $20, canceled = $21,
			day_close_id = $22, day_close_date = $23,
			payment_history = $24, change_sequence = $25, updated_at = $26
		WHERE id = $1 AND deleted = false
	`, order.ID, order.InvoiceNo, order.OrderNo, order.BranchID, order.SaleDate,
		nullTime(order.StartDate), nullTime(order.EndDate),
		items, order.SubTotal, order.VAT, order.Discount, order.Total, order.PayableAmount,
		payments, order.CumulativePaid, order.Status, order.SalesType, nullIfEmpty(order.OrderType),
		membership, strings.TrimSpace(order.Note), order.Canceled,
		nullIfEmpty(order.DayCloseID), nullIfEmpty(order.DayCloseDate),
		history, sequence, order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := order
	return &updated, nil
}

func (s *Store) ListOrders(ctx context.Context, branchID string, saleDate string, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE deleted = false
			AND ($1 = '' OR branch_id = $1)
			AND ($2 = '' OR sale_date = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, branchID, saleDate, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows, limit)
}

func (s *Store) ListOrdersInWindow(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 5000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE deleted = false AND canceled = false AND status = 'paid'
			AND ($1 = '' OR branch_id = $1)
			AND ((created_at >= $2 AND created_at < $3) OR (updated_at >= $2 AND updated_at < $3))
		ORDER BY created_at ASC, id ASC
		LIMIT $4
	`, branchID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOrders(rows, limit)
}

func (s *Store) ListUnpaidOrderIDs(ctx context.Context, branchID string, saleDate string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id
		FROM orders
		WHERE deleted = false AND canceled = false AND status = 'unpaid'
			AND ($1 = '' OR branch_id = $1)
			AND sale_date = $2
		ORDER BY id
	`, branchID, saleDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) SoftDeleteOrder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET deleted = true, updated_at = now()
		WHERE id = $1 AND deleted = false
	`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// NextSequence draws the next value of a named counter in a single atomic
// upsert, safe across concurrent server instances.
func (s *Store) NextSequence(ctx context.Context, key string) (int64, error) {
	if strings.TrimSpace(key) == "" {
		return 0, store.ErrValidation
	}

	var seq int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequence_counters (key, seq)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET seq = sequence_counters.seq + 1
		RETURNING seq
	`, key).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

const shiftColumns = `id, branch_id, sale_date, shift_number, status, start_time, end_time,
	planned_end_time, denominations, total_cash, sales, note`

func (s *Store) CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	if strings.TrimSpace(shift.BranchID) == "" || shift.SaleDate == "" {
		return nil, store.ErrValidation
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

	denominations, err := json.Marshal(shift.Denominations)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(shift_number), 0) + 1
		FROM shifts
		WHERE branch_id = $1 AND sale_date = $2
	`, shift.BranchID, shift.SaleDate).Scan(&shift.ShiftNumber); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO shifts (`+shiftColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,NULL,$7,$8,$9,NULL,$10)
	`, shift.ID, shift.BranchID, shift.SaleDate, shift.ShiftNumber, shift.Status,
		shift.StartTime, nullTime(shift.PlannedEndTime), denominations, shift.TotalCash,
		strings.TrimSpace(shift.Note))
	if err != nil {
		// The partial unique index on open shifts makes a second concurrent
		// open a plain conflict instead of a race.
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := shift
	return &created, nil
}

func (s *Store) GetOpenShift(ctx context.Context, branchID string) (*domain.Shift, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE branch_id = $1 AND status = 'open'
	`, branchID)
	shift, err := scanShift(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return shift, nil
}

func (s *Store) CloseOpenShift(ctx context.Context, branchID string, denominations domain.Denominations, totalCash int64, sales domain.SalesSummary, endTime time.Time) (*domain.Shift, error) {
	if endTime.IsZero() {
		endTime = time.Now().UTC()
	}
	denomPayload, err := json.Marshal(denominations)
	if err != nil {
		return nil, err
	}
	salesPayload, err := json.Marshal(sales)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE shifts
		SET status = 'closed', denominations = $2, total_cash = $3, sales = $4, end_time = $5
		WHERE branch_id = $1 AND status = 'open'
		RETURNING `+shiftColumns+`
	`, branchID, denomPayload, totalCash, salesPayload, endTime)
	shift, err := scanShift(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return shift, nil
}

func (s *Store) ListShifts(ctx context.Context, branchID string, saleDate string, limit int) ([]domain.Shift, error) {
	if limit < 1 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE ($1 = '' OR branch_id = $1)
			AND ($2 = '' OR sale_date = $2)
		ORDER BY sale_date DESC, shift_number ASC
		LIMIT $3
	`, branchID, saleDate, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shifts := make([]domain.Shift, 0, 16)
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, *shift)
	}
	return shifts, rows.Err()
}

func (s *Store) IsDateClosed(ctx context.Context, branchID string, saleDate string) (bool, error) {
	var closed bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM day_sales WHERE branch_id = $1 AND sale_date = $2)
			OR EXISTS (SELECT 1 FROM shifts WHERE branch_id = $1 AND sale_date = $2 AND status = 'day-close')
			OR EXISTS (SELECT 1 FROM day_closes WHERE branch_id = $1 AND sale_date = $2)
	`, branchID, saleDate).Scan(&closed)
	if err != nil {
		return false, err
	}
	return closed, nil
}

// FinalizeDayClose persists a complete day close in one serializable
// transaction: the snapshot insert, shift promotions, the optional
// no-shifts marker, and the order back-references all land together or not
// at all. The unique (sale_date, branch_id) constraint rejects a concurrent
// duplicate close.
func (s *Store) FinalizeDayClose(ctx context.Context, daySales domain.DaySales, promotedShifts []domain.Shift, marker *domain.DayClose) (*domain.DaySales, error) {
	if strings.TrimSpace(daySales.BranchID) == "" || daySales.SaleDate == "" {
		return nil, store.ErrValidation
	}
	if daySales.ID == "" {
		daySales.ID = xid.New("ds")
	}
	if daySales.ClosedAt.IsZero() {
		daySales.ClosedAt = time.Now().UTC()
	}

	dayPayload, err := json.Marshal(daySales.DaySales)
	if err != nil {
		return nil, err
	}
	shiftWisePayload, err := json.Marshal(daySales.ShiftWiseSales)
	if err != nil {
		return nil, err
	}
	denomPayload, err := json.Marshal(daySales.Denomination)
	if err != nil {
		return nil, err
	}
	shiftIDsPayload, err := json.Marshal(daySales.ShiftIDs)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO day_sales (id, branch_id, sale_date, day_sales, shift_wise_sales, denomination, shift_ids, note, closed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, daySales.ID, daySales.BranchID, daySales.SaleDate, dayPayload, shiftWisePayload,
		denomPayload, shiftIDsPayload, strings.TrimSpace(daySales.Note), daySales.ClosedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyClosed
		}
		return nil, err
	}

	for _, shift := range promotedShifts {
		salesPayload, err := json.Marshal(shift.Sales)
		if err != nil {
			return nil, err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE shifts
			SET status = 'day-close', sales = $2, end_time = $3
			WHERE id = $1
		`, shift.ID, salesPayload, nullTime(shift.EndTime))
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, store.ErrNotFound
		}
	}

	if marker != nil {
		markerID := marker.ID
		if markerID == "" {
			markerID = xid.New("dc")
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO day_closes (id, branch_id, sale_date, start_time, end_time, note)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, markerID, marker.BranchID, marker.SaleDate, marker.StartTime, marker.EndTime, strings.TrimSpace(marker.Note))
		if err != nil {
			if isUniqueViolation(err) {
				return nil, store.ErrAlreadyClosed
			}
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET day_close_id = $1, day_close_date = $2
		WHERE branch_id = $3 AND sale_date = $2 AND deleted = false
	`, daySales.ID, daySales.SaleDate, daySales.BranchID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	saved := daySales
	return &saved, nil
}

const daySalesColumns = `id, branch_id, sale_date, day_sales, shift_wise_sales, denomination, shift_ids, note, closed_at`

func (s *Store) GetDaySales(ctx context.Context, branchID string, saleDate string) (*domain.DaySales, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+daySalesColumns+`
		FROM day_sales
		WHERE branch_id = $1 AND sale_date = $2
	`, branchID, saleDate)
	record, err := scanDaySales(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

func (s *Store) GetDaySalesByID(ctx context.Context, id string) (*domain.DaySales, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+daySalesColumns+`
		FROM day_sales
		WHERE id = $1
	`, id)
	record, err := scanDaySales(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

func (s *Store) ListDaySales(ctx context.Context, branchID string, limit int) ([]domain.DaySales, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+daySalesColumns+`
		FROM day_sales
		WHERE ($1 = '' OR branch_id = $1)
		ORDER BY sale_date DESC, branch_id ASC
		LIMIT $2
	`, branchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.DaySales, 0, limit)
	for rows.Next() {
		record, err := scanDaySales(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// DeleteDaySales removes the day close for (branch, date) and reopens the
// date: promoted shifts fall back to closed status and order
// back-references are cleared, all in one transaction.
func (s *Store) DeleteDaySales(ctx context.Context, branchID string, saleDate string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx, `
		DELETE FROM day_sales
		WHERE branch_id = $1 AND sale_date = $2
		RETURNING id
	`, branchID, saleDate).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE shifts
		SET status = 'closed'
		WHERE branch_id = $1 AND sale_date = $2 AND status = 'day-close'
	`, branchID, saleDate); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM day_closes
		WHERE branch_id = $1 AND sale_date = $2
	`, branchID, saleDate); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET day_close_id = NULL, day_close_date = NULL
		WHERE day_close_id = $1
	`, id); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrValidation
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,true,$4)
	`, username, user.Password, user.Role, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password = $2
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var startDate, endDate sql.NullTime
	var orderType, dayCloseID, dayCloseDate sql.NullString
	var items, payments, membership, history, sequence []byte

	err := row.Scan(&order.ID, &order.InvoiceNo, &order.OrderNo, &order.BranchID, &order.SaleDate,
		&startDate, &endDate, &items, &order.SubTotal, &order.VAT, &order.Discount,
		&order.Total, &order.PayableAmount, &payments, &order.CumulativePaid,
		&order.Status, &order.SalesType, &orderType, &membership, &order.Note,
		&order.Canceled, &order.Deleted, &dayCloseID, &dayCloseDate,
		&history, &sequence, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if startDate.Valid {
		start := startDate.Time.UTC()
		order.StartDate = &start
	}
	if endDate.Valid {
		end := endDate.Time.UTC()
		order.EndDate = &end
	}
	order.OrderType = orderType.String
	order.DayCloseID = dayCloseID.String
	order.DayCloseDate = dayCloseDate.String
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	if err := json.Unmarshal(payments, &order.Payments); err != nil {
		return nil, fmt.Errorf("decode order payments: %w", err)
	}
	if err := json.Unmarshal(membership, &order.Membership); err != nil {
		return nil, fmt.Errorf("decode order membership: %w", err)
	}
	if err := json.Unmarshal(history, &order.PaymentHistory); err != nil {
		return nil, fmt.Errorf("decode payment history: %w", err)
	}
	if err := json.Unmarshal(sequence, &order.ChangeSequence); err != nil {
		return nil, fmt.Errorf("decode change sequence: %w", err)
	}
	return &order, nil
}

func collectOrders(rows *sql.Rows, capacity int) ([]domain.Order, error) {
	if capacity > 512 {
		capacity = 512
	}
	orders := make([]domain.Order, 0, capacity)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func scanShift(row rowScanner) (*domain.Shift, error) {
	var shift domain.Shift
	var endTime, plannedEnd sql.NullTime
	var denominations, sales []byte

	err := row.Scan(&shift.ID, &shift.BranchID, &shift.SaleDate, &shift.ShiftNumber,
		&shift.Status, &shift.StartTime, &endTime, &plannedEnd,
		&denominations, &shift.TotalCash, &sales, &shift.Note)
	if err != nil {
		return nil, err
	}

	shift.StartTime = shift.StartTime.UTC()
	if endTime.Valid {
		end := endTime.Time.UTC()
		shift.EndTime = &end
	}
	if plannedEnd.Valid {
		planned := plannedEnd.Time.UTC()
		shift.PlannedEndTime = &planned
	}
	if err := json.Unmarshal(denominations, &shift.Denominations); err != nil {
		return nil, fmt.Errorf("decode shift denominations: %w", err)
	}
	if len(sales) > 0 {
		var summary domain.SalesSummary
		if err := json.Unmarshal(sales, &summary); err != nil {
			return nil, fmt.Errorf("decode shift sales: %w", err)
		}
		shift.Sales = &summary
	}
	return &shift, nil
}

func scanDaySales(row rowScanner) (*domain.DaySales, error) {
	var record domain.DaySales
	var dayPayload, shiftWisePayload, denomPayload, shiftIDsPayload []byte

	err := row.Scan(&record.ID, &record.BranchID, &record.SaleDate, &dayPayload,
		&shiftWisePayload, &denomPayload, &shiftIDsPayload, &record.Note, &record.ClosedAt)
	if err != nil {
		return nil, err
	}

	record.ClosedAt = record.ClosedAt.UTC()
	if err := json.Unmarshal(dayPayload, &record.DaySales); err != nil {
		return nil, fmt.Errorf("decode day sales: %w", err)
	}
	if err := json.Unmarshal(shiftWisePayload, &record.ShiftWiseSales); err != nil {
		return nil, fmt.Errorf("decode shift-wise sales: %w", err)
	}
	if err := json.Unmarshal(denomPayload, &record.Denomination); err != nil {
		return nil, fmt.Errorf("decode denomination report: %w", err)
	}
	if err := json.Unmarshal(shiftIDsPayload, &record.ShiftIDs); err != nil {
		return nil, fmt.Errorf("decode shift ids: %w", err)
	}
	return &record, nil
}

func orderJSON(order domain.Order) ([]byte, []byte, []byte, []byte, []byte, error) {
	if order.Items == nil {
		order.Items = []domain.OrderItem{}
	}
	if order.Payments == nil {
		order.Payments = []domain.Payment{}
	}
	if order.PaymentHistory == nil {
		order.PaymentHistory = []domain.PaymentHistoryEntry{}
	}
	if order.ChangeSequence == nil {
		order.ChangeSequence = []domain.PaymentModeChange{}
	}

	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	payments, err := json.Marshal(order.Payments)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	membership, err := json.Marshal(order.Membership)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	history, err := json.Marshal(order.PaymentHistory)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	sequence, err := json.Marshal(order.ChangeSequence)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	return items, payments, membership, history, sequence, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
