package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dapurpos/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("invalid input")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyClosed = fmt.Errorf("%w: day already closed", ErrConflict)
)

// UnsettledOrdersError blocks a day close while unpaid orders exist for the
// date. It carries the offending order ids so the caller can act on them.
type UnsettledOrdersError struct {
	OrderIDs []string
}

func (e *UnsettledOrdersError) Error() string {
	return fmt.Sprintf("day close blocked by %d unsettled orders: %s", len(e.OrderIDs), strings.Join(e.OrderIDs, ", "))
}

type Repository interface {
	CreateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	ListOrders(ctx context.Context, branchID string, saleDate string, limit int) ([]domain.Order, error)
	// ListOrdersInWindow returns paid, non-canceled, non-deleted orders whose
	// CreatedAt or UpdatedAt falls in the half-open window [from, to).
	ListOrdersInWindow(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.Order, error)
	ListUnpaidOrderIDs(ctx context.Context, branchID string, saleDate string) ([]string, error)
	SoftDeleteOrder(ctx context.Context, id string) error

	// NextSequence atomically increments and returns the counter for key
	// (e.g. "INV-20240101"). Safe across multiple server instances.
	NextSequence(ctx context.Context, key string) (int64, error)

	CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	GetOpenShift(ctx context.Context, branchID string) (*domain.Shift, error)
	CloseOpenShift(ctx context.Context, branchID string, denominations domain.Denominations, totalCash int64, sales domain.SalesSummary, endTime time.Time) (*domain.Shift, error)
	ListShifts(ctx context.Context, branchID string, saleDate string, limit int) ([]domain.Shift, error)

	// IsDateClosed reports whether a day-close-status shift or a DayClose
	// record exists for (branch, date).
	IsDateClosed(ctx context.Context, branchID string, saleDate string) (bool, error)
	// FinalizeDayClose persists a complete day close in one atomic unit:
	// promotes the given shifts to day-close status (with their snapshots),
	// inserts the standalone marker when no shifts exist, and writes the
	// DaySales record. Returns ErrAlreadyClosed when a DaySales record for
	// the same (date, branch) already exists.
	FinalizeDayClose(ctx context.Context, daySales domain.DaySales, promotedShifts []domain.Shift, marker *domain.DayClose) (*domain.DaySales, error)
	GetDaySales(ctx context.Context, branchID string, saleDate string) (*domain.DaySales, error)
	GetDaySalesByID(ctx context.Context, id string) (*domain.DaySales, error)
	ListDaySales(ctx context.Context, branchID string, limit int) ([]domain.DaySales, error)
	DeleteDaySales(ctx context.Context, branchID string, saleDate string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
