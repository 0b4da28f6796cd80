package cache

import (
	"context"
	"time"

	"dapurpos/backend/internal/domain"
)

// ReportCache fronts reads of persisted day-close snapshots. Reporting never
// re-scans orders, so a cached snapshot is always safe to serve until the
// underlying report is deleted or re-closed.
type ReportCache interface {
	GetDaySales(ctx context.Context, branchID string, saleDate string) (*domain.DaySales, bool, error)
	SetDaySales(ctx context.Context, report domain.DaySales, ttl time.Duration) error
	DeleteDaySales(ctx context.Context, branchID string, saleDate string) error
}

type Noop struct{}

func (Noop) GetDaySales(_ context.Context, _ string, _ string) (*domain.DaySales, bool, error) {
	return nil, false, nil
}

func (Noop) SetDaySales(_ context.Context, _ domain.DaySales, _ time.Duration) error {
	return nil
}

func (Noop) DeleteDaySales(_ context.Context, _ string, _ string) error {
	return nil
}
