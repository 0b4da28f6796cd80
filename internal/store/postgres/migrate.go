package postgres

import (
	"context"
	"fmt"
)

// schemaStatements is applied in order by Migrate. Every statement is
// idempotent, so re-running on boot is safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		invoice_no TEXT NOT NULL,
		order_no TEXT NOT NULL,
		branch_id TEXT NOT NULL,
		sale_date TEXT NOT NULL,
		start_date TIMESTAMPTZ,
		end_date TIMESTAMPTZ,
		items JSONB NOT NULL DEFAULT '[]',
		sub_total BIGINT NOT NULL DEFAULT 0,
		vat BIGINT NOT NULL DEFAULT 0,
		discount BIGINT NOT NULL DEFAULT 0,
		total BIGINT NOT NULL DEFAULT 0,
		payable_amount BIGINT NOT NULL DEFAULT 0,
		payments JSONB NOT NULL DEFAULT '[]',
		cumulative_paid BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		sales_type TEXT NOT NULL,
		order_type TEXT,
		membership JSONB NOT NULL DEFAULT '{}',
		note TEXT NOT NULL DEFAULT '',
		canceled BOOLEAN NOT NULL DEFAULT false,
		deleted BOOLEAN NOT NULL DEFAULT false,
		day_close_id TEXT,
		day_close_date TEXT,
		payment_history JSONB NOT NULL DEFAULT '[]',
		change_sequence JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS orders_branch_sale_date ON orders (branch_id, sale_date)`,
	`CREATE INDEX IF NOT EXISTS orders_branch_created_at ON orders (branch_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL,
		sale_date TEXT NOT NULL,
		shift_number INT NOT NULL,
		status TEXT NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ,
		planned_end_time TIMESTAMPTZ,
		denominations JSONB NOT NULL DEFAULT '{}',
		total_cash BIGINT NOT NULL DEFAULT 0,
		sales JSONB,
		note TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS one_open_shift_per_branch ON shifts (branch_id) WHERE status = 'open'`,
	`CREATE INDEX IF NOT EXISTS shifts_branch_sale_date ON shifts (branch_id, sale_date)`,
	`CREATE TABLE IF NOT EXISTS day_closes (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL,
		sale_date TEXT NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		UNIQUE (sale_date, branch_id)
	)`,
	`CREATE TABLE IF NOT EXISTS day_sales (
		id TEXT PRIMARY KEY,
		branch_id TEXT NOT NULL,
		sale_date TEXT NOT NULL,
		day_sales JSONB NOT NULL,
		shift_wise_sales JSONB NOT NULL,
		denomination JSONB NOT NULL,
		shift_ids JSONB NOT NULL DEFAULT '[]',
		note TEXT NOT NULL DEFAULT '',
		closed_at TIMESTAMPTZ NOT NULL,
		UNIQUE (sale_date, branch_id)
	)`,
	`CREATE TABLE IF NOT EXISTS sequence_counters (
		key TEXT PRIMARY KEY,
		seq BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

const migrateAdvisoryLockID int64 = 420917355

// Migrate ensures the schema exists. An advisory lock serializes concurrent
// boots against the same database.
func (s *Store) Migrate(ctx context.Context) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrateAdvisoryLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrateAdvisoryLockID)
	}()

	for i, stmt := range schemaStatements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
