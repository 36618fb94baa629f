package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neomorfeo/practiq/internal/domain"
)

// RateRepository implements domain.RateRepository using SQLite.
type RateRepository struct {
	db *sql.DB
}

func (r *RateRepository) Create(ctx context.Context, rate domain.BillingRate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO billing_rates (id, customer_id, hourly_rate, effective_from, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rate.ID, nullString(rate.CustomerID), rate.HourlyRate,
		formatTime(rate.EffectiveFrom), formatTime(rate.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting billing rate: %w", err)
	}
	return nil
}

func (r *RateRepository) Resolve(ctx context.Context, customerID string, at time.Time) (decimal.Decimal, bool, error) {
	rate, ok, err := r.newest(ctx, `customer_id = ?`, customerID, at)
	if err != nil || ok {
		return rate, ok, err
	}
	return r.newest(ctx, `customer_id IS NULL`, nil, at)
}

func (r *RateRepository) newest(ctx context.Context, scope string, customerID any, at time.Time) (decimal.Decimal, bool, error) {
	args := []any{formatTime(at)}
	if customerID != nil {
		args = append([]any{customerID}, args...)
	}

	var rate decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT hourly_rate FROM billing_rates
		 WHERE `+scope+` AND effective_from <= ?
		 ORDER BY effective_from DESC, created_at DESC, id DESC LIMIT 1`,
		args...,
	).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("resolving billing rate: %w", err)
	}
	return rate, true, nil
}
