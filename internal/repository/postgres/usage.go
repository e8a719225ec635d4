package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/database"
)

// UsageRepository implements repository.UsageRepository using PostgreSQL.
// The unique index on (identity_id, metric_type, period_start, period_end)
// makes the upsert in Increment the single write path for counters.
type UsageRepository struct {
	db DB
}

// NewUsageRepository creates a new PostgreSQL-backed usage repository.
func NewUsageRepository(db DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Increment adds delta to the counter for the given period, creating the row
// if it does not exist. Concurrent increments serialize on the row, so no
// count is ever lost.
func (r *UsageRepository) Increment(ctx context.Context, identityID string, metric domain.MetricType, periodStart, periodEnd time.Time, delta int64) error {
	query := `
		INSERT INTO usage_metrics (id, identity_id, metric_type, metric_value, period_start, period_end, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (identity_id, metric_type, period_start, period_end)
		DO UPDATE SET metric_value = usage_metrics.metric_value + EXCLUDED.metric_value`

	ctx, end := database.TraceQuery(ctx, "IncrementUsage", query)

	_, err := r.db.Exec(ctx, query,
		uuid.New().String(),
		identityID,
		metric,
		delta,
		periodStart,
		periodEnd,
		time.Now().UTC(),
	)
	end(err)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}

	return nil
}

// Get returns the counter value for the given period, or zero if no row
// exists yet.
func (r *UsageRepository) Get(ctx context.Context, identityID string, metric domain.MetricType, periodStart time.Time) (int64, error) {
	query := `
		SELECT metric_value
		FROM usage_metrics
		WHERE identity_id = $1 AND metric_type = $2 AND period_start = $3`

	var value int64
	err := r.db.QueryRow(ctx, query, identityID, metric, periodStart).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get usage: %w", err)
	}

	return value, nil
}
