package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/repository"
	apperrors "github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/errors"
)

// UsageService implements usage metering and tier limit checks.
//
// CheckLimit and RecordUsage are deliberately separate calls with no lock
// between them. Two concurrent requests can both pass the check at the last
// slot and both record, slightly overshooting the cap. Limits here are soft
// product boundaries, not security boundaries, and the overshoot is bounded
// by the number of in-flight requests.
type UsageService struct {
	usage  repository.UsageRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewUsageService creates a new usage service.
func NewUsageService(usage repository.UsageRepository, logger *slog.Logger) *UsageService {
	return &UsageService{
		usage:  usage,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CheckLimit reports whether the identity may consume one more unit of the
// metric under its tier's cap.
func (s *UsageService) CheckLimit(ctx context.Context, identityID string, role domain.Role, metric domain.MetricType) (domain.LimitCheck, error) {
	limit := domain.LimitFor(role, metric)
	if limit == domain.Unlimited {
		return domain.LimitCheck{Allowed: true, Limit: limit}, nil
	}

	start, _ := metric.Period(s.now())
	current, err := s.usage.Get(ctx, identityID, metric, start)
	if err != nil {
		return domain.LimitCheck{}, apperrors.Storage(err)
	}

	if current >= limit {
		quotaDenials.WithLabelValues(string(metric)).Inc()
		return domain.LimitCheck{
			Reason:       limitReason(metric),
			CurrentUsage: current,
			Limit:        limit,
		}, nil
	}

	return domain.LimitCheck{Allowed: true, CurrentUsage: current, Limit: limit}, nil
}

// RecordUsage adds delta units to the identity's counter for the metric's
// current period. Usage only accumulates; corrections are not modeled.
func (s *UsageService) RecordUsage(ctx context.Context, identityID string, metric domain.MetricType, delta int64) error {
	if delta <= 0 {
		return apperrors.InvalidInput("delta must be positive")
	}

	start, end := metric.Period(s.now())

	if err := s.usage.Increment(ctx, identityID, metric, start, end, delta); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}

	return nil
}

// Snapshot returns the identity's current usage across every metric,
// alongside its tier's limits.
func (s *UsageService) Snapshot(ctx context.Context, identityID string, role domain.Role) (*domain.UsageSnapshot, error) {
	snapshot := &domain.UsageSnapshot{
		IdentityID: identityID,
		Role:       role,
		Metrics:    make(map[domain.MetricType]domain.MetricUsage, len(domain.AllMetrics())),
	}

	now := s.now()
	for _, metric := range domain.AllMetrics() {
		start, _ := metric.Period(now)
		used, err := s.usage.Get(ctx, identityID, metric, start)
		if err != nil {
			return nil, apperrors.Storage(err)
		}

		limit := domain.LimitFor(role, metric)
		snapshot.Metrics[metric] = domain.MetricUsage{
			Used:      used,
			Limit:     limit,
			Unlimited: limit == domain.Unlimited,
		}
	}

	return snapshot, nil
}

// limitReason builds the human-readable denial reason for a metric.
func limitReason(metric domain.MetricType) string {
	switch metric {
	case domain.MetricContacts:
		return "contact limit reached"
	case domain.MetricTerritories:
		return "territory limit reached"
	case domain.MetricSchedules:
		return "monthly schedule limit reached"
	case domain.MetricAPIRequests:
		return "daily API request limit reached"
	}
	return "usage limit reached"
}
