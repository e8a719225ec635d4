package domain

import "time"

// MetricType identifies a metered axis of usage.
type MetricType string

const (
	MetricContacts    MetricType = "contacts"
	MetricTerritories MetricType = "territories"
	MetricSchedules   MetricType = "schedules"
	MetricAPIRequests MetricType = "api_requests"
)

// AllMetrics returns every metered axis in stable order.
func AllMetrics() []MetricType {
	return []MetricType{MetricContacts, MetricTerritories, MetricSchedules, MetricAPIRequests}
}

// Unlimited is the limit value meaning no cap on a metric.
const Unlimited int64 = -1

// lifetimeEnd is the far-future sentinel closing a lifetime period.
var lifetimeEnd = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// Period returns the accumulation window containing now for this metric:
// daily for api_requests (local midnight boundaries), calendar-monthly for
// schedules, and a single epoch-to-sentinel lifetime window for contacts and
// territories.
func (m MetricType) Period(now time.Time) (start, end time.Time) {
	switch m {
	case MetricAPIRequests:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 0, 1)
	case MetricSchedules:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return start, start.AddDate(0, 1, 0)
	default:
		return time.Unix(0, 0).UTC(), lifetimeEnd
	}
}

// UsageMetric is one persisted counter row. At most one row exists per
// (identity, metric, period) tuple; increments update the row in place.
type UsageMetric struct {
	ID          string     `json:"id"`
	IdentityID  string     `json:"identity_id"`
	MetricType  MetricType `json:"metric_type"`
	MetricValue int64      `json:"metric_value"`
	PeriodStart time.Time  `json:"period_start"`
	PeriodEnd   time.Time  `json:"period_end"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TierLimits holds the per-metric caps for one subscription tier.
type TierLimits struct {
	Contacts          int64
	Territories       int64
	SchedulesPerMonth int64
	APIRequestsPerDay int64
}

var tierLimits = map[Role]TierLimits{
	RoleFree:  {Contacts: 50, Territories: 1, SchedulesPerMonth: 10, APIRequestsPerDay: 100},
	RolePro:   {Contacts: 1000, Territories: 10, SchedulesPerMonth: 100, APIRequestsPerDay: 1000},
	RoleAdmin: {Contacts: Unlimited, Territories: Unlimited, SchedulesPerMonth: Unlimited, APIRequestsPerDay: Unlimited},
}

// LimitFor returns the cap for the given role and metric. Unknown roles get
// the free tier's limits.
func LimitFor(role Role, metric MetricType) int64 {
	limits, ok := tierLimits[role]
	if !ok {
		limits = tierLimits[RoleFree]
	}
	switch metric {
	case MetricContacts:
		return limits.Contacts
	case MetricTerritories:
		return limits.Territories
	case MetricSchedules:
		return limits.SchedulesPerMonth
	case MetricAPIRequests:
		return limits.APIRequestsPerDay
	}
	return 0
}

// MetricForAction maps a guarded action name to the metric it consumes.
func MetricForAction(action string) (MetricType, bool) {
	switch action {
	case "create_contact":
		return MetricContacts, true
	case "create_territory":
		return MetricTerritories, true
	case "create_schedule":
		return MetricSchedules, true
	case "api_request":
		return MetricAPIRequests, true
	}
	return "", false
}

// MetricUsage is one axis of a usage snapshot.
type MetricUsage struct {
	Used      int64 `json:"used"`
	Limit     int64 `json:"limit"`
	Unlimited bool  `json:"unlimited"`
}

// UsageSnapshot is the current usage of an identity across all metrics,
// compared against its tier's limit table.
type UsageSnapshot struct {
	IdentityID string                     `json:"identity_id"`
	Role       Role                       `json:"role"`
	Metrics    map[MetricType]MetricUsage `json:"metrics"`
}

// LimitCheck is the result of a pre-flight quota check.
type LimitCheck struct {
	Allowed      bool   `json:"allowed"`
	Reason       string `json:"reason,omitempty"`
	CurrentUsage int64  `json:"current_usage"`
	Limit        int64  `json:"limit"`
}
