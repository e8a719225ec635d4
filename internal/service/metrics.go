package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// tokensIssued counts tokens issued by kind.
	tokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_tokens_issued_total",
			Help: "Total number of auth tokens issued",
		},
		[]string{"kind"},
	)

	// tokenVerifications counts verification attempts by outcome.
	tokenVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_token_verifications_total",
			Help: "Total number of token verification attempts",
		},
		[]string{"result"},
	)

	// tokensSwept counts expired tokens removed by the background sweeper.
	tokensSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "access_tokens_swept_total",
			Help: "Total number of expired tokens deleted by the sweeper",
		},
	)

	// auditEntriesRecorded counts audit entries written to the store.
	auditEntriesRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "access_audit_entries_recorded_total",
			Help: "Total number of audit entries persisted",
		},
	)

	// auditEntriesDropped counts audit entries lost to a full buffer or a
	// failed write. A nonzero rate here is an operational signal, not an
	// application error.
	auditEntriesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "access_audit_entries_dropped_total",
			Help: "Total number of audit entries dropped",
		},
	)

	// quotaDenials counts requests rejected by the usage meter, by metric.
	quotaDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_quota_denials_total",
			Help: "Total number of operations denied by tier limits",
		},
		[]string{"metric"},
	)
)
