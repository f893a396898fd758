package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginOutcomes counts login results by outcome code
	// (success, EU001, EU002, EU003, EU005, error).
	LoginOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_outcomes_total",
		Help: "Total number of login attempts by outcome",
	}, []string{"outcome"})

	// RateLimitDenials counts denials by which window tripped.
	RateLimitDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_rate_limit_denials_total",
		Help: "Total number of rate-limited login attempts by window",
	}, []string{"window"})

	// SessionHeartbeats counts check-session calls by outcome.
	SessionHeartbeats = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_session_heartbeats_total",
		Help: "Total number of session heartbeat checks by outcome",
	}, []string{"outcome"})

	// WorkUnitsConsumed counts granted work-quota decrements.
	WorkUnitsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_work_units_consumed_total",
		Help: "Total number of work units consumed",
	})

	// SweepDeletions counts rows removed by the maintenance sweeper.
	SweepDeletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_sweep_deletions_total",
		Help: "Total number of rows cleaned up by the sweeper",
	}, []string{"table"})
)
