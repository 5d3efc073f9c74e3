// Package metrics exposes Prometheus instrumentation for the refresh cycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors the coordinator updates while running.
// Passing a nil Registerer to New yields working but unregistered
// collectors, which keeps instrumentation optional for library callers.
type Metrics struct {
	RefreshAttempts  prometheus.Counter
	RefreshSuccesses prometheus.Counter
	RefreshFailures  prometheus.Counter
	LockContention   prometheus.Counter
	SecondsToExpiry  prometheus.Gauge
}

// New creates the coordinator's collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RefreshAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionkit_refresh_attempts_total",
			Help: "Number of refresh attempts that acquired the cross-instance lock.",
		}),
		RefreshSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionkit_refresh_successes_total",
			Help: "Number of refresh attempts that stored a new access token.",
		}),
		RefreshFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionkit_refresh_failures_total",
			Help: "Number of refresh attempts that ended the session.",
		}),
		LockContention: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionkit_lock_contention_total",
			Help: "Number of refresh attempts skipped because another instance held the lock.",
		}),
		SecondsToExpiry: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sessionkit_access_token_seconds_to_expiry",
			Help: "Seconds until the current access token expires, zero when expired or absent.",
		}),
	}
}
