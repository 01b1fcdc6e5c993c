// Package metrics is the process-wide set of Prometheus collectors for
// domain events that aren't naturally HTTP requests: ticket claims, lease
// releases, lease expiries, and run outcomes. apiserver registers these
// alongside its own request-duration histogram and serves them on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ClaimsTotal counts Claim attempts, labelled by outcome (success,
	// queue_empty, conflict, error).
	ClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentkanban",
			Subsystem: "reservation",
			Name:      "claims_total",
			Help:      "Ticket claim attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// ReleasesTotal counts explicit lease releases.
	ReleasesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agentkanban",
			Subsystem: "reservation",
			Name:      "releases_total",
			Help:      "Explicit lease releases via Release.",
		},
	)

	// LeaseExpiriesTotal counts leases reclaimed by the sweeper.
	LeaseExpiriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agentkanban",
			Subsystem: "reservation",
			Name:      "lease_expiries_total",
			Help:      "Leases reclaimed by the background sweeper.",
		},
	)

	// RunOutcomesTotal counts finalized runs, labelled by outcome status.
	RunOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentkanban",
			Subsystem: "run",
			Name:      "outcomes_total",
			Help:      "Finalized agent runs by outcome status.",
		},
		[]string{"status"},
	)
)

// Collectors returns every domain collector, for registration on a single
// Prometheus registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{ClaimsTotal, ReleasesTotal, LeaseExpiriesTotal, RunOutcomesTotal}
}
