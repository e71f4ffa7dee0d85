package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashflow_dispatches_total",
			Help: "Total dispatch requests by role and outcome",
		},
		[]string{"role", "outcome"},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashflow_transitions_total",
			Help: "Total status transitions by from/to status",
		},
		[]string{"from", "to"},
	)

	ReclaimedLeasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashflow_reclaimed_leases_total",
			Help: "Total stale leases reclaimed by lease kind",
		},
		[]string{"kind"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flashflow_queue_depth",
			Help: "Number of videos per status",
		},
		[]string{"status"},
	)

	OverdueItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flashflow_overdue_items",
			Help: "Number of videos past their overdue SLA threshold",
		},
		[]string{"status"},
	)

	HandoffsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flashflow_handoffs_total",
			Help: "Total auto-handoffs by next role and result",
		},
		[]string{"role", "result"},
	)
)
