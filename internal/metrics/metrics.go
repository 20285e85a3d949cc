package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medrush_order_transitions_total",
		Help: "Total number of committed order status transitions.",
	},
		[]string{"intent"},
	)

	InvalidTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medrush_order_invalid_transitions_total",
		Help: "Total number of rejected intents (not legal from current status).",
	},
		[]string{"intent"},
	)

	ContentionRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medrush_order_contention_retries_total",
		Help: "Total number of conditional-write conflicts that triggered a re-read.",
	})

	ClaimsWonTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medrush_rider_claims_won_total",
		Help: "Total number of successful rider claims.",
	})

	ClaimsLostTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medrush_rider_claims_lost_total",
		Help: "Total number of claims lost to another rider.",
	})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medrush_notifications_total",
		Help: "Total number of notification dispatch attempts by outcome.",
	},
		[]string{"outcome"},
	)
)
