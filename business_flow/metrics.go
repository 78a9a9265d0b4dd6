package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Queue items written by schedule calls, by owner kind
	queueItemsScheduledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drip_queue_items_scheduled_total",
			Help: "Total number of emails queued by schedule calls",
		},
		[]string{"owner_kind"},
	)

	// Delivery attempts by outcome (sent, failed)
	dispatchEmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drip_dispatch_emails_total",
			Help: "Total number of delivery attempts made by the dispatcher",
		},
		[]string{"result"},
	)

	// Owners moved to completed by the dispatcher
	ownersCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drip_owners_completed_total",
			Help: "Total number of campaigns and follow-ups completed by the dispatcher",
		},
		[]string{"owner_kind"},
	)

	dispatchTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drip_dispatch_tick_duration_seconds",
			Help:    "Duration of dispatch ticks in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Ticks that found another tick holding the claim
	dispatchTicksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drip_dispatch_ticks_skipped_total",
			Help: "Total number of dispatch ticks skipped because another tick was running",
		},
	)
)
