package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerPostingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minex_ledger_postings_total",
			Help: "Ledger postings by reason and outcome",
		},
		[]string{"reason", "result"},
	)

	CommissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minex_commissions_total",
			Help: "Commission credits by depth",
		},
		[]string{"depth"},
	)

	ROICreditsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "minex_roi_credits_total",
			Help: "Daily ROI credits applied to stakes",
		},
	)

	StakesCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "minex_stakes_completed_total",
			Help: "Stakes that reached their end date and returned principal",
		},
	)

	DistributionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minex_distribution_runs_total",
			Help: "ROI distribution runs by trigger and status",
		},
		[]string{"trigger", "status"},
	)

	DistributionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "minex_distribution_duration_seconds",
			Help:    "Histogram of ROI distribution run times",
			Buckets: prometheus.DefBuckets,
		},
	)

	PromotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minex_promotions_total",
			Help: "User level promotions by target level",
		},
		[]string{"level"},
	)

	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests on the ops server",
		},
		[]string{"method", "path", "status"},
	)
)
