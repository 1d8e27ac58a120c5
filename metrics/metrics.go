package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server-side progression counters
var (
	// VideoCompletions counts completions recorded by the backend
	VideoCompletions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "learnhub_video_completions_total",
		Help: "Video completions recorded by the backend",
	})

	// AssessmentSubmissions counts scored attempts by outcome
	AssessmentSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "learnhub_assessment_submissions_total",
		Help: "Scored assessment attempts by outcome",
	}, []string{"outcome"})

	// ModuleUnlocks counts module gates opened, by trigger
	ModuleUnlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "learnhub_module_unlocks_total",
		Help: "Module gates opened by trigger",
	}, []string{"trigger"})

	// Rejections counts requests refused because the item was locked or not attemptable
	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "learnhub_progression_rejections_total",
		Help: "Progression requests refused by the backend",
	}, []string{"operation"})
)

// Client-side sync counters
var (
	SyncFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "learnhub_sync_failures_total",
		Help: "Failed gateway calls by operation",
	}, []string{"operation"})

	StaleResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "learnhub_sync_stale_responses_total",
		Help: "Gateway responses discarded because a newer write was already applied",
	})

	PendingCompletions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "learnhub_sync_pending_completions",
		Help: "Completions kept locally and waiting to be retried",
	})
)

// Handler serves the default registry on a fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
