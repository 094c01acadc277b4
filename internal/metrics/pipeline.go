package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search pipeline Prometheus metrics.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopsight",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Search pipeline stage duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"}, // "stage1" / "retrieval" / "stage2" / "total"
	)

	RetrievalPlanTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopsight",
			Name:      "retrieval_plan_total",
			Help:      "Retrieval ladder steps that produced the final candidate set",
		},
		[]string{"plan"},
	)

	RerankRepairAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopsight",
			Name:      "rerank_repair_attempts_total",
			Help:      "Repair passes over malformed rerank output",
		},
		[]string{"outcome"}, // "ok" / "invalid" / "error"
	)

	RerankFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shopsight",
			Name:      "rerank_fallback_total",
			Help:      "Searches that fell back to heuristic order",
		},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopsight",
			Name:      "search_requests_total",
			Help:      "Image searches by outcome code",
		},
		[]string{"code"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(RetrievalPlanTotal)
	prometheus.MustRegister(RerankRepairAttemptsTotal)
	prometheus.MustRegister(RerankFallbackTotal)
	prometheus.MustRegister(SearchRequestsTotal)
	pipelineMetricsRegistered = true
}
