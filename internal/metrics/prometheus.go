package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medreports_search_duration_seconds",
			Help:    "Natural language search duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
	)

	SearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medreports_search_total",
			Help: "Total number of natural language searches processed",
		},
		[]string{"status"},
	)

	UnrecognizedParameterTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medreports_unrecognized_parameter_total",
			Help: "Searches whose parameter was not in the synonym table",
		},
	)

	DanglingReportRefs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medreports_dangling_report_refs_total",
			Help: "Parameter rows referencing a missing parent report",
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medreports_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medreports_confidence_score",
			Help:    "Overall report confidence scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	ReportsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medreports_reports_ingested_total",
			Help: "Total reports ingested",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medreports_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medreports_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchTotal)
	prometheus.MustRegister(UnrecognizedParameterTotal)
	prometheus.MustRegister(DanglingReportRefs)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(ReportsIngested)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
