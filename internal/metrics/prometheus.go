package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genetics_tutor_chat_duration_seconds",
			Help:    "Chat request processing duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"source"},
	)

	ChatTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genetics_tutor_chat_total",
			Help: "Total number of chat requests by outcome",
		},
		[]string{"status"},
	)

	AnswerSource = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genetics_tutor_answer_source_total",
			Help: "Answers served per source",
		},
		[]string{"source"},
	)

	KnowledgeLevel = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "genetics_tutor_knowledge_level",
			Help:    "Knowledge level after each chat turn",
			Buckets: []float64{1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5},
		},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "genetics_tutor_confidence_score",
			Help:    "Response confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	TopicMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genetics_tutor_topic_matches_total",
			Help: "Times each topic was used in an answer",
		},
		[]string{"topic"},
	)

	LLMFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genetics_tutor_llm_fallbacks_total",
			Help: "LLM calls that fell back to the local catalog",
		},
		[]string{"reason"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genetics_tutor_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genetics_tutor_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genetics_tutor_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "genetics_tutor_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	ActiveWebsockets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "genetics_tutor_active_websockets",
			Help: "Open websocket chat connections",
		},
	)

	CatalogTopics = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "genetics_tutor_catalog_topics",
			Help: "Topics loaded into the catalog",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ChatDuration)
		prometheus.MustRegister(ChatTotal)
		prometheus.MustRegister(AnswerSource)
		prometheus.MustRegister(KnowledgeLevel)
		prometheus.MustRegister(ConfidenceScore)
		prometheus.MustRegister(TopicMatches)
		prometheus.MustRegister(LLMFallbacks)
		prometheus.MustRegister(LLMTokensUsed)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(RateLimited)
		prometheus.MustRegister(ActiveWebsockets)
		prometheus.MustRegister(CatalogTopics)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
