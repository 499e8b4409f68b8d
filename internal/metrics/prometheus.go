package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Discussion outcomes
const (
	OutcomeThreshold = "threshold" // stopped early, score reached the threshold
	OutcomeExhausted = "exhausted" // ran every round
	OutcomeDegraded  = "degraded"  // later round failed, previous transcript returned
	OutcomeFailed    = "failed"    // first round failed
)

var (
	// Discussion metrics
	DiscussionRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_discussion_runs_total",
			Help: "Total number of discussion runs by outcome",
		},
		[]string{"outcome"},
	)

	DiscussionRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agora_discussion_rounds",
			Help:    "Rounds completed per discussion",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 10},
		},
	)

	DiscussionScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agora_discussion_score",
			Help:    "Final judge score per discussion (0-10)",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		},
	)

	// Agent metrics
	AgentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_agent_calls_total",
			Help: "Total number of agent calls",
		},
		[]string{"agent", "status"}, // status: success|error
	)

	AgentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agora_agent_latency_seconds",
			Help:    "Agent execution latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"agent"},
	)

	LLMTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_llm_tokens_total",
			Help: "Tokens consumed by the chat model",
		},
		[]string{"model", "type"}, // type: prompt|completion
	)

	// Tool metrics
	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"},
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agora_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"},
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agora_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)

	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "code"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agora_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"route", "method"},
	)

	// Messaging metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_kafka_messages_total",
			Help: "Events published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

var initOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			DiscussionRuns,
			DiscussionRounds,
			DiscussionScore,
			AgentCalls,
			AgentLatency,
			LLMTokens,
			ToolExecutions,
			ToolLatency,
			DBQueries,
			DBQueryDuration,
			HTTPRequests,
			HTTPDuration,
			KafkaMessages,
		)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordDiscussion records a finished discussion. score is nil when the judge never produced one.
func RecordDiscussion(outcome string, rounds int, score *float64) {
	DiscussionRuns.WithLabelValues(outcome).Inc()
	if rounds > 0 {
		DiscussionRounds.Observe(float64(rounds))
	}
	if score != nil {
		DiscussionScore.Observe(*score)
	}
}

// RecordAgentCall records an agent invocation
func RecordAgentCall(agent string, latency time.Duration, err error) {
	AgentCalls.WithLabelValues(agent, status(err)).Inc()
	AgentLatency.WithLabelValues(agent).Observe(latency.Seconds())
}

// RecordLLMTokens records token usage reported by the chat endpoint
func RecordLLMTokens(model string, prompt, completion int64) {
	if prompt > 0 {
		LLMTokens.WithLabelValues(model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		LLMTokens.WithLabelValues(model, "completion").Add(float64(completion))
	}
}

// RecordToolExecution records a tool execution
func RecordToolExecution(tool string, latency time.Duration, err error) {
	ToolExecutions.WithLabelValues(tool, status(err)).Inc()
	ToolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// RecordDBQuery records a database query
func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	DBQueries.WithLabelValues(database, operation, status(err)).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}

// RecordHTTPRequest records a served request
func RecordHTTPRequest(route, method string, code int, duration time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	HTTPDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordKafkaMessage records a publish attempt
func RecordKafkaMessage(topic string, err error) {
	KafkaMessages.WithLabelValues(topic, status(err)).Inc()
}
