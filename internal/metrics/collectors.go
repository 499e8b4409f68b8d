package metrics

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"agora/pkg/logger"
)

// StoreCollector exposes row counts of the agent database at scrape time.
type StoreCollector struct {
	log *logger.Logger
	db  *sqlx.DB

	totalTurns    *prometheus.Desc
	totalSessions *prometheus.Desc
	knowledgeDocs *prometheus.Desc
}

// NewStoreCollector creates a collector over the agent database
func NewStoreCollector(db *sqlx.DB) *StoreCollector {
	return &StoreCollector{
		log: logger.Component("metrics_collector"),
		db:  db,

		totalTurns: prometheus.NewDesc(
			"agora_conversation_turns",
			"Stored conversation turns",
			nil, nil,
		),
		totalSessions: prometheus.NewDesc(
			"agora_conversation_sessions",
			"Distinct conversation sessions",
			nil, nil,
		),
		knowledgeDocs: prometheus.NewDesc(
			"agora_knowledge_documents",
			"Documents per knowledge collection",
			[]string{"collection"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalTurns
	ch <- c.totalSessions
	ch <- c.knowledgeDocs
}

// Collect implements prometheus.Collector
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectConversations(ctx, ch)
	c.collectKnowledge(ctx, ch)
}

func (c *StoreCollector) collectConversations(ctx context.Context, ch chan<- prometheus.Metric) {
	var stats struct {
		Turns    int64 `db:"turns"`
		Sessions int64 `db:"sessions"`
	}
	err := c.db.GetContext(ctx, &stats, `SELECT COUNT(*) AS turns, COUNT(DISTINCT session_id) AS sessions FROM conversation_turns`)
	if err != nil {
		c.log.Warnw("Failed to collect conversation metrics", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.totalTurns, prometheus.GaugeValue, float64(stats.Turns))
	ch <- prometheus.MustNewConstMetric(c.totalSessions, prometheus.GaugeValue, float64(stats.Sessions))
}

func (c *StoreCollector) collectKnowledge(ctx context.Context, ch chan<- prometheus.Metric) {
	var rows []struct {
		Collection string `db:"collection"`
		Count      int64  `db:"count"`
	}
	err := c.db.SelectContext(ctx, &rows, `SELECT collection, COUNT(*) AS count FROM knowledge_documents GROUP BY collection`)
	if err != nil {
		c.log.Warnw("Failed to collect knowledge metrics", "error", err)
		return
	}

	for _, r := range rows {
		ch <- prometheus.MustNewConstMetric(c.knowledgeDocs, prometheus.GaugeValue, float64(r.Count), r.Collection)
	}
}

// RegisterStoreCollector registers the collector with the default registry
func RegisterStoreCollector(collector *StoreCollector) error {
	return prometheus.Register(collector)
}
