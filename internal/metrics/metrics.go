package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstack_workflow_executions_total",
			Help: "Total number of workflow executions",
		},
		[]string{"status"},
	)
	nodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "flowstack_node_duration_seconds",
			Help: "Duration of individual node executions",
		},
		[]string{"component"},
	)
	searchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flowstack_searches_total",
			Help: "Total number of knowledge-base searches",
		},
	)
	ingestedChunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flowstack_ingested_chunks_total",
			Help: "Total number of chunks written to the vector index",
		},
	)
)

func init() {
	prometheus.MustRegister(executionsTotal)
	prometheus.MustRegister(nodeDuration)
	prometheus.MustRegister(searchesTotal)
	prometheus.MustRegister(ingestedChunks)
}

func ExecutionCompleted(status string) { executionsTotal.WithLabelValues(status).Inc() }

func ObserveNode(component string, d time.Duration) {
	nodeDuration.WithLabelValues(component).Observe(d.Seconds())
}

func SearchPerformed() { searchesTotal.Inc() }

func ChunksIngested(n int) { ingestedChunks.Add(float64(n)) }
