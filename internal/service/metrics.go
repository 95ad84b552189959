package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	relationshipMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beliefgraph_relationship_mutations_total",
		Help: "Relationship mutations by operation",
	}, []string{"operation"})

	traversalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "beliefgraph_traversal_duration_seconds",
		Help:    "Duration of graph traversals by algorithm",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"algorithm"})

	validationIssues = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beliefgraph_validation_issues_total",
		Help: "Structural issues reported by graph validation",
	}, []string{"kind"})

	statsCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beliefgraph_stats_cache_lookups_total",
		Help: "Statistics cache lookups by result",
	}, []string{"result"})

	cleanupRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beliefgraph_cleanup_removed_total",
		Help: "Inactive relationships removed by retention cleanup",
	})
)
