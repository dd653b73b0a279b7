// Package metrics holds the Prometheus collectors for retrieval, build and agent activity.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LevelSearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrag_level_searches_total",
			Help: "Single-level searches, by level and whether a restriction was applied.",
		},
		[]string{"level", "restricted"},
	)

	LevelSearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hrag_level_search_duration_seconds",
			Help:    "Latency of single-level searches.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"level"},
	)

	NarrowingEmptyLevelsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrag_narrowing_empty_levels_total",
			Help: "Intermediate levels that returned no matches during a narrowing descent.",
		},
		[]string{"level"},
	)

	SummarizationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrag_summarization_failures_total",
			Help: "Groups skipped during hierarchy build, by failure kind.",
		},
		[]string{"level", "kind"},
	)

	AgentTurnsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hrag_agent_turns_total",
			Help: "Reasoning turns executed by the orchestration loop.",
		},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrag_tool_calls_total",
			Help: "Tool calls executed by the orchestration loop, by tool and outcome.",
		},
		[]string{"tool", "outcome"},
	)
)

// ObserveLevelSearch records one single-level search.
func ObserveLevelSearch(level int, restricted bool, started time.Time) {
	l := strconv.Itoa(level)
	LevelSearchesTotal.WithLabelValues(l, strconv.FormatBool(restricted)).Inc()
	LevelSearchDuration.WithLabelValues(l).Observe(time.Since(started).Seconds())
}
