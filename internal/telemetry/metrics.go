package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "player_runs_total",
			Help: "Total runs executed by the worker, by terminal state",
		},
		[]string{"state"},
	)

	capacityWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "player_capacity_waits_total",
			Help: "Total waits caused by the execution server being at capacity, by operation",
		},
		[]string{"operation"},
	)

	interactionReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "player_interaction_replies_total",
			Help: "Total interactions marked replied, by source (local or remote)",
		},
		[]string{"source"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "player_run_duration_seconds",
			Help:    "Remote execution time of finished runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
	)

	activeRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "player_active_runs",
			Help: "Runs currently being executed by this process",
		},
	)
)

// Операции, ограниченные ёмкостью сервера.
const (
	OperationCreate = "create"
	OperationStart  = "start"
)

// Источники ответа на взаимодействие.
const (
	ReplySourceLocal  = "local"
	ReplySourceRemote = "remote"
)

// RecordRunFinished увеличивает счётчик runs для терминального состояния.
func RecordRunFinished(state string) {
	runsTotal.WithLabelValues(state).Inc()
}

// RecordCapacityWait увеличивает счётчик ожиданий ёмкости сервера.
// operation — OperationCreate или OperationStart.
func RecordCapacityWait(operation string) {
	capacityWaits.WithLabelValues(operation).Inc()
}

// RecordInteractionReply фиксирует, что взаимодействие получило ответ.
func RecordInteractionReply(source string) {
	interactionReplies.WithLabelValues(source).Inc()
}

// ObserveRunDuration записывает время выполнения run на сервере.
func ObserveRunDuration(seconds float64) {
	runDuration.Observe(seconds)
}

// RunStarted и RunDone отслеживают число runs в работе.
func RunStarted() { activeRuns.Inc() }

func RunDone() { activeRuns.Dec() }
