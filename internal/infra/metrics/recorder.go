package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reputation"

// Recorder exports the engine's operational counters to prometheus.
type Recorder struct {
	recalculations *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	conflicts      *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	hookFailures   *prometheus.CounterVec
	corruptions    *prometheus.CounterVec
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		recalculations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalculations_total",
			Help:      "Reputation recalculations by result",
		}, []string{"result"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recalculation_duration_seconds",
			Help:      "Time spent recalculating one reputation",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"result"}),
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "version_conflicts_total",
			Help:      "Optimistic write conflicts that were retried",
		}, []string{"collection"}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "Writes rejected before reaching the store",
		}, []string{"collection"}),
		hookFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_failures_total",
			Help:      "Post-commit hooks that failed after retries",
		}, []string{"collection"}),
		corruptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_corruptions_total",
			Help:      "Stored documents that failed to decode",
		}, []string{"collection"}),
	}
}

func (r *Recorder) RecalculationDone(result string, elapsed time.Duration) {
	r.recalculations.WithLabelValues(result).Inc()
	r.latency.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (r *Recorder) ConflictRetried(collection string) {
	r.conflicts.WithLabelValues(collection).Inc()
}

func (r *Recorder) ValidationRejected(collection string) {
	r.rejections.WithLabelValues(collection).Inc()
}

func (r *Recorder) HookFailed(collection string) {
	r.hookFailures.WithLabelValues(collection).Inc()
}

func (r *Recorder) CorruptionDetected(collection string) {
	r.corruptions.WithLabelValues(collection).Inc()
}
