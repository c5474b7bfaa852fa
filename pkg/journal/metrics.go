package journal

import "github.com/prometheus/client_golang/prometheus"

// EntriesWritten counts journal entries flushed, by index and action.
var EntriesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chewy",
	Subsystem: "journal",
	Name:      "entries_written_total",
}, []string{"index", "action"})

// ApplyDocuments counts documents resubmitted by replays, by index and type.
var ApplyDocuments = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chewy",
	Subsystem: "journal",
	Name:      "apply_documents_total",
}, []string{"index", "type"})

// ApplyFailures counts replay groups that were skipped or failed to write.
var ApplyFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chewy",
	Subsystem: "journal",
	Name:      "apply_failures_total",
}, []string{"index", "type"})

// ApplyDuration observes the wall time of each replay.
var ApplyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "chewy",
	Subsystem: "journal",
	Name:      "apply_duration_seconds",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
})

// CleanDeleted counts journal entries removed by cleanups.
var CleanDeleted = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "chewy",
	Subsystem: "journal",
	Name:      "clean_deleted_total",
})

// Collectors returns the journal metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{EntriesWritten, ApplyDocuments, ApplyFailures, ApplyDuration, CleanDeleted}
}
