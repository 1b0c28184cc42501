// Package metrics is the backend-neutral metrics facade used by the ingestion
// engine. The engine only calls the package-level helpers; a concrete backend
// (e.g. metrics/datadog) is installed once at process start with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Labels are metric dimensions. Backends decide which labels they keep.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer observations.
type Flusher interface {
	Flush() error
}

// Metric names emitted by the engine.
const (
	ObjectsTotal          = "lakehouse_objects_total"
	TablesTotal           = "lakehouse_tables_total"
	RowsTotal             = "lakehouse_rows_total"
	ObjectDurationSeconds = "lakehouse_object_duration_seconds"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the nop backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the installed backend if it buffers.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// RecordObject records the outcome of processing one object.
func RecordObject(family, status string, d time.Duration) {
	l := Labels{"family": family, "status": status}
	IncCounter(ObjectsTotal, 1, l)
	ObserveHistogram(ObjectDurationSeconds, d.Seconds(), l)
}

// RecordTable records the outcome of one derived table load.
func RecordTable(status string, rows int64) {
	IncCounter(TablesTotal, 1, Labels{"status": status})
	if rows > 0 {
		IncCounter(RowsTotal, float64(rows), Labels{"status": status})
	}
}
