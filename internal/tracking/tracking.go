// Package tracking records training parameters and scalar metrics.
//
// Trackers only consume values; they never influence training. KlogTracker
// writes structured log lines, MemoryTracker keeps everything in memory for
// tests and summaries, and Multi fans out to several trackers.
package tracking

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// NewRunID returns a fresh run identifier of the form "run-xxxxxxxx".
func NewRunID() string {
	return "run-" + uuid.NewString()[:8]
}

// Tracker receives run parameters and metric values.
type Tracker interface {
	// LogParams records the configuration of the run.
	LogParams(params map[string]any)

	// LogMetric records value for metric name at the given step.
	LogMetric(name string, step int, value float64)

	// Finish flushes the tracker. No calls may follow.
	Finish() error
}

// KlogTracker writes params and metrics as structured klog lines.
type KlogTracker struct {
	run       string
	verbosity klog.Level
}

// NewKlogTracker creates a tracker logging at the given verbosity under run.
func NewKlogTracker(run string, verbosity klog.Level) *KlogTracker {
	return &KlogTracker{run: run, verbosity: verbosity}
}

// LogParams logs the parameters in key order.
func (k *KlogTracker) LogParams(params map[string]any) {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	kv := make([]any, 0, 2*len(keys)+2)
	kv = append(kv, "run", k.run)
	for _, key := range keys {
		kv = append(kv, key, params[key])
	}
	klog.V(k.verbosity).InfoS("params", kv...)
}

// LogMetric logs a single metric value.
func (k *KlogTracker) LogMetric(name string, step int, value float64) {
	klog.V(k.verbosity).InfoS("metric", "run", k.run, "name", name, "step", step, "value", value)
}

// Finish flushes klog.
func (k *KlogTracker) Finish() error {
	klog.Flush()
	return nil
}

// Point is one recorded metric value.
type Point struct {
	Step  int
	Value float64
}

// MemoryTracker keeps params and metrics in memory. It is safe for
// concurrent use.
type MemoryTracker struct {
	mu       sync.Mutex
	params   map[string]any
	metrics  map[string][]Point
	finished bool
}

// NewMemoryTracker creates an empty MemoryTracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		params:  make(map[string]any),
		metrics: make(map[string][]Point),
	}
}

// LogParams merges params into the stored parameters.
func (m *MemoryTracker) LogParams(params map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range params {
		m.params[k] = v
	}
}

// LogMetric appends a point to the named series.
func (m *MemoryTracker) LogMetric(name string, step int, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics[name] = append(m.metrics[name], Point{Step: step, Value: value})
}

// Finish marks the tracker finished. Finishing twice is an error.
func (m *MemoryTracker) Finish() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finished {
		return errors.New("tracker already finished")
	}
	m.finished = true
	return nil
}

// Params returns a copy of the recorded parameters.
func (m *MemoryTracker) Params() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.params))
	for k, v := range m.params {
		out[k] = v
	}
	return out
}

// Series returns a copy of the points recorded for name.
func (m *MemoryTracker) Series(name string) []Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Point(nil), m.metrics[name]...)
}

// Last returns the most recent value of name.
func (m *MemoryTracker) Last(name string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.metrics[name]
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1].Value, true
}

// Finished reports whether Finish was called.
func (m *MemoryTracker) Finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished
}

type multi []Tracker

// Multi returns a Tracker forwarding every call to each of trackers.
func Multi(trackers ...Tracker) Tracker {
	return multi(trackers)
}

func (m multi) LogParams(params map[string]any) {
	for _, t := range m {
		t.LogParams(params)
	}
}

func (m multi) LogMetric(name string, step int, value float64) {
	for _, t := range m {
		t.LogMetric(name, step, value)
	}
}

// Finish finishes every tracker and returns the first error.
func (m multi) Finish() error {
	var first error
	for _, t := range m {
		if err := t.Finish(); err != nil && first == nil {
			first = errors.Wrap(err, "finishing tracker")
		}
	}
	return first
}
