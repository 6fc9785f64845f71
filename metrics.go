package ioasid

import "sync/atomic"

// Metrics tracks allocator-wide operational statistics using the same
// atomic-counter style as the teacher's device Metrics.
type Metrics struct {
	AllocOps   atomic.Uint64
	FreeOps    atomic.Uint64
	GetOps     atomic.Uint64
	PutOps     atomic.Uint64
	AllocErrors atomic.Uint64

	SetsCreated   atomic.Uint64
	SetsDestroyed atomic.Uint64

	NotifyOps atomic.Uint64

	// LiveEntries and LiveSets are maintained as running totals rather
	// than recomputed from the id table on every observation, since the
	// Prometheus collector samples them on every scrape.
	LiveEntries atomic.Int64
	LiveSets    atomic.Int64
}

// NewMetrics creates a zeroed Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) recordAlloc(ok bool) {
	m.AllocOps.Add(1)
	if ok {
		m.LiveEntries.Add(1)
	} else {
		m.AllocErrors.Add(1)
	}
}

func (m *Metrics) recordFree()          { m.FreeOps.Add(1) }
func (m *Metrics) recordReclaim()       { m.LiveEntries.Add(-1) }
func (m *Metrics) recordGet()           { m.GetOps.Add(1) }
func (m *Metrics) recordPut()           { m.PutOps.Add(1) }
func (m *Metrics) recordSetCreate()     { m.SetsCreated.Add(1); m.LiveSets.Add(1) }
func (m *Metrics) recordSetDestroy()    { m.SetsDestroyed.Add(1); m.LiveSets.Add(-1) }
func (m *Metrics) recordNotify()        { m.NotifyOps.Add(1) }

// MetricsSnapshot is a point-in-time copy of Metrics' counters.
type MetricsSnapshot struct {
	AllocOps      uint64
	FreeOps       uint64
	GetOps        uint64
	PutOps        uint64
	AllocErrors   uint64
	SetsCreated   uint64
	SetsDestroyed uint64
	NotifyOps     uint64
	LiveEntries   int64
	LiveSets      int64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		AllocOps:      m.AllocOps.Load(),
		FreeOps:       m.FreeOps.Load(),
		GetOps:        m.GetOps.Load(),
		PutOps:        m.PutOps.Load(),
		AllocErrors:   m.AllocErrors.Load(),
		SetsCreated:   m.SetsCreated.Load(),
		SetsDestroyed: m.SetsDestroyed.Load(),
		NotifyOps:     m.NotifyOps.Load(),
		LiveEntries:   m.LiveEntries.Load(),
		LiveSets:      m.LiveSets.Load(),
	}
}

// Observer allows pluggable collection of allocator events, mirroring the
// teacher's device Observer interface. Implementations must be
// thread-safe: methods are called from inside the allocator's lock.
type Observer interface {
	ObserveAlloc(ok bool)
	ObserveFree()
	ObserveReclaim()
	ObserveGet()
	ObservePut()
	ObserveSetCreate()
	ObserveSetDestroy()
	ObserveNotify()
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveAlloc(bool)     {}
func (NoOpObserver) ObserveFree()          {}
func (NoOpObserver) ObserveReclaim()       {}
func (NoOpObserver) ObserveGet()           {}
func (NoOpObserver) ObservePut()           {}
func (NoOpObserver) ObserveSetCreate()     {}
func (NoOpObserver) ObserveSetDestroy()    {}
func (NoOpObserver) ObserveNotify()        {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveAlloc(ok bool)  { o.metrics.recordAlloc(ok) }
func (o *MetricsObserver) ObserveFree()          { o.metrics.recordFree() }
func (o *MetricsObserver) ObserveReclaim()       { o.metrics.recordReclaim() }
func (o *MetricsObserver) ObserveGet()           { o.metrics.recordGet() }
func (o *MetricsObserver) ObservePut()           { o.metrics.recordPut() }
func (o *MetricsObserver) ObserveSetCreate()     { o.metrics.recordSetCreate() }
func (o *MetricsObserver) ObserveSetDestroy()    { o.metrics.recordSetDestroy() }
func (o *MetricsObserver) ObserveNotify()        { o.metrics.recordNotify() }

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = (*NoOpObserver)(nil)
)
