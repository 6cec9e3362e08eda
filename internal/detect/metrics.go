package detect

import (
	"time"

	"go.uber.org/atomic"
)

// Metrics counts detection activity. All methods are safe for concurrent use.
type Metrics struct {
	eventsTotal      atomic.Uint64
	eventsConsumed   atomic.Uint64
	firings          atomic.Uint64
	blockedFirings   atomic.Uint64
	droppedFirings   atomic.Uint64
	actionFailures   atomic.Uint64
	sequenceTimeouts atomic.Uint64
	timerFailures    atomic.Uint64
	imitations       atomic.Uint64
	configChanges    atomic.Uint64
	configRejections atomic.Uint64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) recordEvent(consumed bool) {
	m.eventsTotal.Inc()
	if consumed {
		m.eventsConsumed.Inc()
	}
}

// TimerFailed counts a timer whose callback could not be delivered.
func (m *Metrics) TimerFailed() {
	m.timerFailures.Inc()
}

// MetricsSnapshot holds a point-in-time view of metrics.
type MetricsSnapshot struct {
	EventsTotal      uint64
	EventsConsumed   uint64
	Firings          uint64
	BlockedFirings   uint64
	DroppedFirings   uint64
	ActionFailures   uint64
	SequenceTimeouts uint64
	TimerFailures    uint64
	Imitations       uint64
	ConfigChanges    uint64
	ConfigRejections uint64

	Uptime time.Duration
}

// Snapshot returns a point-in-time view of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		EventsTotal:      m.eventsTotal.Load(),
		EventsConsumed:   m.eventsConsumed.Load(),
		Firings:          m.firings.Load(),
		BlockedFirings:   m.blockedFirings.Load(),
		DroppedFirings:   m.droppedFirings.Load(),
		ActionFailures:   m.actionFailures.Load(),
		SequenceTimeouts: m.sequenceTimeouts.Load(),
		TimerFailures:    m.timerFailures.Load(),
		Imitations:       m.imitations.Load(),
		ConfigChanges:    m.configChanges.Load(),
		ConfigRejections: m.configRejections.Load(),
		Uptime:           time.Since(m.startTime),
	}
}

// Reset clears all counters.
func (m *Metrics) Reset() {
	m.eventsTotal.Store(0)
	m.eventsConsumed.Store(0)
	m.firings.Store(0)
	m.blockedFirings.Store(0)
	m.droppedFirings.Store(0)
	m.actionFailures.Store(0)
	m.sequenceTimeouts.Store(0)
	m.timerFailures.Store(0)
	m.imitations.Store(0)
	m.configChanges.Store(0)
	m.configRejections.Store(0)
}
