package robot

import "time"

const utilizationWindow = 50

type durationWindow struct {
	values [utilizationWindow]time.Duration
	next   int
	count  int
	sum    time.Duration
}

func (w *durationWindow) add(d time.Duration) {
	if w.count == len(w.values) {
		w.sum -= w.values[w.next]
	} else {
		w.count++
	}
	w.values[w.next] = d
	w.sum += d
	w.next = (w.next + 1) % len(w.values)
}

// UtilizationMonitor measures the share of time a loop spends working,
// over the most recent iterations.
type UtilizationMonitor struct {
	now       func() time.Time
	lastStart time.Time
	lastStop  time.Time
	active    durationWindow
	inactive  durationWindow
}

// NewUtilizationMonitor creates a monitor reading the wall clock.
func NewUtilizationMonitor() *UtilizationMonitor {
	return &UtilizationMonitor{now: time.Now}
}

// Start marks the beginning of work.
func (m *UtilizationMonitor) Start() {
	now := m.now()
	if !m.lastStop.IsZero() {
		m.inactive.add(now.Sub(m.lastStop))
	}
	m.lastStart = now
}

// Stop marks the end of work.
func (m *UtilizationMonitor) Stop() {
	now := m.now()
	if !m.lastStart.IsZero() {
		m.active.add(now.Sub(m.lastStart))
	}
	m.lastStop = now
}

// Utilization returns the busy ratio in [0, 1].
func (m *UtilizationMonitor) Utilization() float32 {
	total := m.active.sum + m.inactive.sum
	if total <= 0 {
		return 0
	}
	return float32(float64(m.active.sum) / float64(total))
}
