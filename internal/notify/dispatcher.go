// Package notify implements the notification dispatcher: an ordered sink
// list, a do-not-disturb window, and a queue that flushes once DND lifts or
// an urgent message bypasses it.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Sink delivers one message to a destination (a chat channel, email,
// webhook). A sink that errors is logged and skipped; it never blocks
// delivery to the others.
type Sink interface {
	Send(message string) error
}

// SinkFunc adapts a plain function to a Sink.
type SinkFunc func(message string) error

func (f SinkFunc) Send(message string) error { return f(message) }

// DNDWindow is a do-not-disturb window in local-clock HH:MM, inclusive of
// Start and exclusive of End. A window with Start > End is interpreted as
// crossing midnight (e.g. 22:00-07:00).
type DNDWindow struct {
	Enabled    bool
	Start      time.Time // only Hour/Minute are consulted
	End        time.Time
	AllowUrgent bool
}

func (w DNDWindow) active(now time.Time) bool {
	if !w.Enabled {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	start := w.Start.Hour()*60 + w.Start.Minute()
	end := w.End.Hour()*60 + w.End.Minute()
	if start <= end {
		return cur >= start && cur < end
	}
	// Crosses midnight: active outside the [end, start) daytime gap.
	return cur >= start || cur < end
}

// Dispatcher holds the ordered sink list and the DND queue.
type Dispatcher struct {
	mu      sync.Mutex
	sinks   []Sink
	window  DNDWindow
	queued  []string
	logger  *slog.Logger
	nowFunc func() time.Time
}

// New builds a dispatcher. Sinks are consulted in registration order on
// every send.
func New(window DNDWindow, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{window: window, logger: logger, nowFunc: time.Now}
}

// AddSink appends a sink to the delivery list.
func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// Send delivers message to every sink, unless DND is active and the
// message may not bypass it (it is not urgent, or AllowUrgent is off) — in
// which case it is queued. Any previously queued messages are flushed in order
// as part of the same call once delivery actually happens.
func (d *Dispatcher) Send(message string, urgent bool) {
	d.mu.Lock()
	now := d.nowFunc()
	blocked := d.window.active(now) && !(urgent && d.window.AllowUrgent)
	if blocked {
		d.queued = append(d.queued, message)
		d.mu.Unlock()
		return
	}
	pending := d.queued
	d.queued = nil
	sinks := append([]Sink(nil), d.sinks...)
	d.mu.Unlock()

	for _, m := range pending {
		d.deliver(sinks, m)
	}
	d.deliver(sinks, message)
}

// FlushQueue drains any queued messages regardless of DND state. It is
// idempotent: calling it with an empty queue is a no-op.
func (d *Dispatcher) FlushQueue() {
	d.mu.Lock()
	pending := d.queued
	d.queued = nil
	sinks := append([]Sink(nil), d.sinks...)
	d.mu.Unlock()

	for _, m := range pending {
		d.deliver(sinks, m)
	}
}

func (d *Dispatcher) deliver(sinks []Sink, message string) {
	for _, s := range sinks {
		if err := s.Send(message); err != nil {
			d.logger.Warn("notification sink failed", "error", err)
		}
	}
}
