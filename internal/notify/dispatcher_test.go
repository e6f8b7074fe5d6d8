package notify

import (
	"errors"
	"testing"
	"time"
)

func clockTime(hour, minute int) time.Time {
	return time.Date(2026, 7, 30, hour, minute, 0, 0, time.UTC)
}

func TestDNDWindowActive(t *testing.T) {
	tests := []struct {
		name   string
		window DNDWindow
		now    time.Time
		want   bool
	}{
		{
			name:   "disabled window is never active",
			window: DNDWindow{Enabled: false, Start: clockTime(22, 0), End: clockTime(7, 0)},
			now:    clockTime(23, 0),
			want:   false,
		},
		{
			name:   "same-day window active inside range",
			window: DNDWindow{Enabled: true, Start: clockTime(13, 0), End: clockTime(14, 0)},
			now:    clockTime(13, 30),
			want:   true,
		},
		{
			name:   "same-day window inactive outside range",
			window: DNDWindow{Enabled: true, Start: clockTime(13, 0), End: clockTime(14, 0)},
			now:    clockTime(15, 0),
			want:   false,
		},
		{
			name:   "midnight-crossing window active late at night",
			window: DNDWindow{Enabled: true, Start: clockTime(22, 0), End: clockTime(7, 0)},
			now:    clockTime(23, 30),
			want:   true,
		},
		{
			name:   "midnight-crossing window active early morning",
			window: DNDWindow{Enabled: true, Start: clockTime(22, 0), End: clockTime(7, 0)},
			now:    clockTime(5, 0),
			want:   true,
		},
		{
			name:   "midnight-crossing window inactive during the day",
			window: DNDWindow{Enabled: true, Start: clockTime(22, 0), End: clockTime(7, 0)},
			now:    clockTime(12, 0),
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.active(tt.now); got != tt.want {
				t.Errorf("active(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

type recordingSink struct {
	messages []string
	failNext bool
}

func (s *recordingSink) Send(message string) error {
	if s.failNext {
		s.failNext = false
		return errors.New("sink failure")
	}
	s.messages = append(s.messages, message)
	return nil
}

func TestDispatcherSendDeliversImmediatelyOutsideDND(t *testing.T) {
	d := New(DNDWindow{Enabled: false}, nil)
	sink := &recordingSink{}
	d.AddSink(sink)

	d.Send("hello", false)
	if len(sink.messages) != 1 || sink.messages[0] != "hello" {
		t.Fatalf("got %v, want [hello]", sink.messages)
	}
}

func TestDispatcherQueuesDuringDNDAndFlushesOnNextSend(t *testing.T) {
	d := New(DNDWindow{Enabled: true, Start: clockTime(22, 0), End: clockTime(7, 0)}, nil)
	d.nowFunc = func() time.Time { return clockTime(23, 0) }
	sink := &recordingSink{}
	d.AddSink(sink)

	d.Send("quiet hours message", false)
	if len(sink.messages) != 0 {
		t.Fatalf("message should be queued, got %v", sink.messages)
	}

	d.nowFunc = func() time.Time { return clockTime(8, 0) }
	d.Send("morning message", false)
	if len(sink.messages) != 2 || sink.messages[0] != "quiet hours message" || sink.messages[1] != "morning message" {
		t.Fatalf("got %v, want queued message flushed before the new one", sink.messages)
	}
}

func TestDispatcherUrgentBypassesDNDWhenAllowed(t *testing.T) {
	d := New(DNDWindow{Enabled: true, Start: clockTime(22, 0), End: clockTime(7, 0), AllowUrgent: true}, nil)
	d.nowFunc = func() time.Time { return clockTime(23, 0) }
	sink := &recordingSink{}
	d.AddSink(sink)

	d.Send("urgent", true)
	if len(sink.messages) != 1 {
		t.Fatalf("urgent message should bypass DND, got %v", sink.messages)
	}
}

func TestDispatcherFlushQueueDrainsRegardlessOfDND(t *testing.T) {
	d := New(DNDWindow{Enabled: true, Start: clockTime(22, 0), End: clockTime(7, 0)}, nil)
	d.nowFunc = func() time.Time { return clockTime(23, 0) }
	sink := &recordingSink{}
	d.AddSink(sink)

	d.Send("queued", false)
	d.FlushQueue()
	if len(sink.messages) != 1 || sink.messages[0] != "queued" {
		t.Fatalf("got %v, want [queued]", sink.messages)
	}

	// Idempotent on an empty queue.
	d.FlushQueue()
	if len(sink.messages) != 1 {
		t.Fatalf("flushing an empty queue should not redeliver, got %v", sink.messages)
	}
}

func TestDispatcherSkipsFailingSinkWithoutBlockingOthers(t *testing.T) {
	d := New(DNDWindow{Enabled: false}, nil)
	failing := &recordingSink{failNext: true}
	ok := &recordingSink{}
	d.AddSink(failing)
	d.AddSink(ok)

	d.Send("hello", false)
	if len(ok.messages) != 1 {
		t.Fatalf("second sink should still receive the message, got %v", ok.messages)
	}
}
