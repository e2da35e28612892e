package gwconn

import (
	"fmt"
	"testing"
	"time"
)

func TestEventLog_EmptyHistoryIsNil(t *testing.T) {
	el := &eventLog{}
	if got := el.history(); got != nil {
		t.Errorf("history() = %v, want nil", got)
	}
}

func TestEventLog_HistoryChronological(t *testing.T) {
	el := &eventLog{}
	el.record(Event{Type: EventConnected, Timestamp: time.Now(), Details: "first"})
	el.record(Event{Type: EventDisconnected, Timestamp: time.Now(), Details: "second"})
	el.record(Event{Type: EventReconnected, Timestamp: time.Now(), Details: "third"})

	history := el.history()
	if len(history) != 3 {
		t.Fatalf("history has %d entries, want 3", len(history))
	}
	wantDetails := []string{"first", "second", "third"}
	for i, want := range wantDetails {
		if history[i].Details != want {
			t.Errorf("entry %d details = %q, want %q", i, history[i].Details, want)
		}
	}
}

func TestEventLog_RingBufferWraparound(t *testing.T) {
	el := &eventLog{}
	for i := 0; i < 105; i++ {
		el.record(Event{
			Type:      EventType(fmt.Sprintf("event-%d", i)),
			Timestamp: time.Now(),
		})
	}

	history := el.history()
	if len(history) != eventBufferSize {
		t.Fatalf("history has %d entries, want %d", len(history), eventBufferSize)
	}
	if got := history[0].Type; got != "event-5" {
		t.Errorf("oldest retained = %q, want event-5", got)
	}
	if got := history[len(history)-1].Type; got != "event-104" {
		t.Errorf("newest retained = %q, want event-104", got)
	}
}

func TestEventLog_ListenerSnapshot(t *testing.T) {
	el := &eventLog{}

	received := 0
	el.onEvent(func(e Event) { received++ })

	listeners := el.record(Event{Type: EventConnected, Timestamp: time.Now()})
	if len(listeners) != 1 {
		t.Fatalf("record returned %d listeners, want 1", len(listeners))
	}
	listeners[0](Event{Type: EventConnected})
	if received != 1 {
		t.Errorf("listener invoked %d times, want 1", received)
	}
}
