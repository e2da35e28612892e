// events.go implements connection event logging for the gwconn package.
//
// It stores Events emitted by the Manager lifecycle (connect, disconnect,
// heartbeat timeout, reconnection attempts) in a ring buffer (100
// entries) for later retrieval. This complements the state transition
// history in state.go: state.go tracks state changes, events.go tracks
// individual actions and their outcomes.

package gwconn

import (
	"sync"
	"time"
)

// eventBufferSize is the maximum number of events retained per manager.
const eventBufferSize = 100

// EventType identifies a connection lifecycle event.
type EventType string

const (
	EventConnected        EventType = "connected"
	EventDisconnected     EventType = "disconnected"
	EventReconnecting     EventType = "reconnecting"
	EventReconnected      EventType = "reconnected"
	EventReconnectFailed  EventType = "reconnect_failed"
	EventAuthFailed       EventType = "auth_failed"
	EventHeartbeatTimeout EventType = "heartbeat_timeout"
)

// Event represents a single connection lifecycle event.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
}

// EventListener is a callback for connection events. Listeners run on
// the manager's dispatch goroutine — long-running handlers should spawn
// their own goroutines.
type EventListener func(event Event)

// eventLog is a fixed-size ring buffer of connection events plus the
// registered listeners. It is embedded in Manager.
type eventLog struct {
	mu        sync.RWMutex
	events    [eventBufferSize]Event
	head      int // next write position
	count     int // total entries written (capped at buffer size for reads)
	listeners []EventListener
}

// record stores an event and returns a snapshot of the listeners;
// invoking them is the caller's job so ordering can be controlled.
func (el *eventLog) record(event Event) []EventListener {
	el.mu.Lock()
	defer el.mu.Unlock()

	el.events[el.head] = event
	el.head = (el.head + 1) % eventBufferSize
	if el.count < eventBufferSize {
		el.count++
	}

	listeners := make([]EventListener, len(el.listeners))
	copy(listeners, el.listeners)
	return listeners
}

// history returns the retained events in chronological order (oldest
// first), or nil when no events have been recorded.
func (el *eventLog) history() []Event {
	el.mu.RLock()
	defer el.mu.RUnlock()

	if el.count == 0 {
		return nil
	}
	result := make([]Event, el.count)
	if el.count < eventBufferSize {
		copy(result, el.events[:el.count])
	} else {
		// Buffer is full — head is the oldest entry.
		n := copy(result, el.events[el.head:])
		copy(result[n:], el.events[:el.head])
	}
	return result
}

// onEvent registers a listener for connection events.
func (el *eventLog) onEvent(l EventListener) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.listeners = append(el.listeners, l)
}
