// state.go implements connection state tracking for the gwconn package.
//
// Each Manager has a State (Disconnected, Connecting, Connected,
// Reconnecting, Failed) updated by the connection lifecycle. Transitions
// are recorded in a ring buffer (50 entries) for debugging, and
// registered callbacks are invoked on every change through the manager's
// dispatch sequence, so they observe transitions in the order they
// happened.

package gwconn

import (
	"sync"
	"time"
)

// State represents the current state of the gateway connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

// String returns the human-readable name of the connection state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// stateTransitionBufferSize is the maximum number of state transitions
// retained for debugging.
const stateTransitionBufferSize = 50

// StateTransition records a single state change.
type StateTransition struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// StateChangeCallback is called when the connection state changes.
// Callbacks run on the manager's dispatch goroutine — long-running
// handlers should spawn their own goroutines.
type StateChangeCallback func(from, to State)

// stateTracker holds the current state, transition history, and state
// change callbacks. It is embedded in Manager.
type stateTracker struct {
	mu          sync.RWMutex
	current     State
	transitions [stateTransitionBufferSize]StateTransition // fixed-size ring buffer
	head        int                                        // next write position
	count       int                                        // total entries written (capped at buffer size for reads)
	callbacks   []StateChangeCallback
}

// set updates the state and records the transition. It returns the
// previous state and a snapshot of the registered callbacks; invoking
// them is the caller's job so ordering can be controlled. changed is
// false (and the snapshot nil) when the state did not change.
func (st *stateTracker) set(to State, reason string) (from State, cbs []StateChangeCallback, changed bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	from = st.current
	if from == to {
		return from, nil, false
	}
	st.current = to
	st.transitions[st.head] = StateTransition{
		From:      from,
		To:        to,
		Timestamp: time.Now(),
		Reason:    reason,
	}
	st.head = (st.head + 1) % stateTransitionBufferSize
	if st.count < stateTransitionBufferSize {
		st.count++
	}

	cbs = make([]StateChangeCallback, len(st.callbacks))
	copy(cbs, st.callbacks)
	return from, cbs, true
}

// get returns the current connection state.
func (st *stateTracker) get() State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

// history returns the state transitions in chronological order.
func (st *stateTracker) history() []StateTransition {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if st.count == 0 {
		return nil
	}
	result := make([]StateTransition, st.count)
	if st.count < stateTransitionBufferSize {
		// Buffer not yet full — entries start at index 0.
		copy(result, st.transitions[:st.count])
	} else {
		// Buffer is full — head is the oldest entry.
		n := copy(result, st.transitions[st.head:])
		copy(result[n:], st.transitions[:st.head])
	}
	return result
}

// onChange registers a callback for state changes.
func (st *stateTracker) onChange(cb StateChangeCallback) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.callbacks = append(st.callbacks, cb)
}
