// tracker.go implements delivery status tracking for sent chat messages.
//
// Each message moves monotonically through sending -> sent -> delivered
// -> read. A message still in sending or sent when its timeout expires
// is marked failed; failed is terminal and can only be left through an
// explicit Retry, which increments the retry counter and restarts the
// timeout. Statuses never move backwards, and each message has at most
// one live timer at any point.

package gwchat

import (
	"fmt"
	"sync"
	"time"
)

// Status is the delivery state of a sent message.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// statusRank orders the delivery pipeline for monotonicity checks.
// Failed sits outside the pipeline and is handled explicitly.
var statusRank = map[Status]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// DefaultTimeout is how long a message may stay in sending or sent
// before it is marked failed.
const DefaultTimeout = 30 * time.Second

// trackerCapacity bounds the number of retained messages; the oldest is
// evicted when a new message would exceed it.
const trackerCapacity = 200

// Update describes one status change.
type Update struct {
	ID         string `json:"id"`
	From       Status `json:"from"`
	To         Status `json:"to"`
	RetryCount int    `json:"retryCount"`
	Reason     string `json:"reason,omitempty"`
}

// UpdateCallback is invoked on every status change. Timeout failures
// arrive from an internal timer goroutine; long-running handlers should
// spawn their own goroutines.
type UpdateCallback func(u Update)

// Entry is the tracked state of one message.
type Entry struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	RetryCount int       `json:"retryCount"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type entry struct {
	Entry
	timer *time.Timer
}

// Tracker records delivery statuses for sent messages.
type Tracker struct {
	mu        sync.Mutex
	timeout   time.Duration
	messages  map[string]*entry
	order     []string // ids oldest first, for capacity eviction and listing
	callbacks []UpdateCallback
}

// NewTracker creates a tracker. A non-positive timeout falls back to
// DefaultTimeout.
func NewTracker(timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{
		timeout:  timeout,
		messages: make(map[string]*entry),
	}
}

// OnUpdate registers a callback for status changes.
func (t *Tracker) OnUpdate(cb UpdateCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callbacks = append(t.callbacks, cb)
}

// Track begins tracking a message in StatusSending and arms its timeout.
// Tracking an id twice is an error.
func (t *Tracker) Track(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.messages[id]; exists {
		return fmt.Errorf("message %s already tracked", id)
	}

	if len(t.order) >= trackerCapacity {
		oldest := t.order[0]
		t.order = t.order[1:]
		if e, ok := t.messages[oldest]; ok {
			if e.timer != nil {
				e.timer.Stop()
			}
			delete(t.messages, oldest)
		}
	}

	now := time.Now()
	e := &entry{Entry: Entry{
		ID:        id,
		Status:    StatusSending,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	e.timer = time.AfterFunc(t.timeout, func() { t.expire(id) })
	t.messages[id] = e
	t.order = append(t.order, id)
	return nil
}

// Update advances a message to the given pipeline status. Backwards and
// repeated transitions are ignored, as is any transition out of failed;
// reaching delivered or read disarms the timeout. It reports whether
// the status changed.
func (t *Tracker) Update(id string, to Status) bool {
	newRank, pipeline := statusRank[to]
	if !pipeline {
		return false
	}

	t.mu.Lock()
	e, ok := t.messages[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	if e.Status == StatusFailed {
		t.mu.Unlock()
		return false
	}
	if curRank := statusRank[e.Status]; newRank <= curRank {
		t.mu.Unlock()
		return false
	}

	from := e.Status
	e.Status = to
	e.UpdatedAt = time.Now()
	if to == StatusDelivered || to == StatusRead {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
	u := Update{ID: id, From: from, To: to, RetryCount: e.RetryCount}
	cbs := t.snapshotCallbacks()
	t.mu.Unlock()

	for _, cb := range cbs {
		cb(u)
	}
	return true
}

// Fail marks a message failed. Only messages still in sending or sent
// can fail; anything already delivered, read, or failed is left alone.
func (t *Tracker) Fail(id, reason string) bool {
	return t.fail(id, reason)
}

func (t *Tracker) fail(id, reason string) bool {
	t.mu.Lock()
	e, ok := t.messages[id]
	if !ok || (e.Status != StatusSending && e.Status != StatusSent) {
		t.mu.Unlock()
		return false
	}

	from := e.Status
	e.Status = StatusFailed
	e.UpdatedAt = time.Now()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	u := Update{ID: id, From: from, To: StatusFailed, RetryCount: e.RetryCount, Reason: reason}
	cbs := t.snapshotCallbacks()
	t.mu.Unlock()

	for _, cb := range cbs {
		cb(u)
	}
	return true
}

// expire is the timeout path; it fails the message only if it is still
// waiting on the pipeline, so a message that reached delivered in the
// meantime is untouched.
func (t *Tracker) expire(id string) {
	t.fail(id, "timeout")
}

// Retry moves a failed message back to sending, increments its retry
// counter, and re-arms the timeout. It returns the new retry count.
func (t *Tracker) Retry(id string) (int, error) {
	t.mu.Lock()
	e, ok := t.messages[id]
	if !ok {
		t.mu.Unlock()
		return 0, fmt.Errorf("message %s not tracked", id)
	}
	if e.Status != StatusFailed {
		t.mu.Unlock()
		return 0, fmt.Errorf("message %s is %s, only failed messages can be retried", id, e.Status)
	}

	e.RetryCount++
	e.Status = StatusSending
	e.UpdatedAt = time.Now()
	e.timer = time.AfterFunc(t.timeout, func() { t.expire(id) })
	u := Update{ID: id, From: StatusFailed, To: StatusSending, RetryCount: e.RetryCount, Reason: "retry"}
	count := e.RetryCount
	cbs := t.snapshotCallbacks()
	t.mu.Unlock()

	for _, cb := range cbs {
		cb(u)
	}
	return count, nil
}

// Status returns the current status of a tracked message.
func (t *Tracker) Status(id string) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.messages[id]
	if !ok {
		return "", false
	}
	return e.Status, true
}

// Get returns the full tracked entry for a message.
func (t *Tracker) Get(id string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.messages[id]
	if !ok {
		return Entry{}, false
	}
	return e.Entry, true
}

// Entries returns all tracked messages, oldest first.
func (t *Tracker) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.order))
	for _, id := range t.order {
		if e, ok := t.messages[id]; ok {
			out = append(out, e.Entry)
		}
	}
	return out
}

// Stop disarms every live timer. Used on shutdown; no further timeout
// failures fire afterwards.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.messages {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
}

// snapshotCallbacks copies the callback list. Caller must hold t.mu.
func (t *Tracker) snapshotCallbacks() []UpdateCallback {
	cbs := make([]UpdateCallback, len(t.callbacks))
	copy(cbs, t.callbacks)
	return cbs
}
