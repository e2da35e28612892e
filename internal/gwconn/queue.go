package gwconn

import (
	"context"
	"sync"

	"github.com/coder/websocket"
)

// Frame is one outbound or inbound WebSocket message: text frames carry
// JSON, binary frames carry raw bytes.
type Frame struct {
	Type websocket.MessageType
	Data []byte
}

// sendQueue is the bounded outbound buffer. Frames pushed while the
// connection is down are held for replay in order once the writer is
// back; when the queue is full the oldest frame is dropped and counted.
type sendQueue struct {
	mu      sync.Mutex
	frames  []Frame
	limit   int
	dropped uint64

	wake chan struct{} // capacity 1, signals the writer
}

func newSendQueue(limit int) *sendQueue {
	return &sendQueue{
		limit: limit,
		wake:  make(chan struct{}, 1),
	}
}

// push appends a frame, dropping the oldest one when the queue is at its
// limit. It reports whether a drop happened.
func (q *sendQueue) push(f Frame) bool {
	q.mu.Lock()
	droppedOldest := false
	if q.limit > 0 && len(q.frames) >= q.limit {
		q.frames = q.frames[1:]
		q.dropped++
		droppedOldest = true
	}
	q.frames = append(q.frames, f)
	q.mu.Unlock()

	q.signal()
	return droppedOldest
}

// requeue puts a frame back at the front after a failed write so it is
// retried first on the next connection. The limit is not enforced here:
// an in-flight frame is never dropped in favor of a queued one.
func (q *sendQueue) requeue(f Frame) {
	q.mu.Lock()
	q.frames = append([]Frame{f}, q.frames...)
	q.mu.Unlock()

	q.signal()
}

// next blocks until a frame is available or ctx is cancelled.
func (q *sendQueue) next(ctx context.Context) (Frame, bool) {
	for {
		q.mu.Lock()
		if len(q.frames) > 0 {
			f := q.frames[0]
			q.frames = q.frames[1:]
			if len(q.frames) == 0 {
				q.frames = nil // release the drained backing array
			}
			q.mu.Unlock()
			return f, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Frame{}, false
		case <-q.wake:
		}
	}
}

func (q *sendQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// size returns the number of queued frames.
func (q *sendQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// droppedCount returns the total number of frames dropped since creation.
func (q *sendQueue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
