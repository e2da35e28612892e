package gwconn

import (
	"context"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func textFrame(s string) Frame {
	return Frame{Type: websocket.MessageText, Data: []byte(s)}
}

func TestSendQueue_FIFO(t *testing.T) {
	q := newSendQueue(10)
	q.push(textFrame("a"))
	q.push(textFrame("b"))
	q.push(textFrame("c"))

	for _, want := range []string{"a", "b", "c"} {
		f, ok := q.next(context.Background())
		if !ok {
			t.Fatal("next returned !ok with frames queued")
		}
		if string(f.Data) != want {
			t.Errorf("got %s, want %s", f.Data, want)
		}
	}
	if q.size() != 0 {
		t.Errorf("size = %d after draining, want 0", q.size())
	}
}

func TestSendQueue_DropsOldestAtLimit(t *testing.T) {
	q := newSendQueue(2)

	if dropped := q.push(textFrame("a")); dropped {
		t.Error("push below limit reported a drop")
	}
	q.push(textFrame("b"))
	if dropped := q.push(textFrame("c")); !dropped {
		t.Error("push at limit did not report a drop")
	}

	if got := q.droppedCount(); got != 1 {
		t.Errorf("droppedCount = %d, want 1", got)
	}

	f, _ := q.next(context.Background())
	if string(f.Data) != "b" {
		t.Errorf("head = %s, want b (a dropped)", f.Data)
	}
}

func TestSendQueue_ZeroLimitIsUnbounded(t *testing.T) {
	q := newSendQueue(0)
	for i := 0; i < 1000; i++ {
		if q.push(textFrame("x")) {
			t.Fatal("unbounded queue dropped a frame")
		}
	}
	if q.size() != 1000 {
		t.Errorf("size = %d, want 1000", q.size())
	}
}

func TestSendQueue_RequeueGoesFirst(t *testing.T) {
	q := newSendQueue(10)
	q.push(textFrame("a"))
	q.push(textFrame("b"))

	f, _ := q.next(context.Background())
	q.requeue(f) // failed write path

	for _, want := range []string{"a", "b"} {
		f, _ := q.next(context.Background())
		if string(f.Data) != want {
			t.Errorf("got %s, want %s", f.Data, want)
		}
	}
}

func TestSendQueue_NextBlocksUntilPush(t *testing.T) {
	q := newSendQueue(10)

	start := time.Now()
	time.AfterFunc(50*time.Millisecond, func() {
		q.push(textFrame("late"))
	})

	f, ok := q.next(context.Background())
	if !ok {
		t.Fatal("next returned !ok")
	}
	if string(f.Data) != "late" {
		t.Errorf("got %s, want late", f.Data)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("next returned after %s, expected it to block ~50ms", elapsed)
	}
}

func TestSendQueue_NextHonorsContext(t *testing.T) {
	q := newSendQueue(10)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, ok := q.next(ctx); ok {
		t.Error("next returned a frame from an empty queue")
	}
}
