package gwchat

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func waitForStatus(t *testing.T, tr *Tracker, id string, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, ok := tr.Status(id); ok && got == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	got, ok := tr.Status(id)
	t.Fatalf("message %s never reached %s (status=%v tracked=%v)", id, want, got, ok)
}

func TestTracker_Lifecycle(t *testing.T) {
	tr := NewTracker(time.Minute)
	defer tr.Stop()

	if err := tr.Track("m1"); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if got, _ := tr.Status("m1"); got != StatusSending {
		t.Fatalf("initial status = %s, want %s", got, StatusSending)
	}

	for _, next := range []Status{StatusSent, StatusDelivered, StatusRead} {
		if !tr.Update("m1", next) {
			t.Fatalf("Update to %s rejected", next)
		}
		if got, _ := tr.Status("m1"); got != next {
			t.Fatalf("status = %s, want %s", got, next)
		}
	}

	e, ok := tr.Get("m1")
	if !ok {
		t.Fatal("Get returned no entry")
	}
	if e.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", e.RetryCount)
	}
	if e.CreatedAt.IsZero() || e.UpdatedAt.Before(e.CreatedAt) {
		t.Errorf("timestamps not ordered: created=%v updated=%v", e.CreatedAt, e.UpdatedAt)
	}
}

func TestTracker_RejectsBackwardsUpdates(t *testing.T) {
	tr := NewTracker(time.Minute)
	defer tr.Stop()

	tr.Track("m1")
	tr.Update("m1", StatusRead)

	for _, back := range []Status{StatusSending, StatusSent, StatusDelivered, StatusRead} {
		if tr.Update("m1", back) {
			t.Errorf("Update to %s accepted after read", back)
		}
	}
	if got, _ := tr.Status("m1"); got != StatusRead {
		t.Fatalf("status = %s, want %s", got, StatusRead)
	}
}

func TestTracker_SkippedStatesAreAllowed(t *testing.T) {
	tr := NewTracker(time.Minute)
	defer tr.Stop()

	// A slow status stream may deliver read without the intermediate
	// delivered; forward jumps are fine.
	tr.Track("m1")
	if !tr.Update("m1", StatusRead) {
		t.Fatal("Update sending -> read rejected")
	}
}

func TestTracker_FailOnlyFromEarlyStates(t *testing.T) {
	tr := NewTracker(time.Minute)
	defer tr.Stop()

	tr.Track("sending")
	if !tr.Fail("sending", "test") {
		t.Error("Fail from sending rejected")
	}

	tr.Track("sent")
	tr.Update("sent", StatusSent)
	if !tr.Fail("sent", "test") {
		t.Error("Fail from sent rejected")
	}

	tr.Track("delivered")
	tr.Update("delivered", StatusDelivered)
	if tr.Fail("delivered", "test") {
		t.Error("Fail from delivered accepted")
	}
	if got, _ := tr.Status("delivered"); got != StatusDelivered {
		t.Errorf("status = %s, want %s", got, StatusDelivered)
	}

	tr.Track("read")
	tr.Update("read", StatusRead)
	if tr.Fail("read", "test") {
		t.Error("Fail from read accepted")
	}
}

func TestTracker_FailedIsTerminal(t *testing.T) {
	tr := NewTracker(time.Minute)
	defer tr.Stop()

	tr.Track("m1")
	tr.Fail("m1", "test")

	for _, next := range []Status{StatusSending, StatusSent, StatusDelivered, StatusRead} {
		if tr.Update("m1", next) {
			t.Errorf("Update to %s accepted after failed", next)
		}
	}
	if tr.Fail("m1", "again") {
		t.Error("second Fail reported a change")
	}
	if got, _ := tr.Status("m1"); got != StatusFailed {
		t.Fatalf("status = %s, want %s", got, StatusFailed)
	}
}

func TestTracker_TimeoutFiresExactlyOnce(t *testing.T) {
	tr := NewTracker(30 * time.Millisecond)
	defer tr.Stop()

	var mu sync.Mutex
	var failures []Update
	tr.OnUpdate(func(u Update) {
		if u.To == StatusFailed {
			mu.Lock()
			failures = append(failures, u)
			mu.Unlock()
		}
	})

	tr.Track("m1")
	waitForStatus(t, tr, "m1", StatusFailed)
	time.Sleep(80 * time.Millisecond) // room for a buggy second firing

	mu.Lock()
	defer mu.Unlock()
	if len(failures) != 1 {
		t.Fatalf("got %d failure updates, want exactly 1", len(failures))
	}
	if failures[0].Reason != "timeout" {
		t.Errorf("failure reason = %q, want %q", failures[0].Reason, "timeout")
	}
}

func TestTracker_DeliveredStopsTimer(t *testing.T) {
	tr := NewTracker(30 * time.Millisecond)
	defer tr.Stop()

	var mu sync.Mutex
	failed := 0
	tr.OnUpdate(func(u Update) {
		if u.To == StatusFailed {
			mu.Lock()
			failed++
			mu.Unlock()
		}
	})

	tr.Track("m1")
	tr.Update("m1", StatusSent)
	tr.Update("m1", StatusDelivered)

	time.Sleep(80 * time.Millisecond)

	if got, _ := tr.Status("m1"); got != StatusDelivered {
		t.Fatalf("status = %s, want %s", got, StatusDelivered)
	}
	mu.Lock()
	defer mu.Unlock()
	if failed != 0 {
		t.Fatalf("timeout fired %d times after delivery", failed)
	}
}

func TestTracker_RetryCycle(t *testing.T) {
	tr := NewTracker(25 * time.Millisecond)
	defer tr.Stop()

	tr.Track("m1")
	waitForStatus(t, tr, "m1", StatusFailed)

	n, err := tr.Retry("m1")
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if n != 1 {
		t.Fatalf("retry count = %d, want 1", n)
	}
	if got, _ := tr.Status("m1"); got != StatusSending {
		t.Fatalf("status after retry = %s, want %s", got, StatusSending)
	}

	// The retry re-arms the delivery timer.
	waitForStatus(t, tr, "m1", StatusFailed)
	if n, err = tr.Retry("m1"); err != nil || n != 2 {
		t.Fatalf("second Retry = (%d, %v), want (2, nil)", n, err)
	}
}

func TestTracker_RetryRequiresFailed(t *testing.T) {
	tr := NewTracker(time.Minute)
	defer tr.Stop()

	tr.Track("m1")
	if _, err := tr.Retry("m1"); err == nil {
		t.Error("Retry accepted while sending")
	}
	tr.Update("m1", StatusDelivered)
	if _, err := tr.Retry("m1"); err == nil {
		t.Error("Retry accepted while delivered")
	}
	if _, err := tr.Retry("nope"); err == nil {
		t.Error("Retry accepted unknown id")
	}
}

func TestTracker_UnknownMessage(t *testing.T) {
	tr := NewTracker(time.Minute)
	defer tr.Stop()

	if tr.Update("nope", StatusSent) {
		t.Error("Update accepted unknown id")
	}
	if tr.Fail("nope", "test") {
		t.Error("Fail accepted unknown id")
	}
	if _, ok := tr.Status("nope"); ok {
		t.Error("Status found unknown id")
	}
	if _, ok := tr.Get("nope"); ok {
		t.Error("Get found unknown id")
	}
}

func TestTracker_DuplicateTrack(t *testing.T) {
	tr := NewTracker(time.Minute)
	defer tr.Stop()

	tr.Track("m1")
	if err := tr.Track("m1"); err == nil {
		t.Fatal("duplicate Track accepted")
	}
}

func TestTracker_EntriesOldestFirst(t *testing.T) {
	tr := NewTracker(time.Minute)
	defer tr.Stop()

	for _, id := range []string{"a", "b", "c"} {
		tr.Track(id)
	}
	tr.Update("b", StatusSent)

	entries := tr.Entries()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, want := range []string{"a", "b", "c"} {
		if entries[i].ID != want {
			t.Errorf("entries[%d].ID = %s, want %s", i, entries[i].ID, want)
		}
	}
	if entries[1].Status != StatusSent {
		t.Errorf("entries[1].Status = %s, want %s", entries[1].Status, StatusSent)
	}
}

func TestTracker_EvictsOldestAtCapacity(t *testing.T) {
	tr := NewTracker(time.Minute)
	defer tr.Stop()

	for i := 0; i < trackerCapacity+1; i++ {
		if err := tr.Track(msgID(i)); err != nil {
			t.Fatalf("Track(%d): %v", i, err)
		}
	}

	if _, ok := tr.Status(msgID(0)); ok {
		t.Error("oldest message survived eviction")
	}
	entries := tr.Entries()
	if len(entries) != trackerCapacity {
		t.Fatalf("got %d entries, want %d", len(entries), trackerCapacity)
	}
	if entries[0].ID != msgID(1) {
		t.Errorf("oldest entry = %s, want %s", entries[0].ID, msgID(1))
	}
	if entries[len(entries)-1].ID != msgID(trackerCapacity) {
		t.Errorf("newest entry = %s, want %s", entries[len(entries)-1].ID, msgID(trackerCapacity))
	}
}

func TestTracker_CallbackMayUseTracker(t *testing.T) {
	tr := NewTracker(time.Minute)
	defer tr.Stop()

	done := make(chan Status, 1)
	tr.OnUpdate(func(u Update) {
		// Callbacks run outside the tracker lock, so reads are safe here.
		got, _ := tr.Status(u.ID)
		done <- got
	})

	tr.Track("m1")
	tr.Update("m1", StatusSent)

	select {
	case got := <-done:
		if got != StatusSent {
			t.Fatalf("status inside callback = %s, want %s", got, StatusSent)
		}
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}
}

func TestTracker_StopDisarmsTimers(t *testing.T) {
	tr := NewTracker(30 * time.Millisecond)

	tr.Track("m1")
	tr.Stop()
	time.Sleep(80 * time.Millisecond)

	if got, _ := tr.Status("m1"); got != StatusSending {
		t.Fatalf("status after Stop = %s, want %s", got, StatusSending)
	}
}

func msgID(i int) string {
	return fmt.Sprintf("msg-%03d", i)
}
