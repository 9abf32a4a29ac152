package scheduler

import (
	"sync"
	"testing"
	"time"
)

func TestRegistry_ArmReplacesPriorTimer(t *testing.T) {
	r := newTimerRegistry()
	var mu sync.Mutex
	var fired []string

	record := func(label string) func(*timerHandle) {
		return func(*timerHandle) {
			mu.Lock()
			fired = append(fired, label)
			mu.Unlock()
		}
	}

	r.arm("s1", time.Now().Add(time.Hour), 10*time.Millisecond, false, record("first"))
	r.arm("s1", time.Now().Add(time.Hour), 10*time.Millisecond, false, record("second"))

	if got := r.active(); got != 1 {
		t.Fatalf("active = %d, want 1 after re-arm", got)
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 || fired[0] != "second" {
		t.Errorf("fired = %v, want only the replacement to fire", fired)
	}
}

func TestRegistry_CancelIsIdempotent(t *testing.T) {
	r := newTimerRegistry()
	r.arm("s1", time.Now().Add(time.Hour), time.Hour, false, func(*timerHandle) {})

	r.cancel("s1")
	r.cancel("s1")
	r.cancel("never-existed")

	if got := r.active(); got != 0 {
		t.Errorf("active = %d, want 0", got)
	}
}

func TestRegistry_ClearOnlyRemovesOwnHandle(t *testing.T) {
	r := newTimerRegistry()
	old := r.arm("s1", time.Now().Add(time.Hour), time.Hour, false, func(*timerHandle) {})
	replacement := r.arm("s1", time.Now().Add(time.Hour), time.Hour, false, func(*timerHandle) {})

	r.clear("s1", old)
	if h, ok := r.handle("s1"); !ok || h != replacement {
		t.Error("clearing a stale handle must not evict the replacement")
	}

	r.clear("s1", replacement)
	if _, ok := r.handle("s1"); ok {
		t.Error("clearing the current handle should remove it")
	}
}

func TestRegistry_HandleCarriesFireMetadata(t *testing.T) {
	r := newTimerRegistry()
	at := time.Now().Add(48 * time.Hour)
	r.arm("s1", at, time.Hour, true, func(*timerHandle) {})

	h, ok := r.handle("s1")
	if !ok {
		t.Fatal("no handle registered")
	}
	if !h.fireAt.Equal(at) {
		t.Errorf("fireAt = %v, want %v", h.fireAt, at)
	}
	if !h.daily {
		t.Error("daily flag lost")
	}
	r.cancel("s1")
}
