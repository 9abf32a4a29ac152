package scheduler

import (
	"sync"
	"time"

	"github.com/hookline/hookline/internal/metrics"
)

// timerRegistry owns at most one live, cancellable timer per schedule id.
// Every mutation path (create, edit, delete, toggle, recovery, re-check)
// goes through arm/cancel/clear under the registry lock — never direct map
// access — so replacing a timer can never leak the one it replaces.
type timerRegistry struct {
	mu     sync.Mutex
	timers map[string]*timerHandle
}

type timerHandle struct {
	timer  *time.Timer
	fireAt time.Time
	daily  bool // intermediate re-check task rather than a direct timer
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{timers: make(map[string]*timerHandle)}
}

// arm stops any prior timer for id and installs a new one firing after delay.
// The callback receives its own handle so it can clear exactly itself.
func (r *timerRegistry) arm(id string, fireAt time.Time, delay time.Duration, daily bool, fn func(*timerHandle)) *timerHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.timers[id]; ok {
		prev.timer.Stop()
	}

	h := &timerHandle{fireAt: fireAt, daily: daily}
	h.timer = time.AfterFunc(delay, func() { fn(h) })
	r.timers[id] = h
	metrics.TimersActive.Set(float64(len(r.timers)))
	return h
}

// cancel stops and removes the timer for id. Idempotent: cancelling an id
// with no live timer is a no-op.
func (r *timerRegistry) cancel(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.timers[id]
	if !ok {
		return
	}
	h.timer.Stop()
	delete(r.timers, id)
	metrics.TimersActive.Set(float64(len(r.timers)))
}

// clear removes h only while it is still the registered handle for id, so a
// timer that already fired cannot evict a newer replacement.
func (r *timerRegistry) clear(id string, h *timerHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.timers[id]; ok && cur == h {
		delete(r.timers, id)
		metrics.TimersActive.Set(float64(len(r.timers)))
	}
}

func (r *timerRegistry) active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

func (r *timerRegistry) handle(id string) (*timerHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.timers[id]
	return h, ok
}
