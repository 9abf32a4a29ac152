package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/metrics"
	"github.com/hookline/hookline/internal/notify"
	"github.com/hookline/hookline/internal/repository"
)

const (
	// maxTimerDelay is the largest delay a 32-bit millisecond timer can
	// represent (~24.8 days). Longer waits go through a daily re-check task
	// that re-arms a direct timer once the remaining time fits.
	maxTimerDelay   = 2147483647 * time.Millisecond
	recheckInterval = 24 * time.Hour
)

// Publisher is the broadcast capability the engine depends on; the full
// subscription machinery lives in the notify package.
type Publisher interface {
	Publish(userID string, ev notify.Event)
}

// Service orchestrates the fire cycle: calculator → timer registry →
// dispatcher → recorder → broadcaster → re-arm. One instance owns all live
// timers for the process.
type Service struct {
	schedules  repository.ScheduleRepository
	dispatcher *Dispatcher
	recorder   *Recorder
	publisher  Publisher
	logger     *slog.Logger

	registry *timerRegistry
	locks    *executionLocks

	now func() time.Time
}

func NewService(
	schedules repository.ScheduleRepository,
	logs repository.ExecutionLogRepository,
	publisher Publisher,
	logger *slog.Logger,
	policy RetryPolicy,
) *Service {
	return &Service{
		schedules:  schedules,
		dispatcher: NewDispatcher(logger, policy),
		recorder:   NewRecorder(schedules, logs, logger),
		publisher:  publisher,
		logger:     logger.With("component", "scheduler"),
		registry:   newTimerRegistry(),
		locks:      newExecutionLocks(),
		now:        time.Now,
	}
}

// Arm computes the schedule's next fire time and installs a timer for it,
// cancelling any prior timer for the same id first. Inactive schedules and
// schedules with no further occurrences end up with no timer. Idempotent.
func (s *Service) Arm(ctx context.Context, sched *domain.Schedule) {
	if !sched.IsActive {
		s.Cancel(sched.ID)
		s.logger.Info("schedule paused, not arming", "schedule_id", sched.ID, "name", sched.Name)
		return
	}

	next, ok := NextExecution(sched, s.now())
	if !ok {
		s.Cancel(sched.ID)
		s.logger.Info("schedule has no further occurrences", "schedule_id", sched.ID, "name", sched.Name)
		return
	}

	if err := s.schedules.UpdateNextExecution(ctx, sched.ID, &next); err != nil {
		s.logger.Error("persist next execution", "schedule_id", sched.ID, "error", err)
	}

	delay := next.Sub(s.now())
	if delay <= 0 {
		// Already due: dispatch directly instead of waiting for a timer tick.
		// The fire cycle itself runs off the caller's goroutine so an HTTP
		// create with a past anchor does not block on the webhook.
		s.Cancel(sched.ID)
		s.logger.Info("schedule due immediately", "schedule_id", sched.ID, "name", sched.Name)
		go s.fireAndRearm(sched)
		return
	}

	if delay < maxTimerDelay {
		s.registry.arm(sched.ID, next, delay, false, func(h *timerHandle) {
			s.onTimer(sched, h)
		})
		s.logger.Info("timer armed",
			"schedule_id", sched.ID, "name", sched.Name, "next", next, "delay", delay)
		return
	}

	s.registry.arm(sched.ID, next, recheckInterval, true, func(h *timerHandle) {
		s.onRecheck(sched, next, h)
	})
	s.logger.Info("delay beyond timer ceiling, daily re-check armed",
		"schedule_id", sched.ID, "name", sched.Name, "next", next)
}

// Cancel clears any timer or re-check task for the id. Idempotent.
func (s *Service) Cancel(id string) {
	s.registry.cancel(id)
}

// TriggerNow bypasses the timer and runs one fire cycle with trigger source
// Manual. Any armed timer for the next scheduled occurrence stays untouched;
// the per-schedule execution lock serializes the manual fire against a
// concurrently firing timer.
func (s *Service) TriggerNow(ctx context.Context, sched *domain.Schedule) DispatchResult {
	return s.fire(ctx, sched, domain.TriggerManual)
}

// InitializeFromStore arms every Pending or Failed schedule at process start.
// Failed schedules are reset to Pending first: failures are assumed transient
// and retryable on the next computed occurrence. One broken schedule never
// stops the others from arming.
func (s *Service) InitializeFromStore(ctx context.Context) error {
	list, err := s.schedules.ListByStatuses(ctx, []domain.Status{domain.StatusPending, domain.StatusFailed})
	if err != nil {
		return fmt.Errorf("load schedules for recovery: %w", err)
	}

	armed := 0
	for _, sched := range list {
		if sched.Status == domain.StatusFailed {
			if err := s.schedules.UpdateStatus(ctx, sched.ID, domain.StatusPending); err != nil {
				s.logger.Error("reset failed schedule to pending", "schedule_id", sched.ID, "error", err)
				continue
			}
			sched.Status = domain.StatusPending
		}
		s.Arm(ctx, sched)
		metrics.SchedulesRecovered.Inc()
		armed++
	}

	s.logger.Info("schedules initialized", "count", armed, "timers", s.registry.active())
	return nil
}

// ActiveTimers reports how many live timers the registry holds.
func (s *Service) ActiveTimers() int {
	return s.registry.active()
}

func (s *Service) onTimer(sched *domain.Schedule, h *timerHandle) {
	s.registry.clear(sched.ID, h)
	s.fireAndRearm(sched)
}

// onRecheck is the daily task standing in for delays the platform timer
// cannot represent. It either fires, hands over to a direct timer, or
// re-schedules itself.
func (s *Service) onRecheck(sched *domain.Schedule, fireAt time.Time, h *timerHandle) {
	s.registry.clear(sched.ID, h)

	remaining := fireAt.Sub(s.now())
	switch {
	case remaining <= 0:
		s.fireAndRearm(sched)

	case remaining < maxTimerDelay:
		ctx := context.Background()
		updated, err := s.schedules.GetForScheduler(ctx, sched.ID)
		if err != nil {
			s.logger.Error("reload schedule during re-check", "schedule_id", sched.ID, "error", err)
			s.registry.arm(sched.ID, fireAt, recheckInterval, true, func(h2 *timerHandle) {
				s.onRecheck(sched, fireAt, h2)
			})
			return
		}
		s.Arm(ctx, updated)

	default:
		s.registry.arm(sched.ID, fireAt, recheckInterval, true, func(h2 *timerHandle) {
			s.onRecheck(sched, fireAt, h2)
		})
	}
}

// fireAndRearm runs one fire cycle and, for recurring schedules, reloads the
// persisted state and arms the next occurrence. The reload must see any
// concurrent edit (a pause, a new recurrence); a reload failure is logged so
// the schedule never silently drops out of rotation.
func (s *Service) fireAndRearm(sched *domain.Schedule) {
	ctx := context.Background()

	res := s.fire(ctx, sched, domain.TriggerScheduled)
	if res.Skipped || !sched.IsRecurring() {
		return
	}

	updated, err := s.schedules.GetForScheduler(ctx, sched.ID)
	if err != nil {
		s.logger.Error("reload schedule for re-arm", "schedule_id", sched.ID, "error", err)
		return
	}
	s.Arm(ctx, updated)
}

// fire runs dispatch → record → broadcast under the per-schedule execution
// lock. A paused schedule is skipped: no dispatch, no state change, no log
// entry.
func (s *Service) fire(ctx context.Context, sched *domain.Schedule, source domain.TriggerSource) DispatchResult {
	lock := s.locks.forSchedule(sched.ID)
	lock.Lock()
	defer lock.Unlock()

	if !sched.IsActive {
		s.logger.Info("skipping paused schedule", "schedule_id", sched.ID, "name", sched.Name)
		return DispatchResult{Skipped: true}
	}

	s.logger.Info("executing webhook",
		"schedule_id", sched.ID, "name", sched.Name,
		"method", sched.HTTPMethod, "url", sched.WebhookURL, "trigger", source)

	res := s.dispatcher.Dispatch(ctx, sched)

	outcome := "failure"
	if res.Success {
		outcome = "success"
	}
	metrics.WebhookDispatchDuration.WithLabelValues(outcome).Observe(res.Duration.Seconds())
	metrics.WebhookDispatchesTotal.WithLabelValues(outcome, string(source)).Inc()

	updated := s.recorder.Record(ctx, sched, res, source)

	evType := notify.EventScheduleExecuted
	if res.Err != nil {
		evType = notify.EventScheduleUpdated
	}
	if s.publisher != nil {
		s.publisher.Publish(sched.UserID, notify.Event{
			Type:           evType,
			ScheduleID:     sched.ID,
			Status:         updated.Status,
			LastExecuted:   updated.LastExecuted,
			ExecutionCount: updated.ExecutionCount,
			NextExecution:  updated.NextExecution,
			Frequency:      updated.Frequency,
		})
	}

	if res.Success {
		s.logger.Info("webhook executed",
			"schedule_id", sched.ID, "status", statusOrZero(res.StatusCode), "duration", res.Duration)
	} else {
		s.logger.Warn("webhook failed",
			"schedule_id", sched.ID, "status", statusOrZero(res.StatusCode), "error", res.Err)
	}
	return res
}

// executionLocks hands out one mutex per schedule id so at most one dispatch
// is in flight per schedule at a time.
type executionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newExecutionLocks() *executionLocks {
	return &executionLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *executionLocks) forSchedule(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.locks[id]; ok {
		return m
	}
	m := &sync.Mutex{}
	l.locks[id] = m
	return m
}
