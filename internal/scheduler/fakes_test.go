package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/notify"
	"github.com/hookline/hookline/internal/repository"
)

// fakeScheduleRepo is an in-memory ScheduleRepository for engine tests.
// Individual operations can be made to fail through the err fields.
type fakeScheduleRepo struct {
	mu        sync.Mutex
	schedules map[string]*domain.Schedule

	applyErr  error
	reloadErr error
	updateErr error
}

func newFakeScheduleRepo(seed ...*domain.Schedule) *fakeScheduleRepo {
	r := &fakeScheduleRepo{schedules: make(map[string]*domain.Schedule)}
	for _, s := range seed {
		cp := *s
		r.schedules[s.ID] = &cp
	}
	return r
}

func (r *fakeScheduleRepo) get(id string) *domain.Schedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (r *fakeScheduleRepo) Create(_ context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.schedules[s.ID] = &cp
	out := cp
	return &out, nil
}

func (r *fakeScheduleRepo) GetByID(_ context.Context, id, userID string) (*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.UserID != userID {
		return nil, domain.ErrScheduleNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeScheduleRepo) List(_ context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Schedule
	for _, s := range r.schedules {
		if s.UserID != input.UserID {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeScheduleRepo) Update(_ context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[s.ID]; !ok {
		return nil, domain.ErrScheduleNotFound
	}
	cp := *s
	r.schedules[s.ID] = &cp
	out := cp
	return &out, nil
}

func (r *fakeScheduleRepo) SetActive(_ context.Context, id, userID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.UserID != userID {
		return domain.ErrScheduleNotFound
	}
	s.IsActive = active
	return nil
}

func (r *fakeScheduleRepo) Delete(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.UserID != userID {
		return domain.ErrScheduleNotFound
	}
	delete(r.schedules, id)
	return nil
}

func (r *fakeScheduleRepo) GetForScheduler(_ context.Context, id string) (*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reloadErr != nil {
		return nil, r.reloadErr
	}
	s, ok := r.schedules[id]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeScheduleRepo) ListByStatuses(_ context.Context, statuses []domain.Status) ([]*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Schedule
	for _, s := range r.schedules {
		for _, st := range statuses {
			if s.Status == st {
				cp := *s
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) UpdateStatus(_ context.Context, id string, status domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	s, ok := r.schedules[id]
	if !ok {
		return domain.ErrScheduleNotFound
	}
	s.Status = status
	return nil
}

func (r *fakeScheduleRepo) UpdateNextExecution(_ context.Context, id string, next *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	s, ok := r.schedules[id]
	if !ok {
		return domain.ErrScheduleNotFound
	}
	s.NextExecution = next
	return nil
}

func (r *fakeScheduleRepo) ApplyExecution(_ context.Context, id string, status domain.Status, executedAt time.Time, next *time.Time) (*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applyErr != nil {
		return nil, r.applyErr
	}
	s, ok := r.schedules[id]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	s.Status = status
	s.LastExecuted = &executedAt
	s.ExecutionCount++
	s.NextExecution = next
	cp := *s
	return &cp, nil
}

// fakeLogRepo records appended entries in memory.
type fakeLogRepo struct {
	mu        sync.Mutex
	entries   []*domain.ExecutionLog
	appendErr error
}

func (r *fakeLogRepo) Append(_ context.Context, e *domain.ExecutionLog) (*domain.ExecutionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return nil, r.appendErr
	}
	cp := *e
	r.entries = append(r.entries, &cp)
	return &cp, nil
}

func (r *fakeLogRepo) List(_ context.Context, input repository.ListLogsInput) ([]*domain.ExecutionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ExecutionLog
	for _, e := range r.entries {
		if e.UserID != input.UserID {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeLogRepo) Delete(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.ID == id && e.UserID == userID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return domain.ErrLogNotFound
}

func (r *fakeLogRepo) DeleteAll(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*domain.ExecutionLog
	var removed int64
	for _, e := range r.entries {
		if e.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed, nil
}

func (r *fakeLogRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *fakeLogRepo) last() *domain.ExecutionLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return nil
	}
	return r.entries[len(r.entries)-1]
}

// fakePublisher captures broadcast events.
type fakePublisher struct {
	mu     sync.Mutex
	users  []string
	events []notify.Event
}

func (p *fakePublisher) Publish(userID string, ev notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, userID)
	p.events = append(p.events, ev)
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *fakePublisher) last() (string, notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return "", notify.Event{}
	}
	return p.users[len(p.users)-1], p.events[len(p.events)-1]
}
