package repository

import (
	"context"
	"time"

	"github.com/hookline/hookline/internal/domain"
)

type ListSchedulesInput struct {
	UserID     string
	Status     domain.Status    // empty = all statuses
	Frequency  domain.Frequency // empty = all frequencies
	CursorTime *time.Time       // cursor on (created_at DESC, id DESC)
	CursorID   string
	Limit      int
}

// ScheduleRepository is what the engine and the CRUD layer need from the
// store. The engine depends on the interface so tests can run against an
// in-memory fake and the DB can be swapped without touching the scheduler.
type ScheduleRepository interface {
	Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	GetByID(ctx context.Context, id, userID string) (*domain.Schedule, error)
	List(ctx context.Context, input ListSchedulesInput) ([]*domain.Schedule, error)
	Update(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	SetActive(ctx context.Context, id, userID string, active bool) error
	Delete(ctx context.Context, id, userID string) error

	// Engine-side operations: not scoped to an owner because timers fire
	// outside any user request.

	// GetForScheduler reloads a schedule's current persisted state before a
	// recurring schedule is re-armed, so the re-arm sees concurrent edits.
	GetForScheduler(ctx context.Context, id string) (*domain.Schedule, error)

	// ListByStatuses feeds process-start recovery.
	ListByStatuses(ctx context.Context, statuses []domain.Status) ([]*domain.Schedule, error)

	UpdateStatus(ctx context.Context, id string, status domain.Status) error
	UpdateNextExecution(ctx context.Context, id string, next *time.Time) error

	// ApplyExecution records a completed dispatch attempt sequence in one
	// statement: status, last_executed, execution_count+1 and the new
	// next_execution. Returns the updated schedule.
	ApplyExecution(ctx context.Context, id string, status domain.Status, executedAt time.Time, next *time.Time) (*domain.Schedule, error)
}
