package repository

import (
	"context"
	"time"

	"github.com/hookline/hookline/internal/domain"
)

type ListLogsInput struct {
	UserID     string
	ScheduleID string         // empty = logs for all of the user's schedules
	Outcome    domain.Outcome // empty = all outcomes
	CursorTime *time.Time     // cursor on (executed_at DESC, id DESC)
	CursorID   string
	Limit      int
}

type ExecutionLogRepository interface {
	// Append writes one immutable log entry. Entries are denormalized
	// snapshots and survive schedule edits and deletion.
	Append(ctx context.Context, e *domain.ExecutionLog) (*domain.ExecutionLog, error)

	List(ctx context.Context, input ListLogsInput) ([]*domain.ExecutionLog, error)
	Delete(ctx context.Context, id, userID string) error
	DeleteAll(ctx context.Context, userID string) (int64, error)
}
