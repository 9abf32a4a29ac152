package usecase

import (
	"context"
	"fmt"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/repository"
)

type ExecutionLogUsecase struct {
	repo repository.ExecutionLogRepository
}

func NewExecutionLogUsecase(repo repository.ExecutionLogRepository) *ExecutionLogUsecase {
	return &ExecutionLogUsecase{repo: repo}
}

type ListLogsInput struct {
	UserID     string
	ScheduleID string
	Outcome    domain.Outcome
	Cursor     string
	Limit      int
}

type ListLogsResult struct {
	Logs       []*domain.ExecutionLog
	NextCursor *string
}

func (u *ExecutionLogUsecase) ListLogs(ctx context.Context, input ListLogsInput) (ListLogsResult, error) {
	limit := clampLimit(input.Limit)

	repoInput := repository.ListLogsInput{
		UserID:     input.UserID,
		ScheduleID: input.ScheduleID,
		Outcome:    input.Outcome,
		Limit:      limit + 1,
	}

	if input.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(input.Cursor)
		if err != nil {
			return ListLogsResult{}, domain.ErrInvalidCursor
		}
		repoInput.CursorTime = cursorTime
		repoInput.CursorID = cursorID
	}

	logs, err := u.repo.List(ctx, repoInput)
	if err != nil {
		return ListLogsResult{}, fmt.Errorf("list execution logs: %w", err)
	}

	var nextCursor *string
	if len(logs) == limit+1 {
		last := logs[limit]
		s := encodeCursor(last.ExecutedAt, last.ID)
		nextCursor = &s
		logs = logs[:limit]
	}

	return ListLogsResult{Logs: logs, NextCursor: nextCursor}, nil
}

func (u *ExecutionLogUsecase) DeleteLog(ctx context.Context, id, userID string) error {
	if err := u.repo.Delete(ctx, id, userID); err != nil {
		return fmt.Errorf("delete execution log: %w", err)
	}
	return nil
}

// ClearLogs removes every log entry the user owns and reports how many were
// deleted.
func (u *ExecutionLogUsecase) ClearLogs(ctx context.Context, userID string) (int64, error) {
	n, err := u.repo.DeleteAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("clear execution logs: %w", err)
	}
	return n, nil
}
