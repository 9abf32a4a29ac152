package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/repository"
)

const logColumns = `id, schedule_id, user_id, schedule_name, webhook_url, http_method,
	       outcome, response_status, response_body, error_message,
	       duration_ms, triggered_by, executed_at`

type ExecutionLogRepository struct {
	pool *pgxpool.Pool
}

func NewExecutionLogRepository(pool *pgxpool.Pool) *ExecutionLogRepository {
	return &ExecutionLogRepository{pool: pool}
}

func (r *ExecutionLogRepository) Append(ctx context.Context, e *domain.ExecutionLog) (*domain.ExecutionLog, error) {
	query := `
		INSERT INTO execution_logs (
			schedule_id, user_id, schedule_name, webhook_url, http_method,
			outcome, response_status, response_body, error_message,
			duration_ms, triggered_by, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + logColumns

	row := r.pool.QueryRow(ctx, query,
		e.ScheduleID, e.UserID, e.ScheduleName, e.WebhookURL, e.HTTPMethod,
		e.Outcome, e.ResponseStatus, e.ResponseBody, e.ErrorMessage,
		e.DurationMS, e.TriggeredBy, e.ExecutedAt,
	)
	return scanLog(row)
}

func (r *ExecutionLogRepository) List(ctx context.Context, input repository.ListLogsInput) ([]*domain.ExecutionLog, error) {
	args := []any{input.UserID}
	where := []string{"user_id = $1"}

	if input.ScheduleID != "" {
		args = append(args, input.ScheduleID)
		where = append(where, fmt.Sprintf("schedule_id = $%d", len(args)))
	}
	if input.Outcome != "" {
		args = append(args, input.Outcome)
		where = append(where, fmt.Sprintf("outcome = $%d", len(args)))
	}
	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(executed_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`SELECT `+logColumns+`
		FROM execution_logs
		WHERE %s
		ORDER BY executed_at DESC, id DESC
		LIMIT $%d`,
		strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.ExecutionLog
	for rows.Next() {
		e, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, e)
	}
	return logs, nil
}

func (r *ExecutionLogRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM execution_logs WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete execution log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLogNotFound
	}
	return nil
}

func (r *ExecutionLogRepository) DeleteAll(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM execution_logs WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete all execution logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanLog(row rowScanner) (*domain.ExecutionLog, error) {
	var e domain.ExecutionLog
	err := row.Scan(
		&e.ID, &e.ScheduleID, &e.UserID, &e.ScheduleName, &e.WebhookURL, &e.HTTPMethod,
		&e.Outcome, &e.ResponseStatus, &e.ResponseBody, &e.ErrorMessage,
		&e.DurationMS, &e.TriggeredBy, &e.ExecutedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLogNotFound
		}
		return nil, fmt.Errorf("scan execution log: %w", err)
	}
	return &e, nil
}
