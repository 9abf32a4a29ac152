package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/repository"
)

const scheduleColumns = `id, user_id, name, webhook_url, http_method, json_body,
	       auth_type, auth_token, auth_api_key_name, auth_api_key_value,
	       auth_username, auth_password, custom_headers,
	       frequency, interval, schedule_at, cron_expr,
	       use_specific_time, specific_hour, specific_minute,
	       days_of_week, day_of_month,
	       status, is_active, last_executed, next_execution, execution_count,
	       timeout_seconds, created_at, updated_at`

type ScheduleRepository struct {
	pool *pgxpool.Pool
}

func NewScheduleRepository(pool *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	query := `
		INSERT INTO schedules (
			user_id, name, webhook_url, http_method, json_body,
			auth_type, auth_token, auth_api_key_name, auth_api_key_value,
			auth_username, auth_password, custom_headers,
			frequency, interval, schedule_at, cron_expr,
			use_specific_time, specific_hour, specific_minute,
			days_of_week, day_of_month,
			status, is_active, next_execution, timeout_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		          $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		RETURNING ` + scheduleColumns

	row := r.pool.QueryRow(ctx, query,
		s.UserID, s.Name, s.WebhookURL, s.HTTPMethod, s.JSONBody,
		s.AuthType, s.AuthToken, s.AuthAPIKeyName, s.AuthAPIKeyValue,
		s.AuthUsername, s.AuthPassword, s.CustomHeaders,
		s.Frequency, s.Interval, s.ScheduleAt, s.CronExpr,
		s.UseSpecificTime, s.SpecificHour, s.SpecificMinute,
		s.DaysOfWeek, s.DayOfMonth,
		s.Status, s.IsActive, s.NextExecution, s.TimeoutSeconds,
	)

	created, err := scanSchedule(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrScheduleNameConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id, userID string) (*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE id = $1 AND user_id = $2`

	row := r.pool.QueryRow(ctx, query, id, userID)
	return scanSchedule(row)
}

func (r *ScheduleRepository) List(ctx context.Context, input repository.ListSchedulesInput) ([]*domain.Schedule, error) {
	args := []any{input.UserID}
	where := []string{"user_id = $1"}

	if input.Status != "" {
		args = append(args, input.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if input.Frequency != "" {
		args = append(args, input.Frequency)
		where = append(where, fmt.Sprintf("frequency = $%d", len(args)))
	}
	if input.CursorTime != nil {
		args = append(args, *input.CursorTime, input.CursorID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, input.Limit)

	query := fmt.Sprintf(`SELECT `+scheduleColumns+`
		FROM schedules
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`,
		strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}

func (r *ScheduleRepository) Update(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	query := `
		UPDATE schedules
		SET    name              = $3,
		       webhook_url       = $4,
		       http_method       = $5,
		       json_body         = $6,
		       auth_type         = $7,
		       auth_token        = $8,
		       auth_api_key_name = $9,
		       auth_api_key_value = $10,
		       auth_username     = $11,
		       auth_password     = $12,
		       custom_headers    = $13,
		       frequency         = $14,
		       interval          = $15,
		       schedule_at       = $16,
		       cron_expr         = $17,
		       use_specific_time = $18,
		       specific_hour     = $19,
		       specific_minute   = $20,
		       days_of_week      = $21,
		       day_of_month      = $22,
		       status            = $23,
		       is_active         = $24,
		       next_execution    = $25,
		       timeout_seconds   = $26,
		       updated_at        = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + scheduleColumns

	row := r.pool.QueryRow(ctx, query,
		s.ID, s.UserID, s.Name, s.WebhookURL, s.HTTPMethod, s.JSONBody,
		s.AuthType, s.AuthToken, s.AuthAPIKeyName, s.AuthAPIKeyValue,
		s.AuthUsername, s.AuthPassword, s.CustomHeaders,
		s.Frequency, s.Interval, s.ScheduleAt, s.CronExpr,
		s.UseSpecificTime, s.SpecificHour, s.SpecificMinute,
		s.DaysOfWeek, s.DayOfMonth,
		s.Status, s.IsActive, s.NextExecution, s.TimeoutSeconds,
	)

	updated, err := scanSchedule(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrScheduleNameConflict
		}
		return nil, err
	}
	return updated, nil
}

func (r *ScheduleRepository) SetActive(ctx context.Context, id, userID string, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE schedules SET is_active = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`, id, userID, active)
	if err != nil {
		return fmt.Errorf("set schedule active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM schedules WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func (r *ScheduleRepository) GetForScheduler(ctx context.Context, id string) (*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	return scanSchedule(row)
}

func (r *ScheduleRepository) ListByStatuses(ctx context.Context, statuses []domain.Status) ([]*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE status = ANY($1)
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, statuses)
	if err != nil {
		return nil, fmt.Errorf("list schedules by status: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}

func (r *ScheduleRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE schedules SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update schedule status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func (r *ScheduleRepository) UpdateNextExecution(ctx context.Context, id string, next *time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE schedules SET next_execution = $2, updated_at = NOW() WHERE id = $1`, id, next)
	if err != nil {
		return fmt.Errorf("update next execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

func (r *ScheduleRepository) ApplyExecution(ctx context.Context, id string, status domain.Status, executedAt time.Time, next *time.Time) (*domain.Schedule, error) {
	// One statement so the count increment can never race with a concurrent fire.
	query := `
		UPDATE schedules
		SET    status          = $2,
		       last_executed   = $3,
		       next_execution  = $4,
		       execution_count = execution_count + 1,
		       updated_at      = NOW()
		WHERE id = $1
		RETURNING ` + scheduleColumns

	row := r.pool.QueryRow(ctx, query, id, status, executedAt, next)
	return scanSchedule(row)
}

// pgx.Row and pgx.Rows both implement this.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*domain.Schedule, error) {
	var s domain.Schedule
	err := row.Scan(
		&s.ID, &s.UserID, &s.Name, &s.WebhookURL, &s.HTTPMethod, &s.JSONBody,
		&s.AuthType, &s.AuthToken, &s.AuthAPIKeyName, &s.AuthAPIKeyValue,
		&s.AuthUsername, &s.AuthPassword, &s.CustomHeaders,
		&s.Frequency, &s.Interval, &s.ScheduleAt, &s.CronExpr,
		&s.UseSpecificTime, &s.SpecificHour, &s.SpecificMinute,
		&s.DaysOfWeek, &s.DayOfMonth,
		&s.Status, &s.IsActive, &s.LastExecuted, &s.NextExecution, &s.ExecutionCount,
		&s.TimeoutSeconds, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	return &s, nil
}
