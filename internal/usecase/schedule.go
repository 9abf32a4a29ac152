package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/repository"
	"github.com/hookline/hookline/internal/scheduler"
)

// Engine is the slice of the scheduler the CRUD layer drives: every mutation
// that changes timing has to re-arm or cancel the schedule's timer.
type Engine interface {
	Arm(ctx context.Context, s *domain.Schedule)
	Cancel(id string)
	TriggerNow(ctx context.Context, s *domain.Schedule) scheduler.DispatchResult
}

type ScheduleUsecase struct {
	repo   repository.ScheduleRepository
	engine Engine
}

func NewScheduleUsecase(repo repository.ScheduleRepository, engine Engine) *ScheduleUsecase {
	return &ScheduleUsecase{repo: repo, engine: engine}
}

type ScheduleTimingInput struct {
	Frequency       domain.Frequency
	Interval        int
	ScheduleAt      time.Time
	CronExpr        string
	UseSpecificTime bool
	SpecificHour    *int
	SpecificMinute  *int
	DaysOfWeek      []int
	DayOfMonth      *int
}

type CreateScheduleInput struct {
	UserID string
	Name   string

	WebhookURL string
	HTTPMethod string
	JSONBody   string

	AuthType        domain.AuthType
	AuthToken       string
	AuthAPIKeyName  string
	AuthAPIKeyValue string
	AuthUsername    string
	AuthPassword    string

	CustomHeaders map[string]string

	Timing         ScheduleTimingInput
	TimeoutSeconds int
}

func (u *ScheduleUsecase) CreateSchedule(ctx context.Context, input CreateScheduleInput) (*domain.Schedule, error) {
	if input.Timing.CronExpr != "" {
		if _, err := cron.ParseStandard(input.Timing.CronExpr); err != nil {
			return nil, domain.ErrInvalidCronExpr
		}
	}

	if input.HTTPMethod == "" {
		input.HTTPMethod = "POST"
	}
	if input.AuthType == "" {
		input.AuthType = domain.AuthNone
	}
	if input.TimeoutSeconds == 0 {
		input.TimeoutSeconds = domain.DefaultTimeoutSeconds
	}
	if input.Timing.Interval <= 0 {
		input.Timing.Interval = 1
	}

	headers, err := encodeHeaders(input.CustomHeaders)
	if err != nil {
		return nil, fmt.Errorf("encode custom headers: %w", err)
	}

	s := &domain.Schedule{
		UserID:          input.UserID,
		Name:            input.Name,
		WebhookURL:      input.WebhookURL,
		HTTPMethod:      input.HTTPMethod,
		JSONBody:        input.JSONBody,
		AuthType:        input.AuthType,
		AuthToken:       input.AuthToken,
		AuthAPIKeyName:  input.AuthAPIKeyName,
		AuthAPIKeyValue: input.AuthAPIKeyValue,
		AuthUsername:    input.AuthUsername,
		AuthPassword:    input.AuthPassword,
		CustomHeaders:   headers,
		Frequency:       input.Timing.Frequency,
		Interval:        input.Timing.Interval,
		ScheduleAt:      input.Timing.ScheduleAt,
		CronExpr:        input.Timing.CronExpr,
		UseSpecificTime: input.Timing.UseSpecificTime,
		SpecificHour:    input.Timing.SpecificHour,
		SpecificMinute:  input.Timing.SpecificMinute,
		DaysOfWeek:      input.Timing.DaysOfWeek,
		DayOfMonth:      input.Timing.DayOfMonth,
		Status:          domain.StatusPending,
		IsActive:        true,
		TimeoutSeconds:  input.TimeoutSeconds,
	}

	if next, ok := scheduler.NextExecution(s, time.Now()); ok {
		s.NextExecution = &next
	}

	created, err := u.repo.Create(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}

	u.engine.Arm(ctx, created)
	return created, nil
}

func (u *ScheduleUsecase) GetSchedule(ctx context.Context, id, userID string) (*domain.Schedule, error) {
	s, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, nil
}

type UpdateScheduleInput struct {
	ID string
	CreateScheduleInput
}

// UpdateSchedule replaces the schedule's definition. The timer is cancelled
// before the write and re-armed from the persisted result, so the old timing
// can never fire a stale definition.
func (u *ScheduleUsecase) UpdateSchedule(ctx context.Context, input UpdateScheduleInput) (*domain.Schedule, error) {
	if input.Timing.CronExpr != "" {
		if _, err := cron.ParseStandard(input.Timing.CronExpr); err != nil {
			return nil, domain.ErrInvalidCronExpr
		}
	}

	current, err := u.repo.GetByID(ctx, input.ID, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	if input.HTTPMethod == "" {
		input.HTTPMethod = current.HTTPMethod
	}
	if input.AuthType == "" {
		input.AuthType = current.AuthType
	}
	if input.TimeoutSeconds == 0 {
		input.TimeoutSeconds = current.TimeoutSeconds
	}
	if input.Timing.Interval <= 0 {
		input.Timing.Interval = 1
	}

	headers, err := encodeHeaders(input.CustomHeaders)
	if err != nil {
		return nil, fmt.Errorf("encode custom headers: %w", err)
	}

	u.engine.Cancel(input.ID)

	next := *current
	next.Name = input.Name
	next.WebhookURL = input.WebhookURL
	next.HTTPMethod = input.HTTPMethod
	next.JSONBody = input.JSONBody
	next.AuthType = input.AuthType
	next.AuthToken = input.AuthToken
	next.AuthAPIKeyName = input.AuthAPIKeyName
	next.AuthAPIKeyValue = input.AuthAPIKeyValue
	next.AuthUsername = input.AuthUsername
	next.AuthPassword = input.AuthPassword
	next.CustomHeaders = headers
	next.Frequency = input.Timing.Frequency
	next.Interval = input.Timing.Interval
	next.ScheduleAt = input.Timing.ScheduleAt
	next.CronExpr = input.Timing.CronExpr
	next.UseSpecificTime = input.Timing.UseSpecificTime
	next.SpecificHour = input.Timing.SpecificHour
	next.SpecificMinute = input.Timing.SpecificMinute
	next.DaysOfWeek = input.Timing.DaysOfWeek
	next.DayOfMonth = input.Timing.DayOfMonth
	next.Status = domain.StatusPending

	if n, ok := scheduler.NextExecution(&next, time.Now()); ok {
		next.NextExecution = &n
	} else {
		next.NextExecution = nil
	}

	updated, err := u.repo.Update(ctx, &next)
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}

	u.engine.Arm(ctx, updated)
	return updated, nil
}

// SetScheduleActive pauses or resumes a schedule. Pausing cancels the timer;
// resuming re-arms from the stored definition.
func (u *ScheduleUsecase) SetScheduleActive(ctx context.Context, id, userID string, active bool) (*domain.Schedule, error) {
	if err := u.repo.SetActive(ctx, id, userID, active); err != nil {
		return nil, fmt.Errorf("set schedule active: %w", err)
	}

	s, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	if active {
		u.engine.Arm(ctx, s)
	} else {
		u.engine.Cancel(id)
	}
	return s, nil
}

func (u *ScheduleUsecase) DeleteSchedule(ctx context.Context, id, userID string) error {
	if err := u.repo.Delete(ctx, id, userID); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	u.engine.Cancel(id)
	return nil
}

// TriggerSchedule fires the webhook immediately without touching the armed
// timer. Returns the schedule state after the fire was recorded.
func (u *ScheduleUsecase) TriggerSchedule(ctx context.Context, id, userID string) (*domain.Schedule, scheduler.DispatchResult, error) {
	s, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return nil, scheduler.DispatchResult{}, fmt.Errorf("get schedule: %w", err)
	}

	res := u.engine.TriggerNow(ctx, s)

	after, err := u.repo.GetByID(ctx, id, userID)
	if err != nil {
		return s, res, nil
	}
	return after, res, nil
}

// PreviewNext computes the next occurrence for a timing definition without
// persisting anything, so clients can show the fire time before saving.
func (u *ScheduleUsecase) PreviewNext(timing ScheduleTimingInput) (*time.Time, error) {
	if timing.CronExpr != "" {
		if _, err := cron.ParseStandard(timing.CronExpr); err != nil {
			return nil, domain.ErrInvalidCronExpr
		}
	}
	if timing.Interval <= 0 {
		timing.Interval = 1
	}

	s := &domain.Schedule{
		Frequency:       timing.Frequency,
		Interval:        timing.Interval,
		ScheduleAt:      timing.ScheduleAt,
		CronExpr:        timing.CronExpr,
		UseSpecificTime: timing.UseSpecificTime,
		SpecificHour:    timing.SpecificHour,
		SpecificMinute:  timing.SpecificMinute,
		DaysOfWeek:      timing.DaysOfWeek,
		DayOfMonth:      timing.DayOfMonth,
	}

	next, ok := scheduler.NextExecution(s, time.Now())
	if !ok {
		return nil, nil
	}
	return &next, nil
}

type ListSchedulesInput struct {
	UserID    string
	Status    domain.Status
	Frequency domain.Frequency
	Cursor    string
	Limit     int
}

type ListSchedulesResult struct {
	Schedules  []*domain.Schedule
	NextCursor *string
}

type cursor struct {
	Time time.Time `json:"t"`
	ID   string    `json:"i"`
}

func decodeCursor(s string) (*time.Time, string, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}
	var c cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, "", fmt.Errorf("unmarshal cursor: %w", err)
	}
	return &c.Time, c.ID, nil
}

func encodeCursor(t time.Time, id string) string {
	b, _ := json.Marshal(cursor{Time: t, ID: id})
	return base64.RawURLEncoding.EncodeToString(b)
}

func (u *ScheduleUsecase) ListSchedules(ctx context.Context, input ListSchedulesInput) (ListSchedulesResult, error) {
	limit := clampLimit(input.Limit)

	repoInput := repository.ListSchedulesInput{
		UserID:    input.UserID,
		Status:    input.Status,
		Frequency: input.Frequency,
		Limit:     limit + 1,
	}

	if input.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(input.Cursor)
		if err != nil {
			return ListSchedulesResult{}, domain.ErrInvalidCursor
		}
		repoInput.CursorTime = cursorTime
		repoInput.CursorID = cursorID
	}

	schedules, err := u.repo.List(ctx, repoInput)
	if err != nil {
		return ListSchedulesResult{}, fmt.Errorf("list schedules: %w", err)
	}

	var nextCursor *string
	if len(schedules) == limit+1 {
		last := schedules[limit]
		s := encodeCursor(last.CreatedAt, last.ID)
		nextCursor = &s
		schedules = schedules[:limit]
	}

	return ListSchedulesResult{Schedules: schedules, NextCursor: nextCursor}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func encodeHeaders(h map[string]string) (string, error) {
	if len(h) == 0 {
		return "", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
