package domain

import (
	"errors"
	"time"
)

var (
	ErrScheduleNotFound     = errors.New("schedule not found")
	ErrScheduleNameConflict = errors.New("schedule with this name already exists")
	ErrInvalidCronExpr      = errors.New("invalid cron expression")
	ErrInvalidCursor        = errors.New("invalid pagination cursor")
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusExecuted  Status = "Executed"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
)

type Frequency string

const (
	FrequencyOnce    Frequency = "once"
	FrequencySeconds Frequency = "seconds"
	FrequencyMinutes Frequency = "minutes"
	FrequencyHours   Frequency = "hours"
	FrequencyDays    Frequency = "days"
	FrequencyWeeks   Frequency = "weeks"
	FrequencyMonths  Frequency = "months"
	FrequencyYears   Frequency = "years"
)

type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "apikey"
	AuthBasic  AuthType = "basic"
)

const (
	DefaultTimeoutSeconds = 30
	MinTimeoutSeconds     = 1
	MaxTimeoutSeconds     = 600
)

// Schedule is a user-owned rule describing when and how to call a webhook.
// The timing fields come in three flavors: a one-time anchor (ScheduleAt with
// frequency "once"), interval recurrence anchored at ScheduleAt, and an
// optional cron expression which takes precedence over both when set.
type Schedule struct {
	ID     string
	UserID string
	Name   string

	WebhookURL string
	HTTPMethod string
	JSONBody   string // opaque JSON text, sent for mutating methods only

	AuthType        AuthType
	AuthToken       string
	AuthAPIKeyName  string
	AuthAPIKeyValue string
	AuthUsername    string
	AuthPassword    string

	CustomHeaders string // opaque JSON text, key → value

	Frequency       Frequency
	Interval        int
	ScheduleAt      time.Time // anchor for the recurrence
	CronExpr        string
	UseSpecificTime bool
	SpecificHour    *int
	SpecificMinute  *int
	DaysOfWeek      []int // 0–6, Sunday–Saturday
	DayOfMonth      *int  // 1–31

	Status   Status
	IsActive bool

	LastExecuted   *time.Time
	NextExecution  *time.Time
	ExecutionCount int

	TimeoutSeconds int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRecurring reports whether the schedule has occurrences after its first
// run. A cron expression always implies recurrence.
func (s *Schedule) IsRecurring() bool {
	return s.Frequency != FrequencyOnce || s.CronExpr != ""
}

// Timeout returns the per-call timeout, clamped to the allowed range.
func (s *Schedule) Timeout() time.Duration {
	secs := s.TimeoutSeconds
	if secs < MinTimeoutSeconds {
		secs = DefaultTimeoutSeconds
	}
	if secs > MaxTimeoutSeconds {
		secs = MaxTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}
