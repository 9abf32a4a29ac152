package domain

import (
	"errors"
	"time"
)

var ErrLogNotFound = errors.New("execution log not found")

type Outcome string

const (
	OutcomeSuccess Outcome = "Success"
	OutcomeFailure Outcome = "Failed"
)

type TriggerSource string

const (
	TriggerScheduled TriggerSource = "Scheduled"
	TriggerManual    TriggerSource = "Manual"
)

// ExecutionLog is an immutable record of one webhook dispatch attempt
// sequence. Name, URL and method are denormalized snapshots so the entry
// survives later edits or deletion of the schedule.
type ExecutionLog struct {
	ID         string
	ScheduleID string
	UserID     string

	ScheduleName string
	WebhookURL   string
	HTTPMethod   string

	Outcome        Outcome
	ResponseStatus *int    // nil when no response was received
	ResponseBody   *string // truncated, nil on transport failure
	ErrorMessage   *string // set only on failure

	DurationMS  int64
	TriggeredBy TriggerSource
	ExecutedAt  time.Time
}
