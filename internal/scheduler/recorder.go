package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hookline/hookline/internal/domain"
	"github.com/hookline/hookline/internal/metrics"
	"github.com/hookline/hookline/internal/repository"
)

// maxLogBodyChars bounds the stored response body so log entries cannot grow
// without limit.
const maxLogBodyChars = 1000

// Recorder persists the outcome of one dispatch attempt sequence: it updates
// the schedule's derived fields and appends exactly one immutable log entry.
// Persistence failures are logged and swallowed so a broken store never
// crashes a fire cycle; they are surfaced through a metric instead.
type Recorder struct {
	schedules repository.ScheduleRepository
	logs      repository.ExecutionLogRepository
	logger    *slog.Logger
	now       func() time.Time
}

func NewRecorder(schedules repository.ScheduleRepository, logs repository.ExecutionLogRepository, logger *slog.Logger) *Recorder {
	return &Recorder{
		schedules: schedules,
		logs:      logs,
		logger:    logger.With("component", "recorder"),
		now:       time.Now,
	}
}

// Record applies the outcome and returns the schedule state the caller should
// broadcast: the persisted state when the write succeeded, an in-memory
// projection otherwise.
func (r *Recorder) Record(ctx context.Context, s *domain.Schedule, res DispatchResult, source domain.TriggerSource) *domain.Schedule {
	completedAt := r.now()

	status := domain.StatusFailed
	outcome := domain.OutcomeFailure
	if res.Success {
		status = domain.StatusExecuted
		outcome = domain.OutcomeSuccess
	}

	var next *time.Time
	if s.IsRecurring() {
		if n, ok := NextExecution(s, completedAt); ok {
			next = &n
		}
	}

	updated, err := r.schedules.ApplyExecution(ctx, s.ID, status, completedAt, next)
	if err != nil {
		r.logger.Error("apply execution to schedule", "schedule_id", s.ID, "error", err)
		metrics.LogWriteFailuresTotal.Inc()

		projection := *s
		projection.Status = status
		projection.LastExecuted = &completedAt
		projection.ExecutionCount++
		projection.NextExecution = next
		updated = &projection
	}

	entry := &domain.ExecutionLog{
		ScheduleID:     s.ID,
		UserID:         s.UserID,
		ScheduleName:   s.Name,
		WebhookURL:     s.WebhookURL,
		HTTPMethod:     s.HTTPMethod,
		Outcome:        outcome,
		ResponseStatus: res.StatusCode,
		DurationMS:     res.Duration.Milliseconds(),
		TriggeredBy:    source,
		ExecutedAt:     completedAt,
	}
	if res.StatusCode != nil {
		body := truncate(res.Body, maxLogBodyChars)
		entry.ResponseBody = &body
	}
	if !res.Success {
		msg := ""
		if res.Err != nil {
			msg = res.Err.Error()
		} else if res.StatusCode != nil {
			msg = fmt.Sprintf("unexpected status code: %d", *res.StatusCode)
		}
		entry.ErrorMessage = &msg
	}

	if _, err := r.logs.Append(ctx, entry); err != nil {
		r.logger.Error("append execution log", "schedule_id", s.ID, "error", err)
		metrics.LogWriteFailuresTotal.Inc()
	}

	return updated
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
