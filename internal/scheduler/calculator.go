package scheduler

import (
	"time"

	"github.com/hookline/hookline/internal/domain"
	"github.com/robfig/cron/v3"
)

// forwardBuffer keeps borderline ties from re-firing: a candidate must be
// strictly later than now+1s to count as the next occurrence.
const forwardBuffer = time.Second

// NextExecution returns the earliest future instant at which the schedule
// should fire, or ok=false when it has no further occurrences. The function
// is pure: same (schedule, now) in, same result out. It is used both to arm
// timers and to preview a schedule's next run before saving.
func NextExecution(s *domain.Schedule, now time.Time) (next time.Time, ok bool) {
	if s.CronExpr != "" {
		if spec, err := cron.ParseStandard(s.CronExpr); err == nil {
			return spec.Next(now.Add(forwardBuffer)), true
		}
		// Expression was validated on create; fall through to interval fields.
	}

	if s.Frequency == domain.FrequencyOnce {
		if s.LastExecuted != nil {
			return time.Time{}, false
		}
		// A past anchor with no recorded execution is still due: arming it
		// produces an immediate fire rather than a silently dropped schedule.
		return s.ScheduleAt, true
	}

	interval := s.Interval
	if interval < 1 {
		interval = 1
	}

	if s.UseSpecificTime && s.SpecificHour != nil && s.SpecificMinute != nil {
		if t, handled := nextAtSpecificTime(s, now, interval); handled {
			return t, true
		}
		// seconds/minutes have no meaningful wall-clock anchor; degrade to
		// the plain interval walk below.
	}

	cutoff := now.Add(forwardBuffer)
	next = s.ScheduleAt

	// Fixed-duration units skip ahead arithmetically; an anchor far in the
	// past would otherwise walk one period at a time.
	if !next.After(cutoff) {
		var step time.Duration
		switch s.Frequency {
		case domain.FrequencySeconds:
			step = time.Duration(interval) * time.Second
		case domain.FrequencyMinutes:
			step = time.Duration(interval) * time.Minute
		case domain.FrequencyHours:
			step = time.Duration(interval) * time.Hour
		}
		if step > 0 {
			steps := cutoff.Sub(next)/step + 1
			return next.Add(steps * step), true
		}
	}

	for !next.After(cutoff) {
		switch s.Frequency {
		case domain.FrequencySeconds, domain.FrequencyMinutes, domain.FrequencyHours:
			// Handled above; unreachable when the anchor is in the past.
			return next, true
		case domain.FrequencyDays:
			next = next.AddDate(0, 0, interval)
		case domain.FrequencyWeeks:
			next = next.AddDate(0, 0, 7*interval)
		case domain.FrequencyMonths:
			next = next.AddDate(0, interval, 0)
		case domain.FrequencyYears:
			next = next.AddDate(interval, 0, 0)
		default:
			return time.Time{}, false
		}
	}
	return next, true
}

// nextAtSpecificTime computes the next occurrence for schedules pinned to a
// wall-clock hour:minute. handled is false for frequencies that have no
// specific-time variant.
func nextAtSpecificTime(s *domain.Schedule, now time.Time, interval int) (time.Time, bool) {
	cutoff := now.Add(forwardBuffer)
	next := time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(),
		*s.SpecificHour, *s.SpecificMinute, 0, 0, cutoff.Location())

	switch s.Frequency {
	case domain.FrequencyHours:
		if !next.After(cutoff) {
			next = next.Add(time.Duration(interval) * time.Hour)
		}

	case domain.FrequencyDays:
		if !next.After(cutoff) {
			next = next.AddDate(0, 0, interval)
		}

	case domain.FrequencyWeeks:
		if len(s.DaysOfWeek) > 0 {
			// Walk forward day by day, bounded so a bogus weekday set can
			// never loop forever.
			maxDays := 7*interval + 7
			for i := 0; i < maxDays; i++ {
				if weekdayIn(s.DaysOfWeek, next.Weekday()) && next.After(cutoff) {
					break
				}
				next = next.AddDate(0, 0, 1)
			}
		} else if !next.After(cutoff) {
			next = next.AddDate(0, 0, 7*interval)
		}

	case domain.FrequencyMonths:
		if s.DayOfMonth != nil {
			next = withDayOfMonth(next, *s.DayOfMonth)
		}
		if !next.After(cutoff) {
			next = next.AddDate(0, interval, 0)
			if s.DayOfMonth != nil {
				next = withDayOfMonth(next, *s.DayOfMonth)
			}
		}

	case domain.FrequencyYears:
		if s.DayOfMonth != nil {
			next = withDayOfMonth(next, *s.DayOfMonth)
		}
		if !next.After(cutoff) {
			next = next.AddDate(interval, 0, 0)
			if s.DayOfMonth != nil {
				next = withDayOfMonth(next, *s.DayOfMonth)
			}
		}

	default:
		return time.Time{}, false
	}
	return next, true
}

// withDayOfMonth pins t to the given day of its month. A day past the end of
// the month rolls over into the following month (time.Date normalization);
// e.g. day 31 in a 30-day month lands on the 1st of the next month.
func withDayOfMonth(t time.Time, day int) time.Time {
	return time.Date(t.Year(), t.Month(), day, t.Hour(), t.Minute(), 0, 0, t.Location())
}

func weekdayIn(days []int, d time.Weekday) bool {
	for _, v := range days {
		if v == int(d) {
			return true
		}
	}
	return false
}
