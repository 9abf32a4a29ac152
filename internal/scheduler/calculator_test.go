package scheduler

import (
	"testing"
	"time"

	"github.com/hookline/hookline/internal/domain"
)

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return parsed
}

func intPtr(v int) *int { return &v }

func TestNextExecution_OncePastAnchorStillDue(t *testing.T) {
	anchor := ts(t, "2024-01-01T10:00:00Z")
	s := &domain.Schedule{Frequency: domain.FrequencyOnce, ScheduleAt: anchor}

	next, ok := NextExecution(s, ts(t, "2024-01-02T00:00:00Z"))
	if !ok {
		t.Fatal("expected a next execution for an unexecuted one-time schedule")
	}
	if !next.Equal(anchor) {
		t.Errorf("next = %s, want anchor %s", next, anchor)
	}
}

func TestNextExecution_OnceAlreadyExecuted(t *testing.T) {
	anchor := ts(t, "2024-01-01T10:00:00Z")
	done := ts(t, "2024-01-01T10:00:02Z")
	s := &domain.Schedule{
		Frequency:    domain.FrequencyOnce,
		ScheduleAt:   anchor,
		LastExecuted: &done,
	}

	if _, ok := NextExecution(s, ts(t, "2024-01-02T00:00:00Z")); ok {
		t.Error("expected no next execution after the single run")
	}
}

func TestNextExecution_OnceFutureAnchor(t *testing.T) {
	anchor := ts(t, "2024-06-01T10:00:00Z")
	s := &domain.Schedule{Frequency: domain.FrequencyOnce, ScheduleAt: anchor}

	next, ok := NextExecution(s, ts(t, "2024-01-01T00:00:00Z"))
	if !ok || !next.Equal(anchor) {
		t.Errorf("next = %s, ok = %v, want anchor %s", next, ok, anchor)
	}
}

func TestNextExecution_IntervalWalk(t *testing.T) {
	tests := []struct {
		name      string
		frequency domain.Frequency
		interval  int
		anchor    string
		now       string
		want      string
	}{
		{
			name:      "minutes skip to first future multiple",
			frequency: domain.FrequencyMinutes,
			interval:  5,
			anchor:    "2024-01-01T00:00:00Z",
			now:       "2024-01-01T00:12:30Z",
			want:      "2024-01-01T00:15:00Z",
		},
		{
			name:      "seconds respect the one second buffer",
			frequency: domain.FrequencySeconds,
			interval:  10,
			anchor:    "2024-01-01T00:00:00Z",
			now:       "2024-01-01T00:00:09Z",
			want:      "2024-01-01T00:00:20Z",
		},
		{
			name:      "hours",
			frequency: domain.FrequencyHours,
			interval:  6,
			anchor:    "2024-01-01T00:00:00Z",
			now:       "2024-01-01T07:00:00Z",
			want:      "2024-01-01T12:00:00Z",
		},
		{
			name:      "days",
			frequency: domain.FrequencyDays,
			interval:  3,
			anchor:    "2024-01-01T08:00:00Z",
			now:       "2024-01-05T00:00:00Z",
			want:      "2024-01-07T08:00:00Z",
		},
		{
			name:      "weeks",
			frequency: domain.FrequencyWeeks,
			interval:  2,
			anchor:    "2024-01-01T08:00:00Z",
			now:       "2024-01-20T00:00:00Z",
			want:      "2024-01-29T08:00:00Z",
		},
		{
			name:      "months preserve day of month",
			frequency: domain.FrequencyMonths,
			interval:  1,
			anchor:    "2024-01-15T09:00:00Z",
			now:       "2024-02-01T00:00:00Z",
			want:      "2024-02-15T09:00:00Z",
		},
		{
			name:      "months roll over when the day does not exist",
			frequency: domain.FrequencyMonths,
			interval:  1,
			anchor:    "2024-01-31T09:00:00Z",
			now:       "2024-02-15T00:00:00Z",
			want:      "2024-03-02T09:00:00Z", // Jan 31 + 1 month normalizes past Feb 29
		},
		{
			name:      "years",
			frequency: domain.FrequencyYears,
			interval:  1,
			anchor:    "2023-05-01T00:00:00Z",
			now:       "2024-01-01T00:00:00Z",
			want:      "2024-05-01T00:00:00Z",
		},
		{
			name:      "future anchor is returned as-is after one check",
			frequency: domain.FrequencyDays,
			interval:  1,
			anchor:    "2024-03-01T00:00:00Z",
			now:       "2024-01-01T00:00:00Z",
			want:      "2024-03-01T00:00:00Z",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := &domain.Schedule{
				Frequency:  tc.frequency,
				Interval:   tc.interval,
				ScheduleAt: ts(t, tc.anchor),
			}
			next, ok := NextExecution(s, ts(t, tc.now))
			if !ok {
				t.Fatal("expected a next execution")
			}
			if want := ts(t, tc.want); !next.Equal(want) {
				t.Errorf("next = %s, want %s", next, want)
			}
		})
	}
}

func TestNextExecution_SpecificTimeDaily(t *testing.T) {
	s := &domain.Schedule{
		Frequency:       domain.FrequencyDays,
		Interval:        1,
		ScheduleAt:      ts(t, "2024-01-01T00:00:00Z"),
		UseSpecificTime: true,
		SpecificHour:    intPtr(8),
		SpecificMinute:  intPtr(30),
	}

	// Before today's slot: fires today.
	next, ok := NextExecution(s, ts(t, "2024-03-10T06:00:00Z"))
	if !ok || !next.Equal(ts(t, "2024-03-10T08:30:00Z")) {
		t.Errorf("next = %s, ok = %v, want 2024-03-10T08:30:00Z", next, ok)
	}

	// After today's slot: fires tomorrow.
	next, ok = NextExecution(s, ts(t, "2024-03-10T09:00:00Z"))
	if !ok || !next.Equal(ts(t, "2024-03-11T08:30:00Z")) {
		t.Errorf("next = %s, ok = %v, want 2024-03-11T08:30:00Z", next, ok)
	}
}

func TestNextExecution_SpecificTimeWeekdaySet(t *testing.T) {
	// Mon/Wed/Fri at 08:00, evaluated on a Thursday at 09:00.
	s := &domain.Schedule{
		Frequency:       domain.FrequencyWeeks,
		Interval:        1,
		ScheduleAt:      ts(t, "2024-01-01T00:00:00Z"),
		UseSpecificTime: true,
		SpecificHour:    intPtr(8),
		SpecificMinute:  intPtr(0),
		DaysOfWeek:      []int{1, 3, 5},
	}

	now := ts(t, "2024-03-14T09:00:00Z") // Thursday
	next, ok := NextExecution(s, now)
	if !ok {
		t.Fatal("expected a next execution")
	}
	want := ts(t, "2024-03-15T08:00:00Z") // the following Friday
	if !next.Equal(want) {
		t.Errorf("next = %s, want %s", next, want)
	}
	if next.Weekday() != time.Friday {
		t.Errorf("weekday = %s, want Friday", next.Weekday())
	}
}

func TestNextExecution_SpecificTimeWeeklyNoWeekdaySet(t *testing.T) {
	s := &domain.Schedule{
		Frequency:       domain.FrequencyWeeks,
		Interval:        2,
		ScheduleAt:      ts(t, "2024-01-01T00:00:00Z"),
		UseSpecificTime: true,
		SpecificHour:    intPtr(10),
		SpecificMinute:  intPtr(0),
	}

	next, ok := NextExecution(s, ts(t, "2024-03-14T12:00:00Z"))
	if !ok || !next.Equal(ts(t, "2024-03-28T10:00:00Z")) {
		t.Errorf("next = %s, ok = %v, want 2024-03-28T10:00:00Z", next, ok)
	}
}

// Day-of-month 31 in a 30-day month rolls over into the next month via date
// normalization. This pins the policy: roll over, never clamp or skip.
func TestNextExecution_SpecificTimeDayOfMonthRollsOver(t *testing.T) {
	s := &domain.Schedule{
		Frequency:       domain.FrequencyMonths,
		Interval:        1,
		ScheduleAt:      ts(t, "2024-01-31T00:00:00Z"),
		UseSpecificTime: true,
		SpecificHour:    intPtr(9),
		SpecificMinute:  intPtr(0),
		DayOfMonth:      intPtr(31),
	}

	// April has 30 days: April 31 normalizes to May 1.
	next, ok := NextExecution(s, ts(t, "2024-04-15T00:00:00Z"))
	if !ok {
		t.Fatal("expected a next execution")
	}
	if want := ts(t, "2024-05-01T09:00:00Z"); !next.Equal(want) {
		t.Errorf("next = %s, want %s", next, want)
	}
}

func TestNextExecution_SpecificTimeMonthly(t *testing.T) {
	s := &domain.Schedule{
		Frequency:       domain.FrequencyMonths,
		Interval:        1,
		ScheduleAt:      ts(t, "2024-01-01T00:00:00Z"),
		UseSpecificTime: true,
		SpecificHour:    intPtr(9),
		SpecificMinute:  intPtr(0),
		DayOfMonth:      intPtr(15),
	}

	// Past this month's slot: advances one month.
	next, ok := NextExecution(s, ts(t, "2024-03-20T00:00:00Z"))
	if !ok || !next.Equal(ts(t, "2024-04-15T09:00:00Z")) {
		t.Errorf("next = %s, ok = %v, want 2024-04-15T09:00:00Z", next, ok)
	}
}

func TestNextExecution_SpecificTimeSecondsDegrades(t *testing.T) {
	// seconds has no wall-clock variant; the hour/minute override is ignored.
	s := &domain.Schedule{
		Frequency:       domain.FrequencySeconds,
		Interval:        30,
		ScheduleAt:      ts(t, "2024-01-01T00:00:00Z"),
		UseSpecificTime: true,
		SpecificHour:    intPtr(8),
		SpecificMinute:  intPtr(0),
	}

	next, ok := NextExecution(s, ts(t, "2024-01-01T00:01:00Z"))
	if !ok || !next.Equal(ts(t, "2024-01-01T00:01:30Z")) {
		t.Errorf("next = %s, ok = %v, want 2024-01-01T00:01:30Z", next, ok)
	}
}

func TestNextExecution_CronExpression(t *testing.T) {
	s := &domain.Schedule{
		Frequency:  domain.FrequencyMinutes,
		Interval:   1,
		ScheduleAt: ts(t, "2024-01-01T00:00:00Z"),
		CronExpr:   "*/5 * * * *",
	}

	next, ok := NextExecution(s, ts(t, "2024-01-01T00:12:30Z"))
	if !ok || !next.Equal(ts(t, "2024-01-01T00:15:00Z")) {
		t.Errorf("next = %s, ok = %v, want 2024-01-01T00:15:00Z", next, ok)
	}
}

func TestNextExecution_Deterministic(t *testing.T) {
	s := &domain.Schedule{
		Frequency:  domain.FrequencyHours,
		Interval:   2,
		ScheduleAt: ts(t, "2024-01-01T00:00:00Z"),
	}
	now := ts(t, "2024-02-03T05:00:00Z")

	first, ok1 := NextExecution(s, now)
	second, ok2 := NextExecution(s, now)
	if ok1 != ok2 || !first.Equal(second) {
		t.Errorf("calculator is not deterministic: %s vs %s", first, second)
	}
}
