package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/pfm_backend/internal/apperrors"
)

// RecurrenceInterval is the calendar step between two occurrences of a recurring template.
type RecurrenceInterval string

const (
	Daily     RecurrenceInterval = "daily"
	Weekly    RecurrenceInterval = "weekly"
	BiWeekly  RecurrenceInterval = "bi-weekly"
	Monthly   RecurrenceInterval = "monthly"
	Quarterly RecurrenceInterval = "quarterly"
	Yearly    RecurrenceInterval = "yearly"
)

// IsValid reports whether i is one of the known intervals.
func (i RecurrenceInterval) IsValid() bool {
	switch i {
	case Daily, Weekly, BiWeekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

// Recurrence holds the schedule of a recurring template.
// NextRecurrence is the scheduled date of the next occurrence; ClaimedUntil is the sweep lease.
type Recurrence struct {
	IsRecurring    bool               `json:"isRecurring"`
	Interval       RecurrenceInterval `json:"interval,omitempty"`
	EndDate        *time.Time         `json:"endDate,omitempty"`
	NextRecurrence *time.Time         `json:"nextRecurrence,omitempty"`
	ClaimedUntil   *time.Time         `json:"-"`
}

// Advance returns date moved forward by one interval.
// Month-based intervals clamp the day to the last valid day of the resulting month.
func Advance(date time.Time, interval RecurrenceInterval) (time.Time, error) {
	switch interval {
	case Daily:
		return date.AddDate(0, 0, 1), nil
	case Weekly:
		return date.AddDate(0, 0, 7), nil
	case BiWeekly:
		return date.AddDate(0, 0, 14), nil
	case Monthly:
		return addMonthsClamped(date, 1), nil
	case Quarterly:
		return addMonthsClamped(date, 3), nil
	case Yearly:
		return addMonthsClamped(date, 12), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown interval %q", apperrors.ErrInvalidRecurrenceState, interval)
	}
}

// addMonthsClamped differs from time.AddDate, which normalizes Jan 31 + 1 month into March.
func addMonthsClamped(date time.Time, months int) time.Time {
	y, m, d := date.Date()
	first := time.Date(y, m+time.Month(months), 1, date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsDue reports whether the template has an occurrence scheduled on or before today.
func (r Recurrence) IsDue(today time.Time) bool {
	return r.IsRecurring && r.NextRecurrence != nil && !DateOnly(*r.NextRecurrence).After(DateOnly(today))
}

// Next computes the schedule after emitting the occurrence at NextRecurrence.
// The returned flag is false once the next occurrence falls after EndDate.
func (r Recurrence) Next() (time.Time, bool, error) {
	if r.NextRecurrence == nil {
		return time.Time{}, false, fmt.Errorf("%w: template has no scheduled occurrence", apperrors.ErrInvalidRecurrenceState)
	}
	next, err := Advance(*r.NextRecurrence, r.Interval)
	if err != nil {
		return time.Time{}, false, err
	}
	if r.EndDate != nil && DateOnly(next).After(DateOnly(*r.EndDate)) {
		return next, false, nil
	}
	return next, true, nil
}

// IdempotencyKeyFor identifies the occurrence of templateID scheduled on the given date.
func IdempotencyKeyFor(templateID string, scheduled time.Time) string {
	return templateID + ":" + FormatDate(scheduled)
}
