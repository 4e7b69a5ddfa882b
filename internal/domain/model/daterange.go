package model

import "time"

// DateLayout is the accepted date format for report ranges.
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// SameDay reports whether the range covers a single day.
func (r DateRange) SameDay() bool {
	return r.Start.Format(DateLayout) == r.End.Format(DateLayout)
}

// After returns the exclusive lower bound used for remote event queries:
// the day before Start.
func (r DateRange) After() time.Time {
	return r.Start.AddDate(0, 0, -1)
}

// Before returns the exclusive upper bound used for remote event queries:
// the day after End.
func (r DateRange) Before() time.Time {
	return r.End.AddDate(0, 0, 1)
}
