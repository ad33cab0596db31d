// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package models

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire and cache-key format for dates.
const DateLayout = "2006-01-02"

// MaxRangeDays bounds a single report request.
const MaxRangeDays = 366

// Date range validation errors.
var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrRangeReversed = errors.New("start date is after end date")
	ErrRangeTooLong  = errors.New("date range is too long")
	ErrRangeInFuture = errors.New("date range ends in the future")
)

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ParseDateRange builds and structurally validates a range.
func ParseDateRange(start, end string) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if _, _, err := r.bounds(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// LastNDays returns the n days ending yesterday relative to now in loc.
func LastNDays(now time.Time, loc *time.Location, n int) DateRange {
	if n < 1 {
		n = 1
	}
	end := truncateDay(now.In(loc)).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(n - 1))
	return DateRange{Start: start.Format(DateLayout), End: end.Format(DateLayout)}
}

func (r DateRange) bounds() (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, r.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %q", ErrInvalidDate, r.Start)
	}
	end, err := time.Parse(DateLayout, r.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %q", ErrInvalidDate, r.End)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, ErrRangeReversed
	}
	return start, end, nil
}

// Validate checks format, ordering, span, and that End is not after today.
func (r DateRange) Validate(today time.Time) error {
	start, end, err := r.bounds()
	if err != nil {
		return err
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > MaxRangeDays {
		return fmt.Errorf("%w: %d days (max %d)", ErrRangeTooLong, days, MaxRangeDays)
	}
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if end.After(t) {
		return ErrRangeInFuture
	}
	return nil
}

// Days is the inclusive number of days, or 0 for an invalid range.
func (r DateRange) Days() int {
	start, end, err := r.bounds()
	if err != nil {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Previous is the equally long range that ends the day before Start.
func (r DateRange) Previous() DateRange {
	start, _, err := r.bounds()
	if err != nil {
		return DateRange{}
	}
	n := r.Days()
	prevEnd := start.AddDate(0, 0, -1)
	prevStart := prevEnd.AddDate(0, 0, -(n - 1))
	return DateRange{Start: prevStart.Format(DateLayout), End: prevEnd.Format(DateLayout)}
}

// StartTime returns Start at 00:00 UTC.
func (r DateRange) StartTime() time.Time {
	t, _ := time.Parse(DateLayout, r.Start)
	return t
}

// EndTime returns End at 00:00 UTC.
func (r DateRange) EndTime() time.Time {
	t, _ := time.Parse(DateLayout, r.End)
	return t
}

func (r DateRange) String() string {
	return r.Start + ".." + r.End
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
