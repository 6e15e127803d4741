package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInterval is returned when an interval end precedes its start.
var ErrInvalidInterval = errors.New("schedule: interval end before start")

// Shift is one recurring working period on a weekday. A shift may run past
// midnight; its working time then spills into the following day.
type Shift struct {
	Name     string
	Day      time.Weekday
	Start    time.Duration // offset from midnight, local schedule time
	Duration time.Duration
}

// WorkSchedule is a weekly rotation of shifts. Time outside every shift is
// non-working ("not scheduled") time.
type WorkSchedule struct {
	Name   string
	Shifts []Shift
}

// NewWorkSchedule validates and builds a schedule.
func NewWorkSchedule(name string, shifts []Shift) (*WorkSchedule, error) {
	if name == "" {
		return nil, errors.New("schedule: empty name")
	}
	for _, shift := range shifts {
		if shift.Duration <= 0 {
			return nil, fmt.Errorf("schedule: shift %q has non-positive duration", shift.Name)
		}
		if shift.Start < 0 || shift.Start >= 24*time.Hour {
			return nil, fmt.Errorf("schedule: shift %q start outside the day", shift.Name)
		}
	}
	return &WorkSchedule{Name: name, Shifts: shifts}, nil
}

// WorkingTime sums the scheduled shift time overlapping [start, end].
func (s *WorkSchedule) WorkingTime(start, end time.Time) (time.Duration, error) {
	if end.Before(start) {
		return 0, ErrInvalidInterval
	}

	var working time.Duration
	// Walk day by day, starting one day early to catch shifts that began the
	// previous evening and spill past midnight into the interval.
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location()).AddDate(0, 0, -1)
	for !day.After(end) {
		for _, shift := range s.Shifts {
			if shift.Day != day.Weekday() {
				continue
			}
			shiftStart := day.Add(shift.Start)
			shiftEnd := shiftStart.Add(shift.Duration)
			working += overlap(shiftStart, shiftEnd, start, end)
		}
		day = day.AddDate(0, 0, 1)
	}
	return working, nil
}

// NonWorkingTime returns the portion of [start, end] outside every shift.
func (s *WorkSchedule) NonWorkingTime(start, end time.Time) (time.Duration, error) {
	working, err := s.WorkingTime(start, end)
	if err != nil {
		return 0, err
	}
	return end.Sub(start) - working, nil
}

func overlap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}
