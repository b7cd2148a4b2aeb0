package worklog

import (
	"fmt"
	"math"

	"worklog-sync/internal/domain"
)

// recurringStart is the fixed slot for recurring-meeting tasks: 10:00 local.
const recurringStart = domain.ClockTime(10 * 60)

const dayMinutes = 24 * 60

// OverlapWarning reports a computed start that falls before the previous
// non-recurring task's end. Non-fatal; processing continues.
type OverlapWarning struct {
	Date    string
	Subject string
	Start   domain.ClockTime
	PrevEnd domain.ClockTime
}

func (w OverlapWarning) String() string {
	return fmt.Sprintf("%s %q: starts %s before previous task ends %s", w.Date, w.Subject, w.Start, w.PrevEnd)
}

// hoursToMinutes converts fractional hours to whole minutes, rounding half
// up, so 0.33h is 20min and chained arithmetic stays exact.
func hoursToMinutes(h float64) int {
	return int(math.Floor(h*60 + 0.5))
}

// BuildTimeChain computes start and end times for every task in the group.
//
// Recurring-meeting tasks sit at their fixed slot and neither consume nor
// advance the running cursor. The remaining tasks chain in source order: the
// first one starts at the anchor, each later one at the previous end plus its
// break. If the anchor is absent the group is flagged NeedsStartTime and the
// non-recurring tasks are left uncomputed.
//
// Times are minute-granular and wrap into a 24-hour day; work crossing
// midnight is a known limitation.
func BuildTimeChain(group *domain.DateGroup, anchor *domain.ClockTime) []OverlapWarning {
	var warnings []OverlapWarning

	for _, t := range group.Tasks {
		if t.Recurring {
			start := recurringStart
			end := domain.ClockTime((int(start) + hoursToMinutes(t.DurationHours)) % dayMinutes)
			t.Start, t.End = &start, &end
		}
	}

	if anchor == nil {
		if hasChained(group) {
			group.NeedsStartTime = true
		}
		return warnings
	}
	group.NeedsStartTime = false

	cursor := int(*anchor)
	first := true
	var prevEnd *domain.ClockTime
	for _, t := range group.Tasks {
		if t.Recurring {
			continue
		}
		startMin := cursor
		if !first {
			startMin += hoursToMinutes(t.BreakHours)
		}
		first = false

		start := domain.ClockTime(startMin % dayMinutes)
		end := domain.ClockTime((startMin + hoursToMinutes(t.DurationHours)) % dayMinutes)
		t.Start, t.End = &start, &end

		if prevEnd != nil && start < *prevEnd {
			warnings = append(warnings, OverlapWarning{
				Date:    group.Date,
				Subject: t.Subject,
				Start:   start,
				PrevEnd: *prevEnd,
			})
		}
		prevEnd = t.End
		cursor = startMin + hoursToMinutes(t.DurationHours)
	}

	return warnings
}

// hasChained reports whether the group contains any non-recurring task.
func hasChained(group *domain.DateGroup) bool {
	for _, t := range group.Tasks {
		if !t.Recurring {
			return true
		}
	}
	return false
}
