package domain

import "fmt"

// TaskStatus records the terminal processing state of a task. Once set by the
// pipeline it is never reverted within a run.
type TaskStatus string

const (
	StatusUsingExistingWorkItem   TaskStatus = "using_existing_work_item"
	StatusReusedExistingWorkItem  TaskStatus = "reused_existing_work_item"
	StatusCreatedWorkItem         TaskStatus = "created_work_item"
	StatusSkippedDuplicateEntry   TaskStatus = "skipped_duplicate_time_entry"
	StatusCreatedTimeEntry        TaskStatus = "created_time_entry"
	StatusUpdatedTimeEntry        TaskStatus = "updated_time_entry"
	StatusError                   TaskStatus = "error"
)

// ClockTime is a wall-clock time of day in minutes since midnight.
// All chaining arithmetic happens at minute granularity.
type ClockTime int

// String formats the time as zero-padded 24-hour HH:MM, wrapping past 24:00.
func (c ClockTime) String() string {
	m := int(c) % (24 * 60)
	if m < 0 {
		m += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Format12 formats the time in 12-hour form, e.g. "1:30 PM".
func (c ClockTime) Format12() string {
	m := int(c) % (24 * 60)
	if m < 0 {
		m += 24 * 60
	}
	h, min := m/60, m%60
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, min, suffix)
}

// Task is one validated work-log entry. It is created at parse time, then
// handed from validator to chain builder to categorizer to pipeline; exactly
// one component mutates it at a time.
type Task struct {
	Project          string  // project name as written in the log
	ProjectID        int64   // resolved via the configured project mapping
	Subject          string
	DurationHours    float64 // > 0
	BreakHours       float64 // >= 0, gap before this task starts
	Activity         string
	Recurring        bool   // standing meeting: fixed slot, outside the chain
	LinkedWorkItemID *int64 // required when Recurring is true
	EntryDate        string // canonical YYYY-MM-DD, immutable once set

	Start *ClockTime // computed by the chain builder, nil until then
	End   *ClockTime

	ResolvedWorkItemID *int64 // set by categorizer or pipeline
	DuplicateSubject   string // remote subject that matched during categorization

	Status TaskStatus
}

// DedupeKey identifies a task for cross-entry de-duplication.
func (t *Task) DedupeKey() string {
	return fmt.Sprintf("%s|%s|%g", t.Project, t.Subject, t.DurationHours)
}

// DateGroup is the ordered set of tasks sharing one entry date. Order is
// insertion order from the source file and drives chaining.
type DateGroup struct {
	Date  string // canonical YYYY-MM-DD
	Tasks []*Task

	// NeedsStartTime is set when no anchor start time was supplied for the
	// first non-recurring task; chaining is deferred for the whole group.
	NeedsStartTime bool
}
