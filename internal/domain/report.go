package domain

import "time"

// Outcome is the per-task result of one pipeline run. Outcome order always
// matches input order.
type Outcome struct {
	Index       int
	Project     string
	Subject     string
	Date        string
	Succeeded   bool
	Kind        TaskStatus
	WorkItemID  *int64
	TimeEntryID *int64
	Error       string
}

// DuplicateWarning describes a subject collision detected against the remote
// system before any mutation occurred.
type DuplicateWarning struct {
	Project       string
	Subject       string
	WorkItemID    int64
	RemoteSubject string
}

// RunReport aggregates the outcomes of one pipeline run.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome

	Created int // time entries created
	Updated int // existing time entries updated in place
	Failed  int
}

// Skipped counts tasks whose time entry already existed remotely.
func (r *RunReport) Skipped() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == StatusSkippedDuplicateEntry {
			n++
		}
	}
	return n
}
