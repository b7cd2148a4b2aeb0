package ports

import (
	"context"

	"worklog-sync/internal/domain"
)

// TrackingClient defines the remote work-tracking operations the pipeline
// consumes. Implementations own transport concerns (auth, request shaping);
// callers issue these strictly one at a time.
type TrackingClient interface {
	GetCurrentUser(ctx context.Context) (domain.User, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	ListStatuses(ctx context.Context) ([]domain.Status, error)

	// ListWorkItems fetches one page of a project's work items. pageOffset
	// is 1-based.
	ListWorkItems(ctx context.Context, projectID int64, pageOffset, pageSize int) ([]domain.WorkItem, error)
	CreateWorkItem(ctx context.Context, projectID int64, subject, typeHint, description string, statusID *int64) (domain.WorkItem, error)

	// ListTimeEntries returns the caller's time entries; date and work-item
	// filtering is performed client-side.
	ListTimeEntries(ctx context.Context) ([]domain.TimeEntry, error)
	CreateTimeEntry(ctx context.Context, workItemID int64, date, startTime string, hours float64, activity, comment string) (domain.TimeEntry, error)
	UpdateTimeEntry(ctx context.Context, id int64, hours float64, comment string) (domain.TimeEntry, error)
}

// ReportSink receives run reports and persists them to a target system.
// In this project the primary target is MySQL, but the interface is
// intentionally generic to support other sinks.
type ReportSink interface {
	SaveReport(ctx context.Context, report domain.RunReport) error
}
