package domain

// Project is a project in the remote tracking system.
type Project struct {
	ID         int64
	Name       string
	Identifier string
}

// Status is a work-item status in the remote tracking system.
type Status struct {
	ID        int64
	Name      string
	IsDefault bool
}

// User is the authenticated remote account.
type User struct {
	ID    int64
	Name  string
	Login string
}

// WorkItem is a unit of trackable work in the remote system.
type WorkItem struct {
	ID          int64
	ProjectID   int64
	Subject     string
	Type        string
	Description string
	StatusID    *int64
}

// TimeEntry is a remote record of hours spent against a work item on a date.
type TimeEntry struct {
	ID         int64
	WorkItemID int64
	SpentOn    string // YYYY-MM-DD
	Hours      float64
	Activity   string
	Comment    string
}
