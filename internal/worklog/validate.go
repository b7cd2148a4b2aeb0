package worklog

import (
	"fmt"
	"math"
	"strings"

	"worklog-sync/internal/config"
	"worklog-sync/internal/domain"
)

// rawEntry mirrors one JSON entry. Pointers distinguish absent/null fields
// from zero values.
type rawEntry struct {
	Project       *string  `json:"project"`
	Subject       *string  `json:"subject"`
	BreakHours    *float64 `json:"break_hours"`
	DurationHours *float64 `json:"duration_hours"`
	Activity      *string  `json:"activity"`
	IsScrum       *bool    `json:"is_scrum"`
	WorkPackageID *float64 `json:"work_package_id"`
}

// FieldErrors is the ordered list of problems found in one record. A record
// with any error is discarded whole; the batch continues.
type FieldErrors []string

func (e FieldErrors) Error() string {
	return strings.Join(e, "; ")
}

// validateEntry checks one raw entry against the mapping and either returns a
// clean task or the list of field errors. A recurring entry without a linked
// work item is dropped (nil task, nil errors) unless strict_recurring is set,
// in which case it is reported like any other invalid record.
func validateEntry(raw rawEntry, date string, m config.Mapping) (*domain.Task, FieldErrors) {
	var errs FieldErrors

	if raw.Project == nil {
		errs = append(errs, "project: required")
	}
	if raw.Subject == nil {
		errs = append(errs, "subject: required")
	}
	if raw.DurationHours == nil {
		errs = append(errs, "duration_hours: required")
	}
	if raw.IsScrum == nil {
		errs = append(errs, "is_scrum: required")
	}
	if len(errs) > 0 {
		return nil, errs
	}

	projectID, ok := m.Projects[*raw.Project]
	if !ok {
		errs = append(errs, fmt.Sprintf("project: %q is not in the project mapping", *raw.Project))
	}

	subject := strings.TrimSpace(*raw.Subject)
	if subject == "" {
		errs = append(errs, "subject: must not be empty")
	}

	if *raw.DurationHours <= 0 {
		errs = append(errs, fmt.Sprintf("duration_hours: must be > 0, got %g", *raw.DurationHours))
	}

	breakHours := 0.0
	if raw.BreakHours != nil {
		if *raw.BreakHours < 0 {
			errs = append(errs, fmt.Sprintf("break_hours: must be >= 0, got %g", *raw.BreakHours))
		} else {
			breakHours = *raw.BreakHours
		}
	}

	var linkedID *int64
	if raw.WorkPackageID != nil {
		v := *raw.WorkPackageID
		if v <= 0 || v != math.Trunc(v) {
			errs = append(errs, fmt.Sprintf("work_package_id: must be a positive integer, got %g", v))
		} else {
			id := int64(v)
			linkedID = &id
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	if *raw.IsScrum && linkedID == nil {
		if m.StrictRecurring {
			return nil, FieldErrors{"work_package_id: required for recurring meeting entries"}
		}
		// Default behavior: drop the record without raising an error.
		return nil, nil
	}

	activity := ""
	if raw.Activity != nil {
		activity = strings.TrimSpace(*raw.Activity)
	}
	if activity == "" {
		activity = InferActivity(subject, m.ActivityRules, m.DefaultActivity)
	}

	return &domain.Task{
		Project:          *raw.Project,
		ProjectID:        projectID,
		Subject:          subject,
		DurationHours:    *raw.DurationHours,
		BreakHours:       breakHours,
		Activity:         activity,
		Recurring:        *raw.IsScrum,
		LinkedWorkItemID: linkedID,
		EntryDate:        date,
	}, nil
}
