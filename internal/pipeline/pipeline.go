// Package pipeline reconciles categorized tasks against the remote tracking
// system: it materializes a work item for each task and records a time entry,
// skipping what already exists.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"worklog-sync/internal/categorize"
	"worklog-sync/internal/domain"
	"worklog-sync/internal/ports"
	"worklog-sync/internal/worklog"
)

// Overrides carries optional per-new-item inputs, keyed by the task's index
// within the new bucket.
type Overrides struct {
	Comments  map[int]string
	StatusIDs map[int]int64
	// DefaultStatusID applies to new items without a per-index override.
	DefaultStatusID *int64
}

// Pipeline executes one run over a categorized task list. Each task is
// attempted exactly once; individual failures are recorded and do not stop
// the loop.
type Pipeline struct {
	Log      *slog.Logger
	Client   ports.TrackingClient
	Resolver worklog.DuplicateChecker
	Exec     Executor

	// WorkItemType is the type hint for created work items.
	WorkItemType string

	// UpdateMismatched updates an existing time entry whose hours differ
	// from the computed hours instead of skipping it.
	UpdateMismatched bool
}

// Run processes tasks strictly one at a time in their original order. Tasks
// that categorization dropped as in-file duplicates are not attempted.
// Outcome order matches input order.
func (p *Pipeline) Run(ctx context.Context, tasks []*domain.Task, cat *categorize.Result, overrides Overrides) *domain.RunReport {
	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	kept := make([]*domain.Task, 0, len(tasks))
	buckets := make([]categorize.Bucket, 0, len(tasks))
	for _, t := range tasks {
		if b, ok := cat.BucketOf(t); ok {
			kept = append(kept, t)
			buckets = append(buckets, b)
		}
	}

	newIndex := 0
	for i, t := range kept {
		bucket := buckets[i]

		var comment string
		var statusID *int64
		if bucket == categorize.BucketNew {
			comment = overrides.Comments[newIndex]
			if id, ok := overrides.StatusIDs[newIndex]; ok {
				statusID = &id
			} else {
				statusID = overrides.DefaultStatusID
			}
			newIndex++
		}

		outcome := domain.Outcome{
			Index:   i,
			Project: t.Project,
			Subject: t.Subject,
			Date:    t.EntryDate,
		}

		if err := ctx.Err(); err != nil {
			// Stop issuing remote work; remaining tasks fail with the
			// cancellation cause so the report stays complete.
			outcome.Kind = domain.StatusError
			outcome.Error = err.Error()
			t.Status = domain.StatusError
			report.Failed++
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		p.Log.Info("processing task",
			slog.Int("index", i+1),
			slog.Int("total", len(kept)),
			slog.String("subject", t.Subject),
			slog.String("date", t.EntryDate),
		)

		err := p.Exec.Do(ctx, func(ctx context.Context) error {
			kind, wiID, teID, err := p.processTask(ctx, t, bucket, comment, statusID)
			if err != nil {
				return err
			}
			outcome.Kind = kind
			outcome.WorkItemID = wiID
			outcome.TimeEntryID = teID
			return nil
		})
		if err != nil {
			p.Log.Error("task failed",
				slog.String("subject", t.Subject),
				slog.String("date", t.EntryDate),
				slog.String("error", err.Error()),
			)
			outcome.Kind = domain.StatusError
			outcome.Error = err.Error()
			t.Status = domain.StatusError
			report.Failed++
		} else {
			outcome.Succeeded = true
			t.Status = outcome.Kind
			switch outcome.Kind {
			case domain.StatusCreatedWorkItem, domain.StatusUsingExistingWorkItem,
				domain.StatusReusedExistingWorkItem, domain.StatusCreatedTimeEntry:
				report.Created++
			case domain.StatusUpdatedTimeEntry:
				report.Updated++
			}
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.FinishedAt = time.Now().UTC()
	return report
}

// processTask ensures a work item and a time entry exist for one task. When a
// new time entry is recorded the outcome kind carries the work-item
// provenance (created, reused from a server duplicate, or a known linked
// item); otherwise it carries the time-entry phase result (skipped or
// updated).
func (p *Pipeline) processTask(ctx context.Context, t *domain.Task, bucket categorize.Bucket, comment string, statusID *int64) (domain.TaskStatus, *int64, *int64, error) {
	workItemID, resolution, err := p.resolveWorkItem(ctx, t, bucket, statusID)
	if err != nil {
		return "", nil, nil, err
	}
	id := workItemID
	t.ResolvedWorkItemID = &id

	entryKind, teID, err := p.ensureTimeEntry(ctx, t, workItemID, comment)
	if err != nil {
		return "", &id, nil, err
	}

	kind := entryKind
	if entryKind == domain.StatusCreatedTimeEntry && resolution != "" {
		kind = resolution
	}
	return kind, &id, teID, nil
}

// resolveWorkItem returns the target work item ID plus the resolution status
// describing how it was obtained.
func (p *Pipeline) resolveWorkItem(ctx context.Context, t *domain.Task, bucket categorize.Bucket, statusID *int64) (int64, domain.TaskStatus, error) {
	switch bucket {
	case categorize.BucketRecurring, categorize.BucketLinked:
		return *t.LinkedWorkItemID, domain.StatusUsingExistingWorkItem, nil

	case categorize.BucketDuplicate:
		return *t.ResolvedWorkItemID, domain.StatusReusedExistingWorkItem, nil
	}

	// New bucket: re-check immediately before creating. This narrows the
	// read-then-write race window but cannot close it; the adapter attaches
	// an idempotency key as a further mitigation.
	item, err := p.Resolver.FindBySubject(ctx, t.ProjectID, t.Subject)
	if err != nil {
		p.Log.Warn("pre-create duplicate check failed, creating anyway",
			slog.String("subject", t.Subject),
			slog.String("error", err.Error()),
		)
	} else if item != nil {
		p.Log.Info("work item appeared since categorization, reusing",
			slog.String("subject", t.Subject),
			slog.Int64("work_item", item.ID),
		)
		t.DuplicateSubject = item.Subject
		return item.ID, domain.StatusReusedExistingWorkItem, nil
	}

	createdItem, err := p.Client.CreateWorkItem(ctx, t.ProjectID, t.Subject, p.WorkItemType, "", statusID)
	if err != nil {
		return 0, "", fmt.Errorf("create work item %q: %w", t.Subject, err)
	}
	return createdItem.ID, domain.StatusCreatedWorkItem, nil
}

// ensureTimeEntry records the task's hours against the work item unless an
// entry for that work item and date already exists.
func (p *Pipeline) ensureTimeEntry(ctx context.Context, t *domain.Task, workItemID int64, comment string) (domain.TaskStatus, *int64, error) {
	entries, err := p.Client.ListTimeEntries(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("list time entries: %w", err)
	}

	for _, e := range entries {
		if e.WorkItemID != workItemID || e.SpentOn != t.EntryDate {
			continue
		}
		if p.UpdateMismatched && math.Abs(e.Hours-t.DurationHours) > 1e-9 {
			updated, err := p.Client.UpdateTimeEntry(ctx, e.ID, t.DurationHours, p.buildComment(t, comment))
			if err != nil {
				return "", nil, fmt.Errorf("update time entry %d: %w", e.ID, err)
			}
			return domain.StatusUpdatedTimeEntry, &updated.ID, nil
		}
		id := e.ID
		return domain.StatusSkippedDuplicateEntry, &id, nil
	}

	startTime := ""
	if t.Start != nil {
		startTime = t.Start.String()
	}
	entry, err := p.Client.CreateTimeEntry(ctx, workItemID, t.EntryDate, startTime, t.DurationHours, t.Activity, p.buildComment(t, comment))
	if err != nil {
		return "", nil, fmt.Errorf("create time entry: %w", err)
	}
	return domain.StatusCreatedTimeEntry, &entry.ID, nil
}

// buildComment prefixes the user comment with the 12-hour time bracket, e.g.
// "[11:00 AM - 1:30 PM] Fixed login bug".
func (p *Pipeline) buildComment(t *domain.Task, comment string) string {
	if t.Start == nil || t.End == nil {
		return comment
	}
	bracket := fmt.Sprintf("[%s - %s]", t.Start.Format12(), t.End.Format12())
	if comment == "" {
		return bracket
	}
	return bracket + " " + comment
}
