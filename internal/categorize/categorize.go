// Package categorize partitions parsed tasks into processing buckets.
package categorize

import (
	"context"
	"log/slog"

	"worklog-sync/internal/domain"
	"worklog-sync/internal/worklog"
)

// Bucket names a task's processing category.
type Bucket string

const (
	BucketRecurring Bucket = "recurring"
	BucketLinked    Bucket = "linked"
	BucketDuplicate Bucket = "duplicate"
	BucketNew       Bucket = "new"
)

// Result holds the four mutually exclusive buckets plus subject collisions
// observed during categorization. Every kept task appears in exactly one
// bucket; buckets preserve source order.
type Result struct {
	Recurring []*domain.Task
	Linked    []*domain.Task
	Duplicate []*domain.Task
	New       []*domain.Task

	DuplicateWarnings []domain.DuplicateWarning

	buckets map[*domain.Task]Bucket
}

// BucketOf reports which bucket a task landed in.
func (r *Result) BucketOf(t *domain.Task) (Bucket, bool) {
	b, ok := r.buckets[t]
	return b, ok
}

// Categorizer assigns each task a bucket, consulting the duplicate checker
// for tasks that are not already linked to a remote work item.
type Categorizer struct {
	Log     *slog.Logger
	Checker worklog.DuplicateChecker
}

// Categorize de-duplicates the input by project|subject|duration (first
// occurrence wins) and then applies precedence: recurring, linked, server
// duplicate, new. A failed duplicate lookup logs and falls back to new
// (fail-open).
func (c *Categorizer) Categorize(ctx context.Context, tasks []*domain.Task) *Result {
	result := &Result{buckets: make(map[*domain.Task]Bucket)}

	seen := make(map[string]bool)
	for _, t := range tasks {
		key := t.DedupeKey()
		if seen[key] {
			c.Log.Debug("skipping duplicate log entry",
				slog.String("subject", t.Subject), slog.String("date", t.EntryDate))
			continue
		}
		seen[key] = true

		switch {
		case t.Recurring && t.LinkedWorkItemID != nil:
			result.add(t, BucketRecurring)

		case t.LinkedWorkItemID != nil:
			result.add(t, BucketLinked)

		default:
			item, err := c.Checker.FindBySubject(ctx, t.ProjectID, t.Subject)
			if err != nil {
				c.Log.Warn("duplicate lookup failed, treating task as new",
					slog.String("subject", t.Subject),
					slog.String("error", err.Error()),
				)
				result.add(t, BucketNew)
				continue
			}
			if item != nil {
				id := item.ID
				t.ResolvedWorkItemID = &id
				t.DuplicateSubject = item.Subject
				result.DuplicateWarnings = append(result.DuplicateWarnings, domain.DuplicateWarning{
					Project:       t.Project,
					Subject:       t.Subject,
					WorkItemID:    item.ID,
					RemoteSubject: item.Subject,
				})
				result.add(t, BucketDuplicate)
				continue
			}
			result.add(t, BucketNew)
		}
	}

	return result
}

func (r *Result) add(t *domain.Task, b Bucket) {
	r.buckets[t] = b
	switch b {
	case BucketRecurring:
		r.Recurring = append(r.Recurring, t)
	case BucketLinked:
		r.Linked = append(r.Linked, t)
	case BucketDuplicate:
		r.Duplicate = append(r.Duplicate, t)
	case BucketNew:
		r.New = append(r.New, t)
	}
}
