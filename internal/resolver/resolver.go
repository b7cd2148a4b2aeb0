// Package resolver finds existing remote work items by subject so the
// pipeline can avoid creating duplicates.
package resolver

import (
	"context"
	"log/slog"
	"strings"

	"worklog-sync/internal/domain"
	"worklog-sync/internal/ports"
)

// DefaultPageSize is the remote page size used when scanning work items.
const DefaultPageSize = 100

// Resolver scans a project's work items page by page for a subject match.
type Resolver struct {
	Log      *slog.Logger
	Client   ports.TrackingClient
	PageSize int // defaults to DefaultPageSize
}

// New returns a Resolver using the default page size.
func New(log *slog.Logger, client ports.TrackingClient) *Resolver {
	return &Resolver{Log: log, Client: client, PageSize: DefaultPageSize}
}

// normalize lower-cases and trims a subject for comparison.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FindBySubject returns the first work item in fetch order whose subject
// matches the query, or nil if none does. Matching is case-insensitive,
// whitespace-trimmed and exact only: a strict-substring relationship is
// logged for operator visibility but never treated as a match.
//
// Pages are fetched with 1-based offsets; a page shorter than the page size
// ends the scan.
func (r *Resolver) FindBySubject(ctx context.Context, projectID int64, subject string) (*domain.WorkItem, error) {
	size := r.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	query := normalize(subject)

	for page := 1; ; page++ {
		items, err := r.Client.ListWorkItems(ctx, projectID, page, size)
		if err != nil {
			return nil, err
		}
		for i := range items {
			candidate := normalize(items[i].Subject)
			if candidate == query {
				r.Log.Debug("duplicate subject found",
					slog.Int64("project", projectID),
					slog.String("subject", subject),
					slog.Int64("work_item", items[i].ID),
				)
				return &items[i], nil
			}
			if candidate != "" && (strings.Contains(candidate, query) || strings.Contains(query, candidate)) {
				r.Log.Info("partial subject match ignored",
					slog.Int64("project", projectID),
					slog.String("subject", subject),
					slog.String("remote_subject", items[i].Subject),
				)
			}
		}
		if len(items) < size {
			return nil, nil
		}
	}
}
