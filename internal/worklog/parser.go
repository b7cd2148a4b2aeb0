package worklog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"worklog-sync/internal/config"
	"worklog-sync/internal/domain"
)

// ErrServerDuplicates is returned when the server pre-check finds existing
// work items matching entries in the file and the caller asked parsing to
// abort on that.
var ErrServerDuplicates = errors.New("work log contains subjects that already exist on the server")

// DuplicateChecker looks up an existing remote work item by subject.
// A nil item with a nil error means no duplicate.
type DuplicateChecker interface {
	FindBySubject(ctx context.Context, projectID int64, subject string) (*domain.WorkItem, error)
}

// ParseOptions controls the parse entry point.
type ParseOptions struct {
	// ValidateAgainstServer runs a duplicate pre-check against the remote
	// system before returning parsed entries. Default true.
	ValidateAgainstServer bool

	// ThrowOnServerDuplicates aborts parsing with ErrServerDuplicates when
	// the pre-check finds any collision, instead of returning warnings.
	// Default true.
	ThrowOnServerDuplicates bool
}

// DefaultParseOptions returns the documented defaults.
func DefaultParseOptions() ParseOptions {
	return ParseOptions{ValidateAgainstServer: true, ThrowOnServerDuplicates: true}
}

// Issue records one discarded record and why.
type Issue struct {
	Date   string
	Index  int // position within the date's entries
	Errors FieldErrors
}

// ParseResult is the outcome of parsing one work-log file.
type ParseResult struct {
	Groups            []*domain.DateGroup
	Issues            []Issue
	DuplicateWarnings []domain.DuplicateWarning
}

// Tasks returns every parsed task in source order, dates first.
func (r *ParseResult) Tasks() []*domain.Task {
	var out []*domain.Task
	for _, g := range r.Groups {
		out = append(out, g.Tasks...)
	}
	return out
}

// Parser turns a work-log file into validated, date-grouped tasks.
type Parser struct {
	Log     *slog.Logger
	Mapping config.Mapping
	// Checker is consulted for the server pre-check; may be nil when
	// ValidateAgainstServer is false.
	Checker DuplicateChecker
}

// rawFile mirrors the top-level file format. Entries stay raw so a
// type-mismatched record fails alone instead of aborting the file.
type rawFile struct {
	Logs []struct {
		Date    string            `json:"date"`
		Entries []json.RawMessage `json:"entries"`
	} `json:"logs"`
}

// ParseFile reads, validates and groups a work-log JSON file.
func (p *Parser) ParseFile(ctx context.Context, path string, opts ParseOptions) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read work log: %w", err)
	}
	return p.Parse(ctx, data, opts)
}

// Parse is ParseFile over in-memory bytes; the HTTP trigger uses it directly.
func (p *Parser) Parse(ctx context.Context, data []byte, opts ParseOptions) (*ParseResult, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("work log is not valid JSON: %w", err)
	}
	if err := validateShape(doc); err != nil {
		return nil, err
	}

	var file rawFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode work log: %w", err)
	}

	result := &ParseResult{}
	for _, log := range file.Logs {
		date, err := ParseDate(log.Date)
		if err != nil {
			// A bad date makes the whole group unusable.
			return nil, fmt.Errorf("log group %q: %w", log.Date, err)
		}

		group := &domain.DateGroup{Date: date}
		for i, rawData := range log.Entries {
			task, errs := p.parseEntry(rawData, date)
			if errs != nil {
				p.Log.Warn("dropping invalid entry",
					slog.String("date", date),
					slog.Int("index", i),
					slog.String("errors", errs.Error()),
				)
				result.Issues = append(result.Issues, Issue{Date: date, Index: i, Errors: errs})
				continue
			}
			if task == nil {
				p.Log.Debug("dropping recurring entry without linked work item",
					slog.String("date", date), slog.Int("index", i))
				continue
			}
			group.Tasks = append(group.Tasks, task)
		}
		result.Groups = append(result.Groups, group)
	}

	if opts.ValidateAgainstServer {
		if err := p.serverPrecheck(ctx, result, opts); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// parseEntry decodes and validates one entry.
func (p *Parser) parseEntry(data json.RawMessage, date string) (*domain.Task, FieldErrors) {
	var raw rawEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, FieldErrors{fmt.Sprintf("%s: expected %s", typeErr.Field, typeErr.Type)}
		}
		return nil, FieldErrors{err.Error()}
	}
	return validateEntry(raw, date, p.Mapping)
}

// serverPrecheck looks each unlinked task's subject up on the server and
// records collisions. Lookup failures are logged and treated as no match.
func (p *Parser) serverPrecheck(ctx context.Context, result *ParseResult, opts ParseOptions) error {
	if p.Checker == nil {
		return errors.New("server validation requested but no duplicate checker configured")
	}

	seen := make(map[string]bool)
	for _, t := range result.Tasks() {
		if t.LinkedWorkItemID != nil {
			continue
		}
		key := t.DedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true

		item, err := p.Checker.FindBySubject(ctx, t.ProjectID, t.Subject)
		if err != nil {
			p.Log.Warn("duplicate pre-check failed, treating as new",
				slog.String("subject", t.Subject),
				slog.String("error", err.Error()),
			)
			continue
		}
		if item != nil {
			result.DuplicateWarnings = append(result.DuplicateWarnings, domain.DuplicateWarning{
				Project:       t.Project,
				Subject:       t.Subject,
				WorkItemID:    item.ID,
				RemoteSubject: item.Subject,
			})
		}
	}

	if opts.ThrowOnServerDuplicates && len(result.DuplicateWarnings) > 0 {
		return fmt.Errorf("%w: %d collision(s)", ErrServerDuplicates, len(result.DuplicateWarnings))
	}
	return nil
}
