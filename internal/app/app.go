// Package app wires adapters and the processing pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	msql "worklog-sync/internal/adapter/mysql"
	"worklog-sync/internal/adapter/tracker"
	"worklog-sync/internal/categorize"
	"worklog-sync/internal/config"
	"worklog-sync/internal/domain"
	"worklog-sync/internal/migrate"
	"worklog-sync/internal/pipeline"
	"worklog-sync/internal/ports"
	"worklog-sync/internal/resolver"
	"worklog-sync/internal/worklog"
)

// ErrNeedsStartTime marks runs aborted because a date group had no anchor.
var ErrNeedsStartTime = errors.New("start time required")

// App owns the wired components for one process.
type App struct {
	log      *slog.Logger
	cfg      config.Config
	client   ports.TrackingClient
	resolver *resolver.Resolver
	sink     ports.ReportSink
	exec     *pipeline.SerialExecutor
}

// RunOptions carries per-run inputs.
type RunOptions struct {
	// Anchors maps a canonical date to its chain anchor start time.
	Anchors map[string]domain.ClockTime
	// DefaultAnchor applies to dates missing from Anchors; nil means none.
	DefaultAnchor *domain.ClockTime

	// DryRun stops after categorization; nothing is sent to the remote
	// system beyond duplicate lookups.
	DryRun bool

	Parse     worklog.ParseOptions
	Overrides pipeline.Overrides
}

// RunResult bundles everything one run produced.
type RunResult struct {
	Parse    *worklog.ParseResult
	Cat      *categorize.Result
	Warnings []worklog.OverlapWarning
	// Report is nil for dry runs.
	Report *domain.RunReport
}

// New wires the tracking client, verifies credentials, and opens the
// optional MySQL report sink (running its migrations first). Any failure
// here aborts the process before processing begins.
func New(log *slog.Logger, cfg config.Config) (*App, error) {
	client := tracker.NewClient(cfg.Tracker.BaseURL, cfg.Tracker.APIToken, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	user, err := client.GetCurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify tracker credentials: %w", err)
	}
	log.Info("authenticated against tracker", slog.String("login", user.Login))

	a := &App{
		log:      log,
		cfg:      cfg,
		client:   client,
		resolver: resolver.New(log, client),
		exec:     &pipeline.SerialExecutor{},
	}

	if cfg.MySQL.DSN != "" {
		if err := migrate.Run(context.Background(), cfg.MySQL.DSN, log); err != nil {
			return nil, err
		}
		sink, err := msql.NewSink(context.Background(), cfg.MySQL.DSN, log)
		if err != nil {
			return nil, err
		}
		a.sink = sink
	}

	return a, nil
}

// ResolveStatusID maps a status name to its remote identifier,
// case-insensitively.
func (a *App) ResolveStatusID(ctx context.Context, name string) (int64, error) {
	statuses, err := a.client.ListStatuses(ctx)
	if err != nil {
		return 0, err
	}
	for _, s := range statuses {
		if strings.EqualFold(s.Name, name) {
			return s.ID, nil
		}
	}
	return 0, fmt.Errorf("status %q not found on tracker", name)
}

// VerifyProjects checks every mapped project ID against the remote project
// list and reports the ones that do not exist.
func (a *App) VerifyProjects(ctx context.Context) ([]string, error) {
	projects, err := a.client.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	remote := make(map[int64]bool, len(projects))
	for _, p := range projects {
		remote[p.ID] = true
	}
	var missing []string
	for name, id := range a.cfg.Mapping.Projects {
		if !remote[id] {
			missing = append(missing, fmt.Sprintf("%s (id %d)", name, id))
		}
	}
	return missing, nil
}

// RunFile processes a work-log file end to end.
func (a *App) RunFile(ctx context.Context, path string, opts RunOptions) (*RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read work log: %w", err)
	}
	return a.Run(ctx, data, opts)
}

// Run parses, chains, categorizes and processes one work log held in memory.
func (a *App) Run(ctx context.Context, data []byte, opts RunOptions) (*RunResult, error) {
	parser := &worklog.Parser{Log: a.log, Mapping: a.cfg.Mapping, Checker: a.resolver}
	parsed, err := parser.Parse(ctx, data, opts.Parse)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Parse: parsed}

	var needStart []string
	for _, g := range parsed.Groups {
		anchor := opts.DefaultAnchor
		if t, ok := opts.Anchors[g.Date]; ok {
			anchor = &t
		}
		warnings := worklog.BuildTimeChain(g, anchor)
		for _, w := range warnings {
			a.log.Warn("time overlap", slog.String("warning", w.String()))
		}
		result.Warnings = append(result.Warnings, warnings...)
		if g.NeedsStartTime {
			needStart = append(needStart, g.Date)
		}
	}
	if len(needStart) > 0 && !opts.DryRun {
		return result, fmt.Errorf("%w for date(s) %s", ErrNeedsStartTime, strings.Join(needStart, ", "))
	}

	cat := (&categorize.Categorizer{Log: a.log, Checker: a.resolver}).Categorize(ctx, parsed.Tasks())
	result.Cat = cat

	if opts.DryRun {
		return result, nil
	}

	p := &pipeline.Pipeline{
		Log:              a.log,
		Client:           a.client,
		Resolver:         a.resolver,
		Exec:             a.exec,
		WorkItemType:     a.cfg.Tracker.WorkItemType,
		UpdateMismatched: a.cfg.Mapping.UpdateMismatchedEntries,
	}
	report := p.Run(ctx, parsed.Tasks(), cat, opts.Overrides)
	result.Report = report

	if a.sink != nil {
		if err := a.sink.SaveReport(ctx, *report); err != nil {
			// The run itself succeeded; losing the audit row is not fatal.
			a.log.Warn("failed to persist run report", slog.String("error", err.Error()))
		}
	}

	return result, nil
}

// Close releases the report sink, if any.
func (a *App) Close() error {
	type closer interface{ Close() error }
	if c, ok := a.sink.(closer); ok {
		return c.Close()
	}
	return nil
}
