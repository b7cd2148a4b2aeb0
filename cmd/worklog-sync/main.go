package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"worklog-sync/internal/app"
	"worklog-sync/internal/config"
	"worklog-sync/internal/domain"
	"worklog-sync/internal/pipeline"
	"worklog-sync/internal/worklog"
)

var (
	verbose        bool
	startFlags     []string
	commentFlags   []string
	statusName     string
	dryRun         bool
	noServerCheck  bool
	warnDuplicates bool
	serveAddr      string
)

var rootCmd = &cobra.Command{
	Use:   "worklog-sync",
	Short: "Sync a JSON work log into a remote work-tracking system",
	Long: `worklog-sync ingests a multi-date work log, chains start/end times,
detects duplicate work items on the server and records one time entry per
task, skipping anything that already exists.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync <worklog.json>",
	Short: "Process a work-log file against the tracker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, logger, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		opts, err := buildRunOptions()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if statusName != "" {
			id, err := a.ResolveStatusID(ctx, statusName)
			if err != nil {
				return err
			}
			opts.Overrides.DefaultStatusID = &id
		}

		result, err := a.RunFile(ctx, args[0], opts)
		if result != nil {
			printResult(result)
		}
		if err != nil {
			return err
		}
		if result.Report != nil && result.Report.Failed > 0 {
			logger.Warn("run finished with failures", slog.Int("failed", result.Report.Failed))
			os.Exit(1)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <worklog.json>",
	Short: "Parse, validate and categorize without mutating the tracker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		opts, err := buildRunOptions()
		if err != nil {
			return err
		}
		opts.DryRun = true

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		missing, err := a.VerifyProjects(ctx)
		if err != nil {
			return fmt.Errorf("verify project mapping: %w", err)
		}
		for _, m := range missing {
			fmt.Printf("mapping warning: project %s does not exist on the tracker\n", m)
		}

		result, err := a.RunFile(ctx, args[0], opts)
		if result != nil {
			printResult(result)
		}
		return err
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept work logs over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, logger, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := a.HTTPServer(serveAddr)
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return err
			}
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
		return nil
	},
}

func newApp() (*app.App, *slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(logger, cfg)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

// buildRunOptions translates the shared flags. --start takes either "HH:MM"
// (default anchor for every date) or "YYYY-MM-DD=HH:MM" and may repeat;
// --comment takes "N=text" keyed by new-item index.
func buildRunOptions() (app.RunOptions, error) {
	opts := app.RunOptions{
		DryRun:  dryRun,
		Parse:   worklog.DefaultParseOptions(),
		Anchors: map[string]domain.ClockTime{},
		Overrides: pipeline.Overrides{
			Comments: map[int]string{},
		},
	}
	if noServerCheck {
		opts.Parse.ValidateAgainstServer = false
	}
	if warnDuplicates {
		opts.Parse.ThrowOnServerDuplicates = false
	}

	for _, s := range startFlags {
		if date, clock, ok := strings.Cut(s, "="); ok {
			minutes, err := worklog.ParseClock(clock)
			if err != nil {
				return opts, fmt.Errorf("--start %q: %w", s, err)
			}
			opts.Anchors[date] = domain.ClockTime(minutes)
			continue
		}
		minutes, err := worklog.ParseClock(s)
		if err != nil {
			return opts, fmt.Errorf("--start %q: %w", s, err)
		}
		anchor := domain.ClockTime(minutes)
		opts.DefaultAnchor = &anchor
	}

	for _, c := range commentFlags {
		idxStr, text, ok := strings.Cut(c, "=")
		if !ok {
			return opts, fmt.Errorf("--comment %q: expected N=text", c)
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 0 {
			return opts, fmt.Errorf("--comment %q: invalid index", c)
		}
		opts.Overrides.Comments[idx] = text
	}

	return opts, nil
}

func main() {
	syncCmd.Flags().StringArrayVar(&startFlags, "start", nil, "anchor start time, HH:MM or YYYY-MM-DD=HH:MM (repeatable)")
	syncCmd.Flags().StringArrayVar(&commentFlags, "comment", nil, "time-entry comment for new item N, as N=text (repeatable)")
	syncCmd.Flags().StringVar(&statusName, "status", "", "status name applied to created work items")
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "categorize only, do not create anything")
	syncCmd.Flags().BoolVar(&noServerCheck, "no-server-check", false, "skip the duplicate pre-check during parsing")
	syncCmd.Flags().BoolVar(&warnDuplicates, "warn-duplicates", false, "report server duplicates as warnings instead of aborting")

	validateCmd.Flags().StringArrayVar(&startFlags, "start", nil, "anchor start time, HH:MM or YYYY-MM-DD=HH:MM (repeatable)")
	validateCmd.Flags().BoolVar(&noServerCheck, "no-server-check", false, "skip the duplicate pre-check during parsing")
	validateCmd.Flags().BoolVar(&warnDuplicates, "warn-duplicates", false, "report server duplicates as warnings instead of aborting")

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(syncCmd, validateCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
