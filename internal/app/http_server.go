package app

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"worklog-sync/internal/domain"
	"worklog-sync/internal/worklog"
)

const maxBodyBytes = 1 << 20 // 1 MiB work-log files are already enormous

// HTTPServer returns a configured http.Server that accepts work logs over
// HTTP. Call ListenAndServe on the returned server in a goroutine and
// Shutdown it on exit.
func (a *App) HTTPServer(addr string) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// POST /sync with the work-log JSON as the body.
	// Query: start=HH:MM (default anchor), dry_run=1, no_server_check=1,
	// warn_duplicates=1 (return server duplicates as warnings, don't abort).
	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
			return
		}

		q := r.URL.Query()
		opts := RunOptions{
			DryRun: q.Get("dry_run") == "1",
			Parse:  worklog.DefaultParseOptions(),
		}
		if q.Get("no_server_check") == "1" {
			opts.Parse.ValidateAgainstServer = false
		}
		if q.Get("warn_duplicates") == "1" {
			opts.Parse.ThrowOnServerDuplicates = false
		}
		if s := q.Get("start"); s != "" {
			minutes, err := worklog.ParseClock(s)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			anchor := domain.ClockTime(minutes)
			opts.DefaultAnchor = &anchor
		}

		result, err := a.Run(r.Context(), body, opts)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, worklog.ErrServerDuplicates), errors.Is(err, ErrNeedsStartTime):
				status = http.StatusConflict
			case result == nil:
				// Parse-level failure: the file itself is bad.
				status = http.StatusBadRequest
			}
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "error",
				"error":  err.Error(),
			})
			return
		}

		resp := map[string]any{
			"status":             "ok",
			"dry_run":            opts.DryRun,
			"issues":             result.Parse.Issues,
			"duplicate_warnings": result.Parse.DuplicateWarnings,
		}
		if result.Report != nil {
			resp["report"] = result.Report
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := &http.Server{Addr: addr, Handler: loggingMiddleware(a.log, mux)}
	a.log.Info("http trigger server configured", slog.String("addr", addr))
	return srv
}

// loggingMiddleware provides basic request logging.
func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("dur", time.Since(start)),
		)
	})
}
