package mysql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"worklog-sync/internal/domain"
)

// Sink implements ports.ReportSink by writing run reports to MySQL so past
// runs stay auditable.
type Sink struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSink opens a MySQL connection using the provided DSN.
// Example DSN: user:pass@tcp(host:3306)/dbname?parseTime=true&multiStatements=true
func NewSink(ctx context.Context, dsn string, log *slog.Logger) (*Sink, error) {
	if dsn == "" {
		return nil, errors.New("mysql: DSN is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, err
	}
	return &Sink{db: db, log: log}, nil
}

// SaveReport upserts the run header and every per-task outcome in one
// transaction. Re-saving the same run replaces its rows.
func (s *Sink) SaveReport(ctx context.Context, report domain.RunReport) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const runQ = `
INSERT INTO worklog_runs
  (run_id, started_at, finished_at, created_count, updated_count, failed_count)
VALUES
  (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  started_at=VALUES(started_at),
  finished_at=VALUES(finished_at),
  created_count=VALUES(created_count),
  updated_count=VALUES(updated_count),
  failed_count=VALUES(failed_count);
`
	if _, err := tx.ExecContext(ctx, runQ,
		report.RunID,
		report.StartedAt,
		report.FinishedAt,
		report.Created,
		report.Updated,
		report.Failed,
	); err != nil {
		tx.Rollback()
		return err
	}

	const outcomeQ = `
INSERT INTO worklog_task_outcomes
  (run_id, task_index, project, subject, entry_date, succeeded, kind, work_item_id, time_entry_id, error_message)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  project=VALUES(project),
  subject=VALUES(subject),
  entry_date=VALUES(entry_date),
  succeeded=VALUES(succeeded),
  kind=VALUES(kind),
  work_item_id=VALUES(work_item_id),
  time_entry_id=VALUES(time_entry_id),
  error_message=VALUES(error_message);
`
	stmt, err := tx.PrepareContext(ctx, outcomeQ)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, o := range report.Outcomes {
		var workItem, timeEntry any
		if o.WorkItemID != nil {
			workItem = *o.WorkItemID
		}
		if o.TimeEntryID != nil {
			timeEntry = *o.TimeEntryID
		}
		if _, err := stmt.ExecContext(ctx,
			report.RunID,
			o.Index,
			o.Project,
			o.Subject,
			o.Date,
			o.Succeeded,
			string(o.Kind),
			workItem,
			timeEntry,
			o.Error,
		); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Info("mysql sink saved run report",
		slog.String("run_id", report.RunID),
		slog.Int("outcomes", len(report.Outcomes)),
	)
	return nil
}

// Close closes the underlying DB. Not wired via interface to keep ports minimal.
func (s *Sink) Close() error { return s.db.Close() }
