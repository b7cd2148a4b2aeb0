package worklog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"worklog-sync/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeChecker returns canned matches by "projectID|subject" key.
type fakeChecker struct {
	matches map[string]*domain.WorkItem
	err     error
	calls   int
}

func (f *fakeChecker) FindBySubject(ctx context.Context, projectID int64, subject string) (*domain.WorkItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.matches[subject], nil
}

const sampleLog = `{
  "logs": [
    {
      "date": "oct-23-2025",
      "entries": [
        {"project": "Platform", "subject": "Fix login bug", "duration_hours": 3, "break_hours": null, "activity": "Development", "is_scrum": false, "work_package_id": null},
        {"project": "Platform", "subject": "Daily scrum", "duration_hours": 0.25, "activity": "Meeting", "is_scrum": true, "work_package_id": 42}
      ]
    },
    {
      "date": "oct-24-2025",
      "entries": [
        {"project": "Mobile", "subject": "Release build", "duration_hours": 1.5, "activity": "Deployment", "is_scrum": false}
      ]
    }
  ]
}`

func newTestParser(checker DuplicateChecker) *Parser {
	return &Parser{Log: testLogger(), Mapping: testMapping(), Checker: checker}
}

func TestParseGroupsByDate(t *testing.T) {
	p := newTestParser(&fakeChecker{})
	result, err := p.Parse(context.Background(), []byte(sampleLog), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(result.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(result.Groups))
	}
	if result.Groups[0].Date != "2025-10-23" || result.Groups[1].Date != "2025-10-24" {
		t.Errorf("dates = %s, %s", result.Groups[0].Date, result.Groups[1].Date)
	}
	if len(result.Groups[0].Tasks) != 2 || len(result.Groups[1].Tasks) != 1 {
		t.Errorf("task counts = %d, %d", len(result.Groups[0].Tasks), len(result.Groups[1].Tasks))
	}
	if got := len(result.Tasks()); got != 3 {
		t.Errorf("Tasks() = %d, want 3", got)
	}
}

func TestParseRejectsBadJSON(t *testing.T) {
	p := newTestParser(&fakeChecker{})
	if _, err := p.Parse(context.Background(), []byte("{nope"), ParseOptions{}); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestParseRejectsWrongShape(t *testing.T) {
	p := newTestParser(&fakeChecker{})
	if _, err := p.Parse(context.Background(), []byte(`{"entries": []}`), ParseOptions{}); err == nil {
		t.Error("expected schema error for missing logs key")
	}
}

func TestParseRejectsBadDate(t *testing.T) {
	p := newTestParser(&fakeChecker{})
	input := `{"logs": [{"date": "sept-31-2025", "entries": []}]}`
	_, err := p.Parse(context.Background(), []byte(input), ParseOptions{})
	if !errors.Is(err, ErrInvalidCalendarDate) {
		t.Errorf("error = %v, want ErrInvalidCalendarDate", err)
	}
}

func TestParseDropsInvalidRecordAndContinues(t *testing.T) {
	input := `{"logs": [{"date": "oct-23-2025", "entries": [
		{"project": "Platform", "subject": "", "duration_hours": 1, "activity": "Development", "is_scrum": false},
		{"project": "Platform", "subject": "Good task", "duration_hours": "two", "activity": "Development", "is_scrum": false},
		{"project": "Platform", "subject": "Good task", "duration_hours": 2, "activity": "Development", "is_scrum": false}
	]}]}`
	p := newTestParser(&fakeChecker{})
	result, err := p.Parse(context.Background(), []byte(input), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(result.Issues) != 2 {
		t.Fatalf("got %d issues, want 2: %v", len(result.Issues), result.Issues)
	}
	if result.Issues[0].Index != 0 || result.Issues[1].Index != 1 {
		t.Errorf("issue indexes = %d, %d", result.Issues[0].Index, result.Issues[1].Index)
	}
	if got := len(result.Tasks()); got != 1 {
		t.Fatalf("kept %d tasks, want 1", got)
	}
	if result.Tasks()[0].Subject != "Good task" {
		t.Errorf("kept wrong task: %s", result.Tasks()[0].Subject)
	}
}

func TestParseServerPrecheckThrows(t *testing.T) {
	checker := &fakeChecker{matches: map[string]*domain.WorkItem{
		"Fix login bug": {ID: 101, Subject: "fix login bug"},
	}}
	p := newTestParser(checker)
	_, err := p.Parse(context.Background(), []byte(sampleLog), DefaultParseOptions())
	if !errors.Is(err, ErrServerDuplicates) {
		t.Errorf("error = %v, want ErrServerDuplicates", err)
	}
}

func TestParseServerPrecheckWarns(t *testing.T) {
	checker := &fakeChecker{matches: map[string]*domain.WorkItem{
		"Fix login bug": {ID: 101, Subject: "fix login bug"},
	}}
	p := newTestParser(checker)
	opts := DefaultParseOptions()
	opts.ThrowOnServerDuplicates = false

	result, err := p.Parse(context.Background(), []byte(sampleLog), opts)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(result.DuplicateWarnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(result.DuplicateWarnings))
	}
	w := result.DuplicateWarnings[0]
	if w.WorkItemID != 101 || w.RemoteSubject != "fix login bug" {
		t.Errorf("warning = %+v", w)
	}
}

func TestParseServerPrecheckSkipsLinkedTasks(t *testing.T) {
	checker := &fakeChecker{}
	p := newTestParser(checker)
	if _, err := p.Parse(context.Background(), []byte(sampleLog), DefaultParseOptions()); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	// Three tasks but the daily scrum carries a work_package_id, so only the
	// two unlinked subjects hit the checker.
	if checker.calls != 2 {
		t.Errorf("checker calls = %d, want 2", checker.calls)
	}
}

func TestParseServerPrecheckFailsOpen(t *testing.T) {
	checker := &fakeChecker{err: errors.New("tracker down")}
	p := newTestParser(checker)
	result, err := p.Parse(context.Background(), []byte(sampleLog), DefaultParseOptions())
	if err != nil {
		t.Fatalf("lookup failure should not abort parsing: %v", err)
	}
	if len(result.DuplicateWarnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.DuplicateWarnings)
	}
}

func TestParseSkipsServerCheckWhenDisabled(t *testing.T) {
	checker := &fakeChecker{}
	p := newTestParser(checker)
	opts := ParseOptions{ValidateAgainstServer: false}
	if _, err := p.Parse(context.Background(), []byte(sampleLog), opts); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if checker.calls != 0 {
		t.Errorf("checker calls = %d, want 0", checker.calls)
	}
}
