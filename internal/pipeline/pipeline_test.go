package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"worklog-sync/internal/categorize"
	"worklog-sync/internal/domain"
)

// fakeTracker is an in-memory remote: created work items and time entries
// persist across runs so idempotence is observable.
type fakeTracker struct {
	workItems []domain.WorkItem
	entries   []domain.TimeEntry
	nextID    int64

	failCreateItem  map[string]error // by subject
	failCreateEntry map[int64]error  // by work item ID

	createItemCalls  int
	createEntryCalls int
	updateEntryCalls int
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		nextID:          100,
		failCreateItem:  map[string]error{},
		failCreateEntry: map[int64]error{},
	}
}

func (f *fakeTracker) GetCurrentUser(ctx context.Context) (domain.User, error) {
	return domain.User{ID: 1, Login: "tester"}, nil
}
func (f *fakeTracker) ListProjects(ctx context.Context) ([]domain.Project, error) { return nil, nil }
func (f *fakeTracker) ListStatuses(ctx context.Context) ([]domain.Status, error)  { return nil, nil }

func (f *fakeTracker) ListWorkItems(ctx context.Context, projectID int64, pageOffset, pageSize int) ([]domain.WorkItem, error) {
	if pageOffset > 1 {
		return nil, nil
	}
	var out []domain.WorkItem
	for _, w := range f.workItems {
		if w.ProjectID == projectID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeTracker) CreateWorkItem(ctx context.Context, projectID int64, subject, typeHint, description string, statusID *int64) (domain.WorkItem, error) {
	f.createItemCalls++
	if err := f.failCreateItem[subject]; err != nil {
		return domain.WorkItem{}, err
	}
	f.nextID++
	item := domain.WorkItem{ID: f.nextID, ProjectID: projectID, Subject: subject, Type: typeHint, StatusID: statusID}
	f.workItems = append(f.workItems, item)
	return item, nil
}

func (f *fakeTracker) ListTimeEntries(ctx context.Context) ([]domain.TimeEntry, error) {
	return append([]domain.TimeEntry(nil), f.entries...), nil
}

func (f *fakeTracker) CreateTimeEntry(ctx context.Context, workItemID int64, date, startTime string, hours float64, activity, comment string) (domain.TimeEntry, error) {
	f.createEntryCalls++
	if err := f.failCreateEntry[workItemID]; err != nil {
		return domain.TimeEntry{}, err
	}
	f.nextID++
	entry := domain.TimeEntry{ID: f.nextID, WorkItemID: workItemID, SpentOn: date, Hours: hours, Activity: activity, Comment: comment}
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeTracker) UpdateTimeEntry(ctx context.Context, id int64, hours float64, comment string) (domain.TimeEntry, error) {
	f.updateEntryCalls++
	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries[i].Hours = hours
			if comment != "" {
				f.entries[i].Comment = comment
			}
			return f.entries[i], nil
		}
	}
	return domain.TimeEntry{}, errors.New("no such time entry")
}

// storeChecker resolves duplicates against the fake tracker's items.
type storeChecker struct {
	store *fakeTracker
	err   error
}

func (c *storeChecker) FindBySubject(ctx context.Context, projectID int64, subject string) (*domain.WorkItem, error) {
	if c.err != nil {
		return nil, c.err
	}
	q := strings.ToLower(strings.TrimSpace(subject))
	for i := range c.store.workItems {
		w := c.store.workItems[i]
		if w.ProjectID == projectID && strings.ToLower(strings.TrimSpace(w.Subject)) == q {
			return &w, nil
		}
	}
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func id(v int64) *int64 { return &v }

func mkTask(subject string, hours float64, recurring bool, linked *int64) *domain.Task {
	start := domain.ClockTime(11 * 60)
	end := domain.ClockTime(11*60 + int(hours*60))
	return &domain.Task{
		Project:          "Platform",
		ProjectID:        5,
		Subject:          subject,
		DurationHours:    hours,
		Activity:         "Development",
		Recurring:        recurring,
		LinkedWorkItemID: linked,
		EntryDate:        "2025-10-23",
		Start:            &start,
		End:              &end,
	}
}

func newPipeline(store *fakeTracker, updateMismatched bool) *Pipeline {
	return &Pipeline{
		Log:              testLogger(),
		Client:           store,
		Resolver:         &storeChecker{store: store},
		Exec:             &SerialExecutor{},
		WorkItemType:     "Task",
		UpdateMismatched: updateMismatched,
	}
}

func categorizeTasks(t *testing.T, store *fakeTracker, tasks []*domain.Task) *categorize.Result {
	t.Helper()
	c := &categorize.Categorizer{Log: testLogger(), Checker: &storeChecker{store: store}}
	return c.Categorize(context.Background(), tasks)
}

func TestRunCreatesWorkItemAndTimeEntry(t *testing.T) {
	store := newFakeTracker()
	tasks := []*domain.Task{mkTask("Fix login bug", 2.5, false, nil)}
	cat := categorizeTasks(t, store, tasks)

	report := newPipeline(store, false).Run(context.Background(), tasks, cat, Overrides{})

	if len(report.Outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(report.Outcomes))
	}
	o := report.Outcomes[0]
	if !o.Succeeded || o.Kind != domain.StatusCreatedWorkItem {
		t.Errorf("outcome = %+v", o)
	}
	if o.WorkItemID == nil || o.TimeEntryID == nil {
		t.Fatal("outcome missing remote IDs")
	}
	if report.Created != 1 || report.Failed != 0 {
		t.Errorf("counters = created %d failed %d", report.Created, report.Failed)
	}
	if len(store.workItems) != 1 || len(store.entries) != 1 {
		t.Fatalf("remote state: %d items, %d entries", len(store.workItems), len(store.entries))
	}
	if store.entries[0].SpentOn != "2025-10-23" || store.entries[0].Hours != 2.5 {
		t.Errorf("entry = %+v", store.entries[0])
	}
	if tasks[0].Status != domain.StatusCreatedWorkItem {
		t.Errorf("task status = %s", tasks[0].Status)
	}
}

func TestRunIdempotentRerun(t *testing.T) {
	store := newFakeTracker()
	mk := func() []*domain.Task {
		return []*domain.Task{
			mkTask("Task one", 2, false, nil),
			mkTask("Task two", 1, false, nil),
		}
	}

	first := mk()
	report1 := newPipeline(store, false).Run(context.Background(), first, categorizeTasks(t, store, first), Overrides{})
	if report1.Created != 2 {
		t.Fatalf("first run created = %d, want 2", report1.Created)
	}

	second := mk()
	report2 := newPipeline(store, false).Run(context.Background(), second, categorizeTasks(t, store, second), Overrides{})

	if report2.Created != 0 {
		t.Errorf("second run created = %d, want 0", report2.Created)
	}
	for _, o := range report2.Outcomes {
		if o.Kind != domain.StatusSkippedDuplicateEntry {
			t.Errorf("outcome %q kind = %s, want skipped", o.Subject, o.Kind)
		}
	}
	if len(store.entries) != 2 {
		t.Errorf("entries after rerun = %d, want 2", len(store.entries))
	}
}

func TestRunLinkedAndRecurringReuseKnownItem(t *testing.T) {
	store := newFakeTracker()
	store.workItems = append(store.workItems,
		domain.WorkItem{ID: 42, ProjectID: 5, Subject: "Standing meeting"},
		domain.WorkItem{ID: 43, ProjectID: 5, Subject: "Planned work"},
	)
	tasks := []*domain.Task{
		mkTask("Daily scrum", 0.25, true, id(42)),
		mkTask("Planned work", 2, false, id(43)),
	}
	cat := categorizeTasks(t, store, tasks)

	report := newPipeline(store, false).Run(context.Background(), tasks, cat, Overrides{})

	if store.createItemCalls != 0 {
		t.Errorf("createItemCalls = %d, want 0", store.createItemCalls)
	}
	for _, o := range report.Outcomes {
		if o.Kind != domain.StatusUsingExistingWorkItem {
			t.Errorf("outcome %q kind = %s, want using_existing_work_item", o.Subject, o.Kind)
		}
	}
	if report.Created != 2 {
		t.Errorf("created = %d, want 2 time entries", report.Created)
	}
}

func TestRunServerDuplicateReusesItem(t *testing.T) {
	store := newFakeTracker()
	store.workItems = append(store.workItems,
		domain.WorkItem{ID: 77, ProjectID: 5, Subject: "fix login bug"},
	)
	tasks := []*domain.Task{mkTask("Fix Login Bug", 2, false, nil)}
	cat := categorizeTasks(t, store, tasks)

	report := newPipeline(store, false).Run(context.Background(), tasks, cat, Overrides{})

	if store.createItemCalls != 0 {
		t.Errorf("createItemCalls = %d, want 0", store.createItemCalls)
	}
	o := report.Outcomes[0]
	if o.Kind != domain.StatusReusedExistingWorkItem {
		t.Errorf("kind = %s, want reused_existing_work_item", o.Kind)
	}
	if o.WorkItemID == nil || *o.WorkItemID != 77 {
		t.Errorf("work item = %v, want 77", o.WorkItemID)
	}
}

func TestRunPreCreateRecheckCatchesLateDuplicate(t *testing.T) {
	store := newFakeTracker()
	tasks := []*domain.Task{mkTask("Racy subject", 1, false, nil)}
	cat := categorizeTasks(t, store, tasks)

	// The work item appears between categorization and processing.
	store.workItems = append(store.workItems,
		domain.WorkItem{ID: 88, ProjectID: 5, Subject: "racy subject"},
	)

	report := newPipeline(store, false).Run(context.Background(), tasks, cat, Overrides{})

	if store.createItemCalls != 0 {
		t.Errorf("createItemCalls = %d, want 0 (recheck should reuse)", store.createItemCalls)
	}
	if report.Outcomes[0].Kind != domain.StatusReusedExistingWorkItem {
		t.Errorf("kind = %s, want reused", report.Outcomes[0].Kind)
	}
}

func TestRunPartialFailureContinues(t *testing.T) {
	store := newFakeTracker()
	store.failCreateItem["Broken task"] = errors.New("remote rejected")

	tasks := []*domain.Task{
		mkTask("Good one", 1, false, nil),
		mkTask("Broken task", 1, false, nil),
		mkTask("Good two", 1, false, nil),
	}
	cat := categorizeTasks(t, store, tasks)

	report := newPipeline(store, false).Run(context.Background(), tasks, cat, Overrides{})

	if len(report.Outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(report.Outcomes))
	}
	if report.Failed != 1 || report.Created != 2 {
		t.Errorf("counters = created %d failed %d", report.Created, report.Failed)
	}

	// Outcome order matches input order and failures stay local.
	wantKinds := []domain.TaskStatus{
		domain.StatusCreatedWorkItem,
		domain.StatusError,
		domain.StatusCreatedWorkItem,
	}
	for i, want := range wantKinds {
		if report.Outcomes[i].Kind != want {
			t.Errorf("outcome[%d] kind = %s, want %s", i, report.Outcomes[i].Kind, want)
		}
	}
	if report.Outcomes[1].Error == "" || report.Outcomes[1].Succeeded {
		t.Errorf("failed outcome = %+v", report.Outcomes[1])
	}
}

func TestRunCommentFormat(t *testing.T) {
	store := newFakeTracker()
	tasks := []*domain.Task{mkTask("Fix login bug", 2.5, false, nil)}
	cat := categorizeTasks(t, store, tasks)

	overrides := Overrides{Comments: map[int]string{0: "Fixed login bug"}}
	newPipeline(store, false).Run(context.Background(), tasks, cat, overrides)

	want := "[11:00 AM - 1:30 PM] Fixed login bug"
	if got := store.entries[0].Comment; got != want {
		t.Errorf("comment = %q, want %q", got, want)
	}
}

func TestRunCommentWithoutTimes(t *testing.T) {
	store := newFakeTracker()
	task := mkTask("No times", 1, false, nil)
	task.Start, task.End = nil, nil
	cat := categorizeTasks(t, store, []*domain.Task{task})

	overrides := Overrides{Comments: map[int]string{0: "free text"}}
	newPipeline(store, false).Run(context.Background(), []*domain.Task{task}, cat, overrides)

	if got := store.entries[0].Comment; got != "free text" {
		t.Errorf("comment = %q, want bare text without bracket", got)
	}
}

func TestRunUpdatesMismatchedHours(t *testing.T) {
	store := newFakeTracker()
	store.workItems = append(store.workItems,
		domain.WorkItem{ID: 42, ProjectID: 5, Subject: "Planned work"},
	)
	store.entries = append(store.entries,
		domain.TimeEntry{ID: 9, WorkItemID: 42, SpentOn: "2025-10-23", Hours: 1},
	)
	tasks := []*domain.Task{mkTask("Planned work", 2, false, id(42))}
	cat := categorizeTasks(t, store, tasks)

	// Default mode skips even when hours differ.
	report := newPipeline(store, false).Run(context.Background(), tasks, cat, Overrides{})
	if report.Outcomes[0].Kind != domain.StatusSkippedDuplicateEntry {
		t.Fatalf("kind = %s, want skipped", report.Outcomes[0].Kind)
	}
	if store.updateEntryCalls != 0 {
		t.Fatal("default mode must not update")
	}

	tasks2 := []*domain.Task{mkTask("Planned work", 2, false, id(42))}
	cat2 := categorizeTasks(t, store, tasks2)
	report2 := newPipeline(store, true).Run(context.Background(), tasks2, cat2, Overrides{})

	if report2.Outcomes[0].Kind != domain.StatusUpdatedTimeEntry {
		t.Errorf("kind = %s, want updated_time_entry", report2.Outcomes[0].Kind)
	}
	if report2.Updated != 1 {
		t.Errorf("updated = %d, want 1", report2.Updated)
	}
	if store.entries[0].Hours != 2 {
		t.Errorf("remote hours = %g, want 2", store.entries[0].Hours)
	}
}

func TestRunSkipsTasksDroppedByDedupe(t *testing.T) {
	store := newFakeTracker()
	tasks := []*domain.Task{
		mkTask("Same task", 2, false, nil),
		mkTask("Same task", 2, false, nil),
	}
	cat := categorizeTasks(t, store, tasks)

	report := newPipeline(store, false).Run(context.Background(), tasks, cat, Overrides{})

	if len(report.Outcomes) != 1 {
		t.Errorf("outcomes = %d, want 1 (duplicate log entry dropped)", len(report.Outcomes))
	}
	if len(store.entries) != 1 {
		t.Errorf("entries = %d, want 1", len(store.entries))
	}
}

func TestRunCancelledContextFailsRemainingTasks(t *testing.T) {
	store := newFakeTracker()
	tasks := []*domain.Task{
		mkTask("One", 1, false, nil),
		mkTask("Two", 1, false, nil),
	}
	cat := categorizeTasks(t, store, tasks)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := newPipeline(store, false).Run(ctx, tasks, cat, Overrides{})

	if len(report.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(report.Outcomes))
	}
	if report.Failed != 2 {
		t.Errorf("failed = %d, want 2", report.Failed)
	}
	if store.createItemCalls != 0 {
		t.Errorf("remote calls after cancel = %d, want 0", store.createItemCalls)
	}
}
