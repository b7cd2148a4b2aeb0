package main

import (
	"fmt"

	"worklog-sync/internal/app"
)

// printResult renders a run to stdout for the operator.
func printResult(r *app.RunResult) {
	for _, issue := range r.Parse.Issues {
		fmt.Printf("dropped entry %d on %s: %s\n", issue.Index, issue.Date, issue.Errors.Error())
	}
	for _, w := range r.Parse.DuplicateWarnings {
		fmt.Printf("server duplicate: %s/%s already exists as work item %d (%q)\n",
			w.Project, w.Subject, w.WorkItemID, w.RemoteSubject)
	}
	for _, w := range r.Warnings {
		fmt.Printf("overlap: %s\n", w)
	}

	if r.Cat != nil {
		fmt.Printf("categorized: %d recurring, %d linked, %d duplicate, %d new\n",
			len(r.Cat.Recurring), len(r.Cat.Linked), len(r.Cat.Duplicate), len(r.Cat.New))
	}

	if r.Report == nil {
		return
	}
	for _, o := range r.Report.Outcomes {
		mark := "ok"
		if !o.Succeeded {
			mark = "FAIL"
		}
		line := fmt.Sprintf("[%s] %s %s (%s): %s", mark, o.Date, o.Subject, o.Project, o.Kind)
		if o.WorkItemID != nil {
			line += fmt.Sprintf(" work_item=%d", *o.WorkItemID)
		}
		if o.TimeEntryID != nil {
			line += fmt.Sprintf(" time_entry=%d", *o.TimeEntryID)
		}
		if o.Error != "" {
			line += " error=" + o.Error
		}
		fmt.Println(line)
	}
	fmt.Printf("run %s: created=%d updated=%d skipped=%d failed=%d\n",
		r.Report.RunID, r.Report.Created, r.Report.Updated, r.Report.Skipped(), r.Report.Failed)
}
