package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeMapping(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMapping(t *testing.T) {
	path := writeMapping(t, `
projects:
  Platform: 5
  Mobile: 7
activity_rules:
  - keyword: meeting
    activity: Meeting
default_activity: Support
strict_recurring: true
update_mismatched_entries: true
`)
	m, err := LoadMapping(path)
	if err != nil {
		t.Fatalf("LoadMapping failed: %v", err)
	}
	if m.Projects["Platform"] != 5 || m.Projects["Mobile"] != 7 {
		t.Errorf("projects = %v", m.Projects)
	}
	if len(m.ActivityRules) != 1 || m.ActivityRules[0].Keyword != "meeting" {
		t.Errorf("rules = %v", m.ActivityRules)
	}
	if m.DefaultActivity != "Support" {
		t.Errorf("default activity = %q", m.DefaultActivity)
	}
	if !m.StrictRecurring || !m.UpdateMismatchedEntries {
		t.Error("behavior switches not read")
	}
}

func TestLoadMappingDefaults(t *testing.T) {
	path := writeMapping(t, "projects:\n  Platform: 5\n")
	m, err := LoadMapping(path)
	if err != nil {
		t.Fatalf("LoadMapping failed: %v", err)
	}
	if m.DefaultActivity != "Development" {
		t.Errorf("default activity = %q, want Development", m.DefaultActivity)
	}
	if m.StrictRecurring {
		t.Error("strict_recurring should default to false")
	}
}

func TestLoadMappingRejectsEmptyProjects(t *testing.T) {
	path := writeMapping(t, "default_activity: Development\n")
	if _, err := LoadMapping(path); err == nil || !strings.Contains(err.Error(), "projects table is empty") {
		t.Errorf("error = %v, want empty projects failure", err)
	}
}

func TestLoadMappingMissingFile(t *testing.T) {
	if _, err := LoadMapping(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadRequiresConnectionSettings(t *testing.T) {
	t.Setenv("TRACKER_BASE_URL", "")
	t.Setenv("TRACKER_API_TOKEN", "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "TRACKER_BASE_URL") {
		t.Errorf("error = %v, want missing base URL", err)
	}

	t.Setenv("TRACKER_BASE_URL", "https://tracker.example.com")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "TRACKER_API_TOKEN") {
		t.Errorf("error = %v, want missing token", err)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	path := writeMapping(t, "projects:\n  Platform: 5\n")
	t.Setenv("TRACKER_BASE_URL", "https://tracker.example.com")
	t.Setenv("TRACKER_API_TOKEN", "secret")
	t.Setenv("TRACKER_WORK_ITEM_TYPE", "")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/db")
	t.Setenv("WORKLOG_MAPPING", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Tracker.WorkItemType != "Task" {
		t.Errorf("work item type = %q, want Task default", cfg.Tracker.WorkItemType)
	}
	if cfg.MySQL.DSN == "" || len(cfg.Mapping.Projects) != 1 {
		t.Errorf("cfg = %+v", cfg)
	}
}
