package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds environment-driven configuration. It is loaded once per run
// and never mutated; components receive it (or slices of it) explicitly.
type Config struct {
	Tracker struct {
		BaseURL  string // e.g. https://tracker.example.com
		APIToken string
		// WorkItemType is the type hint sent when creating work items.
		WorkItemType string // default: Task
	}
	MySQL struct {
		DSN string // optional; empty disables the report sink
	}
	Mapping Mapping
}

// Mapping is the YAML-driven part of the configuration: the project-name to
// identifier table plus behavior switches.
type Mapping struct {
	// Projects maps work-log project names to remote project identifiers.
	Projects map[string]int64 `yaml:"projects"`

	// ActivityRules infer an entry's activity from its subject when the
	// activity field is absent. First match wins; matching is a
	// case-insensitive substring test.
	ActivityRules []ActivityRule `yaml:"activity_rules"`

	// DefaultActivity applies when no rule matches. Default: Development.
	DefaultActivity string `yaml:"default_activity"`

	// StrictRecurring turns a recurring entry without a linked work item
	// into a validation error instead of a silent drop.
	StrictRecurring bool `yaml:"strict_recurring"`

	// UpdateMismatchedEntries makes the pipeline update an existing time
	// entry whose hours differ from the computed hours instead of skipping
	// it. Off by default so re-runs are strictly read-only on matches.
	UpdateMismatchedEntries bool `yaml:"update_mismatched_entries"`
}

// ActivityRule is one (keyword, activity) inference pair.
type ActivityRule struct {
	Keyword  string `yaml:"keyword"`
	Activity string `yaml:"activity"`
}

// Load reads configuration from environment variables and the mapping file
// named by WORKLOG_MAPPING (default: mapping.yaml). Missing connection
// settings or an empty project table are fatal here, before any processing.
func Load() (Config, error) {
	var cfg Config

	cfg.Tracker.BaseURL = os.Getenv("TRACKER_BASE_URL")
	if cfg.Tracker.BaseURL == "" {
		return cfg, errors.New("TRACKER_BASE_URL is required")
	}
	cfg.Tracker.APIToken = os.Getenv("TRACKER_API_TOKEN")
	if cfg.Tracker.APIToken == "" {
		return cfg, errors.New("TRACKER_API_TOKEN is required")
	}
	cfg.Tracker.WorkItemType = os.Getenv("TRACKER_WORK_ITEM_TYPE")
	if cfg.Tracker.WorkItemType == "" {
		cfg.Tracker.WorkItemType = "Task"
	}

	cfg.MySQL.DSN = os.Getenv("MYSQL_DSN")

	mappingPath := os.Getenv("WORKLOG_MAPPING")
	if mappingPath == "" {
		mappingPath = "mapping.yaml"
	}
	m, err := LoadMapping(mappingPath)
	if err != nil {
		return cfg, err
	}
	cfg.Mapping = m

	return cfg, nil
}

// LoadMapping reads and validates the YAML mapping file.
func LoadMapping(path string) (Mapping, error) {
	var m Mapping
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read mapping file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse mapping file %s: %w", path, err)
	}
	if len(m.Projects) == 0 {
		return m, fmt.Errorf("mapping file %s: projects table is empty", path)
	}
	if m.DefaultActivity == "" {
		m.DefaultActivity = "Development"
	}
	return m, nil
}
