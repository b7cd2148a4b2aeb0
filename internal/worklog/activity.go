package worklog

import (
	"strings"

	"worklog-sync/internal/config"
)

// defaultActivityRules is the built-in keyword table used when the mapping
// file does not supply one. Order matters: first match wins.
var defaultActivityRules = []config.ActivityRule{
	{Keyword: "meeting", Activity: "Meeting"},
	{Keyword: "standup", Activity: "Meeting"},
	{Keyword: "scrum", Activity: "Meeting"},
	{Keyword: "review", Activity: "Code Review"},
	{Keyword: "deploy", Activity: "Deployment"},
	{Keyword: "release", Activity: "Deployment"},
	{Keyword: "test", Activity: "Testing"},
	{Keyword: "qa", Activity: "Testing"},
	{Keyword: "spec", Activity: "Specification"},
	{Keyword: "design", Activity: "Specification"},
	{Keyword: "support", Activity: "Support"},
}

// InferActivity guesses an activity from a subject using the rule table,
// scanning in order and taking the first case-insensitive substring match.
// fallback applies when nothing matches.
func InferActivity(subject string, rules []config.ActivityRule, fallback string) string {
	if rules == nil {
		rules = defaultActivityRules
	}
	lower := strings.ToLower(subject)
	for _, r := range rules {
		if r.Keyword != "" && strings.Contains(lower, strings.ToLower(r.Keyword)) {
			return r.Activity
		}
	}
	return fallback
}
