package model

import (
	"encoding/json"
	"testing"
)

func TestIssueUnmarshalFoldsUnknownFieldsIntoCustom(t *testing.T) {
	raw := `{
		"identifier": "proj-abc123",
		"title": "Fix the thing",
		"issue_type": "task",
		"status": "open",
		"priority": 2,
		"created_at": "2024-03-01T12:00:00Z",
		"updated_at": "2024-03-01T12:00:00Z",
		"legacy_owner": "alice",
		"estimate_hours": 3
	}`

	var issue Issue
	if err := json.Unmarshal([]byte(raw), &issue); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if issue.Identifier != "proj-abc123" {
		t.Errorf("expected identifier proj-abc123, got %s", issue.Identifier)
	}
	if issue.Custom["legacy_owner"] != "alice" {
		t.Errorf("expected legacy_owner custom field to survive, got %v", issue.Custom["legacy_owner"])
	}
	if issue.Custom["estimate_hours"] != float64(3) {
		t.Errorf("expected estimate_hours custom field to survive, got %v", issue.Custom["estimate_hours"])
	}
}

func TestIssueMarshalNestsCustomFields(t *testing.T) {
	issue := Issue{
		Identifier: "proj-abc123",
		Title:      "Fix the thing",
		IssueType:  "task",
		Status:     "open",
		Custom:     map[string]any{"legacy_owner": "alice"},
	}

	data, err := json.Marshal(issue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	custom, ok := decoded["custom"].(map[string]any)
	if !ok {
		t.Fatalf("expected a top-level custom object, got %v", decoded["custom"])
	}
	if custom["legacy_owner"] != "alice" {
		t.Errorf("expected nested legacy_owner, got %v", custom["legacy_owner"])
	}
	if _, ok := decoded["legacy_owner"]; ok {
		t.Errorf("did not expect legacy_owner restored as a top-level key")
	}
}

func TestNormalizedTitle(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"case difference", "Fix the Bug", "fix the bug", true},
		{"whitespace difference", "Fix   the bug", "Fix the bug", true},
		{"different text", "Fix the bug", "Fix another bug", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizedTitle(tt.a) == NormalizedTitle(tt.b)
			if got != tt.want {
				t.Errorf("NormalizedTitle(%q) == NormalizedTitle(%q): got %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestIssueHasDependency(t *testing.T) {
	issue := Issue{Dependencies: []Dependency{{Target: "proj-1", DependencyType: DependencyBlockedBy}}}
	if !issue.HasDependency("proj-1", DependencyBlockedBy) {
		t.Error("expected HasDependency to find the existing edge")
	}
	if issue.HasDependency("proj-1", DependencyRelatesTo) {
		t.Error("did not expect HasDependency to match a different dependency type")
	}
	if issue.HasDependency("proj-2", DependencyBlockedBy) {
		t.Error("did not expect HasDependency to match a different target")
	}
}

func TestIssueBlockedByTargets(t *testing.T) {
	issue := Issue{Dependencies: []Dependency{
		{Target: "proj-1", DependencyType: DependencyBlockedBy},
		{Target: "proj-2", DependencyType: DependencyRelatesTo},
	}}
	targets := issue.BlockedByTargets()
	if len(targets) != 1 || targets[0] != "proj-1" {
		t.Errorf("expected only proj-1, got %v", targets)
	}
}
