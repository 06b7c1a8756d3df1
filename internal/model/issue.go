// Package model defines the on-disk entity types shared by every core
// component: issues, comments, dependency edges, configuration, and
// events, along with their canonical JSON encoding.
package model

import (
	"encoding/json"
	"strings"

	"beacon/internal/beaconerr"
)

// DependencyType is the closed set of edge kinds an issue may declare.
type DependencyType string

const (
	DependencyBlockedBy DependencyType = "blocked-by"
	DependencyRelatesTo DependencyType = "relates-to"
)

// ValidDependencyType reports whether t is one of the allowed kinds.
func ValidDependencyType(t DependencyType) bool {
	return t == DependencyBlockedBy || t == DependencyRelatesTo
}

// Dependency is a typed edge from the owning issue to target.
type Dependency struct {
	Target         string         `json:"target"`
	DependencyType DependencyType `json:"dependency_type"`
}

// Comment is a single free-text note attached to an issue.
type Comment struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	CreatedAt Time   `json:"created_at"`
}

// Issue is the primary entity. See the data model's issue section for
// field semantics and invariants.
type Issue struct {
	Identifier   string         `json:"identifier"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	IssueType    string         `json:"issue_type"`
	Status       string         `json:"status"`
	Priority     int            `json:"priority"`
	Assignee     string         `json:"assignee,omitempty"`
	Creator      string         `json:"creator,omitempty"`
	Parent       string         `json:"parent,omitempty"`
	Labels       []string       `json:"labels,omitempty"`
	Dependencies []Dependency   `json:"dependencies,omitempty"`
	Comments     []Comment      `json:"comments,omitempty"`
	CreatedAt    Time           `json:"created_at"`
	UpdatedAt    Time           `json:"updated_at"`
	ClosedAt     *Time          `json:"closed_at,omitempty"`
	Custom       map[string]any `json:"custom,omitempty"`

	// ProjectLabel is populated by the multi-project resolver when an
	// issue is returned as part of a composed query across the primary
	// project, the local sibling, and virtual projects. It is never
	// persisted; it exists only on in-memory copies handed back to
	// callers that need provenance.
	ProjectLabel string `json:"-"`
}

// issueKnownFields lists every top-level key the Issue struct itself
// understands. Anything else found on read is folded into Custom.
var issueKnownFields = map[string]bool{
	"identifier":   true,
	"title":        true,
	"description":  true,
	"issue_type":   true,
	"status":       true,
	"priority":     true,
	"assignee":     true,
	"creator":      true,
	"parent":       true,
	"labels":       true,
	"dependencies": true,
	"comments":     true,
	"created_at":   true,
	"updated_at":   true,
	"closed_at":    true,
	"custom":       true,
}

// issueAlias avoids infinite recursion when delegating to the default
// struct (un)marshaler from inside Issue's custom methods.
type issueAlias Issue

// UnmarshalJSON decodes an issue record, folding any top-level key the
// struct does not recognize into Custom so older or foreign-origin
// records round-trip without data loss.
func (i *Issue) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return beaconerr.Wrap(beaconerr.InvalidIssueFile, err)
	}

	var alias issueAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return beaconerr.Wrap(beaconerr.InvalidIssueData, err)
	}
	*i = Issue(alias)

	var extra map[string]any
	for key, value := range raw {
		if issueKnownFields[key] {
			continue
		}
		if extra == nil {
			extra = map[string]any{}
		}
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return beaconerr.Wrap(beaconerr.InvalidIssueData, err)
		}
		extra[key] = v
	}
	if extra != nil {
		if i.Custom == nil {
			i.Custom = extra
		} else {
			for k, v := range extra {
				i.Custom[k] = v
			}
		}
	}
	return nil
}

// MarshalJSON encodes the issue with its declared fields in a stable
// order; values folded into Custom on a prior read are written back
// nested under "custom" rather than restored as top-level keys.
func (i Issue) MarshalJSON() ([]byte, error) {
	return json.Marshal(issueAlias(i))
}

// NormalizedTitle returns the title with case and surrounding/internal
// whitespace normalized, used for duplicate-title comparisons within a
// project.
func NormalizedTitle(title string) string {
	fields := strings.Fields(title)
	return strings.ToLower(strings.Join(fields, " "))
}

// HasDependency reports whether the issue already declares an edge to
// target of the given type.
func (i *Issue) HasDependency(target string, depType DependencyType) bool {
	for _, d := range i.Dependencies {
		if d.Target == target && d.DependencyType == depType {
			return true
		}
	}
	return false
}

// BlockedByTargets returns the target ids of every blocked-by edge.
func (i *Issue) BlockedByTargets() []string {
	var out []string
	for _, d := range i.Dependencies {
		if d.DependencyType == DependencyBlockedBy {
			out = append(out, d.Target)
		}
	}
	return out
}

// HasLabel reports whether label is present, compared case-insensitively.
func (i *Issue) HasLabel(label string) bool {
	for _, l := range i.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}
