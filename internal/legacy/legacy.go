// Package legacy implements the §4.L compatibility layer: a parallel
// newline-delimited JSON store whose Sync step regenerates the whole
// file from a set of native issues, plus a one-shot migration that
// converts a legacy file into native issue files. Nothing in the core
// reads legacy_compat or calls Sync after a native mutation; the file
// changes only when a caller invokes Sync or ReplaceAll directly. The
// record schema, type-alias table, and parent-child expansion are
// grounded on original_source's migration.rs (convert_record,
// convert_dependencies, map_issue_type, parse_timestamp), translated
// from a one-directional "import once" tool into a layer this spec
// also keeps regenerated going forward.
package legacy

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"beacon/internal/beaconerr"
	"beacon/internal/model"
)

// Record is one line of the legacy issues.jsonl file. Field names and
// shapes intentionally differ from model.Issue: type is spelled
// "issue_type" in both, but parent is expressed as a parent-child
// dependency entry, comments carry integer ids, and timestamps may
// lack an explicit timezone.
type Record struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Description  string                `json:"description,omitempty"`
	IssueType    string                `json:"issue_type"`
	Status       string                `json:"status"`
	Priority     int                   `json:"priority"`
	Assignee     string                `json:"assignee,omitempty"`
	Owner        string                `json:"owner,omitempty"`
	Notes        string                `json:"notes,omitempty"`
	CloseReason  string                `json:"close_reason,omitempty"`
	Dependencies []RecordDependency    `json:"dependencies,omitempty"`
	Comments     []RecordComment       `json:"comments,omitempty"`
	CreatedAt    string                `json:"created_at"`
	UpdatedAt    string                `json:"updated_at"`
	ClosedAt     string                `json:"closed_at,omitempty"`
}

// RecordDependency is a legacy dependency entry; parent/child edges are
// expressed with Type == "parent-child" rather than via a separate field.
type RecordDependency struct {
	Type        string `json:"type"`
	DependsOnID string `json:"depends_on_id"`
}

// RecordComment is a legacy comment with an integer id rather than a UUID.
type RecordComment struct {
	ID        int    `json:"id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// Store manages the single-file JSONL representation at path.
type Store struct {
	path string
}

// New returns a Store backed by the legacy JSONL file at path
// (conventionally <root>/.legacy/issues.jsonl).
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads every record from the legacy file. A missing file is
// treated as an empty store, not an error.
func (s *Store) Load() ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, beaconerr.Wrap(beaconerr.IOError, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r Record
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, beaconerr.Wrap(beaconerr.InvalidIssueFile, err)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, beaconerr.Wrap(beaconerr.IOError, err)
	}
	return records, nil
}

// ReplaceAll atomically rewrites the legacy file with records.
func (s *Store) ReplaceAll(records []Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	var buf bytes.Buffer
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return beaconerr.Wrap(beaconerr.IOError, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	return nil
}

// FromIssue converts a native issue into its legacy representation; Sync
// uses it to regenerate every record of the parallel store.
func FromIssue(issue *model.Issue) Record {
	r := Record{
		ID:          issue.Identifier,
		Title:       issue.Title,
		Description: issue.Description,
		IssueType:   issue.IssueType,
		Status:      issue.Status,
		Priority:    issue.Priority,
		Assignee:    issue.Assignee,
		CreatedAt:   issue.CreatedAt.Format(),
		UpdatedAt:   issue.UpdatedAt.Format(),
	}
	if issue.ClosedAt != nil {
		r.ClosedAt = issue.ClosedAt.Format()
	}
	if issue.Parent != "" {
		r.Dependencies = append(r.Dependencies, RecordDependency{Type: "parent-child", DependsOnID: issue.Parent})
	}
	for _, dep := range issue.Dependencies {
		r.Dependencies = append(r.Dependencies, RecordDependency{Type: string(dep.DependencyType), DependsOnID: dep.Target})
	}
	for i, c := range issue.Comments {
		r.Comments = append(r.Comments, RecordComment{ID: i + 1, Author: c.Author, Text: c.Text, CreatedAt: c.CreatedAt.Format()})
	}
	return r
}

// Sync regenerates the legacy record for every issue in issues and
// replaces the whole file atomically, per §4.L's "entire file replaced
// atomically" rule.
func (s *Store) Sync(issues []*model.Issue) error {
	records := make([]Record, 0, len(issues))
	for _, issue := range issues {
		records = append(records, FromIssue(issue))
	}
	return s.ReplaceAll(records)
}

// parseTimestamp accepts the legacy format's looser timestamp shapes
// (possibly missing an explicit timezone) and normalizes them via
// model.Time's flexible parser, assuming UTC when no offset is present.
func parseTimestamp(raw, field string) (model.Time, error) {
	if raw == "" {
		return model.Time{}, beaconerr.Newf(beaconerr.InvalidIssueData, "%s is required", field)
	}
	candidate := raw
	if !strings.Contains(candidate, "+") && !strings.HasSuffix(candidate, "Z") {
		if strings.Count(candidate, "-") <= 2 {
			candidate += "Z"
		}
	}
	data, _ := json.Marshal(candidate)
	var t model.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return model.Time{}, beaconerr.Newf(beaconerr.InvalidIssueData, "%s has unrecognized timestamp shape %q", field, raw)
	}
	return t, nil
}
