package legacy

import (
	"fmt"

	"github.com/google/uuid"

	"beacon/internal/beaconerr"
	"beacon/internal/idgen"
	"beacon/internal/model"
)

// Result reports the outcome of a one-shot migration.
type Result struct {
	IssueCount int
}

// MigrateToNative converts every legacy record into a native issue,
// mapping type aliases, expanding parent-child dependency entries into
// the native parent field, normalizing timestamps, and preserving
// legacy-only fields under custom.legacy_*. Any malformed record aborts
// the migration before any issue is written, returning a diagnostic
// that names the offending record's id.
func MigrateToNative(records []Record, cfg *model.Config, projectKey string) ([]*model.Issue, Result, error) {
	byID := make(map[string]Record, len(records))
	for _, r := range records {
		if r.ID == "" {
			return nil, Result{}, beaconerr.New(beaconerr.InvalidIssueData, "legacy record missing id")
		}
		byID[r.ID] = r
	}

	existingIDs := map[string]bool{}
	nativeIDFor := map[string]string{}
	issues := make([]*model.Issue, 0, len(records))

	for _, r := range records {
		issue, err := convertRecord(r, byID, cfg, projectKey, existingIDs, nativeIDFor)
		if err != nil {
			return nil, Result{}, fmt.Errorf("migrating legacy issue %q: %w", r.ID, err)
		}
		existingIDs[issue.Identifier] = true
		nativeIDFor[r.ID] = issue.Identifier
		issues = append(issues, issue)
	}

	// A second pass resolves parent and dependency targets now that
	// every legacy id has a native counterpart, since dependency
	// entries may reference records later in the file.
	for i := range records {
		issue := issues[i]
		if issue.Parent != "" {
			issue.Parent = nativeIDFor[issue.Parent]
		}
		for j := range issue.Dependencies {
			issue.Dependencies[j].Target = nativeIDFor[issue.Dependencies[j].Target]
		}
	}

	return issues, Result{IssueCount: len(issues)}, nil
}

func mapIssueType(cfg *model.Config, raw string) string {
	if alias, ok := cfg.LegacyTypeAliases[raw]; ok {
		return alias
	}
	return raw
}

func convertRecord(r Record, byID map[string]Record, cfg *model.Config, projectKey string, existingIDs map[string]bool, nativeIDFor map[string]string) (*model.Issue, error) {
	if r.Title == "" {
		return nil, beaconerr.New(beaconerr.InvalidIssueData, "title is required")
	}
	issueType := mapIssueType(cfg, r.IssueType)
	if !cfg.IsHierarchical(issueType) {
		found := false
		for _, t := range cfg.Types {
			if t == issueType {
				found = true
				break
			}
		}
		if !found {
			return nil, beaconerr.Newf(beaconerr.InvalidIssueData, "unrecognized issue type %q", issueType)
		}
	}
	if _, ok := cfg.Priorities[r.Priority]; !ok {
		return nil, beaconerr.Newf(beaconerr.InvalidIssueData, "invalid priority %d", r.Priority)
	}

	createdAt, err := parseTimestamp(r.CreatedAt, "created_at")
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTimestamp(r.UpdatedAt, "updated_at")
	if err != nil {
		return nil, err
	}
	var closedAt *model.Time
	if r.ClosedAt != "" {
		t, err := parseTimestamp(r.ClosedAt, "closed_at")
		if err != nil {
			return nil, err
		}
		closedAt = &t
	}

	id, err := idgen.Generate(projectKey, existingIDs)
	if err != nil {
		return nil, err
	}

	var parent string
	var deps []model.Dependency
	for _, d := range r.Dependencies {
		if d.DependsOnID == "" || d.Type == "" {
			return nil, beaconerr.New(beaconerr.InvalidIssueData, "invalid dependency entry")
		}
		if _, ok := byID[d.DependsOnID]; !ok {
			return nil, beaconerr.Newf(beaconerr.InvalidIssueData, "dependency target %q not found", d.DependsOnID)
		}
		if d.Type == "parent-child" {
			parent = d.DependsOnID
			continue
		}
		if !model.ValidDependencyType(model.DependencyType(d.Type)) {
			return nil, beaconerr.Newf(beaconerr.InvalidDependencyType, "unrecognized legacy dependency type %q", d.Type)
		}
		deps = append(deps, model.Dependency{Target: d.DependsOnID, DependencyType: model.DependencyType(d.Type)})
	}

	var comments []model.Comment
	for _, c := range r.Comments {
		if c.Author == "" || c.Text == "" {
			return nil, beaconerr.New(beaconerr.InvalidIssueData, "invalid comment entry")
		}
		createdAt, err := parseTimestamp(c.CreatedAt, "comment.created_at")
		if err != nil {
			return nil, err
		}
		comments = append(comments, model.Comment{ID: uuid.New().String(), Author: c.Author, Text: c.Text, CreatedAt: createdAt})
	}

	custom := map[string]any{}
	if r.Owner != "" {
		custom["legacy_owner"] = r.Owner
	}
	if r.Notes != "" {
		custom["legacy_notes"] = r.Notes
	}
	if r.CloseReason != "" {
		custom["legacy_close_reason"] = r.CloseReason
	}
	if issueType != r.IssueType {
		custom["legacy_issue_type"] = r.IssueType
	}

	issue := &model.Issue{
		Identifier:   id,
		Title:        r.Title,
		Description:  r.Description,
		IssueType:    issueType,
		Status:       r.Status,
		Priority:     r.Priority,
		Assignee:     r.Assignee,
		Parent:       parent,
		Dependencies: deps,
		Comments:     comments,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		ClosedAt:     closedAt,
	}
	if len(custom) > 0 {
		issue.Custom = custom
	}
	return issue, nil
}
