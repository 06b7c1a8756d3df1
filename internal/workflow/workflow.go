// Package workflow implements the per-type state machine and the
// parent/child hierarchy rules of the configured issue types. It is
// grounded on the teacher's notion of type-scoped validation
// (internal/issueservice's same-store and hierarchy checks), generalized
// from the teacher's single implicit workflow to the configured
// name-keyed workflow map the configuration schema requires.
package workflow

import (
	"beacon/internal/beaconerr"
	"beacon/internal/model"
)

// Engine evaluates transitions and hierarchy rules against one loaded
// configuration.
type Engine struct {
	cfg *model.Config
}

// New creates an Engine bound to cfg.
func New(cfg *model.Config) *Engine {
	return &Engine{cfg: cfg}
}

// workflowFor selects the workflow for issueType by exact-match name,
// falling back to "default" when no type-named workflow is configured.
func (e *Engine) workflowFor(issueType string) model.WorkflowTransitions {
	if wf, ok := e.cfg.Workflows[issueType]; ok {
		return wf
	}
	return e.cfg.Workflows["default"]
}

// CanTransition reports whether a status change from old to new is
// permitted for an issue of the given type. Setting new == old is
// always permitted.
func (e *Engine) CanTransition(issueType, oldStatus, newStatus string) bool {
	if oldStatus == newStatus {
		return true
	}
	wf := e.workflowFor(issueType)
	for _, allowed := range wf[oldStatus] {
		if allowed == newStatus {
			return true
		}
	}
	return false
}

// ValidateTransition returns an invalid_transition error if the change
// is not permitted.
func (e *Engine) ValidateTransition(issueType, oldStatus, newStatus string) error {
	if e.CanTransition(issueType, oldStatus, newStatus) {
		return nil
	}
	return beaconerr.Newf(beaconerr.InvalidTransition, "workflow for %q does not allow %s -> %s", issueType, oldStatus, newStatus).
		WithDetails(map[string]any{"issue_type": issueType, "from_status": oldStatus, "to_status": newStatus})
}

// ValidateParentChild returns an invalid_parent_child error unless the
// hierarchy permits parentType to parent childType.
func (e *Engine) ValidateParentChild(parentType, childType string) error {
	if e.cfg.AllowsParent(parentType, childType) {
		return nil
	}
	return beaconerr.Newf(beaconerr.InvalidParentChild, "%q may not parent %q", parentType, childType).
		WithDetails(map[string]any{"parent_type": parentType, "child_type": childType})
}

// IsClosed reports whether status marks the issue as closed. Closed is
// a fixed sentinel value, not a per-workflow concept, because §3.1
// ties closed_at presence directly to the literal string "closed".
func IsClosed(status string) bool {
	return status == "closed"
}
