// Package depgraph implements the dependency engine of §4.F: typed-edge
// validation, blocked-by cycle detection, the ready set, and reverse
// dependency lookup. It is grounded on original_source's
// dependencies.rs (cycle detection via DFS over a blocked-by-only
// adjacency map, the parent/child mirroring rejection, idempotent
// add/remove) and on the teacher's issueservice.go (BFS-based
// hasCycle/hasHierarchyCycle shape, same-store routing), adapted to a
// single in-process project scope per call rather than the teacher's
// multi-store router.
package depgraph

import (
	"beacon/internal/beaconerr"
	"beacon/internal/model"
)

// Lookup resolves an issue id to its record within the scope a
// depgraph call operates over. Callers (internal/issueops) supply this
// so the graph itself stays storage-agnostic.
type Lookup func(id string) (*model.Issue, bool)

// ValidateType returns an invalid_dependency_type error unless depType
// is one of the closed set.
func ValidateType(depType model.DependencyType) error {
	if model.ValidDependencyType(depType) {
		return nil
	}
	return beaconerr.Newf(beaconerr.InvalidDependencyType, "unrecognized dependency type %q", depType)
}

// ValidateAdd checks the rules of §4.F step 3 for a proposed
// source -> target edge of the given type, given lookup over the
// resolved project scope. It does not mutate anything.
func ValidateAdd(lookup Lookup, source, target *model.Issue, depType model.DependencyType) error {
	if err := ValidateType(depType); err != nil {
		return err
	}
	if depType != model.DependencyBlockedBy {
		return nil
	}
	if source.Parent == target.Identifier || target.Parent == source.Identifier {
		return beaconerr.Newf(beaconerr.CycleDetected, "blocked-by may not mirror a parent/child edge between %q and %q", source.Identifier, target.Identifier)
	}
	if hasCycle(lookup, source.Identifier, target.Identifier) {
		return beaconerr.Newf(beaconerr.CycleDetected, "adding blocked-by %q -> %q would create a cycle", source.Identifier, target.Identifier)
	}
	return nil
}

// hasCycle reports whether adding a blocked-by edge from source to
// target would create a cycle in the blocked-by projection. It performs
// a depth-first search from target, following existing blocked-by
// edges, looking for a path back to source.
func hasCycle(lookup Lookup, source, target string) bool {
	visited := map[string]bool{}
	var visit func(id string) bool
	visit = func(id string) bool {
		if id == source {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		issue, ok := lookup(id)
		if !ok {
			return false
		}
		for _, next := range issue.BlockedByTargets() {
			if visit(next) {
				return true
			}
		}
		return false
	}
	return visit(target)
}

// Ready reports whether issue is ready: not closed, and every
// blocked-by target it declares (resolvable within lookup) is closed.
// A blocked-by edge to an id lookup cannot resolve does not block
// readiness; dangling references are a reference-cleanup concern, not
// a readiness concern.
func Ready(lookup Lookup, issue *model.Issue) bool {
	if issue.Status == "closed" {
		return false
	}
	for _, targetID := range issue.BlockedByTargets() {
		target, ok := lookup(targetID)
		if !ok {
			continue
		}
		if target.Status != "closed" {
			return false
		}
	}
	return true
}

// ReadySet filters issues down to the ready ones, per Ready, preserving
// the input order.
func ReadySet(lookup Lookup, issues []*model.Issue) []*model.Issue {
	var out []*model.Issue
	for _, issue := range issues {
		if Ready(lookup, issue) {
			out = append(out, issue)
		}
	}
	return out
}

// ReverseDependencies returns the issues (in the order encountered in
// all) that declare a dependency of any type on target.
func ReverseDependencies(all []*model.Issue, target string) []*model.Issue {
	var out []*model.Issue
	for _, issue := range all {
		for _, dep := range issue.Dependencies {
			if dep.Target == target {
				out = append(out, issue)
				break
			}
		}
	}
	return out
}
