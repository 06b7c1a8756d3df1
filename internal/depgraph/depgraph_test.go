package depgraph

import (
	"testing"

	"beacon/internal/beaconerr"
	"beacon/internal/model"
)

func lookupFor(issues map[string]*model.Issue) Lookup {
	return func(id string) (*model.Issue, bool) {
		issue, ok := issues[id]
		return issue, ok
	}
}

func TestValidateAddRejectsCycle(t *testing.T) {
	a := &model.Issue{Identifier: "a"}
	b := &model.Issue{Identifier: "b", Dependencies: []model.Dependency{{Target: "a", DependencyType: model.DependencyBlockedBy}}}
	issues := map[string]*model.Issue{"a": a, "b": b}

	// b is already blocked by a via b -> a; adding a -> b would close
	// the cycle.
	err := ValidateAdd(lookupFor(issues), a, b, model.DependencyBlockedBy)
	if beaconerr.CodeOf(err) != beaconerr.CycleDetected {
		t.Fatalf("expected cycle_detected, got %v", err)
	}
}

func TestValidateAddAllowsNonCyclicEdge(t *testing.T) {
	a := &model.Issue{Identifier: "a"}
	b := &model.Issue{Identifier: "b"}
	issues := map[string]*model.Issue{"a": a, "b": b}

	if err := ValidateAdd(lookupFor(issues), a, b, model.DependencyBlockedBy); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateAddRejectsParentChildMirror(t *testing.T) {
	parent := &model.Issue{Identifier: "p"}
	child := &model.Issue{Identifier: "c", Parent: "p"}
	issues := map[string]*model.Issue{"p": parent, "c": child}

	err := ValidateAdd(lookupFor(issues), child, parent, model.DependencyBlockedBy)
	if beaconerr.CodeOf(err) != beaconerr.CycleDetected {
		t.Fatalf("expected cycle_detected for a parent/child mirror, got %v", err)
	}
}

func TestValidateAddRejectsUnknownType(t *testing.T) {
	a := &model.Issue{Identifier: "a"}
	b := &model.Issue{Identifier: "b"}
	issues := map[string]*model.Issue{"a": a, "b": b}

	err := ValidateAdd(lookupFor(issues), a, b, model.DependencyType("depends-on"))
	if beaconerr.CodeOf(err) != beaconerr.InvalidDependencyType {
		t.Fatalf("expected invalid_dependency_type, got %v", err)
	}
}

func TestRelatesToNeverCycles(t *testing.T) {
	a := &model.Issue{Identifier: "a", Dependencies: []model.Dependency{{Target: "b", DependencyType: model.DependencyRelatesTo}}}
	b := &model.Issue{Identifier: "b"}
	issues := map[string]*model.Issue{"a": a, "b": b}

	if err := ValidateAdd(lookupFor(issues), b, a, model.DependencyRelatesTo); err != nil {
		t.Errorf("relates-to edges should never be rejected as cycles, got %v", err)
	}
}

func TestReady(t *testing.T) {
	blocker := &model.Issue{Identifier: "blocker", Status: "open"}
	blocked := &model.Issue{Identifier: "blocked", Status: "open", Dependencies: []model.Dependency{
		{Target: "blocker", DependencyType: model.DependencyBlockedBy},
	}}
	issues := map[string]*model.Issue{"blocker": blocker, "blocked": blocked}
	lookup := lookupFor(issues)

	if Ready(lookup, blocked) {
		t.Error("expected blocked to not be ready while its blocker is open")
	}
	blocker.Status = "closed"
	if !Ready(lookup, blocked) {
		t.Error("expected blocked to become ready once its blocker closes")
	}
}

func TestReadyClosedIssueNeverReady(t *testing.T) {
	issue := &model.Issue{Identifier: "a", Status: "closed"}
	if Ready(lookupFor(map[string]*model.Issue{"a": issue}), issue) {
		t.Error("a closed issue is never ready")
	}
}

func TestReadyDanglingReferenceDoesNotBlock(t *testing.T) {
	issue := &model.Issue{Identifier: "a", Status: "open", Dependencies: []model.Dependency{
		{Target: "ghost", DependencyType: model.DependencyBlockedBy},
	}}
	issues := map[string]*model.Issue{"a": issue}
	if !Ready(lookupFor(issues), issue) {
		t.Error("expected an unresolvable blocked-by target to not block readiness")
	}
}

func TestReverseDependencies(t *testing.T) {
	target := &model.Issue{Identifier: "t"}
	dependent := &model.Issue{Identifier: "d", Dependencies: []model.Dependency{
		{Target: "t", DependencyType: model.DependencyRelatesTo},
	}}
	unrelated := &model.Issue{Identifier: "u"}

	got := ReverseDependencies([]*model.Issue{target, dependent, unrelated}, "t")
	if len(got) != 1 || got[0].Identifier != "d" {
		t.Errorf("expected only d to reverse-depend on t, got %v", got)
	}
}
