package issueops

import (
	"testing"

	"beacon/internal/beaconerr"
	"beacon/internal/eventlog"
	"beacon/internal/issuestore/fsstore"
	"beacon/internal/model"
)

func newTestServiceWithLocalSibling(t *testing.T) *Service {
	t.Helper()
	svc := newTestService(t)
	localDir := t.TempDir()
	svc.LocalStore = fsstore.New(localDir + "/issues")
	svc.LocalEvents = eventlog.New(localDir + "/events")
	svc.PrimaryLocation = "project"
	svc.LocalLocation = "project-local"
	return svc
}

func TestLocalizeMovesIssueAndEmitsEvent(t *testing.T) {
	svc := newTestServiceWithLocalSibling(t)
	issue, err := svc.Create(CreateInput{Title: "Scratch work", IssueType: "task"})
	if err != nil {
		t.Fatal(err)
	}

	localized, err := svc.Localize(issue.Identifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if localized.Identifier != issue.Identifier {
		t.Fatalf("expected the same issue identifier, got %s", localized.Identifier)
	}

	if _, err := svc.Store.Read(issue.Identifier); beaconerr.CodeOf(err) != beaconerr.NotFound {
		t.Fatalf("expected the primary store to no longer have the issue, got %v", err)
	}
	if _, err := svc.LocalStore.Read(issue.Identifier); err != nil {
		t.Fatalf("expected the local sibling to have the issue: %v", err)
	}

	events, _, err := svc.LocalEvents.Load(issue.Identifier, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].EventType != model.EventIssueLocalized {
		t.Fatalf("expected a single issue_localized event in the local event log, got %v", events)
	}
}

func TestPromoteMovesIssueBackAndEmitsEvent(t *testing.T) {
	svc := newTestServiceWithLocalSibling(t)
	issue, err := svc.Create(CreateInput{Title: "Scratch work", IssueType: "task"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Localize(issue.Identifier); err != nil {
		t.Fatal(err)
	}

	promoted, err := svc.Promote(issue.Identifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if promoted.Identifier != issue.Identifier {
		t.Fatalf("expected the same issue identifier, got %s", promoted.Identifier)
	}

	if _, err := svc.LocalStore.Read(issue.Identifier); beaconerr.CodeOf(err) != beaconerr.NotFound {
		t.Fatalf("expected the local sibling to no longer have the issue, got %v", err)
	}
	if _, err := svc.Store.Read(issue.Identifier); err != nil {
		t.Fatalf("expected the primary store to have the issue again: %v", err)
	}

	events, _, err := svc.Events.Load(issue.Identifier, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	var sawPromoted bool
	for _, e := range events {
		if e.EventType == model.EventIssuePromoted {
			sawPromoted = true
		}
	}
	if !sawPromoted {
		t.Fatalf("expected an issue_promoted event in the primary event log, got %v", events)
	}
}

func TestLocalizeWithoutLocalSiblingReportsNotInitialized(t *testing.T) {
	svc := newTestService(t)
	issue, err := svc.Create(CreateInput{Title: "Scratch work", IssueType: "task"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Localize(issue.Identifier)
	if beaconerr.CodeOf(err) != beaconerr.NotInitialized {
		t.Fatalf("expected not_initialized, got %v", err)
	}
}

