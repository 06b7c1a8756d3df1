package idgen

import (
	"strings"
	"testing"

	"beacon/internal/beaconerr"
)

func TestGenerateProducesCanonicalForm(t *testing.T) {
	existing := map[string]bool{}
	id, err := Generate("proj", existing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(id, "proj-") {
		t.Errorf("expected id to start with proj-, got %s", id)
	}
	if len(Suffix(id, "proj")) != 36 {
		t.Errorf("expected a 36-character uuid suffix, got %q", Suffix(id, "proj"))
	}
}

func TestGenerateAvoidsCollisionWithExisting(t *testing.T) {
	first, err := Generate("proj", map[string]bool{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Generate("proj", map[string]bool{first: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Errorf("expected a distinct id once the first is marked existing")
	}
}

func TestResolveExactMatch(t *testing.T) {
	existing := map[string]bool{"proj-abcdef12-0000-0000-0000-000000000000": true}
	got, err := Resolve("proj-abcdef12-0000-0000-0000-000000000000", "proj", existing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "proj-abcdef12-0000-0000-0000-000000000000" {
		t.Errorf("unexpected resolution: %s", got)
	}
}

func TestResolveUniquePrefix(t *testing.T) {
	existing := map[string]bool{
		"proj-abcdef12-0000-0000-0000-000000000000": true,
		"proj-112233aa-0000-0000-0000-000000000000": true,
	}
	got, err := Resolve("proj-abcdef", "proj", existing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "proj-abcdef12-0000-0000-0000-000000000000" {
		t.Errorf("unexpected resolution: %s", got)
	}
}

func TestResolveAmbiguousPrefix(t *testing.T) {
	existing := map[string]bool{
		"proj-ab1111aa-0000-0000-0000-000000000000": true,
		"proj-ab2222aa-0000-0000-0000-000000000000": true,
	}
	_, err := Resolve("proj-ab", "proj", existing)
	be, ok := err.(*beaconerr.Error)
	if !ok {
		t.Fatalf("expected a *beaconerr.Error, got %T", err)
	}
	if be.Code != beaconerr.AmbiguousShortID {
		t.Errorf("expected ambiguous_short_id, got %s", be.Code)
	}
	matches, ok := be.Details["matches"].([]string)
	if !ok || len(matches) != 2 {
		t.Errorf("expected two matches in details, got %v", be.Details["matches"])
	}
}

func TestResolveNotFound(t *testing.T) {
	existing := map[string]bool{"proj-abcdef12-0000-0000-0000-000000000000": true}
	_, err := Resolve("proj-zzzzzz", "proj", existing)
	if beaconerr.CodeOf(err) != beaconerr.NotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestResolveCommentPrefix(t *testing.T) {
	ids := []string{"aaaa1111-0000", "aaaa2222-0000", "bbbb0000-0000"}

	got, err := ResolveCommentPrefix("bbbb", ids)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "bbbb0000-0000" {
		t.Errorf("unexpected resolution: %s", got)
	}

	_, err = ResolveCommentPrefix("aaaa", ids)
	if beaconerr.CodeOf(err) != beaconerr.CommentAmbiguous {
		t.Fatalf("expected comment_ambiguous, got %v", err)
	}

	_, err = ResolveCommentPrefix("zzzz", ids)
	if beaconerr.CodeOf(err) != beaconerr.NotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}
