package project

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"beacon/internal/beaconerr"
	"beacon/internal/model"
)

func setupRepo(t *testing.T) (root string, cfg *model.Config) {
	t.Helper()
	root = t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "beacon.yaml"), []byte("project_key: proj\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "project", "issues"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg = &model.Config{ProjectKey: "proj", ProjectDirectory: "project"}
	return root, cfg
}

func TestResolvePrimaryOnly(t *testing.T) {
	root, cfg := setupRepo(t)

	resolver, err := Resolve(root, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolver.Primary.Label != "proj" {
		t.Errorf("expected primary label proj, got %s", resolver.Primary.Label)
	}
	if resolver.Local != nil {
		t.Error("expected no local sibling when none exists")
	}
	if len(resolver.All()) != 1 {
		t.Errorf("expected one scope, got %d", len(resolver.All()))
	}
}

func TestResolveIncludesLocalSibling(t *testing.T) {
	root, cfg := setupRepo(t)
	if err := os.MkdirAll(filepath.Join(root, "project-local", "issues"), 0o755); err != nil {
		t.Fatal(err)
	}

	resolver, err := Resolve(root, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolver.Local == nil {
		t.Fatal("expected a local sibling scope")
	}
	if resolver.Local.Label != "proj-local" {
		t.Errorf("expected label proj-local, got %s", resolver.Local.Label)
	}
	if len(resolver.All()) != 2 {
		t.Errorf("expected two scopes, got %d", len(resolver.All()))
	}
}

func TestScopeByLabelNotFound(t *testing.T) {
	root, cfg := setupRepo(t)
	resolver, err := Resolve(root, cfg)
	if err != nil {
		t.Fatal(err)
	}
	_, err = resolver.ScopeByLabel("nonexistent")
	if beaconerr.CodeOf(err) != beaconerr.NotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestLoadAllIssuesTagsProjectLabel(t *testing.T) {
	root, cfg := setupRepo(t)
	resolver, err := Resolve(root, cfg)
	if err != nil {
		t.Fatal(err)
	}
	now := model.NewTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	issue := &model.Issue{Identifier: "proj-1", Title: "x", CreatedAt: now, UpdatedAt: now}
	if err := resolver.Primary.Store.Write(issue); err != nil {
		t.Fatal(err)
	}

	issues, err := LoadAllIssues(resolver.All())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(issues) != 1 || issues[0].ProjectLabel != "proj" {
		t.Fatalf("expected one issue tagged with label proj, got %v", issues)
	}
}
