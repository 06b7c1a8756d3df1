package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"beacon/internal/beaconerr"
	"beacon/internal/model"
)

func testConfig(projectDir string) *model.Config {
	return &model.Config{ProjectKey: "proj", ProjectDirectory: projectDir}
}

func TestResolveRepoRootWalksUpward(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveRepoRoot(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != root {
		t.Errorf("expected %s, got %s", root, got)
	}
}

func TestResolveRepoRootNotFound(t *testing.T) {
	_, err := ResolveRepoRoot(t.TempDir())
	if beaconerr.CodeOf(err) != beaconerr.NotInitialized {
		t.Fatalf("expected not_initialized, got %v", err)
	}
}

func TestInitializeThenFindProject(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig("project")

	if err := Initialize(root, cfg, []byte("project_key: proj\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	projectDir, err := FindProject(root, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if projectDir != filepath.Join(root, "project") {
		t.Errorf("unexpected project dir: %s", projectDir)
	}
	if _, err := os.Stat(filepath.Join(projectDir, "issues")); err != nil {
		t.Errorf("expected an issues/ subdirectory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(projectDir, "DO_NOT_EDIT_DIRECTLY")); err != nil {
		t.Errorf("expected a guard file: %v", err)
	}

	ignore, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		t.Fatalf("expected a .gitignore to be written: %v", err)
	}
	if !strings.Contains(string(ignore), "project-local/") {
		t.Errorf("expected the local-sibling directory to be ignored, got %q", ignore)
	}
}

func TestInitializeRejectsDoubleInit(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig("project")
	if err := Initialize(root, cfg, []byte("x")); err != nil {
		t.Fatal(err)
	}

	err := Initialize(root, cfg, []byte("x"))
	if beaconerr.CodeOf(err) != beaconerr.AlreadyInitialized {
		t.Fatalf("expected already_initialized, got %v", err)
	}
}

func TestInitializeRejectsNonVCSRoot(t *testing.T) {
	root := t.TempDir()
	err := Initialize(root, testConfig("project"), []byte("x"))
	if beaconerr.CodeOf(err) != beaconerr.NotInitialized {
		t.Fatalf("expected not_initialized, got %v", err)
	}
}

func TestFindLocalSibling(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "project")
	if got := FindLocalSibling(projectDir); got != "" {
		t.Errorf("expected no local sibling before it exists, got %q", got)
	}

	sibling := projectDir + "-local"
	if err := os.MkdirAll(sibling, 0o755); err != nil {
		t.Fatal(err)
	}
	if got := FindLocalSibling(projectDir); got != sibling {
		t.Errorf("expected %s, got %s", sibling, got)
	}
}

func TestResolveVirtualProjectsRejectsMissingIssuesDir(t *testing.T) {
	root := t.TempDir()
	vpDir := filepath.Join(root, "other")
	if err := os.MkdirAll(vpDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := &model.Config{
		ProjectKey:      "proj",
		VirtualProjects: []model.VirtualProject{{Label: "other", Path: "other"}},
	}

	_, err := ResolveVirtualProjects(root, cfg)
	if beaconerr.CodeOf(err) != beaconerr.ConfigurationError {
		t.Fatalf("expected configuration_error for a missing issues/ subdir, got %v", err)
	}
}

func TestResolveVirtualProjectsSucceeds(t *testing.T) {
	root := t.TempDir()
	vpDir := filepath.Join(root, "other")
	if err := os.MkdirAll(filepath.Join(vpDir, "issues"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := &model.Config{
		ProjectKey:      "proj",
		VirtualProjects: []model.VirtualProject{{Label: "other", Path: "other"}},
	}

	got, err := ResolveVirtualProjects(root, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Label != "other" {
		t.Errorf("unexpected result: %v", got)
	}
}
