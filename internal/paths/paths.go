// Package paths resolves the repository root, the primary and local
// sibling project directories, and configured virtual projects, and
// performs first-time project initialization. It is grounded on the
// teacher's internal/configservice (upward directory walk stopping at
// a VCS root, local-sibling naming convention, guard-file and ignore-
// file wiring on initialize) with one deliberate deviation: the
// teacher shells out to the git binary to find the repository root and
// detect worktrees, but this core must not assume git is on PATH, so
// the walk here reads .git directly (a plain directory for a normal
// checkout, or a one-line "gitdir: <path>" redirect file for a
// worktree) instead of invoking a subprocess.
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"beacon/internal/beaconerr"
	"beacon/internal/model"
)

const (
	markerFileName = "beacon.yaml"
	guardFileName  = "DO_NOT_EDIT_DIRECTLY"
	ignoreFileName = ".gitignore"
)

// Project describes a resolved project directory: where its issues and
// events live, and which label (if any) identifies it among virtual
// projects.
type Project struct {
	Label string
	Dir   string
}

func (p Project) IssuesDir() string { return filepath.Join(p.Dir, "issues") }
func (p Project) EventsDir() string { return filepath.Join(p.Dir, "events") }
func (p Project) CacheDir() string  { return filepath.Join(p.Dir, ".cache") }

// ResolveRepoRoot walks upward from cwd until it finds a .git entry,
// treating that directory as the repository root.
func ResolveRepoRoot(cwd string) (string, error) {
	dir := cwd
	for {
		if hasGitMarker(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", beaconerr.New(beaconerr.NotInitialized, "no version-control root found above "+cwd)
		}
		dir = parent
	}
}

func hasGitMarker(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// MarkerPath returns the path of the project configuration/marker file
// under root.
func MarkerPath(root string) string {
	return filepath.Join(root, markerFileName)
}

// FindProject locates the primary project directory under root. The
// marker file at the root doubles as the project configuration; the
// project subtree lives in a directory named by the configuration's
// project_directory (typically "project").
func FindProject(root string, cfg *model.Config) (string, error) {
	if _, err := os.Stat(MarkerPath(root)); err != nil {
		return "", beaconerr.New(beaconerr.NotInitialized, "no project marker under "+root)
	}
	projectDir := cfg.ProjectDirectory
	if !filepath.IsAbs(projectDir) {
		projectDir = filepath.Join(root, projectDir)
	}
	info, err := os.Stat(projectDir)
	if err != nil || !info.IsDir() {
		return "", beaconerr.New(beaconerr.NotInitialized, "configured project_directory does not exist: "+projectDir)
	}
	return projectDir, nil
}

// FindLocalSibling returns the local-sibling directory for
// projectDir ("{project}-local"), or "" if it does not exist. Absence
// is not an error.
func FindLocalSibling(projectDir string) string {
	sibling := projectDir + "-local"
	if info, err := os.Stat(sibling); err == nil && info.IsDir() {
		return sibling
	}
	return ""
}

// ResolveVirtualProjects validates and returns the configured virtual
// projects, each resolved relative to root when given as a relative
// path.
func ResolveVirtualProjects(root string, cfg *model.Config) ([]Project, error) {
	seen := map[string]bool{cfg.ProjectKey: true}
	var out []Project
	for _, vp := range cfg.VirtualProjects {
		if seen[vp.Label] {
			return nil, beaconerr.Newf(beaconerr.ConfigurationError, "virtual project label %q is not unique", vp.Label)
		}
		seen[vp.Label] = true

		dir := vp.Path
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return nil, beaconerr.Newf(beaconerr.ConfigurationError, "virtual project %q path does not exist: %s", vp.Label, dir)
		}
		if info, err := os.Stat(filepath.Join(dir, "issues")); err != nil || !info.IsDir() {
			return nil, beaconerr.Newf(beaconerr.ConfigurationError, "virtual project %q has no issues/ subdirectory", vp.Label)
		}
		out = append(out, Project{Label: vp.Label, Dir: dir})
	}
	return out, nil
}

// Initialize creates the marker file, the default configuration, the
// project's issues/ and events/ subdirectories, a guard file inside the
// project directory, and appends the local-sibling directory to the
// repository's ignore file. It fails if the repository is already
// initialized or root is not a VCS checkout.
func Initialize(root string, cfg *model.Config, encodedConfig []byte) error {
	if !hasGitMarker(root) {
		return beaconerr.New(beaconerr.NotInitialized, root+" is not a version-control checkout")
	}
	markerPath := MarkerPath(root)
	if _, err := os.Stat(markerPath); err == nil {
		return beaconerr.New(beaconerr.AlreadyInitialized, "project already initialized under "+root)
	}

	projectDir := cfg.ProjectDirectory
	if !filepath.IsAbs(projectDir) {
		projectDir = filepath.Join(root, projectDir)
	}
	for _, sub := range []string{"issues", "events"} {
		if err := os.MkdirAll(filepath.Join(projectDir, sub), 0o755); err != nil {
			return beaconerr.Wrap(beaconerr.IOError, err)
		}
	}

	guardPath := filepath.Join(projectDir, guardFileName)
	guardText := "This directory is managed by the issue tracker core. Do not edit its contents directly; use the tracker's operations instead.\n"
	if err := os.WriteFile(guardPath, []byte(guardText), 0o644); err != nil {
		return beaconerr.Wrap(beaconerr.IOError, err)
	}

	if err := os.WriteFile(markerPath, encodedConfig, 0o644); err != nil {
		return beaconerr.Wrap(beaconerr.IOError, err)
	}

	if err := appendIgnoreEntry(root, cfg.ProjectDirectory+"-local/"); err != nil {
		return err
	}
	return nil
}

func appendIgnoreEntry(root, entry string) error {
	path := filepath.Join(root, ignoreFileName)
	existing, _ := os.ReadFile(path)
	if strings.Contains(string(existing), entry) {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	defer f.Close()
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return beaconerr.Wrap(beaconerr.IOError, err)
		}
	}
	if _, err := f.WriteString(entry + "\n"); err != nil {
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	return nil
}
