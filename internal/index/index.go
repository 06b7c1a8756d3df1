// Package index builds and caches the derived multi-key view of §3.3
// and §4.G. The in-memory structure and the persistent cache's
// load/compare/rebuild protocol are grounded directly on
// original_source's cache.rs (IndexCache, collect_issue_file_mtimes,
// normalize_mtime, load_cache_if_valid, write_cache,
// build_index_from_cache), translated from Rust's Arc-shared records
// into Go's natural shared-pointer semantics.
package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"beacon/internal/beaconerr"
	"beacon/internal/issuestore"
	"beacon/internal/model"
)

const cacheVersion = 1

// Index is the in-memory multi-key view over one project's issues.
// Every map holds pointers into the same underlying records, so the
// maps share identity rather than copies.
type Index struct {
	ByID                map[string]*model.Issue
	ByStatus            map[string][]*model.Issue
	ByType              map[string][]*model.Issue
	ByParent            map[string][]*model.Issue
	ByLabel             map[string][]*model.Issue
	ReverseDependencies map[string][]*model.Issue
}

// Issues returns every issue in the index, ordered by identifier for
// determinism.
func (idx *Index) Issues() []*model.Issue {
	out := make([]*model.Issue, 0, len(idx.ByID))
	for _, issue := range idx.ByID {
		out = append(out, issue)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// Lookup adapts the index to the depgraph.Lookup function signature.
func (idx *Index) Lookup(id string) (*model.Issue, bool) {
	issue, ok := idx.ByID[id]
	return issue, ok
}

// Build constructs an Index from a slice of loaded issues.
func Build(issues []*model.Issue) *Index {
	idx := &Index{
		ByID:                map[string]*model.Issue{},
		ByStatus:            map[string][]*model.Issue{},
		ByType:              map[string][]*model.Issue{},
		ByParent:            map[string][]*model.Issue{},
		ByLabel:             map[string][]*model.Issue{},
		ReverseDependencies: map[string][]*model.Issue{},
	}
	for _, issue := range issues {
		idx.ByID[issue.Identifier] = issue
		idx.ByStatus[issue.Status] = append(idx.ByStatus[issue.Status], issue)
		idx.ByType[issue.IssueType] = append(idx.ByType[issue.IssueType], issue)
		if issue.Parent != "" {
			idx.ByParent[issue.Parent] = append(idx.ByParent[issue.Parent], issue)
		}
		for _, label := range issue.Labels {
			idx.ByLabel[label] = append(idx.ByLabel[label], issue)
		}
	}
	for _, issue := range issues {
		for _, dep := range issue.Dependencies {
			idx.ReverseDependencies[dep.Target] = append(idx.ReverseDependencies[dep.Target], issue)
		}
	}
	return idx
}

// BuildFromStore scans store, reading every issue file, and returns the
// resulting Index alongside the file_mtimes map a cache write needs.
func BuildFromStore(store issuestore.Store) (*Index, map[string]float64, error) {
	ids, err := store.ListIDs()
	if err != nil {
		return nil, nil, err
	}
	issues := make([]*model.Issue, 0, len(ids))
	for _, id := range ids {
		issue, err := store.Read(id)
		if err != nil {
			continue
		}
		issues = append(issues, issue)
	}
	mtimes, err := store.Mtimes()
	if err != nil {
		return nil, nil, err
	}
	return Build(issues), mtimes, nil
}

// cacheFile mirrors original_source's IndexCache payload shape.
type cacheFile struct {
	Version     int                  `json:"version"`
	BuiltAt     model.Time           `json:"built_at"`
	FileMtimes  map[string]float64   `json:"file_mtimes"`
	Issues      []*model.Issue       `json:"issues"`
	ReverseDeps map[string][]string  `json:"reverse_deps"`
}

// CachePath returns the path of the persistent cache file under a
// project's .cache directory.
func CachePath(projectDir string) string {
	return filepath.Join(projectDir, ".cache", "index.json")
}

// LoadCache implements the load protocol of §4.G: read the cache file,
// compare its stored file_mtimes against a fresh scan, and return a hit
// only when every key matches exactly.
func LoadCache(projectDir string, store issuestore.Store) (*Index, bool) {
	data, err := os.ReadFile(CachePath(projectDir))
	if err != nil {
		return nil, false
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, false
	}
	if cf.Version != cacheVersion {
		return nil, false
	}
	current, err := store.Mtimes()
	if err != nil {
		return nil, false
	}
	if !mtimesEqual(cf.FileMtimes, current) {
		return nil, false
	}
	idx := Build(cf.Issues)
	return idx, true
}

func mtimesEqual(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// WriteCache persists idx atomically under projectDir/.cache/index.json.
func WriteCache(projectDir string, idx *Index, fileMtimes map[string]float64, builtAt model.Time) error {
	dir := filepath.Join(projectDir, ".cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	reverse := map[string][]string{}
	for target, issues := range idx.ReverseDependencies {
		ids := make([]string, 0, len(issues))
		for _, issue := range issues {
			ids = append(ids, issue.Identifier)
		}
		reverse[target] = ids
	}
	cf := cacheFile{
		Version:     cacheVersion,
		BuiltAt:     builtAt,
		FileMtimes:  fileMtimes,
		Issues:      idx.Issues(),
		ReverseDeps: reverse,
	}
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	path := CachePath(projectDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	return nil
}

// LoadOrBuild implements the full §4.G protocol: try the cache, and on
// miss rebuild from the store and persist a fresh cache before
// returning.
func LoadOrBuild(projectDir string, store issuestore.Store, now model.Time) (*Index, error) {
	if idx, ok := LoadCache(projectDir, store); ok {
		return idx, nil
	}
	idx, mtimes, err := BuildFromStore(store)
	if err != nil {
		return nil, err
	}
	_ = WriteCache(projectDir, idx, mtimes, now)
	return idx, nil
}
