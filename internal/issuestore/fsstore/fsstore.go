// Package fsstore implements the issuestore.Store contract against a
// plain directory of one-JSON-file-per-issue. It is grounded on the
// teacher's internal/issuestorage/filesystem package: the same
// temp-file-same-dir + fsync + rename write path and O_EXCL collision
// guard. It drops the teacher's per-issue flock (issueLock /
// CleanupStaleLocks): the concurrency model here forbids cross-process
// locks and relies on atomic rename plus idempotent operations instead,
// so that machinery has no home in this port.
package fsstore

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"beacon/internal/beaconerr"
	"beacon/internal/model"
)

// Store is a directory-backed issuestore.Store.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. dir need not exist yet: Write
// creates it, and ListIDs and Mtimes treat a missing dir as empty.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) pathFor(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// ListIDs enumerates the stems of every *.json file in the store's
// directory.
func (s *Store) ListIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, beaconerr.Wrap(beaconerr.IOError, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

// Read loads and parses the issue with the given id, retrying the read
// once on parse failure per §5's racing-writer tolerance.
func (s *Store) Read(id string) (*model.Issue, error) {
	path := s.pathFor(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, beaconerr.Newf(beaconerr.NotFound, "no issue file for %q", id)
		}
		return nil, beaconerr.Wrap(beaconerr.IOError, err)
	}
	issue, err := model.DecodeIssue(data)
	if err != nil {
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, err
		}
		issue, err = model.DecodeIssue(data)
		if err != nil {
			return nil, err
		}
	}
	if issue.Identifier != id {
		return nil, beaconerr.Newf(beaconerr.InvalidIssueData, "issue file %q declares identifier %q", id, issue.Identifier)
	}
	return issue, nil
}

// Write serializes issue and replaces its file atomically: write to a
// randomly-suffixed temp file in the same directory, fsync, then
// rename over the destination.
func (s *Store) Write(issue *model.Issue) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	data, err := model.EncodeIssue(issue)
	if err != nil {
		return err
	}
	path := s.pathFor(issue.Identifier)
	return atomicWrite(path, data)
}

func atomicWrite(path string, data []byte) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	tmp := path + ".tmp." + hex.EncodeToString(randBytes)

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	return nil
}

// Delete unlinks the issue file for id.
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.pathFor(id)); err != nil {
		if os.IsNotExist(err) {
			return beaconerr.Newf(beaconerr.NotFound, "no issue file for %q", id)
		}
		return beaconerr.Wrap(beaconerr.IOError, err)
	}
	return nil
}

// CleanupReferences scans every remaining issue and strips any parent
// or dependency target pointing at deletedID.
func (s *Store) CleanupReferences(deletedID string) error {
	ids, err := s.ListIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		issue, err := s.Read(id)
		if err != nil {
			continue
		}
		changed := false
		if issue.Parent == deletedID {
			issue.Parent = ""
			changed = true
		}
		kept := issue.Dependencies[:0]
		for _, dep := range issue.Dependencies {
			if dep.Target == deletedID {
				changed = true
				continue
			}
			kept = append(kept, dep)
		}
		issue.Dependencies = kept
		if changed {
			if err := s.Write(issue); err != nil {
				return err
			}
		}
	}
	return nil
}

// Mtimes returns each issue file's modification time in seconds,
// rounded to microsecond precision so comparisons survive filesystem
// time-resolution quirks.
func (s *Store) Mtimes() (map[string]float64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]float64{}, nil
		}
		return nil, beaconerr.Wrap(beaconerr.IOError, err)
	}
	out := map[string]float64{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, beaconerr.Wrap(beaconerr.IOError, err)
		}
		seconds := float64(info.ModTime().UnixNano()) / 1e9
		out[e.Name()] = normalizeMtime(seconds)
	}
	return out, nil
}

// normalizeMtime rounds a seconds-since-epoch value to microsecond
// precision, matching original_source's cache.rs normalize_mtime.
func normalizeMtime(seconds float64) float64 {
	const scale = 1_000_000.0
	return roundToEven(seconds*scale) / scale
}

func roundToEven(v float64) float64 {
	floor := float64(int64(v))
	diff := v - floor
	switch {
	case diff < 0.5:
		return floor
	case diff > 0.5:
		return floor + 1
	default:
		if int64(floor)%2 == 0 {
			return floor
		}
		return floor + 1
	}
}
