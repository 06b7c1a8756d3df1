// Package eventlog implements the append-only per-event file log of
// §4.H: batched writes with mid-batch rollback, and paginated,
// reverse-chronological loading keyed by the lexicographically
// sortable {occurred_at}__{event_id}.json filename.
package eventlog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"beacon/internal/beaconerr"
	"beacon/internal/model"
)

// Log is an append-only event store rooted at one project's events
// directory.
type Log struct {
	dir string
}

// New returns a Log rooted at dir.
func New(dir string) *Log {
	return &Log{dir: dir}
}

func filenameFor(event *model.Event) string {
	return event.OccurredAt.FormatMillis() + "__" + event.EventID + ".json"
}

// WriteBatch writes every event to its own file, renaming each into
// place only after it has been fully written and synced. If any event
// in the batch fails, every file already renamed in this call is
// removed and the temp file for the failing event is cleaned up before
// the error is returned, leaving the directory exactly as it was
// before the call.
func (l *Log) WriteBatch(events []*model.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return beaconerr.Wrap(beaconerr.IOError, err)
	}

	var written []string
	rollback := func() {
		for _, path := range written {
			os.Remove(path)
		}
	}

	for _, event := range events {
		data, err := model.EncodeEvent(event)
		if err != nil {
			rollback()
			return err
		}
		filename := filenameFor(event)
		finalPath := filepath.Join(l.dir, filename)
		tmpPath := filepath.Join(l.dir, "."+filename+".tmp")

		f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			rollback()
			return beaconerr.Wrap(beaconerr.IOError, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(tmpPath)
			rollback()
			return beaconerr.Wrap(beaconerr.IOError, err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			os.Remove(tmpPath)
			rollback()
			return beaconerr.Wrap(beaconerr.IOError, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(tmpPath)
			rollback()
			return beaconerr.Wrap(beaconerr.IOError, err)
		}
		if err := os.Rename(tmpPath, finalPath); err != nil {
			os.Remove(tmpPath)
			rollback()
			return beaconerr.Wrap(beaconerr.IOError, err)
		}
		written = append(written, finalPath)
	}
	return nil
}

// Load implements §4.H's paginated read: enumerate event filenames,
// keep only those strictly less than before (when supplied), sort
// descending lexicographically, read records belonging to issueID in
// that order, and stop at limit. The returned cursor is the filename of
// the last record returned when limit was reached and older event files
// remain in the directory, or "" otherwise.
func (l *Log) Load(issueID string, before string, limit int) ([]*model.Event, string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", beaconerr.Wrap(beaconerr.IOError, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		if before != "" && name >= before {
			continue
		}
		names = append(names, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	var out []*model.Event
	var outNames []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(l.dir, name))
		if err != nil {
			continue
		}
		event, err := model.DecodeEvent(data)
		if err != nil {
			continue
		}
		if event.IssueID != issueID {
			continue
		}
		out = append(out, event)
		outNames = append(outNames, name)
		if limit > 0 && len(out) == limit {
			break
		}
	}

	var cursor string
	if limit > 0 && len(out) == limit {
		lastName := outNames[len(outNames)-1]
		for _, name := range names {
			if name < lastName {
				cursor = lastName
				break
			}
		}
	}
	return out, cursor, nil
}
