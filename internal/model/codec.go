package model

import (
	"bytes"
	"encoding/json"

	"beacon/internal/beaconerr"
)

// EncodeIssue renders an issue as pretty-printed, newline-terminated
// JSON with stable key ordering (Go's struct field declaration order),
// making filesystem diffs deterministic across writes.
func EncodeIssue(issue *Issue) ([]byte, error) {
	return encodeIndented(issue)
}

// DecodeIssue parses a single issue record, mapping malformed JSON and
// schema violations onto the taxonomy's invalid_issue_file /
// invalid_issue_data codes.
func DecodeIssue(data []byte) (*Issue, error) {
	var issue Issue
	if err := json.Unmarshal(data, &issue); err != nil {
		if be, ok := err.(*beaconerr.Error); ok {
			return nil, be
		}
		return nil, beaconerr.Wrap(beaconerr.InvalidIssueFile, err)
	}
	return &issue, nil
}

// EncodeEvent renders an event as pretty-printed, newline-terminated JSON.
func EncodeEvent(event *Event) ([]byte, error) {
	return encodeIndented(event)
}

// DecodeEvent parses a single event record.
func DecodeEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, beaconerr.Wrap(beaconerr.InvalidIssueFile, err)
	}
	return &event, nil
}

func encodeIndented(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, beaconerr.Wrap(beaconerr.IOError, err)
	}
	return buf.Bytes(), nil
}
