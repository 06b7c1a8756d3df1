// Package idgen generates and resolves issue identifiers. Canonical ids
// are {project_key}-{uuid-v4}; short ids are {project_key}-{prefix} for
// prefix lengths 1-6 drawn from the suffix.
//
// The teacher generates ids from a base36 random alphabet sized
// adaptively to the corpus; this package keeps the same generate/
// collision-retry/resolve-by-prefix shape but draws from
// github.com/google/uuid instead, since the contract here fixes the
// suffix format to UUID v4.
package idgen

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"beacon/internal/beaconerr"
)

const maxGenerationAttempts = 10

// Generate draws a new canonical id under projectKey, retrying on
// collision against existingIDs up to maxGenerationAttempts times.
func Generate(projectKey string, existingIDs map[string]bool) (string, error) {
	for attempt := 0; attempt < maxGenerationAttempts; attempt++ {
		candidate := Format(projectKey, uuid.New().String())
		if !existingIDs[candidate] {
			return candidate, nil
		}
	}
	return "", beaconerr.Newf(beaconerr.IDGenerationFailed, "no unique id after %d attempts", maxGenerationAttempts)
}

// Format renders a canonical id from a project key and a UUID suffix.
func Format(projectKey, suffix string) string {
	return projectKey + "-" + suffix
}

// Suffix returns the part of id after the first hyphen-delimited
// project key segment, or "" if id has no such separator.
func Suffix(id, projectKey string) string {
	prefix := projectKey + "-"
	if !strings.HasPrefix(id, prefix) {
		return ""
	}
	return id[len(prefix):]
}

// Resolve matches candidate against existingIDs following §4.D: an
// exact match wins outright; otherwise candidate is treated as a short
// id of the form {project_key}-{prefix} with prefix length 1-6, and
// must match the suffix of exactly one existing id.
func Resolve(candidate, projectKey string, existingIDs map[string]bool) (string, error) {
	if existingIDs[candidate] {
		return candidate, nil
	}

	prefix := Suffix(candidate, projectKey)
	if prefix == "" || len(prefix) > 6 {
		return "", beaconerr.Newf(beaconerr.NotFound, "no issue matches %q", candidate)
	}

	var matches []string
	for id := range existingIDs {
		if strings.HasPrefix(Suffix(id, projectKey), prefix) {
			matches = append(matches, id)
		}
	}
	sort.Strings(matches)

	switch len(matches) {
	case 0:
		return "", beaconerr.Newf(beaconerr.NotFound, "no issue matches %q", candidate)
	case 1:
		return matches[0], nil
	default:
		return "", beaconerr.Newf(beaconerr.AmbiguousShortID, "%q matches %d issues", candidate, len(matches)).
			WithDetails(map[string]any{"matches": matches})
	}
}

// ResolveCommentPrefix matches a short hex prefix against a set of
// comment UUIDs, mirroring Resolve's ambiguity rules but against the
// comment_ambiguous code used by §4.I's comment operations.
func ResolveCommentPrefix(prefix string, commentIDs []string) (string, error) {
	if prefix == "" {
		return "", beaconerr.New(beaconerr.NotFound, "comment id prefix must not be empty")
	}
	var matches []string
	for _, id := range commentIDs {
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, id)
		}
	}
	sort.Strings(matches)
	switch len(matches) {
	case 0:
		return "", beaconerr.Newf(beaconerr.NotFound, "no comment matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", beaconerr.Newf(beaconerr.CommentAmbiguous, "%q matches %d comments", prefix, len(matches)).
			WithDetails(map[string]any{"matches": matches})
	}
}
