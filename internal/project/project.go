// Package project composes the primary project, its local sibling, and
// any configured virtual projects into the scoped multi-project view
// that issueops and the daemon query against. It is grounded on the
// teacher's internal/routing package (prefix-based multi-store
// resolution) generalized from the teacher's routes.json indirection
// file to the configuration-driven virtual_projects list this spec
// defines instead.
package project

import (
	"beacon/internal/beaconerr"
	"beacon/internal/issuestore"
	"beacon/internal/issuestore/fsstore"
	"beacon/internal/model"
	"beacon/internal/paths"
)

// Scope is one resolved, labeled project: its label (the project_key
// for the primary project), its store, and its directory.
type Scope struct {
	Label string
	Store issuestore.Store
	Dir   string
}

// Resolver composes every project a query may need to reach: the
// primary project, its local sibling (if present), and the configured
// virtual projects.
type Resolver struct {
	Root      string
	Primary   Scope
	Local     *Scope
	Virtuals  []Scope
}

// Resolve builds a Resolver for repository root using cfg.
func Resolve(root string, cfg *model.Config) (*Resolver, error) {
	primaryDir, err := paths.FindProject(root, cfg)
	if err != nil {
		return nil, err
	}
	r := &Resolver{
		Root: root,
		Primary: Scope{
			Label: cfg.ProjectKey,
			Store: fsstore.New(primaryDir + "/issues"),
			Dir:   primaryDir,
		},
	}
	if sibling := paths.FindLocalSibling(primaryDir); sibling != "" {
		r.Local = &Scope{
			Label: cfg.ProjectKey + "-local",
			Store: fsstore.New(sibling + "/issues"),
			Dir:   sibling,
		}
	}
	virtuals, err := paths.ResolveVirtualProjects(root, cfg)
	if err != nil {
		return nil, err
	}
	for _, vp := range virtuals {
		r.Virtuals = append(r.Virtuals, Scope{
			Label: vp.Label,
			Store: fsstore.New(vp.Dir + "/issues"),
			Dir:   vp.Dir,
		})
	}
	return r, nil
}

// All returns every scope in resolution order: primary, local sibling
// (if present), then virtual projects.
func (r *Resolver) All() []Scope {
	out := []Scope{r.Primary}
	if r.Local != nil {
		out = append(out, *r.Local)
	}
	out = append(out, r.Virtuals...)
	return out
}

// ScopeByLabel returns the scope with the given label, or a not_found
// error if none matches.
func (r *Resolver) ScopeByLabel(label string) (Scope, error) {
	for _, s := range r.All() {
		if s.Label == label {
			return s, nil
		}
	}
	return Scope{}, beaconerr.Newf(beaconerr.NotFound, "no project scoped %q", label)
}

// LoadAllIssues reads every issue across the given scopes, tagging each
// with its originating scope's label.
func LoadAllIssues(scopes []Scope) ([]*model.Issue, error) {
	var out []*model.Issue
	for _, scope := range scopes {
		ids, err := scope.Store.ListIDs()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			issue, err := scope.Store.Read(id)
			if err != nil {
				continue
			}
			issue.ProjectLabel = scope.Label
			out = append(out, issue)
		}
	}
	return out, nil
}
