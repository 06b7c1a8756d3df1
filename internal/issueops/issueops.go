// Package issueops implements the mutating issue lifecycle operations
// of §4.I: create, update, close, delete, comment add/update/delete,
// dependency add/remove, ensure-ids, and localize/promote. Every
// operation follows the same transactional shape — load, validate,
// compute the new record and its events, write the issue file, then
// write the event batch and roll the issue file back on failure — which
// is grounded on the teacher's internal/issueservice (AddDependency's
// same-store cycle/parent-child checks, the write-then-verify shape of
// Modify) generalized to the full set of operations this spec names,
// plus original_source's dependencies.rs for the exact cycle and
// mirrored-parent rejection rules.
package issueops

import (
	"time"

	"github.com/google/uuid"

	"beacon/internal/beaconerr"
	"beacon/internal/depgraph"
	"beacon/internal/eventlog"
	"beacon/internal/idgen"
	"beacon/internal/issuestore"
	"beacon/internal/model"
	"beacon/internal/workflow"
)

// Service performs lifecycle operations against one project scope: a
// single issue store and its event log. Cross-project composition
// (multi-scope ready sets, reverse dependency lookups) is the caller's
// responsibility via internal/project; this keeps the same-store
// invariant the teacher enforces for dependency and hierarchy checks.
type Service struct {
	Store   issuestore.Store
	Events  *eventlog.Log
	Config  *model.Config
	Engine  *workflow.Engine
	ActorID string
	// PeerLookup resolves ids that live outside Store (e.g. the local
	// sibling) for cross-scope parent/dependency validation. It may be
	// nil, in which case peer ids never resolve and such references
	// are rejected as not_found.
	PeerLookup depgraph.Lookup

	// LocalStore and LocalEvents are the local sibling's store and event
	// log, used only by Localize and Promote. They may be nil, in which
	// case both operations report not_initialized.
	LocalStore  issuestore.Store
	LocalEvents *eventlog.Log
	// PrimaryLocation and LocalLocation are the directories recorded on
	// issue_localized/issue_promoted events (§4.I); normally the
	// project's two store directories.
	PrimaryLocation string
	LocalLocation   string
}

func (s *Service) now() model.Time {
	return model.NewTime(time.Now())
}

func (s *Service) lookup(id string) (*model.Issue, bool) {
	issue, err := s.Store.Read(id)
	if err == nil {
		return issue, true
	}
	if s.PeerLookup != nil {
		return s.PeerLookup(id)
	}
	return nil, false
}

func (s *Service) existingIDSet() (map[string]bool, error) {
	ids, err := s.Store.ListIDs()
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// writeWithEvents performs the write-issue-then-write-events step of
// §4.I: the issue file is written first; if the event batch fails, the
// previous issue record (possibly nil, for a brand-new issue) is
// restored before the error propagates.
func (s *Service) writeWithEvents(previous *model.Issue, next *model.Issue, events []*model.Event) error {
	if err := s.Store.Write(next); err != nil {
		return err
	}
	if err := s.Events.WriteBatch(events); err != nil {
		if previous != nil {
			s.Store.Write(previous)
		} else {
			s.Store.Delete(next.Identifier)
		}
		return err
	}
	return nil
}

func (s *Service) newEvent(issueID string, eventType model.EventType, payload []byte) *model.Event {
	return &model.Event{
		SchemaVersion: model.SchemaVersion,
		EventID:       uuid.New().String(),
		IssueID:       issueID,
		EventType:     eventType,
		OccurredAt:    s.now(),
		ActorID:       s.ActorID,
		Payload:       payload,
	}
}

// CreateInput carries the fields a caller may supply when creating an
// issue; zero values fall back to configuration defaults.
type CreateInput struct {
	Title       string
	Description string
	IssueType   string
	Priority    *int
	Assignee    string
	Parent      string
	Labels      []string
}

// Create validates and persists a new issue, emitting issue_created.
func (s *Service) Create(in CreateInput) (*model.Issue, error) {
	if in.Title == "" {
		return nil, beaconerr.New(beaconerr.InvalidIssueData, "title must not be empty")
	}

	existing, err := s.existingIDSet()
	if err != nil {
		return nil, err
	}
	normalized := model.NormalizedTitle(in.Title)
	ids := make([]string, 0, len(existing))
	for id := range existing {
		ids = append(ids, id)
	}
	for _, id := range ids {
		other, err := s.Store.Read(id)
		if err != nil {
			continue
		}
		if model.NormalizedTitle(other.Title) == normalized {
			return nil, beaconerr.Newf(beaconerr.DuplicateTitle, "title %q already exists as %s", in.Title, other.Identifier)
		}
	}

	assignee := in.Assignee
	if assignee == "" {
		assignee = s.Config.Assignee
	}
	priority := s.Config.DefaultPriority
	if in.Priority != nil {
		priority = *in.Priority
	}
	if _, ok := s.Config.Priorities[priority]; !ok {
		return nil, beaconerr.Newf(beaconerr.InvalidIssueData, "priority %d is not configured", priority)
	}

	if in.Parent != "" {
		parent, ok := s.lookup(in.Parent)
		if !ok {
			return nil, beaconerr.Newf(beaconerr.NotFound, "parent %q does not exist", in.Parent)
		}
		if err := s.Engine.ValidateParentChild(parent.IssueType, in.IssueType); err != nil {
			return nil, err
		}
	}

	id, err := idgen.Generate(s.Config.ProjectKey, existing)
	if err != nil {
		return nil, err
	}

	now := s.now()
	issue := &model.Issue{
		Identifier:  id,
		Title:       in.Title,
		Description: in.Description,
		IssueType:   in.IssueType,
		Status:      s.Config.InitialStatus,
		Priority:    priority,
		Assignee:    assignee,
		Creator:     s.ActorID,
		Parent:      in.Parent,
		Labels:      append([]string{}, in.Labels...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	event := s.newEvent(id, model.EventIssueCreated, model.IssueCreatedPayload(
		issue.Title, issue.Description, issue.IssueType, issue.Status,
		issue.Priority, issue.Assignee, issue.Parent, issue.Labels,
	))

	if err := s.writeWithEvents(nil, issue, []*model.Event{event}); err != nil {
		return nil, err
	}
	return issue, nil
}

// UpdateFields carries the mutable subset of an issue; nil pointers
// leave the corresponding field unchanged.
type UpdateFields struct {
	Title       *string
	Description *string
	Status      *string
	Assignee    *string
	Priority    *int
	Labels      *[]string
	Parent      *string
}

// Update applies fields to the issue identified by id, emitting
// state_transition when status changes and a single field_updated
// event covering every other changed field.
func (s *Service) Update(id string, fields UpdateFields) (*model.Issue, error) {
	issue, err := s.Store.Read(id)
	if err != nil {
		return nil, err
	}
	previous := *issue
	changes := map[string]model.FieldChange{}
	var events []*model.Event

	if fields.Status != nil && *fields.Status != issue.Status {
		if err := s.Engine.ValidateTransition(issue.IssueType, issue.Status, *fields.Status); err != nil {
			return nil, err
		}
		events = append(events, s.newEvent(id, model.EventStateTransition, model.StateTransitionPayload(issue.Status, *fields.Status)))
		if workflow.IsClosed(*fields.Status) {
			now := s.now()
			issue.ClosedAt = &now
		} else if workflow.IsClosed(issue.Status) {
			issue.ClosedAt = nil
		}
		issue.Status = *fields.Status
	}

	if fields.Parent != nil && *fields.Parent != issue.Parent {
		if *fields.Parent != "" {
			parent, ok := s.lookup(*fields.Parent)
			if !ok {
				return nil, beaconerr.Newf(beaconerr.NotFound, "parent %q does not exist", *fields.Parent)
			}
			if err := s.Engine.ValidateParentChild(parent.IssueType, issue.IssueType); err != nil {
				return nil, err
			}
		}
		changes["parent"] = model.FieldChange{From: issue.Parent, To: *fields.Parent}
		issue.Parent = *fields.Parent
	}
	if fields.Title != nil && *fields.Title != issue.Title {
		changes["title"] = model.FieldChange{From: issue.Title, To: *fields.Title}
		issue.Title = *fields.Title
	}
	if fields.Description != nil && *fields.Description != issue.Description {
		changes["description"] = model.FieldChange{From: issue.Description, To: *fields.Description}
		issue.Description = *fields.Description
	}
	if fields.Assignee != nil && *fields.Assignee != issue.Assignee {
		changes["assignee"] = model.FieldChange{From: issue.Assignee, To: *fields.Assignee}
		issue.Assignee = *fields.Assignee
	}
	if fields.Priority != nil && *fields.Priority != issue.Priority {
		if _, ok := s.Config.Priorities[*fields.Priority]; !ok {
			return nil, beaconerr.Newf(beaconerr.InvalidIssueData, "priority %d is not configured", *fields.Priority)
		}
		changes["priority"] = model.FieldChange{From: issue.Priority, To: *fields.Priority}
		issue.Priority = *fields.Priority
	}
	if fields.Labels != nil && !stringsEqual(*fields.Labels, issue.Labels) {
		changes["labels"] = model.FieldChange{From: issue.Labels, To: *fields.Labels}
		issue.Labels = *fields.Labels
	}

	if len(changes) > 0 {
		events = append(events, s.newEvent(id, model.EventFieldUpdated, model.FieldUpdatedPayload(changes)))
	}
	if len(events) == 0 {
		return issue, nil
	}

	issue.UpdatedAt = s.now()

	if err := s.writeWithEvents(&previous, issue, events); err != nil {
		return nil, err
	}
	return issue, nil
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Close is shorthand for Update with status set to "closed".
func (s *Service) Close(id string) (*model.Issue, error) {
	closed := "closed"
	return s.Update(id, UpdateFields{Status: &closed})
}

// Delete removes the issue file, cleans up dangling references in
// siblings, and emits issue_deleted. Reference cleanup does not itself
// emit events, per §4.I.
func (s *Service) Delete(id string) error {
	issue, err := s.Store.Read(id)
	if err != nil {
		return err
	}
	event := s.newEvent(id, model.EventIssueDeleted, model.IssueDeletedPayload(issue.Title, issue.IssueType, issue.Status))
	if err := s.Events.WriteBatch([]*model.Event{event}); err != nil {
		return err
	}
	if err := s.Store.Delete(id); err != nil {
		return err
	}
	return s.Store.CleanupReferences(id)
}

// CommentAdd appends a new comment with a fresh id, emitting
// comment_added (never the comment text, per §4.I).
func (s *Service) CommentAdd(id, author, text string) (*model.Issue, *model.Comment, error) {
	issue, err := s.Store.Read(id)
	if err != nil {
		return nil, nil, err
	}
	previous := *issue

	if author == "" {
		author = s.ActorID
	}
	comment := model.Comment{
		ID:        uuid.New().String(),
		Author:    author,
		Text:      text,
		CreatedAt: s.now(),
	}
	issue.Comments = append(issue.Comments, comment)
	issue.UpdatedAt = s.now()

	event := s.newEvent(id, model.EventCommentAdded, model.CommentAddedPayload(comment.ID, comment.Author))
	if err := s.writeWithEvents(&previous, issue, []*model.Event{event}); err != nil {
		return nil, nil, err
	}
	return issue, &comment, nil
}

// CommentUpdate matches prefix against the issue's comment ids by
// unique prefix and replaces its text.
func (s *Service) CommentUpdate(id, prefix, text string) (*model.Issue, error) {
	issue, err := s.Store.Read(id)
	if err != nil {
		return nil, err
	}
	previous := *issue

	commentID, err := idgen.ResolveCommentPrefix(prefix, commentIDs(issue))
	if err != nil {
		return nil, err
	}
	var author string
	for i := range issue.Comments {
		if issue.Comments[i].ID == commentID {
			issue.Comments[i].Text = text
			author = issue.Comments[i].Author
			break
		}
	}
	issue.UpdatedAt = s.now()

	event := s.newEvent(id, model.EventCommentUpdated, model.CommentUpdatedPayload(commentID, author, []string{"text"}))
	if err := s.writeWithEvents(&previous, issue, []*model.Event{event}); err != nil {
		return nil, err
	}
	return issue, nil
}

// CommentDelete matches prefix against the issue's comment ids by
// unique prefix and removes that comment.
func (s *Service) CommentDelete(id, prefix string) (*model.Issue, error) {
	issue, err := s.Store.Read(id)
	if err != nil {
		return nil, err
	}
	previous := *issue

	commentID, err := idgen.ResolveCommentPrefix(prefix, commentIDs(issue))
	if err != nil {
		return nil, err
	}
	var author string
	kept := issue.Comments[:0]
	for _, c := range issue.Comments {
		if c.ID == commentID {
			author = c.Author
			continue
		}
		kept = append(kept, c)
	}
	issue.Comments = kept
	issue.UpdatedAt = s.now()

	event := s.newEvent(id, model.EventCommentDeleted, model.CommentDeletedPayload(commentID, author))
	if err := s.writeWithEvents(&previous, issue, []*model.Event{event}); err != nil {
		return nil, err
	}
	return issue, nil
}

func commentIDs(issue *model.Issue) []string {
	ids := make([]string, len(issue.Comments))
	for i, c := range issue.Comments {
		ids[i] = c.ID
	}
	return ids
}

// EnsureIDs backfills missing comment UUIDs without emitting events.
func (s *Service) EnsureIDs(id string) (*model.Issue, error) {
	issue, err := s.Store.Read(id)
	if err != nil {
		return nil, err
	}
	changed := false
	for i := range issue.Comments {
		if issue.Comments[i].ID == "" {
			issue.Comments[i].ID = uuid.New().String()
			changed = true
		}
	}
	if !changed {
		return issue, nil
	}
	if err := s.Store.Write(issue); err != nil {
		return nil, err
	}
	return issue, nil
}

// AddDependency validates and persists a new edge from source to
// target, per §4.F. Idempotent: re-adding an existing edge is a no-op
// that still succeeds without emitting a second event.
func (s *Service) AddDependency(sourceID, targetID string, depType model.DependencyType) (*model.Issue, error) {
	source, err := s.Store.Read(sourceID)
	if err != nil {
		return nil, err
	}
	target, ok := s.lookup(targetID)
	if !ok {
		return nil, beaconerr.Newf(beaconerr.NotFound, "dependency target %q does not exist", targetID)
	}
	if source.HasDependency(targetID, depType) {
		return source, nil
	}
	if err := depgraph.ValidateAdd(s.lookup, source, target, depType); err != nil {
		return nil, err
	}

	previous := *source
	source.Dependencies = append(source.Dependencies, model.Dependency{Target: targetID, DependencyType: depType})
	source.UpdatedAt = s.now()

	event := s.newEvent(sourceID, model.EventDependencyAdded, model.DependencyAddedPayload(depType, targetID))
	if err := s.writeWithEvents(&previous, source, []*model.Event{event}); err != nil {
		return nil, err
	}
	return source, nil
}

// Localize moves an issue from the primary project store into the
// local sibling, emitting issue_localized. It requires the service to
// have been constructed with a local sibling scope (LocalStore and
// LocalEvents).
func (s *Service) Localize(id string) (*model.Issue, error) {
	if s.LocalStore == nil || s.LocalEvents == nil {
		return nil, beaconerr.New(beaconerr.NotInitialized, "no local sibling project is configured")
	}
	return Relocate(s.Store, s.LocalStore, s.Events, s.LocalEvents, id, model.EventIssueLocalized, s.ActorID, s.PrimaryLocation, s.LocalLocation)
}

// Promote moves an issue from the local sibling back into the primary
// project store, emitting issue_promoted. It requires the service to
// have been constructed with a local sibling scope (LocalStore and
// LocalEvents).
func (s *Service) Promote(id string) (*model.Issue, error) {
	if s.LocalStore == nil || s.LocalEvents == nil {
		return nil, beaconerr.New(beaconerr.NotInitialized, "no local sibling project is configured")
	}
	return Relocate(s.LocalStore, s.Store, s.LocalEvents, s.Events, id, model.EventIssuePromoted, s.ActorID, s.LocalLocation, s.PrimaryLocation)
}

// RemoveDependency deletes a matching edge; absence is not an error and
// emits no event.
func (s *Service) RemoveDependency(sourceID, targetID string, depType model.DependencyType) (*model.Issue, error) {
	source, err := s.Store.Read(sourceID)
	if err != nil {
		return nil, err
	}
	if !source.HasDependency(targetID, depType) {
		return source, nil
	}
	previous := *source

	kept := source.Dependencies[:0]
	for _, d := range source.Dependencies {
		if d.Target == targetID && d.DependencyType == depType {
			continue
		}
		kept = append(kept, d)
	}
	source.Dependencies = kept
	source.UpdatedAt = s.now()

	event := s.newEvent(sourceID, model.EventDependencyRemoved, model.DependencyRemovedPayload(depType, targetID))
	if err := s.writeWithEvents(&previous, source, []*model.Event{event}); err != nil {
		return nil, err
	}
	return source, nil
}
