package issueops

import (
	"time"

	"github.com/google/uuid"

	"beacon/internal/eventlog"
	"beacon/internal/issuestore"
	"beacon/internal/model"
)

// Relocate moves an issue file between two stores, preserving content,
// and emits issue_localized or issue_promoted depending on direction.
// It backs Service.Localize and Service.Promote, both of which move an
// issue between the primary project and its local sibling.
func Relocate(from, to issuestore.Store, fromEvents, toEvents *eventlog.Log, id string, eventType model.EventType, actorID string, fromLocation, toLocation string) (*model.Issue, error) {
	issue, err := from.Read(id)
	if err != nil {
		return nil, err
	}
	if err := to.Write(issue); err != nil {
		return nil, err
	}

	event := &model.Event{
		SchemaVersion: model.SchemaVersion,
		EventID:       uuid.New().String(),
		IssueID:       id,
		EventType:     eventType,
		OccurredAt:    model.NewTime(time.Now()),
		ActorID:       actorID,
		Payload:       model.IssueLocalizedPayload(fromLocation, toLocation),
	}
	if eventType == model.EventIssuePromoted {
		event.Payload = model.IssuePromotedPayload(fromLocation, toLocation)
	}

	if err := toEvents.WriteBatch([]*model.Event{event}); err != nil {
		to.Delete(id)
		return nil, err
	}
	if err := from.Delete(id); err != nil {
		return nil, err
	}
	return issue, nil
}
