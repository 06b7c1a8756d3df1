package model

import "encoding/json"

// EventType is the closed set of event kinds an issue mutation may emit.
type EventType string

const (
	EventIssueCreated      EventType = "issue_created"
	EventStateTransition   EventType = "state_transition"
	EventFieldUpdated      EventType = "field_updated"
	EventCommentAdded      EventType = "comment_added"
	EventCommentUpdated    EventType = "comment_updated"
	EventCommentDeleted    EventType = "comment_deleted"
	EventDependencyAdded   EventType = "dependency_added"
	EventDependencyRemoved EventType = "dependency_removed"
	EventIssueDeleted      EventType = "issue_deleted"
	EventIssueLocalized    EventType = "issue_localized"
	EventIssuePromoted     EventType = "issue_promoted"
)

// SchemaVersion is stamped on every emitted event.
const SchemaVersion = 1

// Event is a small immutable record describing one atomic issue change.
type Event struct {
	SchemaVersion int             `json:"schema_version"`
	EventID       string          `json:"event_id"`
	IssueID       string          `json:"issue_id"`
	EventType     EventType       `json:"event_type"`
	OccurredAt    Time            `json:"occurred_at"`
	ActorID       string          `json:"actor_id"`
	Payload       json.RawMessage `json:"payload"`
}

// FieldChange describes one field's before/after value inside a
// field_updated payload.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Payload constructors for the bit-exact shapes of §6.5. Each returns a
// json.RawMessage ready to assign to Event.Payload; marshal errors are
// impossible for these fixed-shape values so they are not propagated.

func IssueCreatedPayload(title, description, issueType, status string, priority int, assignee, parent string, labels []string) json.RawMessage {
	return mustMarshal(map[string]any{
		"title":       title,
		"description": description,
		"issue_type":  issueType,
		"status":      status,
		"priority":    priority,
		"assignee":    assignee,
		"parent":      parent,
		"labels":      labels,
	})
}

func StateTransitionPayload(from, to string) json.RawMessage {
	return mustMarshal(map[string]any{"from_status": from, "to_status": to})
}

func FieldUpdatedPayload(changes map[string]FieldChange) json.RawMessage {
	return mustMarshal(map[string]any{"changes": changes})
}

func CommentAddedPayload(commentID, author string) json.RawMessage {
	return mustMarshal(map[string]any{"comment_id": commentID, "comment_author": author})
}

func CommentDeletedPayload(commentID, author string) json.RawMessage {
	return mustMarshal(map[string]any{"comment_id": commentID, "comment_author": author})
}

func CommentUpdatedPayload(commentID, author string, changedFields []string) json.RawMessage {
	return mustMarshal(map[string]any{
		"comment_id":     commentID,
		"comment_author": author,
		"changed_fields": changedFields,
	})
}

func DependencyAddedPayload(depType DependencyType, targetID string) json.RawMessage {
	return mustMarshal(map[string]any{"dependency_type": depType, "target_id": targetID})
}

func DependencyRemovedPayload(depType DependencyType, targetID string) json.RawMessage {
	return mustMarshal(map[string]any{"dependency_type": depType, "target_id": targetID})
}

func IssueDeletedPayload(title, issueType, status string) json.RawMessage {
	return mustMarshal(map[string]any{"title": title, "issue_type": issueType, "status": status})
}

func IssueLocalizedPayload(fromLocation, toLocation string) json.RawMessage {
	return mustMarshal(map[string]any{"from_location": fromLocation, "to_location": toLocation})
}

func IssuePromotedPayload(fromLocation, toLocation string) json.RawMessage {
	return mustMarshal(map[string]any{"from_location": fromLocation, "to_location": toLocation})
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
