// Package event defines the closed set of named events a conversation
// subscription can receive, and the validated decoding of their wire
// payloads. Every message event carries the full current representation
// of the affected record, never a diff.
package event

import (
	"convo-sync/domain"
)

// Wire names of the per-conversation pub/sub events.
const (
	MessageCreatedName = "message-created"
	MessageUpdatedName = "message-updated"
	MessageDeletedName = "message-deleted"
	MessagePinnedName  = "message-pinned"
	TypingStartedName  = "typing-started"
	TypingStoppedName  = "typing-stopped"
)

type Event interface {
	GroupID() domain.GroupID
}

type MessageCreated struct {
	Group   domain.GroupID
	Message domain.Message
}

func (e MessageCreated) GroupID() domain.GroupID { return e.Group }

type MessageUpdated struct {
	Group   domain.GroupID
	Message domain.Message
}

func (e MessageUpdated) GroupID() domain.GroupID { return e.Group }

// MessageDeleted carries the id only; the record is gone server-side.
type MessageDeleted struct {
	Group domain.GroupID
	ID    string
}

func (e MessageDeleted) GroupID() domain.GroupID { return e.Group }

type MessagePinned struct {
	Group   domain.GroupID
	Message domain.Message
}

func (e MessagePinned) GroupID() domain.GroupID { return e.Group }

type TypingStarted struct {
	Group         domain.GroupID
	ParticipantID string
	DisplayName   string
}

func (e TypingStarted) GroupID() domain.GroupID { return e.Group }

type TypingStopped struct {
	Group         domain.GroupID
	ParticipantID string
}

func (e TypingStopped) GroupID() domain.GroupID { return e.Group }
