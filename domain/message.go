// Package domain contains core concepts of the conversation system.
// This file defines Message records and their delivery lifecycle.
// Messages are whole-record values; mutation happens by replacement.
package domain

import (
	"time"

	"convo-sync/domain/mimetypes"
)

type GroupID string

// DeliveryState is local-only and never persisted server-side.
// It exists for messages created by the current session before the
// server has confirmed them.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryConfirmed DeliveryState = "confirmed"
	DeliveryFailed    DeliveryState = "failed"
)

// Attachment is opaque to the synchronization core beyond existence
// and a coarse MIME kind used by the media history filter.
type Attachment struct {
	Name string
	MIME string
	Size int64
}

// Message represents one chat entry.
// ID is the sole deduplication key within a conversation.
// SenderID, SenderDisplayName and CreatedAt are immutable after creation.
type Message struct {
	ID                string
	GroupID           GroupID
	SenderID          string
	SenderDisplayName string
	Content           string
	CreatedAt         time.Time
	EditedAt          *time.Time
	Pinned            bool
	Attachments       []Attachment
	DeliveryState     DeliveryState
}

// HasMedia reports whether any attachment carries a media MIME kind.
func (m Message) HasMedia() bool {
	for _, a := range m.Attachments {
		if mimetypes.IsMedia(a.MIME) {
			return true
		}
	}
	return false
}
