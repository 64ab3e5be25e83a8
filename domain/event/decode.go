package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"convo-sync/domain"
	"convo-sync/errors"
)

var validate = validator.New()

type attachmentPayload struct {
	Name string `json:"name"`
	Mime string `json:"mime"`
	Size int64  `json:"size"`
}

type messagePayload struct {
	ID                string              `json:"id" validate:"required"`
	GroupID           string              `json:"group_id" validate:"required"`
	SenderID          string              `json:"sender_id" validate:"required"`
	SenderDisplayName string              `json:"sender_display_name"`
	Content           string              `json:"content"`
	CreatedAt         time.Time           `json:"created_at" validate:"required"`
	EditedAt          *time.Time          `json:"edited_at"`
	Pinned            bool                `json:"pinned"`
	Attachments       []attachmentPayload `json:"attachments"`
}

type deletionPayload struct {
	ID      string `json:"id" validate:"required"`
	GroupID string `json:"group_id" validate:"required"`
}

type typingPayload struct {
	GroupID       string `json:"group_id" validate:"required"`
	ParticipantID string `json:"participant_id" validate:"required"`
	DisplayName   string `json:"display_name"`
}

// Decode turns a named wire payload into one of the closed event
// variants. Payloads are validated before use: a malformed payload is
// an error for the caller to log, never a reason to trust the shape.
func Decode(name string, payload []byte) (Event, error) {
	switch name {
	case MessageCreatedName:
		p, err := decodeMessage(payload)
		if err != nil {
			return nil, err
		}
		return MessageCreated{Group: domain.GroupID(p.GroupID), Message: toMessage(p)}, nil
	case MessageUpdatedName:
		p, err := decodeMessage(payload)
		if err != nil {
			return nil, err
		}
		return MessageUpdated{Group: domain.GroupID(p.GroupID), Message: toMessage(p)}, nil
	case MessagePinnedName:
		p, err := decodeMessage(payload)
		if err != nil {
			return nil, err
		}
		return MessagePinned{Group: domain.GroupID(p.GroupID), Message: toMessage(p)}, nil
	case MessageDeletedName:
		var p deletionPayload
		if err := unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return MessageDeleted{Group: domain.GroupID(p.GroupID), ID: p.ID}, nil
	case TypingStartedName:
		var p typingPayload
		if err := unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return TypingStarted{
			Group:         domain.GroupID(p.GroupID),
			ParticipantID: p.ParticipantID,
			DisplayName:   p.DisplayName,
		}, nil
	case TypingStoppedName:
		var p typingPayload
		if err := unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return TypingStopped{Group: domain.GroupID(p.GroupID), ParticipantID: p.ParticipantID}, nil
	}
	return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, name)
}

func decodeMessage(payload []byte) (messagePayload, error) {
	var p messagePayload
	err := unmarshal(payload, &p)
	return p, err
}

func unmarshal(payload []byte, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// toMessage builds the authoritative record carried by the event.
// Anything delivered by the server is confirmed by definition.
func toMessage(p messagePayload) domain.Message {
	return domain.Message{
		ID:                p.ID,
		GroupID:           domain.GroupID(p.GroupID),
		SenderID:          p.SenderID,
		SenderDisplayName: p.SenderDisplayName,
		Content:           p.Content,
		CreatedAt:         p.CreatedAt,
		EditedAt:          p.EditedAt,
		Pinned:            p.Pinned,
		Attachments: lo.Map(p.Attachments, func(a attachmentPayload, _ int) domain.Attachment {
			return domain.Attachment{Name: a.Name, MIME: a.Mime, Size: a.Size}
		}),
		DeliveryState: domain.DeliveryConfirmed,
	}
}
