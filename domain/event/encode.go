package event

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"

	"convo-sync/domain"
	"convo-sync/errors"
)

// Encode is the wire counterpart of Decode: it yields the event name
// and the JSON payload to publish on the conversation group.
func Encode(e Event) (string, []byte, error) {
	switch evt := e.(type) {
	case MessageCreated:
		return marshalMessage(MessageCreatedName, evt.Message)
	case MessageUpdated:
		return marshalMessage(MessageUpdatedName, evt.Message)
	case MessagePinned:
		return marshalMessage(MessagePinnedName, evt.Message)
	case MessageDeleted:
		payload, err := json.Marshal(deletionPayload{ID: evt.ID, GroupID: string(evt.Group)})
		return MessageDeletedName, payload, err
	case TypingStarted:
		payload, err := json.Marshal(typingPayload{
			GroupID:       string(evt.Group),
			ParticipantID: evt.ParticipantID,
			DisplayName:   evt.DisplayName,
		})
		return TypingStartedName, payload, err
	case TypingStopped:
		payload, err := json.Marshal(typingPayload{
			GroupID:       string(evt.Group),
			ParticipantID: evt.ParticipantID,
		})
		return TypingStoppedName, payload, err
	}
	return "", nil, fmt.Errorf("%w: %T", errors.ErrUnknownEvent, e)
}

func marshalMessage(name string, m domain.Message) (string, []byte, error) {
	payload, err := json.Marshal(fromMessage(m))
	return name, payload, err
}

func fromMessage(m domain.Message) messagePayload {
	return messagePayload{
		ID:                m.ID,
		GroupID:           string(m.GroupID),
		SenderID:          m.SenderID,
		SenderDisplayName: m.SenderDisplayName,
		Content:           m.Content,
		CreatedAt:         m.CreatedAt,
		EditedAt:          m.EditedAt,
		Pinned:            m.Pinned,
		Attachments: lo.Map(m.Attachments, func(a domain.Attachment, _ int) attachmentPayload {
			return attachmentPayload{Name: a.Name, Mime: a.MIME, Size: a.Size}
		}),
	}
}
