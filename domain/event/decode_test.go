package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"convo-sync/domain"
	"convo-sync/errors"
)

func TestDecode_MessageCreated_RoundTrip(t *testing.T) {
	req := require.New(t)
	editedAt := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	original := MessageCreated{
		Group: "g1",
		Message: domain.Message{
			ID:                "m1",
			GroupID:           "g1",
			SenderID:          "alice-id",
			SenderDisplayName: "Alice",
			Content:           "hello",
			CreatedAt:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			EditedAt:          &editedAt,
			Pinned:            true,
			Attachments:       []domain.Attachment{{Name: "cat.png", MIME: "image/png", Size: 1024}},
			DeliveryState:     domain.DeliveryConfirmed,
		},
	}

	name, payload, err := Encode(original)
	req.NoError(err)
	req.Equal(MessageCreatedName, name)

	decoded, err := Decode(name, payload)
	req.NoError(err)
	req.Equal(original, decoded)
}

func TestDecode_MessageDeleted_Carries_ID_Only(t *testing.T) {
	req := require.New(t)
	payload := []byte(`{"id":"m1","group_id":"g1"}`)

	decoded, err := Decode(MessageDeletedName, payload)
	req.NoError(err)
	req.Equal(MessageDeleted{Group: "g1", ID: "m1"}, decoded)
}

func TestDecode_Typing_Signals(t *testing.T) {
	req := require.New(t)

	started, err := Decode(TypingStartedName, []byte(`{"group_id":"g1","participant_id":"p1","display_name":"Bob"}`))
	req.NoError(err)
	req.Equal(TypingStarted{Group: "g1", ParticipantID: "p1", DisplayName: "Bob"}, started)

	stopped, err := Decode(TypingStoppedName, []byte(`{"group_id":"g1","participant_id":"p1"}`))
	req.NoError(err)
	req.Equal(TypingStopped{Group: "g1", ParticipantID: "p1"}, stopped)
}

func TestDecode_Unknown_Event_Name(t *testing.T) {
	req := require.New(t)
	_, err := Decode("message-reacted", []byte(`{}`))
	req.ErrorIs(err, errors.ErrUnknownEvent)
}

func TestDecode_Rejects_Missing_Required_Fields(t *testing.T) {
	req := require.New(t)

	// No id
	_, err := Decode(MessageCreatedName, []byte(`{"group_id":"g1","sender_id":"p1","created_at":"2026-03-01T10:00:00Z"}`))
	req.Error(err)

	// Not even JSON
	_, err = Decode(MessageDeletedName, []byte(`nope`))
	req.Error(err)
}
