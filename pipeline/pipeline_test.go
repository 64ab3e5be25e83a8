package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"convo-sync/domain"
	"convo-sync/errors"
	"convo-sync/projection"
)

type fakeRemote struct {
	send   func(content string) (domain.Message, error)
	edit   func(id, content string) (domain.Message, error)
	delete func(id string) error
	pin    func(id string) (domain.Message, error)
}

func (f *fakeRemote) FetchPage(_ context.Context, _ domain.GroupID, _ domain.PageRequest) ([]domain.Message, error) {
	return nil, nil
}

func (f *fakeRemote) SendMessage(_ context.Context, _ domain.GroupID, _, content string, _ []domain.Attachment) (domain.Message, error) {
	return f.send(content)
}

func (f *fakeRemote) EditMessage(_ context.Context, id, content string) (domain.Message, error) {
	return f.edit(id, content)
}

func (f *fakeRemote) DeleteMessage(_ context.Context, id string) error {
	return f.delete(id)
}

func (f *fakeRemote) TogglePin(_ context.Context, id string) (domain.Message, error) {
	return f.pin(id)
}

const actorID = "actor-1"

func newPipeline(remote *fakeRemote) (*CommandPipeline, *projection.MessageStore) {
	store := projection.NewMessageStore()
	policy := domain.NewEditWindowPolicy(domain.DefaultEditWindow)
	p := NewCommandPipeline(slog.Default(), remote, store, policy, "g1", "channel", actorID, "Me")
	return p, store
}

func confirmed(id, content string) domain.Message {
	return domain.Message{
		ID:                id,
		GroupID:           "g1",
		SenderID:          actorID,
		SenderDisplayName: "Me",
		Content:           content,
		CreatedAt:         time.Now().UTC(),
		DeliveryState:     domain.DeliveryConfirmed,
	}
}

func TestSend_Success_Collapses_To_Confirmed_Record(t *testing.T) {
	req := require.New(t)
	remote := &fakeRemote{send: func(content string) (domain.Message, error) {
		return confirmed("F", content), nil
	}}
	p, store := newPipeline(remote)

	sent, err := p.Send(context.Background(), "hello", nil)
	req.NoError(err)
	req.Equal("F", sent.ID)
	req.Equal(domain.DeliveryConfirmed, sent.DeliveryState)

	snapshot := store.Snapshot()
	req.Len(snapshot, 1)
	req.Equal("F", snapshot[0].ID)
}

func TestSend_No_Duplicate_When_Event_Beats_Response(t *testing.T) {
	req := require.New(t)
	var store *projection.MessageStore
	final := confirmed("F", "hello")
	remote := &fakeRemote{send: func(content string) (domain.Message, error) {
		// The push event lands before the HTTP response returns
		store.Upsert(final)
		return final, nil
	}}
	p, s := newPipeline(remote)
	store = s

	_, err := p.Send(context.Background(), "hello", nil)
	req.NoError(err)

	snapshot := store.Snapshot()
	req.Len(snapshot, 1)
	req.Equal("F", snapshot[0].ID)
}

func TestSend_Failure_Marks_Provisional_Failed_In_Place(t *testing.T) {
	req := require.New(t)
	remote := &fakeRemote{send: func(string) (domain.Message, error) {
		return domain.Message{}, fmt.Errorf("boom")
	}}
	p, store := newPipeline(remote)

	_, err := p.Send(context.Background(), "hello", nil)
	req.Error(err)

	// The record is visible and failed, not removed
	snapshot := store.Snapshot()
	req.Len(snapshot, 1)
	req.Equal(domain.DeliveryFailed, snapshot[0].DeliveryState)
	req.Equal("hello", snapshot[0].Content)
}

func TestRetry_Resends_Failed_Provisional(t *testing.T) {
	req := require.New(t)
	attempts := 0
	remote := &fakeRemote{send: func(content string) (domain.Message, error) {
		attempts++
		if attempts == 1 {
			return domain.Message{}, fmt.Errorf("boom")
		}
		return confirmed("F", content), nil
	}}
	p, store := newPipeline(remote)

	_, err := p.Send(context.Background(), "hello", nil)
	req.Error(err)
	failedID := store.Snapshot()[0].ID

	sent, err := p.Retry(context.Background(), failedID)
	req.NoError(err)
	req.Equal("F", sent.ID)
	req.Len(store.Snapshot(), 1)
	req.Equal("F", store.Snapshot()[0].ID)
}

func TestRetry_Requires_A_Failed_Record(t *testing.T) {
	req := require.New(t)
	p, store := newPipeline(&fakeRemote{})

	_, err := p.Retry(context.Background(), uuid.NewString())
	req.ErrorIs(err, errors.ErrMessageNotFound)

	store.Upsert(confirmed("F", "fine"))
	_, err = p.Retry(context.Background(), "F")
	req.Error(err)
}

func TestEdit_Rejected_Locally_For_Non_Owner(t *testing.T) {
	req := require.New(t)
	called := false
	remote := &fakeRemote{edit: func(string, string) (domain.Message, error) {
		called = true
		return domain.Message{}, nil
	}}
	p, store := newPipeline(remote)

	other := confirmed("X", "not yours")
	other.SenderID = "someone-else"
	store.Upsert(other)

	err := p.Edit(context.Background(), "X", "hijacked")
	req.ErrorIs(err, errors.ErrNotMessageOwner)

	// Rejected before any network call, store untouched
	req.False(called)
	req.Equal("not yours", store.Snapshot()[0].Content)
}

func TestEdit_Rejected_Locally_Outside_Window(t *testing.T) {
	req := require.New(t)
	p, store := newPipeline(&fakeRemote{})
	m := confirmed("X", "old")
	store.Upsert(m)
	p.now = func() time.Time { return m.CreatedAt.Add(domain.DefaultEditWindow + time.Minute) }

	err := p.Edit(context.Background(), "X", "too late")
	req.ErrorIs(err, errors.ErrEditWindowClosed)
}

func TestEdit_Success_Applies_Authoritative_Response(t *testing.T) {
	req := require.New(t)
	remote := &fakeRemote{edit: func(id, content string) (domain.Message, error) {
		// The server may rewrite the content (moderation)
		m := confirmed(id, "sanitized")
		return m, nil
	}}
	p, store := newPipeline(remote)
	store.Upsert(confirmed("X", "original"))

	err := p.Edit(context.Background(), "X", "raw")
	req.NoError(err)
	req.Equal("sanitized", store.Snapshot()[0].Content)
}

func TestEdit_Failure_Reverts_To_Pre_Edit_Snapshot(t *testing.T) {
	req := require.New(t)
	remote := &fakeRemote{edit: func(string, string) (domain.Message, error) {
		return domain.Message{}, fmt.Errorf("boom")
	}}
	p, store := newPipeline(remote)
	before := confirmed("X", "original")
	store.Upsert(before)

	err := p.Edit(context.Background(), "X", "changed")
	req.Error(err)

	// Exactly the pre-edit record is back
	got, ok := store.Get("X")
	req.True(ok)
	req.Equal(before, got)
}

func TestDelete_Confirm_Flow(t *testing.T) {
	req := require.New(t)
	remote := &fakeRemote{delete: func(string) error { return nil }}
	p, store := newPipeline(remote)
	store.Upsert(confirmed("X", "bye"))

	// Requesting keeps the record visible
	req.NoError(p.RequestDelete("X"))
	req.True(p.HasPendingDelete("X"))
	req.Equal(1, store.Len())

	// Confirming removes it
	req.NoError(p.ConfirmDelete(context.Background(), "X"))
	req.False(p.HasPendingDelete("X"))
	req.Zero(store.Len())
}

func TestDelete_Cancel_Leaves_Store_Untouched(t *testing.T) {
	req := require.New(t)
	p, store := newPipeline(&fakeRemote{})
	store.Upsert(confirmed("X", "stay"))

	req.NoError(p.RequestDelete("X"))
	p.CancelDelete("X")

	req.False(p.HasPendingDelete("X"))
	req.Equal(1, store.Len())
}

func TestDelete_Failure_Restores_Original_Record(t *testing.T) {
	req := require.New(t)
	remote := &fakeRemote{delete: func(string) error { return fmt.Errorf("boom") }}
	p, store := newPipeline(remote)
	before := confirmed("X", "bye")
	store.Upsert(before)

	req.NoError(p.RequestDelete("X"))
	err := p.ConfirmDelete(context.Background(), "X")
	req.Error(err)

	got, ok := store.Get("X")
	req.True(ok)
	req.Equal(before, got)
}

func TestDelete_Confirm_Without_Request(t *testing.T) {
	req := require.New(t)
	p, store := newPipeline(&fakeRemote{})
	store.Upsert(confirmed("X", "stay"))

	err := p.ConfirmDelete(context.Background(), "X")
	req.ErrorIs(err, errors.ErrNoPendingDelete)
	req.Equal(1, store.Len())
}

func TestTogglePin_Failure_Reverts_Flag(t *testing.T) {
	req := require.New(t)
	remote := &fakeRemote{pin: func(string) (domain.Message, error) {
		return domain.Message{}, fmt.Errorf("boom")
	}}
	p, store := newPipeline(remote)
	store.Upsert(confirmed("X", "pin me"))

	err := p.TogglePin(context.Background(), "X")
	req.Error(err)
	req.False(store.Snapshot()[0].Pinned)
}

func TestTogglePin_Success_Applies_Authoritative_Record(t *testing.T) {
	req := require.New(t)
	remote := &fakeRemote{pin: func(id string) (domain.Message, error) {
		m := confirmed(id, "pin me")
		m.Pinned = true
		return m, nil
	}}
	p, store := newPipeline(remote)
	store.Upsert(confirmed("X", "pin me"))

	req.NoError(p.TogglePin(context.Background(), "X"))
	req.True(store.Snapshot()[0].Pinned)
}

func TestClosed_Pipeline_Ignores_Late_Callbacks(t *testing.T) {
	req := require.New(t)
	var p *CommandPipeline
	remote := &fakeRemote{send: func(content string) (domain.Message, error) {
		// The view is torn down while the command is in flight
		p.Close()
		return confirmed("F", content), nil
	}}
	var store *projection.MessageStore
	p, store = newPipeline(remote)

	_, err := p.Send(context.Background(), "hello", nil)
	req.ErrorIs(err, errors.ErrPipelineClosed)

	// The late response did not touch the store: the provisional is
	// still there, no confirmed record appeared.
	snapshot := store.Snapshot()
	req.Len(snapshot, 1)
	req.Equal(domain.DeliveryPending, snapshot[0].DeliveryState)

	// And every command is rejected from now on
	req.ErrorIs(p.RequestDelete("F"), errors.ErrPipelineClosed)
	req.ErrorIs(p.Edit(context.Background(), "F", "x"), errors.ErrPipelineClosed)
}
