// Package pipeline executes user-initiated mutations against the
// remote service, applying optimistic local effects and reconciling
// them with the authoritative response. Every optimistic mutation
// resolves to exactly one terminal outcome: authoritative upsert or
// rollback.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"convo-sync/contract"
	"convo-sync/domain"
	"convo-sync/errors"
	"convo-sync/projection"
)

type CommandPipeline struct {
	log       *slog.Logger
	remote    contract.RemoteService
	store     *projection.MessageStore
	policy    domain.EditWindowPolicy
	group     domain.GroupID
	groupType string
	actorID   string
	actorName string
	now       func() time.Time

	mu             sync.Mutex
	pendingDeletes map[string]domain.Message

	closed atomic.Bool
}

func NewCommandPipeline(log *slog.Logger, remote contract.RemoteService,
	store *projection.MessageStore, policy domain.EditWindowPolicy,
	group domain.GroupID, groupType, actorID, actorName string) *CommandPipeline {
	return &CommandPipeline{
		log:            log,
		remote:         remote,
		store:          store,
		policy:         policy,
		group:          group,
		groupType:      groupType,
		actorID:        actorID,
		actorName:      actorName,
		now:            time.Now,
		pendingDeletes: make(map[string]domain.Message),
	}
}

// Send renders a provisional record immediately, then reconciles it
// with the server-confirmed form. On failure the provisional record is
// marked failed in place, never removed, so the user can see it and
// retry. There is no automatic retry.
func (p *CommandPipeline) Send(ctx context.Context, content string, attachments []domain.Attachment) (domain.Message, error) {
	if p.closed.Load() {
		return domain.Message{}, errors.ErrPipelineClosed
	}
	provisional := domain.Message{
		ID:                uuid.NewString(),
		GroupID:           p.group,
		SenderID:          p.actorID,
		SenderDisplayName: p.actorName,
		Content:           content,
		CreatedAt:         p.now().UTC(),
		Attachments:       attachments,
		DeliveryState:     domain.DeliveryPending,
	}
	p.store.Upsert(provisional)
	return p.dispatchSend(ctx, provisional)
}

// Retry re-dispatches a provisional record whose previous send failed.
func (p *CommandPipeline) Retry(ctx context.Context, temporaryID string) (domain.Message, error) {
	if p.closed.Load() {
		return domain.Message{}, errors.ErrPipelineClosed
	}
	prev, ok := p.store.Get(temporaryID)
	if !ok {
		return domain.Message{}, fmt.Errorf("retry %s: %w", temporaryID, errors.ErrMessageNotFound)
	}
	if prev.DeliveryState != domain.DeliveryFailed {
		return domain.Message{}, fmt.Errorf("retry %s: message is not in a failed state", temporaryID)
	}
	pending := prev
	pending.DeliveryState = domain.DeliveryPending
	p.store.Upsert(pending)
	return p.dispatchSend(ctx, pending)
}

// dispatchSend issues the remote create and resolves the provisional
// record either to its confirmed form or to a visible failure. The
// replace collapses to a single record even when the realtime channel
// delivered the same message (by server id) before the response did.
func (p *CommandPipeline) dispatchSend(ctx context.Context, provisional domain.Message) (domain.Message, error) {
	confirmed, err := p.remote.SendMessage(ctx, p.group, p.groupType, provisional.Content, provisional.Attachments)
	if p.closed.Load() {
		// The view is gone; a late response must not touch the store.
		return domain.Message{}, errors.ErrPipelineClosed
	}
	if err != nil {
		failed := provisional
		failed.DeliveryState = domain.DeliveryFailed
		p.store.Upsert(failed)
		return domain.Message{}, fmt.Errorf("sending message: %w", err)
	}
	confirmed.DeliveryState = domain.DeliveryConfirmed
	p.store.ReplaceProvisional(provisional.ID, confirmed)
	return confirmed, nil
}

// Edit validates eligibility locally before contacting the remote
// service, applies the new content optimistically, then reconciles:
// authoritative upsert on success, exact rollback on failure.
func (p *CommandPipeline) Edit(ctx context.Context, id, content string) error {
	if p.closed.Load() {
		return errors.ErrPipelineClosed
	}
	prev, ok := p.store.Get(id)
	if !ok {
		return fmt.Errorf("edit %s: %w", id, errors.ErrMessageNotFound)
	}
	if err := p.eligible(prev); err != nil {
		return fmt.Errorf("edit %s: %w", id, err)
	}

	optimistic := prev
	optimistic.Content = content
	optimistic.EditedAt = lo.ToPtr(p.now().UTC())
	p.store.Upsert(optimistic)

	confirmed, err := p.remote.EditMessage(ctx, id, content)
	if p.closed.Load() {
		return errors.ErrPipelineClosed
	}
	if err != nil {
		p.store.Upsert(prev)
		return fmt.Errorf("editing message %s: %w", id, err)
	}
	confirmed.DeliveryState = domain.DeliveryConfirmed
	p.store.Upsert(confirmed)
	return nil
}

// RequestDelete enters the pending-confirmation state for the target
// id. The store is untouched until ConfirmDelete.
func (p *CommandPipeline) RequestDelete(id string) error {
	if p.closed.Load() {
		return errors.ErrPipelineClosed
	}
	prev, ok := p.store.Get(id)
	if !ok {
		return fmt.Errorf("delete %s: %w", id, errors.ErrMessageNotFound)
	}
	if err := p.eligible(prev); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	p.mu.Lock()
	p.pendingDeletes[id] = prev
	p.mu.Unlock()
	return nil
}

// HasPendingDelete reports whether the id awaits delete confirmation.
func (p *CommandPipeline) HasPendingDelete(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pendingDeletes[id]
	return ok
}

// CancelDelete clears the pending-confirmation state. No store
// mutation occurred, so there is nothing to roll back.
func (p *CommandPipeline) CancelDelete(id string) {
	p.mu.Lock()
	delete(p.pendingDeletes, id)
	p.mu.Unlock()
}

// ConfirmDelete removes the record optimistically and issues the
// remote delete. On failure the retained pre-delete snapshot is
// re-upserted and the failure surfaced.
func (p *CommandPipeline) ConfirmDelete(ctx context.Context, id string) error {
	if p.closed.Load() {
		return errors.ErrPipelineClosed
	}
	p.mu.Lock()
	prev, ok := p.pendingDeletes[id]
	delete(p.pendingDeletes, id)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("confirm delete %s: %w", id, errors.ErrNoPendingDelete)
	}

	p.store.Remove(id)

	err := p.remote.DeleteMessage(ctx, id)
	if p.closed.Load() {
		return errors.ErrPipelineClosed
	}
	if err != nil {
		p.store.Upsert(prev)
		return fmt.Errorf("deleting message %s: %w", id, err)
	}
	return nil
}

// TogglePin flips the flag optimistically and reconciles with the
// authoritative record. Pin capability checks are the caller's
// concern, not the edit-window rule.
func (p *CommandPipeline) TogglePin(ctx context.Context, id string) error {
	if p.closed.Load() {
		return errors.ErrPipelineClosed
	}
	prev, ok := p.store.Get(id)
	if !ok {
		return fmt.Errorf("pin %s: %w", id, errors.ErrMessageNotFound)
	}

	optimistic := prev
	optimistic.Pinned = !prev.Pinned
	p.store.Upsert(optimistic)

	confirmed, err := p.remote.TogglePin(ctx, id)
	if p.closed.Load() {
		return errors.ErrPipelineClosed
	}
	if err != nil {
		p.store.Upsert(prev)
		return fmt.Errorf("toggling pin on %s: %w", id, err)
	}
	confirmed.DeliveryState = domain.DeliveryConfirmed
	p.store.Upsert(confirmed)
	return nil
}

// Close tears the pipeline down. In-flight command callbacks arriving
// afterwards are ignored and never mutate the store.
func (p *CommandPipeline) Close() {
	p.closed.Store(true)
}

func (p *CommandPipeline) eligible(m domain.Message) error {
	if m.SenderID != p.actorID {
		return errors.ErrNotMessageOwner
	}
	if !p.policy.CanModify(m, p.actorID, p.now()) {
		return errors.ErrEditWindowClosed
	}
	return nil
}
