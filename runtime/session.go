// Package runtime ties a conversation view together: store, realtime
// subscription, command pipeline and presence, owned as one unit with
// a deterministic teardown.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"convo-sync/contract"
	"convo-sync/domain"
	"convo-sync/pipeline"
	"convo-sync/presence"
	"convo-sync/projection"
	"convo-sync/realtime"
)

type SessionConfig struct {
	Group          domain.GroupID
	GroupType      string
	ActorID        string
	ActorName      string
	PageSize       int
	EditWindow     time.Duration
	TypingLiveness time.Duration
	TypingDebounce time.Duration
	TypingIdle     time.Duration
}

// Session is the per-conversation owner of the synchronization core.
// One Session per open view; switching conversations means disposing
// this one and creating another.
type Session struct {
	log      *slog.Logger
	cfg      SessionConfig
	remote   contract.RemoteService
	store    *projection.MessageStore
	channel  *realtime.Channel
	pipeline *pipeline.CommandPipeline
	typists  *presence.Aggregator
	signaler *presence.Signaler

	sub         *realtime.Subscription
	disposeOnce sync.Once
}

func NewSession(log *slog.Logger, cfg SessionConfig,
	remote contract.RemoteService, transport contract.Transport) *Session {
	store := projection.NewMessageStore()
	policy := domain.NewEditWindowPolicy(cfg.EditWindow)
	return &Session{
		log:      log,
		cfg:      cfg,
		remote:   remote,
		store:    store,
		channel:  realtime.NewChannel(log, transport),
		pipeline: pipeline.NewCommandPipeline(log, remote, store, policy, cfg.Group, cfg.GroupType, cfg.ActorID, cfg.ActorName),
		typists:  presence.NewAggregator(log, cfg.ActorID, cfg.TypingLiveness),
		signaler: presence.NewSignaler(log, transport, cfg.Group, cfg.ActorID, cfg.ActorName, cfg.TypingDebounce, cfg.TypingIdle),
	}
}

// Start subscribes to the group and loads the initial history page.
// Subscribing first and fetching second leaves no event gap: whatever
// both paths deliver collapses through the store's idempotent upserts.
func (s *Session) Start(ctx context.Context) error {
	sub, err := s.channel.Subscribe(ctx, s.cfg.Group, realtime.Handlers{
		MessageCreated: s.store.Upsert,
		MessageUpdated: s.store.Upsert,
		MessagePinned:  s.store.Upsert,
		MessageDeleted: s.store.Remove,
		TypingStarted:  s.typists.OnTypingSignal,
		TypingStopped:  s.typists.OnStopSignal,
		Resubscribed: func() {
			// Events missed while disconnected are healed by a fresh
			// page, not replayed.
			if err := s.Resync(context.Background()); err != nil {
				s.log.Warn("Resync after resubscribe failed", "group", s.cfg.Group, "error", err)
			}
		},
	})
	if err != nil {
		return err
	}
	s.sub = sub

	if err := s.Resync(ctx); err != nil {
		sub.Dispose()
		return err
	}
	return nil
}

// Resync fetches the newest page and upserts it into the store.
func (s *Session) Resync(ctx context.Context) error {
	messages, err := s.remote.FetchPage(ctx, s.cfg.Group, domain.PageRequest{Limit: s.cfg.PageSize})
	if err != nil {
		return fmt.Errorf("fetching page for %s: %w", s.cfg.Group, err)
	}
	for _, m := range messages {
		s.store.Upsert(m)
	}
	return nil
}

// Send commits the composed input: the typing signal stops first,
// then the message goes through the optimistic pipeline.
func (s *Session) Send(ctx context.Context, content string, attachments []domain.Attachment) (domain.Message, error) {
	s.signaler.Stop(ctx)
	return s.pipeline.Send(ctx, content, attachments)
}

func (s *Session) Retry(ctx context.Context, temporaryID string) (domain.Message, error) {
	return s.pipeline.Retry(ctx, temporaryID)
}

func (s *Session) Edit(ctx context.Context, id, content string) error {
	return s.pipeline.Edit(ctx, id, content)
}

func (s *Session) RequestDelete(id string) error {
	return s.pipeline.RequestDelete(id)
}

func (s *Session) ConfirmDelete(ctx context.Context, id string) error {
	return s.pipeline.ConfirmDelete(ctx, id)
}

func (s *Session) CancelDelete(id string) {
	s.pipeline.CancelDelete(id)
}

func (s *Session) HasPendingDelete(id string) bool {
	return s.pipeline.HasPendingDelete(id)
}

func (s *Session) TogglePin(ctx context.Context, id string) error {
	return s.pipeline.TogglePin(ctx, id)
}

// OnInput reports one keystroke of uncommitted input.
func (s *Session) OnInput(ctx context.Context) {
	s.signaler.OnInput(ctx)
}

// Snapshot returns the ordered view of the conversation.
func (s *Session) Snapshot() []domain.Message {
	return s.store.Snapshot()
}

// ActiveTypists returns the display names of remote participants
// currently composing.
func (s *Session) ActiveTypists() []string {
	return s.typists.ActiveTypists()
}

// PresenceSweeper exposes the expiry worker for supervision.
func (s *Session) PresenceSweeper() contract.Worker {
	return s.typists
}

// Dispose leaves the group, stops all timers and detaches everything.
// Idempotent; command callbacks landing afterwards are ignored.
func (s *Session) Dispose() {
	s.disposeOnce.Do(func() {
		if s.sub != nil {
			s.sub.Dispose()
		}
		s.pipeline.Close()
		s.signaler.Close()
		s.log.Debug("Session disposed", "group", s.cfg.Group)
	})
}
