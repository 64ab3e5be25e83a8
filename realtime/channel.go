// Package realtime manages the subscription lifecycle of a
// conversation and routes inbound named events to the caller's
// handlers. It performs no business interpretation: every message
// event carries the full record and is forwarded as-is.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"convo-sync/contract"
	"convo-sync/domain"
	"convo-sync/domain/event"
	"convo-sync/errors"
)

const defaultRejoinDelay = 500 * time.Millisecond

// Handlers receives the routed events of one subscription.
// Nil callbacks are skipped. Resubscribed fires after the transport
// stream was lost and joined again: the caller is expected to re-fetch
// a page to heal whatever was missed, this core does not replay.
type Handlers struct {
	MessageCreated func(m domain.Message)
	MessageUpdated func(m domain.Message)
	MessageDeleted func(id string)
	MessagePinned  func(m domain.Message)
	TypingStarted  func(participantID, displayName string)
	TypingStopped  func(participantID string)
	Resubscribed   func()
}

// Channel owns at most one active subscription per group.
// Re-subscribing before disposing the previous handle is a caller
// error and is rejected.
type Channel struct {
	log         *slog.Logger
	transport   contract.Transport
	rejoinDelay time.Duration

	mu     sync.Mutex
	active map[domain.GroupID]*Subscription
}

func NewChannel(log *slog.Logger, transport contract.Transport) *Channel {
	return &Channel{
		log:         log,
		transport:   transport,
		rejoinDelay: defaultRejoinDelay,
		active:      make(map[domain.GroupID]*Subscription),
	}
}

// Subscribe joins the conversation's event group and starts routing
// its events to the handlers. The returned handle must be disposed to
// leave the group and detach everything.
func (c *Channel) Subscribe(ctx context.Context, group domain.GroupID, handlers Handlers) (*Subscription, error) {
	c.mu.Lock()
	if _, ok := c.active[group]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", errors.ErrAlreadySubscribed, group)
	}
	c.mu.Unlock()

	stream, err := c.transport.Join(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("joining group %s: %w", group, err)
	}

	// Subscription lifetime is owned by Dispose, not by the caller's
	// subscribe context.
	subCtx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		log:         c.log,
		transport:   c.transport,
		group:       group,
		handlers:    handlers,
		ctx:         subCtx,
		cancel:      cancel,
		rejoinDelay: c.rejoinDelay,
		onDispose: func() {
			c.mu.Lock()
			delete(c.active, group)
			c.mu.Unlock()
		},
	}

	c.mu.Lock()
	if _, ok := c.active[group]; ok {
		c.mu.Unlock()
		cancel()
		_ = c.transport.Leave(group)
		return nil, fmt.Errorf("%w: %s", errors.ErrAlreadySubscribed, group)
	}
	c.active[group] = sub
	c.mu.Unlock()

	go sub.consume(stream)
	return sub, nil
}

// Subscription is the handle for one joined group. Exclusively owned
// by the view instance that created it.
type Subscription struct {
	log         *slog.Logger
	transport   contract.Transport
	group       domain.GroupID
	handlers    Handlers
	ctx         context.Context
	cancel      context.CancelFunc
	rejoinDelay time.Duration
	onDispose   func()

	disposeOnce sync.Once
	disposed    atomic.Bool
}

// Dispose leaves the group and detaches all handlers. Idempotent and
// order-independent: events still in flight afterwards are silently
// dropped.
func (s *Subscription) Dispose() {
	s.disposeOnce.Do(func() {
		s.disposed.Store(true)
		s.cancel()
		if err := s.transport.Leave(s.group); err != nil {
			s.log.Warn("Leaving group failed", "group", s.group, "error", err)
		}
		if s.onDispose != nil {
			s.onDispose()
		}
	})
}

func (s *Subscription) Disposed() bool {
	return s.disposed.Load()
}

func (s *Subscription) consume(stream <-chan contract.Envelope) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case env, ok := <-stream:
			if !ok {
				// Stream lost: the transport already reconnected or
				// will; our part is to join the group again.
				next := s.rejoin()
				if next == nil {
					return
				}
				stream = next
				continue
			}
			if s.disposed.Load() {
				return
			}
			s.route(env)
		}
	}
}

// rejoin keeps trying to join the group until it succeeds or the
// subscription is disposed. Missed events are not replayed; the
// Resubscribed handler is the caller's cue to re-fetch a page.
func (s *Subscription) rejoin() <-chan contract.Envelope {
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-time.After(s.rejoinDelay):
		}
		stream, err := s.transport.Join(s.ctx, s.group)
		if err != nil {
			s.log.Warn("Rejoining group failed", "group", s.group, "error", err)
			continue
		}
		s.log.Info("Resubscribed to group", "group", s.group)
		if s.handlers.Resubscribed != nil {
			s.handlers.Resubscribed()
		}
		return stream
	}
}

func (s *Subscription) route(env contract.Envelope) {
	if env.Group != s.group {
		return
	}
	evt, err := event.Decode(env.Name, env.Payload)
	if err != nil {
		// Malformed payloads are logged and dropped, never fatal.
		s.log.Warn("Dropping malformed event", "name", env.Name, "group", env.Group, "error", err)
		return
	}
	switch e := evt.(type) {
	case event.MessageCreated:
		if s.handlers.MessageCreated != nil {
			s.handlers.MessageCreated(e.Message)
		}
	case event.MessageUpdated:
		if s.handlers.MessageUpdated != nil {
			s.handlers.MessageUpdated(e.Message)
		}
	case event.MessageDeleted:
		if s.handlers.MessageDeleted != nil {
			s.handlers.MessageDeleted(e.ID)
		}
	case event.MessagePinned:
		if s.handlers.MessagePinned != nil {
			s.handlers.MessagePinned(e.Message)
		}
	case event.TypingStarted:
		if s.handlers.TypingStarted != nil {
			s.handlers.TypingStarted(e.ParticipantID, e.DisplayName)
		}
	case event.TypingStopped:
		if s.handlers.TypingStopped != nil {
			s.handlers.TypingStopped(e.ParticipantID)
		}
	}
}
