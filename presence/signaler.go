package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"convo-sync/contract"
	"convo-sync/domain"
	"convo-sync/domain/event"
)

// Signaler emits the acting participant's own typing signals: at most
// one typing-started per debounce interval while input keeps coming,
// and an explicit typing-stopped on send or after the idle interval,
// whichever occurs first.
type Signaler struct {
	log       *slog.Logger
	transport contract.Transport
	group     domain.GroupID
	selfID    string
	selfName  string
	debounce  time.Duration
	idle      time.Duration
	now       func() time.Time

	mu        sync.Mutex
	lastSent  time.Time
	idleTimer *time.Timer
	active    bool
	closed    bool
}

func NewSignaler(log *slog.Logger, transport contract.Transport, group domain.GroupID,
	selfID, selfName string, debounce, idle time.Duration) *Signaler {
	return &Signaler{
		log:       log,
		transport: transport,
		group:     group,
		selfID:    selfID,
		selfName:  selfName,
		debounce:  debounce,
		idle:      idle,
		now:       time.Now,
	}
}

// OnInput is called on every keystroke of uncommitted input. The
// typing-started signal goes out at most once per debounce interval;
// the idle timer is re-armed every time.
func (s *Signaler) OnInput(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	now := s.now()
	if !s.active || now.Sub(s.lastSent) >= s.debounce {
		s.emitLocked(ctx, event.TypingStarted{
			Group:         s.group,
			ParticipantID: s.selfID,
			DisplayName:   s.selfName,
		})
		s.lastSent = now
		s.active = true
	}

	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(s.idle, func() {
		s.Stop(context.Background())
	})
}

// Stop emits the explicit stop signal. Called on send, on idle expiry,
// and on teardown; a stop without prior input is a no-op.
func (s *Signaler) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

// Close deterministically stops the idle timer and signals stop if a
// typing signal is still outstanding.
func (s *Signaler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(context.Background())
	s.closed = true
}

func (s *Signaler) stopLocked(ctx context.Context) {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
	if !s.active {
		return
	}
	s.active = false
	s.emitLocked(ctx, event.TypingStopped{Group: s.group, ParticipantID: s.selfID})
}

// emitLocked publishes best-effort: a lost typing signal heals itself
// on the next debounce tick, so failures are logged, not returned.
func (s *Signaler) emitLocked(ctx context.Context, e event.Event) {
	name, payload, err := event.Encode(e)
	if err != nil {
		s.log.Warn("Encoding typing signal failed", "error", err)
		return
	}
	if err := s.transport.Emit(ctx, s.group, name, payload); err != nil {
		s.log.Warn("Emitting typing signal failed", "name", name, "error", err)
	}
}
