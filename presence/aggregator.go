// Package presence tracks ephemeral typing state per remote
// participant, with automatic liveness expiry, and debounces the
// acting participant's own outbound typing signals.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"convo-sync/domain"
)

const minSweepInterval = 50 * time.Millisecond

// Aggregator keeps the set of remote participants currently composing.
// Entries are refreshed by typing signals and dropped either on an
// explicit stop signal or once the liveness window elapses. Display
// order is insertion order of the first signal, stable across
// refreshes, for a non-jittery display.
type Aggregator struct {
	log      *slog.Logger
	selfID   string
	liveness time.Duration
	now      func() time.Time

	mu      sync.Mutex
	order   []string
	entries map[string]domain.TypingState
}

func NewAggregator(log *slog.Logger, selfID string, liveness time.Duration) *Aggregator {
	return &Aggregator{
		log:      log,
		selfID:   selfID,
		liveness: liveness,
		now:      time.Now,
		entries:  make(map[string]domain.TypingState),
	}
}

// OnTypingSignal upserts or refreshes the participant's entry.
// A refresh never re-orders the display.
func (a *Aggregator) OnTypingSignal(participantID, displayName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.entries[participantID]; !ok {
		a.order = append(a.order, participantID)
	}
	a.entries[participantID] = domain.TypingState{
		ParticipantID: participantID,
		DisplayName:   displayName,
		LastSignalAt:  a.now(),
	}
}

// OnStopSignal removes the entry immediately.
func (a *Aggregator) OnStopSignal(participantID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.evictLocked(participantID)
}

// ActiveTypists returns the display names of live entries, excluding
// the acting participant. Staleness is evaluated at read time, so the
// result is correct even between sweeper ticks.
func (a *Aggregator) ActiveTypists() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	var names []string
	for _, id := range a.order {
		if id == a.selfID {
			continue
		}
		entry := a.entries[id]
		if entry.Stale(now, a.liveness) {
			continue
		}
		names = append(names, entry.DisplayName)
	}
	return names
}

// Run sweeps stale entries so the map doesn't grow with participants
// who went silent without a stop signal.
func (a *Aggregator) Run(ctx context.Context) error {
	interval := a.liveness / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Debug("Stopping presence sweeper")
			return ctx.Err()
		case <-ticker.C:
			a.sweep()
		}
	}
}

func (a *Aggregator) sweep() {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	for id, entry := range a.entries {
		if entry.Stale(now, a.liveness) {
			a.evictLocked(id)
		}
	}
}

func (a *Aggregator) evictLocked(participantID string) {
	if _, ok := a.entries[participantID]; !ok {
		return
	}
	delete(a.entries, participantID)
	for i, id := range a.order {
		if id == participantID {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}
