package presence

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"convo-sync/contract"
	"convo-sync/domain"
	"convo-sync/domain/event"
)

type recordingTransport struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingTransport) Join(_ context.Context, _ domain.GroupID) (<-chan contract.Envelope, error) {
	return nil, nil
}

func (r *recordingTransport) Leave(_ domain.GroupID) error { return nil }

func (r *recordingTransport) Emit(_ context.Context, _ domain.GroupID, name string, _ []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	return nil
}

func (r *recordingTransport) emitted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.names...)
}

func TestSignaler_Debounces_Typing_Signals(t *testing.T) {
	req := require.New(t)
	fake := &recordingTransport{}
	signaler := NewSignaler(slog.Default(), fake, "g1", "self", "Me", 2*time.Second, time.Hour)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := start
	signaler.now = func() time.Time { return now }
	ctx := context.Background()

	// Three keystrokes within the debounce interval
	signaler.OnInput(ctx)
	now = start.Add(500 * time.Millisecond)
	signaler.OnInput(ctx)
	now = start.Add(time.Second)
	signaler.OnInput(ctx)

	// Then only one typing-started went out
	req.Equal([]string{event.TypingStartedName}, fake.emitted())

	// And one more after the interval elapsed
	now = start.Add(3 * time.Second)
	signaler.OnInput(ctx)
	req.Equal([]string{event.TypingStartedName, event.TypingStartedName}, fake.emitted())
}

func TestSignaler_Stop_On_Send(t *testing.T) {
	req := require.New(t)
	fake := &recordingTransport{}
	signaler := NewSignaler(slog.Default(), fake, "g1", "self", "Me", time.Second, time.Hour)
	ctx := context.Background()

	signaler.OnInput(ctx)
	signaler.Stop(ctx)

	req.Equal([]string{event.TypingStartedName, event.TypingStoppedName}, fake.emitted())

	// A second stop has nothing left to signal
	signaler.Stop(ctx)
	req.Len(fake.emitted(), 2)
}

func TestSignaler_Stops_After_Idle_Interval(t *testing.T) {
	req := require.New(t)
	fake := &recordingTransport{}
	signaler := NewSignaler(slog.Default(), fake, "g1", "self", "Me", time.Millisecond, 20*time.Millisecond)
	ctx := context.Background()

	signaler.OnInput(ctx)

	req.Eventually(func() bool {
		names := fake.emitted()
		return len(names) == 2 && names[1] == event.TypingStoppedName
	}, time.Second, 5*time.Millisecond)
}

func TestSignaler_Close_Stops_Outstanding_Signal(t *testing.T) {
	req := require.New(t)
	fake := &recordingTransport{}
	signaler := NewSignaler(slog.Default(), fake, "g1", "self", "Me", time.Second, time.Hour)
	ctx := context.Background()

	signaler.OnInput(ctx)
	signaler.Close()

	req.Equal([]string{event.TypingStartedName, event.TypingStoppedName}, fake.emitted())

	// Input after teardown is ignored
	signaler.OnInput(ctx)
	req.Len(fake.emitted(), 2)
}
