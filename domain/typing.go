package domain

import "time"

// TypingState represents one remote participant currently composing.
// Entries are ephemeral: refreshed by typing signals, removed by stop
// signals or once the liveness window elapses. Never persisted.
type TypingState struct {
	ParticipantID string
	DisplayName   string
	LastSignalAt  time.Time
}

// Stale reports whether the entry outlived the liveness window.
func (t TypingState) Stale(now time.Time, liveness time.Duration) bool {
	return now.Sub(t.LastSignalAt) > liveness
}
