package domain

import "time"

const DefaultEditWindow = 15 * time.Minute

// EditWindowPolicy decides whether a participant may still edit or
// delete a message. Pure time arithmetic: the result changes as a
// function of elapsed time, so callers must re-evaluate at action
// time instead of caching it.
type EditWindowPolicy struct {
	Window time.Duration
}

func NewEditWindowPolicy(window time.Duration) EditWindowPolicy {
	if window <= 0 {
		window = DefaultEditWindow
	}
	return EditWindowPolicy{Window: window}
}

// CanModify is true iff the acting participant authored the message
// and the edit window has not elapsed. The boundary is inclusive.
// Pinning is governed by a separate capability check, not by this rule.
func (p EditWindowPolicy) CanModify(m Message, actingParticipantID string, now time.Time) bool {
	if m.SenderID != actingParticipantID {
		return false
	}
	return now.Sub(m.CreatedAt) <= p.Window
}
