// Package projection builds the local view of a conversation from
// observed events and command results. Handles ordering and
// deduplication; does not emit events or interact with UI directly.
package projection

import (
	"sort"
	"sync"

	"convo-sync/domain"
)

// MessageStore is the ordered, deduplicated collection of message
// records for one conversation: the single source of truth a view
// renders from. Ordering is by CreatedAt ascending, ties broken by
// arrival order (stable). ID is the sole deduplication key.
//
// Every operation is defined as idempotent or no-op-safe because the
// event stream and command responses race: "not found" is an expected
// condition, not a fault. None of these operations fail.
type MessageStore struct {
	mu       sync.RWMutex
	messages []domain.Message
	byID     map[string]int // id -> position in messages
}

func NewMessageStore() *MessageStore {
	return &MessageStore{byID: make(map[string]int)}
}

// Upsert inserts the record if its id is absent, otherwise replaces
// the existing record entirely. Applying the same Upsert twice yields
// the same state as once.
func (s *MessageStore) Upsert(message domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(message)
}

// Remove deletes the record with that id if present; no-op otherwise.
// Deletes can race ahead of creates being observed.
func (s *MessageStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

// ReplaceProvisional atomically removes the record at the temporary id
// and upserts the final message. Used to reconcile a locally-sent
// message with its server-confirmed form: at most one visible record
// survives regardless of whether the push event or the command
// response landed first, and no snapshot ever sees both or neither.
func (s *MessageStore) ReplaceProvisional(temporaryID string, final domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(temporaryID)
	s.upsertLocked(final)
}

// Get returns the record with that id, if present.
func (s *MessageStore) Get(id string) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.byID[id]
	if !ok {
		return domain.Message{}, false
	}
	return s.messages[pos], true
}

func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Snapshot returns the current ordered sequence of messages. It never
// mutates state and reflects a consistent point-in-time view: a
// multi-step reconciliation is never visible partially applied.
func (s *MessageStore) Snapshot() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *MessageStore) upsertLocked(message domain.Message) {
	if pos, ok := s.byID[message.ID]; ok {
		moved := !s.messages[pos].CreatedAt.Equal(message.CreatedAt)
		s.messages[pos] = message
		if moved {
			// A changed timestamp re-ranks the record; stable sort
			// keeps arrival order among equal timestamps.
			sort.SliceStable(s.messages, func(i, j int) bool {
				return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
			})
			s.reindexLocked()
		}
		return
	}

	// New arrival goes after every record with an equal or earlier
	// timestamp, which is exactly the arrival-order tie-break.
	at := sort.Search(len(s.messages), func(i int) bool {
		return s.messages[i].CreatedAt.After(message.CreatedAt)
	})
	s.messages = append(s.messages, domain.Message{})
	copy(s.messages[at+1:], s.messages[at:])
	s.messages[at] = message
	s.reindexFromLocked(at)
}

func (s *MessageStore) removeLocked(id string) {
	pos, ok := s.byID[id]
	if !ok {
		return
	}
	s.messages = append(s.messages[:pos], s.messages[pos+1:]...)
	delete(s.byID, id)
	s.reindexFromLocked(pos)
}

func (s *MessageStore) reindexLocked() {
	s.reindexFromLocked(0)
}

func (s *MessageStore) reindexFromLocked(from int) {
	for i := from; i < len(s.messages); i++ {
		s.byID[s.messages[i].ID] = i
	}
}
