package projection

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"convo-sync/domain"
)

func message(id string, at time.Time) domain.Message {
	return domain.Message{
		ID:            id,
		GroupID:       "g1",
		SenderID:      uuid.NewString(),
		Content:       "hello",
		CreatedAt:     at,
		DeliveryState: domain.DeliveryConfirmed,
	}
}

func ids(messages []domain.Message) []string {
	return lo.Map(messages, func(m domain.Message, _ int) string { return m.ID })
}

func TestMessageStore_Upsert_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	store := NewMessageStore()
	m := message("A", time.Now().UTC())

	// When the same record is applied twice
	store.Upsert(m)
	once := store.Snapshot()
	store.Upsert(m)

	// Then the store state is identical to applying it once
	req.Equal(once, store.Snapshot())
	req.Equal(1, store.Len())
}

func TestMessageStore_Upsert_Replaces_Whole_Record(t *testing.T) {
	req := require.New(t)
	store := NewMessageStore()
	at := time.Now().UTC()
	store.Upsert(message("A", at))

	edited := message("A", at)
	edited.Content = "edited"
	edited.EditedAt = lo.ToPtr(at.Add(time.Minute))
	store.Upsert(edited)

	req.Equal(1, store.Len())
	got, ok := store.Get("A")
	req.True(ok)
	req.Equal("edited", got.Content)
}

func TestMessageStore_Ordering_Ties_Broken_By_Arrival(t *testing.T) {
	req := require.New(t)
	store := NewMessageStore()
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC)

	// Given arrival order A(t1), B(t2), C(t1)
	store.Upsert(message("A", t1))
	store.Upsert(message("B", t2))
	store.Upsert(message("C", t1))

	// Then snapshot is timestamp-ascending, ties by arrival order
	req.Equal([]string{"A", "C", "B"}, ids(store.Snapshot()))
}

func TestMessageStore_Remove_Missing_Is_NoOp(t *testing.T) {
	req := require.New(t)
	store := NewMessageStore()
	store.Upsert(message("A", time.Now().UTC()))

	store.Remove("never-seen")

	req.Equal(1, store.Len())
}

func TestMessageStore_Remove_Then_Upsert_ReAdds(t *testing.T) {
	req := require.New(t)
	store := NewMessageStore()
	m := message("A", time.Now().UTC())

	// Given a delete observed before the create (out-of-order delivery)
	store.Remove("A")
	store.Upsert(m)

	// Then last-applied wins and the record is visible
	req.Equal([]string{"A"}, ids(store.Snapshot()))

	// And a remove arriving after the upsert removes it
	store.Remove("A")
	req.Zero(store.Len())
}

func TestMessageStore_ReplaceProvisional_Collapses_To_One_Record(t *testing.T) {
	req := require.New(t)
	store := NewMessageStore()
	sentAt := time.Now().UTC()
	provisional := message("tmp-1", sentAt)
	provisional.DeliveryState = domain.DeliveryPending
	store.Upsert(provisional)

	final := message("F", sentAt.Add(50*time.Millisecond))

	// When the push event beat the command response
	store.Upsert(final)
	store.ReplaceProvisional("tmp-1", final)

	// Then exactly one record with the final id survives
	req.Equal([]string{"F"}, ids(store.Snapshot()))

	// And the other arrival order collapses identically
	store2 := NewMessageStore()
	store2.Upsert(provisional)
	store2.ReplaceProvisional("tmp-1", final)
	store2.Upsert(final)
	req.Equal([]string{"F"}, ids(store2.Snapshot()))
}

func TestMessageStore_Upsert_With_New_Timestamp_ReRanks(t *testing.T) {
	req := require.New(t)
	store := NewMessageStore()
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.Upsert(message("A", t1))
	store.Upsert(message("B", t1.Add(time.Minute)))

	// When A's provisional local timestamp is replaced by a later
	// server-assigned one
	late := message("A", t1.Add(2*time.Minute))
	store.Upsert(late)

	req.Equal([]string{"B", "A"}, ids(store.Snapshot()))
	got, ok := store.Get("A")
	req.True(ok)
	req.Equal(late.CreatedAt, got.CreatedAt)
}
