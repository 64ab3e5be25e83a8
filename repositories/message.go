//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"convo-sync/domain"
	"convo-sync/errors"
)

type IMessageRepository interface {
	Store(message domain.Message) error
	Get(id string) (domain.Message, error)
	Delete(id string) error
	Page(group domain.GroupID, limit, offset int) ([]domain.Message, error)
}

// MessageRepository persists conversation history in BadgerDB.
//
// Primary keys are formatted as "msg:{group}:{timestamp_padded}:{id}":
//  1. The 19-digit zero padding makes lexicographical order equal
//     chronological order inside a group prefix.
//  2. The id suffix disambiguates two messages landing on the same
//     nanosecond.
//
// A secondary "idx:msg:{id}" key points at the primary key so edits,
// deletes and pins can address a record by id alone.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

type diskMessage struct {
	ID                string              `json:"id"`
	GroupID           string              `json:"group_id"`
	SenderID          string              `json:"sender_id"`
	SenderDisplayName string              `json:"sender_display_name"`
	Content           string              `json:"content"`
	CreatedAt         time.Time           `json:"created_at"`
	EditedAt          *time.Time          `json:"edited_at,omitempty"`
	Pinned            bool                `json:"pinned"`
	Attachments       []domain.Attachment `json:"attachments,omitempty"`
}

func primaryKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.GroupID, m.CreatedAt.UnixNano(), m.ID))
}

func indexKey(id string) []byte {
	return []byte(fmt.Sprintf("idx:msg:%s", id))
}

// Store writes or overwrites the whole record. CreatedAt is immutable,
// so the primary key of an existing record never moves.
func (r *MessageRepository) Store(message domain.Message) error {
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	key := primaryKey(message)
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set(indexKey(message.ID), key)
	})
}

func (r *MessageRepository) Get(id string) (domain.Message, error) {
	var message domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		primary, err := resolve(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(primary)
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			message, err = unmarshalMessage(value)
			return err
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Message{}, fmt.Errorf("message %s: %w", id, errors.ErrMessageNotFound)
	}
	return message, err
}

// Delete removes the record and its index entry; missing ids are a
// no-op because deletes race with the event stream.
func (r *MessageRepository) Delete(id string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		primary, err := resolve(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(primary); err != nil {
			return err
		}
		return txn.Delete(indexKey(id))
	})
	if err == badger.ErrKeyNotFound {
		return nil
	}
	return err
}

// Page returns one page of a group's history, newest page first but
// ascending inside the page. Offset counts records back from the
// newest one.
func (r *MessageRepository) Page(group domain.GroupID, limit, offset int) ([]domain.Message, error) {
	var raw [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", group))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key of the prefix, then walk
		// backwards through the group's history.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		skipped := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if limit > 0 && len(raw) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reverse scan collected newest-first; the view wants ascending.
	messages := make([]domain.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		message, err := unmarshalMessage(raw[i])
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func resolve(txn *badger.Txn, id string) ([]byte, error) {
	item, err := txn.Get(indexKey(id))
	if err != nil {
		return nil, err
	}
	var primary []byte
	err = item.Value(func(value []byte) error {
		primary = append([]byte{}, value...)
		return nil
	})
	return primary, err
}

func unmarshalMessage(value []byte) (domain.Message, error) {
	var dm diskMessage
	if err := json.Unmarshal(value, &dm); err != nil {
		return domain.Message{}, err
	}
	return toMessage(dm), nil
}

func fromMessage(m domain.Message) diskMessage {
	return diskMessage{
		ID:                m.ID,
		GroupID:           string(m.GroupID),
		SenderID:          m.SenderID,
		SenderDisplayName: m.SenderDisplayName,
		Content:           m.Content,
		CreatedAt:         m.CreatedAt,
		EditedAt:          m.EditedAt,
		Pinned:            m.Pinned,
		Attachments:       m.Attachments,
	}
}

func toMessage(dm diskMessage) domain.Message {
	return domain.Message{
		ID:                dm.ID,
		GroupID:           domain.GroupID(dm.GroupID),
		SenderID:          dm.SenderID,
		SenderDisplayName: dm.SenderDisplayName,
		Content:           dm.Content,
		CreatedAt:         dm.CreatedAt,
		EditedAt:          dm.EditedAt,
		Pinned:            dm.Pinned,
		Attachments:       dm.Attachments,
		DeliveryState:     domain.DeliveryConfirmed,
	}
}
