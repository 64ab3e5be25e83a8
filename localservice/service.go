// Package localservice is an in-process implementation of the remote
// conversation service capability. It owns authoritative ids and
// timestamps, persists history, keeps the search index current and
// publishes the named events every mutation produces.
package localservice

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"convo-sync/domain"
	"convo-sync/domain/event"
	"convo-sync/moderation"
	"convo-sync/repositories"
	"convo-sync/search"
	"convo-sync/transport"
)

// maxSearchHits bounds how many index hits a single page fetch loads.
const maxSearchHits = 500

type senderKey struct{}

type sender struct {
	id   string
	name string
}

// WithSender attaches the acting participant to the context. Session
// resolution itself is an external concern; commands arriving without
// a sender are rejected.
func WithSender(ctx context.Context, participantID, displayName string) context.Context {
	return context.WithValue(ctx, senderKey{}, sender{id: participantID, name: displayName})
}

func senderFrom(ctx context.Context) (sender, error) {
	s, ok := ctx.Value(senderKey{}).(sender)
	if !ok || s.id == "" {
		return sender{}, fmt.Errorf("no sender attached to context")
	}
	return s, nil
}

type Service struct {
	log       *slog.Logger
	repo      *repositories.MessageRepository
	index     *search.Index
	moderator *moderation.Moderator
	broker    *transport.Broker
	now       func() time.Time
}

func NewService(log *slog.Logger, repo *repositories.MessageRepository,
	index *search.Index, moderator *moderation.Moderator, broker *transport.Broker) *Service {
	return &Service{
		log:       log,
		repo:      repo,
		index:     index,
		moderator: moderator,
		broker:    broker,
		now:       time.Now,
	}
}

func (s *Service) SendMessage(ctx context.Context, group domain.GroupID, groupType, content string,
	attachments []domain.Attachment) (domain.Message, error) {
	from, err := senderFrom(ctx)
	if err != nil {
		return domain.Message{}, err
	}

	sanitized := s.censor(content)
	message := domain.Message{
		ID:                uuid.NewString(),
		GroupID:           group,
		SenderID:          from.id,
		SenderDisplayName: from.name,
		Content:           sanitized,
		CreatedAt:         s.now().UTC(),
		Attachments:       attachments,
		DeliveryState:     domain.DeliveryConfirmed,
	}
	if err := s.persist(message); err != nil {
		return domain.Message{}, err
	}
	s.publish(event.MessageCreated{Group: group, Message: message})
	s.log.Debug("Message stored", "group", group, "group_type", groupType, "id", message.ID)
	return message, nil
}

func (s *Service) EditMessage(ctx context.Context, id, content string) (domain.Message, error) {
	message, err := s.repo.Get(id)
	if err != nil {
		return domain.Message{}, err
	}
	message.Content = s.censor(content)
	editedAt := s.now().UTC()
	message.EditedAt = &editedAt
	if err := s.persist(message); err != nil {
		return domain.Message{}, err
	}
	s.publish(event.MessageUpdated{Group: message.GroupID, Message: message})
	return message, nil
}

func (s *Service) DeleteMessage(ctx context.Context, id string) error {
	message, err := s.repo.Get(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	if err := s.index.Delete(id); err != nil {
		s.log.Warn("Removing message from search index failed", "id", id, "error", err)
	}
	s.publish(event.MessageDeleted{Group: message.GroupID, ID: id})
	return nil
}

func (s *Service) TogglePin(ctx context.Context, id string) (domain.Message, error) {
	message, err := s.repo.Get(id)
	if err != nil {
		return domain.Message{}, err
	}
	message.Pinned = !message.Pinned
	if err := s.persist(message); err != nil {
		return domain.Message{}, err
	}
	s.publish(event.MessagePinned{Group: message.GroupID, Message: message})
	return message, nil
}

func (s *Service) FetchPage(ctx context.Context, group domain.GroupID, page domain.PageRequest) ([]domain.Message, error) {
	if page.SearchTerm == "" && page.Filter == domain.FilterNone {
		return s.repo.Page(group, page.Limit, page.Offset)
	}

	var candidates []domain.Message
	if page.SearchTerm != "" {
		ids, err := s.index.Search(ctx, group, page.SearchTerm, maxSearchHits)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			message, err := s.repo.Get(id)
			if err != nil {
				// The index can lag a racing delete; skip the ghost.
				continue
			}
			candidates = append(candidates, message)
		}
	} else {
		all, err := s.repo.Page(group, 0, 0)
		if err != nil {
			return nil, err
		}
		candidates = all
	}

	filtered := candidates[:0:0]
	for _, m := range candidates {
		switch page.Filter {
		case domain.FilterPinned:
			if !m.Pinned {
				continue
			}
		case domain.FilterMedia:
			if !m.HasMedia() {
				continue
			}
		}
		filtered = append(filtered, m)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})
	return pageTail(filtered, page.Limit, page.Offset), nil
}

// pageTail keeps the newest page of an ascending sequence: offset
// counts records back from the newest one, limit caps the page.
func pageTail(messages []domain.Message, limit, offset int) []domain.Message {
	end := len(messages) - offset
	if end < 0 {
		end = 0
	}
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}
	return messages[start:end]
}

func (s *Service) censor(content string) string {
	if s.moderator == nil {
		return content
	}
	sanitized, censored := s.moderator.Censor(content)
	if censored {
		s.log.Info("Message content censored", "lang", moderation.Language(content))
	}
	return sanitized
}

func (s *Service) persist(message domain.Message) error {
	if err := s.repo.Store(message); err != nil {
		return fmt.Errorf("storing message %s: %w", message.ID, err)
	}
	if err := s.index.Upsert(message); err != nil {
		s.log.Warn("Indexing message failed", "id", message.ID, "error", err)
	}
	return nil
}

func (s *Service) publish(e event.Event) {
	name, payload, err := event.Encode(e)
	if err != nil {
		s.log.Error("Encoding event failed", "error", err)
		return
	}
	s.broker.Publish(e.GroupID(), name, payload)
}
