package localservice

import (
	"context"

	"convo-sync/contract"
	"convo-sync/domain"
)

// AsParticipant returns a RemoteService view that attaches the acting
// participant to every call. It stands in for the session layer that a
// real deployment resolves identity with.
func AsParticipant(svc contract.RemoteService, participantID, displayName string) contract.RemoteService {
	return boundService{inner: svc, id: participantID, name: displayName}
}

type boundService struct {
	inner contract.RemoteService
	id    string
	name  string
}

func (b boundService) bind(ctx context.Context) context.Context {
	return WithSender(ctx, b.id, b.name)
}

func (b boundService) FetchPage(ctx context.Context, group domain.GroupID, page domain.PageRequest) ([]domain.Message, error) {
	return b.inner.FetchPage(b.bind(ctx), group, page)
}

func (b boundService) SendMessage(ctx context.Context, group domain.GroupID, groupType, content string,
	attachments []domain.Attachment) (domain.Message, error) {
	return b.inner.SendMessage(b.bind(ctx), group, groupType, content, attachments)
}

func (b boundService) EditMessage(ctx context.Context, id, content string) (domain.Message, error) {
	return b.inner.EditMessage(b.bind(ctx), id, content)
}

func (b boundService) DeleteMessage(ctx context.Context, id string) error {
	return b.inner.DeleteMessage(b.bind(ctx), id)
}

func (b boundService) TogglePin(ctx context.Context, id string) (domain.Message, error) {
	return b.inner.TogglePin(b.bind(ctx), id)
}
