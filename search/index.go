// Package search maintains the full-text index behind the searchTerm
// parameter of history page fetches.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"

	"convo-sync/domain"
)

// Index wraps a Bluge writer holding one document per message.
// Content is the only analyzed field; the group lives in a keyword
// field so a search never leaks across conversations.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func Open(path string, log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("opening search index: %w", err)
	}
	return &Index{writer: writer, log: log}, nil
}

// Upsert indexes the message, replacing any previous document with the
// same id. Edits re-index the whole record.
func (i *Index) Upsert(message domain.Message) error {
	doc := bluge.NewDocument(message.ID)
	doc.AddField(bluge.NewTextField("content", message.Content).StoreValue())
	doc.AddField(bluge.NewKeywordField("group", string(message.GroupID)))
	return i.writer.Update(doc.ID(), doc)
}

func (i *Index) Delete(id string) error {
	return i.writer.Delete(bluge.NewDocument(id).ID())
}

// Search returns the ids of the group's messages matching the term.
func (i *Index) Search(ctx context.Context, group domain.GroupID, term string, limit int) ([]string, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("opening index reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Closing index reader failed", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(term).SetField("content")).
		AddMust(bluge.NewTermQuery(string(group)).SetField("group"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	var ids []string
	match, err := iterator.Next()
	for err == nil && match != nil {
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				ids = append(ids, string(value))
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (i *Index) Close() error {
	return i.writer.Close()
}
