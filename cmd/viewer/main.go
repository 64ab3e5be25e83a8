package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"convo-sync/internal"
)

type diskMessage struct {
	ID                string     `json:"id"`
	GroupID           string     `json:"group_id"`
	SenderDisplayName string     `json:"sender_display_name"`
	Content           string     `json:"content"`
	CreatedAt         time.Time  `json:"created_at"`
	EditedAt          *time.Time `json:"edited_at"`
	Pinned            bool       `json:"pinned"`
}

func main() {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	group := flag.String("group", "", "only show this conversation group")
	flag.Parse()

	// Read-only with BypassLockGuard: works while a client process
	// still holds the lock.
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Group", "ID", "Author", "At", "Pinned", "Content"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	prefix := []byte("msg:")
	if *group != "" {
		prefix = []byte(fmt.Sprintf("msg:%s:", *group))
	}

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var dm diskMessage
				if err := json.Unmarshal(v, &dm); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}
				content := dm.Content
				if dm.EditedAt != nil {
					content += " (edited)"
				}
				pinned := ""
				if dm.Pinned {
					pinned = "yes"
				}
				table.Append([]string{
					dm.GroupID,
					dm.ID[:8],
					dm.SenderDisplayName,
					dm.CreatedAt.Format(time.RFC822),
					pinned,
					content,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}

	table.Render()
}
