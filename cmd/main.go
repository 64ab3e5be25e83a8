package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"convo-sync/contract"
	"convo-sync/domain"
	"convo-sync/internal"
	"convo-sync/localservice"
	"convo-sync/moderation"
	"convo-sync/repositories"
	"convo-sync/runtime"
	"convo-sync/runtime/workers"
	"convo-sync/search"
	"convo-sync/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, drives the interactive loop and
// centralizes error reporting so deferred cleanups always execute.
func run() error {
	displayName := flag.String("name", "anonymous", "display name of the participant")
	group := flag.String("group", "lobby", "conversation group to open")
	flag.Parse()

	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.Open(config.BlugeFilepath, log)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		_ = index.Close()
	}()

	// 3. Service & transport
	var moderator *moderation.Moderator
	if words := config.Words(); len(words) > 0 {
		char, err := internal.CharacterRune(config.CharReplacement)
		if err != nil {
			return err
		}
		m, err := moderation.NewModerator(words, char)
		if err != nil {
			return fmt.Errorf("building moderator: %w", err)
		}
		moderator = &m
	}

	broker := transport.NewBroker(log, config.BufferSize)
	service := localservice.NewService(log, repositories.NewMessageRepository(db, log), index, moderator, broker)

	actorID := uuid.NewString()
	remote := localservice.AsParticipant(service, actorID, *displayName)

	// 4. Context & signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Session & supervision
	session := runtime.NewSession(log, runtime.SessionConfig{
		Group:          domain.GroupID(*group),
		GroupType:      "channel",
		ActorID:        actorID,
		ActorName:      *displayName,
		PageSize:       config.PageSize,
		EditWindow:     config.EditWindow,
		TypingLiveness: config.TypingLiveness,
		TypingDebounce: config.TypingDebounce,
		TypingIdle:     config.TypingIdle,
	}, remote, broker.Client())
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("session failed to start: %w", err)
	}
	defer session.Dispose()

	sup := workers.NewSupervisor(log)
	sup.Add(session.PresenceSweeper())
	sup.Add(workers.NewHeartbeatWorker(log, config.HeartbeatInterval))
	go sup.Run(ctx)
	defer sup.Stop()

	color.Green.Printf("Joined %s as %s — /help for commands\n", *group, *displayName)
	render(session)

	// 6. Interactive loop
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}
		session.OnInput(ctx)
		if err := handle(ctx, session, remote, domain.GroupID(*group), line); err != nil {
			color.Red.Printf("! %v\n", err)
		}
		render(session)
	}

	log.Info("Program stopped cleanly")
	return nil
}

func handle(ctx context.Context, session *runtime.Session,
	remote contract.RemoteService, group domain.GroupID, line string) error {
	if !strings.HasPrefix(line, "/") {
		_, err := session.Send(ctx, line, nil)
		return err
	}

	parts := strings.SplitN(line, " ", 3)
	switch parts[0] {
	case "/help":
		fmt.Println("/edit <id> <text>, /rm <id>, /yes <id>, /no <id>, /pin <id>, /retry <id>, /attach <path> [caption], /search <term>, /pinned, /media, /quit")
		return nil
	case "/search":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /search <term>")
		}
		term := strings.TrimSpace(strings.TrimPrefix(line, "/search"))
		return showPage(ctx, remote, group, domain.PageRequest{SearchTerm: term})
	case "/pinned":
		return showPage(ctx, remote, group, domain.PageRequest{Filter: domain.FilterPinned})
	case "/media":
		return showPage(ctx, remote, group, domain.PageRequest{Filter: domain.FilterMedia})
	case "/edit":
		if len(parts) < 3 {
			return fmt.Errorf("usage: /edit <id> <text>")
		}
		return session.Edit(ctx, parts[1], parts[2])
	case "/rm":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /rm <id>")
		}
		if err := session.RequestDelete(parts[1]); err != nil {
			return err
		}
		color.Yellow.Printf("Confirm with /yes %s or cancel with /no %s\n", parts[1], parts[1])
		return nil
	case "/yes":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /yes <id>")
		}
		return session.ConfirmDelete(ctx, parts[1])
	case "/no":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /no <id>")
		}
		session.CancelDelete(parts[1])
		return nil
	case "/pin":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /pin <id>")
		}
		return session.TogglePin(ctx, parts[1])
	case "/retry":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /retry <id>")
		}
		_, err := session.Retry(ctx, parts[1])
		return err
	case "/attach":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /attach <path> [caption]")
		}
		attachment, err := detectAttachment(parts[1])
		if err != nil {
			return err
		}
		caption := ""
		if len(parts) == 3 {
			caption = parts[2]
		}
		_, err = session.Send(ctx, caption, []domain.Attachment{attachment})
		return err
	}
	return fmt.Errorf("unknown command %q", parts[0])
}

// showPage prints a filtered or searched history page without touching
// the live view.
func showPage(ctx context.Context, remote contract.RemoteService, group domain.GroupID, page domain.PageRequest) error {
	messages, err := remote.FetchPage(ctx, group, page)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		color.Yellow.Println("No matching messages")
		return nil
	}
	for _, m := range messages {
		color.Cyan.Printf("%s [%s] ", m.CreatedAt.Local().Format("15:04:05"), shortID(m.ID))
		fmt.Printf("%s: %s\n", m.SenderDisplayName, m.Content)
	}
	return nil
}

// detectAttachment sniffs the file's real MIME type; extensions lie.
func detectAttachment(path string) (domain.Attachment, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("detecting attachment type: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return domain.Attachment{}, err
	}
	return domain.Attachment{Name: info.Name(), MIME: mtype.String(), Size: info.Size()}, nil
}

func render(session *runtime.Session) {
	for _, m := range session.Snapshot() {
		marker := " "
		switch m.DeliveryState {
		case domain.DeliveryPending:
			marker = "…"
		case domain.DeliveryFailed:
			marker = "✗"
		}
		pin := ""
		if m.Pinned {
			pin = " 📌"
		}
		edited := ""
		if m.EditedAt != nil {
			edited = " (edited)"
		}
		color.Cyan.Printf("%s [%s] ", m.CreatedAt.Local().Format("15:04:05"), shortID(m.ID))
		fmt.Printf("%s%s: %s%s%s\n", m.SenderDisplayName, pin, m.Content, edited, marker)
	}
	if typists := session.ActiveTypists(); len(typists) > 0 {
		color.Magenta.Printf("%s typing...\n", strings.Join(typists, ", "))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
