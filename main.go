package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"boltalka/internal/cache"
	"boltalka/internal/client"
	"boltalka/internal/config"
	"boltalka/internal/models"
	"boltalka/internal/supabase"
)

func run(ctx context.Context) error {
	noCache := flag.Bool("no-cache", false, "Disable the local snapshot cache")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var snap *cache.Snapshot
	if !*noCache {
		snap, err = cache.Open(cfg.CacheFile)
		if err != nil {
			return err
		}
		defer func() { _ = snap.Close() }()
	}

	var tokens supabase.TokenStore
	if snap != nil {
		tokens = snap
	}

	platformClient, err := supabase.New(supabase.Config{
		BaseURL: cfg.PlatformURL,
		AnonKey: cfg.AnonKey,
		Tokens:  tokens,
	})
	if err != nil {
		return err
	}

	engine := client.New(client.Config{
		Auth:     platformClient,
		Database: platformClient,
		Realtime: platformClient,
		Files:    platformClient,
		Snapshot: snap,
	})
	defer engine.Close(context.Background())

	restored, err := engine.Start(ctx)
	if err != nil {
		return err
	}
	if restored {
		if user, ok := engine.CurrentUser(); ok {
			fmt.Printf("Welcome back, %s\n", displayName(user))
		}
	} else {
		fmt.Println("No session. Use /signup <email> <password> <name> or /login <email> <password>.")
	}

	g, gCtx := errgroup.WithContext(ctx)

	lines := make(chan string)
	g.Go(func() error {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-gCtx.Done():
				return nil
			}
		}
		return scanner.Err()
	})

	g.Go(func() error {
		ui := &terminal{engine: engine}
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if err := ui.handle(gCtx, line); err != nil {
					if errors.Is(err, errQuit) {
						return nil
					}
					fmt.Println("!", err)
				}
			case <-ticker.C:
				ui.printNewMessages()
			case <-gCtx.Done():
				return nil
			}
		}
	})

	return g.Wait()
}

var errQuit = errors.New("quit")

type terminal struct {
	engine  *client.Client
	printed int
}

func (t *terminal) handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if !strings.HasPrefix(line, "/") {
		_, err := t.engine.SendMessage(ctx, line)
		if err == nil {
			t.printNewMessages()
		}
		return err
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/signup":
		if len(args) < 3 {
			return errors.New("usage: /signup <email> <password> <display name>")
		}
		user, err := t.engine.SignUp(ctx, args[0], args[1], strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("Account created for %s\n", displayName(user))

	case "/login":
		if len(args) != 2 {
			return errors.New("usage: /login <email> <password>")
		}
		user, err := t.engine.SignIn(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s\n", displayName(user))

	case "/logout":
		return t.engine.SignOut(ctx)

	case "/rooms":
		for _, room := range t.engine.Rooms() {
			marker := " "
			if active, ok := t.engine.ActiveRoom(); ok && active.ID == room.ID {
				marker = "*"
			}
			fmt.Printf("%s %s  %s  %s\n", marker, room.ID, roomLabel(room, t.engine), room.LastMessage)
		}

	case "/open":
		if len(args) != 1 {
			return errors.New("usage: /open <room id>")
		}
		if err := t.engine.SetActiveRoom(ctx, args[0]); err != nil {
			return err
		}
		t.printed = 0
		t.printNewMessages()

	case "/users":
		for _, user := range t.engine.Users() {
			fmt.Printf("%s  %s (%s)\n", user.ID, displayName(user), user.Status)
		}

	case "/create":
		if len(args) < 2 {
			return errors.New("usage: /create <name> <user id>...")
		}
		id, err := t.engine.CreateRoom(ctx, args[0], args[1:], false)
		if err != nil {
			return err
		}
		fmt.Println("Created room", id)

	case "/dm":
		if len(args) != 1 {
			return errors.New("usage: /dm <user id>")
		}
		id, err := t.engine.CreateRoom(ctx, "", args[0:1], true)
		if err != nil {
			return err
		}
		fmt.Println("Conversation started:", id)

	case "/away":
		return t.engine.SetVisible(ctx, false)

	case "/back":
		return t.engine.SetVisible(ctx, true)

	case "/quit":
		return errQuit

	default:
		return fmt.Errorf("unknown command %s", cmd)
	}

	return nil
}

// printNewMessages prints messages appended since the last call, whatever
// their source: own sends, fetches, or the live feed.
func (t *terminal) printNewMessages() {
	msgs := t.engine.Messages()
	if t.printed > len(msgs) {
		t.printed = 0
	}
	users := t.engine.Users()

	for _, msg := range msgs[t.printed:] {
		author := msg.UserID
		if user, ok := users[msg.UserID]; ok {
			author = displayName(user)
		}
		fmt.Printf("[%s] %s: %s (read by %d)\n",
			msg.CreatedAt.Local().Format("15:04"), author, msg.Content, len(msg.ReadBy))
	}
	t.printed = len(msgs)
}

func displayName(user models.User) string {
	if user.DisplayName != "" {
		return user.DisplayName
	}
	return user.Email
}

func roomLabel(room models.Room, engine *client.Client) string {
	if !room.IsDirect {
		return room.Name
	}
	me, _ := engine.CurrentUser()
	users := engine.Users()
	for _, id := range room.Participants {
		if id != me.ID {
			if user, ok := users[id]; ok {
				return "@" + displayName(user)
			}
			return "@" + id
		}
	}
	return room.Name
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
