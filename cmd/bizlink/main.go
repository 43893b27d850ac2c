package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bizlinkmz/bizlink-go/internal/chat"
	"github.com/bizlinkmz/bizlink-go/internal/models"
	"github.com/bizlinkmz/bizlink-go/internal/session"
	"github.com/bizlinkmz/bizlink-go/pkg/config"
	"github.com/bizlinkmz/bizlink-go/pkg/i18n"
)

var __ = i18n.Translate

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "bizlink: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	if len(os.Args) > 1 {
		if err := runCommand(cfg, os.Args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "bizlink: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printUsage(os.Stdout)
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func runCommand(cfg *config.Config, args []string) error {
	command := args[0]

	switch command {
	case "login":
		return runLogin(cfg, args[1:])
	case "feed":
		return runFeed(cfg, "", args[1:])
	case "search":
		if len(args) < 2 {
			return fmt.Errorf("usage: bizlink search <query>")
		}
		return runFeed(cfg, args[1], args[2:])
	case "conversations":
		return runConversations(cfg)
	case "chat":
		return runChat(cfg, args[1:])
	case "like":
		return runLike(cfg, os.Stdout, args[1:])
	case "status":
		return runStatus(cfg, os.Stdout, args[1:])
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(out *os.File) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  bizlink login <username>       Log in and print a token")
	fmt.Fprintln(out, "  bizlink feed [limit]           Show the home feed")
	fmt.Fprintln(out, "  bizlink search <query>         Search the feed")
	fmt.Fprintln(out, "  bizlink conversations          List conversations")
	fmt.Fprintln(out, "  bizlink chat <conversation>    Open a conversation")
	fmt.Fprintln(out, "  bizlink chat start <peer>      Start a conversation with a user")
	fmt.Fprintln(out, "  bizlink like <type> <id>       Toggle a like on an entity")
	fmt.Fprintln(out, "  bizlink status [--json]        Show client status")
}

func runLogin(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: bizlink login <username>")
	}
	username := args[0]

	fmt.Fprint(os.Stderr, "Password: ")
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")

	s := session.New(cfg)
	defer s.Close()

	if err := s.Login(context.Background(), username, password); err != nil {
		return err
	}

	fmt.Printf("Logged in as user %d.\n", s.UserID())
	fmt.Printf("export BIZLINK_TOKEN=%s\n", s.API.Token())
	return nil
}

func runFeed(cfg *config.Config, query string, args []string) error {
	limit := cfg.PageSize
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed <= 0 {
			return fmt.Errorf("invalid limit: %s", args[0])
		}
		limit = parsed
	}

	s := session.New(cfg)
	defer s.Close()

	ctx := context.Background()
	var err error
	if query == "" {
		err = s.Feed.LoadFirstPage(ctx, limit)
	} else {
		err = s.Feed.Search(ctx, query, limit)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", __("failed to load feed"), err)
	}

	items := s.Feed.Items()
	if len(items) == 0 {
		fmt.Println(__("no results"))
		return nil
	}
	for i, item := range items {
		printFeedItem(i, item)
	}
	if s.Feed.HasMore() {
		fmt.Println("...")
	}
	return nil
}

func printFeedItem(index int, item models.FeedItem) {
	key := item.Key()
	switch v := item.(type) {
	case models.ServiceItem:
		fmt.Printf("%3d. [%s/%d] %s\n", index+1, key.Type, key.ID, v.Title)
	case models.CompanyItem:
		fmt.Printf("%3d. [%s/%d] %s\n", index+1, key.Type, key.ID, v.Name)
	case models.UserItem:
		fmt.Printf("%3d. [%s/%d] %s\n", index+1, key.Type, key.ID, v.Name)
	case models.PortfolioItem:
		fmt.Printf("%3d. [%s/%d] %s\n", index+1, key.Type, key.ID, v.Title)
	default:
		fmt.Printf("%3d. [%s/%d]\n", index+1, key.Type, key.ID)
	}
}

func runConversations(cfg *config.Config) error {
	s := session.New(cfg)
	defer s.Close()

	if err := s.Conversations.Refresh(context.Background()); err != nil {
		return err
	}

	items := s.Conversations.Items()
	if len(items) == 0 {
		fmt.Println(__("no conversations yet"))
		return nil
	}

	for _, item := range items {
		badge := chat.BadgeLabel(item.UnreadCount)
		if badge != "" {
			badge = " (" + badge + ")"
		}
		when := ""
		if item.LastTime != nil {
			when = " " + *item.LastTime
		}
		fmt.Printf("%4d  %-20s%s %s%s\n", item.ID, item.Peer.DisplayName, badge, chat.PreviewLabel(item.LastMessagePreview), when)
	}
	return nil
}
