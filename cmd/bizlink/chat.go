package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bizlinkmz/bizlink-go/internal/events"
	"github.com/bizlinkmz/bizlink-go/internal/models"
	"github.com/bizlinkmz/bizlink-go/internal/session"
	"github.com/bizlinkmz/bizlink-go/pkg/config"
)

func runChat(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: bizlink chat <conversation-id> | bizlink chat start <peer-id>")
	}

	s := session.New(cfg)
	defer s.Close()
	if !s.Authenticated() {
		return errors.New(__("not authenticated"))
	}

	ctx := context.Background()
	var conversationID int
	if args[0] == "start" {
		if len(args) < 2 {
			return fmt.Errorf("usage: bizlink chat start <peer-id>")
		}
		peerID, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid peer id: %s", args[1])
		}
		id, err := s.Conversations.StartWith(ctx, peerID)
		if err != nil {
			return err
		}
		conversationID = id
	} else {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid conversation id: %s", args[0])
		}
		conversationID = id
	}

	if err := s.Badges.Bootstrap(ctx); err != nil {
		return err
	}
	if err := s.Messages.Open(ctx, conversationID); err != nil {
		return err
	}

	for _, message := range s.Messages.Messages() {
		printMessage(message)
	}
	if len(s.Messages.Messages()) == 0 {
		fmt.Println(__("no messages yet"))
	}
	fmt.Println("Commands: /reply <id>, /cancel, /file <path>, /quit")

	toasts, cancelToasts := s.Bus.Subscribe()
	defer cancelToasts()

	stop := make(chan struct{})
	go watchConversation(s, toasts, stop)
	defer close(stop)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		s.Messages.NotifyTyping()
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/cancel":
			s.Messages.CancelReply()
		case strings.HasPrefix(line, "/reply "):
			id, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "/reply ")))
			if err != nil {
				fmt.Println(__("unknown command"))
				continue
			}
			if err := s.Messages.SetReply(id); err != nil {
				fmt.Println(err)
			}
		case strings.HasPrefix(line, "/file "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "/file "))
			if err := sendFile(ctx, s, path); err != nil {
				fmt.Println(err)
			}
		case strings.HasPrefix(line, "/"):
			fmt.Println(__("unknown command"))
		default:
			if _, err := s.Messages.SendText(ctx, line); err != nil {
				fmt.Println(err)
			}
		}
	}
}

func sendFile(ctx context.Context, s *session.Session, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	_, err = s.Messages.SendFile(ctx, filepath.Base(path), contentTypeFor(path), file)
	return err
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// watchConversation mirrors store changes onto the terminal: freshly arrived
// or confirmed messages, typing transitions, and toast events.
func watchConversation(s *session.Session, toasts <-chan events.Event, stop chan struct{}) {
	seen := make(map[string]bool)
	lastCount := len(s.Messages.Messages())
	typing := false

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case ev, ok := <-toasts:
			if !ok {
				return
			}
			if toast, isToast := ev.(events.Toast); isToast {
				fmt.Printf("\n! %s\n> ", toast.Message)
			}
		case <-ticker.C:
			messages := s.Messages.Messages()
			if len(messages) > lastCount {
				for _, message := range messages[lastCount:] {
					if message.IsMine && seen[message.ClientID] {
						continue
					}
					if message.IsMine {
						seen[message.ClientID] = true
						continue
					}
					fmt.Print("\n")
					printMessage(message)
					fmt.Print("> ")
				}
				lastCount = len(messages)
			}

			if peerTyping := s.Messages.PeerTyping(); peerTyping != typing {
				typing = peerTyping
				if typing {
					fmt.Printf("\n[%s]\n> ", __("typing"))
				}
			}
		}
	}
}

func printMessage(message models.ChatMessage) {
	who := "peer"
	if message.IsMine {
		who = "me"
	}
	suffix := ""
	if message.State == models.StatePending {
		suffix = " (a enviar)"
	}
	if message.ReplyToID != nil {
		fmt.Printf("  ↪ %s\n", message.ReplyToPreview)
	}
	fmt.Printf("[%d] %s: %s%s\n", message.ID, who, message.Text, suffix)
}
