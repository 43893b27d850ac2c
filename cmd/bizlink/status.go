package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bizlinkmz/bizlink-go/internal/api"
	"github.com/bizlinkmz/bizlink-go/internal/session"
	"github.com/bizlinkmz/bizlink-go/pkg/config"
)

const statusProbeTimeout = 5 * time.Second

type appStatus struct {
	GeneratedAt    time.Time
	Environment    string
	APIBaseURL     string
	Authenticated  bool
	UserID         int
	Conversations  int64
	UnreadChats    int64
	UnreadMessages int64
	Notifications  int64
	UnreadNotifs   int64
	BackendReady   bool
	BackendWarning string
	TokenWarning   string
}

type statusOptions struct {
	JSON bool
}

func parseStatusArgs(args []string) (statusOptions, error) {
	opts := statusOptions{}
	for _, arg := range args {
		switch arg {
		case "--json", "-j":
			opts.JSON = true
		default:
			return opts, fmt.Errorf("unknown status flag: %s", arg)
		}
	}
	return opts, nil
}

func runStatus(cfg *config.Config, out io.Writer, args []string) error {
	opts, err := parseStatusArgs(args)
	if err != nil {
		return err
	}

	status := collectStatus(cfg)
	if opts.JSON {
		return printStatusJSON(out, status)
	}
	printStatus(out, status)
	return nil
}

func collectStatus(cfg *config.Config) appStatus {
	status := appStatus{
		GeneratedAt:   time.Now(),
		Environment:   cfg.Environment,
		APIBaseURL:    cfg.APIBaseURL,
		Authenticated: cfg.Token != "",
	}

	if !status.Authenticated {
		return status
	}

	userID, err := session.UserIDFromToken(cfg.Token)
	if err != nil {
		status.TokenWarning = fmt.Sprintf("token unreadable: %v", err)
	}
	status.UserID = userID

	client := api.New(cfg.APIBaseURL, cfg.Token, statusProbeTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), statusProbeTimeout)
	defer cancel()

	summaries, err := client.Conversations(ctx)
	if err != nil {
		status.BackendWarning = fmt.Sprintf("backend unavailable: %v", err)
		return status
	}
	status.Conversations = int64(len(summaries))
	for _, summary := range summaries {
		if summary.UnreadCount > 0 {
			status.UnreadChats++
			status.UnreadMessages += int64(summary.UnreadCount)
		}
	}

	notifications, err := client.Notifications(ctx, 50)
	if err != nil {
		status.BackendWarning = fmt.Sprintf("could not read notifications: %v", err)
		return status
	}
	status.Notifications = int64(len(notifications))
	for _, n := range notifications {
		if !n.IsRead {
			status.UnreadNotifs++
		}
	}

	status.BackendReady = true
	return status
}

func printStatus(out io.Writer, status appStatus) {
	fmt.Fprintln(out, "BizLink Status")
	fmt.Fprintf(out, "Generated at : %s\n", status.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Environment  : %s\n", status.Environment)
	fmt.Fprintf(out, "API base URL : %s\n", status.APIBaseURL)
	fmt.Fprintf(out, "Authenticated: %t\n", status.Authenticated)
	if status.Authenticated {
		fmt.Fprintf(out, "User id      : %d\n", status.UserID)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Account")
	if status.BackendReady {
		fmt.Fprintf(out, "  Conversations        : %d\n", status.Conversations)
		fmt.Fprintf(out, "  With unread messages : %d\n", status.UnreadChats)
		fmt.Fprintf(out, "  Unread messages      : %d\n", status.UnreadMessages)
		fmt.Fprintf(out, "  Notifications        : %d\n", status.Notifications)
		fmt.Fprintf(out, "  Unread notifications : %d\n", status.UnreadNotifs)
	} else {
		fmt.Fprintln(out, "  Backend metrics      : n/a")
	}

	if status.TokenWarning != "" {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Warning: %s\n", status.TokenWarning)
	}
	if status.BackendWarning != "" {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Warning: %s\n", status.BackendWarning)
	}
}

func printStatusJSON(out io.Writer, status appStatus) error {
	payload := map[string]any{
		"generated_at":  status.GeneratedAt.Format(time.RFC3339),
		"environment":   status.Environment,
		"api_base_url":  status.APIBaseURL,
		"authenticated": status.Authenticated,
		"user_id":       status.UserID,
		"metrics_ready": status.BackendReady,
		"metrics": map[string]any{
			"conversations":        status.Conversations,
			"unread_conversations": status.UnreadChats,
			"unread_messages":      status.UnreadMessages,
			"notifications":        status.Notifications,
			"unread_notifications": status.UnreadNotifs,
		},
		"warnings": map[string]any{
			"token":   status.TokenWarning,
			"backend": status.BackendWarning,
		},
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
