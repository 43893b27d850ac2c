package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bizlinkmz/bizlink-go/internal/api"
	"github.com/bizlinkmz/bizlink-go/internal/events"
	"github.com/bizlinkmz/bizlink-go/internal/models"
)

// ConversationList is the chat screen's source of truth for conversation
// summaries. Order is whatever the backend returned; there is no client-side
// re-sort.
type ConversationList struct {
	api *api.Client

	mu    sync.Mutex
	items []models.ConversationSummary
}

func NewConversationList(client *api.Client) *ConversationList {
	return &ConversationList{api: client}
}

// Refresh replaces the whole list from the backend.
func (l *ConversationList) Refresh(ctx context.Context) error {
	summaries, err := l.api.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("failed to load conversations: %w", err)
	}

	l.mu.Lock()
	l.items = summaries
	l.mu.Unlock()
	return nil
}

// StartWith creates or finds the conversation with peerID. When the id is
// not in the list yet, a synthetic summary is prepended so navigation can
// happen immediately; a later Refresh reconciles it. Dedup is by id, so
// calling this twice for the same peer never yields two rows.
func (l *ConversationList) StartWith(ctx context.Context, peerID int) (int, error) {
	id, err := l.api.StartConversation(ctx, peerID)
	if err != nil {
		return 0, fmt.Errorf("failed to start conversation: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range l.items {
		if item.ID == id {
			return id, nil
		}
	}
	l.items = append([]models.ConversationSummary{{
		ID:   id,
		Peer: models.Peer{ID: peerID},
	}}, l.items...)
	return id, nil
}

// MarkRead clears the unread markers for one entry, server-side and locally.
// The two unread fields are only fully resynchronized by a Refresh.
func (l *ConversationList) MarkRead(ctx context.Context, conversationID int) error {
	if err := l.api.MarkRead(ctx, conversationID); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ID == conversationID {
			l.items[i].UnreadCount = 0
			l.items[i].LastMessageIsUnread = false
			break
		}
	}
	return nil
}

// ApplyMessage folds a live message into the summary of a non-active
// conversation: preview, last time, and unread bookkeeping.
func (l *ConversationList) ApplyMessage(conversationID int, preview, when string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ID == conversationID {
			l.items[i].LastMessagePreview = preview
			if when != "" {
				t := when
				l.items[i].LastTime = &t
			}
			l.items[i].UnreadCount++
			l.items[i].LastMessageIsUnread = true
			return
		}
	}
}

// Watch folds live chat activity from the bus into the summaries. The
// returned cancel detaches the subscriber.
func (l *ConversationList) Watch(bus *events.Bus) func() {
	sub, cancel := bus.Subscribe()
	go func() {
		for ev := range sub {
			if activity, ok := ev.(events.ChatActivity); ok {
				l.ApplyMessage(activity.ConversationID, activity.Preview, activity.When)
			}
		}
	}()
	return cancel
}

func (l *ConversationList) Items() []models.ConversationSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.ConversationSummary, len(l.items))
	copy(out, l.items)
	return out
}

// BadgeLabel renders the unread pill, capped at "9+".
func BadgeLabel(count int) string {
	if count <= 0 {
		return ""
	}
	if count > 9 {
		return "9+"
	}
	return fmt.Sprintf("%d", count)
}

// PreviewLabel derives the list-row label from the raw last message. File
// URLs render as a media label instead of the bare link.
func PreviewLabel(text string) string {
	lower := strings.ToLower(text)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") && !strings.HasPrefix(lower, "/uploads/") {
		return text
	}
	if idx := strings.IndexAny(lower, "?#"); idx >= 0 {
		lower = lower[:idx]
	}

	switch {
	case hasAnySuffix(lower, ".jpg", ".jpeg", ".png", ".gif", ".webp"):
		return __("image")
	case hasAnySuffix(lower, ".mp4", ".mov", ".webm", ".avi"):
		return __("video")
	case hasAnySuffix(lower, ".mp3", ".wav", ".ogg", ".m4a"):
		return __("audio")
	case strings.Contains(lower, "/uploads/"):
		return __("file")
	default:
		return text
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
