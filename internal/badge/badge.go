package badge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/bizlinkmz/bizlink-go/internal/api"
	"github.com/bizlinkmz/bizlink-go/internal/events"
	"github.com/bizlinkmz/bizlink-go/internal/transport"
)

const bootstrapPageSize = 50

// Aggregator keeps the process-wide unread counters behind the navigation
// chrome. It outlives any one screen: increments come from the notifications
// socket, zeroing only ever happens through the two bus signals or the chat
// suppression rule for the active conversation.
type Aggregator struct {
	api *api.Client
	bus *events.Bus

	mu                   sync.Mutex
	notificationsUnread  int
	chatUnread           int
	activeConversationID int // 0 when none

	socket     *transport.Socket
	cancelSubs func()
	closeOnce  sync.Once
}

func NewAggregator(client *api.Client, bus *events.Bus) *Aggregator {
	return &Aggregator{api: client, bus: bus}
}

// Bootstrap seeds the notifications counter from a bounded page, then
// attaches the notifications socket and the bus reset hooks. Failures leave
// the counters at zero; the badge degrades silently.
func (a *Aggregator) Bootstrap(ctx context.Context) error {
	notifications, err := a.api.Notifications(ctx, bootstrapPageSize)
	if err != nil {
		log.Warn().Err(err).Msg("failed to seed notification badge")
	} else {
		unread := 0
		for _, n := range notifications {
			if !n.IsRead {
				unread++
			}
		}
		a.mu.Lock()
		a.notificationsUnread = unread
		a.mu.Unlock()
	}

	sub, cancel := a.bus.Subscribe()
	a.mu.Lock()
	a.cancelSubs = cancel
	a.mu.Unlock()
	go a.watchBus(sub)

	wsURL, err := transport.NotificationsURL(a.api.BaseURL(), a.api.Token())
	if err != nil {
		if errors.Is(err, transport.ErrNotAuthenticated) {
			return nil
		}
		return err
	}

	socket, err := transport.Dial(ctx, wsURL)
	if err != nil {
		log.Warn().Err(err).Msg("notifications socket unavailable")
		return nil
	}

	a.mu.Lock()
	a.socket = socket
	a.mu.Unlock()
	go a.pump(socket)

	return nil
}

func (a *Aggregator) watchBus(sub <-chan events.Event) {
	for ev := range sub {
		switch e := ev.(type) {
		case events.ConversationOpened:
			a.mu.Lock()
			a.activeConversationID = e.ConversationID
			a.mu.Unlock()
		case events.ConversationClosed:
			a.mu.Lock()
			if a.activeConversationID == e.ConversationID {
				a.activeConversationID = 0
			}
			a.mu.Unlock()
		case events.ChatUnreadCleared:
			a.mu.Lock()
			a.chatUnread = 0
			a.mu.Unlock()
		case events.UnreadSet:
			a.mu.Lock()
			a.notificationsUnread = e.Count
			a.mu.Unlock()
		}
	}
}

func (a *Aggregator) pump(socket *transport.Socket) {
	for envelope := range socket.Events() {
		if envelope.Event != "notification" {
			continue
		}

		var payload transport.NotificationPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			continue
		}
		a.apply(payload)
	}
}

// apply runs the increment rule: chat-type notifications bump the chat
// counter unless their conversation is the one currently open, in which
// case they are suppressed entirely. Everything else bumps notifications.
// Counted chat activity is rebroadcast so the conversation list can update
// its summaries.
func (a *Aggregator) apply(payload transport.NotificationPayload) {
	a.mu.Lock()
	if payload.Type != "chat" {
		a.notificationsUnread++
		a.mu.Unlock()
		return
	}
	if payload.ConversationID != nil && *payload.ConversationID == a.activeConversationID && a.activeConversationID != 0 {
		a.mu.Unlock()
		return
	}
	a.chatUnread++
	a.mu.Unlock()

	if payload.ConversationID != nil {
		a.bus.Publish(events.ChatActivity{
			ConversationID: *payload.ConversationID,
			Preview:        payload.Text,
		})
	}
}

func (a *Aggregator) NotificationsUnread() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.notificationsUnread
}

func (a *Aggregator) ChatUnread() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chatUnread
}

func (a *Aggregator) ActiveConversation() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeConversationID
}

func (a *Aggregator) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		socket := a.socket
		cancel := a.cancelSubs
		a.socket = nil
		a.cancelSubs = nil
		a.mu.Unlock()

		if socket != nil {
			socket.Close()
		}
		if cancel != nil {
			cancel()
		}
	})
}
