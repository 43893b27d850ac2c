package badge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bizlinkmz/bizlink-go/internal/api"
	"github.com/bizlinkmz/bizlink-go/internal/events"
	"github.com/bizlinkmz/bizlink-go/internal/models"
	"github.com/bizlinkmz/bizlink-go/internal/transport"
)

var notifyUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type fakeNotifications struct {
	mu            sync.Mutex
	notifications []models.Notification
	conns         []*websocket.Conn
}

func (f *fakeNotifications) register(r *gin.Engine) {
	r.GET("/notifications/", func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()
		c.JSON(http.StatusOK, f.notifications)
	})
	r.GET("/notifications/ws", func(c *gin.Context) {
		conn, err := notifyUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

func (f *fakeNotifications) push(t *testing.T, payload transport.NotificationPayload) {
	t.Helper()
	data, _ := json.Marshal(payload)
	envelope := transport.Envelope{Event: "notification", Data: data}

	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		if len(f.conns) > 0 {
			conn := f.conns[len(f.conns)-1]
			err := conn.WriteJSON(envelope)
			f.mu.Unlock()
			if err != nil {
				t.Fatalf("failed to push notification: %v", err)
			}
			return
		}
		f.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatal("no notifications socket to push on")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func newAggregator(t *testing.T, fake *fakeNotifications) (*Aggregator, *events.Bus) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	fake.register(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	aggregator := NewAggregator(api.New(server.URL, "tok", 5*time.Second), bus)
	t.Cleanup(aggregator.Close)

	return aggregator, bus
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func intPtr(v int) *int { return &v }

func TestBootstrapCountsUnread(t *testing.T) {
	fake := &fakeNotifications{notifications: []models.Notification{
		{ID: 1, Type: "like", IsRead: false},
		{ID: 2, Type: "like", IsRead: true},
		{ID: 3, Type: "system", IsRead: false},
	}}
	aggregator, _ := newAggregator(t, fake)

	if err := aggregator.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}

	if got := aggregator.NotificationsUnread(); got != 2 {
		t.Fatalf("NotificationsUnread() = %d, want 2", got)
	}
	if got := aggregator.ChatUnread(); got != 0 {
		t.Fatalf("ChatUnread() = %d, want 0", got)
	}
}

func TestChatSuppressionForActiveConversation(t *testing.T) {
	fake := &fakeNotifications{}
	aggregator, bus := newAggregator(t, fake)

	if err := aggregator.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}

	bus.Publish(events.ConversationOpened{ConversationID: 7})
	waitUntil(t, "active conversation", func() bool {
		return aggregator.ActiveConversation() == 7
	})

	// Chat notification for the open conversation: suppressed entirely.
	fake.push(t, transport.NotificationPayload{Type: "chat", ConversationID: intPtr(7)})
	// Chat notification for another conversation: counted.
	fake.push(t, transport.NotificationPayload{Type: "chat", ConversationID: intPtr(8)})

	waitUntil(t, "chat badge", func() bool {
		return aggregator.ChatUnread() == 1
	})
	time.Sleep(100 * time.Millisecond)
	if got := aggregator.ChatUnread(); got != 1 {
		t.Fatalf("ChatUnread() = %d, want exactly 1", got)
	}
	if got := aggregator.NotificationsUnread(); got != 0 {
		t.Fatalf("NotificationsUnread() = %d, chat events must not leak", got)
	}
}

func TestChatCountedWhenNoConversationActive(t *testing.T) {
	fake := &fakeNotifications{}
	aggregator, _ := newAggregator(t, fake)

	if err := aggregator.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}

	fake.push(t, transport.NotificationPayload{Type: "chat", ConversationID: intPtr(7)})

	waitUntil(t, "chat badge", func() bool {
		return aggregator.ChatUnread() == 1
	})
}

func TestNonChatNotificationsBumpNotificationBadge(t *testing.T) {
	fake := &fakeNotifications{}
	aggregator, _ := newAggregator(t, fake)

	if err := aggregator.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}

	fake.push(t, transport.NotificationPayload{Type: "like"})
	fake.push(t, transport.NotificationPayload{Type: "system"})

	waitUntil(t, "notification badge", func() bool {
		return aggregator.NotificationsUnread() == 2
	})
	if got := aggregator.ChatUnread(); got != 0 {
		t.Fatalf("ChatUnread() = %d, want 0", got)
	}
}

func TestResetHooks(t *testing.T) {
	fake := &fakeNotifications{notifications: []models.Notification{
		{ID: 1, Type: "like", IsRead: false},
		{ID: 2, Type: "like", IsRead: false},
	}}
	aggregator, bus := newAggregator(t, fake)

	if err := aggregator.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}

	fake.push(t, transport.NotificationPayload{Type: "chat", ConversationID: intPtr(3)})
	waitUntil(t, "chat badge", func() bool {
		return aggregator.ChatUnread() == 1
	})

	bus.Publish(events.UnreadSet{Count: 0})
	waitUntil(t, "notifications reset", func() bool {
		return aggregator.NotificationsUnread() == 0
	})

	bus.Publish(events.ChatUnreadCleared{})
	waitUntil(t, "chat reset", func() bool {
		return aggregator.ChatUnread() == 0
	})
}
