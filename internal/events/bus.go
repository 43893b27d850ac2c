package events

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Event is a closed set of session-scoped signals. Components publish and
// subscribe through the Bus instead of reaching into each other's state.
type Event interface {
	event()
}

// ConversationOpened fires when a conversation becomes the active one.
type ConversationOpened struct {
	ConversationID int
}

// ConversationClosed fires when the user navigates away from the chat screen.
type ConversationClosed struct {
	ConversationID int
}

// ChatUnreadCleared asks the badge aggregator to zero the chat counter.
type ChatUnreadCleared struct{}

// UnreadSet pins the notifications counter to an absolute value, used after
// the notifications screen marks everything read.
type UnreadSet struct {
	Count int
}

// ChatActivity fires for a live message in a conversation that is not the
// active one; the conversation list folds it into its summaries.
type ChatActivity struct {
	ConversationID int
	Preview        string
	When           string
}

// Toast carries a user-facing failure message for whatever shell is attached.
type Toast struct {
	Message string
}

func (ConversationOpened) event() {}
func (ConversationClosed) event() {}
func (ChatUnreadCleared) event()  {}
func (UnreadSet) event()          {}
func (ChatActivity) event()       {}
func (Toast) event()              {}

type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]chan Event),
	}
}

// Subscribe returns a buffered event channel and a cancel function. The
// channel is closed on cancel or when the bus shuts down.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 16)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers to every subscriber without blocking; slow subscribers
// lose events rather than stalling the publisher.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Warn().Int("subscriber", id).Type("event", ev).Msg("event dropped, subscriber channel full")
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
