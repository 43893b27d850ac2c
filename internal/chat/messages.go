package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bizlinkmz/bizlink-go/internal/api"
	"github.com/bizlinkmz/bizlink-go/internal/events"
	"github.com/bizlinkmz/bizlink-go/internal/models"
	"github.com/bizlinkmz/bizlink-go/internal/transport"
	"github.com/bizlinkmz/bizlink-go/pkg/i18n"
)

var __ = i18n.Translate

// typingQuiet is the debounce window after which the peer-is-typing flag
// drops back to false unless re-armed by another signal.
const typingQuiet = 1500 * time.Millisecond

var (
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrEmptyMessage         = errors.New("message cannot be empty")
	// ErrSendInFlight suppresses a rapid double submit of the same body.
	ErrSendInFlight = errors.New("a send for this message is in flight")
)

type pendingReply struct {
	ID      int
	Preview string
}

// MessageStore holds the ordered message list for the conversation that is
// currently open. History comes from REST, live updates from the chat
// socket, and the user's own sends are appended optimistically and
// reconciled once the send call returns the server id.
type MessageStore struct {
	api    *api.Client
	bus    *events.Bus
	userID int

	mu            sync.Mutex
	activeID      int
	messages      []models.ChatMessage
	socket        *transport.Socket
	peerTyping    bool
	typingTimer   *time.Timer
	reply         *pendingReply
	pendingBodies map[string]bool
}

func NewMessageStore(client *api.Client, bus *events.Bus, userID int) *MessageStore {
	return &MessageStore{
		api:           client,
		bus:           bus,
		userID:        userID,
		pendingBodies: make(map[string]bool),
	}
}

// Open switches the store to conversation id: fetch history to completion,
// mark the conversation read, reset ephemeral state, and only then attach a
// fresh socket. The previous socket is closed first, so there is a narrow
// window with no socket at all; the history fetch covers it.
func (s *MessageStore) Open(ctx context.Context, id int) error {
	s.mu.Lock()
	if s.socket != nil {
		s.socket.Close()
		s.socket = nil
	}
	s.activeID = id
	s.stopTypingTimerLocked()
	s.peerTyping = false
	s.reply = nil
	s.mu.Unlock()

	s.bus.Publish(events.ConversationOpened{ConversationID: id})

	history, err := s.api.Messages(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}

	s.mu.Lock()
	if s.activeID != id {
		// The user already navigated elsewhere; drop the stale response.
		s.mu.Unlock()
		return nil
	}
	s.messages = history
	s.mu.Unlock()

	if err := s.api.MarkRead(ctx, id); err != nil {
		log.Warn().Err(err).Int("conversation", id).Msg("failed to mark conversation read")
	}
	s.bus.Publish(events.ChatUnreadCleared{})

	wsURL, err := transport.ChatURL(s.api.BaseURL(), id, s.api.Token())
	if err != nil {
		if errors.Is(err, transport.ErrNotAuthenticated) {
			log.Debug().Msg("no token, skipping chat socket")
			return nil
		}
		return err
	}

	socket, err := transport.Dial(ctx, wsURL)
	if err != nil {
		// Live updates are best-effort; history already loaded.
		log.Warn().Err(err).Int("conversation", id).Msg("chat socket unavailable")
		return nil
	}

	s.mu.Lock()
	if s.activeID != id {
		s.mu.Unlock()
		socket.Close()
		return nil
	}
	s.socket = socket
	s.mu.Unlock()

	go s.pump(socket, id)
	return nil
}

// Close tears down the active conversation, if any.
func (s *MessageStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.socket != nil {
		s.socket.Close()
		s.socket = nil
	}
	if s.activeID != 0 {
		s.bus.Publish(events.ConversationClosed{ConversationID: s.activeID})
	}
	s.activeID = 0
	s.messages = nil
	s.stopTypingTimerLocked()
	s.peerTyping = false
	s.reply = nil
}

func (s *MessageStore) pump(socket *transport.Socket, conversationID int) {
	for envelope := range socket.Events() {
		switch envelope.Event {
		case "message":
			var payload transport.MessagePayload
			if err := json.Unmarshal(envelope.Data, &payload); err != nil {
				continue
			}
			// Trust the frame's own conversation id; fall back to the
			// conversation this socket was dialed for when it is absent.
			if payload.ConversationID == 0 {
				payload.ConversationID = conversationID
			}
			s.applyIncoming(payload.ConversationID, payload)
		case "typing":
			s.armPeerTyping()
		}
	}
}

// applyIncoming folds one live message event into the store. The sender's
// own echo is never re-appended; the optimistic entry already covers it.
func (s *MessageStore) applyIncoming(conversationID int, payload transport.MessagePayload) {
	if payload.SenderID == s.userID {
		return
	}

	s.mu.Lock()
	if s.activeID != conversationID {
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages, models.ChatMessage{
		ID:             payload.ID,
		Text:           payload.Text,
		Time:           payload.Time,
		IsMine:         false,
		Kind:           kindOf(payload.Filename, payload.ContentType),
		Filename:       payload.Filename,
		ContentType:    payload.ContentType,
		ReplyToID:      payload.ReplyToID,
		ReplyToPreview: payload.ReplyToPreview,
		State:          models.StateConfirmed,
	})
	s.peerTyping = false
	s.stopTypingTimerLocked()
	s.mu.Unlock()

	// The message was seen live, so the conversation stays read.
	s.bus.Publish(events.ChatUnreadCleared{})
}

// SendText appends an optimistic entry immediately and issues the REST call
// in the background. On success the temporary id is replaced by the server
// id; on failure the entry is removed and a toast raised.
func (s *MessageStore) SendText(ctx context.Context, body string) (*models.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.activeID == 0 {
		s.mu.Unlock()
		return nil, ErrNoActiveConversation
	}
	if s.pendingBodies[body] {
		s.mu.Unlock()
		return nil, ErrSendInFlight
	}
	s.pendingBodies[body] = true

	conversationID := s.activeID
	message := models.ChatMessage{
		ID:       int(time.Now().UnixMilli()),
		Text:     body,
		Time:     time.Now().UTC().Format(time.RFC3339),
		IsMine:   true,
		Kind:     models.KindText,
		State:    models.StatePending,
		ClientID: uuid.NewString(),
	}
	if s.reply != nil {
		replyID := s.reply.ID
		message.ReplyToID = &replyID
		message.ReplyToPreview = s.reply.Preview
		s.reply = nil
	}
	s.messages = append(s.messages, message)
	s.mu.Unlock()

	go s.deliverText(ctx, conversationID, message)

	return &message, nil
}

func (s *MessageStore) deliverText(ctx context.Context, conversationID int, message models.ChatMessage) {
	sent, err := s.api.SendMessage(ctx, conversationID, message.Text, message.ReplyToID)

	s.mu.Lock()
	delete(s.pendingBodies, message.Text)
	if err != nil {
		s.removeByClientIDLocked(message.ClientID)
		s.mu.Unlock()
		log.Warn().Err(err).Msg("message send failed, rolling back optimistic entry")
		s.bus.Publish(events.Toast{Message: __("failed to send message")})
		return
	}
	s.confirmByClientIDLocked(message.ClientID, sent.ID, "")
	s.mu.Unlock()
}

// SendFile uploads via multipart and runs the same optimistic cycle; the
// entry's text becomes the returned download URL once confirmed.
func (s *MessageStore) SendFile(ctx context.Context, filename, contentType string, file io.Reader) (*models.ChatMessage, error) {
	s.mu.Lock()
	if s.activeID == 0 {
		s.mu.Unlock()
		return nil, ErrNoActiveConversation
	}

	conversationID := s.activeID
	message := models.ChatMessage{
		ID:          int(time.Now().UnixMilli()),
		Time:        time.Now().UTC().Format(time.RFC3339),
		IsMine:      true,
		Kind:        models.KindFile,
		Filename:    filename,
		ContentType: contentType,
		State:       models.StatePending,
		ClientID:    uuid.NewString(),
	}
	if s.reply != nil {
		replyID := s.reply.ID
		message.ReplyToID = &replyID
		message.ReplyToPreview = s.reply.Preview
		s.reply = nil
	}
	s.messages = append(s.messages, message)
	s.mu.Unlock()

	go func() {
		sent, err := s.api.SendFile(ctx, conversationID, filename, file, message.ReplyToID)

		s.mu.Lock()
		if err != nil {
			s.removeByClientIDLocked(message.ClientID)
			s.mu.Unlock()
			log.Warn().Err(err).Msg("file send failed, rolling back optimistic entry")
			s.bus.Publish(events.Toast{Message: __("failed to send file")})
			return
		}
		s.confirmByClientIDLocked(message.ClientID, sent.ID, sent.URL)
		s.mu.Unlock()
	}()

	return &message, nil
}

func (s *MessageStore) removeByClientIDLocked(clientID string) {
	for i, m := range s.messages {
		if m.ClientID == clientID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

func (s *MessageStore) confirmByClientIDLocked(clientID string, serverID int, url string) {
	for i := range s.messages {
		if s.messages[i].ClientID == clientID {
			s.messages[i].ID = serverID
			s.messages[i].State = models.StateConfirmed
			if url != "" {
				s.messages[i].Text = url
			}
			return
		}
	}
}

// SetReply marks a message as the pending reply target; its raw text is
// snapshotted as the preview and never updated afterwards.
func (s *MessageStore) SetReply(messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == messageID {
			s.reply = &pendingReply{ID: messageID, Preview: m.Text}
			return nil
		}
	}
	return fmt.Errorf("message %d not in conversation", messageID)
}

func (s *MessageStore) CancelReply() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = nil
}

// ReplyTarget returns the pending reply target id, or nil.
func (s *MessageStore) ReplyTarget() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reply == nil {
		return nil
	}
	id := s.reply.ID
	return &id
}

// NotifyTyping forwards the local user's typing signal to the peer.
func (s *MessageStore) NotifyTyping() {
	s.mu.Lock()
	socket := s.socket
	s.mu.Unlock()
	if socket != nil {
		socket.SendTyping()
	}
}

func (s *MessageStore) armPeerTyping() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerTyping = true
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	// Stop does not cancel a callback that already fired, so the callback
	// only acts while its own timer is still the current one.
	var timer *time.Timer
	timer = time.AfterFunc(typingQuiet, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.typingTimer != timer {
			return
		}
		s.peerTyping = false
		s.typingTimer = nil
	})
	s.typingTimer = timer
}

func (s *MessageStore) stopTypingTimerLocked() {
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
}

func (s *MessageStore) PeerTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerTyping
}

func (s *MessageStore) ActiveConversation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Messages returns the list in append order. There is no re-sort by the
// time field: arrival order is the contract.
func (s *MessageStore) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func kindOf(filename, contentType string) models.MessageKind {
	if filename != "" || contentType != "" {
		return models.KindFile
	}
	return models.KindText
}
