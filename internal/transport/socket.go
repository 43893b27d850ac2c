package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// ErrNotAuthenticated is returned by the URL builders when there is no
// token; callers skip the socket entirely instead of dialing.
var ErrNotAuthenticated = errors.New("not authenticated")

// Envelope is the wire format on both sockets: {"event": ..., "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MessagePayload is the data of an inbound "message" event on a chat socket.
type MessagePayload struct {
	ID             int    `json:"id"`
	ConversationID int    `json:"conversation_id"`
	SenderID       int    `json:"sender_id"`
	Text           string `json:"text"`
	Time           string `json:"time"`
	Filename       string `json:"filename,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
	ReplyToID      *int   `json:"reply_to_id,omitempty"`
	ReplyToPreview string `json:"reply_to_preview,omitempty"`
}

// NotificationPayload is the data of an inbound "notification" event on the
// notifications socket.
type NotificationPayload struct {
	Type           string `json:"type"`
	ConversationID *int   `json:"conversation_id,omitempty"`
	Text           string `json:"text,omitempty"`
}

// ChatURL builds the websocket URL for one conversation's chat stream.
func ChatURL(baseURL string, conversationID int, token string) (string, error) {
	if token == "" {
		return "", ErrNotAuthenticated
	}
	return socketURL(baseURL, "/chat/ws", url.Values{
		"conversation_id": []string{strconv.Itoa(conversationID)},
		"token":           []string{token},
	})
}

// NotificationsURL builds the websocket URL for the account-wide
// notifications stream.
func NotificationsURL(baseURL, token string) (string, error) {
	if token == "" {
		return "", ErrNotAuthenticated
	}
	return socketURL(baseURL, "/notifications/ws", url.Values{
		"token": []string{token},
	})
}

func socketURL(baseURL, path string, query url.Values) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = path
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// Socket is one live websocket. There is no reconnect and no backoff: a
// dropped socket stays dropped until the caller dials a fresh one, and the
// REST history fetch remains the source of truth.
type Socket struct {
	conn   *websocket.Conn
	events chan Envelope
	send   chan Envelope

	closeOnce sync.Once
	done      chan struct{}
}

func Dial(ctx context.Context, wsURL string) (*Socket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial websocket: %w", err)
	}

	s := &Socket{
		conn:   conn,
		events: make(chan Envelope, 64),
		send:   make(chan Envelope, 16),
		done:   make(chan struct{}),
	}

	go s.readPump()
	go s.writePump()

	return s, nil
}

// Events is the inbound stream. The channel closes when the socket drops or
// Close is called, so a range loop over it ends cleanly.
func (s *Socket) Events() <-chan Envelope {
	return s.events
}

// SendTyping pushes the ephemeral typing signal. The signal is best-effort
// and is dropped when the writer is backed up.
func (s *Socket) SendTyping() {
	select {
	case s.send <- Envelope{Event: "typing"}:
	case <-s.done:
	default:
	}
}

func (s *Socket) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		s.conn.Close()
	})
}

func (s *Socket) readPump() {
	defer func() {
		s.Close()
		close(s.events)
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			continue
		}
		if envelope.Event == "" {
			continue
		}

		select {
		case s.events <- envelope:
		case <-s.done:
			return
		}
	}
}

func (s *Socket) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case envelope := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(envelope); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			return
		}
	}
}
