package session

import (
	"context"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/bizlinkmz/bizlink-go/internal/api"
	"github.com/bizlinkmz/bizlink-go/internal/badge"
	"github.com/bizlinkmz/bizlink-go/internal/chat"
	"github.com/bizlinkmz/bizlink-go/internal/events"
	"github.com/bizlinkmz/bizlink-go/internal/feed"
	"github.com/bizlinkmz/bizlink-go/pkg/config"
)

// Session owns every cache and socket for one logged-in user. It is created
// once, injected into consumers, and torn down by Close; nothing here is a
// package-level global.
type Session struct {
	cfg *config.Config

	API           *api.Client
	Bus           *events.Bus
	Badges        *badge.Aggregator
	Conversations *chat.ConversationList
	Feed          *feed.Paginator
	Messages      *chat.MessageStore

	userID    int
	stopWatch func()
}

func New(cfg *config.Config) *Session {
	client := api.New(cfg.APIBaseURL, cfg.Token, cfg.HTTPTimeout)
	bus := events.NewBus()

	s := &Session{
		cfg:           cfg,
		API:           client,
		Bus:           bus,
		Badges:        badge.NewAggregator(client, bus),
		Conversations: chat.NewConversationList(client),
		Feed:          feed.NewPaginator(client),
	}
	s.stopWatch = s.Conversations.Watch(bus)

	if cfg.Token != "" {
		id, err := UserIDFromToken(cfg.Token)
		if err != nil {
			log.Warn().Err(err).Msg("could not read user id from token")
		}
		s.userID = id
	}
	s.Messages = chat.NewMessageStore(client, bus, s.userID)

	return s
}

// Login exchanges credentials for a token and rebinds the message store to
// the authenticated user's identity.
func (s *Session) Login(ctx context.Context, username, password string) error {
	token, err := s.API.Login(ctx, username, password)
	if err != nil {
		return err
	}

	id, err := UserIDFromToken(token)
	if err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}
	s.userID = id
	s.Messages = chat.NewMessageStore(s.API, s.Bus, id)
	return nil
}

func (s *Session) UserID() int {
	return s.userID
}

func (s *Session) Authenticated() bool {
	return s.API.Token() != ""
}

// Close releases sockets and subscribers in teardown order: the message
// store first, then the badge aggregator, then the bus.
func (s *Session) Close() {
	if s.Messages != nil {
		s.Messages.Close()
	}
	s.Badges.Close()
	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.Bus.Close()
}

// UserIDFromToken reads the local user's id out of the JWT claims without
// verifying the signature; the backend is the verifier, the client only
// needs the identity for is-mine comparisons.
func UserIDFromToken(token string) (int, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, fmt.Errorf("failed to parse token: %w", err)
	}

	if raw, ok := claims["user_id"]; ok {
		if id, ok := claimToInt(raw); ok {
			return id, nil
		}
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		id, err := strconv.Atoi(sub)
		if err != nil {
			return 0, fmt.Errorf("failed to parse token: non-numeric subject %q", sub)
		}
		return id, nil
	}
	return 0, fmt.Errorf("failed to parse token: no user id claim")
}

func claimToInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case string:
		id, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}
