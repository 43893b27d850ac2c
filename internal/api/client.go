package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/bizlinkmz/bizlink-go/internal/models"
)

// Client is the REST half of the backend surface. The websocket half lives
// in internal/transport; both share the same base URL and bearer token.
type Client struct {
	http    *resty.Client
	baseURL string
	token   string
}

func New(baseURL, token string, timeout time.Duration) *Client {
	base := strings.TrimRight(baseURL, "/")

	httpClient := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		httpClient.SetAuthToken(token)
	}

	return &Client{
		http:    httpClient,
		baseURL: base,
		token:   token,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }
func (c *Client) Token() string   { return c.token }

// SetToken swaps the bearer token after a login.
func (c *Client) SetToken(token string) {
	c.token = token
	c.http.SetAuthToken(token)
}

// Error is the backend's error envelope, either {"detail": ...} or
// {"message": ...} depending on the endpoint.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

func errorFromResponse(resp *resty.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode()}

	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &envelope); err == nil {
		var detail string
		if len(envelope.Detail) > 0 && json.Unmarshal(envelope.Detail, &detail) == nil {
			apiErr.Detail = detail
		} else if envelope.Message != "" {
			apiErr.Detail = envelope.Message
		} else if len(envelope.Detail) > 0 {
			apiErr.Detail = string(envelope.Detail)
		}
	}
	return apiErr
}

type pageInfo struct {
	LastID int `json:"last_id"`
}

type feedEnvelope struct {
	Items        []json.RawMessage `json:"items"`
	HasMore      bool              `json:"has_more"`
	NextPageInfo *pageInfo         `json:"next_page_info"`
	Summary      json.RawMessage   `json:"summary"`
}

// FeedPage is one decoded page of the mixed-content feed. LastID is the
// server-assigned cursor for the next page, nil when the feed is exhausted.
type FeedPage struct {
	Items   []models.FeedItem
	HasMore bool
	LastID  *int
}

// Feed fetches one feed page. A nil lastID requests the first page; a
// non-empty query switches to the search variant of the endpoint. Items with
// an unknown type are skipped, never failing the page.
func (c *Client) Feed(ctx context.Context, query string, lastID *int, limit int) (*FeedPage, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit))
	if query != "" {
		req.SetQueryParam("q", query)
	}
	if lastID != nil {
		req.SetQueryParam("last_id", strconv.Itoa(*lastID))
	}

	var envelope feedEnvelope
	resp, err := req.SetResult(&envelope).Get("/search/feed")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	if resp.IsError() {
		return nil, errorFromResponse(resp)
	}

	page := &FeedPage{
		Items:   make([]models.FeedItem, 0, len(envelope.Items)),
		HasMore: envelope.HasMore,
	}
	if envelope.NextPageInfo != nil {
		cursor := envelope.NextPageInfo.LastID
		page.LastID = &cursor
	}

	for _, raw := range envelope.Items {
		item, err := models.DecodeFeedItem(raw)
		if err != nil {
			log.Warn().Err(err).Msg("skipping undecodable feed item")
			continue
		}
		page.Items = append(page.Items, item)
	}

	return page, nil
}

func (c *Client) Conversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var summaries []models.ConversationSummary
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&summaries).
		Get("/conversations")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversations: %w", err)
	}
	if resp.IsError() {
		return nil, errorFromResponse(resp)
	}
	return summaries, nil
}

func (c *Client) Messages(ctx context.Context, conversationID int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&messages).
		Get(fmt.Sprintf("/conversations/%d/messages", conversationID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	if resp.IsError() {
		return nil, errorFromResponse(resp)
	}
	return messages, nil
}

type sendMessageRequest struct {
	Text      string `json:"text"`
	ReplyToID *int   `json:"reply_to_id,omitempty"`
}

// SentMessage is the send echo; only the server-assigned id matters for
// reconciling the optimistic entry.
type SentMessage struct {
	ID int `json:"id"`
}

func (c *Client) SendMessage(ctx context.Context, conversationID int, text string, replyToID *int) (*SentMessage, error) {
	var sent SentMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{Text: text, ReplyToID: replyToID}).
		SetResult(&sent).
		Post(fmt.Sprintf("/conversations/%d/messages", conversationID))
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	if resp.IsError() {
		return nil, errorFromResponse(resp)
	}
	return &sent, nil
}

type SentFile struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

func (c *Client) SendFile(ctx context.Context, conversationID int, filename string, file io.Reader, replyToID *int) (*SentFile, error) {
	req := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, file)
	if replyToID != nil {
		req.SetFormData(map[string]string{"reply_to_id": strconv.Itoa(*replyToID)})
	}

	var sent SentFile
	resp, err := req.SetResult(&sent).Post(fmt.Sprintf("/conversations/%d/messages/file", conversationID))
	if err != nil {
		return nil, fmt.Errorf("failed to send file: %w", err)
	}
	if resp.IsError() {
		return nil, errorFromResponse(resp)
	}
	return &sent, nil
}

// StartConversation creates or finds the one-to-one conversation with peerID
// and returns its id.
func (c *Client) StartConversation(ctx context.Context, peerID int) (int, error) {
	var created struct {
		ID int `json:"id"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]int{"peer_id": peerID}).
		SetResult(&created).
		Post("/conversations/start")
	if err != nil {
		return 0, fmt.Errorf("failed to start conversation: %w", err)
	}
	if resp.IsError() {
		return 0, errorFromResponse(resp)
	}
	return created.ID, nil
}

func (c *Client) MarkRead(ctx context.Context, conversationID int) error {
	resp, err := c.http.R().
		SetContext(ctx).
		Post(fmt.Sprintf("/conversations/%d/read", conversationID))
	if err != nil {
		return fmt.Errorf("failed to mark conversation read: %w", err)
	}
	if resp.IsError() {
		return errorFromResponse(resp)
	}
	return nil
}

func (c *Client) LikesInfo(ctx context.Context, entityType string, entityID int) (*models.LikeState, error) {
	var state models.LikeState
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&state).
		Get(fmt.Sprintf("/likeable/%s/%d/likes", entityType, entityID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch like state: %w", err)
	}
	if resp.IsError() {
		return nil, errorFromResponse(resp)
	}
	return &state, nil
}

// ToggleResult wraps the toggle endpoint's shape-discriminated response: a
// message-bearing body means the like was removed, anything else means the
// entity is now liked. The inference is isolated here so a future explicit
// boolean in the contract needs a single change.
type ToggleResult struct {
	raw map[string]json.RawMessage
}

func (r *ToggleResult) Liked() bool {
	_, hasMessage := r.raw["message"]
	return !hasMessage
}

func (c *Client) ToggleLike(ctx context.Context, entityType string, entityID int) (*ToggleResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Post(fmt.Sprintf("/likeable/%s/%d/toggle", entityType, entityID))
	if err != nil {
		return nil, fmt.Errorf("failed to toggle like: %w", err)
	}
	if resp.IsError() {
		return nil, errorFromResponse(resp)
	}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode toggle response: %w", err)
	}
	return &ToggleResult{raw: raw}, nil
}

func (c *Client) Notifications(ctx context.Context, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&notifications).
		Get("/notifications/")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	if resp.IsError() {
		return nil, errorFromResponse(resp)
	}
	return notifications, nil
}

// Login exchanges credentials for a bearer token and installs it on the
// client.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var result struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": username,
			"password": password,
		}).
		SetResult(&result).
		Post("/auth/login")
	if err != nil {
		return "", fmt.Errorf("failed to log in: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return "", &Error{StatusCode: resp.StatusCode(), Detail: "invalid username or password"}
	}
	if resp.IsError() {
		return "", errorFromResponse(resp)
	}

	c.SetToken(result.AccessToken)
	return result.AccessToken, nil
}
