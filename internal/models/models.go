package models

// MessageState tracks an optimistic entry through its lifecycle. Pending
// entries carry a client-assigned temporary id until the send call returns
// the server id.
type MessageState int

const (
	StateConfirmed MessageState = iota
	StatePending
	StateFailed
)

type MessageKind string

const (
	KindText MessageKind = "text"
	KindFile MessageKind = "file"
)

type ChatMessage struct {
	ID             int          `json:"id"`
	Text           string       `json:"text"`
	Time           string       `json:"time"`
	IsMine         bool         `json:"is_mine"`
	Kind           MessageKind  `json:"kind"`
	Filename       string       `json:"filename,omitempty"`
	ContentType    string       `json:"content_type,omitempty"`
	ReplyToID      *int         `json:"reply_to_id,omitempty"`
	ReplyToPreview string       `json:"reply_to_preview,omitempty"`
	State          MessageState `json:"-"`
	ClientID       string       `json:"-"`
}

type Peer struct {
	ID          int    `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type ConversationSummary struct {
	ID                  int     `json:"id"`
	Peer                Peer    `json:"peer"`
	LastMessagePreview  string  `json:"last_message_preview"`
	LastTime            *string `json:"last_time"`
	UnreadCount         int     `json:"unread_count"`
	LastMessageIsUnread bool    `json:"last_message_is_unread"`
}

type LikeState struct {
	IsLiked    bool `json:"is_liked"`
	LikesCount int  `json:"likes_count"`
}

type Notification struct {
	ID             int    `json:"id"`
	Type           string `json:"type"`
	ConversationID *int   `json:"conversation_id,omitempty"`
	Text           string `json:"text,omitempty"`
	IsRead         bool   `json:"is_read"`
	CreatedAt      string `json:"created_at,omitempty"`
}
