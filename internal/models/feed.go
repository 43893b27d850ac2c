package models

import (
	"encoding/json"
	"fmt"
)

// FeedKey is the composite identity of a feed entry. Numeric ids are only
// unique within a type, so the pair is the smallest stable key.
type FeedKey struct {
	Type string
	ID   int
}

// FeedItem is a closed union over the mixed-content feed. Each variant
// carries only its own fields; the discriminant is the wire-level "type".
type FeedItem interface {
	Key() FeedKey
}

type ServiceItem struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	CompanyID   *int     `json:"company_id,omitempty"`
	Images      []string `json:"images,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
}

func (s ServiceItem) Key() FeedKey { return FeedKey{Type: "service", ID: s.ID} }

type CompanyItem struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	LogoURL     string `json:"logo_url,omitempty"`
	City        string `json:"city,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

func (c CompanyItem) Key() FeedKey { return FeedKey{Type: "company", ID: c.ID} }

type UserItem struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	Profession string `json:"profession,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

func (u UserItem) Key() FeedKey { return FeedKey{Type: "user", ID: u.ID} }

type PortfolioItem struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	ImageURL  string `json:"image_url,omitempty"`
	UserID    *int   `json:"user_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

func (p PortfolioItem) Key() FeedKey { return FeedKey{Type: "portfolio", ID: p.ID} }

// ErrUnknownFeedType marks entries whose discriminant is not part of the
// union. Callers skip them instead of failing the page.
type ErrUnknownFeedType struct {
	Type string
}

func (e ErrUnknownFeedType) Error() string {
	return fmt.Sprintf("unknown feed item type %q", e.Type)
}

// DecodeFeedItem picks the variant from the wire-level discriminant.
func DecodeFeedItem(data json.RawMessage) (FeedItem, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to read feed item type: %w", err)
	}

	switch probe.Type {
	case "service":
		var item ServiceItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("failed to decode service item: %w", err)
		}
		return item, nil
	case "company":
		var item CompanyItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("failed to decode company item: %w", err)
		}
		return item, nil
	case "user":
		var item UserItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("failed to decode user item: %w", err)
		}
		return item, nil
	case "portfolio":
		var item PortfolioItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("failed to decode portfolio item: %w", err)
		}
		return item, nil
	default:
		return nil, ErrUnknownFeedType{Type: probe.Type}
	}
}
