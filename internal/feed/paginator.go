package feed

import (
	"context"
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/bizlinkmz/bizlink-go/internal/api"
	"github.com/bizlinkmz/bizlink-go/internal/models"
)

// Paginator accumulates the mixed-content feed page by page. Each page is
// shuffled on its own before being appended; the cursor always comes from
// the server envelope, never from the shuffled order.
type Paginator struct {
	api *api.Client

	mu      sync.Mutex
	items   []models.FeedItem
	cursor  *int
	hasMore bool
	loading bool
	query   string
}

func NewPaginator(client *api.Client) *Paginator {
	return &Paginator{
		api:     client,
		hasMore: true,
	}
}

// LoadFirstPage resets the feed to the home timeline and loads page one.
func (p *Paginator) LoadFirstPage(ctx context.Context, limit int) error {
	return p.reload(ctx, "", limit)
}

// Search resets the feed to a filtered timeline. A new query always starts
// from the beginning; continuation cursors are per-query.
func (p *Paginator) Search(ctx context.Context, query string, limit int) error {
	return p.reload(ctx, query, limit)
}

func (p *Paginator) reload(ctx context.Context, query string, limit int) error {
	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return nil
	}
	p.loading = true
	p.query = query
	p.mu.Unlock()

	page, err := p.api.Feed(ctx, query, nil, limit)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false

	if err != nil {
		p.items = nil
		p.cursor = nil
		p.hasMore = false
		return err
	}

	shufflePage(page.Items)
	p.items = page.Items
	p.cursor = page.LastID
	p.hasMore = page.HasMore && len(page.Items) > 0
	return nil
}

// LoadNextPage appends the next page. It is a no-op while a load is in
// flight or once the feed is exhausted; a failed load stops pagination
// instead of surfacing an error to the scroll path.
func (p *Paginator) LoadNextPage(ctx context.Context, limit int) {
	p.mu.Lock()
	if p.loading || !p.hasMore {
		p.mu.Unlock()
		return
	}
	p.loading = true
	cursor := p.cursor
	query := p.query
	p.mu.Unlock()

	page, err := p.api.Feed(ctx, query, cursor, limit)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false

	if err != nil {
		log.Warn().Err(err).Msg("feed page load failed, stopping pagination")
		p.hasMore = false
		return
	}

	if len(page.Items) == 0 {
		p.hasMore = false
		return
	}

	shufflePage(page.Items)
	p.items = append(p.items, page.Items...)
	p.cursor = page.LastID
	p.hasMore = page.HasMore
}

// Items returns the accumulated list in presentation order.
func (p *Paginator) Items() []models.FeedItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.FeedItem, len(p.items))
	copy(out, p.items)
	return out
}

func (p *Paginator) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

func (p *Paginator) Cursor() *int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

func shufflePage(page []models.FeedItem) {
	rand.Shuffle(len(page), func(i, j int) {
		page[i], page[j] = page[j], page[i]
	})
}
