package likes

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bizlinkmz/bizlink-go/internal/api"
	"github.com/bizlinkmz/bizlink-go/internal/models"
)

// ErrToggleInFlight guards against double submission while a toggle call is
// still pending.
var ErrToggleInFlight = errors.New("toggle already in flight")

// Counter is the optimistic like state for one likeable entity. The flip is
// applied before the network call and reconciled against the response; on
// failure it is rolled back and the error surfaces for a toast.
type Counter struct {
	api        *api.Client
	entityType string
	entityID   int

	mu       sync.Mutex
	state    models.LikeState
	inFlight bool
}

func NewCounter(client *api.Client, entityType string, entityID int) *Counter {
	return &Counter{
		api:        client,
		entityType: entityType,
		entityID:   entityID,
	}
}

// Load fetches the initial state, run once when the owning card mounts.
func (c *Counter) Load(ctx context.Context) error {
	state, err := c.api.LikesInfo(ctx, c.entityType, c.entityID)
	if err != nil {
		return fmt.Errorf("failed to load like state: %w", err)
	}

	c.mu.Lock()
	c.state = *state
	c.mu.Unlock()
	return nil
}

// Toggle flips the like optimistically, then reconciles against the
// response shape. The counter never goes below zero.
func (c *Counter) Toggle(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrToggleInFlight
	}
	c.inFlight = true
	before := c.state
	c.state = flipped(c.state)
	c.mu.Unlock()

	result, err := c.api.ToggleLike(ctx, c.entityType, c.entityID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false

	if err != nil {
		c.state = before
		return fmt.Errorf("failed to toggle like: %w", err)
	}

	// Reconcile in case the optimistic guess and the server disagree.
	if result.Liked() != c.state.IsLiked {
		c.state = flipped(c.state)
	}
	return nil
}

func (c *Counter) State() models.LikeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func flipped(state models.LikeState) models.LikeState {
	if state.IsLiked {
		state.IsLiked = false
		if state.LikesCount > 0 {
			state.LikesCount--
		}
		return state
	}
	state.IsLiked = true
	state.LikesCount++
	return state
}
