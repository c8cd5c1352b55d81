package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	// Set stores the cart unless a newer version was invalidated since it
	// was read.
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	// Invalidate drops the cached cart and rejects later Sets of any version
	// older than version.
	Invalidate(ctx context.Context, userID string, version int64) error
}

var ErrCacheMiss = errors.New("cache miss")

// NopCache always misses. It stands in when no redis is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*domain.Cart, error) {
	return nil, ErrCacheMiss
}

func (NopCache) Set(context.Context, string, *domain.Cart) error {
	return nil
}

func (NopCache) Invalidate(context.Context, string, int64) error {
	return nil
}
