package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	repo     repository.CartRepository
	products repository.ProductRepository
	cache    cache.CartCache
	log      *slog.Logger
	sfg      singleflight.Group // collapses concurrent cache misses per user
}

func NewCartService(repo repository.CartRepository, products repository.ProductRepository, cache cache.CartCache, log *slog.Logger) *CartService {
	return &CartService{
		repo:     repo,
		products: products,
		cache:    cache,
		log:      log,
	}
}

// GetOrCreateCart returns the user's cart, creating an empty one on first
// access. A concurrent creator winning the unique user index counts as
// success.
func (s *CartService) GetOrCreateCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrCartNotFound) {
		return nil, err
	}

	cart = domain.NewCart(userID)
	err = s.repo.CreateCart(ctx, cart)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, err
	}
	return s.repo.GetCart(ctx, userID)
}

// GetCart is the cached read path.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (any, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "cart cache get failed", "user_id", userID, "error", err)
		}

		cart, err = s.GetOrCreateCart(ctx, userID)
		if err != nil {
			return nil, err
		}

		if err := s.cache.Set(ctx, userID, cart); err != nil {
			s.log.WarnContext(ctx, "cart cache set failed", "user_id", userID, "error", err)
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if productID == "" {
		return nil, domain.Errorf(domain.ErrValidation, "product id is required")
	}
	if quantity < 1 {
		return nil, domain.Errorf(domain.ErrValidation, "quantity must be at least 1")
	}

	product, err := s.activeProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	return s.update(ctx, userID, func(cart *domain.Cart) error {
		// advisory only; checkout re-checks with a guarded decrement
		if cart.QuantityOf(productID)+quantity > product.Stock {
			return domain.Errorf(domain.ErrInsufficientStock,
				"only %d units of %s are in stock", product.Stock, product.Title)
		}
		cart.Add(productID, quantity, product.Price)
		return nil
	})
}

func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if productID == "" {
		return nil, domain.Errorf(domain.ErrValidation, "product id is required")
	}
	if quantity < 0 {
		return nil, domain.Errorf(domain.ErrValidation, "quantity cannot be negative")
	}

	var product *domain.Product
	if quantity > 0 {
		p, err := s.activeProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		product = p
	}

	return s.update(ctx, userID, func(cart *domain.Cart) error {
		if cart.Find(productID) < 0 {
			return domain.Errorf(domain.ErrNotFound, "product not found in cart")
		}
		if product != nil && quantity > product.Stock {
			return domain.Errorf(domain.ErrInsufficientStock,
				"only %d units of %s are in stock", product.Stock, product.Title)
		}
		cart.SetQuantity(productID, quantity)
		return nil
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	return s.update(ctx, userID, func(cart *domain.Cart) error {
		if !cart.Remove(productID) {
			return domain.Errorf(domain.ErrNotFound, "product not found in cart")
		}
		return nil
	})
}

// ClearCart empties the cart in place; the cart document itself is kept.
// It fails with a conflict when the cart changed since it was loaded.
func (s *CartService) ClearCart(ctx context.Context, cart *domain.Cart) error {
	cart.Clear()
	return s.save(ctx, cart)
}

const maxCartWriteAttempts = 3

// update applies change to a freshly loaded cart and saves it, starting
// over when another request saved the cart in between.
func (s *CartService) update(ctx context.Context, userID string, change func(*domain.Cart) error) (*domain.Cart, error) {
	for attempt := 1; ; attempt++ {
		cart, err := s.GetOrCreateCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := change(cart); err != nil {
			return nil, err
		}

		err = s.save(ctx, cart)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, repository.ErrStatusConflict) {
			return nil, err
		}
		if attempt == maxCartWriteAttempts {
			return nil, domain.Errorf(domain.ErrValidation, "cart is being changed by another request, please retry")
		}
		s.log.DebugContext(ctx, "cart changed concurrently, retrying", "user_id", userID, "attempt", attempt)
	}
}

func (s *CartService) activeProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if errors.Is(err, repository.ErrProductNotFound) || (err == nil && !product.Available()) {
		return nil, domain.Errorf(domain.ErrNotFound, "product not found or inactive")
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *CartService) save(ctx context.Context, cart *domain.Cart) error {
	if err := s.repo.SaveCart(ctx, cart); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	s.invalidateCache(ctx, cart.UserID, cart.Version)
	return nil
}

func (s *CartService) invalidateCache(ctx context.Context, userID string, version int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID, version); err != nil {
		s.log.WarnContext(ctx, "cart cache invalidate failed", "user_id", userID, "error", err)
	}
}
