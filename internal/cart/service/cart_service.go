package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cicadacove/storefront/internal/cart/cache"
	"github.com/cicadacove/storefront/internal/cart/repository"
	"github.com/cicadacove/storefront/internal/domain"
	"github.com/cicadacove/storefront/internal/pricing"
	catalogrepo "github.com/cicadacove/storefront/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var ErrProductUnavailable = errors.New("product is no longer available")

type ProductLookup interface {
	GetProductByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
}

// CartSummary is a cart together with its priced totals for one shipping method.
type CartSummary struct {
	Cart           *domain.Cart           `json:"cart"`
	ShippingMethod pricing.ShippingMethod `json:"shippingMethod"`
	ItemCount      int                    `json:"itemCount"`
	pricing.Summary
}

type CartService struct {
	repo     repository.CartRepository
	cache    cache.CartCache
	products ProductLookup
	policy   pricing.Policy
	log      *logrus.Entry
	sfg      singleflight.Group
}

func NewCartService(repo repository.CartRepository, c cache.CartCache, products ProductLookup, policy pricing.Policy, log logrus.FieldLogger) *CartService {
	return &CartService{
		repo:     repo,
		cache:    c,
		products: products,
		policy:   policy,
		log:      log.WithField("component", "cart"),
	}
}

// Get returns the session's cart, reading through the cache. Concurrent misses
// for the same session share one store lookup. An unknown session gets an
// empty cart.
func (s *CartService) Get(ctx context.Context, sessionID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, sessionID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WithContext(ctx).WithError(err).Warn("cache get failed")
		}

		cart, err = s.repo.GetCart(ctx, sessionID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return domain.NewCart(sessionID), nil
		}
		if err != nil {
			return nil, err
		}

		if errFill := s.cache.Fill(ctx, sessionID, cart); errFill != nil {
			s.log.WithContext(ctx).WithError(errFill).Warn("cache fill failed")
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem adds qty units of a product, priced from the catalog rather than
// from anything the client sent.
func (s *CartService) AddItem(ctx context.Context, sessionID string, productID uuid.UUID, qty int) (*domain.Cart, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := s.products.GetProductByID(ctx, productID)
	if errors.Is(err, catalogrepo.ErrProductNotFound) {
		return nil, ErrProductUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("lookup product %s: %w", productID, err)
	}
	if !product.Available() {
		return nil, ErrProductUnavailable
	}

	return s.mutate(ctx, sessionID, func(c *domain.Cart) error {
		return c.Add(product.Snapshot(), qty)
	})
}

func (s *CartService) UpdateQuantity(ctx context.Context, sessionID string, productID uuid.UUID, qty int) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, func(c *domain.Cart) error {
		return c.UpdateQuantity(productID, qty)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, sessionID string, productID uuid.UUID) (*domain.Cart, error) {
	return s.mutate(ctx, sessionID, func(c *domain.Cart) error {
		return c.Remove(productID)
	})
}

// Clear drops the whole cart. Clearing a cart that was never stored is not an error.
func (s *CartService) Clear(ctx context.Context, sessionID string) error {
	if err := s.repo.DeleteCart(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		s.log.WithContext(ctx).WithError(err).WithField("session", sessionID).Error("repo delete cart failed")
		return err
	}

	s.writeCache(ctx, sessionID, domain.NewCart(sessionID))
	return nil
}

func (s *CartService) Summary(ctx context.Context, sessionID, method string) (*CartSummary, error) {
	cart, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &CartSummary{
		Cart:           cart,
		ShippingMethod: s.policy.Method(method),
		ItemCount:      cart.ItemCount(),
		Summary:        s.policy.Summarize(cart.Lines(), method),
	}, nil
}

func (s *CartService) mutate(ctx context.Context, sessionID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, sessionID)
	if errors.Is(err, repository.ErrCartNotFound) {
		cart = domain.NewCart(sessionID)
	} else if err != nil {
		return nil, err
	}

	if err := fn(cart); err != nil {
		return nil, err
	}

	if err := s.repo.SaveCart(ctx, cart); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("session", sessionID).Error("repo save cart failed")
		return nil, err
	}

	s.writeCache(ctx, sessionID, cart)
	return cart, nil
}

// writeCache replaces the cached cart with the one just stored. If that fails
// the entry is dropped so the next read goes to the store.
func (s *CartService) writeCache(ctx context.Context, sessionID string, cart *domain.Cart) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	err := s.cache.Set(ctx, sessionID, cart)
	if err == nil {
		return
	}
	entry := s.log.WithContext(ctx).WithField("session", sessionID)
	entry.WithError(err).Warn("cache write failed")
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		entry.WithError(err).Warn("cache invalidate failed")
	}
}
