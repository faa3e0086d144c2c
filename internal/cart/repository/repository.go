package repository

import (
	"context"
	"errors"

	"github.com/cicadacove/storefront/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository is the durable store behind the cart cache.
type CartRepository interface {
	GetCart(ctx context.Context, sessionID string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart *domain.Cart) error
	DeleteCart(ctx context.Context, sessionID string) error
}
