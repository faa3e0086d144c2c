package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/cicadacove/storefront/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxQuantity is the most units of one product a cart line may hold.
const MaxQuantity = 99

var (
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrQuantityLimit   = fmt.Errorf("quantity exceeds the per-item limit of %d", MaxQuantity)
)

// Cart is the shopper's basket, identified by the browser session that owns it.
type Cart struct {
	SessionID string     `json:"session_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartItem struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
}

type ProductSnapshot struct {
	ID       uuid.UUID       `json:"id"`
	Title    string          `json:"title"`
	Slug     string          `json:"slug"`
	Designer string          `json:"designer"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image,omitempty"`
}

func NewCart(sessionID string) *Cart {
	now := time.Now().UTC()
	return &Cart{
		SessionID: sessionID,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Add puts qty units of the product into the cart. Adding a product that is
// already present increments its quantity instead of creating a second line.
func (c *Cart) Add(p ProductSnapshot, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > MaxQuantity {
		return ErrQuantityLimit
	}

	for i := range c.Items {
		if c.Items[i].Product.ID == p.ID {
			if c.Items[i].Quantity > MaxQuantity-qty {
				return ErrQuantityLimit
			}
			c.Items[i].Quantity += qty
			c.Items[i].Product = p
			c.touch()
			return nil
		}
	}
	c.Items = append(c.Items, CartItem{Product: p, Quantity: qty})
	c.touch()
	return nil
}

// UpdateQuantity sets the quantity of a line. A quantity of zero or less
// removes the line.
func (c *Cart) UpdateQuantity(productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return c.Remove(productID)
	}
	if qty > MaxQuantity {
		return ErrQuantityLimit
	}
	for i := range c.Items {
		if c.Items[i].Product.ID == productID {
			c.Items[i].Quantity = qty
			c.touch()
			return nil
		}
	}
	return ErrItemNotFound
}

func (c *Cart) Remove(productID uuid.UUID) error {
	for i := range c.Items {
		if c.Items[i].Product.ID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.touch()
			return nil
		}
	}
	return ErrItemNotFound
}

func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.touch()
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Lines returns the cart contents in the shape the pricing policy consumes.
func (c *Cart) Lines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, pricing.Line{UnitPrice: item.Product.Price, Quantity: item.Quantity})
	}
	return lines
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
