package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidTransition = errors.New("order status transition not allowed")

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusFailed   OrderStatus = "failed"
	OrderStatusRefunded OrderStatus = "refunded"
)

// transitions lists every status an order may move to from a given status.
// Payment failures may be retried by the customer on the hosted page, so a
// failed order can still become paid.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusFailed},
	OrderStatusFailed:  {OrderStatusPaid},
	OrderStatusPaid:    {OrderStatusRefunded},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusRefunded
}

func (s OrderStatus) String() string {
	return string(s)
}

// Address is stored as a JSON document on the order row.
type Address struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
}

func (a Address) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Address) Scan(src interface{}) error {
	return scanJSON(src, a)
}

type OrderItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type OrderItems []OrderItem

func (items OrderItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]OrderItem(items))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (items *OrderItems) Scan(src interface{}) error {
	return scanJSON(src, items)
}

type Order struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	Number           string          `db:"number" json:"number"`
	UserID           string          `db:"user_id" json:"user_id"`
	CartSession      string          `db:"cart_session" json:"-"`
	CustomerEmail    string          `db:"customer_email" json:"customer_email"`
	ShippingAddress  Address         `db:"shipping_address" json:"shipping_address"`
	BillingAddress   Address         `db:"billing_address" json:"billing_address"`
	ShippingMethod   string          `db:"shipping_method" json:"shipping_method"`
	Items            OrderItems      `db:"items" json:"items"`
	Subtotal         decimal.Decimal `db:"subtotal" json:"subtotal"`
	ShippingCost     decimal.Decimal `db:"shipping_cost" json:"shipping_cost"`
	Tax              decimal.Decimal `db:"tax" json:"tax"`
	Total            decimal.Decimal `db:"total" json:"total"`
	Status           OrderStatus     `db:"status" json:"status"`
	PaymentSessionID string          `db:"payment_session_id" json:"-"`
	PaymentIntentID  string          `db:"payment_intent_id" json:"-"`
	Notes            string          `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// GuestUserID marks orders placed without a signed-in account.
const GuestUserID = "guest"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type Profile struct {
	ID    string `db:"id" json:"id"`
	Email string `db:"email" json:"email"`
	Role  Role   `db:"role" json:"role"`
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
