// Package checkout turns a cart into a pending order and a hosted payment session.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/cicadacove/storefront/internal/domain"
	"github.com/cicadacove/storefront/internal/payment"
	"github.com/cicadacove/storefront/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var ErrProductsUnavailable = errors.New("One or more products are no longer available")

// PaymentError carries the processor's message so it can be shown verbatim.
type PaymentError struct {
	Err error
}

func (e *PaymentError) Error() string { return e.Err.Error() }

func (e *PaymentError) Unwrap() error { return e.Err }

type ProductLookup interface {
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
	AttachPaymentSession(ctx context.Context, id uuid.UUID, sessionID, paymentIntentID string) error
	AppendOrderNote(ctx context.Context, id uuid.UUID, note string) error
}

type Config struct {
	AppURL   string
	Currency string
	Policy   pricing.Policy
}

// Caller identifies who is checking out.
type Caller struct {
	UserID      string
	CartSession string
}

type Result struct {
	URL     string `json:"url"`
	OrderID string `json:"orderId"`
}

type Service struct {
	products ProductLookup
	orders   OrderStore
	gateway  payment.Gateway
	cfg      Config
	log      *logrus.Entry
	now      func() time.Time
}

func NewService(products ProductLookup, orders OrderStore, gateway payment.Gateway, cfg Config, log logrus.FieldLogger) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	return &Service{
		products: products,
		orders:   orders,
		gateway:  gateway,
		cfg:      cfg,
		log:      log.WithField("component", "checkout"),
		now:      time.Now,
	}
}

func (s *Service) Checkout(ctx context.Context, caller Caller, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	products, err := s.loadProducts(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	order := s.buildOrder(caller, req, products)
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	entry := s.log.WithContext(ctx).WithFields(logrus.Fields{"order_id": order.ID, "number": order.Number})

	sess, err := s.gateway.CreateSession(ctx, s.sessionRequest(order, products))
	if err != nil {
		entry.WithError(err).Error("payment session failed")
		// the request context may already be done; the note must still land
		noteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if noteErr := s.orders.AppendOrderNote(noteCtx, order.ID, "Payment session failed: "+err.Error()); noteErr != nil {
			entry.WithError(noteErr).Error("failed to record payment failure note")
		}
		return nil, &PaymentError{Err: err}
	}

	if err := s.orders.AttachPaymentSession(ctx, order.ID, sess.ID, sess.PaymentIntentID); err != nil {
		return nil, fmt.Errorf("attach payment session: %w", err)
	}

	entry.WithField("session_id", sess.ID).Info("checkout session created")
	return &Result{URL: sess.URL, OrderID: order.ID.String()}, nil
}

// loadProducts re-reads every requested product and fails if any is missing
// or no longer available.
func (s *Service) loadProducts(ctx context.Context, items []RequestItem) (map[uuid.UUID]*domain.Product, error) {
	seen := make(map[uuid.UUID]bool, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		id := uuid.MustParse(item.ProductID)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	found, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}

	byID := make(map[uuid.UUID]*domain.Product, len(found))
	for _, p := range found {
		if p.Available() {
			byID[p.ID] = p
		}
	}
	if len(byID) != len(ids) {
		return nil, ErrProductsUnavailable
	}
	return byID, nil
}

func (s *Service) buildOrder(caller Caller, req *Request, products map[uuid.UUID]*domain.Product) *domain.Order {
	items := make(domain.OrderItems, 0, len(req.Items))
	lines := make([]pricing.Line, 0, len(req.Items))
	for _, item := range req.Items {
		p := products[uuid.MustParse(item.ProductID)]
		items = append(items, domain.OrderItem{
			ProductID: p.ID,
			Title:     p.Title,
			Price:     p.Price,
			Quantity:  item.Quantity,
		})
		lines = append(lines, pricing.Line{UnitPrice: p.Price, Quantity: item.Quantity})
	}

	method := s.cfg.Policy.Method(req.ShippingMethod)
	summary := s.cfg.Policy.Summarize(lines, string(method))

	userID := caller.UserID
	if userID == "" {
		userID = domain.GuestUserID
	}

	return &domain.Order{
		ID:              uuid.New(),
		Number:          s.orderNumber(),
		UserID:          userID,
		CartSession:     caller.CartSession,
		CustomerEmail:   req.ShippingAddress.Email,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.billing(),
		ShippingMethod:  string(method),
		Items:           items,
		Subtotal:        summary.Subtotal,
		ShippingCost:    summary.Shipping,
		Tax:             summary.Tax,
		Total:           summary.Total,
		Status:          domain.OrderStatusPending,
	}
}

func (s *Service) sessionRequest(o *domain.Order, products map[uuid.UUID]*domain.Product) *payment.SessionRequest {
	lineItems := make([]payment.LineItem, 0, len(o.Items)+2)
	for _, item := range o.Items {
		li := payment.LineItem{
			Name:       item.Title,
			UnitAmount: pricing.MinorUnits(item.Price),
			Quantity:   int64(item.Quantity),
		}
		if p := products[item.ProductID]; p != nil && len(p.Images) > 0 {
			li.Images = []string{p.Images[0]}
		}
		lineItems = append(lineItems, li)
	}
	lineItems = appendCharge(lineItems, fmt.Sprintf("Shipping (%s)", o.ShippingMethod), o.ShippingCost)
	lineItems = appendCharge(lineItems, "Sales tax", o.Tax)

	return &payment.SessionRequest{
		OrderID:       o.ID.String(),
		CustomerEmail: o.CustomerEmail,
		Currency:      s.cfg.Currency,
		LineItems:     lineItems,
		Metadata: map[string]string{
			payment.MetadataOrderID:        o.ID.String(),
			payment.MetadataOrderNumber:    o.Number,
			payment.MetadataShippingMethod: o.ShippingMethod,
		},
		SuccessURL: s.cfg.AppURL + "/checkout/confirmation?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.cfg.AppURL + "/checkout?canceled=true",
	}
}

func appendCharge(items []payment.LineItem, name string, amount decimal.Decimal) []payment.LineItem {
	if !amount.IsPositive() {
		return items
	}
	return append(items, payment.LineItem{
		Name:       name,
		UnitAmount: pricing.MinorUnits(amount),
		Quantity:   1,
	})
}

func (s *Service) orderNumber() string {
	return fmt.Sprintf("CC-%d-%04d", s.now().UnixMilli(), rand.Intn(10000))
}
