package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cicadacove/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const orderColumns = `id, number, user_id, cart_session, customer_email, shipping_address, billing_address,
	shipping_method, items, subtotal, shipping_cost, tax, total, status, payment_session_id,
	payment_intent_id, notes, created_at, updated_at`

const (
	EventOrderCreated  = "order.created"
	EventOrderPaid     = "order.paid"
	EventOrderFailed   = "order.failed"
	EventOrderRefunded = "order.refunded"
)

// OrderEvent is the outbox payload published for every order lifecycle change.
type OrderEvent struct {
	OrderID     string             `json:"order_id"`
	Number      string             `json:"number"`
	UserID      string             `json:"user_id"`
	CartSession string             `json:"cart_session,omitempty"`
	Status      domain.OrderStatus `json:"status"`
	Total       string             `json:"total"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

func orderEvent(o *domain.Order) OrderEvent {
	return OrderEvent{
		OrderID:     o.ID.String(),
		Number:      o.Number,
		UserID:      o.UserID,
		CartSession: o.CartSession,
		Status:      o.Status,
		Total:       o.Total.StringFixed(2),
		OccurredAt:  o.UpdatedAt,
	}
}

func eventTypeFor(status domain.OrderStatus) string {
	switch status {
	case domain.OrderStatusPaid:
		return EventOrderPaid
	case domain.OrderStatusFailed:
		return EventOrderFailed
	case domain.OrderStatusRefunded:
		return EventOrderRefunded
	}
	return EventOrderCreated
}

// CreateOrder stores the order and its order.created outbox event atomically.
func (r *Repository) CreateOrder(ctx context.Context, o *domain.Order) error {
	now := time.Now().UTC()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.CreatedAt = now
	o.UpdatedAt = now

	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES (:id, :number, :user_id, :cart_session, :customer_email, :shipping_address, :billing_address,
		:shipping_method, :items, :subtotal, :shipping_cost, :tax, :total, :status, :payment_session_id,
		:payment_intent_id, :notes, :created_at, :updated_at)`

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return r.insertOutboxEvent(ctx, tx, o.ID.String(), EventOrderCreated, orderEvent(o))
	})
}

func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getOrderBy(ctx, "id", id)
}

func (r *Repository) GetOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	return r.getOrderBy(ctx, "payment_intent_id", paymentIntentID)
}

func (r *Repository) GetOrderByPaymentSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	return r.getOrderBy(ctx, "payment_session_id", sessionID)
}

func (r *Repository) getOrderBy(ctx context.Context, column string, value interface{}) (*domain.Order, error) {
	if value == "" {
		return nil, ErrOrderNotFound
	}
	query := r.db.Rebind("SELECT " + orderColumns + " FROM orders WHERE " + column + " = ?")

	var o domain.Order
	if err := r.db.GetContext(ctx, &o, query, value); err != nil {
		return nil, fmt.Errorf("query order by %s: %w", column, notFound(err, ErrOrderNotFound))
	}
	return &o, nil
}

// AttachPaymentSession records the processor identifiers for an order once the
// hosted payment session exists.
func (r *Repository) AttachPaymentSession(ctx context.Context, id uuid.UUID, sessionID, paymentIntentID string) error {
	query := r.db.Rebind(`UPDATE orders SET payment_session_id = ?, payment_intent_id = ?, updated_at = ?
		WHERE id = ?`)

	res, err := r.db.ExecContext(ctx, query, sessionID, paymentIntentID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("attach payment session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *Repository) AppendOrderNote(ctx context.Context, id uuid.UUID, note string) error {
	query := r.db.Rebind(`UPDATE orders SET notes = CASE WHEN notes = '' THEN ? ELSE notes || '; ' || ? END,
		updated_at = ? WHERE id = ?`)

	res, err := r.db.ExecContext(ctx, query, note, note, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("append order note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// StatusChange describes a compare-and-set update of an order status.
type StatusChange struct {
	OrderID         uuid.UUID
	From            domain.OrderStatus
	To              domain.OrderStatus
	PaymentIntentID string
	Note            string
}

// TransitionOrder moves the order from one status to another and writes the
// matching outbox event in the same transaction. It returns ErrStatusConflict
// when the stored status is no longer change.From.
func (r *Repository) TransitionOrder(ctx context.Context, change StatusChange) (*domain.Order, error) {
	var updated domain.Order
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`UPDATE orders SET status = ?,
			payment_intent_id = CASE WHEN CAST(? AS TEXT) <> '' THEN ? ELSE payment_intent_id END,
			notes = CASE WHEN CAST(? AS TEXT) = '' THEN notes WHEN notes = '' THEN ? ELSE notes || '; ' || ? END,
			updated_at = ?
			WHERE id = ? AND status = ?`)

		res, err := tx.ExecContext(ctx, query,
			change.To,
			change.PaymentIntentID, change.PaymentIntentID,
			change.Note, change.Note, change.Note,
			time.Now().UTC(),
			change.OrderID, change.From)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrStatusConflict
		}

		selectQuery := tx.Rebind("SELECT " + orderColumns + " FROM orders WHERE id = ?")
		if err := tx.GetContext(ctx, &updated, selectQuery, change.OrderID); err != nil {
			return fmt.Errorf("reload order: %w", err)
		}

		return r.insertOutboxEvent(ctx, tx, updated.ID.String(), eventTypeFor(updated.Status), orderEvent(&updated))
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *Repository) insertOutboxEvent(ctx context.Context, tx *sqlx.Tx, aggregateID, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	query := tx.Rebind(`INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		VALUES (?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query, aggregateID, eventType, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *Repository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
