package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tokenpoint/internal/types"
)

// OrderRepo stores orders and the generated tokens they produce.
//
// Status transitions are guarded by expected-state WHERE clauses so that
// repeated gateway callbacks and concurrent retries collapse into no-ops:
// the row only moves when it is still in one of the expected source states,
// and the caller learns whether this call was the one that moved it.
type OrderRepo struct {
	db DBTX
}

// NewOrderRepo creates an OrderRepo backed by the given connection.
func NewOrderRepo(db DBTX) *OrderRepo {
	return &OrderRepo{db: db}
}

// CreateOrder inserts a new order in its initial status.
func (r *OrderRepo) CreateOrder(ctx context.Context, o *types.Order) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO orders
		   (order_id, customer_id, service_id, token_type, meter_id,
		    product_amount, admin_fee, tax_amount, other_costs,
		    discount_amount, discount_source, subtotal, total_payment,
		    status, session_token, redirect_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())`,
		o.OrderID, o.CustomerID, o.ServiceID, string(o.TokenType), o.MeterID,
		int64(o.ProductAmount), int64(o.AdminFee), int64(o.TaxAmount), int64(o.OtherCosts),
		int64(o.DiscountAmount), string(o.DiscountSource), int64(o.Subtotal), int64(o.TotalPayment),
		string(o.Status), o.SessionToken, o.RedirectURL,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create order", err)
	}
	return nil
}

// GetOrder loads one order by ID, or nil when absent.
func (r *OrderRepo) GetOrder(ctx context.Context, orderID string) (*types.Order, error) {
	var o types.Order
	var tokenType, discountSource, status string
	var product, adminFee, tax, other, discount, subtotal, total int64
	err := r.db.QueryRow(ctx,
		`SELECT order_id, customer_id, service_id, token_type, meter_id,
		        product_amount, admin_fee, tax_amount, other_costs,
		        discount_amount, discount_source, subtotal, total_payment,
		        status, session_token, redirect_url, created_at, updated_at
		 FROM orders WHERE order_id = $1`,
		orderID,
	).Scan(&o.OrderID, &o.CustomerID, &o.ServiceID, &tokenType, &o.MeterID,
		&product, &adminFee, &tax, &other,
		&discount, &discountSource, &subtotal, &total,
		&status, &o.SessionToken, &o.RedirectURL, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load order", err)
	}
	o.TokenType = types.TokenType(tokenType)
	o.DiscountSource = types.DiscountSource(discountSource)
	o.Status = types.OrderStatus(status)
	o.ProductAmount = types.Rupiah(product)
	o.AdminFee = types.Rupiah(adminFee)
	o.TaxAmount = types.Rupiah(tax)
	o.OtherCosts = types.Rupiah(other)
	o.DiscountAmount = types.Rupiah(discount)
	o.Subtotal = types.Rupiah(subtotal)
	o.TotalPayment = types.Rupiah(total)
	return &o, nil
}

// SetSession records the gateway session handle and moves the order from
// created to payment_pending.
func (r *OrderRepo) SetSession(ctx context.Context, orderID string, session types.PaymentSession) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders
		 SET status = $1, session_token = $2, redirect_url = $3, updated_at = NOW()
		 WHERE order_id = $4 AND status = $5`,
		string(types.OrderPaymentPending), session.SessionToken, session.RedirectURL,
		orderID, string(types.OrderCreated),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record payment session", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictOrderState,
			fmt.Sprintf("order %s is no longer awaiting a payment session", orderID), nil)
	}
	return nil
}

// Transition moves the order to a new status if it is currently in one of
// the expected source states. Returns true when this call performed the
// move, false when the order had already left the source states (an
// idempotent no-op for repeated callbacks and retries).
func (r *OrderRepo) Transition(ctx context.Context, orderID string, from []types.OrderStatus, to types.OrderStatus) (bool, error) {
	sources := make([]string, len(from))
	for i, s := range from {
		sources[i] = string(s)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW()
		 WHERE order_id = $2 AND status = ANY($3)`,
		string(to), orderID, sources,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to transition order", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertGeneratedToken persists the vended token keyed by order ID. The
// upsert is what makes vending retry-safe: a second vend attempt for the
// same order overwrites with an identical record instead of failing or
// duplicating.
func (r *OrderRepo) UpsertGeneratedToken(ctx context.Context, rec *types.GeneratedToken) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO generated_tokens (order_id, token_code, meter_id, amount, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (order_id)
		 DO UPDATE SET token_code = EXCLUDED.token_code`,
		rec.OrderID, rec.TokenCode, rec.MeterID, int64(rec.Amount),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to persist generated token", err)
	}
	return nil
}

// GetGeneratedToken loads the token for an order, or nil when none has been
// issued yet.
func (r *OrderRepo) GetGeneratedToken(ctx context.Context, orderID string) (*types.GeneratedToken, error) {
	var rec types.GeneratedToken
	var amount int64
	err := r.db.QueryRow(ctx,
		`SELECT order_id, token_code, meter_id, amount, created_at
		 FROM generated_tokens WHERE order_id = $1`,
		orderID,
	).Scan(&rec.OrderID, &rec.TokenCode, &rec.MeterID, &amount, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load generated token", err)
	}
	rec.Amount = types.Rupiah(amount)
	return &rec, nil
}
