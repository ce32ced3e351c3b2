package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tokenpoint/internal/types"
)

// CustomerRepo stores customers with their embedded services (a JSONB
// column; services have no lifecycle of their own).
type CustomerRepo struct {
	db DBTX
}

// NewCustomerRepo creates a CustomerRepo backed by the given connection.
func NewCustomerRepo(db DBTX) *CustomerRepo {
	return &CustomerRepo{db: db}
}

// GetCustomer loads one customer by ID, or nil when absent.
func (r *CustomerRepo) GetCustomer(ctx context.Context, customerID string) (*types.Customer, error) {
	var c types.Customer
	var services []byte
	err := r.db.QueryRow(ctx,
		`SELECT customer_id, name, email, phone, services, loyalty_points,
		        transaction_active, created_at, updated_at
		 FROM customers WHERE customer_id = $1`,
		customerID,
	).Scan(&c.CustomerID, &c.Name, &c.Email, &c.Phone, &services,
		&c.LoyaltyPoints, &c.TransactionActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load customer", err)
	}
	if len(services) > 0 {
		if err := json.Unmarshal(services, &c.Services); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "customer services document is corrupt", err)
		}
	}
	return &c, nil
}

// SaveCustomer upserts a customer record.
func (r *CustomerRepo) SaveCustomer(ctx context.Context, c *types.Customer) error {
	services, err := json.Marshal(c.Services)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode services", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO customers
		   (customer_id, name, email, phone, services, loyalty_points, transaction_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		 ON CONFLICT (customer_id)
		 DO UPDATE SET name = EXCLUDED.name,
		               email = EXCLUDED.email,
		               phone = EXCLUDED.phone,
		               services = EXCLUDED.services,
		               loyalty_points = EXCLUDED.loyalty_points,
		               transaction_active = EXCLUDED.transaction_active,
		               updated_at = NOW()`,
		c.CustomerID, c.Name, c.Email, c.Phone, services, c.LoyaltyPoints, c.TransactionActive,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save customer", err)
	}
	return nil
}

// UpdateCustomerID re-keys a customer, used when crossing the zero-services
// boundary re-issues the identifier (placeholder <-> sequenced).
func (r *CustomerRepo) UpdateCustomerID(ctx context.Context, oldID, newID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE customers SET customer_id = $1, updated_at = NOW() WHERE customer_id = $2`,
		newID, oldID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to re-key customer", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundCustomer,
			fmt.Sprintf("customer %s not found", oldID), nil)
	}
	return nil
}

// RedeemPoints decrements the customer's loyalty balance by the given
// number of points. The decrement is conditional in a single statement:
// if the balance moved below the requested amount since quote time, no row
// is updated and the caller gets conflict_points_balance. This is the
// settlement-time critical section that makes the quote-time points
// discount advisory.
func (r *CustomerRepo) RedeemPoints(ctx context.Context, customerID string, points int64) error {
	if points <= 0 {
		return nil
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE customers
		 SET loyalty_points = loyalty_points - $1, updated_at = NOW()
		 WHERE customer_id = $2 AND loyalty_points >= $1`,
		points, customerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to redeem points", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictPointsBalance,
			fmt.Sprintf("customer %s no longer has %d points to redeem", customerID, points), nil)
	}
	return nil
}
