package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"tokenpoint/internal/types"
)

// VendorRepo stores the global vendor registry: every vendor the retailer
// works with and the token types each is authorized to handle. It
// implements pricing.VendorRegistry.
type VendorRepo struct {
	db DBTX
}

// NewVendorRepo creates a VendorRepo backed by the given connection.
func NewVendorRepo(db DBTX) *VendorRepo {
	return &VendorRepo{db: db}
}

// ListVendors returns all registry records ordered by name.
func (r *VendorRepo) ListVendors(ctx context.Context) ([]types.VendorRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, handled_services, contact_info, auth_ref
		 FROM vendors ORDER BY name`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list vendors", err)
	}
	defer rows.Close()

	var out []types.VendorRecord
	for rows.Next() {
		var v types.VendorRecord
		var services []string
		if err := rows.Scan(&v.ID, &v.Name, &services, &v.ContactInfo, &v.AuthRef); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan vendor row", err)
		}
		v.HandledServices = toTokenTypes(services)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "vendor row iteration failed", err)
	}
	return out, nil
}

// GetVendorByName returns the registry record for the named vendor, or nil
// when no such vendor is registered.
func (r *VendorRepo) GetVendorByName(ctx context.Context, name string) (*types.VendorRecord, error) {
	var v types.VendorRecord
	var services []string
	err := r.db.QueryRow(ctx,
		`SELECT id, name, handled_services, contact_info, auth_ref
		 FROM vendors WHERE name = $1`,
		name,
	).Scan(&v.ID, &v.Name, &services, &v.ContactInfo, &v.AuthRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load vendor", err)
	}
	v.HandledServices = toTokenTypes(services)
	return &v, nil
}

// UpsertVendor inserts or updates a registry record keyed by name.
func (r *VendorRepo) UpsertVendor(ctx context.Context, v *types.VendorRecord) error {
	services := make([]string, len(v.HandledServices))
	for i, s := range v.HandledServices {
		services[i] = string(s)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO vendors (id, name, handled_services, contact_info, auth_ref, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (name)
		 DO UPDATE SET handled_services = EXCLUDED.handled_services,
		               contact_info = EXCLUDED.contact_info,
		               auth_ref = EXCLUDED.auth_ref,
		               updated_at = NOW()`,
		v.ID, v.Name, services, v.ContactInfo, v.AuthRef,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert vendor", err)
	}
	return nil
}

func toTokenTypes(in []string) []types.TokenType {
	out := make([]types.TokenType, len(in))
	for i, s := range in {
		out[i] = types.TokenType(s)
	}
	return out
}
