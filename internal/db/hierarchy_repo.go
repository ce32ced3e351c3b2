package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tokenpoint/internal/types"
)

// HierarchyRepo stores the Area -> Project -> Vendor tree (one JSONB
// document per token type) and the per-path price settings. It implements
// pricing.HierarchyStore.
type HierarchyRepo struct {
	db DBTX
}

// NewHierarchyRepo creates a HierarchyRepo backed by the given connection.
func NewHierarchyRepo(db DBTX) *HierarchyRepo {
	return &HierarchyRepo{db: db}
}

// GetHierarchy loads the tree for the token type. A token type that has
// never been configured returns an empty tree, not an error.
func (r *HierarchyRepo) GetHierarchy(ctx context.Context, tokenType types.TokenType) (*types.AreaHierarchy, error) {
	var raw []byte
	err := r.db.QueryRow(ctx,
		`SELECT areas FROM hierarchies WHERE token_type = $1`,
		string(tokenType),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return &types.AreaHierarchy{TokenType: tokenType}, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load hierarchy", err)
	}

	h := &types.AreaHierarchy{TokenType: tokenType}
	if err := json.Unmarshal(raw, &h.Areas); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "hierarchy document is corrupt", err)
	}
	return h, nil
}

// SaveHierarchy upserts the full tree for a token type. Name uniqueness
// within parent scopes is validated before writing.
func (r *HierarchyRepo) SaveHierarchy(ctx context.Context, h *types.AreaHierarchy) error {
	if err := validateHierarchy(h); err != nil {
		return err
	}

	raw, err := json.Marshal(h.Areas)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode hierarchy", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO hierarchies (token_type, areas, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (token_type)
		 DO UPDATE SET areas = EXCLUDED.areas, updated_at = NOW()`,
		string(h.TokenType), raw,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save hierarchy", err)
	}
	return nil
}

// VendorLookup is the slice of the vendor registry needed by write-time
// hierarchy validation.
type VendorLookup interface {
	GetVendorByName(ctx context.Context, name string) (*types.VendorRecord, error)
}

// AddVendorToProject attaches a vendor reference under area/project after
// checking the registry authorizes the vendor for this token type. This is
// the write-time half of the cross-entity consistency rule; the pricing
// resolver re-validates at read time because the two stores drift.
func (r *HierarchyRepo) AddVendorToProject(ctx context.Context, registry VendorLookup, tokenType types.TokenType, area, project, vendor string) error {
	rec, err := registry.GetVendorByName(ctx, vendor)
	if err != nil {
		return err
	}
	if rec == nil {
		return types.NewAppError(types.ErrCodeNotFoundVendor,
			fmt.Sprintf("vendor %q is not registered", vendor), nil)
	}
	if !rec.Handles(tokenType) {
		return types.NewAppError(types.ErrCodeConflictVendorHandling,
			fmt.Sprintf("vendor %q does not handle %s", vendor, tokenType), nil)
	}

	h, err := r.GetHierarchy(ctx, tokenType)
	if err != nil {
		return err
	}
	a := h.FindArea(area)
	if a == nil {
		return types.NewAppError(types.ErrCodeValidationInvalidField,
			fmt.Sprintf("area %q does not exist", area), nil)
	}
	p := a.FindProject(project)
	if p == nil {
		return types.NewAppError(types.ErrCodeValidationInvalidField,
			fmt.Sprintf("project %q does not exist under %q", project, area), nil)
	}
	if p.HasVendor(vendor) {
		return nil // already attached; idempotent
	}
	p.Vendors = append(p.Vendors, types.VendorRef{Name: vendor})

	return r.SaveHierarchy(ctx, h)
}

// GetPriceSetting returns the raw stored price configuration for the path,
// or nil when the path has not been priced yet.
func (r *HierarchyRepo) GetPriceSetting(ctx context.Context, tokenType types.TokenType, area, project, vendor string) (*types.PriceSetting, error) {
	s := &types.PriceSetting{
		TokenType: tokenType,
		Area:      area,
		Project:   project,
		Vendor:    vendor,
	}
	err := r.db.QueryRow(ctx,
		`SELECT base_price, tax_percent, admin_fee, other_costs
		 FROM price_settings
		 WHERE token_type = $1 AND area = $2 AND project = $3 AND vendor = $4`,
		string(tokenType), area, project, vendor,
	).Scan(&s.BasePrice, &s.TaxPercent, &s.AdminFee, &s.OtherCosts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load price setting", err)
	}
	return s, nil
}

// SavePriceSetting upserts the price configuration for a path. Values are
// stored as the free-form strings the admin tooling supplies; parsing
// happens at the pricing boundary.
func (r *HierarchyRepo) SavePriceSetting(ctx context.Context, s *types.PriceSetting) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO price_settings
		   (token_type, area, project, vendor, base_price, tax_percent, admin_fee, other_costs, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 ON CONFLICT (token_type, area, project, vendor)
		 DO UPDATE SET base_price = EXCLUDED.base_price,
		               tax_percent = EXCLUDED.tax_percent,
		               admin_fee = EXCLUDED.admin_fee,
		               other_costs = EXCLUDED.other_costs,
		               updated_at = NOW()`,
		string(s.TokenType), s.Area, s.Project, s.Vendor,
		s.BasePrice, s.TaxPercent, s.AdminFee, s.OtherCosts,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save price setting", err)
	}
	return nil
}

// validateHierarchy enforces name uniqueness within each parent scope.
func validateHierarchy(h *types.AreaHierarchy) error {
	areas := map[string]struct{}{}
	for _, a := range h.Areas {
		if _, dup := areas[a.Name]; dup {
			return types.NewAppError(types.ErrCodeValidationInvalidField,
				fmt.Sprintf("duplicate area %q", a.Name), nil)
		}
		areas[a.Name] = struct{}{}

		projects := map[string]struct{}{}
		for _, p := range a.Projects {
			if _, dup := projects[p.Name]; dup {
				return types.NewAppError(types.ErrCodeValidationInvalidField,
					fmt.Sprintf("duplicate project %q under area %q", p.Name, a.Name), nil)
			}
			projects[p.Name] = struct{}{}

			vendors := map[string]struct{}{}
			for _, v := range p.Vendors {
				if _, dup := vendors[v.Name]; dup {
					return types.NewAppError(types.ErrCodeValidationInvalidField,
						fmt.Sprintf("duplicate vendor %q under project %q", v.Name, p.Name), nil)
				}
				vendors[v.Name] = struct{}{}
			}
		}
	}
	return nil
}
