package pricing

import (
	"context"
	"fmt"
	"log/slog"

	"tokenpoint/internal/types"
)

// HierarchyStore provides read access to the persisted pricing hierarchy and
// the per-path price settings. Implemented by db.HierarchyRepo.
type HierarchyStore interface {
	// GetHierarchy returns the Area -> Project -> Vendor tree for the token
	// type. A token type with no hierarchy yet returns an empty tree, not an
	// error.
	GetHierarchy(ctx context.Context, tokenType types.TokenType) (*types.AreaHierarchy, error)

	// GetPriceSetting returns the raw stored price configuration for the
	// fully qualified path, or nil when the path has not been priced yet.
	GetPriceSetting(ctx context.Context, tokenType types.TokenType, area, project, vendor string) (*types.PriceSetting, error)
}

// VendorRegistry provides read access to the global vendor capability list.
// Implemented by db.VendorRepo.
type VendorRegistry interface {
	// GetVendorByName returns the registry record for the named vendor, or
	// nil when no such vendor is registered.
	GetVendorByName(ctx context.Context, name string) (*types.VendorRecord, error)
}

// Outcome classifies the result of a price resolution.
type Outcome string

const (
	// OutcomeConfigured means the path is coherent and carries a price tuple.
	OutcomeConfigured Outcome = "configured"
	// OutcomeNotConfigured means a node on the path is absent, or the path
	// exists but has no price tuple yet. Callers treat the purchase as
	// payable at the raw nominal amount with zero fees and surface a
	// needs-configuration warning. Never an error.
	OutcomeNotConfigured Outcome = "not_configured"
	// OutcomeInvalidConfiguration means the hierarchy and the vendor
	// registry disagree: the vendor is referenced by the path but is absent
	// from the registry or not authorized for the token type. The owning
	// service is flagged as a hard error and purchases are blocked.
	OutcomeInvalidConfiguration Outcome = "invalid_configuration"
)

// Resolution is the result of resolving one (tokenType, area, project,
// vendor) path.
type Resolution struct {
	Outcome Outcome
	// Tuple is populated only when Outcome is OutcomeConfigured.
	Tuple types.PriceTuple
	// Reason explains a non-configured outcome in operator terms.
	Reason string
}

// Resolver resolves customer services to price configurations. It holds no
// state of its own; validity is re-derived from the stores on every call
// because hierarchy and registry edits can silently invalidate previously
// valid services.
type Resolver struct {
	hierarchy HierarchyStore
	registry  VendorRegistry
	logger    *slog.Logger
}

// NewResolver creates a Resolver over the given stores.
func NewResolver(hierarchy HierarchyStore, registry VendorRegistry, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{hierarchy: hierarchy, registry: registry, logger: logger}
}

// ResolvePrice walks the hierarchy level by level for the fully qualified
// path and returns the parsed price tuple.
//
//   - A missing node at any level (area, project, or the vendor reference
//     under the project) yields OutcomeNotConfigured, never an error.
//   - A vendor that is referenced by the path but missing from the registry,
//     or registered without the token type in its handled services, yields
//     OutcomeInvalidConfiguration. The two failures are distinct on purpose:
//     the first means "an admin has not finished setting this up", the
//     second means "two independently edited stores have drifted apart".
//   - A coherent path with no price setting yet yields OutcomeNotConfigured.
//
// Store errors (network, database) are returned as errors; they are not
// configuration outcomes.
func (r *Resolver) ResolvePrice(ctx context.Context, tokenType types.TokenType, area, project, vendor string) (Resolution, error) {
	h, err := r.hierarchy.GetHierarchy(ctx, tokenType)
	if err != nil {
		return Resolution{}, fmt.Errorf("loading %s hierarchy: %w", tokenType, err)
	}

	a := h.FindArea(area)
	if a == nil {
		return Resolution{
			Outcome: OutcomeNotConfigured,
			Reason:  fmt.Sprintf("area %q is not in the %s hierarchy", area, tokenType),
		}, nil
	}

	p := a.FindProject(project)
	if p == nil {
		return Resolution{
			Outcome: OutcomeNotConfigured,
			Reason:  fmt.Sprintf("project %q is not under area %q", project, area),
		}, nil
	}

	if !p.HasVendor(vendor) {
		return Resolution{
			Outcome: OutcomeNotConfigured,
			Reason:  fmt.Sprintf("vendor %q is not under project %q", vendor, project),
		}, nil
	}

	// The hierarchy stores only a name pointer; authority comes from the
	// registry, re-joined here on every read.
	rec, err := r.registry.GetVendorByName(ctx, vendor)
	if err != nil {
		return Resolution{}, fmt.Errorf("looking up vendor %q: %w", vendor, err)
	}
	if rec == nil {
		return Resolution{
			Outcome: OutcomeInvalidConfiguration,
			Reason:  fmt.Sprintf("vendor %q is referenced by the hierarchy but absent from the registry", vendor),
		}, nil
	}
	if !rec.Handles(tokenType) {
		return Resolution{
			Outcome: OutcomeInvalidConfiguration,
			Reason:  fmt.Sprintf("vendor %q is not authorized for %s", vendor, tokenType),
		}, nil
	}

	setting, err := r.hierarchy.GetPriceSetting(ctx, tokenType, area, project, vendor)
	if err != nil {
		return Resolution{}, fmt.Errorf("loading price setting for %s/%s/%s/%s: %w", tokenType, area, project, vendor, err)
	}
	if setting == nil {
		return Resolution{
			Outcome: OutcomeNotConfigured,
			Reason:  fmt.Sprintf("path %s/%s/%s has no price configuration yet", area, project, vendor),
		}, nil
	}

	return Resolution{Outcome: OutcomeConfigured, Tuple: ParseTuple(setting)}, nil
}

// ServiceStatus derives the health of one customer service. The status is
// computed from the current hierarchy and registry on every call and is
// never cached or stored.
//
// customerActive is the owning customer's transaction flag; an inactive
// customer makes every service inactive regardless of configuration.
func (r *Resolver) ServiceStatus(ctx context.Context, svc *types.CustomerService, customerActive bool) (types.ServiceStatus, string, error) {
	if !customerActive || !svc.TransactionActive {
		return types.ServiceInactive, "transactions are switched off", nil
	}
	if !svc.Complete() {
		return types.ServiceNeedsConfiguration, "service is missing identifying fields", nil
	}

	res, err := r.ResolvePrice(ctx, svc.TokenType, svc.Area, svc.Project, svc.VendorName)
	if err != nil {
		return "", "", err
	}
	switch res.Outcome {
	case OutcomeInvalidConfiguration:
		r.logger.Warn("service has inconsistent vendor configuration",
			slog.String("service_id", svc.ServiceID),
			slog.String("vendor", svc.VendorName),
			slog.String("reason", res.Reason),
		)
		return types.ServiceError, res.Reason, nil
	case OutcomeNotConfigured:
		return types.ServiceNeedsConfiguration, res.Reason, nil
	default:
		return types.ServiceOK, "", nil
	}
}
