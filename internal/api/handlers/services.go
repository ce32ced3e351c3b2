package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tokenpoint/internal/core"
	"tokenpoint/internal/settlement"
)

// CustomerDirectory is the slice of the settlement orchestrator the
// customer endpoints need.
type CustomerDirectory interface {
	ListServices(ctx context.Context, customerID string) ([]settlement.ServiceView, error)
	ReissueCustomerID(ctx context.Context, customerID string) (string, error)
}

// ServicesHandler serves the customer service overview with statuses
// derived live from the pricing hierarchy and vendor registry, plus the
// identifier re-issuance hook for customers crossing the zero-services
// boundary.
type ServicesHandler struct {
	directory CustomerDirectory
	logger    *slog.Logger
}

// NewServicesHandler creates a ServicesHandler.
func NewServicesHandler(directory CustomerDirectory, logger *slog.Logger) *ServicesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServicesHandler{directory: directory, logger: logger}
}

// RegisterRoutes mounts the customer endpoints on the v1 router.
func (h *ServicesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/customers/{customerID}/services", h.HandleListServices)
	r.Post("/customers/{customerID}/reissue-id", h.HandleReissueID)
}

// HandleListServices returns the customer's services with derived statuses.
//
//	GET /v1/customers/{customerID}/services
func (h *ServicesHandler) HandleListServices(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")

	views, err := h.directory.ListServices(r.Context(), customerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: views})
}

// HandleReissueID re-keys a customer whose identifier form no longer
// matches their service set. Idempotent: a matching identifier is returned
// unchanged.
//
//	POST /v1/customers/{customerID}/reissue-id
func (h *ServicesHandler) HandleReissueID(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")

	newID, err := h.directory.ReissueCustomerID(r.Context(), customerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"customer_id": newID}})
}
