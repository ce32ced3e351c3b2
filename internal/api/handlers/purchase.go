// Package handlers contains the HTTP handler implementations for the
// TokenPoint API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tokenpoint/internal/core"
	"tokenpoint/internal/types"
)

// PurchaseService is the slice of the settlement orchestrator the purchase
// endpoints need.
type PurchaseService interface {
	Quote(ctx context.Context, customerID, serviceID string, nominal types.Rupiah, sel types.DiscountSelection) (types.PriceBreakdown, error)
	CreateOrder(ctx context.Context, customerID, serviceID string, nominal types.Rupiah, sel types.DiscountSelection) (*types.Order, error)
	GetOrder(ctx context.Context, orderID string) (*types.Order, *types.GeneratedToken, error)
	Vend(ctx context.Context, orderID string) (*types.GeneratedToken, error)
}

// PurchaseHandler serves quoting, order creation, order lookup, and manual
// re-vending.
type PurchaseHandler struct {
	service   PurchaseService
	validator *core.Validator
	logger    *slog.Logger
}

// NewPurchaseHandler creates a PurchaseHandler.
func NewPurchaseHandler(service PurchaseService, validator *core.Validator, logger *slog.Logger) *PurchaseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PurchaseHandler{service: service, validator: validator, logger: logger}
}

// RegisterRoutes mounts the purchase endpoints on the v1 router.
func (h *PurchaseHandler) RegisterRoutes(r chi.Router) {
	r.Post("/quotes", h.HandleQuote)
	r.Post("/orders", h.HandleCreateOrder)
	r.Get("/orders/{orderID}", h.HandleGetOrder)
	r.Post("/orders/{orderID}/vend", h.HandleVend)
}

// purchaseRequest is the shared body for quotes and order creation.
type purchaseRequest struct {
	CustomerID   string `json:"customer_id" validate:"required"`
	ServiceID    string `json:"service_id" validate:"required"`
	Amount       int64  `json:"amount" validate:"gt=0"`
	VoucherCode  string `json:"voucher_code,omitempty"`
	RedeemPoints bool   `json:"redeem_points,omitempty"`
}

func (req *purchaseRequest) selection() types.DiscountSelection {
	return types.DiscountSelection{
		VoucherCode:  req.VoucherCode,
		RedeemPoints: req.RedeemPoints,
	}
}

// orderResponse shapes an order for clients, attaching the vended token when
// present.
type orderResponse struct {
	Order *types.Order          `json:"order"`
	Token *types.GeneratedToken `json:"token,omitempty"`
}

// HandleQuote computes a price breakdown without creating anything.
//
//	POST /v1/quotes
func (h *PurchaseHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	breakdown, err := h.service.Quote(r.Context(), req.CustomerID, req.ServiceID, types.Rupiah(req.Amount), req.selection())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := core.APIResponse{Data: breakdown}
	if len(breakdown.Warnings) > 0 {
		resp.Meta = &core.ResponseMeta{Warnings: breakdown.Warnings}
	}
	core.JSON(w, r, http.StatusOK, resp)
}

// HandleCreateOrder creates an order and opens the hosted payment session.
//
//	POST /v1/orders
func (h *PurchaseHandler) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), req.CustomerID, req.ServiceID, types.Rupiah(req.Amount), req.selection())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: orderResponse{Order: order}})
}

// HandleGetOrder returns an order and, once vended, its token.
//
//	GET /v1/orders/{orderID}
func (h *PurchaseHandler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	order, token, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: orderResponse{Order: order, Token: token}})
}

// HandleVend re-drives vending for a settled or parked order. Idempotent:
// an already-vended order returns its stored token.
//
//	POST /v1/orders/{orderID}/vend
func (h *PurchaseHandler) HandleVend(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	token, err := h.service.Vend(r.Context(), orderID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: token})
}
