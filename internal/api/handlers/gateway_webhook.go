package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tokenpoint/internal/core"
	"tokenpoint/internal/types"
)

// maxCallbackBodySize caps gateway callback payloads (64 KB). They are tiny
// in practice; the limit protects against abuse on an unauthenticated
// endpoint.
const maxCallbackBodySize = 64 * 1024

// CallbackProcessor is the slice of the settlement orchestrator the webhook
// needs.
type CallbackProcessor interface {
	HandleGatewayCallback(ctx context.Context, cb *types.GatewayCallback) error
}

// GatewayWebhookHandler receives asynchronous payment notifications from
// the gateway. It sits outside any auth middleware; authenticity comes from
// the SHA-512 signature inside the payload, checked by the orchestrator's
// verifier before anything else happens.
type GatewayWebhookHandler struct {
	processor CallbackProcessor
	logger    *slog.Logger
}

// NewGatewayWebhookHandler creates a GatewayWebhookHandler.
func NewGatewayWebhookHandler(processor CallbackProcessor, logger *slog.Logger) *GatewayWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayWebhookHandler{processor: processor, logger: logger}
}

// RegisterRoutes mounts the callback endpoint on the v1 router.
func (h *GatewayWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/gateway", h.HandleCallback)
}

// HandleCallback processes one gateway notification. The gateway redelivers
// on anything but 2xx, so the response code doubles as the redelivery
// control: signature failures and unknown orders return their real status
// (the notification can never succeed), while processed notifications
// always return 200 even when they were duplicates.
//
//	POST /v1/webhooks/gateway
func (h *GatewayWebhookHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBodySize)

	// Lenient decode: the gateway sends many fields beyond the ones consumed
	// here, so the strict unknown-field decoding used elsewhere would reject
	// every real notification.
	var cb types.GatewayCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidField,
			"callback payload is not valid JSON", err))
		return
	}

	h.logger.InfoContext(r.Context(), "gateway callback received",
		slog.String("order_id", cb.OrderID),
		slog.String("gateway_status", string(cb.GatewayStatus)),
	)

	if err := h.processor.HandleGatewayCallback(r.Context(), &cb); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"status": "ok"}})
}
