// Package settlement drives orders through the payment and vending
// pipeline: quote, order creation with a hosted gateway session, callback
// settlement, and idempotent token vending with queued retries.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tokenpoint/internal/external"
	"tokenpoint/internal/pricing"
	"tokenpoint/internal/sequencer"
	"tokenpoint/internal/types"
)

// OrderStore is the persistence surface the orchestrator needs for orders.
// Implemented by db.OrderRepo.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *types.Order) error
	GetOrder(ctx context.Context, orderID string) (*types.Order, error)
	SetSession(ctx context.Context, orderID string, session types.PaymentSession) error
	// Transition moves the order to a new status only while it is in one of
	// the expected source states, reporting whether this call moved it.
	Transition(ctx context.Context, orderID string, from []types.OrderStatus, to types.OrderStatus) (bool, error)
	UpsertGeneratedToken(ctx context.Context, rec *types.GeneratedToken) error
	GetGeneratedToken(ctx context.Context, orderID string) (*types.GeneratedToken, error)
}

// CustomerStore is the persistence surface for customers. Implemented by
// db.CustomerRepo.
type CustomerStore interface {
	GetCustomer(ctx context.Context, customerID string) (*types.Customer, error)
	// RedeemPoints conditionally decrements the loyalty balance; it fails
	// with conflict_points_balance when the balance no longer covers the
	// redemption.
	RedeemPoints(ctx context.Context, customerID string, points int64) error
	// UpdateCustomerID re-keys a customer when crossing the zero-services
	// boundary forces identifier re-issuance.
	UpdateCustomerID(ctx context.Context, oldID, newID string) error
}

// PriceResolver resolves service paths to price configurations. Implemented
// by pricing.Resolver.
type PriceResolver interface {
	ResolvePrice(ctx context.Context, tokenType types.TokenType, area, project, vendor string) (pricing.Resolution, error)
	ServiceStatus(ctx context.Context, svc *types.CustomerService, customerActive bool) (types.ServiceStatus, string, error)
}

// RetryPublisher enqueues vend retries. Implemented by
// queue.VendRetryPublisher.
type RetryPublisher interface {
	PublishVendRetry(ctx context.Context, orderID string, attempt int, reason string) error
}

// Metrics is the counter surface the orchestrator emits to. Implemented by
// telemetry.Collector.
type Metrics interface {
	Count(ctx context.Context, name string, dims map[string]string)
}

// noopMetrics lets tests and local runs skip CloudWatch wiring.
type noopMetrics struct{}

func (noopMetrics) Count(context.Context, string, map[string]string) {}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Orders     OrderStore
	Customers  CustomerStore
	Resolver   PriceResolver
	Calculator *pricing.Calculator
	Discounts  *pricing.DiscountEngine
	Sequencer  *sequencer.Sequencer
	Gateway    external.PaymentGateway
	Vendor     external.TokenVendor
	Verifier   external.CallbackVerifier
	Retries    RetryPublisher
	Metrics    Metrics
	// RedirectURLs guide the buyer back from the gateway's hosted page.
	RedirectURLs types.RedirectURLs
	Logger       *slog.Logger
}

// Orchestrator coordinates the purchase pipeline. All operations are safe to
// repeat: settlement callbacks and vend attempts are idempotent on order ID.
type Orchestrator struct {
	deps Deps
	now  func() time.Time
}

// New creates an Orchestrator. Metrics and Logger may be nil.
func New(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	return &Orchestrator{deps: deps, now: time.Now}
}

// Quote computes the price breakdown for a prospective purchase without
// creating anything. The points discount in the result is advisory: the
// balance is re-validated when the order settles.
func (o *Orchestrator) Quote(ctx context.Context, customerID, serviceID string, nominal types.Rupiah, sel types.DiscountSelection) (types.PriceBreakdown, error) {
	customer, svc, err := o.loadService(ctx, customerID, serviceID)
	if err != nil {
		return types.PriceBreakdown{}, err
	}
	breakdown, _, err := o.price(ctx, customer, svc, nominal, sel)
	return breakdown, err
}

// CreateOrder quotes the purchase, mints an order identifier, persists the
// order, and opens a hosted payment session. On success the order is in
// payment_pending and carries the gateway redirect URL. A gateway failure
// leaves the order in created and surfaces gateway_session_failure; nothing
// has been charged.
func (o *Orchestrator) CreateOrder(ctx context.Context, customerID, serviceID string, nominal types.Rupiah, sel types.DiscountSelection) (*types.Order, error) {
	customer, svc, err := o.loadService(ctx, customerID, serviceID)
	if err != nil {
		return nil, err
	}
	breakdown, _, err := o.price(ctx, customer, svc, nominal, sel)
	if err != nil {
		return nil, err
	}

	order := &types.Order{
		OrderID:        o.deps.Sequencer.NextOrderID(ctx, o.now(), svc.TokenType),
		CustomerID:     customer.CustomerID,
		ServiceID:      svc.ServiceID,
		TokenType:      svc.TokenType,
		MeterID:        svc.MeterID,
		ProductAmount:  breakdown.ProductAmount,
		AdminFee:       breakdown.AdminFee,
		TaxAmount:      breakdown.TaxAmount,
		OtherCosts:     breakdown.OtherCosts,
		DiscountAmount: breakdown.DiscountAmount,
		DiscountSource: breakdown.DiscountSource,
		Subtotal:       breakdown.Subtotal,
		TotalPayment:   breakdown.TotalPayment,
		Status:         types.OrderCreated,
	}
	if err := o.deps.Orders.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	buyer := types.Buyer{
		CustomerID: customer.CustomerID,
		Name:       customer.Name,
		Email:      customer.Email,
		Phone:      customer.Phone,
	}
	session, err := o.deps.Gateway.CreateSession(ctx, order.OrderID, order.TotalPayment, buyer, o.deps.RedirectURLs)
	if err != nil {
		o.deps.Metrics.Count(ctx, types.MetricGatewaySessionFailure, map[string]string{
			types.DimTokenType: string(order.TokenType),
		})
		o.deps.Logger.ErrorContext(ctx, "payment session creation failed",
			slog.String("order_id", order.OrderID),
			slog.String("error", err.Error()),
		)
		return nil, types.NewAppError(types.ErrCodeGatewaySessionFailure,
			fmt.Sprintf("could not open a payment session for order %s", order.OrderID), err)
	}

	if err := o.deps.Orders.SetSession(ctx, order.OrderID, session); err != nil {
		return nil, err
	}
	order.Status = types.OrderPaymentPending
	order.SessionToken = session.SessionToken
	order.RedirectURL = session.RedirectURL

	o.deps.Metrics.Count(ctx, types.MetricOrderCreated, map[string]string{
		types.DimTokenType: string(order.TokenType),
	})
	o.deps.Logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.OrderID),
		slog.String("customer_id", order.CustomerID),
		slog.Int64("total_payment", int64(order.TotalPayment)),
	)
	return order, nil
}

// GetOrder returns the order and, when vended, its token.
func (o *Orchestrator) GetOrder(ctx context.Context, orderID string) (*types.Order, *types.GeneratedToken, error) {
	order, err := o.deps.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, types.NewAppError(types.ErrCodeNotFoundOrder,
			fmt.Sprintf("order %s not found", orderID), nil)
	}
	if order.Status != types.OrderVended {
		return order, nil, nil
	}
	token, err := o.deps.Orders.GetGeneratedToken(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, token, nil
}

// HandleGatewayCallback processes one payment gateway notification. Delivery
// is at-least-once and possibly out of order, so every branch is a no-op on
// repeat and terminal orders never regress.
func (o *Orchestrator) HandleGatewayCallback(ctx context.Context, cb *types.GatewayCallback) error {
	if err := o.deps.Verifier.Verify(cb); err != nil {
		return err
	}

	order, err := o.deps.Orders.GetOrder(ctx, cb.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return types.NewAppError(types.ErrCodeNotFoundOrder,
			fmt.Sprintf("callback references unknown order %s", cb.OrderID), nil)
	}

	switch {
	case cb.GatewayStatus.Settled():
		return o.settle(ctx, order)
	case cb.GatewayStatus == types.GatewayPending:
		return nil
	default:
		// deny / cancel / expire / failure. The guard means a late deny after
		// settlement cannot pull a paid order back.
		moved, err := o.deps.Orders.Transition(ctx, order.OrderID,
			[]types.OrderStatus{types.OrderCreated, types.OrderPaymentPending}, types.OrderAbandoned)
		if err != nil {
			return err
		}
		if moved {
			o.deps.Metrics.Count(ctx, types.MetricOrderAbandoned, map[string]string{
				types.DimTokenType: string(order.TokenType),
			})
			o.deps.Logger.InfoContext(ctx, "order abandoned",
				slog.String("order_id", order.OrderID),
				slog.String("gateway_status", string(cb.GatewayStatus)),
			)
		}
		return nil
	}
}

// settle marks the order paid, redeems a points discount against the live
// balance, and vends synchronously. The status transition doubles as the
// idempotency gate: only the callback that actually moves the order runs the
// side effects.
func (o *Orchestrator) settle(ctx context.Context, order *types.Order) error {
	moved, err := o.deps.Orders.Transition(ctx, order.OrderID,
		[]types.OrderStatus{types.OrderPaymentPending}, types.OrderPaymentSettled)
	if err != nil {
		return err
	}
	if !moved {
		// Repeat callback, or the order never reached payment_pending.
		return nil
	}

	if order.DiscountSource == types.DiscountPoints {
		points := o.deps.Discounts.PointsUsed(order.DiscountAmount)
		if err := o.deps.Customers.RedeemPoints(ctx, order.CustomerID, points); err != nil {
			// The payment already happened; an insufficient balance at this
			// point is absorbed, logged, and counted rather than blocking the
			// token the buyer paid for.
			var appErr *types.AppError
			if errors.As(err, &appErr) && appErr.Code == types.ErrCodeConflictPointsBalance {
				o.deps.Metrics.Count(ctx, types.MetricDiscountConflict, nil)
				o.deps.Logger.WarnContext(ctx, "points balance dropped below redemption between quote and settlement",
					slog.String("order_id", order.OrderID),
					slog.String("customer_id", order.CustomerID),
					slog.Int64("points", points),
				)
			} else {
				return err
			}
		}
	}

	o.deps.Metrics.Count(ctx, types.MetricPaymentSettled, map[string]string{
		types.DimTokenType: string(order.TokenType),
	})
	o.deps.Logger.InfoContext(ctx, "payment settled",
		slog.String("order_id", order.OrderID),
		slog.Int64("total_payment", int64(order.TotalPayment)),
	)

	// Vend inline. A vending failure is not a callback failure: the order is
	// parked in vending_failed with a retry enqueued, and the gateway gets
	// its acknowledgement so it stops redelivering a settled payment.
	if _, err := o.vend(ctx, order.OrderID, 1); err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeVendingFailure {
			return nil
		}
		return err
	}
	return nil
}

// Vend drives token vending for a settled order. Safe to call repeatedly:
// an already-vended order short-circuits to its stored token without
// touching the vending API.
func (o *Orchestrator) Vend(ctx context.Context, orderID string) (*types.GeneratedToken, error) {
	return o.vend(ctx, orderID, 1)
}

// RetryVending is the queue worker entry point. On another failure it
// re-enqueues with an incremented attempt count until the retry budget is
// exhausted, after which the order stays in vending_failed for manual
// reconciliation.
func (o *Orchestrator) RetryVending(ctx context.Context, msg types.VendRetryMessage) error {
	o.deps.Metrics.Count(ctx, types.MetricVendingRetry, nil)
	_, err := o.vend(ctx, msg.OrderID, msg.Attempt+1)
	if err != nil && msg.Attempt+1 > types.MaxVendRetryAttempts {
		o.deps.Logger.ErrorContext(ctx, "vend retry budget exhausted",
			slog.String("order_id", msg.OrderID),
			slog.Int("attempts", msg.Attempt),
		)
	}
	return err
}

func (o *Orchestrator) vend(ctx context.Context, orderID string, attempt int) (*types.GeneratedToken, error) {
	order, err := o.deps.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundOrder,
			fmt.Sprintf("order %s not found", orderID), nil)
	}

	// Idempotency short-circuit: a token on record means a previous attempt
	// succeeded, whatever the status row says.
	if stored, err := o.deps.Orders.GetGeneratedToken(ctx, orderID); err != nil {
		return nil, err
	} else if stored != nil {
		return stored, nil
	}

	switch order.Status {
	case types.OrderPaymentSettled, types.OrderVendingFailed:
		// eligible
	default:
		return nil, types.NewAppError(types.ErrCodeConflictOrderState,
			fmt.Sprintf("order %s is %s and cannot be vended", orderID, order.Status), nil)
	}

	tokenCode, err := o.deps.Vendor.Vend(ctx, order.OrderID, order.MeterID, order.ProductAmount)
	if err != nil {
		return nil, o.recordVendFailure(ctx, order, attempt, err)
	}

	rec := &types.GeneratedToken{
		OrderID:   order.OrderID,
		TokenCode: tokenCode,
		MeterID:   order.MeterID,
		Amount:    order.ProductAmount,
	}
	if err := o.deps.Orders.UpsertGeneratedToken(ctx, rec); err != nil {
		return nil, err
	}
	if _, err := o.deps.Orders.Transition(ctx, order.OrderID,
		[]types.OrderStatus{types.OrderPaymentSettled, types.OrderVendingFailed}, types.OrderVended); err != nil {
		return nil, err
	}

	o.deps.Metrics.Count(ctx, types.MetricTokenVended, map[string]string{
		types.DimTokenType: string(order.TokenType),
	})
	o.deps.Logger.InfoContext(ctx, "token vended",
		slog.String("order_id", order.OrderID),
		slog.String("meter_id", order.MeterID),
	)
	return rec, nil
}

// recordVendFailure parks the order in vending_failed and enqueues a retry
// while the budget allows. The returned error always carries vending_failure.
func (o *Orchestrator) recordVendFailure(ctx context.Context, order *types.Order, attempt int, cause error) error {
	if _, err := o.deps.Orders.Transition(ctx, order.OrderID,
		[]types.OrderStatus{types.OrderPaymentSettled}, types.OrderVendingFailed); err != nil {
		o.deps.Logger.ErrorContext(ctx, "failed to record vending failure",
			slog.String("order_id", order.OrderID),
			slog.String("error", err.Error()),
		)
	}

	o.deps.Metrics.Count(ctx, types.MetricVendingFailure, map[string]string{
		types.DimTokenType: string(order.TokenType),
	})
	o.deps.Logger.ErrorContext(ctx, "vending failed",
		slog.String("order_id", order.OrderID),
		slog.Int("attempt", attempt),
		slog.String("error", cause.Error()),
	)

	if attempt <= types.MaxVendRetryAttempts && o.deps.Retries != nil {
		if err := o.deps.Retries.PublishVendRetry(ctx, order.OrderID, attempt, vendFailureReason(cause)); err != nil {
			o.deps.Logger.ErrorContext(ctx, "failed to enqueue vend retry",
				slog.String("order_id", order.OrderID),
				slog.String("error", err.Error()),
			)
		}
	}

	return types.NewAppError(types.ErrCodeVendingFailure,
		fmt.Sprintf("vending failed for order %s; the order remains eligible for retry", order.OrderID), cause)
}

// vendFailureReason condenses a vending error into a short operator note
// for the retry message.
func vendFailureReason(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return string(appErr.Code)
	}
	return "vend_error"
}

// loadService resolves the (customer, service) pair or fails with the
// appropriate not-found code.
func (o *Orchestrator) loadService(ctx context.Context, customerID, serviceID string) (*types.Customer, *types.CustomerService, error) {
	customer, err := o.deps.Customers.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}
	if customer == nil {
		return nil, nil, types.NewAppError(types.ErrCodeNotFoundCustomer,
			fmt.Sprintf("customer %s not found", customerID), nil)
	}
	svc := customer.FindService(serviceID)
	if svc == nil {
		return nil, nil, types.NewAppError(types.ErrCodeNotFoundService,
			fmt.Sprintf("service %s not found for customer %s", serviceID, customerID), nil)
	}
	return customer, svc, nil
}

// price derives the service's current configuration and computes the
// breakdown. Blocked services (inactive, or an inconsistent vendor setup)
// reject the purchase; an unpriced path degrades to the raw nominal with a
// warning instead.
func (o *Orchestrator) price(ctx context.Context, customer *types.Customer, svc *types.CustomerService, nominal types.Rupiah, sel types.DiscountSelection) (types.PriceBreakdown, pricing.Resolution, error) {
	status, reason, err := o.deps.Resolver.ServiceStatus(ctx, svc, customer.TransactionActive)
	if err != nil {
		return types.PriceBreakdown{}, pricing.Resolution{}, err
	}
	switch status {
	case types.ServiceInactive, types.ServiceError:
		return types.PriceBreakdown{}, pricing.Resolution{}, types.NewAppErrorWithDetails(
			types.ErrCodePurchaseServiceBlocked,
			fmt.Sprintf("service %s cannot accept purchases", svc.ServiceID),
			nil,
			map[string]any{"status": string(status), "reason": reason},
		)
	}

	res, err := o.deps.Resolver.ResolvePrice(ctx, svc.TokenType, svc.Area, svc.Project, svc.VendorName)
	if err != nil {
		return types.PriceBreakdown{}, pricing.Resolution{}, err
	}

	tuple := res.Tuple // zero tuple (no fees, no tax) when not configured

	breakdown, err := o.deps.Calculator.ComputePrice(svc.TokenType, nominal, tuple, sel, customer.LoyaltyPoints)
	if err != nil {
		return types.PriceBreakdown{}, res, err
	}
	if res.Outcome == pricing.OutcomeNotConfigured {
		breakdown.Warnings = append(breakdown.Warnings,
			fmt.Sprintf("price path is not configured (%s); charging the raw purchase amount", res.Reason))
	}
	return breakdown, res, nil
}

// ServiceView is one customer service annotated with its derived status.
type ServiceView struct {
	Service types.CustomerService `json:"service"`
	Status  types.ServiceStatus   `json:"status"`
	Reason  string                `json:"reason,omitempty"`
}

// ListServices returns the customer's services with statuses derived from
// the current hierarchy and vendor registry.
func (o *Orchestrator) ListServices(ctx context.Context, customerID string) ([]ServiceView, error) {
	customer, err := o.deps.Customers.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundCustomer,
			fmt.Sprintf("customer %s not found", customerID), nil)
	}

	views := make([]ServiceView, 0, len(customer.Services))
	for i := range customer.Services {
		svc := &customer.Services[i]
		status, reason, err := o.deps.Resolver.ServiceStatus(ctx, svc, customer.TransactionActive)
		if err != nil {
			return nil, err
		}
		views = append(views, ServiceView{Service: *svc, Status: status, Reason: reason})
	}
	return views, nil
}

// ReissueCustomerID re-keys a customer whose identifier form no longer
// matches their service set: a placeholder customer who gained services
// picks up a sequenced identifier, a sequenced customer who lost all
// services drops back to a placeholder. A customer whose identifier
// already matches is left untouched. Returns the customer's current
// identifier either way.
func (o *Orchestrator) ReissueCustomerID(ctx context.Context, customerID string) (string, error) {
	customer, err := o.deps.Customers.GetCustomer(ctx, customerID)
	if err != nil {
		return "", err
	}
	if customer == nil {
		return "", types.NewAppError(types.ErrCodeNotFoundCustomer,
			fmt.Sprintf("customer %s not found", customerID), nil)
	}

	placeholder := strings.HasPrefix(customer.CustomerID, sequencer.PendingPrefix+"-")
	hasServices := len(customer.Services) > 0
	if placeholder != hasServices {
		return customer.CustomerID, nil
	}

	seen := make(map[types.TokenType]bool, len(customer.Services))
	serviceTypes := make([]types.TokenType, 0, len(customer.Services))
	for _, svc := range customer.Services {
		if !seen[svc.TokenType] {
			seen[svc.TokenType] = true
			serviceTypes = append(serviceTypes, svc.TokenType)
		}
	}

	newID := o.deps.Sequencer.NextCustomerID(ctx, o.now(), serviceTypes)
	if err := o.deps.Customers.UpdateCustomerID(ctx, customer.CustomerID, newID); err != nil {
		return "", err
	}

	o.deps.Logger.InfoContext(ctx, "customer identifier reissued",
		slog.String("old_customer_id", customer.CustomerID),
		slog.String("new_customer_id", newID),
	)
	return newID, nil
}
