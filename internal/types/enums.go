package types

// TokenType identifies the utility product a prepaid token is issued for.
type TokenType string

const (
	TokenElectricity TokenType = "electricity"
	TokenWater       TokenType = "water"
	TokenGas         TokenType = "gas"
	TokenSolar       TokenType = "solar"
)

// Code returns the single-letter type code used in sequenced identifiers.
func (t TokenType) Code() string {
	switch t {
	case TokenElectricity:
		return "L"
	case TokenWater:
		return "A"
	case TokenGas:
		return "G"
	case TokenSolar:
		return "S"
	default:
		return "X"
	}
}

// Valid reports whether t is one of the known token types.
func (t TokenType) Valid() bool {
	switch t {
	case TokenElectricity, TokenWater, TokenGas, TokenSolar:
		return true
	}
	return false
}

// MixedTypeCode is the identifier type code for customers subscribed to
// services of more than one token type.
const MixedTypeCode = "M"

// OrderStatus represents the settlement lifecycle state of an order.
//
// Transitions:
//
//	created -> payment_pending -> payment_settled -> vended
//	payment_pending -> abandoned
//	payment_settled -> vending_failed (re-vendable against the same order ID)
//
// vended and abandoned are terminal and never regress.
type OrderStatus string

const (
	OrderCreated        OrderStatus = "created"
	OrderPaymentPending OrderStatus = "payment_pending"
	OrderPaymentSettled OrderStatus = "payment_settled"
	OrderVended         OrderStatus = "vended"
	OrderVendingFailed  OrderStatus = "vending_failed"
	OrderAbandoned      OrderStatus = "abandoned"
)

// Terminal reports whether the status permits no further transitions.
// vending_failed is deliberately NOT terminal: the order stays eligible
// for re-vending.
func (s OrderStatus) Terminal() bool {
	return s == OrderVended || s == OrderAbandoned
}

// ServiceStatus is the derived health of a customer service. It is computed
// on every read from the current hierarchy and vendor registry, never stored.
type ServiceStatus string

const (
	// ServiceOK means the service resolves to a configured price path.
	ServiceOK ServiceStatus = "ok"
	// ServiceNeedsConfiguration means the path exists but no price tuple has
	// been set up yet; purchases fall back to the raw nominal amount.
	ServiceNeedsConfiguration ServiceStatus = "needs_configuration"
	// ServiceError means the hierarchy and vendor registry disagree about
	// this service's vendor; purchases are blocked until repaired.
	ServiceError ServiceStatus = "error"
	// ServiceInactive means the service (or its owning customer) is switched
	// off for transactions.
	ServiceInactive ServiceStatus = "inactive"
)

// GatewayStatus is the transaction status reported by the payment gateway
// callback. Values follow the hosted-gateway convention: settlement and
// capture both mean funds were captured.
type GatewayStatus string

const (
	GatewaySettlement GatewayStatus = "settlement"
	GatewayCapture    GatewayStatus = "capture"
	GatewayPending    GatewayStatus = "pending"
	GatewayDeny       GatewayStatus = "deny"
	GatewayCancel     GatewayStatus = "cancel"
	GatewayExpire     GatewayStatus = "expire"
	GatewayFailure    GatewayStatus = "failure"
)

// Settled reports whether the gateway status means funds were captured.
func (s GatewayStatus) Settled() bool {
	return s == GatewaySettlement || s == GatewayCapture
}

// DiscountSource identifies which discount mechanism priced an order.
// Voucher and points are mutually exclusive on a single order.
type DiscountSource string

const (
	DiscountNone    DiscountSource = "none"
	DiscountVoucher DiscountSource = "voucher"
	DiscountPoints  DiscountSource = "points"
)
