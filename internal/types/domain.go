package types

import "time"

// VendorRef is a name pointer from a hierarchy node into the global vendor
// registry. It deliberately carries nothing but the name: authority over
// pricing and capability always comes from re-joining against the registry
// at read time, so a stale copy can never become silent truth.
type VendorRef struct {
	Name string `json:"name"`
}

// Project is a named group of vendor references under an area.
type Project struct {
	Name    string      `json:"name"`
	Vendors []VendorRef `json:"vendors"`
}

// Area is the top level of the pricing hierarchy for one token type.
type Area struct {
	Name     string    `json:"name"`
	Projects []Project `json:"projects"`
}

// AreaHierarchy is the persisted Area -> Project -> Vendor tree for a single
// token type. Names are unique within their parent scope.
type AreaHierarchy struct {
	TokenType TokenType `json:"token_type"`
	Areas     []Area    `json:"areas"`
}

// FindArea returns the named area, or nil when absent.
func (h *AreaHierarchy) FindArea(name string) *Area {
	for i := range h.Areas {
		if h.Areas[i].Name == name {
			return &h.Areas[i]
		}
	}
	return nil
}

// FindProject returns the named project within the area, or nil when absent.
func (a *Area) FindProject(name string) *Project {
	for i := range a.Projects {
		if a.Projects[i].Name == name {
			return &a.Projects[i]
		}
	}
	return nil
}

// HasVendor reports whether the project references the named vendor.
func (p *Project) HasVendor(name string) bool {
	for _, v := range p.Vendors {
		if v.Name == name {
			return true
		}
	}
	return false
}

// VendorRecord is an entry in the global vendor registry. A vendor may appear
// in a hierarchy path for token type T only if T is in HandledServices; the
// rule is enforced at write time and re-validated at read time because the
// registry and hierarchy are edited independently and can drift.
type VendorRecord struct {
	ID              string      `json:"id" db:"id"`
	Name            string      `json:"name" db:"name"`
	HandledServices []TokenType `json:"handled_services" db:"handled_services"`
	ContactInfo     string      `json:"contact_info,omitempty" db:"contact_info"`
	AuthRef         string      `json:"auth_ref,omitempty" db:"auth_ref"`
}

// Handles reports whether the vendor is authorized for the given token type.
func (v *VendorRecord) Handles(t TokenType) bool {
	for _, s := range v.HandledServices {
		if s == t {
			return true
		}
	}
	return false
}

// PriceSetting is the raw stored price configuration for a fully qualified
// (tokenType, area, project, vendor) path. All numeric fields are free-form
// strings as persisted by the admin tooling; they are parsed into a
// PriceTuple at the pricing boundary and never propagated raw beyond it.
type PriceSetting struct {
	TokenType  TokenType `json:"token_type" db:"token_type"`
	Area       string    `json:"area" db:"area"`
	Project    string    `json:"project" db:"project"`
	Vendor     string    `json:"vendor" db:"vendor"`
	BasePrice  string    `json:"base_price" db:"base_price"`
	TaxPercent string    `json:"tax_percent" db:"tax_percent"`
	AdminFee   string    `json:"admin_fee" db:"admin_fee"`
	OtherCosts string    `json:"other_costs" db:"other_costs"`
}

// PriceTuple is the parsed price configuration for one pricing path.
// Unset fields (absent or malformed in storage) are explicit, not zero.
type PriceTuple struct {
	BasePrice  RupiahField  `json:"base_price"`
	TaxPercent PercentField `json:"tax_percent"`
	AdminFee   RupiahField  `json:"admin_fee"`
	OtherCosts RupiahField  `json:"other_costs"`
}

// CustomerService is one utility subscription embedded in a customer record.
// Its lifecycle is tied to the owning customer; it is not a standalone entity.
type CustomerService struct {
	ServiceID     string    `json:"service_id"`
	TokenType     TokenType `json:"token_type"`
	Area          string    `json:"area"`
	Project       string    `json:"project"`
	VendorName    string    `json:"vendor_name"`
	PowerOrVolume string    `json:"power_or_volume"`
	// MeterID is the meter or service point number sent to the vending API.
	MeterID string `json:"meter_id"`
	// TransactionActive gates purchases on this specific service.
	TransactionActive bool `json:"transaction_active"`
}

// Complete reports whether every identifying field is non-empty. Validity on
// top of completeness (path exists, vendor authorized) is derived by the
// pricing resolver on every read.
func (s *CustomerService) Complete() bool {
	return s.ServiceID != "" &&
		s.TokenType != "" &&
		s.Area != "" &&
		s.Project != "" &&
		s.VendorName != ""
}

// Customer is a registered buyer. CustomerID is either a sequencer-issued
// value (SAI-<MMYY>-<code>-<seq>) or a PENDING-<rand4> placeholder for
// customers with zero services; crossing the zero-services boundary in
// either direction forces re-issuance.
type Customer struct {
	CustomerID        string            `json:"customer_id" db:"customer_id"`
	Name              string            `json:"name" db:"name"`
	Email             string            `json:"email" db:"email"`
	Phone             string            `json:"phone,omitempty" db:"phone"`
	Services          []CustomerService `json:"services" db:"services"`
	LoyaltyPoints     int64             `json:"loyalty_points" db:"loyalty_points"`
	TransactionActive bool              `json:"transaction_active" db:"transaction_active"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

// FindService returns the customer's service with the given ID, or nil.
func (c *Customer) FindService(serviceID string) *CustomerService {
	for i := range c.Services {
		if c.Services[i].ServiceID == serviceID {
			return &c.Services[i]
		}
	}
	return nil
}

// Counter is a monthly per-type-code sequence document. Created on first
// use, monotonically incremented, never deleted. Sequences are best-effort
// unique and not gap-free.
type Counter struct {
	Period       string `json:"period" db:"period"`
	TypeCode     string `json:"type_code" db:"type_code"`
	LastSequence int64  `json:"last_sequence" db:"last_sequence"`
}

// Order is one purchase moving through the settlement pipeline. OrderID is
// globally unique and is the idempotency key for vending.
type Order struct {
	OrderID        string         `json:"order_id" db:"order_id"`
	CustomerID     string         `json:"customer_id" db:"customer_id"`
	ServiceID      string         `json:"service_id" db:"service_id"`
	TokenType      TokenType      `json:"token_type" db:"token_type"`
	MeterID        string         `json:"meter_id" db:"meter_id"`
	ProductAmount  Rupiah         `json:"product_amount" db:"product_amount"`
	AdminFee       Rupiah         `json:"admin_fee" db:"admin_fee"`
	TaxAmount      Rupiah         `json:"tax_amount" db:"tax_amount"`
	OtherCosts     Rupiah         `json:"other_costs" db:"other_costs"`
	DiscountAmount Rupiah         `json:"discount_amount" db:"discount_amount"`
	DiscountSource DiscountSource `json:"discount_source" db:"discount_source"`
	Subtotal       Rupiah         `json:"subtotal" db:"subtotal"`
	TotalPayment   Rupiah         `json:"total_payment" db:"total_payment"`
	Status         OrderStatus    `json:"status" db:"status"`
	SessionToken   string         `json:"-" db:"session_token"`
	RedirectURL    string         `json:"redirect_url,omitempty" db:"redirect_url"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// GeneratedToken is the persisted result of a successful vend, keyed by
// order ID so that retries short-circuit instead of dispensing twice.
type GeneratedToken struct {
	OrderID   string    `json:"order_id" db:"order_id"`
	TokenCode string    `json:"token_code" db:"token_code"`
	MeterID   string    `json:"meter_id" db:"meter_id"`
	Amount    Rupiah    `json:"amount" db:"amount"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PriceBreakdown is the output of the price calculator. Subtotal is carried
// alongside TotalPayment so UIs can show strike-through pricing; it is a
// required field, not derivable cosmetics.
type PriceBreakdown struct {
	ProductAmount  Rupiah         `json:"product_amount"`
	AdminFee       Rupiah         `json:"admin_fee"`
	TaxAmount      Rupiah         `json:"tax_amount"`
	OtherCosts     Rupiah         `json:"other_costs"`
	Subtotal       Rupiah         `json:"subtotal"`
	DiscountAmount Rupiah         `json:"discount_amount"`
	DiscountSource DiscountSource `json:"discount_source"`
	// DiscountNote carries a human-readable reason when a requested discount
	// was not applied (unknown voucher, empty points balance). The purchase
	// proceeds without the discount; this is not an error.
	DiscountNote string `json:"discount_note,omitempty"`
	TotalPayment Rupiah `json:"total_payment"`
	// Warnings surface non-blocking configuration problems, e.g. an
	// unpriced path falling back to the raw nominal amount.
	Warnings []string `json:"warnings,omitempty"`
}

// DiscountSelection is the buyer's requested discount at quote time.
// Selecting one source clears the other in the UI; the calculator defends
// the invariant again and prefers the voucher when both are supplied.
type DiscountSelection struct {
	VoucherCode  string `json:"voucher_code,omitempty"`
	RedeemPoints bool   `json:"redeem_points,omitempty"`
}

// Buyer is the payer identity forwarded to the payment gateway session.
type Buyer struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
}

// PaymentSession is the gateway's handle for a hosted checkout.
type PaymentSession struct {
	SessionToken string `json:"session_token"`
	RedirectURL  string `json:"redirect_url"`
}

// RedirectURLs guide the buyer back from the gateway's hosted payment page.
type RedirectURLs struct {
	Success string
	Cancel  string
}

// GatewayCallback is the notification delivered by the payment gateway after
// the buyer finishes (or abandons) the hosted payment page. Delivery is
// at-least-once and possibly out of order; every consumer must be a no-op on
// repeat.
type GatewayCallback struct {
	OrderID       string        `json:"order_id"`
	GatewayStatus GatewayStatus `json:"transaction_status"`
	StatusCode    string        `json:"status_code"`
	GrossAmount   string        `json:"gross_amount"`
	Signature     string        `json:"signature_key"`
}
