package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricOrderCreated          = "OrderCreated"
	MetricPaymentSettled        = "PaymentSettled"
	MetricOrderAbandoned        = "OrderAbandoned"
	MetricTokenVended           = "TokenVended"
	MetricVendingFailure        = "VendingFailure"
	MetricVendingRetry          = "VendingRetry"
	MetricGatewaySessionFailure = "GatewaySessionFailure"
	MetricSequencerFallback     = "SequencerFallback"
	MetricDiscountConflict      = "DiscountConflict"
	MetricAPILatency            = "APILatency"
	MetricAPIRequestCount       = "APIRequestCount"

	// Dimension Keys
	DimTokenType = "TokenType"
	DimEndpoint  = "Endpoint"
	DimMethod    = "Method"
	DimStatus    = "Status"
	DimProvider  = "Provider"

	// Metric Namespace
	MetricNamespace = "TokenPoint"
)
