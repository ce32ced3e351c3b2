// Package main is the entry point for the Vend Worker Lambda function.
//
// The worker consumes vend-retry messages from SQS and re-drives token
// vending through the settlement orchestrator. Each message is processed
// independently; failures are reported via partial batch responses so SQS
// redelivers only the failed messages. A message whose retry budget is
// exhausted is acknowledged and the order stays parked in vending_failed
// for manual reconciliation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"tokenpoint/internal/config"
	"tokenpoint/internal/db"
	"tokenpoint/internal/external"
	"tokenpoint/internal/pricing"
	"tokenpoint/internal/queue"
	"tokenpoint/internal/sequencer"
	"tokenpoint/internal/settlement"
	"tokenpoint/internal/telemetry"
	"tokenpoint/internal/types"
)

// VendRetrier re-drives vending for a parked order. Implemented by
// settlement.Orchestrator.
type VendRetrier interface {
	RetryVending(ctx context.Context, msg types.VendRetryMessage) error
}

// Handler holds the dependencies for the vend worker Lambda handler.
type Handler struct {
	orchestrator VendRetrier
	logger       *slog.Logger
}

// maxConcurrentRetries bounds parallel vend calls per batch; each retry is
// an independent order, so concurrency is limited only to be polite to the
// vending upstream.
const maxConcurrentRetries = 4

// Handle processes an SQS event containing one or more vend-retry messages.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentRetries)

	for _, record := range sqsEvent.Records {
		record := record
		g.Go(func() error {
			if err := h.processRecord(ctx, record); err != nil {
				h.logger.Error("failed to process vend retry message",
					"message_id", record.MessageId,
					"error", err.Error(),
				)
				mu.Lock()
				response.BatchItemFailures = append(response.BatchItemFailures,
					events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
				)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return response, nil
}

// processRecord handles a single retry message. A body that does not parse
// is acknowledged rather than retried: redelivery cannot fix a malformed
// message.
func (h *Handler) processRecord(ctx context.Context, record events.SQSMessage) error {
	var msg types.VendRetryMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		h.logger.Error("failed to unmarshal vend retry message",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}

	if msg.TraceID != "" {
		ctx = types.WithRequestID(ctx, msg.TraceID)
	}

	h.logger.InfoContext(ctx, "processing vend retry",
		"order_id", msg.OrderID,
		"attempt", msg.Attempt,
		"reason", msg.Reason,
	)

	if err := h.orchestrator.RetryVending(ctx, msg); err != nil {
		if msg.Attempt+1 > types.MaxVendRetryAttempts {
			// Budget exhausted; the orchestrator has already parked the
			// order. Ack so SQS stops redelivering.
			return nil
		}
		return err
	}

	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("vend worker initializing")

	orchestrator, err := buildOrchestrator(context.Background(), logger)
	if err != nil {
		logger.Error("vend worker initialization failed", "error", err)
		os.Exit(1)
	}

	handler := &Handler{orchestrator: orchestrator, logger: logger}
	lambda.Start(handler.Handle)
}

// buildOrchestrator wires the full settlement pipeline for the worker. The
// worker only calls RetryVending, but vending shares the order store, vendor
// client, retry publisher, and metrics with the API path.
func buildOrchestrator(ctx context.Context, logger *slog.Logger) (*settlement.Orchestrator, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting database: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Queue.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	collector := telemetry.NewCollector(cloudwatch.NewFromConfig(awsCfg), logger)

	vouchers, err := config.ParseVoucherTable(cfg.Pricing.VoucherTable)
	if err != nil {
		return nil, fmt.Errorf("parsing voucher table: %w", err)
	}
	discounts := pricing.NewDiscountEngine(vouchers, cfg.Pricing.PointsCap, types.Rupiah(cfg.Pricing.PointsRate))
	rules := pricing.Rules{
		MinTotal: types.Rupiah(cfg.Pricing.MinTotal),
		Granularity: map[types.TokenType]types.Rupiah{
			types.TokenElectricity: types.Rupiah(cfg.Pricing.ElectricityGranularity),
		},
	}

	hierarchy := db.NewHierarchyRepo(pool)
	vendors := db.NewVendorRepo(pool)
	counters := db.NewCounterRepo(pool)
	seq := sequencer.New(counters, logger, sequencer.WithFallbackHook(func() {
		collector.Count(context.Background(), types.MetricSequencerFallback, nil)
	}))

	vendor := external.NewVendingClient(
		&http.Client{Timeout: cfg.Vending.Timeout},
		external.VendingClientConfig{
			BaseURL: cfg.Vending.BaseURL,
			APIKey:  cfg.Vending.APIKey.Unmask(),
			Logger:  logger,
		},
	)
	gateway := external.NewGatewayClient(
		&http.Client{Timeout: cfg.Gateway.Timeout},
		external.GatewayClientConfig{
			BaseURL:   cfg.Gateway.BaseURL,
			ServerKey: cfg.Gateway.ServerKey.Unmask(),
			Logger:    logger,
		},
	)

	return settlement.New(settlement.Deps{
		Orders:     db.NewOrderRepo(pool),
		Customers:  db.NewCustomerRepo(pool),
		Resolver:   pricing.NewResolver(hierarchy, vendors, logger),
		Calculator: pricing.NewCalculator(rules, discounts, logger),
		Discounts:  discounts,
		Sequencer:  seq,
		Gateway:    gateway,
		Vendor:     vendor,
		Verifier:   external.NewDigestVerifier(cfg.Gateway.ServerKey.Unmask()),
		Retries:    queue.NewVendRetryPublisher(sqs.NewFromConfig(awsCfg), cfg.Queue, logger),
		Metrics:    collector,
		RedirectURLs: types.RedirectURLs{
			Success: cfg.Server.PublicURL + "/payment/success",
			Cancel:  cfg.Server.PublicURL + "/payment/cancel",
		},
		Logger: logger,
	}), nil
}
