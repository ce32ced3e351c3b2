// Package main is the entry point for the TokenPoint API server.
//
// It loads configuration, connects the database pool, wires the pricing
// engine, sequencer, external clients, and the settlement orchestrator, then
// serves the HTTP API with graceful shutdown on SIGINT/SIGTERM.
//
// In local mode (APP_ENV=local) the payment gateway and vending provider are
// replaced with logging stubs and AWS wiring (SQS, CloudWatch) is skipped,
// so the server runs against nothing but a Postgres instance.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tokenpoint/internal/api/handlers"
	"tokenpoint/internal/config"
	"tokenpoint/internal/core"
	"tokenpoint/internal/db"
	"tokenpoint/internal/external"
	"tokenpoint/internal/pricing"
	"tokenpoint/internal/queue"
	"tokenpoint/internal/sequencer"
	"tokenpoint/internal/settlement"
	"tokenpoint/internal/telemetry"
	"tokenpoint/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("tokenpoint API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}

	// Repositories.
	orders := db.NewOrderRepo(pool)
	customers := db.NewCustomerRepo(pool)
	counters := db.NewCounterRepo(pool)
	hierarchy := db.NewHierarchyRepo(pool)
	vendors := db.NewVendorRepo(pool)

	// Pricing engine.
	vouchers, err := config.ParseVoucherTable(cfg.Pricing.VoucherTable)
	if err != nil {
		return fmt.Errorf("parsing voucher table: %w", err)
	}
	discounts := pricing.NewDiscountEngine(vouchers, cfg.Pricing.PointsCap, types.Rupiah(cfg.Pricing.PointsRate))
	rules := pricing.Rules{
		MinTotal: types.Rupiah(cfg.Pricing.MinTotal),
		Granularity: map[types.TokenType]types.Rupiah{
			types.TokenElectricity: types.Rupiah(cfg.Pricing.ElectricityGranularity),
		},
	}
	calculator := pricing.NewCalculator(rules, discounts, logger)
	resolver := pricing.NewResolver(hierarchy, vendors, logger)

	// External providers and AWS wiring. Local mode runs on stubs and skips
	// AWS entirely; metrics and retry publishing stay nil (the orchestrator
	// treats nil as no-op).
	var (
		gateway    external.PaymentGateway
		vendor     external.TokenVendor
		collector  *telemetry.Collector
		apiMetrics core.MetricsCollector
		retries    settlement.RetryPublisher
	)
	if cfg.Environment == "local" {
		gateway = external.NewStubGateway(logger)
		vendor = external.NewStubVendor(logger)
	} else {
		awsCfg, awsErr := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Queue.Region))
		if awsErr != nil {
			return fmt.Errorf("loading AWS config: %w", awsErr)
		}
		collector = telemetry.NewCollector(cloudwatch.NewFromConfig(awsCfg), logger)
		apiMetrics = telemetry.NewAPIMetrics(collector)
		retries = queue.NewVendRetryPublisher(sqs.NewFromConfig(awsCfg), cfg.Queue, logger)

		gateway = external.NewGatewayClient(
			&http.Client{Timeout: cfg.Gateway.Timeout},
			external.GatewayClientConfig{
				BaseURL:   cfg.Gateway.BaseURL,
				ServerKey: cfg.Gateway.ServerKey.Unmask(),
				Logger:    logger,
			},
		)
		vendor = external.NewVendingClient(
			&http.Client{Timeout: cfg.Vending.Timeout},
			external.VendingClientConfig{
				BaseURL: cfg.Vending.BaseURL,
				APIKey:  cfg.Vending.APIKey.Unmask(),
				Logger:  logger,
			},
		)
	}

	seqOpts := []sequencer.Option{}
	if collector != nil {
		seqOpts = append(seqOpts, sequencer.WithFallbackHook(func() {
			collector.Count(context.Background(), types.MetricSequencerFallback, nil)
		}))
	}
	seq := sequencer.New(counters, logger, seqOpts...)

	deps := settlement.Deps{
		Orders:     orders,
		Customers:  customers,
		Resolver:   resolver,
		Calculator: calculator,
		Discounts:  discounts,
		Sequencer:  seq,
		Gateway:    gateway,
		Vendor:     vendor,
		Verifier:   external.NewDigestVerifier(cfg.Gateway.ServerKey.Unmask()),
		Retries:    retries,
		RedirectURLs: types.RedirectURLs{
			Success: cfg.Server.PublicURL + "/payment/success",
			Cancel:  cfg.Server.PublicURL + "/payment/cancel",
		},
		Logger: logger,
	}
	if collector != nil {
		deps.Metrics = collector
	}
	orchestrator := settlement.New(deps)

	// HTTP chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = apiMetrics
	srv.HealthProbes = []core.HealthProbe{dbProbe{pool: pool}}
	srv.OnShutdown(func(context.Context) error {
		pool.Close()
		return nil
	})

	purchaseHandler := handlers.NewPurchaseHandler(orchestrator, srv.Validator, logger)
	webhookHandler := handlers.NewGatewayWebhookHandler(orchestrator, logger)
	servicesHandler := handlers.NewServicesHandler(orchestrator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { purchaseHandler.RegisterRoutes(r) },
		func(r chi.Router) { webhookHandler.RegisterRoutes(r) },
		func(r chi.Router) { servicesHandler.RegisterRoutes(r) },
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// dbProbe reports database health for the /health endpoint.
type dbProbe struct {
	pool *pgxpool.Pool
}

func (p dbProbe) Name() string { return "database" }

func (p dbProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
