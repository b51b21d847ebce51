package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/beampay-service/beampay_service/internal/adapters/beamnode"
	"github.com/beampay-service/beampay_service/internal/adapters/pricefeed"
	"github.com/beampay-service/beampay_service/internal/adapters/telegram"
	"github.com/beampay-service/beampay_service/internal/api/routes"
	"github.com/beampay-service/beampay_service/internal/domain/services"
	"github.com/beampay-service/beampay_service/internal/infrastructure/alerting"
	"github.com/beampay-service/beampay_service/internal/infrastructure/cache"
	"github.com/beampay-service/beampay_service/internal/infrastructure/config"
	"github.com/beampay-service/beampay_service/internal/infrastructure/database"
	"github.com/beampay-service/beampay_service/internal/infrastructure/repositories"
	"github.com/beampay-service/beampay_service/internal/workers/ledgersync"
	"github.com/beampay-service/beampay_service/internal/workers/metadatasync"
	"github.com/beampay-service/beampay_service/internal/workers/webhookdispatch"
	"github.com/beampay-service/beampay_service/pkg/graceful"
	"github.com/beampay-service/beampay_service/pkg/logger"
	"github.com/beampay-service/beampay_service/pkg/ratelimit"
	"github.com/beampay-service/beampay_service/pkg/tracing"
)

// @title BeamPay Gateway API
// @version 1.0
// @description Custodial payment gateway for the BEAM confidential asset chain.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key in id.secret form, issued through the admin surface.

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	tracingShutdown, err := tracing.InitTracer(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}
	defer tracingShutdown(context.Background())

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	if err := database.EnsureIndexes(startupCtx, db); err != nil {
		log.Fatal("Failed to ensure indexes", "error", err)
	}

	redisClient, err := cache.NewRedisClient(&cfg.Redis, log.Zap())
	if err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Repositories
	addressRepo := repositories.NewAddressRepository(db)
	transactionRepo := repositories.NewTransactionRepository(db)
	assetRepo := repositories.NewAssetRepository(db)
	withdrawalRepo := repositories.NewWithdrawalRepository(db)
	webhookRepo := repositories.NewWebhookRepository(db)
	apiKeyRepo := repositories.NewAPIKeyRepository(db)
	idempotencyRepo := repositories.NewIdempotencyRepository(db, log.Zap())

	// Wallet node
	nodeClient := beamnode.NewClient(beamnode.Config{
		RPCURL:  cfg.Node.RPCURL,
		Timeout: time.Duration(cfg.Node.Timeout) * time.Second,
	}, log.Zap())

	// Operator alerting
	var sinks []alerting.Sink
	telegramClient := telegram.NewClient(telegram.Config{
		BotToken: cfg.Alerts.TelegramBotToken,
		ChatID:   cfg.Alerts.TelegramChatID,
		Timeout:  5 * time.Second,
	}, log.Zap())
	if telegramClient.Enabled() {
		sinks = append(sinks, alerting.NewTelegramSink(telegramClient))
	}
	if cfg.Alerts.SendGridAPIKey != "" && cfg.Alerts.EmailTo != "" {
		sinks = append(sinks, alerting.NewEmailSink(cfg.Alerts.SendGridAPIKey, cfg.Alerts.EmailFrom, cfg.Alerts.EmailTo))
	}
	alerts := alerting.New(log, sinks...)

	priceFeed := pricefeed.NewClient(pricefeed.Config{URL: cfg.Gateway.PriceURL}, redisClient, log.Zap())

	// Services
	walletService := services.NewWalletService(nodeClient, addressRepo, transactionRepo, assetRepo, log)
	withdrawalService := services.NewWithdrawalService(nodeClient, addressRepo, withdrawalRepo, services.WithdrawalFees{
		Regular: cfg.Gateway.FeeRegular,
		Offline: cfg.Gateway.FeeOffline,
	}, log)
	webhookService := services.NewWebhookService(webhookRepo, log)
	apiKeyService := services.NewAPIKeyService(apiKeyRepo, log)
	auditor := metadatasync.NewAuditor(nodeClient, addressRepo, log)
	adminService := services.NewAdminService(cfg.Admin, auditor, withdrawalRepo, webhookRepo, log)

	// Endpoints from config subscribe to every event kind
	for _, url := range cfg.Webhooks.URLs {
		if err := webhookService.Register(startupCtx, url, ""); err != nil {
			log.Warn("Failed to register configured webhook", "url", url, "error", err)
		}
	}

	// Reconciliation loops
	fastWorker := ledgersync.NewWorker(ledgersync.Config{
		Interval:              time.Duration(cfg.Gateway.FastInterval) * time.Second,
		PageSize:              cfg.Gateway.TxPageSize,
		ConfirmationThreshold: cfg.Gateway.ConfirmationThreshold,
	}, nodeClient, addressRepo, transactionRepo, withdrawalRepo, alerts, log)

	slowWorker := metadatasync.NewWorker(metadatasync.Config{
		Schedule:       fmt.Sprintf("@every %ds", cfg.Gateway.SlowInterval),
		DexContractID:  cfg.Gateway.DexContractID,
		VerifiedAssets: cfg.Gateway.VerifiedAssets,
		SpamAssets:     cfg.Gateway.SpamAssets,
	}, nodeClient, addressRepo, assetRepo, priceFeed, redisClient, alerts, log)

	webhookWorker := webhookdispatch.NewWorker(webhookdispatch.Config{
		Interval:              time.Duration(cfg.Gateway.WebhookInterval) * time.Second,
		PostTimeout:           time.Duration(cfg.Webhooks.Timeout) * time.Second,
		MaxAttempts:           cfg.Webhooks.MaxRetries,
		ConfirmationThreshold: cfg.Gateway.ConfirmationThreshold,
	}, transactionRepo, addressRepo, assetRepo, webhookRepo, alerts, log)

	runCtx := context.Background()
	if err := fastWorker.Start(runCtx); err != nil {
		log.Fatal("Failed to start ledger sync worker", "error", err)
	}
	if err := slowWorker.Start(runCtx); err != nil {
		log.Fatal("Failed to start metadata sync worker", "error", err)
	}
	if err := webhookWorker.Start(runCtx); err != nil {
		log.Fatal("Failed to start webhook dispatch worker", "error", err)
	}

	router := routes.SetupRoutes(routes.Deps{
		Config:          cfg,
		Logger:          log,
		DB:              db,
		Node:            nodeClient,
		Wallets:         walletService,
		Withdrawals:     withdrawalService,
		Webhooks:        webhookService,
		APIKeys:         apiKeyService,
		Admin:           adminService,
		LoginThrottle:   ratelimit.NewLoginThrottle(redisClient.Client(), log.Zap()),
		IdempotencyKeys: idempotencyRepo,
	})

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	shutdown := graceful.NewShutdownManager(server, db, log)
	shutdown.Register(fastWorker)
	shutdown.Register(slowWorker)
	shutdown.Register(webhookWorker)

	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
			"node_rpc", cfg.Node.RPCURL,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	shutdown.WaitForShutdown()

	if err := redisClient.Close(); err != nil {
		log.Warn("Redis close error", "error", err)
	}
}
