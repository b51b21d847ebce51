package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/beampay-service/beampay_service/internal/adapters/beamnode"
	"github.com/beampay-service/beampay_service/internal/api/handlers"
	adminhandlers "github.com/beampay-service/beampay_service/internal/api/handlers/admin"
	"github.com/beampay-service/beampay_service/internal/api/middleware"
	"github.com/beampay-service/beampay_service/internal/domain/services"
	"github.com/beampay-service/beampay_service/internal/infrastructure/config"
	"github.com/beampay-service/beampay_service/internal/infrastructure/repositories"
	"github.com/beampay-service/beampay_service/pkg/idempotency"
	"github.com/beampay-service/beampay_service/pkg/logger"
	"github.com/beampay-service/beampay_service/pkg/ratelimit"
	"github.com/beampay-service/beampay_service/pkg/tracing"
)

// Each API key may burn through this many requests per second before the
// limiter pushes back.
const perKeyRatePerSec = 10

// Deps carries everything the router needs wired in
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              *mongo.Database
	Node            *beamnode.Client
	Wallets         *services.WalletService
	Withdrawals     *services.WithdrawalService
	Webhooks        *services.WebhookService
	APIKeys         *services.APIKeyService
	Admin           *services.AdminService
	LoginThrottle   *ratelimit.LoginThrottle
	IdempotencyKeys *repositories.IdempotencyRepository
}

// SetupRoutes configures all application routes
func SetupRoutes(deps Deps) *gin.Engine {
	router := gin.New()

	// Global middleware - order matters
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS(deps.Config.Server.AllowedOrigins))
	router.Use(middleware.RateLimit(deps.Config.Server.RateLimitPerSec))
	router.Use(middleware.SecurityHeaders())

	coreHandlers := handlers.NewCoreHandlers(deps.DB, deps.Node, deps.Logger)
	walletHandlers := handlers.NewWalletHandlers(deps.Wallets, deps.Logger)
	withdrawalHandlers := handlers.NewWithdrawalHandlers(deps.Withdrawals, deps.Logger)
	webhookHandlers := handlers.NewWebhookHandlers(deps.Webhooks, deps.Logger)
	transactionHandlers := handlers.NewTransactionHandlers(deps.Wallets, deps.Logger)
	assetHandlers := handlers.NewAssetHandlers(deps.Wallets, deps.Logger)
	adminHandlers := adminhandlers.NewAdminHandlers(deps.Admin, deps.APIKeys, deps.LoginThrottle, deps.Logger)

	// Probes and metrics stay unauthenticated
	router.GET("/health", coreHandlers.Health)
	router.GET("/metrics", coreHandlers.Metrics)

	// Swagger UI shares the admin credentials
	swagger := router.Group("/swagger", gin.BasicAuth(gin.Accounts{
		deps.Config.Admin.Username: deps.Config.Admin.Password,
	}))
	swagger.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Consumer API, authenticated by X-API-Key
	api := router.Group("/api/v1")
	api.Use(middleware.APIKeyAuth(deps.APIKeys, perKeyRatePerSec))
	api.Use(idempotency.Middleware(deps.IdempotencyKeys, deps.Logger.Zap()))
	{
		api.POST("/wallets", walletHandlers.CreateWallet)
		api.POST("/addresses", walletHandlers.CreateAddress)
		api.GET("/addresses/:address/balances", walletHandlers.GetBalances)
		api.GET("/addresses/:address/deposits", walletHandlers.GetDeposits)
		api.GET("/addresses/:address/transactions", walletHandlers.GetTransactions)

		api.POST("/withdrawals", withdrawalHandlers.InitiateWithdrawal)
		api.GET("/withdrawals/:id", withdrawalHandlers.GetWithdrawal)

		api.POST("/webhooks", webhookHandlers.RegisterWebhook)
		api.GET("/webhooks", webhookHandlers.ListWebhooks)
		api.DELETE("/webhooks", webhookHandlers.RemoveWebhook)

		api.GET("/transactions/:txid", transactionHandlers.GetTransaction)
		api.DELETE("/transactions/:txid", transactionHandlers.CancelTransaction)

		api.GET("/assets", assetHandlers.ListAssets)
	}

	// Operator surface, JWT after login
	admin := router.Group("/admin")
	admin.POST("/login", adminHandlers.Login)

	guarded := admin.Group("")
	guarded.Use(middleware.AdminAuth(deps.Config.Admin.JWTSecret))
	{
		guarded.GET("/balances", adminHandlers.Balances)
		guarded.GET("/withdrawals", adminHandlers.Withdrawals)
		guarded.POST("/withdrawals/:id/requeue", adminHandlers.RequeueWithdrawal)
		guarded.GET("/failed-webhooks", adminHandlers.FailedWebhooks)

		guarded.POST("/api-keys", adminHandlers.IssueAPIKey)
		guarded.GET("/api-keys", adminHandlers.ListAPIKeys)
		guarded.DELETE("/api-keys/:id", adminHandlers.DisableAPIKey)
	}

	return router
}
