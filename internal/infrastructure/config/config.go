package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the gateway
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Node        NodeConfig     `mapstructure:"node"`
	Gateway     GatewayConfig  `mapstructure:"gateway"`
	Webhooks    WebhookConfig  `mapstructure:"webhooks"`
	Alerts      AlertConfig    `mapstructure:"alerts"`
	Admin       AdminConfig    `mapstructure:"admin"`
	Tracing     TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerSec int      `mapstructure:"rate_limit_per_sec"`
}

type DatabaseConfig struct {
	URI            string `mapstructure:"uri"`
	Name           string `mapstructure:"name"`
	ConnectTimeout int    `mapstructure:"connect_timeout"`
	QueryTimeout   int    `mapstructure:"query_timeout"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// NodeConfig points at the wallet node's JSON-RPC endpoint.
type NodeConfig struct {
	RPCURL  string `mapstructure:"rpc_url"`
	Timeout int    `mapstructure:"timeout"`
}

// GatewayConfig drives the reconciliation engine.
type GatewayConfig struct {
	ConfirmationThreshold int     `mapstructure:"confirmation_threshold"`
	TxPageSize            int     `mapstructure:"tx_page_size"`
	FeeRegular            int64   `mapstructure:"fee_regular"`
	FeeOffline            int64   `mapstructure:"fee_offline"`
	VerifiedAssets        []int64 `mapstructure:"verified_assets"`
	SpamAssets            []int64 `mapstructure:"spam_assets"`
	DexContractID         string  `mapstructure:"dex_contract_id"`
	PriceURL              string  `mapstructure:"price_url"`
	FastInterval          int     `mapstructure:"fast_interval"`
	SlowInterval          int     `mapstructure:"slow_interval"`
	WebhookInterval       int     `mapstructure:"webhook_interval"`
}

type WebhookConfig struct {
	URLs       []string `mapstructure:"urls"`
	MaxRetries int      `mapstructure:"max_retries"`
	Timeout    int      `mapstructure:"timeout"`
}

// AlertConfig configures the operator alert sinks.
type AlertConfig struct {
	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	TelegramChatID   string `mapstructure:"telegram_chat_id"`
	SendGridAPIKey   string `mapstructure:"sendgrid_api_key"`
	EmailFrom        string `mapstructure:"email_from"`
	EmailTo          string `mapstructure:"email_to"`
}

type AdminConfig struct {
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	JWTSecret  string `mapstructure:"jwt_secret"`
	JWTTTL     int    `mapstructure:"jwt_ttl"`
	TOTPSecret string `mapstructure:"totp_secret"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// Load reads configuration from config.yaml (if present) and the environment.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	// Read from config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.rate_limit_per_sec", 10)

	// Database defaults
	viper.SetDefault("database.name", "beampay")
	viper.SetDefault("database.connect_timeout", 10)
	viper.SetDefault("database.query_timeout", 30)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	// Node defaults
	viper.SetDefault("node.rpc_url", "http://localhost:10000/api/wallet")
	viper.SetDefault("node.timeout", 5)

	// Gateway defaults
	viper.SetDefault("gateway.confirmation_threshold", 5)
	viper.SetDefault("gateway.tx_page_size", 100)
	viper.SetDefault("gateway.fee_regular", 100_000)
	viper.SetDefault("gateway.fee_offline", 1_100_000)
	viper.SetDefault("gateway.price_url", "https://api.binance.com/api/v1/ticker/24hr?symbol=BEAMUSDT")
	viper.SetDefault("gateway.fast_interval", 5)
	viper.SetDefault("gateway.slow_interval", 120)
	viper.SetDefault("gateway.webhook_interval", 10)

	// Webhook defaults
	viper.SetDefault("webhooks.max_retries", 5)
	viper.SetDefault("webhooks.timeout", 5)

	// Admin defaults
	viper.SetDefault("admin.username", "admin")
	viper.SetDefault("admin.jwt_ttl", 3600)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4317")
	viper.SetDefault("tracing.sample_rate", 1.0)
}

func overrideFromEnv() {
	// Server
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}

	// Database
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.uri", dbURL)
	}
	if dbName := os.Getenv("DATABASE_NAME"); dbName != "" {
		viper.Set("database.name", dbName)
	}

	// Wallet node
	if rpc := os.Getenv("BEAM_WALLET_API_RPC"); rpc != "" {
		viper.Set("node.rpc_url", rpc)
	}

	// Gateway
	if threshold := os.Getenv("CONFIRMATION_THRESHOLD"); threshold != "" {
		if n, err := strconv.Atoi(threshold); err == nil {
			viper.Set("gateway.confirmation_threshold", n)
		}
	}
	if verified := os.Getenv("VERIFIED_ASSETS"); verified != "" {
		viper.Set("gateway.verified_assets", parseAssetIDs(verified))
	}
	if spam := os.Getenv("SPAM_ASSETS"); spam != "" {
		viper.Set("gateway.spam_assets", parseAssetIDs(spam))
	}
	if cid := os.Getenv("DEX_CONTRACT_ID"); cid != "" {
		viper.Set("gateway.dex_contract_id", cid)
	}
	if priceURL := os.Getenv("PRICE_URL"); priceURL != "" {
		viper.Set("gateway.price_url", priceURL)
	}

	// Webhooks
	if urls := os.Getenv("BEAMPAY_WEBHOOK_URLS"); urls != "" {
		parts := strings.Split(urls, ",")
		var cleaned []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			viper.Set("webhooks.urls", cleaned)
		}
	}

	// Alerts
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		viper.Set("alerts.telegram_bot_token", token)
	}
	if chat := os.Getenv("TELEGRAM_CHAT_ID"); chat != "" {
		viper.Set("alerts.telegram_chat_id", chat)
	}
	if sgKey := os.Getenv("SENDGRID_API_KEY"); sgKey != "" {
		viper.Set("alerts.sendgrid_api_key", sgKey)
	}

	// Admin
	if user := os.Getenv("ADMIN_USERNAME"); user != "" {
		viper.Set("admin.username", user)
	}
	if pass := os.Getenv("ADMIN_PASSWORD"); pass != "" {
		viper.Set("admin.password", pass)
	}
	if secret := os.Getenv("ADMIN_JWT_SECRET"); secret != "" {
		viper.Set("admin.jwt_secret", secret)
	}
	if totp := os.Getenv("ADMIN_TOTP_SECRET"); totp != "" {
		viper.Set("admin.totp_secret", totp)
	}

	// Redis
	if host := os.Getenv("REDIS_HOST"); host != "" {
		viper.Set("redis.host", host)
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		viper.Set("redis.password", pass)
	}
}

// parseAssetIDs splits a comma-separated list of asset ids, dropping
// anything non-numeric.
func parseAssetIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func validate(config *Config) error {
	if config.Database.URI == "" {
		return fmt.Errorf("database uri is required (DATABASE_URL)")
	}

	if config.Node.RPCURL == "" {
		return fmt.Errorf("wallet node rpc url is required (BEAM_WALLET_API_RPC)")
	}

	if config.Admin.Password == "" {
		return fmt.Errorf("admin password is required (ADMIN_PASSWORD)")
	}

	if config.Admin.JWTSecret == "" {
		return fmt.Errorf("admin jwt secret is required (ADMIN_JWT_SECRET)")
	}

	if config.Gateway.ConfirmationThreshold < 1 {
		return fmt.Errorf("confirmation threshold must be at least 1")
	}

	return nil
}
