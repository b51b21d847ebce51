package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/beampay-service/beampay_service/internal/adapters/beamnode"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// NodeStatusClient reports wallet node reachability
type NodeStatusClient interface {
	WalletStatus(ctx context.Context) (*beamnode.WalletStatus, error)
}

// CoreHandlers contains health and metrics handlers
type CoreHandlers struct {
	db     *mongo.Database
	node   NodeStatusClient
	logger *logger.Logger
}

// NewCoreHandlers creates a new core handlers instance
func NewCoreHandlers(db *mongo.Database, node NodeStatusClient, logger *logger.Logger) *CoreHandlers {
	return &CoreHandlers{
		db:     db,
		node:   node,
		logger: logger,
	}
}

var startTime = time.Now()

// HealthCheck represents a single dependency check result
type HealthCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency"`
	Error   string `json:"error,omitempty"`
}

// Health handles GET /health. It pings the database and the wallet node so
// the probe catches a wedged dependency, not just a live process.
func (h *CoreHandlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	checks := map[string]HealthCheck{
		"database": h.checkDatabase(ctx),
		"node":     h.checkNode(ctx),
	}

	healthy := true
	for _, check := range checks {
		if check.Status != "healthy" {
			healthy = false
		}
	}

	statusCode := http.StatusOK
	if !healthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    healthy,
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(startTime).String(),
		"checks":    checks,
	})
}

func (h *CoreHandlers) checkDatabase(ctx context.Context) HealthCheck {
	start := time.Now()
	err := h.db.Client().Ping(ctx, readpref.Primary())
	return newHealthCheck(time.Since(start), err)
}

func (h *CoreHandlers) checkNode(ctx context.Context) HealthCheck {
	start := time.Now()
	_, err := h.node.WalletStatus(ctx)
	return newHealthCheck(time.Since(start), err)
}

func newHealthCheck(latency time.Duration, err error) HealthCheck {
	check := HealthCheck{
		Status:  "healthy",
		Latency: latency.String(),
	}
	if err != nil {
		check.Status = "unhealthy"
		check.Error = err.Error()
	}
	return check
}

// Metrics handles GET /metrics
func (h *CoreHandlers) Metrics(c *gin.Context) {
	promhttp.Handler().ServeHTTP(c.Writer, c.Request)
}
