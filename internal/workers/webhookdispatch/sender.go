package webhookdispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/internal/infrastructure/metrics"
	"github.com/beampay-service/beampay_service/pkg/logger"
	"github.com/beampay-service/beampay_service/pkg/retry"
)

// Sender posts webhook payloads. A delivery succeeds only on HTTP 200;
// redirects and other 2xx codes count as failures because the consumer
// contract is an explicit 200 acknowledgement.
type Sender struct {
	client  *http.Client
	retrier *retry.Retrier
	logger  *logger.Logger
}

// NewSender creates a new webhook sender
func NewSender(timeout time.Duration, policy retry.Policy, log *logger.Logger) *Sender {
	return &Sender{
		client:  &http.Client{Timeout: timeout},
		retrier: retry.NewRetrier(policy, log.Zap()),
		logger:  log,
	}
}

// Deliver posts the payload, retrying with exponential backoff until the
// policy is exhausted.
func (s *Sender) Deliver(ctx context.Context, url string, payload *entities.WebhookPayload) error {
	return s.retrier.Do(ctx, func() error {
		return s.post(ctx, url, payload)
	})
}

// DeliverOnce posts the payload a single time. Dead letter replays use it so
// one unreachable endpoint cannot stall a whole cycle.
func (s *Sender) DeliverOnce(ctx context.Context, url string, payload *entities.WebhookPayload) error {
	return s.post(ctx, url, payload)
}

func (s *Sender) post(ctx context.Context, url string, payload *entities.WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues(string(payload.Event), "error").Inc()
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		metrics.WebhookDeliveries.WithLabelValues(string(payload.Event), "error").Inc()
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}

	metrics.WebhookDeliveries.WithLabelValues(string(payload.Event), "success").Inc()
	return nil
}
