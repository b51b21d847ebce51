package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

// WebhookSubscriptionStore persists consumer webhook endpoints.
type WebhookSubscriptionStore interface {
	RegisterEndpoint(ctx context.Context, url, eventType string) error
	RemoveEndpoint(ctx context.Context, url, eventType string) (bool, error)
	ListEndpoints(ctx context.Context) ([]*entities.WebhookEndpoint, error)
}

// WebhookService manages consumer webhook subscriptions. Delivery itself is
// the dispatcher worker's job.
type WebhookService struct {
	endpoints WebhookSubscriptionStore
	logger    *logger.Logger
}

// NewWebhookService creates a webhook subscription service
func NewWebhookService(endpoints WebhookSubscriptionStore, log *logger.Logger) *WebhookService {
	return &WebhookService{endpoints: endpoints, logger: log}
}

// Register subscribes a URL to an event kind, or to every kind with "all".
// Registering the same pair twice is a no-op.
func (s *WebhookService) Register(ctx context.Context, endpointURL, eventType string) error {
	if eventType == "" {
		eventType = entities.WebhookEventAll
	}
	if err := validateEndpoint(endpointURL, eventType); err != nil {
		return err
	}

	if err := s.endpoints.RegisterEndpoint(ctx, endpointURL, eventType); err != nil {
		return fmt.Errorf("register webhook: %w", err)
	}

	s.logger.Info("Webhook endpoint registered", "url", endpointURL, "event_type", eventType)
	return nil
}

// Remove unsubscribes a URL from an event kind.
func (s *WebhookService) Remove(ctx context.Context, endpointURL, eventType string) error {
	if eventType == "" {
		eventType = entities.WebhookEventAll
	}
	if err := validateEndpoint(endpointURL, eventType); err != nil {
		return err
	}

	removed, err := s.endpoints.RemoveEndpoint(ctx, endpointURL, eventType)
	if err != nil {
		return fmt.Errorf("remove webhook: %w", err)
	}
	if !removed {
		return entities.ErrNotFound
	}

	s.logger.Info("Webhook endpoint removed", "url", endpointURL, "event_type", eventType)
	return nil
}

// List returns every registered endpoint.
func (s *WebhookService) List(ctx context.Context) ([]*entities.WebhookEndpoint, error) {
	return s.endpoints.ListEndpoints(ctx)
}

func validateEndpoint(endpointURL, eventType string) error {
	parsed, err := url.Parse(endpointURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return entities.NewValidationError("url", "must be an absolute http(s) URL")
	}
	if eventType != entities.WebhookEventAll && !entities.EventKind(eventType).Valid() {
		return entities.NewValidationError("event_type", "unknown event kind")
	}
	return nil
}
