package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
)

type fakeSubscriptionStore struct {
	registered map[string]string
	removed    []string
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{registered: map[string]string{}}
}

func (f *fakeSubscriptionStore) RegisterEndpoint(_ context.Context, url, eventType string) error {
	f.registered[url] = eventType
	return nil
}

func (f *fakeSubscriptionStore) RemoveEndpoint(_ context.Context, url, eventType string) (bool, error) {
	if f.registered[url] == eventType {
		delete(f.registered, url)
		f.removed = append(f.removed, url)
		return true, nil
	}
	return false, nil
}

func (f *fakeSubscriptionStore) ListEndpoints(_ context.Context) ([]*entities.WebhookEndpoint, error) {
	var endpoints []*entities.WebhookEndpoint
	for url, eventType := range f.registered {
		endpoints = append(endpoints, &entities.WebhookEndpoint{URL: url, EventType: eventType})
	}
	return endpoints, nil
}

func TestWebhookRegisterDefaultsToAll(t *testing.T) {
	store := newFakeSubscriptionStore()
	service := NewWebhookService(store, testLogger())

	require.NoError(t, service.Register(context.Background(), "https://shop.example/hook", ""))
	assert.Equal(t, "all", store.registered["https://shop.example/hook"])

	require.NoError(t, service.Register(context.Background(), "https://shop.example/deposits", "deposit_confirmed"))
	assert.Equal(t, "deposit_confirmed", store.registered["https://shop.example/deposits"])
}

func TestWebhookRegisterRejectsBadInput(t *testing.T) {
	store := newFakeSubscriptionStore()
	service := NewWebhookService(store, testLogger())

	var validationErr *entities.ValidationError

	err := service.Register(context.Background(), "not a url", "all")
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "url", validationErr.Field)

	err = service.Register(context.Background(), "ftp://shop.example/hook", "all")
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "url", validationErr.Field)

	err = service.Register(context.Background(), "https://shop.example/hook", "deposit_exploded")
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "event_type", validationErr.Field)

	assert.Empty(t, store.registered)
}

func TestWebhookRemove(t *testing.T) {
	store := newFakeSubscriptionStore()
	store.registered["https://shop.example/hook"] = "all"
	service := NewWebhookService(store, testLogger())

	require.NoError(t, service.Remove(context.Background(), "https://shop.example/hook", "all"))
	assert.Empty(t, store.registered)

	err := service.Remove(context.Background(), "https://shop.example/hook", "all")
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestWebhookList(t *testing.T) {
	store := newFakeSubscriptionStore()
	store.registered["https://shop.example/hook"] = "failed"
	service := NewWebhookService(store, testLogger())

	endpoints, err := service.List(context.Background())
	require.NoError(t, err)
	require.Len(t, endpoints, 1)
	assert.Equal(t, "failed", endpoints[0].EventType)
}
