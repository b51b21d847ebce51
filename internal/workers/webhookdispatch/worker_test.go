package webhookdispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerAppliesDefaults(t *testing.T) {
	w := NewWorker(Config{}, &fakeTransactionStore{}, &fakeAddressStore{}, &fakeAssetStore{}, &fakeWebhookStore{}, &fakeAlerter{}, testLogger())

	assert.Equal(t, 10*time.Second, w.config.Interval)
	assert.Equal(t, 5*time.Second, w.config.PostTimeout)
	assert.Equal(t, 5, w.config.MaxAttempts)
	assert.Equal(t, 20*time.Second, w.config.RetryBackoff)
	assert.Equal(t, 5, w.config.ConfirmationThreshold)
}

func TestWorkerStartAndShutdown(t *testing.T) {
	w := NewWorker(Config{}, &fakeTransactionStore{}, &fakeAddressStore{}, &fakeAssetStore{}, &fakeWebhookStore{}, &fakeAlerter{}, testLogger())

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Shutdown(2*time.Second))
}

func TestWorkerRunOnceAlertsOnPassFailure(t *testing.T) {
	txs := &fakeTransactionStore{findErr: errors.New("mongo down")}
	alerts := &fakeAlerter{}
	w := NewWorker(Config{}, txs, &fakeAddressStore{}, &fakeAssetStore{}, &fakeWebhookStore{}, alerts, testLogger())

	w.RunOnce(context.Background())

	assert.Equal(t, []string{"Webhook pass failed"}, alerts.subjects)
}
