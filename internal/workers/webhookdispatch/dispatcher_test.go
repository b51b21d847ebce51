package webhookdispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/beampay-service/beampay_service/internal/domain/entities"
	"github.com/beampay-service/beampay_service/pkg/logger"
)

type fakeTransactionStore struct {
	rows    []*entities.Transaction
	findErr error
	marked  map[string][]entities.EventKind
}

// FindNeedingWebhook mirrors the production monitor query so consecutive
// cycles behave like the real dispatcher.
func (s *fakeTransactionStore) FindNeedingWebhook(ctx context.Context) ([]*entities.Transaction, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []*entities.Transaction
	for _, tx := range s.rows {
		switch {
		case pendingStatus(tx.Status),
			tx.Status == entities.TxStatusCompleted && tx.Income && !tx.WebhookSentFor(entities.EventDepositConfirmed),
			tx.Status == entities.TxStatusCompleted && !tx.Income && !tx.WebhookSentFor(entities.EventWithdrawConfirmed),
			tx.Status == entities.TxStatusFailed && !tx.WebhookSentFor(entities.EventFailed),
			tx.Status == entities.TxStatusCancelled && !tx.WebhookSentFor(entities.EventCancelled):
			clone := *tx
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *fakeTransactionStore) MarkWebhookSent(ctx context.Context, txID string, kinds ...entities.EventKind) error {
	for _, tx := range s.rows {
		if tx.ID != txID {
			continue
		}
		if tx.WebhookSent == nil {
			tx.WebhookSent = map[string]bool{}
		}
		for _, kind := range kinds {
			tx.WebhookSent[string(kind)] = true
		}
	}
	if s.marked == nil {
		s.marked = map[string][]entities.EventKind{}
	}
	s.marked[txID] = append(s.marked[txID], kinds...)
	return nil
}

type fakeAddressStore struct {
	ours map[string]bool
}

func (s *fakeAddressStore) GetByID(ctx context.Context, id string) (*entities.Address, error) {
	if s.ours[id] {
		return &entities.Address{ID: id}, nil
	}
	return nil, entities.ErrAddressNotFound
}

type fakeAssetStore struct {
	list []*entities.Asset
}

func (s *fakeAssetStore) List(ctx context.Context) ([]*entities.Asset, error) {
	return s.list, nil
}

type fakeWebhookStore struct {
	urls        map[entities.EventKind][]string
	failed      []*entities.FailedWebhook
	deadLetters map[string]bool

	inserts  []*entities.FailedWebhook
	deleted  []primitive.ObjectID
	recorded []primitive.ObjectID
}

func (s *fakeWebhookStore) URLsForEvent(ctx context.Context, kind entities.EventKind) ([]string, error) {
	urls := append([]string{}, s.urls[kind]...)
	return append(urls, s.urls[entities.WebhookEventAll]...), nil
}

func (s *fakeWebhookStore) InsertFailed(ctx context.Context, failed *entities.FailedWebhook) error {
	failed.ID = primitive.NewObjectID()
	s.inserts = append(s.inserts, failed)
	s.failed = append(s.failed, failed)
	return nil
}

func (s *fakeWebhookStore) ListFailed(ctx context.Context) ([]*entities.FailedWebhook, error) {
	return append([]*entities.FailedWebhook{}, s.failed...), nil
}

func (s *fakeWebhookStore) HasFailed(ctx context.Context, url string, kind entities.EventKind, txID string) (bool, error) {
	return s.deadLetters[url+"|"+string(kind)+"|"+txID], nil
}

func (s *fakeWebhookStore) DeleteFailed(ctx context.Context, id primitive.ObjectID) error {
	s.deleted = append(s.deleted, id)
	kept := s.failed[:0]
	for _, row := range s.failed {
		if row.ID != id {
			kept = append(kept, row)
		}
	}
	s.failed = kept
	return nil
}

func (s *fakeWebhookStore) RecordFailedAttempt(ctx context.Context, id primitive.ObjectID) error {
	s.recorded = append(s.recorded, id)
	return nil
}

func (s *fakeWebhookStore) CountFailed(ctx context.Context) (int64, error) {
	return int64(len(s.failed)), nil
}

type fakeAlerter struct {
	subjects []string
	dead     []string
}

func (a *fakeAlerter) Sendf(ctx context.Context, subject, format string, args ...interface{}) {
	a.subjects = append(a.subjects, subject)
}

func (a *fakeAlerter) WebhookDead(ctx context.Context, url, event, txID string) {
	a.dead = append(a.dead, event+"|"+txID)
}

// hitRecorder is an httptest handler that decodes every delivery.
type hitRecorder struct {
	mu     sync.Mutex
	events []entities.WebhookPayload
	status int
}

func (h *hitRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload entities.WebhookPayload
	_ = json.NewDecoder(r.Body).Decode(&payload)

	h.mu.Lock()
	h.events = append(h.events, payload)
	status := h.status
	h.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (h *hitRecorder) byEvent(kind entities.EventKind) []entities.WebhookPayload {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []entities.WebhookPayload
	for _, payload := range h.events {
		if payload.Event == kind {
			out = append(out, payload)
		}
	}
	return out
}

func (h *hitRecorder) total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func testLogger() *logger.Logger {
	return logger.New("debug", "test")
}

func newTestDispatcher(config Config, txs *fakeTransactionStore, addrs *fakeAddressStore, assets *fakeAssetStore, hooks *fakeWebhookStore, alerts *fakeAlerter) *Dispatcher {
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 1
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = time.Millisecond
	}
	if config.PostTimeout == 0 {
		config.PostTimeout = 2 * time.Second
	}
	if config.ConfirmationThreshold == 0 {
		config.ConfirmationThreshold = 5
	}

	sender := NewSender(config.PostTimeout, deliveryPolicy(config), testLogger())
	return NewDispatcher(txs, addrs, assets, hooks, sender, alerts, config, testLogger())
}

func beamAsset() *entities.Asset {
	return &entities.Asset{ID: 0, Meta: map[string]string{"N": "BEAM"}, Decimals: 8}
}

func allEventsTo(url string) map[entities.EventKind][]string {
	return map[entities.EventKind][]string{entities.WebhookEventAll: {url}}
}

func TestDispatcherEmitsDepositLifecycleOnce(t *testing.T) {
	recorder := &hitRecorder{}
	server := httptest.NewServer(recorder)
	defer server.Close()

	tx := &entities.Transaction{
		ID:       "tx-1",
		Status:   entities.TxStatusInProgress,
		Income:   true,
		Value:    entities.Groth(150_000_000),
		Sender:   "external-sender",
		Receiver: "our-addr",
		Comment:  "invoice 7",
		Kernel:   "kern-1",
	}
	txs := &fakeTransactionStore{rows: []*entities.Transaction{tx}}
	addrs := &fakeAddressStore{ours: map[string]bool{"our-addr": true}}
	assets := &fakeAssetStore{list: []*entities.Asset{beamAsset()}}
	hooks := &fakeWebhookStore{urls: allEventsTo(server.URL)}
	d := newTestDispatcher(Config{}, txs, addrs, assets, hooks, &fakeAlerter{})

	require.NoError(t, d.Run(context.Background()))
	require.NoError(t, d.Run(context.Background()))
	require.Len(t, recorder.byEvent(entities.EventDepositPending), 1,
		"a second cycle over the same pending row must not re-emit")

	tx.Status = entities.TxStatusCompleted
	tx.Confirmations = 6

	require.NoError(t, d.Run(context.Background()))
	require.NoError(t, d.Run(context.Background()))

	confirmed := recorder.byEvent(entities.EventDepositConfirmed)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "tx-1", confirmed[0].TxID)
	assert.Equal(t, "our-addr", confirmed[0].Address)
	assert.Equal(t, "1.5", confirmed[0].ValueFormatted)
	assert.Equal(t, "BEAM", confirmed[0].AssetName)
	assert.Equal(t, "kern-1", confirmed[0].Kernel)
	assert.Equal(t, "invoice 7", confirmed[0].Comment)
	assert.Equal(t, 2, recorder.total())
}

func TestDispatcherHoldsConfirmedUntilThreshold(t *testing.T) {
	recorder := &hitRecorder{}
	server := httptest.NewServer(recorder)
	defer server.Close()

	tx := &entities.Transaction{
		ID:            "tx-2",
		Status:        entities.TxStatusCompleted,
		Income:        true,
		Value:         entities.Groth(1000),
		Receiver:      "our-addr",
		Confirmations: 2,
		WebhookSent:   map[string]bool{string(entities.EventDepositPending): true},
	}
	txs := &fakeTransactionStore{rows: []*entities.Transaction{tx}}
	addrs := &fakeAddressStore{ours: map[string]bool{"our-addr": true}}
	hooks := &fakeWebhookStore{urls: allEventsTo(server.URL)}
	d := newTestDispatcher(Config{}, txs, addrs, &fakeAssetStore{}, hooks, &fakeAlerter{})

	require.NoError(t, d.Run(context.Background()))
	assert.Zero(t, recorder.total())

	tx.Confirmations = 5
	require.NoError(t, d.Run(context.Background()))
	assert.Len(t, recorder.byEvent(entities.EventDepositConfirmed), 1)
}

func TestDispatcherWithdrawConfirmedIgnoresConfirmations(t *testing.T) {
	recorder := &hitRecorder{}
	server := httptest.NewServer(recorder)
	defer server.Close()

	tx := &entities.Transaction{
		ID:            "tx-3",
		Status:        entities.TxStatusCompleted,
		Income:        false,
		Value:         entities.Groth(500),
		Sender:        "our-payout",
		Receiver:      "external-receiver",
		Confirmations: 0,
	}
	txs := &fakeTransactionStore{rows: []*entities.Transaction{tx}}
	addrs := &fakeAddressStore{ours: map[string]bool{"our-payout": true}}
	hooks := &fakeWebhookStore{urls: allEventsTo(server.URL)}
	d := newTestDispatcher(Config{}, txs, addrs, &fakeAssetStore{}, hooks, &fakeAlerter{})

	require.NoError(t, d.Run(context.Background()))

	confirmed := recorder.byEvent(entities.EventWithdrawConfirmed)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "our-payout", confirmed[0].Address)
}

func TestDispatcherInternalTransferCollapsesConfirms(t *testing.T) {
	recorder := &hitRecorder{}
	server := httptest.NewServer(recorder)
	defer server.Close()

	tx := &entities.Transaction{
		ID:            "tx-4",
		Status:        entities.TxStatusCompleted,
		Income:        false,
		Value:         entities.Groth(1_000_000),
		Sender:        "addr-a",
		Receiver:      "addr-b",
		Confirmations: 6,
	}
	txs := &fakeTransactionStore{rows: []*entities.Transaction{tx}}
	addrs := &fakeAddressStore{ours: map[string]bool{"addr-a": true, "addr-b": true}}
	hooks := &fakeWebhookStore{urls: allEventsTo(server.URL)}
	d := newTestDispatcher(Config{}, txs, addrs, &fakeAssetStore{}, hooks, &fakeAlerter{})

	require.NoError(t, d.Run(context.Background()))
	require.NoError(t, d.Run(context.Background()))

	internal := recorder.byEvent(entities.EventInternalTransferConfirmed)
	require.Len(t, internal, 1)
	assert.Equal(t, "addr-b", internal[0].Address)
	assert.Equal(t, 1, recorder.total(), "per-side confirmed kinds must not fire for internal transfers")

	assert.ElementsMatch(t, []entities.EventKind{
		entities.EventInternalTransferConfirmed,
		entities.EventDepositConfirmed,
		entities.EventWithdrawConfirmed,
	}, txs.marked["tx-4"])
}

func TestDispatcherInternalTransferWaitsForThreshold(t *testing.T) {
	recorder := &hitRecorder{}
	server := httptest.NewServer(recorder)
	defer server.Close()

	tx := &entities.Transaction{
		ID:            "tx-5",
		Status:        entities.TxStatusCompleted,
		Income:        false,
		Sender:        "addr-a",
		Receiver:      "addr-b",
		Confirmations: 2,
	}
	txs := &fakeTransactionStore{rows: []*entities.Transaction{tx}}
	addrs := &fakeAddressStore{ours: map[string]bool{"addr-a": true, "addr-b": true}}
	hooks := &fakeWebhookStore{urls: allEventsTo(server.URL)}
	d := newTestDispatcher(Config{}, txs, addrs, &fakeAssetStore{}, hooks, &fakeAlerter{})

	require.NoError(t, d.Run(context.Background()))

	assert.Zero(t, recorder.total())
	assert.Empty(t, txs.marked)
}

func TestDispatcherFailedEventCarriesReason(t *testing.T) {
	recorder := &hitRecorder{}
	server := httptest.NewServer(recorder)
	defer server.Close()

	txs := &fakeTransactionStore{rows: []*entities.Transaction{
		{
			ID:            "tx-6",
			Status:        entities.TxStatusFailed,
			Sender:        "external-sender",
			Value:         entities.Groth(700),
			FailureReason: "transaction expired",
		},
		{
			ID:     "tx-7",
			Status: entities.TxStatusFailed,
			Sender: "external-sender",
			Value:  entities.Groth(800),
		},
	}}
	hooks := &fakeWebhookStore{urls: allEventsTo(server.URL)}
	d := newTestDispatcher(Config{}, txs, &fakeAddressStore{}, &fakeAssetStore{}, hooks, &fakeAlerter{})

	require.NoError(t, d.Run(context.Background()))

	failed := recorder.byEvent(entities.EventFailed)
	require.Len(t, failed, 2)

	reasons := map[string]string{}
	for _, payload := range failed {
		reasons[payload.TxID] = payload.Reason
		assert.Equal(t, "external-sender", payload.Address)
	}
	assert.Equal(t, "transaction expired", reasons["tx-6"])
	assert.Equal(t, "unknown error", reasons["tx-7"])
}

func TestDispatcherDeadLettersAfterExhaustion(t *testing.T) {
	recorder := &hitRecorder{status: http.StatusInternalServerError}
	server := httptest.NewServer(recorder)
	defer server.Close()

	tx := &entities.Transaction{ID: "tx-8", Status: entities.TxStatusCancelled, Sender: "addr-a"}
	txs := &fakeTransactionStore{rows: []*entities.Transaction{tx}}
	hooks := &fakeWebhookStore{urls: allEventsTo(server.URL)}
	alerts := &fakeAlerter{}
	d := newTestDispatcher(Config{MaxAttempts: 2}, txs, &fakeAddressStore{}, &fakeAssetStore{}, hooks, alerts)

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, 2, recorder.total(), "two attempts before dead lettering")
	require.Len(t, hooks.inserts, 1)
	assert.Equal(t, server.URL, hooks.inserts[0].URL)
	assert.Equal(t, entities.EventCancelled, hooks.inserts[0].EventType)
	assert.Equal(t, 2, hooks.inserts[0].Attempts)
	assert.Equal(t, []string{"cancelled|tx-8"}, alerts.dead)
	assert.Empty(t, txs.marked, "the flag stays unset until a delivery lands")
}

func TestDispatcherSkipsDeadLetteredEndpoint(t *testing.T) {
	recorder := &hitRecorder{}
	server := httptest.NewServer(recorder)
	defer server.Close()

	tx := &entities.Transaction{ID: "tx-9", Status: entities.TxStatusCancelled, Sender: "addr-a"}
	txs := &fakeTransactionStore{rows: []*entities.Transaction{tx}}
	hooks := &fakeWebhookStore{
		urls:        allEventsTo(server.URL),
		deadLetters: map[string]bool{server.URL + "|cancelled|tx-9": true},
	}
	d := newTestDispatcher(Config{}, txs, &fakeAddressStore{}, &fakeAssetStore{}, hooks, &fakeAlerter{})

	require.NoError(t, d.Run(context.Background()))

	assert.Zero(t, recorder.total())
	assert.Empty(t, txs.marked)
}

func TestDispatcherReplaysDeadLetters(t *testing.T) {
	recorder := &hitRecorder{}
	server := httptest.NewServer(recorder)
	defer server.Close()

	row := &entities.FailedWebhook{
		ID:        primitive.NewObjectID(),
		URL:       server.URL,
		EventType: entities.EventDepositConfirmed,
		Data: entities.WebhookPayload{
			Event:   entities.EventDepositConfirmed,
			TxID:    "tx-10",
			Address: "our-addr",
		},
		Attempts: 5,
	}
	txs := &fakeTransactionStore{}
	hooks := &fakeWebhookStore{failed: []*entities.FailedWebhook{row}}
	d := newTestDispatcher(Config{}, txs, &fakeAddressStore{}, &fakeAssetStore{}, hooks, &fakeAlerter{})

	require.NoError(t, d.Run(context.Background()))

	delivered := recorder.byEvent(entities.EventDepositConfirmed)
	require.Len(t, delivered, 1)
	assert.Equal(t, "tx-10", delivered[0].TxID)
	assert.Equal(t, []primitive.ObjectID{row.ID}, hooks.deleted)
	assert.Equal(t, []entities.EventKind{entities.EventDepositConfirmed}, txs.marked["tx-10"])
	assert.Empty(t, hooks.failed)
}

func TestDispatcherReplayFailureBumpsAttempt(t *testing.T) {
	recorder := &hitRecorder{status: http.StatusBadGateway}
	server := httptest.NewServer(recorder)
	defer server.Close()

	row := &entities.FailedWebhook{
		ID:        primitive.NewObjectID(),
		URL:       server.URL,
		EventType: entities.EventFailed,
		Data:      entities.WebhookPayload{Event: entities.EventFailed, TxID: "tx-11"},
	}
	txs := &fakeTransactionStore{}
	hooks := &fakeWebhookStore{failed: []*entities.FailedWebhook{row}}
	d := newTestDispatcher(Config{}, txs, &fakeAddressStore{}, &fakeAssetStore{}, hooks, &fakeAlerter{})

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, []primitive.ObjectID{row.ID}, hooks.recorded)
	assert.Empty(t, hooks.deleted)
	assert.Len(t, hooks.failed, 1)
	assert.Empty(t, txs.marked)
}

func TestDispatcherMarksWhenNoSubscribers(t *testing.T) {
	tx := &entities.Transaction{ID: "tx-12", Status: entities.TxStatusCancelled, Sender: "addr-a"}
	txs := &fakeTransactionStore{rows: []*entities.Transaction{tx}}
	hooks := &fakeWebhookStore{}
	d := newTestDispatcher(Config{}, txs, &fakeAddressStore{}, &fakeAssetStore{}, hooks, &fakeAlerter{})

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, []entities.EventKind{entities.EventCancelled}, txs.marked["tx-12"])
}
