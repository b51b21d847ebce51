package pricefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beampay-service/beampay_service/internal/infrastructure/cache"
)

type fakeCache struct {
	values map[string][]byte
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if c.values == nil {
		c.values = map[string][]byte{}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = data
	return nil
}

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := c.values[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *fakeCache) Del(ctx context.Context, key string) error { return nil }
func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}
func (c *fakeCache) Ping(ctx context.Context) error { return nil }
func (c *fakeCache) Close() error                   { return nil }
func (c *fakeCache) Client() *redis.Client          { return nil }

func tickerServer(t *testing.T, hits *int, lastPrice string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		json.NewEncoder(w).Encode(tickerResponse{Symbol: "BEAMUSDT", LastPrice: lastPrice})
	}))
}

func TestBeamUSDFetchesAndCaches(t *testing.T) {
	var hits int
	server := tickerServer(t, &hits, "0.0525")
	defer server.Close()

	store := &fakeCache{}
	client := NewClient(Config{URL: server.URL}, store, zap.NewNop())

	price, err := client.BeamUSD(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0525, price)
	assert.Equal(t, 1, hits)
	assert.Contains(t, store.values, cacheKeyBeamUSD)
}

func TestBeamUSDPrefersCachedPrice(t *testing.T) {
	var hits int
	server := tickerServer(t, &hits, "0.0525")
	defer server.Close()

	store := &fakeCache{}
	require.NoError(t, store.Set(context.Background(), cacheKeyBeamUSD, 0.061, time.Minute))
	client := NewClient(Config{URL: server.URL}, store, zap.NewNop())

	price, err := client.BeamUSD(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.061, price)
	assert.Zero(t, hits, "a cached price must not hit the exchange")
}

func TestBeamUSDRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "unparseable price",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tickerResponse{Symbol: "BEAMUSDT", LastPrice: "soon"})
			},
		},
		{
			name: "non-positive price",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tickerResponse{Symbol: "BEAMUSDT", LastPrice: "0"})
			},
		},
		{
			name: "http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "maintenance", http.StatusServiceUnavailable)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(Config{URL: server.URL}, &fakeCache{}, zap.NewNop())

			_, err := client.BeamUSD(context.Background())
			require.Error(t, err)
		})
	}
}
