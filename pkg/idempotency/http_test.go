package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string]*Response
	err     error
}

func newMemCache() *memCache { return &memCache{entries: map[string]*Response{}} }

func (m *memCache) Reserve(_ context.Context, key string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	resp, ok := m.entries[key]
	if !ok {
		m.entries[key] = nil
		return nil, nil
	}
	if resp == nil {
		return nil, ErrInFlight
	}
	return resp, nil
}

func (m *memCache) Save(_ context.Context, key string, resp Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &resp
	return nil
}

func (m *memCache) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func countingHandler(status int, calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"n":1}`))
	})
}

func post(h http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMiddleware_ReplaysFirstResponse(t *testing.T) {
	calls := 0
	h := Middleware(quiet, newMemCache())(countingHandler(http.StatusCreated, &calls))

	first := post(h, "k-1")
	second := post(h, "k-1")

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Empty(t, first.Header().Get(HeaderReplayed))
}

func TestMiddleware_PassThrough(t *testing.T) {
	calls := 0
	h := Middleware(quiet, newMemCache())(countingHandler(http.StatusOK, &calls))

	post(h, "")
	post(h, "")
	req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
	req.Header.Set(HeaderKey, "k")
	h.ServeHTTP(httptest.NewRecorder(), req)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 4, calls)
}

func TestMiddleware_ServerErrorFreesKey(t *testing.T) {
	calls := 0
	h := Middleware(quiet, newMemCache())(countingHandler(http.StatusInternalServerError, &calls))

	post(h, "k-1")
	post(h, "k-1")

	assert.Equal(t, 2, calls)
}

func TestMiddleware_RetryableConflictFreesKey(t *testing.T) {
	calls := 0
	h := Middleware(quiet, newMemCache())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"concurrent modification","code":"conflict"}`))
	}))

	first := post(h, "k-1")
	second := post(h, "k-1")

	assert.Equal(t, 2, calls)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Empty(t, first.Header().Get(HeaderReplayed))
	assert.Empty(t, second.Header().Get(HeaderReplayed))
}

func TestMiddleware_FinalClientErrorIsReplayed(t *testing.T) {
	calls := 0
	h := Middleware(quiet, newMemCache())(countingHandler(http.StatusConflict, &calls))

	post(h, "k-1")
	second := post(h, "k-1")

	assert.Equal(t, 1, calls)
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
}

func TestMiddleware_InFlightIsConflict(t *testing.T) {
	cache := newMemCache()
	_, err := cache.Reserve(context.Background(), "idem:http:/orders:k-1")
	require.NoError(t, err)
	calls := 0
	h := Middleware(quiet, cache)(countingHandler(http.StatusOK, &calls))

	rr := post(h, "k-1")

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Zero(t, calls)
}

func TestMiddleware_CacheDownServesAnyway(t *testing.T) {
	cache := newMemCache()
	cache.err = errors.New("redis down")
	calls := 0
	h := Middleware(quiet, cache)(countingHandler(http.StatusCreated, &calls))

	rr := post(h, "k-1")

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, 1, calls)
}
