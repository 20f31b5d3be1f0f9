package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meowecho-tech/vote/internal/apperr"
)

type fakeAPI struct {
	t            *testing.T
	validAccess  atomic.Value
	refreshCalls atomic.Int32
	thingCalls   atomic.Int32
	refreshFail  bool
	refreshDelay time.Duration
	onRefresh    func()
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{t: t}
	f.validAccess.Store("access-2")
	return f
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/auth/refresh":
		f.refreshCalls.Add(1)
		assert.Empty(f.t, r.Header.Get("Authorization"))
		if f.onRefresh != nil {
			f.onRefresh()
		}
		if f.refreshDelay > 0 {
			time.Sleep(f.refreshDelay)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if f.refreshFail || body["refresh_token"] != "refresh-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token", "code": "invalid_refresh"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
		}})
	case "/things":
		f.thingCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+f.validAccess.Load().(string) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired", "code": "token_expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"name": "ok"}})
	case "/conflict":
		writeJSON(w, http.StatusConflict, map[string]string{"error": "vote already recorded", "code": "already_voted"})
	case "/broken":
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	case "/empty":
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, api http.Handler) (*Client, *Session) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	sess := New(NewMemoryStore(), zerolog.Nop())
	client := NewClient(sess, Options{BaseURL: srv.URL, RefreshTimeout: 2 * time.Second, Logger: zerolog.Nop()})
	return client, sess
}

type thing struct {
	Name string `json:"name"`
}

func TestDo_AttachesBearerAndUnwrapsEnvelope(t *testing.T) {
	api := newFakeAPI(t)
	client, sess := newTestClient(t, api)
	require.NoError(t, sess.Persist(context.Background(), "access-2", "refresh-2"))

	var out thing
	require.NoError(t, client.Do(context.Background(), http.MethodGet, "/things", nil, &out))
	require.Equal(t, "ok", out.Name)
	require.EqualValues(t, 0, api.refreshCalls.Load())
}

func TestDo_RefreshesOnceAndRetries(t *testing.T) {
	api := newFakeAPI(t)
	client, sess := newTestClient(t, api)
	require.NoError(t, sess.Persist(context.Background(), "access-1", "refresh-1"))

	var out thing
	require.NoError(t, client.Do(context.Background(), http.MethodGet, "/things", nil, &out))
	require.Equal(t, "ok", out.Name)
	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.EqualValues(t, 2, api.thingCalls.Load())
	require.Equal(t, "access-2", sess.CurrentAccess())
	require.Equal(t, "refresh-2", sess.CurrentRefresh())
}

func TestDo_NoRefreshWithoutBearer(t *testing.T) {
	api := newFakeAPI(t)
	client, _ := newTestClient(t, api)

	err := client.Do(context.Background(), http.MethodGet, "/things", nil, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, StatusOf(err))
	require.EqualValues(t, 0, api.refreshCalls.Load())
	require.EqualValues(t, 1, api.thingCalls.Load())
}

func TestDo_RefreshFailureClearsSession(t *testing.T) {
	api := newFakeAPI(t)
	api.refreshFail = true
	client, sess := newTestClient(t, api)
	require.NoError(t, sess.Persist(context.Background(), "access-1", "refresh-1"))

	err := client.Do(context.Background(), http.MethodGet, "/things", nil, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "token_expired", apiErr.Code)
	require.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))

	require.False(t, sess.Authenticated())
	require.Empty(t, sess.CurrentRefresh())
	require.EqualValues(t, 1, api.refreshCalls.Load())

	// Nothing authenticated goes out after the clear.
	err = client.Do(context.Background(), http.MethodGet, "/things", nil, nil)
	require.Equal(t, http.StatusUnauthorized, StatusOf(err))
	require.EqualValues(t, 1, api.refreshCalls.Load())
}

func TestDo_MissingRefreshTokenClearsSession(t *testing.T) {
	api := newFakeAPI(t)
	client, sess := newTestClient(t, api)
	require.NoError(t, sess.Persist(context.Background(), "access-1", ""))

	err := client.Do(context.Background(), http.MethodGet, "/things", nil, nil)
	require.Equal(t, http.StatusUnauthorized, StatusOf(err))
	require.False(t, sess.Authenticated())
	require.EqualValues(t, 0, api.refreshCalls.Load())
}

func TestDo_RetriesAtMostOnce(t *testing.T) {
	api := newFakeAPI(t)
	api.validAccess.Store("never-valid")
	client, sess := newTestClient(t, api)
	require.NoError(t, sess.Persist(context.Background(), "access-1", "refresh-1"))

	err := client.Do(context.Background(), http.MethodGet, "/things", nil, nil)
	require.Equal(t, http.StatusUnauthorized, StatusOf(err))
	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.EqualValues(t, 2, api.thingCalls.Load())
}

func TestDo_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	api := newFakeAPI(t)
	api.refreshDelay = 50 * time.Millisecond
	client, sess := newTestClient(t, api)
	require.NoError(t, sess.Persist(context.Background(), "access-1", "refresh-1"))

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- client.Do(context.Background(), http.MethodGet, "/things", nil, nil)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, api.refreshCalls.Load())
}

func TestDo_RefreshCompletesWhenCallerCancels(t *testing.T) {
	api := newFakeAPI(t)
	client, sess := newTestClient(t, api)
	require.NoError(t, sess.Persist(context.Background(), "access-1", "refresh-1"))

	ctx, cancel := context.WithCancel(context.Background())
	api.onRefresh = cancel

	err := client.Do(ctx, http.MethodGet, "/things", nil, nil)
	require.Error(t, err)
	require.Equal(t, apperr.KindTransport, apperr.KindOf(err))
	require.Equal(t, "access-2", sess.CurrentAccess())
	require.Equal(t, "refresh-2", sess.CurrentRefresh())
}

func TestDo_StructuredFailures(t *testing.T) {
	api := newFakeAPI(t)
	client, _ := newTestClient(t, api)

	err := client.Do(context.Background(), http.MethodPost, "/conflict", map[string]string{"a": "b"}, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.Status)
	require.Equal(t, "already_voted", apiErr.Code)
	require.Equal(t, "vote already recorded", apiErr.Message)
	require.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	require.False(t, Indeterminate(err))

	err = client.Do(context.Background(), http.MethodGet, "/broken", nil, nil)
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "upstream down", apiErr.Message)
	require.Equal(t, apperr.KindServer, apperr.KindOf(err))
	require.True(t, Indeterminate(err))

	require.NoError(t, client.Do(context.Background(), http.MethodDelete, "/empty", nil, &thing{}))
}

func TestDo_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client := NewClient(New(nil, zerolog.Nop()), Options{BaseURL: base, Logger: zerolog.Nop()})
	err := client.Do(context.Background(), http.MethodGet, "/things", nil, nil)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, apperr.KindTransport, apperr.KindOf(err))
	require.True(t, Indeterminate(err))
}

// rotatingAPI accepts one access token and one refresh token at a time and
// invalidates both on every refresh.
type rotatingAPI struct {
	mu           sync.Mutex
	access       string
	refreshToken string
	issued       int
	refreshCalls atomic.Int32
}

func (f *rotatingAPI) expireAccess() {
	f.mu.Lock()
	f.access = ""
	f.mu.Unlock()
}

func (f *rotatingAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/auth/refresh":
		f.refreshCalls.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["refresh_token"] != f.refreshToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token", "code": "invalid_refresh"})
			return
		}
		f.issued++
		f.access = fmt.Sprintf("a%d", f.issued)
		f.refreshToken = fmt.Sprintf("r%d", f.issued)
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{
			"access_token":  f.access,
			"refresh_token": f.refreshToken,
		}})
	case "/things":
		if f.access == "" || r.Header.Get("Authorization") != "Bearer "+f.access {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "expired", "code": "token_expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"name": "ok"}})
	default:
		http.NotFound(w, r)
	}
}

func TestDo_SharedStoreFollowsRotationByAnotherProcess(t *testing.T) {
	ctx := context.Background()
	api := &rotatingAPI{access: "a1", refreshToken: "r1", issued: 1}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	store := NewMemoryStore()
	opts := Options{BaseURL: srv.URL, RefreshTimeout: 2 * time.Second, Logger: zerolog.Nop()}

	consoleSess := New(store, zerolog.Nop())
	require.NoError(t, consoleSess.Persist(ctx, "a1", "r1"))
	workerSess := New(store, zerolog.Nop())
	require.NoError(t, workerSess.Restore(ctx))

	console := NewClient(consoleSess, opts)
	worker := NewClient(workerSess, opts)

	api.expireAccess()
	require.NoError(t, console.Do(ctx, http.MethodGet, "/things", nil, nil))
	require.Equal(t, "a2", consoleSess.CurrentAccess())

	// The worker still holds a1/r1; r1 is dead on the server.
	require.Equal(t, "a1", workerSess.CurrentAccess())
	var out thing
	require.NoError(t, worker.Do(ctx, http.MethodGet, "/things", nil, &out))
	require.Equal(t, "ok", out.Name)
	require.Equal(t, "a2", workerSess.CurrentAccess())
	require.Equal(t, "r2", workerSess.CurrentRefresh())
	require.EqualValues(t, 1, api.refreshCalls.Load())

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, Tokens{AccessToken: "a2", RefreshToken: "r2"}, stored)
}

func TestDo_PicksUpLoginStoredByAnotherProcess(t *testing.T) {
	ctx := context.Background()
	api := &rotatingAPI{access: "a1", refreshToken: "r1", issued: 1}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	store := NewMemoryStore()
	opts := Options{BaseURL: srv.URL, RefreshTimeout: 2 * time.Second, Logger: zerolog.Nop()}
	workerSess := New(store, zerolog.Nop())
	require.NoError(t, workerSess.Restore(ctx))
	worker := NewClient(workerSess, opts)

	err := worker.Do(ctx, http.MethodGet, "/things", nil, nil)
	require.Equal(t, http.StatusUnauthorized, StatusOf(err))

	require.NoError(t, New(store, zerolog.Nop()).Persist(ctx, "a1", "r1"))
	require.NoError(t, worker.Do(ctx, http.MethodGet, "/things", nil, nil))
	require.Equal(t, "a1", workerSess.CurrentAccess())
	require.EqualValues(t, 0, api.refreshCalls.Load())
}
