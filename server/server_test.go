package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/mediastash/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "s3cret"

// recordingHandler records updates and fails with err.
type recordingHandler struct {
	mu      sync.Mutex
	updates []*telegram.Update
	err     error
}

func (h *recordingHandler) HandleUpdate(_ context.Context, update *telegram.Update) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
	return h.err
}

func newTestServer(t *testing.T, updates UpdateHandler, opts ...Option) *httptest.Server {
	t.Helper()
	s, err := New("127.0.0.1:0", secret, updates, opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestNew(t *testing.T) {
	handler := &recordingHandler{}

	t.Run("missing secret", func(t *testing.T) {
		_, err := New(":0", "", handler)
		assert.Equal(t, ErrSecretRequired, err)
	})

	t.Run("missing handler", func(t *testing.T) {
		_, err := New(":0", secret, nil)
		assert.Equal(t, ErrUpdateHandlerRequired, err)
	})

	t.Run("invalid shutdown timeout", func(t *testing.T) {
		_, err := New(":0", secret, handler, WithShutdownTimeout(0))
		assert.Error(t, err)
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		s, err := New(":0", secret, handler, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, s.logger)
	})
}

func TestWebhook_DispatchesUpdate(t *testing.T) {
	handler := &recordingHandler{}
	ts := newTestServer(t, handler)

	status, body := post(t, ts.URL+"/"+secret, `{"update_id": 77, "message": {"message_id": 1, "chat": {"id": 5, "type": "private"}, "date": 0, "text": "hi"}}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)

	require.Len(t, handler.updates, 1)
	assert.Equal(t, int64(77), handler.updates[0].UpdateID)
	require.NotNil(t, handler.updates[0].Message)
	assert.Equal(t, "hi", handler.updates[0].Message.Text)
}

func TestWebhook_AlwaysOK(t *testing.T) {
	handler := &recordingHandler{err: errors.New("boom")}
	ts := newTestServer(t, handler)

	status, body := post(t, ts.URL+"/"+secret, `{"update_id": 1}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)

	status, body = post(t, ts.URL+"/"+secret, `not json`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)
	assert.Len(t, handler.updates, 1, "malformed body is not dispatched")
}

func TestWebhook_WrongSecret(t *testing.T) {
	handler := &recordingHandler{}
	ts := newTestServer(t, handler)

	status, _ := post(t, ts.URL+"/guess", `{"update_id": 1}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Empty(t, handler.updates)
}

func TestWebhook_RequestID(t *testing.T) {
	ts := newTestServer(t, &recordingHandler{})

	resp, err := http.Post(ts.URL+"/"+secret, "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Len(t, resp.Header.Get(RequestIDHeader), 36)
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		ts := newTestServer(t, &recordingHandler{}, WithHealthCheck(func(context.Context) error { return nil }))
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("unhealthy", func(t *testing.T) {
		ts := newTestServer(t, &recordingHandler{}, WithHealthCheck(func(context.Context) error { return errors.New("db gone") }))
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, &recordingHandler{})
	post(t, ts.URL+"/"+secret, `{"update_id": 1}`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	body := string(data)
	assert.Contains(t, body, "mediastash_http_requests_total")
	assert.Contains(t, body, `path="/{secret}"`)
	assert.NotContains(t, body, secret)
}

func TestPathLabel(t *testing.T) {
	s, err := New(":0", secret, &recordingHandler{})
	require.NoError(t, err)

	assert.Equal(t, "/{secret}", s.pathLabel("/"+secret))
	assert.Equal(t, "/healthz", s.pathLabel("/healthz"))
	assert.Equal(t, "/metrics", s.pathLabel("/metrics"))
	assert.Equal(t, "other", s.pathLabel("/wp-admin"))
}

func TestRun_GracefulShutdown(t *testing.T) {
	s, err := New("127.0.0.1:0", secret, &recordingHandler{}, WithShutdownTimeout(time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRun_ListenError(t *testing.T) {
	s, err := New("127.0.0.1:-1", secret, &recordingHandler{})
	require.NoError(t, err)

	err = s.Run(context.Background())
	assert.Error(t, err)
}
