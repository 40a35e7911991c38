package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-logger/eventlogger"
)

func newTestRouter() (http.Handler, *Recorder) {
	rec := NewRecorder()
	cfg := Config{
		APIKeys: map[string]string{"key-123": "acme"},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return NewRouter(cfg, rec), rec
}

func postEvents(t *testing.T, h http.Handler, apiKey string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(eventlogger.HeaderAPIKey, apiKey)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func testEvent(typ eventlogger.EventType, code string) eventlogger.Event {
	env := eventlogger.Environment{AppID: "com.example.app", AppName: "example", AppVersion: "7.2.0", Platform: "linux"}
	return eventlogger.NewEvent(env, typ, "IAM", "7.2.0", code, "boom", nil, time.Unix(1700000000, 0))
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestPostEvents_Unauthorized(t *testing.T) {
	h, rec := newTestRouter()
	body, _ := json.Marshal([]eventlogger.Event{testEvent(eventlogger.EventTypeWarning, "404")})

	assert.Equal(t, http.StatusUnauthorized, postEvents(t, h, "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, postEvents(t, h, "wrong", body).Code)
	assert.Empty(t, rec.Batches())
}

func TestPostEvents_BadRequest(t *testing.T) {
	bad := testEvent(eventlogger.EventTypeWarning, "404")
	bad.EventType = "fatal"
	noSource := testEvent(eventlogger.EventTypeWarning, "404")
	noSource.SourceName = ""

	tests := []struct {
		name string
		body []byte
	}{
		{"invalid json", []byte(`{not json`)},
		{"object instead of array", []byte(`{"eventType":"warning"}`)},
		{"empty batch", []byte(`[]`)},
		{"unknown event type", mustJSON(t, []eventlogger.Event{bad})},
		{"missing source", mustJSON(t, []eventlogger.Event{noSource})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, rec := newTestRouter()
			w := postEvents(t, h, "key-123", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, rec.Batches())
		})
	}
}

func TestPostEvents_Accepted(t *testing.T) {
	h, rec := newTestRouter()
	events := []eventlogger.Event{
		testEvent(eventlogger.EventTypeWarning, "404"),
		testEvent(eventlogger.EventTypeCritical, "500"),
	}

	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(mustJSON(t, events)))
	req.Header.Set(eventlogger.HeaderAPIKey, "key-123")
	req.Header.Set(eventlogger.HeaderBatchID, "batch-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp AcceptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, AcceptResponse{Accepted: 2, BatchID: "batch-1"}, resp)

	batches := rec.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, "acme", batches[0].Tenant)
	assert.Equal(t, events, batches[0].Events)
	assert.Equal(t, 2, rec.EventCount())
}

func TestParseAPIKeys(t *testing.T) {
	got := ParseAPIKeys(" acme:key-1, beta:key-2 ,broken,:nokey,notenant:, ")
	assert.Equal(t, map[string]string{"key-1": "acme", "key-2": "beta"}, got)
}

// TestEndToEnd drives an Engine with the HTTP sender against the collector.
func TestEndToEnd(t *testing.T) {
	h, rec := newTestRouter()
	srv := httptest.NewServer(h)
	defer srv.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := eventlogger.NewMemoryCache()
	require.NoError(t, cache.SetReferenceTime(now))
	store := eventlogger.NewMemoryStore()
	engine := eventlogger.NewEngine(store, eventlogger.NewHTTPSender(), cache,
		eventlogger.WithClock(func() time.Time { return now }),
		eventlogger.WithEnvironment(eventlogger.Environment{AppID: "com.example.app", AppVersion: "7.2.0"}),
		eventlogger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		eventlogger.WithMaxEventCount(3),
	)

	ctx := context.Background()
	require.True(t, engine.Configure(ctx, &eventlogger.APIConfig{APIKey: "key-123", APIURL: srv.URL + "/events"}, nil))

	engine.LogCritical(ctx, "IAM", "7.2.0", "500", "Network Error", nil)
	require.Len(t, rec.Batches(), 1, "critical events are sent immediately")
	assert.Equal(t, eventlogger.EventTypeCritical, rec.Batches()[0].Events[0].EventType)

	engine.LogWarning(ctx, "IAM", "7.2.0", "404", "Not Found", nil)
	engine.LogWarning(ctx, "IAM", "7.2.0", "404", "Not Found", nil)
	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	engine.LogWarning(ctx, "Billing", "1.0.0", "402", "Payment Required", nil)
	batches := rec.Batches()
	require.Len(t, batches, 2, "third distinct fingerprint triggers a volume flush")
	assert.Len(t, batches[1].Events, 3)
	for _, ev := range batches[1].Events {
		assert.Equal(t, eventlogger.EventTypeWarning, ev.EventType)
		if ev.ErrorCode == "404" {
			assert.Equal(t, 2, ev.OccurrenceCount)
		}
	}
	n, err = store.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
