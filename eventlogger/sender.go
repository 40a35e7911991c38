package eventlogger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultSendTimeout = 10 * time.Second

// ErrNotConfigured is returned by senders used before Configure.
var ErrNotConfigured = errors.New("eventlogger: sender not configured")

// Sender dispatches events to the collection endpoint. A batch is sent as a
// whole; a nil error means the endpoint accepted every event in it.
type Sender interface {
	Configure(cfg APIConfig)
	SendEvent(ctx context.Context, event Event) error
	SendEvents(ctx context.Context, events []Event) error
}

// APIError represents a non-2xx response from the collection endpoint.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPSenderOption configures an HTTPSender.
type HTTPSenderOption func(*HTTPSender)

// WithTimeout sets the HTTP client timeout. Default: 10s.
func WithTimeout(d time.Duration) HTTPSenderOption {
	return func(s *HTTPSender) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) HTTPSenderOption {
	return func(s *HTTPSender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithHeaders sets extra headers sent with every request.
func WithHeaders(h map[string]string) HTTPSenderOption {
	return func(s *HTTPSender) { s.headers = h }
}

// HTTPSender POSTs events as a JSON array to the configured API URL.
type HTTPSender struct {
	client  *http.Client
	headers map[string]string

	mu  sync.RWMutex
	cfg APIConfig
}

func NewHTTPSender(opts ...HTTPSenderOption) *HTTPSender {
	s := &HTTPSender{
		client: &http.Client{Timeout: defaultSendTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSender) Configure(cfg APIConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func (s *HTTPSender) config() APIConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *HTTPSender) SendEvent(ctx context.Context, event Event) error {
	return s.SendEvents(ctx, []Event{event})
}

func (s *HTTPSender) SendEvents(ctx context.Context, events []Event) error {
	cfg := s.config()
	if !cfg.Valid() {
		return ErrNotConfigured
	}
	if len(events) == 0 {
		return nil
	}

	body, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAPIKey, cfg.APIKey)
	req.Header.Set(HeaderBatchID, uuid.NewString())
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post events: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
}

const (
	HeaderAPIKey  = "X-API-Key"
	HeaderBatchID = "X-Batch-Id"
)
