package eventlogger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

type mockSender struct {
	mu         sync.Mutex
	configured []APIConfig
	single     []Event
	batches    [][]Event
	fail       bool
}

func (m *mockSender) Configure(cfg APIConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configured = append(m.configured, cfg)
}

func (m *mockSender) SendEvent(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.single = append(m.single, event)
	if m.fail {
		return errors.New("mock send failure")
	}
	return nil
}

func (m *mockSender) SendEvents(_ context.Context, events []Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Event, len(events))
	copy(cp, events)
	m.batches = append(m.batches, cp)
	if m.fail {
		return errors.New("mock send failure")
	}
	return nil
}

func (m *mockSender) SetFail(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = v
}

func (m *mockSender) SingleCalls() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.single))
	copy(out, m.single)
	return out
}

func (m *mockSender) BatchCalls() [][]Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Event, len(m.batches))
	copy(out, m.batches)
	return out
}

func (m *mockSender) ConfigureCalls() []APIConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]APIConfig, len(m.configured))
	copy(out, m.configured)
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var testEnv = Environment{
	AppID:       "com.example.app",
	AppName:     "example",
	AppVersion:  "7.2.0",
	Platform:    "linux",
	OSVersion:   "6.1",
	DeviceModel: "amd64",
	DeviceBrand: "gc",
	DeviceName:  "host-1",
}

var testAPIConfig = &APIConfig{APIKey: "key-123", APIURL: "https://collector.example/events"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type engineFixture struct {
	engine *Engine
	store  *MemoryStore
	sender *mockSender
	cache  *MemoryCache
	clock  *fakeClock
}

func newEngineFixture(opts ...Option) *engineFixture {
	f := &engineFixture{
		store:  NewMemoryStore(),
		sender: &mockSender{},
		cache:  NewMemoryCache(),
		clock:  newFakeClock(),
	}
	base := []Option{
		WithClock(f.clock.Now),
		WithEnvironment(testEnv),
		WithLogger(discardLogger()),
		WithTTL(time.Hour),
	}
	f.engine = NewEngine(f.store, f.sender, f.cache, append(base, opts...)...)
	return f
}

func sampleEvent(typ EventType, code, message string) Event {
	return NewEvent(testEnv, typ, "IAM", "7.2.0", code, message, nil, time.Unix(1700000000, 0))
}

// faultyStore wraps a MemoryStore and fails selected calls.
type faultyStore struct {
	*MemoryStore

	mu            sync.Mutex
	retrieveFails int
	deleteFails   bool
}

func (s *faultyStore) FailRetrieve(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retrieveFails = n
}

func (s *faultyStore) FailDelete(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteFails = v
}

func (s *faultyStore) Retrieve(key string) (Event, bool, error) {
	s.mu.Lock()
	fail := s.retrieveFails > 0
	if fail {
		s.retrieveFails--
	}
	s.mu.Unlock()
	if fail {
		return Event{}, false, errors.New("disk I/O error")
	}
	return s.MemoryStore.Retrieve(key)
}

func (s *faultyStore) DeleteAll() error {
	s.mu.Lock()
	fail := s.deleteFails
	s.mu.Unlock()
	if fail {
		return errors.New("disk I/O error")
	}
	return s.MemoryStore.DeleteAll()
}

type flushRecord struct {
	trigger string
	size    int
	removed int
}

// recordingMetrics keeps the calls the engine tests assert on.
type recordingMetrics struct {
	NoopMetrics

	mu          sync.Mutex
	storeErrors []string
	flushes     []flushRecord
}

func (m *recordingMetrics) RecordStoreError(_ context.Context, op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeErrors = append(m.storeErrors, op)
}

func (m *recordingMetrics) RecordFlush(_ context.Context, trigger string, size int, removed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes = append(m.flushes, flushRecord{trigger: trigger, size: size, removed: removed})
}

func (m *recordingMetrics) StoreErrors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.storeErrors...)
}

func (m *recordingMetrics) Flushes() []flushRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]flushRecord(nil), m.flushes...)
}
