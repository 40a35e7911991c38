package eventlogger

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

const (
	sendKindSingle = "single"
	sendKindBatch  = "batch"

	flushTriggerTTL    = "ttl"
	flushTriggerVolume = "volume"
	flushTriggerManual = "manual"
)

// Engine deduplicates events, keeps their occurrence counts in an EventStore
// and decides when they are dispatched through a Sender.
//
// Every operation runs under a single mutex, Sender calls included, so a store
// mutation that depends on a send result always happens after the send
// completed and never races another merge or flush.
//
// Engine never returns errors to the caller: a telemetry side channel must not
// change the host application's control flow. Failures are logged.
type Engine struct {
	mu sync.Mutex

	store  EventStore
	sender Sender
	cache  TTLCache

	ttl             time.Duration
	maxEventCount   int
	deleteOnFailure bool
	dropDir         string
	env             Environment
	now             func() time.Time
	logger          *slog.Logger
	metrics         MetricsRecorder

	configured bool
}

func NewEngine(store EventStore, sender Sender, cache TTLCache, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		sender:        sender,
		cache:         cache,
		ttl:           DefaultTTL,
		maxEventCount: DefaultMaxEventCount,
		now:           time.Now,
		logger:        slog.Default(),
		metrics:       NoopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Configure hands the API credentials to the Sender and enables logging.
// A nil or incomplete cfg leaves the engine disabled and the Sender untouched.
// Once configured, stored events are flushed right away if the TTL expired.
// onCompletion, when non-nil, receives the outcome and a short message.
func (e *Engine) Configure(ctx context.Context, cfg *APIConfig, onCompletion func(ok bool, msg string)) bool {
	ok, msg := e.configure(ctx, cfg)
	if onCompletion != nil {
		onCompletion(ok, msg)
	}
	return ok
}

func (e *Engine) configure(ctx context.Context, cfg *APIConfig) (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.configured {
		e.logger.Debug("event logger already configured")
		return true, "event logger is already configured"
	}
	if !cfg.Valid() {
		e.logger.Debug("event logger not configured: missing api key or url")
		return false, "event logger cannot be configured due to invalid api parameters"
	}

	e.sender.Configure(*cfg)
	e.configured = true
	e.logger.Debug("event logger configured", slog.String("api_url", cfg.APIURL))

	if e.isTTLExpiredLocked() {
		e.sendAllLocked(ctx, e.deleteOnFailure, flushTriggerTTL)
	}
	return true, "event logger is configured"
}

func (e *Engine) IsConfigured() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.configured
}

// IsEventValid reports whether all required identity fields are non-empty.
func (e *Engine) IsEventValid(sourceName, sourceVersion, errorCode, errorMessage string) bool {
	return sourceName != "" && sourceVersion != "" && errorCode != "" && errorMessage != ""
}

// LogCritical records a high-priority event, which is sent immediately.
func (e *Engine) LogCritical(ctx context.Context, sourceName, sourceVersion, errorCode, errorMessage string, info map[string]string) {
	e.logEvent(ctx, EventTypeCritical, sourceName, sourceVersion, errorCode, errorMessage, info)
}

// LogWarning records a low-priority event, which waits for the next flush.
func (e *Engine) LogWarning(ctx context.Context, sourceName, sourceVersion, errorCode, errorMessage string, info map[string]string) {
	e.logEvent(ctx, EventTypeWarning, sourceName, sourceVersion, errorCode, errorMessage, info)
}

func (e *Engine) logEvent(ctx context.Context, typ EventType, sourceName, sourceVersion, errorCode, errorMessage string, info map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.configured {
		return
	}
	if !e.IsEventValid(sourceName, sourceVersion, errorCode, errorMessage) {
		e.metrics.RecordInvalid(ctx)
		e.logger.Debug("dropping invalid event",
			slog.String("source", sourceName),
			slog.String("code", errorCode))
		return
	}

	ev := NewEvent(e.env, typ, sourceName, sourceVersion, errorCode, errorMessage, info, e.now())
	e.sendEventIfNeededLocked(ctx, typ, ev.Fingerprint(), ev, typ == EventTypeCritical, e.maxEventCount)
}

// SendEventIfNeeded merges event into the entry stored at fingerprint (or
// inserts it), sends it immediately when isCritical, and flushes the whole
// store once it holds maxEventCount entries. maxEventCount <= 0 uses the
// engine's configured limit.
//
// A critical event is stored as a warning after its send attempt, whether or
// not the send succeeded. The demotion only affects how the stored entry is
// flushed: each later call with isCritical set merges into the entry, turns it
// critical again and sends it immediately once more.
//
// If the stored entry cannot be read the occurrence is dropped and nothing is
// written or sent.
func (e *Engine) SendEventIfNeeded(ctx context.Context, typ EventType, fingerprint string, event Event, isCritical bool, maxEventCount int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if maxEventCount <= 0 {
		maxEventCount = e.maxEventCount
	}
	e.sendEventIfNeededLocked(ctx, typ, fingerprint, event, isCritical, maxEventCount)
}

func (e *Engine) sendEventIfNeededLocked(ctx context.Context, typ EventType, fingerprint string, event Event, isCritical bool, maxEventCount int) {
	existing, found, err := e.store.Retrieve(fingerprint)
	if err != nil {
		// Writing a fresh entry here would overwrite the stored count.
		e.metrics.RecordStoreError(ctx, "retrieve")
		e.logger.Warn("retrieve stored event failed, dropping occurrence",
			slog.String("fingerprint", fingerprint),
			slog.String("error", err.Error()))
		return
	}

	stored := event
	if found {
		stored = Merge(existing, event, typ)
	} else {
		stored.OccurrenceCount = 1
		stored.EventType = typ
	}
	e.metrics.RecordLogged(ctx, typ, found)

	if err := e.store.InsertOrUpdate(fingerprint, stored); err != nil {
		e.logger.Warn("store event failed",
			slog.String("fingerprint", fingerprint),
			slog.String("error", err.Error()))
	}

	if isCritical {
		if err := e.send(ctx, sendKindSingle, []Event{stored}); err != nil {
			e.logger.Warn("send critical event failed",
				slog.String("fingerprint", fingerprint),
				slog.String("error", err.Error()))
		} else {
			e.logger.Debug("critical event sent", slog.String("fingerprint", fingerprint))
		}
		if err := e.store.InsertOrUpdate(fingerprint, Demote(stored)); err != nil {
			e.logger.Warn("demote stored event failed",
				slog.String("fingerprint", fingerprint),
				slog.String("error", err.Error()))
		}
	}

	count, err := e.store.Count()
	if err != nil {
		e.logger.Warn("count stored events failed", slog.String("error", err.Error()))
		return
	}
	if maxEventCount > 0 && count >= maxEventCount {
		e.logger.Debug("stored event limit reached, flushing",
			slog.Int("count", count),
			slog.Int("max_event_count", maxEventCount))
		// A full store is dropped on failure so it cannot keep growing.
		e.sendAllLocked(ctx, true, flushTriggerVolume)
	}
}

// SendAllEventsInStorage sends every stored event as one batch. On success the
// store is cleared; on failure it is cleared only when deleteOldEventsOnFailure
// is set. The TTL reference time is reset either way. An empty store is left
// alone and the Sender is not called.
func (e *Engine) SendAllEventsInStorage(ctx context.Context, deleteOldEventsOnFailure bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendAllLocked(ctx, deleteOldEventsOnFailure, flushTriggerManual)
}

func (e *Engine) sendAllLocked(ctx context.Context, deleteOnFailure bool, trigger string) {
	stored, err := e.store.GetAllEvents()
	if err != nil {
		e.logger.Warn("read stored events failed", slog.String("error", err.Error()))
		return
	}
	if len(stored) == 0 {
		return
	}

	keys := make([]string, 0, len(stored))
	for k := range stored {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := make([]Event, 0, len(keys))
	for _, k := range keys {
		batch = append(batch, stored[k])
	}

	removed := 0
	sendErr := e.send(ctx, sendKindBatch, batch)
	switch {
	case sendErr == nil:
		if e.deleteAllLocked(ctx) {
			removed = len(batch)
		}
		e.logger.Debug("stored events sent",
			slog.String("trigger", trigger),
			slog.Int("count", len(batch)))
	case deleteOnFailure:
		e.archiveLocked(stored)
		if e.deleteAllLocked(ctx) {
			removed = len(batch)
		}
		e.logger.Warn("send stored events failed, dropping batch",
			slog.String("trigger", trigger),
			slog.Int("count", len(batch)),
			slog.String("error", sendErr.Error()))
	default:
		e.logger.Warn("send stored events failed, keeping batch",
			slog.String("trigger", trigger),
			slog.Int("count", len(batch)),
			slog.String("error", sendErr.Error()))
	}

	// Reset on failure too: the next time-based flush waits a full TTL.
	if err := e.cache.SetReferenceTime(e.now()); err != nil {
		e.logger.Warn("reset ttl reference failed", slog.String("error", err.Error()))
	}
	e.metrics.RecordFlush(ctx, trigger, len(batch), removed)
}

func (e *Engine) deleteAllLocked(ctx context.Context) bool {
	if err := e.store.DeleteAll(); err != nil {
		e.metrics.RecordStoreError(ctx, "delete_all")
		e.logger.Warn("delete stored events failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

func (e *Engine) archiveLocked(stored map[string]Event) {
	if e.dropDir == "" {
		return
	}
	path, err := ArchiveBatch(e.dropDir, stored, e.now())
	if err != nil {
		e.logger.Warn("archive dropped batch failed", slog.String("error", err.Error()))
		return
	}
	e.logger.Info("dropped batch archived", slog.String("path", path), slog.Int("count", len(stored)))
}

func (e *Engine) send(ctx context.Context, kind string, events []Event) error {
	ctx, span := startSendSpan(ctx, kind, len(events))
	start := time.Now()
	var err error
	if kind == sendKindSingle {
		err = e.sender.SendEvent(ctx, events[0])
	} else {
		err = e.sender.SendEvents(ctx, events)
	}
	e.metrics.RecordSend(ctx, kind, len(events), time.Since(start), err)
	endSpan(span, err)
	return err
}

// IsTTLExpired reports whether at least the TTL has passed since the last bulk
// flush. A reference time that was never set counts as expired.
func (e *Engine) IsTTLExpired() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isTTLExpiredLocked()
}

func (e *Engine) isTTLExpiredLocked() bool {
	ref, err := e.cache.ReferenceTime()
	if err != nil {
		e.logger.Warn("read ttl reference failed", slog.String("error", err.Error()))
		return false
	}
	if ref.IsZero() {
		return true
	}
	return e.now().Sub(ref) >= e.ttl
}

// OnForeground is the host lifecycle hook: it flushes stored events when the
// TTL has expired.
func (e *Engine) OnForeground(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.configured {
		return
	}
	if e.isTTLExpiredLocked() {
		e.sendAllLocked(ctx, e.deleteOnFailure, flushTriggerTTL)
	}
}

// Run calls OnForeground every interval until ctx is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			e.OnForeground(ctx)
		}
	}
}
