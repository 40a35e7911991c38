package eventlogger

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const syslogAppName = "eventlogger"

// SyslogSender writes each event as one RFC5424 line over TCP. Configure must
// still be called with valid credentials; the API URL itself is unused.
type SyslogSender struct {
	addr    string
	timeout time.Duration

	mu  sync.RWMutex
	cfg APIConfig
}

func NewSyslogSender(addr string, timeout time.Duration) *SyslogSender {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &SyslogSender{addr: addr, timeout: timeout}
}

func (c *SyslogSender) Configure(cfg APIConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

func (c *SyslogSender) SendEvent(ctx context.Context, event Event) error {
	return c.SendEvents(ctx, []Event{event})
}

// SendEvents writes the whole batch on one connection; any write error fails the batch.
func (c *SyslogSender) SendEvents(ctx context.Context, events []Event) error {
	c.mu.RLock()
	cfg := c.cfg
	c.mu.RUnlock()
	if !cfg.Valid() {
		return ErrNotConfigured
	}
	if len(events) == 0 {
		return nil
	}

	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	host, _ := os.Hostname()
	w := bufio.NewWriter(conn)
	for _, ev := range events {
		if _, err := w.WriteString(formatSyslogLine(host, ev, time.Now())); err != nil {
			return err
		}
	}
	return w.Flush()
}

func formatSyslogLine(host string, ev Event, now time.Time) string {
	pri := 134 // local0.info
	if ev.EventType == EventTypeCritical {
		pri = 130 // local0.crit
	}
	structured := buildStructuredData("eventlogger", map[string]string{
		"app":         ev.AppID,
		"fingerprint": ev.Fingerprint(),
		"event_type":  string(ev.EventType),
		"source":      ev.SourceName,
		"version":     ev.SourceVersion,
		"code":        ev.ErrorCode,
		"count":       strconv.Itoa(ev.OccurrenceCount),
		"first_seen":  firstSeen(ev),
	})
	msg := strings.TrimSpace(ev.ErrorMessage)
	if msg == "" {
		msg = "-"
	}
	return fmt.Sprintf("<%d>1 %s %s %s - - %s %s\n", pri, now.UTC().Format(time.RFC3339Nano), sanitizeSyslogToken(host), syslogAppName, structured, msg)
}

func firstSeen(ev Event) string {
	if ev.FirstOccurrenceOn <= 0 {
		return ""
	}
	return ev.FirstOccurrence().Format(time.RFC3339)
}

func sanitizeSyslogToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

func buildStructuredData(sdID string, kv map[string]string) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(sdID)
	preferredOrder := []string{"app", "fingerprint", "event_type", "source", "version", "code", "count", "first_seen"}
	seen := make(map[string]struct{}, len(kv))
	write := func(k, v string) {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=\"")
		b.WriteString(escapeSDParam(v))
		b.WriteString("\"")
	}
	for _, k := range preferredOrder {
		v, ok := kv[k]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		seen[k] = struct{}{}
		write(k, v)
	}
	extra := make([]string, 0, len(kv))
	for k, v := range kv {
		if _, ok := seen[k]; ok || strings.TrimSpace(v) == "" {
			continue
		}
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		write(k, kv[k])
	}
	b.WriteString("]")
	return b.String()
}

func escapeSDParam(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "]", "\\]")
	v = strings.ReplaceAll(v, "\n", " ")
	v = strings.ReplaceAll(v, "\r", " ")
	return v
}
