package eventlogger

import "strings"

// ParseEventType maps severity strings onto the two event types:
// - error/critical/2..5 -> critical
// - warn/warning/1 -> warning
// Anything else is reported as not ok.
func ParseEventType(v string) (EventType, bool) {
	s := strings.ToLower(strings.TrimSpace(v))
	switch s {
	case "error", "critical", "2", "3", "4", "5":
		return EventTypeCritical, true
	case "warn", "warning", "1":
		return EventTypeWarning, true
	default:
		return "", false
	}
}
