package eventlogger

import "time"

// EventVersion is the schema version stamped on every event.
const EventVersion = "1.0"

type EventType string

const (
	EventTypeCritical EventType = "critical"
	EventTypeWarning  EventType = "warning"
)

func (t EventType) String() string { return string(t) }

// Event is one occurrence class. Identity fields never change after creation;
// OccurrenceCount and EventType are updated through Merge and Demote.
type Event struct {
	EventType     EventType `json:"eventType"`
	AppID         string    `json:"appId"`
	AppName       string    `json:"appName"`
	AppVersion    string    `json:"appVersion"`
	OSVersion     string    `json:"osVersion"`
	DeviceModel   string    `json:"deviceModel"`
	DeviceBrand   string    `json:"deviceBrand"`
	DeviceName    string    `json:"deviceName"`
	SourceName    string    `json:"sourceName"`
	SourceVersion string    `json:"sourceVersion"`
	ErrorCode     string    `json:"errorCode"`
	ErrorMessage  string    `json:"errorMessage"`
	Platform      string    `json:"platform"`
	EventVersion  string    `json:"eventVersion"`

	OccurrenceCount   int               `json:"occurrenceCount"`
	FirstOccurrenceOn float64           `json:"firstOccurrenceOn"` // unix seconds
	Info              map[string]string `json:"info,omitempty"`
}

func NewEvent(env Environment, typ EventType, sourceName, sourceVersion, errorCode, errorMessage string, info map[string]string, now time.Time) Event {
	return Event{
		EventType:         typ,
		AppID:             env.AppID,
		AppName:           env.AppName,
		AppVersion:        env.AppVersion,
		OSVersion:         env.OSVersion,
		DeviceModel:       env.DeviceModel,
		DeviceBrand:       env.DeviceBrand,
		DeviceName:        env.DeviceName,
		SourceName:        sourceName,
		SourceVersion:     sourceVersion,
		ErrorCode:         errorCode,
		ErrorMessage:      errorMessage,
		Platform:          env.Platform,
		EventVersion:      EventVersion,
		OccurrenceCount:   1,
		FirstOccurrenceOn: unixSeconds(now),
		Info:              copyInfo(info),
	}
}

// Fingerprint returns the deduplication key derived from the event's current type.
func (e Event) Fingerprint() string {
	return Fingerprint(e.EventType, e.AppVersion, e.SourceName, e.ErrorCode, e.ErrorMessage)
}

// FirstOccurrence returns FirstOccurrenceOn as a time.Time.
func (e Event) FirstOccurrence() time.Time {
	sec := int64(e.FirstOccurrenceOn)
	nsec := int64((e.FirstOccurrenceOn - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// Merge folds a repeat observation into the stored entry. The original
// first-occurrence time is kept; the count grows by one and the type becomes typ.
// The stored info map wins; the incoming one is used only when none was stored.
func Merge(existing, incoming Event, typ EventType) Event {
	out := existing
	if out.OccurrenceCount < 1 {
		out.OccurrenceCount = 1
	}
	out.OccurrenceCount++
	out.EventType = typ
	if len(existing.Info) == 0 {
		out.Info = copyInfo(incoming.Info)
	} else {
		out.Info = copyInfo(existing.Info)
	}
	return out
}

// Demote marks an event as a warning. It is applied after the first send attempt
// of a critical event, whatever the outcome.
func Demote(e Event) Event {
	e.EventType = EventTypeWarning
	return e
}

func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func copyInfo(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
