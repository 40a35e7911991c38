package eventlogger

import "strings"

const fingerprintSeparator = "_"

// Fingerprint builds the deduplication key for an event class:
// "<type>_<appVersion>_<sourceName>_<errorCode>_<errorMessage>" with spaces
// replaced by underscores, lowercased. The full string is the key, not a hash.
func Fingerprint(eventType EventType, appVersion, sourceName, errorCode, errorMessage string) string {
	id := strings.Join([]string{
		string(eventType),
		appVersion,
		sourceName,
		errorCode,
		errorMessage,
	}, fingerprintSeparator)
	return strings.ToLower(strings.ReplaceAll(id, " ", "_"))
}
