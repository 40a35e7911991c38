package eventlogger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArchiveBatch writes a dropped batch as JSON into dstDir and returns the file
// path. Existing files are never overwritten.
func ArchiveBatch(dstDir string, events map[string]Event, now time.Time) (string, error) {
	if strings.TrimSpace(dstDir) == "" {
		return "", fmt.Errorf("dstDir is empty")
	}
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return "", err
	}

	base := fmt.Sprintf("dropped-%s.json", now.UTC().Format("20060102T150405"))
	dstPath := filepath.Join(dstDir, base)
	f, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		ext := filepath.Ext(base)
		name := strings.TrimSuffix(base, ext)
		dstPath = filepath.Join(dstDir, fmt.Sprintf("%s-%d%s", name, time.Now().UnixNano(), ext))
		f, err = os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", err
	}
	_, writeErr := f.Write(b)
	closeErr := f.Close()
	if writeErr != nil {
		_ = os.Remove(dstPath)
		return "", writeErr
	}
	if closeErr != nil {
		_ = os.Remove(dstPath)
		return "", closeErr
	}
	return dstPath, nil
}
