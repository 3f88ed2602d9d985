package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, extensionName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", extensionName, sessionStart.Format("20060102_150405")),
	)
}

// OpenLogFile creates logsDir and opens the session log for appending. A
// file already at that path is kept once as <path>.old.
func OpenLogFile(logsDir, extensionName string, sessionStart time.Time) (*os.File, string, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, "", fmt.Errorf("create logs directory: %w", err)
	}
	path := LogFilePath(logsDir, extensionName, sessionStart)
	if _, err := os.Stat(path); err == nil {
		_ = os.Rename(path, path+".old")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, path, err
	}
	return f, path, nil
}
