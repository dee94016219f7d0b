// Package logging configures logrus for the restbackup command.
// Log entries go to stderr, so that command output on stdout stays parseable,
// and optionally to a log file as JSON.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// programName is used as a field in all log entries for identification
var programName = filepath.Base(os.Args[0])

// LogInfo logs an informational message with the command field.
func LogInfo(msg string) {
	log.WithFields(log.Fields{"command": programName}).Info(msg)
}

// LogError logs the provided error message with the command field.
// This function should be used for errors reported to the user before the
// command exits.
func LogError(msg string) {
	log.WithFields(log.Fields{"command": programName}).Error(msg)
}

// PrepareLogs configures the standard logger.
//
// Parameters:
//   - logName: Path to a log file, appended to and created if needed. Empty
//     logs to stderr only.
//   - debug: If true, enables DEBUG level logging, otherwise INFO
//
// Returns the opened log file (nil when logName is empty) so the caller can
// close it, or an error if the file cannot be opened.
func PrepareLogs(logName string, debug bool) (io.Closer, error) {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)

	if logName == "" {
		log.SetOutput(os.Stderr)
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		return nil, nil
	}

	logFile, err := os.OpenFile(logName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	log.SetFormatter(&log.JSONFormatter{})
	return logFile, nil
}
