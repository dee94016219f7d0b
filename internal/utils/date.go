// Package utils provides utility functions for time conversion, file operations,
// and context-aware waiting used throughout the RestBackup client.
package utils

import (
	"time"
)

// EpochToTime converts epoch seconds, as used by the Backup API listing,
// into a UTC time.Time.
func EpochToTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
