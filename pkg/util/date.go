package util

import (
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix milliseconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

// NormalizeEpochMs interprets ts as unix seconds when it is too small to be
// milliseconds of a date after 1973, and returns milliseconds. Millisecond
// inputs before March 1973 are misread, so callers opt in explicitly.
func NormalizeEpochMs(ts int64) int64 {
	if ts > 0 && ts < 1e11 {
		return ts * 1000
	}
	return ts
}
