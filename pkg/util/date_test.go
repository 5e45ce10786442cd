package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnixMillis(t *testing.T) {
	ms := time.Date(2024, 10, 10, 10, 10, 10, 123e6, time.UTC).UnixMilli()
	got, ok := ParseTime(strconv.FormatInt(ms, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UnixMilli() != ms {
		t.Fatalf("unexpected unix ms %v", got.UnixMilli())
	}
}

func TestParseTimeNegativeMillis(t *testing.T) {
	got, ok := ParseTime("-60000")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UnixMilli() != -60000 {
		t.Fatalf("unexpected unix ms %v", got.UnixMilli())
	}
}

func TestParseTimeInvalid(t *testing.T) {
	if _, ok := ParseTime("yesterday"); ok {
		t.Fatalf("expected failure")
	}
}

func TestNormalizeEpochMs(t *testing.T) {
	if got := NormalizeEpochMs(1700000000); got != 1700000000000 {
		t.Fatalf("seconds not scaled: %d", got)
	}
	if got := NormalizeEpochMs(1700000000123); got != 1700000000123 {
		t.Fatalf("millis changed: %d", got)
	}
}
