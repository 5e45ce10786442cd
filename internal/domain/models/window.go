package models

import "time"

// AggregatedWindow summarises one [StartTime, EndTime) interval of a series
// at one granularity.
type AggregatedWindow struct {
	SeriesID       string
	Granularity    Granularity
	StartTime      time.Time
	EndTime        time.Time
	Open           float64
	High           float64
	Low            float64
	Close          float64
	Volume         float64
	VWAP           float64
	DataPointCount int
	// Filler is set on windows synthesized for a gap.
	Filler bool
	// Metrics is the set of metrics the series requested.
	Metrics MetricSet
}

// Overlaps reports whether the window intersects [start, end).
func (w AggregatedWindow) Overlaps(start, end time.Time) bool {
	return w.StartTime.Before(end) && w.EndTime.After(start)
}

// Contains reports whether t falls in [StartTime, EndTime).
func (w AggregatedWindow) Contains(t time.Time) bool {
	return !t.Before(w.StartTime) && t.Before(w.EndTime)
}

// AlignWindow returns the epoch-aligned window start containing tsMs, using
// floor division so pre-1970 timestamps align downwards.
func AlignWindow(tsMs, durationMs int64) int64 {
	q := tsMs / durationMs
	if tsMs%durationMs != 0 && tsMs < 0 {
		q--
	}
	return q * durationMs
}

// MsToTime converts unix milliseconds to a UTC time.
func MsToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
