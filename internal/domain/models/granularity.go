package models

import (
	"fmt"
	"time"
)

// Granularity is a fixed window duration at which a series is aggregated.
type Granularity string

const (
	Min1  Granularity = "MIN_1"
	Min5  Granularity = "MIN_5"
	Min15 Granularity = "MIN_15"
	Min30 Granularity = "MIN_30"
	Min60 Granularity = "MIN_60"
	Day1  Granularity = "DAY_1"
	Day5  Granularity = "DAY_5"  // trading week
	Day20 Granularity = "DAY_20" // trading month
)

const dayDur = 24 * time.Hour

type granularitySpec struct {
	duration time.Duration
	label    string
}

var granularityTable = map[Granularity]granularitySpec{
	Min1:  {duration: time.Minute, label: "1m"},
	Min5:  {duration: 5 * time.Minute, label: "5m"},
	Min15: {duration: 15 * time.Minute, label: "15m"},
	Min30: {duration: 30 * time.Minute, label: "30m"},
	Min60: {duration: time.Hour, label: "60m"},
	Day1:  {duration: dayDur, label: "1d"},
	Day5:  {duration: 5 * dayDur, label: "1w"},
	Day20: {duration: 20 * dayDur, label: "1M"},
}

// AllGranularities lists every supported granularity, finest first.
var AllGranularities = []Granularity{Min1, Min5, Min15, Min30, Min60, Day1, Day5, Day20}

var labelIndex = func() map[string]Granularity {
	m := make(map[string]Granularity, len(granularityTable))
	for g, s := range granularityTable {
		m[s.label] = g
	}
	return m
}()

// IsValid reports whether g is one of the enumerated granularities.
func (g Granularity) IsValid() bool {
	_, ok := granularityTable[g]
	return ok
}

// Duration returns the window length, or 0 for unknown values.
func (g Granularity) Duration() time.Duration {
	return granularityTable[g].duration
}

// DurationMs returns the window length in milliseconds.
func (g Granularity) DurationMs() int64 {
	return g.Duration().Milliseconds()
}

// Label returns the HTTP boundary string (1m, 5m, ..., 1w, 1M).
func (g Granularity) Label() string {
	if s, ok := granularityTable[g]; ok {
		return s.label
	}
	return string(g)
}

func (g Granularity) String() string { return string(g) }

// ParseGranularity maps a boundary string onto the enum. The mapping is
// case-sensitive: "1w" is DAY_5 and "1M" is DAY_20, not calendar periods.
func ParseGranularity(s string) (Granularity, error) {
	if g, ok := labelIndex[s]; ok {
		return g, nil
	}
	if g := Granularity(s); g.IsValid() {
		return g, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedGranularity, s)
}

// GranularityLabels returns the boundary strings in AllGranularities order.
func GranularityLabels() []string {
	out := make([]string, 0, len(AllGranularities))
	for _, g := range AllGranularities {
		out = append(out, g.Label())
	}
	return out
}
