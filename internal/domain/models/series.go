package models

import (
	"fmt"
	"strings"
)

// DataType describes the nature of a series. It is informational only;
// MissingDataStrategy decides how empty windows are filled.
type DataType string

const (
	Continuous DataType = "CONTINUOUS"
	Discrete   DataType = "DISCRETE"
)

// Metric is one of the summary values a series can request.
type Metric string

const (
	MetricOpen   Metric = "OPEN"
	MetricHigh   Metric = "HIGH"
	MetricLow    Metric = "LOW"
	MetricClose  Metric = "CLOSE"
	MetricVolume Metric = "VOLUME"
	MetricVWAP   Metric = "VWAP"
)

var metricBits = map[Metric]MetricSet{
	MetricOpen:   1 << 0,
	MetricHigh:   1 << 1,
	MetricLow:    1 << 2,
	MetricClose:  1 << 3,
	MetricVolume: 1 << 4,
	MetricVWAP:   1 << 5,
}

var metricOrder = []Metric{MetricOpen, MetricHigh, MetricLow, MetricClose, MetricVolume, MetricVWAP}

// MetricSet is a bitmask of requested metrics.
type MetricSet uint8

// NewMetricSet builds a set from ms. Unknown metrics are ignored.
func NewMetricSet(ms ...Metric) MetricSet {
	var s MetricSet
	for _, m := range ms {
		s |= metricBits[m]
	}
	return s
}

// Has reports whether m is in the set.
func (s MetricSet) Has(m Metric) bool {
	b, ok := metricBits[m]
	return ok && s&b != 0
}

// Metrics lists the members in canonical order.
func (s MetricSet) Metrics() []Metric {
	out := make([]Metric, 0, len(metricOrder))
	for _, m := range metricOrder {
		if s.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

// MissingDataStrategy picks the values of a window that saw no observations.
type MissingDataStrategy string

const (
	UsePrevious MissingDataStrategy = "USE_PREVIOUS"
	UseZero     MissingDataStrategy = "USE_ZERO"
)

// SeriesDefinition configures a series. SeriesID is immutable after creation.
type SeriesDefinition struct {
	SeriesID            string
	Name                string
	DataType            DataType
	Metrics             []Metric
	GranularityLevels   []Granularity
	MissingDataStrategy MissingDataStrategy
}

// MetricSet returns the recognised metrics of the definition.
func (d SeriesDefinition) MetricSet() MetricSet {
	return NewMetricSet(d.Metrics...)
}

// Validate checks the definition. Unknown granularities fail with
// ErrUnsupportedGranularity, every other defect with ErrInvalidDefinition.
func (d SeriesDefinition) Validate() error {
	if strings.TrimSpace(d.SeriesID) == "" {
		return fmt.Errorf("%w: series id is required", ErrInvalidDefinition)
	}
	switch d.DataType {
	case Continuous, Discrete:
	default:
		return fmt.Errorf("%w: unknown data type %q", ErrInvalidDefinition, d.DataType)
	}
	switch d.MissingDataStrategy {
	case UsePrevious, UseZero:
	default:
		return fmt.Errorf("%w: unknown missing data strategy %q", ErrInvalidDefinition, d.MissingDataStrategy)
	}
	if len(d.Metrics) == 0 {
		return fmt.Errorf("%w: at least one metric is required", ErrInvalidDefinition)
	}
	if d.MetricSet() == 0 {
		return fmt.Errorf("%w: no recognised metric in %v", ErrInvalidDefinition, d.Metrics)
	}
	if len(d.GranularityLevels) == 0 {
		return fmt.Errorf("%w: at least one granularity is required", ErrInvalidDefinition)
	}
	seen := make(map[Granularity]struct{}, len(d.GranularityLevels))
	for _, g := range d.GranularityLevels {
		if !g.IsValid() {
			return fmt.Errorf("%w: %q", ErrUnsupportedGranularity, g)
		}
		if _, dup := seen[g]; dup {
			return fmt.Errorf("%w: duplicate granularity %s", ErrInvalidDefinition, g)
		}
		seen[g] = struct{}{}
	}
	return nil
}

// Normalize fills defaults and returns a deep copy safe to retain.
func (d SeriesDefinition) Normalize() SeriesDefinition {
	out := d
	out.SeriesID = strings.TrimSpace(d.SeriesID)
	if out.Name == "" {
		out.Name = out.SeriesID
	}
	if out.DataType == "" {
		out.DataType = Continuous
	}
	if out.MissingDataStrategy == "" {
		out.MissingDataStrategy = UsePrevious
	}
	out.Metrics = append([]Metric(nil), d.Metrics...)
	out.GranularityLevels = append([]Granularity(nil), d.GranularityLevels...)
	return out
}

// HasGranularity reports whether g is configured for the series.
func (d SeriesDefinition) HasGranularity(g Granularity) bool {
	for _, l := range d.GranularityLevels {
		if l == g {
			return true
		}
	}
	return false
}
