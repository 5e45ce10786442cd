package models

import (
	"fmt"
	"math"
	"time"
)

// DefaultVolume is the weight of an observation that carries no volume.
const DefaultVolume = 1.0

// longestWindowMs is the duration of the coarsest granularity (DAY_20).
const longestWindowMs = 20 * 24 * 60 * 60 * 1000

// Accepted timestamps keep window ends and gap counts within int64 for every
// granularity.
const (
	MinTimestampMs int64 = math.MinInt64 + longestWindowMs
	MaxTimestampMs int64 = math.MaxInt64 - longestWindowMs
)

// DataPoint is a single observation. A zero Timestamp means "missing".
type DataPoint struct {
	Timestamp time.Time
	Value     float64
	Volume    *float64
}

// NewDataPoint builds a point without volume.
func NewDataPoint(ts time.Time, value float64) DataPoint {
	return DataPoint{Timestamp: ts, Value: value}
}

// WithVolume returns a copy carrying v as volume.
func (p DataPoint) WithVolume(v float64) DataPoint {
	p.Volume = &v
	return p
}

// EffectiveVolume returns the volume, defaulting to 1 when absent.
func (p DataPoint) EffectiveVolume() float64 {
	if p.Volume == nil {
		return DefaultVolume
	}
	return *p.Volume
}

// TimestampMs returns the timestamp in unix milliseconds.
func (p DataPoint) TimestampMs() int64 {
	return p.Timestamp.UnixMilli()
}

// Validate performs the sanity checks shared by every granularity.
func (p DataPoint) Validate() error {
	if p.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidDataPoint)
	}
	if ms := p.TimestampMs(); ms < MinTimestampMs || ms > MaxTimestampMs {
		return fmt.Errorf("%w: timestamp %d out of range", ErrInvalidDataPoint, ms)
	}
	if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
		return fmt.Errorf("%w: value must be finite", ErrInvalidDataPoint)
	}
	if p.Volume != nil {
		v := *p.Volume
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: volume must be finite and non-negative", ErrInvalidDataPoint)
		}
	}
	return nil
}
