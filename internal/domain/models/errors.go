package models

import "errors"

// Domain errors. Every failure is a caller error detected before any state
// changes; wrap with fmt.Errorf("...: %w") and test with errors.Is.
var (
	ErrSeriesNotFound         = errors.New("series not found")
	ErrDuplicateSeries        = errors.New("duplicate series")
	ErrInvalidDefinition      = errors.New("invalid series definition")
	ErrUnsupportedGranularity = errors.New("unsupported granularity")
	ErrInvalidDataPoint       = errors.New("invalid data point")
	ErrNonMonotonicTimestamp  = errors.New("non-monotonic timestamp")
	ErrInvalidRange           = errors.New("invalid range")
	ErrGapTooLarge            = errors.New("gap too large")
)
