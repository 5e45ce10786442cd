package timeseries

import (
	"fmt"

	"FinSeries/internal/domain/models"
)

// MissingDataPolicy resolves the values of a window that saw no observations.
// previous is the close of the last finalized window (or the first price
// ever seen when no window has closed yet).
type MissingDataPolicy interface {
	Fill(w *models.AggregatedWindow, previous float64)
}

type usePrevious struct{}

func (usePrevious) Fill(w *models.AggregatedWindow, previous float64) {
	w.Open, w.High, w.Low, w.Close = previous, previous, previous, previous
	w.Volume = 0
	w.VWAP = previous
	w.DataPointCount = 0
}

type useZero struct{}

func (useZero) Fill(w *models.AggregatedWindow, _ float64) {
	w.Open, w.High, w.Low, w.Close = 0, 0, 0, 0
	w.Volume = 0
	w.VWAP = 0
	w.DataPointCount = 0
}

// PolicyFor returns the policy implementing s.
func PolicyFor(s models.MissingDataStrategy) (MissingDataPolicy, error) {
	switch s {
	case models.UsePrevious:
		return usePrevious{}, nil
	case models.UseZero:
		return useZero{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown missing data strategy %q", models.ErrInvalidDefinition, s)
	}
}
