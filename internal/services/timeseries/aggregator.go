package timeseries

import (
	"fmt"
	"math"

	"FinSeries/internal/domain/models"
)

// maxFillerPrealloc bounds the slice preallocated for fillers.
const maxFillerPrealloc = 1024

// openWindow is the mutable state of the in-progress window.
type openWindow struct {
	start, end int64
	open       float64
	high       float64
	low        float64
	close      float64
	volume     float64
	pv         float64 // sum(value*volume), only when VWAP is requested
	sum        float64 // sum(value), VWAP fallback when every volume is zero
	count      int
}

// Aggregator holds the open window of one (series, granularity) pair and
// emits windows as later points close them. Windows close only when a point
// at or after their end arrives. Not safe for concurrent use; the router
// serializes access per series.
type Aggregator struct {
	seriesID   string
	g          models.Granularity
	durationMs int64
	metrics    models.MetricSet
	policy     MissingDataPolicy
	trackVWAP  bool

	cur     openWindow
	hasOpen bool

	lastTs    int64
	lastClose float64
	hasClose  bool
	first     float64
	hasFirst  bool
}

// NewAggregator builds an aggregator in the EMPTY state.
func NewAggregator(seriesID string, g models.Granularity, metrics models.MetricSet, policy MissingDataPolicy) (*Aggregator, error) {
	if !g.IsValid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedGranularity, g)
	}
	if policy == nil {
		return nil, fmt.Errorf("%w: missing data policy is required", models.ErrInvalidDefinition)
	}
	return &Aggregator{
		seriesID:   seriesID,
		g:          g,
		durationMs: g.DurationMs(),
		metrics:    metrics,
		policy:     policy,
		trackVWAP:  metrics.Has(models.MetricVWAP),
	}, nil
}

// Granularity returns the window duration this aggregator serves.
func (a *Aggregator) Granularity() models.Granularity { return a.g }

// FillersNeeded returns how many empty windows accepting a point at tsMs
// would synthesize. It saturates at math.MaxInt64.
func (a *Aggregator) FillersNeeded(tsMs int64) int64 {
	if !a.hasOpen || tsMs < a.cur.end {
		return 0
	}
	gap := models.AlignWindow(tsMs, a.durationMs) - a.cur.end
	if gap < 0 {
		// wrapped past int64
		return math.MaxInt64
	}
	return gap / a.durationMs
}

// Accept folds p into the open window. It returns, in ascending StartTime
// order, the window finalized by p followed by any fillers for skipped
// boundaries. It returns nil when p falls inside the open window.
func (a *Aggregator) Accept(p models.DataPoint) ([]models.AggregatedWindow, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ts := p.TimestampMs()
	if a.hasOpen && ts < a.lastTs {
		return nil, fmt.Errorf("%w: %d before %d", models.ErrNonMonotonicTimestamp, ts, a.lastTs)
	}
	a.lastTs = ts
	if !a.hasFirst {
		a.first, a.hasFirst = p.Value, true
	}

	if !a.hasOpen {
		a.openAt(ts, p)
		return nil, nil
	}
	if ts < a.cur.end {
		a.update(p)
		return nil, nil
	}

	newStart := models.AlignWindow(ts, a.durationMs)
	closed := make([]models.AggregatedWindow, 0, 1+min(a.FillersNeeded(ts), maxFillerPrealloc))
	closed = append(closed, a.finalize())
	for s := a.cur.end; s < newStart; s += a.durationMs {
		closed = append(closed, a.filler(s))
	}
	a.openAt(ts, p)
	return closed, nil
}

// Current returns a snapshot of the open window, if any.
func (a *Aggregator) Current() (models.AggregatedWindow, bool) {
	if !a.hasOpen {
		return models.AggregatedWindow{}, false
	}
	return a.snapshot(), true
}

func (a *Aggregator) openAt(ts int64, p models.DataPoint) {
	start := models.AlignWindow(ts, a.durationMs)
	vol := p.EffectiveVolume()
	a.cur = openWindow{
		start:  start,
		end:    start + a.durationMs,
		open:   p.Value,
		high:   p.Value,
		low:    p.Value,
		close:  p.Value,
		volume: vol,
		sum:    p.Value,
		count:  1,
	}
	if a.trackVWAP {
		a.cur.pv = p.Value * vol
	}
	a.hasOpen = true
}

func (a *Aggregator) update(p models.DataPoint) {
	vol := p.EffectiveVolume()
	if p.Value > a.cur.high {
		a.cur.high = p.Value
	}
	if p.Value < a.cur.low {
		a.cur.low = p.Value
	}
	a.cur.close = p.Value
	a.cur.volume += vol
	a.cur.sum += p.Value
	a.cur.count++
	if a.trackVWAP {
		a.cur.pv += p.Value * vol
	}
}

func (a *Aggregator) snapshot() models.AggregatedWindow {
	w := models.AggregatedWindow{
		SeriesID:       a.seriesID,
		Granularity:    a.g,
		StartTime:      models.MsToTime(a.cur.start),
		EndTime:        models.MsToTime(a.cur.end),
		Open:           a.cur.open,
		High:           a.cur.high,
		Low:            a.cur.low,
		Close:          a.cur.close,
		Volume:         a.cur.volume,
		DataPointCount: a.cur.count,
		Metrics:        a.metrics,
	}
	if a.trackVWAP {
		if a.cur.volume > 0 {
			w.VWAP = a.cur.pv / a.cur.volume
		} else {
			w.VWAP = a.cur.sum / float64(a.cur.count)
		}
	}
	return w
}

func (a *Aggregator) finalize() models.AggregatedWindow {
	w := a.snapshot()
	a.lastClose, a.hasClose = w.Close, true
	a.hasOpen = false
	return w
}

func (a *Aggregator) filler(startMs int64) models.AggregatedWindow {
	w := models.AggregatedWindow{
		SeriesID:    a.seriesID,
		Granularity: a.g,
		StartTime:   models.MsToTime(startMs),
		EndTime:     models.MsToTime(startMs + a.durationMs),
		Filler:      true,
		Metrics:     a.metrics,
	}
	prev := a.first
	if a.hasClose {
		prev = a.lastClose
	}
	a.policy.Fill(&w, prev)
	return w
}
