package timeseries

import (
	"fmt"
	"sync"

	"FinSeries/internal/domain/models"
)

// seriesRoute is the per-series fan-out target. mu serializes ingestion of
// the series from validation through store append.
type seriesRoute struct {
	mu      sync.Mutex
	aggs    []*Aggregator
	lastTs  int64
	hasLast bool
	removed bool
}

// Router validates a point once and fans it out to every aggregator of its
// series. A point is accepted by all granularities or by none.
type Router struct {
	mu             sync.RWMutex
	routes         map[string]*seriesRoute
	store          *Store
	maxFillWindows int64
}

// NewRouter builds a router appending closed windows to store. A positive
// maxFillWindows rejects points that would synthesize more fillers than that
// in any granularity.
func NewRouter(store *Store, maxFillWindows int64) *Router {
	return &Router{
		routes:         make(map[string]*seriesRoute),
		store:          store,
		maxFillWindows: maxFillWindows,
	}
}

// Register builds the aggregators of def in configured order.
func (r *Router) Register(def models.SeriesDefinition) error {
	policy, err := PolicyFor(def.MissingDataStrategy)
	if err != nil {
		return err
	}
	ms := def.MetricSet()
	aggs := make([]*Aggregator, 0, len(def.GranularityLevels))
	for _, g := range def.GranularityLevels {
		a, err := NewAggregator(def.SeriesID, g, ms, policy)
		if err != nil {
			return err
		}
		aggs = append(aggs, a)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.routes[def.SeriesID]; ok {
		return fmt.Errorf("%w: %s", models.ErrDuplicateSeries, def.SeriesID)
	}
	r.routes[def.SeriesID] = &seriesRoute{aggs: aggs}
	return nil
}

// Unregister discards the aggregators of a series. It waits for any
// in-flight Route on the series to finish.
func (r *Router) Unregister(seriesID string) {
	r.mu.Lock()
	rt, ok := r.routes[seriesID]
	delete(r.routes, seriesID)
	r.mu.Unlock()
	if !ok {
		return
	}
	rt.mu.Lock()
	rt.removed = true
	rt.aggs = nil
	rt.mu.Unlock()
}

func (r *Router) route(seriesID string) (*seriesRoute, error) {
	r.mu.RLock()
	rt, ok := r.routes[seriesID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSeriesNotFound, seriesID)
	}
	return rt, nil
}

// Route ingests p for seriesID and returns the windows it closed, already
// appended to the store.
func (r *Router) Route(seriesID string, p models.DataPoint) ([]models.AggregatedWindow, error) {
	rt, err := r.route(seriesID)
	if err != nil {
		return nil, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.removed {
		return nil, fmt.Errorf("%w: %s", models.ErrSeriesNotFound, seriesID)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	ts := p.TimestampMs()
	if rt.hasLast && ts < rt.lastTs {
		return nil, fmt.Errorf("%w: %d before last accepted %d", models.ErrNonMonotonicTimestamp, ts, rt.lastTs)
	}
	if r.maxFillWindows > 0 {
		for _, a := range rt.aggs {
			if n := a.FillersNeeded(ts); n > r.maxFillWindows {
				return nil, fmt.Errorf("%w: %d empty %s windows exceed limit %d",
					models.ErrGapTooLarge, n, a.Granularity(), r.maxFillWindows)
			}
		}
	}

	var closed []models.AggregatedWindow
	for _, a := range rt.aggs {
		ws, err := a.Accept(p)
		if err != nil {
			// unreachable after central validation
			return nil, fmt.Errorf("route %s/%s: %w", seriesID, a.Granularity(), err)
		}
		closed = append(closed, ws...)
	}
	if err := r.store.Append(closed...); err != nil {
		return nil, fmt.Errorf("route %s: %w", seriesID, err)
	}
	rt.lastTs, rt.hasLast = ts, true
	return closed, nil
}

// Current returns the open window of (seriesID, g).
func (r *Router) Current(seriesID string, g models.Granularity) (models.AggregatedWindow, bool, error) {
	rt, err := r.route(seriesID)
	if err != nil {
		return models.AggregatedWindow{}, false, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.removed {
		return models.AggregatedWindow{}, false, fmt.Errorf("%w: %s", models.ErrSeriesNotFound, seriesID)
	}
	for _, a := range rt.aggs {
		if a.Granularity() == g {
			w, ok := a.Current()
			return w, ok, nil
		}
	}
	return models.AggregatedWindow{}, false, fmt.Errorf("%w: %s not configured for %s", models.ErrUnsupportedGranularity, g, seriesID)
}
