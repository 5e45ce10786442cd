package timeseries

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"FinSeries/internal/domain/models"
	domrepo "FinSeries/internal/domain/repository"
	domsvc "FinSeries/internal/domain/service"
	"FinSeries/pkg/logger"
)

// DefaultMaxFillWindows caps the fillers a single point may synthesize.
const DefaultMaxFillWindows int64 = 100000

// Manager composes catalog, router and store. It is the only entry point the
// rest of the application uses.
type Manager struct {
	// lifecycle serializes create and remove against each other and
	// against ingestion, so no step of one interleaves with another.
	lifecycle sync.RWMutex

	catalog *Catalog
	store   *Store
	router  *Router

	l              *logger.Logger
	metrics        domrepo.Metrics
	sink           domrepo.WindowSink
	maxFillWindows int64
}

type ManagerOption func(*Manager)

func WithLogger(l *logger.Logger) ManagerOption {
	return func(m *Manager) { m.l = l }
}

func WithMetrics(r domrepo.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = r }
}

// WithSink forwards every closed window to s after it is stored.
func WithSink(s domrepo.WindowSink) ManagerOption {
	return func(m *Manager) { m.sink = s }
}

// WithMaxFillWindows sets the gap cap. Zero disables it.
func WithMaxFillWindows(n int64) ManagerOption {
	return func(m *Manager) {
		if n >= 0 {
			m.maxFillWindows = n
		}
	}
}

// NewManager builds a manager over the given catalog and store.
func NewManager(catalog *Catalog, store *Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		catalog:        catalog,
		store:          store,
		maxFillWindows: DefaultMaxFillWindows,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.catalog == nil {
		m.catalog = NewCatalog()
	}
	if m.store == nil {
		m.store = NewStore()
	}
	m.router = NewRouter(m.store, m.maxFillWindows)
	return m
}

// CreateSeries registers a new series and its aggregators.
func (m *Manager) CreateSeries(def models.SeriesDefinition) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	stored, err := m.catalog.Create(def)
	if err != nil {
		return fmt.Errorf("create series: %w", err)
	}
	m.store.Register(stored.SeriesID, stored.GranularityLevels)
	if err := m.router.Register(stored); err != nil {
		m.store.Drop(stored.SeriesID)
		_ = m.catalog.Remove(stored.SeriesID)
		return fmt.Errorf("create series: %w", err)
	}
	if m.l != nil {
		m.l.Info("series created",
			logger.String("series", stored.SeriesID),
			logger.Any("granularities", stored.GranularityLevels),
			logger.String("strategy", string(stored.MissingDataStrategy)))
	}
	return nil
}

// RemoveSeries discards a series with all its open and closed windows.
func (m *Manager) RemoveSeries(seriesID string) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if err := m.catalog.Remove(seriesID); err != nil {
		return fmt.Errorf("remove series: %w", err)
	}
	m.router.Unregister(seriesID)
	m.store.Drop(seriesID)
	if m.l != nil {
		m.l.Info("series removed", logger.String("series", seriesID))
	}
	return nil
}

func (m *Manager) GetAllSeriesIDs() []string {
	return m.catalog.IDs()
}

func (m *Manager) Series(seriesID string) (models.SeriesDefinition, error) {
	def, ok := m.catalog.Get(seriesID)
	if !ok {
		return models.SeriesDefinition{}, fmt.Errorf("%w: %s", models.ErrSeriesNotFound, seriesID)
	}
	return def, nil
}

// AddDataPoint ingests one observation into every granularity of the series.
func (m *Manager) AddDataPoint(seriesID string, p models.DataPoint) error {
	start := time.Now()
	m.lifecycle.RLock()
	closed, err := m.router.Route(seriesID, p)
	m.lifecycle.RUnlock()
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordPointRejected(rejectReason(err))
		}
		if m.l != nil {
			m.l.Debug("data point rejected", logger.String("series", seriesID), logger.Error(err))
		}
		return err
	}

	if m.metrics != nil {
		m.metrics.RecordPointAccepted(seriesID)
		m.metrics.RecordLastPrice(seriesID, p.Value)
		for _, w := range closed {
			m.metrics.RecordWindowClosed(seriesID, w.Granularity.Label(), w.Filler)
		}
		m.metrics.RecordLatency("add_data_point", time.Since(start).Seconds())
	}
	if len(closed) == 0 {
		return nil
	}
	if m.l != nil {
		if fillers := countFillers(closed); fillers > 0 {
			m.l.Warn("gap filled with synthesized windows",
				logger.String("series", seriesID),
				logger.Int("fillers", fillers),
				logger.Int64("ts", p.TimestampMs()))
		}
	}
	if m.sink != nil {
		m.sink.Submit(closed)
	}
	return nil
}

// QueryAggregatedData returns closed windows intersecting [start, end).
func (m *Manager) QueryAggregatedData(seriesID string, g models.Granularity, start, end time.Time) ([]models.AggregatedWindow, error) {
	if !g.IsValid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedGranularity, g)
	}
	return m.store.QueryRange(seriesID, g, start, end)
}

// GetLatestData returns the most recent closed window. The open window is
// never reported.
func (m *Manager) GetLatestData(seriesID string, g models.Granularity) (models.AggregatedWindow, bool, error) {
	if !g.IsValid() {
		return models.AggregatedWindow{}, false, fmt.Errorf("%w: %q", models.ErrUnsupportedGranularity, g)
	}
	return m.store.Latest(seriesID, g)
}

// OpenWindow returns the in-progress window for diagnostics.
func (m *Manager) OpenWindow(seriesID string, g models.Granularity) (models.AggregatedWindow, bool, error) {
	if !g.IsValid() {
		return models.AggregatedWindow{}, false, fmt.Errorf("%w: %q", models.ErrUnsupportedGranularity, g)
	}
	return m.router.Current(seriesID, g)
}

func countFillers(ws []models.AggregatedWindow) int {
	n := 0
	for _, w := range ws {
		if w.Filler {
			n++
		}
	}
	return n
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, models.ErrSeriesNotFound):
		return "series_not_found"
	case errors.Is(err, models.ErrInvalidDataPoint):
		return "invalid_data_point"
	case errors.Is(err, models.ErrNonMonotonicTimestamp):
		return "non_monotonic"
	case errors.Is(err, models.ErrGapTooLarge):
		return "gap_too_large"
	default:
		return "internal"
	}
}

var _ domsvc.SeriesManager = (*Manager)(nil)
