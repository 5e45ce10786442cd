package usecase

import (
	"fmt"
	"math"
	"time"

	"FinSeries/internal/domain/models"
	domsvc "FinSeries/internal/domain/service"
	"FinSeries/pkg/config"
)

const (
	defaultWindowLimit = 10000
	maxWindowLimit     = 100000
)

// SeriesUseCase adapts boundary requests to the series manager.
type SeriesUseCase struct {
	mgr domsvc.SeriesManager
}

func NewSeriesUseCase(mgr domsvc.SeriesManager) *SeriesUseCase {
	return &SeriesUseCase{mgr: mgr}
}

// Create registers a series from an HTTP request.
func (uc *SeriesUseCase) Create(req *models.CreateSeriesRequest) (models.SeriesResponse, error) {
	def, err := DefinitionFromRequest(req)
	if err != nil {
		return models.SeriesResponse{}, err
	}
	if err := uc.mgr.CreateSeries(def); err != nil {
		return models.SeriesResponse{}, err
	}
	stored, err := uc.mgr.Series(def.SeriesID)
	if err != nil {
		return models.SeriesResponse{}, err
	}
	return models.NewSeriesResponse(stored), nil
}

func (uc *SeriesUseCase) Remove(seriesID string) error {
	return uc.mgr.RemoveSeries(seriesID)
}

func (uc *SeriesUseCase) List() []string {
	return uc.mgr.GetAllSeriesIDs()
}

func (uc *SeriesUseCase) Get(seriesID string) (models.SeriesResponse, error) {
	def, err := uc.mgr.Series(seriesID)
	if err != nil {
		return models.SeriesResponse{}, err
	}
	return models.NewSeriesResponse(def), nil
}

// AddPoint ingests a single observation.
func (uc *SeriesUseCase) AddPoint(seriesID string, p models.PointPayload) error {
	return uc.mgr.AddDataPoint(seriesID, PointFromPayload(p))
}

// AddPoints ingests points in order and stops at the first rejection. The
// result reports how many were accepted before it.
func (uc *SeriesUseCase) AddPoints(seriesID string, ps []models.PointPayload) (models.BatchResult, error) {
	res := models.BatchResult{}
	for i, p := range ps {
		if err := uc.mgr.AddDataPoint(seriesID, PointFromPayload(p)); err != nil {
			res.Rejected = len(ps) - i
			res.Error = err.Error()
			return res, fmt.Errorf("point %d: %w", i, err)
		}
		res.Accepted++
	}
	return res, nil
}

type GetWindowsParams struct {
	SeriesID    string
	Granularity string
	From        time.Time
	To          time.Time
	Limit       int
}

type GetWindowsResult struct {
	SeriesID    string                  `json:"seriesId"`
	Granularity string                  `json:"granularity"`
	From        time.Time               `json:"from"`
	To          time.Time               `json:"to"`
	Count       int                     `json:"count"`
	Truncated   bool                    `json:"truncated"`
	Windows     []models.WindowResponse `json:"windows"`
}

// Windows returns closed windows intersecting [From, To).
func (uc *SeriesUseCase) Windows(p GetWindowsParams) (*GetWindowsResult, error) {
	g, err := models.ParseGranularity(p.Granularity)
	if err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = defaultWindowLimit
	}
	if p.Limit > maxWindowLimit {
		p.Limit = maxWindowLimit
	}

	ws, err := uc.mgr.QueryAggregatedData(p.SeriesID, g, p.From, p.To)
	if err != nil {
		return nil, err
	}
	truncated := false
	if len(ws) > p.Limit {
		ws = ws[:p.Limit]
		truncated = true
	}

	return &GetWindowsResult{
		SeriesID:    p.SeriesID,
		Granularity: g.Label(),
		From:        p.From,
		To:          p.To,
		Count:       len(ws),
		Truncated:   truncated,
		Windows:     models.NewWindowResponses(ws),
	}, nil
}

type WindowResult struct {
	Found  bool                   `json:"found"`
	Window *models.WindowResponse `json:"window,omitempty"`
}

// Latest returns the most recent closed window.
func (uc *SeriesUseCase) Latest(seriesID, granularity string) (WindowResult, error) {
	g, err := models.ParseGranularity(granularity)
	if err != nil {
		return WindowResult{}, err
	}
	w, ok, err := uc.mgr.GetLatestData(seriesID, g)
	return windowResult(w, ok, true), err
}

// Open returns the in-progress window.
func (uc *SeriesUseCase) Open(seriesID, granularity string) (WindowResult, error) {
	g, err := models.ParseGranularity(granularity)
	if err != nil {
		return WindowResult{}, err
	}
	w, ok, err := uc.mgr.OpenWindow(seriesID, g)
	return windowResult(w, ok, false), err
}

func windowResult(w models.AggregatedWindow, ok, closed bool) WindowResult {
	if !ok {
		return WindowResult{}
	}
	resp := models.NewWindowResponse(w, closed)
	return WindowResult{Found: true, Window: &resp}
}

// Bootstrap creates the series declared in configuration.
func (uc *SeriesUseCase) Bootstrap(series []config.SeriesConfig) error {
	for _, s := range series {
		def, err := DefinitionFromRequest(&models.CreateSeriesRequest{
			SeriesID:            s.ID,
			Name:                s.Name,
			DataType:            s.DataType,
			Metrics:             s.Metrics,
			GranularityLevels:   s.Granularities,
			MissingDataStrategy: s.MissingDataStrategy,
		})
		if err != nil {
			return fmt.Errorf("bootstrap %s: %w", s.ID, err)
		}
		if err := uc.mgr.CreateSeries(def); err != nil {
			return fmt.Errorf("bootstrap %s: %w", s.ID, err)
		}
	}
	return nil
}

// DefinitionFromRequest converts boundary strings into a definition.
// Granularities use the 1m..1M vocabulary; unknown metrics are dropped.
func DefinitionFromRequest(req *models.CreateSeriesRequest) (models.SeriesDefinition, error) {
	levels := make([]models.Granularity, 0, len(req.GranularityLevels))
	for _, s := range req.GranularityLevels {
		g, err := models.ParseGranularity(s)
		if err != nil {
			return models.SeriesDefinition{}, err
		}
		levels = append(levels, g)
	}
	metrics := make([]models.Metric, 0, len(req.Metrics))
	for _, m := range req.Metrics {
		metrics = append(metrics, models.Metric(m))
	}
	return models.SeriesDefinition{
		SeriesID:            req.SeriesID,
		Name:                req.Name,
		DataType:            models.DataType(req.DataType),
		Metrics:             metrics,
		GranularityLevels:   levels,
		MissingDataStrategy: models.MissingDataStrategy(req.MissingDataStrategy),
	}, nil
}

// PointFromPayload maps a missing timestamp to the zero time and a missing
// value to NaN so the domain rejects them as invalid data points.
func PointFromPayload(p models.PointPayload) models.DataPoint {
	dp := models.DataPoint{Value: math.NaN(), Volume: p.Volume}
	if p.Timestamp != nil {
		dp.Timestamp = time.UnixMilli(*p.Timestamp).UTC()
	}
	if p.Value != nil {
		dp.Value = *p.Value
	}
	return dp
}
