package service

import (
	"time"

	"FinSeries/internal/domain/models"
)

// SeriesManager is the facade over series lifecycle, ingestion and queries.
type SeriesManager interface {
	CreateSeries(def models.SeriesDefinition) error
	RemoveSeries(seriesID string) error
	GetAllSeriesIDs() []string
	Series(seriesID string) (models.SeriesDefinition, error)
	AddDataPoint(seriesID string, p models.DataPoint) error
	QueryAggregatedData(seriesID string, g models.Granularity, start, end time.Time) ([]models.AggregatedWindow, error)
	GetLatestData(seriesID string, g models.Granularity) (models.AggregatedWindow, bool, error)
	OpenWindow(seriesID string, g models.Granularity) (models.AggregatedWindow, bool, error)
}
