package api

import (
	"net/http"

	"FinSeries/internal/domain/models"
	xhttp "FinSeries/pkg/http"
)

var domainErrors = xhttp.ErrorMapper{
	{Err: models.ErrSeriesNotFound, Code: "ERR_SERIES_NOT_FOUND", Status: http.StatusNotFound},
	{Err: models.ErrDuplicateSeries, Code: "ERR_DUPLICATE_SERIES", Status: http.StatusConflict},
	{Err: models.ErrInvalidDefinition, Code: "ERR_INVALID_DEFINITION", Status: http.StatusBadRequest},
	{Err: models.ErrUnsupportedGranularity, Code: "ERR_UNSUPPORTED_GRANULARITY", Status: http.StatusBadRequest},
	{Err: models.ErrInvalidDataPoint, Code: "ERR_INVALID_DATA_POINT", Status: http.StatusBadRequest},
	{Err: models.ErrNonMonotonicTimestamp, Code: "ERR_NON_MONOTONIC_TIMESTAMP", Status: http.StatusBadRequest},
	{Err: models.ErrInvalidRange, Code: "ERR_INVALID_RANGE", Status: http.StatusBadRequest},
	{Err: models.ErrGapTooLarge, Code: "ERR_GAP_TOO_LARGE", Status: http.StatusBadRequest},
}
