package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSeries/internal/services/timeseries"
	"FinSeries/internal/usecase"
	xlogger "FinSeries/pkg/logger"
)

var base = time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type appErr struct {
	Code   string                 `json:"code"`
	Params map[string]interface{} `json:"params"`
}

func newTestServer(t *testing.T, opts ...HandlerOption) *echo.Echo {
	t.Helper()
	mgr := timeseries.NewManager(timeseries.NewCatalog(), timeseries.NewStore(),
		timeseries.WithLogger(xlogger.Nop()))
	h := NewSeriesEchoHandler(xlogger.Nop(), usecase.NewSeriesUseCase(mgr), opts...)
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func errCode(t *testing.T, env envelope) string {
	t.Helper()
	var errs []appErr
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.NotEmpty(t, errs)
	return errs[0].Code
}

func ms(d time.Duration) string {
	return strconv.FormatInt(base.Add(d).UnixMilli(), 10)
}

func point(d time.Duration, v float64) string {
	return `{"timestamp":` + ms(d) + `,"value":` + strconv.FormatFloat(v, 'f', -1, 64) + `}`
}

const createAAPL = `{"seriesId":"AAPL","metrics":["OPEN","CLOSE","VWAP"],"granularityLevels":["1m","1w"]}`

func TestSeriesLifecycle(t *testing.T) {
	e := newTestServer(t)

	rec, env := do(t, e, http.MethodPost, "/api/series", createAAPL)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		SeriesID            string   `json:"seriesId"`
		DataType            string   `json:"dataType"`
		GranularityLevels   []string `json:"granularityLevels"`
		MissingDataStrategy string   `json:"missingDataStrategy"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "AAPL", created.SeriesID)
	assert.Equal(t, "CONTINUOUS", created.DataType)
	assert.Equal(t, "USE_PREVIOUS", created.MissingDataStrategy)
	assert.Equal(t, []string{"1m", "1w"}, created.GranularityLevels)

	rec, env = do(t, e, http.MethodPost, "/api/series", createAAPL)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ERR_DUPLICATE_SERIES", errCode(t, env))

	rec, env = do(t, e, http.MethodGet, "/api/series", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Rows  []string `json:"rows"`
		Total int64    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, []string{"AAPL"}, list.Rows)

	rec, _ = do(t, e, http.MethodGet, "/api/series/AAPL", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, e, http.MethodDelete, "/api/series/AAPL", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = do(t, e, http.MethodGet, "/api/series/AAPL", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ERR_SERIES_NOT_FOUND", errCode(t, env))

	rec, _ = do(t, e, http.MethodDelete, "/api/series/AAPL", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSeriesValidation(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "bad granularity", body: `{"seriesId":"X","metrics":["OPEN"],"granularityLevels":["1h"]}`, code: "ERR_UNSUPPORTED_GRANULARITY"},
		{name: "lowercase month", body: `{"seriesId":"X","metrics":["OPEN"],"granularityLevels":["1m","1mo"]}`, code: "ERR_UNSUPPORTED_GRANULARITY"},
		{name: "duplicate granularity", body: `{"seriesId":"X","metrics":["OPEN"],"granularityLevels":["1m","1m"]}`, code: "ERR_INVALID_DEFINITION"},
		{name: "unknown metrics only", body: `{"seriesId":"X","metrics":["MEDIAN"],"granularityLevels":["1m"]}`, code: "ERR_INVALID_DEFINITION"},
		{name: "missing id", body: `{"metrics":["OPEN"],"granularityLevels":["1m"]}`, code: "ERR_REQUIRED"},
		{name: "bad strategy", body: `{"seriesId":"X","metrics":["OPEN"],"granularityLevels":["1m"],"missingDataStrategy":"USE_NEXT"}`, code: "ERR_ONEOF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, e, http.MethodPost, "/api/series", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errCode(t, env))
		})
	}
}

func TestPointsAndWindows(t *testing.T) {
	e := newTestServer(t)
	rec, _ := do(t, e, http.MethodPost, "/api/series", createAAPL)
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, p := range []string{point(5*time.Second, 100), point(30*time.Second, 105)} {
		rec, _ = do(t, e, http.MethodPost, "/api/series/AAPL/points", p)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec, env := do(t, e, http.MethodGet, "/api/series/AAPL/latest?granularity=1m", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest struct {
		Found  bool                   `json:"found"`
		Window map[string]interface{} `json:"window"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &latest))
	assert.False(t, latest.Found)

	rec, env = do(t, e, http.MethodGet, "/api/series/AAPL/open?granularity=1m", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &latest))
	assert.True(t, latest.Found)
	assert.Equal(t, false, latest.Window["closed"])
	assert.Equal(t, 100.0, latest.Window["open"])

	rec, _ = do(t, e, http.MethodPost, "/api/series/AAPL/points", point(65*time.Second, 110))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, e, http.MethodGet, "/api/series/AAPL/latest?granularity=1m", "")
	require.Equal(t, http.StatusOK, rec.Code)
	latest.Window = nil
	require.NoError(t, json.Unmarshal(env.Data, &latest))
	require.True(t, latest.Found)
	assert.Equal(t, 100.0, latest.Window["open"])
	assert.Equal(t, 105.0, latest.Window["close"])
	assert.Equal(t, 102.5, latest.Window["vwap"])
	assert.Equal(t, 2.0, latest.Window["dataPointCount"])
	assert.NotContains(t, latest.Window, "high")
	assert.NotContains(t, latest.Window, "volume")

	target := "/api/series/AAPL/windows?granularity=1m&start=" + ms(0) + "&end=" + ms(time.Hour)
	rec, env = do(t, e, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var windows struct {
		Granularity string                   `json:"granularity"`
		Count       int                      `json:"count"`
		Windows     []map[string]interface{} `json:"windows"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &windows))
	assert.Equal(t, "1m", windows.Granularity)
	assert.Equal(t, 1, windows.Count)

	target = "/api/series/AAPL/windows?granularity=1m&start=" + base.Format(time.RFC3339) + "&end=" + base.Add(time.Hour).Format(time.RFC3339)
	rec, env = do(t, e, http.MethodGet, target, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &windows))
	assert.Equal(t, 1, windows.Count)
}

func TestPointErrors(t *testing.T) {
	e := newTestServer(t)
	rec, _ := do(t, e, http.MethodPost, "/api/series", createAAPL)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = do(t, e, http.MethodPost, "/api/series/AAPL/points", point(time.Minute, 1))
	require.Equal(t, http.StatusOK, rec.Code)

	tests := []struct {
		name   string
		target string
		body   string
		status int
		code   string
	}{
		{name: "null timestamp", target: "/api/series/AAPL/points", body: `{"timestamp":null,"value":1}`, status: http.StatusBadRequest, code: "ERR_INVALID_DATA_POINT"},
		{name: "missing value", target: "/api/series/AAPL/points", body: `{"timestamp":` + ms(2*time.Minute) + `}`, status: http.StatusBadRequest, code: "ERR_INVALID_DATA_POINT"},
		{name: "negative volume", target: "/api/series/AAPL/points", body: `{"timestamp":` + ms(2*time.Minute) + `,"value":1,"volume":-2}`, status: http.StatusBadRequest, code: "ERR_INVALID_DATA_POINT"},
		{name: "out of order", target: "/api/series/AAPL/points", body: point(0, 1), status: http.StatusBadRequest, code: "ERR_NON_MONOTONIC_TIMESTAMP"},
		{name: "unknown series", target: "/api/series/MSFT/points", body: point(0, 1), status: http.StatusNotFound, code: "ERR_SERIES_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, e, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errCode(t, env))
		})
	}
}

func TestQueryErrors(t *testing.T) {
	e := newTestServer(t)
	rec, _ := do(t, e, http.MethodPost, "/api/series", createAAPL)
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{name: "reversed range", target: "/api/series/AAPL/windows?granularity=1m&start=" + ms(time.Hour) + "&end=" + ms(0), status: http.StatusBadRequest, code: "ERR_INVALID_RANGE"},
		{name: "unparsable start", target: "/api/series/AAPL/windows?granularity=1m&start=soon&end=" + ms(0), status: http.StatusBadRequest, code: "ERR_INVALID_RANGE"},
		{name: "unknown series", target: "/api/series/MSFT/windows?granularity=1m&start=" + ms(0) + "&end=" + ms(time.Hour), status: http.StatusNotFound, code: "ERR_SERIES_NOT_FOUND"},
		{name: "unconfigured granularity", target: "/api/series/AAPL/windows?granularity=1d&start=" + ms(0) + "&end=" + ms(time.Hour), status: http.StatusBadRequest, code: "ERR_UNSUPPORTED_GRANULARITY"},
		{name: "unknown granularity", target: "/api/series/AAPL/latest?granularity=1W", status: http.StatusBadRequest, code: "ERR_UNSUPPORTED_GRANULARITY"},
		{name: "missing granularity", target: "/api/series/AAPL/latest", status: http.StatusBadRequest, code: "ERR_REQUIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, e, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errCode(t, env))
		})
	}
}

func TestBatchStopsAtFirstRejection(t *testing.T) {
	e := newTestServer(t)
	rec, _ := do(t, e, http.MethodPost, "/api/series", createAAPL)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := `{"points":[` + point(0, 1) + `,` + point(time.Minute, 2) + `,` + point(30*time.Second, 3) + `,` + point(2*time.Minute, 4) + `]}`
	rec, env := do(t, e, http.MethodPost, "/api/series/AAPL/points/batch", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	var errs []appErr
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_NON_MONOTONIC_TIMESTAMP", errs[0].Code)
	assert.Equal(t, 2.0, errs[0].Params["accepted"])
	assert.Equal(t, 2.0, errs[0].Params["rejected"])

	rec, env = do(t, e, http.MethodGet, "/api/series/AAPL/latest?granularity=1m", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest struct {
		Found bool `json:"found"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &latest))
	assert.True(t, latest.Found)
}

func TestWriteRateLimit(t *testing.T) {
	e := newTestServer(t, WithRateLimit(1, 0.0001))
	rec, _ := do(t, e, http.MethodPost, "/api/series", createAAPL)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := do(t, e, http.MethodPost, "/api/series/AAPL/points", point(0, 1))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "ERR_TOO_MANY_REQUESTS", errCode(t, env))

	rec, _ = do(t, e, http.MethodGet, "/api/series", "")
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not limited")
}

func TestHealth(t *testing.T) {
	e := newTestServer(t)
	rec, env := do(t, e, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"ok"`)
}
