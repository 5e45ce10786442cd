package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSeries/internal/domain/models"
	"FinSeries/internal/handler/api"
	mid "FinSeries/internal/middleware"
	"FinSeries/internal/services/timeseries"
	"FinSeries/internal/usecase"
	"FinSeries/pkg/config"
	"FinSeries/pkg/logger"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

type memStore struct {
	got chan models.AggregatedWindow
}

func (s *memStore) Process(_ context.Context, w *models.AggregatedWindow) error {
	s.got <- *w
	return nil
}

func TestAppLifecycle(t *testing.T) {
	cfg := &config.Config{Environment: "test"}
	cfg.Server.Port = freePort(t)
	cfg.Backend.Type = "none"
	cfg.Aggregation.Series = []config.SeriesConfig{{
		ID:            "AAPL",
		Metrics:       []string{"OPEN", "CLOSE"},
		Granularities: []string{"1m"},
	}}

	l := logger.Nop()
	sink := &memStore{got: make(chan models.AggregatedWindow, 4)}
	pipe := mid.NewWindowPipeline(sink, nil)
	mgr := timeseries.NewManager(timeseries.NewCatalog(), timeseries.NewStore(),
		timeseries.WithLogger(l), timeseries.WithSink(pipe))
	uc := usecase.NewSeriesUseCase(mgr)

	app := New(cfg, l, uc, api.NewSeriesEchoHandler(l, uc), WithPipeline(pipe, usecase.NewWindowProcessor(nil, nil, nil, "none")))
	require.NoError(t, app.Start(context.Background()))
	assert.Equal(t, []string{"AAPL"}, uc.List())

	url := fmt.Sprintf("http://127.0.0.1:%d/healthz", cfg.Server.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		return resp.StatusCode == http.StatusOK &&
			json.NewDecoder(resp.Body).Decode(&body) == nil &&
			body.Data["series"] == 1.0
	}, 2*time.Second, 20*time.Millisecond)

	ready, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/readyz", cfg.Server.Port))
	require.NoError(t, err)
	ready.Body.Close()
	assert.Equal(t, http.StatusOK, ready.StatusCode)

	t0 := time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)
	require.NoError(t, mgr.AddDataPoint("AAPL", models.NewDataPoint(t0, 100)))
	require.NoError(t, mgr.AddDataPoint("AAPL", models.NewDataPoint(t0.Add(time.Minute), 101)))

	select {
	case w := <-sink.got:
		assert.Equal(t, t0, w.StartTime)
	case <-time.After(time.Second):
		t.Fatal("closed window never reached the pipeline")
	}

	require.NoError(t, app.Shutdown(context.Background()))
}

func TestAppStartRejectsBadSeries(t *testing.T) {
	cfg := &config.Config{Environment: "test"}
	cfg.Aggregation.Series = []config.SeriesConfig{{ID: "X", Metrics: []string{"CLOSE"}, Granularities: []string{"2h"}}}

	l := logger.Nop()
	uc := usecase.NewSeriesUseCase(timeseries.NewManager(nil, nil, timeseries.WithLogger(l)))
	app := New(cfg, l, uc, nil)

	err := app.Start(context.Background())
	assert.ErrorIs(t, err, models.ErrUnsupportedGranularity)
	require.NoError(t, app.Shutdown(context.Background()))
}
