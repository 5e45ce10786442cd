package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSeries/internal/domain/models"
)

var t0 = time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)

var allMetrics = models.NewMetricSet(
	models.MetricOpen, models.MetricHigh, models.MetricLow,
	models.MetricClose, models.MetricVolume, models.MetricVWAP,
)

func at(d time.Duration, v float64) models.DataPoint {
	return models.NewDataPoint(t0.Add(d), v)
}

func newAgg(t *testing.T, g models.Granularity, s models.MissingDataStrategy) *Aggregator {
	t.Helper()
	p, err := PolicyFor(s)
	require.NoError(t, err)
	a, err := NewAggregator("AAPL", g, allMetrics, p)
	require.NoError(t, err)
	return a
}

func TestAggregatorKeepsLastWindowOpen(t *testing.T) {
	a := newAgg(t, models.Min1, models.UsePrevious)

	for _, p := range []models.DataPoint{at(5*time.Second, 100), at(30*time.Second, 105)} {
		closed, err := a.Accept(p)
		require.NoError(t, err)
		assert.Empty(t, closed)
	}

	cur, ok := a.Current()
	require.True(t, ok)
	assert.Equal(t, t0, cur.StartTime)
	assert.Equal(t, t0.Add(time.Minute), cur.EndTime)
	assert.Equal(t, 100.0, cur.Open)
	assert.Equal(t, 105.0, cur.Close)
	assert.Equal(t, 105.0, cur.High)
	assert.Equal(t, 100.0, cur.Low)
	assert.Equal(t, 2, cur.DataPointCount)

	closed, err := a.Accept(at(65*time.Second, 110))
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, t0, closed[0].StartTime)
	assert.Equal(t, 105.0, closed[0].Close)
	assert.False(t, closed[0].Filler)

	cur, ok = a.Current()
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Minute), cur.StartTime)
	assert.Equal(t, 1, cur.DataPointCount)
}

func TestAggregatorPointOnBoundaryOpensNextWindow(t *testing.T) {
	a := newAgg(t, models.Min5, models.UsePrevious)
	_, err := a.Accept(at(0, 1))
	require.NoError(t, err)

	closed, err := a.Accept(at(5*time.Minute, 2))
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, t0.Add(5*time.Minute), closed[0].EndTime)

	cur, _ := a.Current()
	assert.Equal(t, t0.Add(5*time.Minute), cur.StartTime)
}

func TestAggregatorFillers(t *testing.T) {
	tests := []struct {
		name     string
		strategy models.MissingDataStrategy
		price    float64
		vwap     float64
	}{
		{name: "use previous", strategy: models.UsePrevious, price: 101, vwap: 101},
		{name: "use zero", strategy: models.UseZero, price: 0, vwap: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAgg(t, models.Min1, tt.strategy)
			_, err := a.Accept(at(5*time.Second, 100))
			require.NoError(t, err)
			_, err = a.Accept(at(10*time.Second, 101))
			require.NoError(t, err)

			closed, err := a.Accept(at(3*time.Minute+10*time.Second, 120))
			require.NoError(t, err)
			require.Len(t, closed, 3)

			assert.False(t, closed[0].Filler)
			assert.Equal(t, 2, closed[0].DataPointCount)
			for i, w := range closed[1:] {
				assert.True(t, w.Filler)
				assert.Equal(t, t0.Add(time.Duration(i+1)*time.Minute), w.StartTime)
				assert.Equal(t, w.StartTime.Add(time.Minute), w.EndTime)
				assert.Equal(t, tt.price, w.Open)
				assert.Equal(t, tt.price, w.High)
				assert.Equal(t, tt.price, w.Low)
				assert.Equal(t, tt.price, w.Close)
				assert.Equal(t, 0.0, w.Volume)
				assert.Equal(t, tt.vwap, w.VWAP)
				assert.Equal(t, 0, w.DataPointCount)
			}

			cur, ok := a.Current()
			require.True(t, ok)
			assert.Equal(t, t0.Add(3*time.Minute), cur.StartTime)
			assert.Equal(t, 120.0, cur.Open)
		})
	}
}

func TestAggregatorVWAP(t *testing.T) {
	t.Run("weighted by volume", func(t *testing.T) {
		a := newAgg(t, models.Min1, models.UsePrevious)
		_, _ = a.Accept(at(time.Second, 10).WithVolume(2))
		_, _ = a.Accept(at(2*time.Second, 20).WithVolume(3))
		cur, _ := a.Current()
		assert.InDelta(t, 16.0, cur.VWAP, 1e-9)
		assert.Equal(t, 5.0, cur.Volume)
	})
	t.Run("default volume is plain average", func(t *testing.T) {
		a := newAgg(t, models.Min1, models.UsePrevious)
		_, _ = a.Accept(at(time.Second, 10))
		_, _ = a.Accept(at(2*time.Second, 20))
		cur, _ := a.Current()
		assert.InDelta(t, 15.0, cur.VWAP, 1e-9)
		assert.Equal(t, 2.0, cur.Volume)
	})
	t.Run("zero volume falls back to average", func(t *testing.T) {
		a := newAgg(t, models.Min1, models.UsePrevious)
		_, _ = a.Accept(at(time.Second, 10).WithVolume(0))
		_, _ = a.Accept(at(2*time.Second, 30).WithVolume(0))
		cur, _ := a.Current()
		assert.InDelta(t, 20.0, cur.VWAP, 1e-9)
	})
	t.Run("not accumulated unless requested", func(t *testing.T) {
		p, _ := PolicyFor(models.UsePrevious)
		a, err := NewAggregator("AAPL", models.Min1, models.NewMetricSet(models.MetricClose), p)
		require.NoError(t, err)
		_, _ = a.Accept(at(time.Second, 10))
		cur, _ := a.Current()
		assert.Equal(t, 0.0, cur.VWAP)
		assert.Equal(t, 10.0, cur.Close)
	})
}

func TestAggregatorRejectsWithoutMutation(t *testing.T) {
	a := newAgg(t, models.Min1, models.UsePrevious)
	_, err := a.Accept(at(30*time.Second, 100))
	require.NoError(t, err)

	_, err = a.Accept(at(10*time.Second, 90))
	assert.ErrorIs(t, err, models.ErrNonMonotonicTimestamp)

	_, err = a.Accept(at(40*time.Second, math.NaN()))
	assert.ErrorIs(t, err, models.ErrInvalidDataPoint)

	_, err = a.Accept(models.DataPoint{Value: 1})
	assert.ErrorIs(t, err, models.ErrInvalidDataPoint)

	_, err = a.Accept(at(40*time.Second, 1).WithVolume(-1))
	assert.ErrorIs(t, err, models.ErrInvalidDataPoint)

	cur, _ := a.Current()
	assert.Equal(t, 1, cur.DataPointCount)
	assert.Equal(t, 100.0, cur.Low)
}

func TestAggregatorEqualTimestampsAccepted(t *testing.T) {
	a := newAgg(t, models.Min1, models.UsePrevious)
	_, err := a.Accept(at(time.Second, 1))
	require.NoError(t, err)
	_, err = a.Accept(at(time.Second, 2))
	require.NoError(t, err)
	cur, _ := a.Current()
	assert.Equal(t, 2, cur.DataPointCount)
	assert.Equal(t, 2.0, cur.Close)
}

func TestAggregatorNegativeEpochAlignment(t *testing.T) {
	a := newAgg(t, models.Min1, models.UsePrevious)
	_, err := a.Accept(models.NewDataPoint(time.UnixMilli(-1), 5))
	require.NoError(t, err)
	cur, _ := a.Current()
	assert.Equal(t, int64(-60000), cur.StartTime.UnixMilli())
	assert.Equal(t, int64(0), cur.EndTime.UnixMilli())
}

func TestAggregatorFillersNeeded(t *testing.T) {
	a := newAgg(t, models.Min1, models.UsePrevious)
	assert.Equal(t, int64(0), a.FillersNeeded(t0.UnixMilli()))

	_, _ = a.Accept(at(0, 1))
	assert.Equal(t, int64(0), a.FillersNeeded(t0.Add(59*time.Second).UnixMilli()))
	assert.Equal(t, int64(0), a.FillersNeeded(t0.Add(time.Minute).UnixMilli()))
	assert.Equal(t, int64(9), a.FillersNeeded(t0.Add(10*time.Minute).UnixMilli()))
}

func TestAggregatorFillersNeededSaturates(t *testing.T) {
	a := newAgg(t, models.Min1, models.UseZero)
	_, err := a.Accept(models.NewDataPoint(time.UnixMilli(models.MinTimestampMs), 1))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), a.FillersNeeded(models.MaxTimestampMs))

	b := newAgg(t, models.Day20, models.UseZero)
	_, err = b.Accept(models.NewDataPoint(time.UnixMilli(models.MaxTimestampMs), 1))
	require.NoError(t, err)
	cur, ok := b.Current()
	require.True(t, ok)
	assert.True(t, cur.StartTime.Before(cur.EndTime))
	assert.Greater(t, cur.EndTime.UnixMilli(), int64(models.MaxTimestampMs))
}

func TestNewAggregatorValidation(t *testing.T) {
	p, _ := PolicyFor(models.UseZero)
	_, err := NewAggregator("x", models.Granularity("MIN_2"), allMetrics, p)
	assert.ErrorIs(t, err, models.ErrUnsupportedGranularity)

	_, err = PolicyFor("USE_NEXT")
	assert.ErrorIs(t, err, models.ErrInvalidDefinition)
}
