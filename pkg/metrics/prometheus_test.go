package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounters(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordPointAccepted("AAPL")
	r.RecordPointAccepted("AAPL")
	r.RecordPointRejected("non_monotonic")
	r.RecordWindowClosed("AAPL", "1m", false)
	r.RecordWindowClosed("AAPL", "1m", true)
	r.RecordWindowClosed("AAPL", "1m", true)
	r.RecordMessageSent("kafka", "AAPL")
	r.RecordError("flush")
	r.RecordLastPrice("AAPL", 187.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.pointsAccepted.WithLabelValues("AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.pointsRejected.WithLabelValues("non_monotonic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.windowsClosed.WithLabelValues("AAPL", "1m", "false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.windowsClosed.WithLabelValues("AAPL", "1m", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.messagesSent.WithLabelValues("kafka", "AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("flush")))
	assert.Equal(t, 187.5, testutil.ToFloat64(r.lastPrice.WithLabelValues("AAPL")))
}

func TestRecorderSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWithRegisterer(prometheus.NewRegistry())
		NewWithRegisterer(prometheus.NewRegistry())
	})
}
