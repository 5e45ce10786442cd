package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FinSeries/internal/domain/models"
	domrepo "FinSeries/internal/domain/repository"
	domsvc "FinSeries/internal/domain/service"
	pkgkafka "FinSeries/pkg/kafka"
	applogger "FinSeries/pkg/logger"
	"FinSeries/pkg/util"
)

// TickOption configures how wire ticks are turned into data points.
type TickOption func(*tickDecoding)

type tickDecoding struct {
	epochSeconds bool
}

// WithEpochSeconds reads a positive "t" below 1e11 as unix seconds. Off by
// default, in which case "t" is always unix milliseconds.
func WithEpochSeconds(on bool) TickOption {
	return func(d *tickDecoding) { d.epochSeconds = on }
}

func newTickDecoding(opts []TickOption) tickDecoding {
	var d tickDecoding
	for _, o := range opts {
		o(&d)
	}
	return d
}

// KafkaTicksHandler feeds ticks consumed from Kafka into the series manager.
type KafkaTicksHandler struct {
	topic   string
	mgr     domsvc.SeriesManager
	metrics domrepo.Metrics
	l       *applogger.Logger
	dec     tickDecoding
}

func NewKafkaTicksHandler(topic string, mgr domsvc.SeriesManager, metrics domrepo.Metrics, l *applogger.Logger, opts ...TickOption) *KafkaTicksHandler {
	return &KafkaTicksHandler{topic: topic, mgr: mgr, metrics: metrics, l: l, dec: newTickDecoding(opts)}
}

func (h *KafkaTicksHandler) Topic() string { return h.topic }

// Handle decodes {"s","p","v","t"}. A tick the domain rejects is dropped
// rather than retried, since replaying it cannot succeed.
func (h *KafkaTicksHandler) Handle(ctx context.Context, b []byte) error {
	var m models.TickMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.recordError("consumer_unmarshal")
		return fmt.Errorf("decode tick: %w", err)
	}
	p := TickToPoint(&m, h.dec.epochSeconds)
	if h.metrics != nil && !p.Timestamp.IsZero() {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(p.Timestamp).Seconds())
	}

	err := h.mgr.AddDataPoint(m.SeriesID, p)
	switch {
	case err == nil:
		if h.metrics != nil {
			h.metrics.RecordLastPrice(m.SeriesID, m.Price)
		}
		return nil
	case isDomainRejection(err):
		if h.l != nil {
			h.l.Debug("kafka tick rejected",
				applogger.String("series", m.SeriesID),
				applogger.Int64("t", p.TimestampMs()),
				applogger.Error(err))
		}
		return nil
	default:
		h.recordError("consumer_ingest")
		return err
	}
}

func (h *KafkaTicksHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

// TickToPoint converts a wire tick. A tick without "t" yields a zero
// timestamp, which validation rejects.
func TickToPoint(m *models.TickMessage, epochSeconds bool) models.DataPoint {
	p := models.DataPoint{Value: m.Price, Volume: m.Volume}
	if m.Timestamp == nil {
		return p
	}
	ts := *m.Timestamp
	if epochSeconds {
		ts = util.NormalizeEpochMs(ts)
	}
	p.Timestamp = time.UnixMilli(ts).UTC()
	return p
}

func isDomainRejection(err error) bool {
	for _, target := range []error{
		models.ErrSeriesNotFound,
		models.ErrInvalidDataPoint,
		models.ErrNonMonotonicTimestamp,
		models.ErrGapTooLarge,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var _ pkgkafka.MessageHandler = (*KafkaTicksHandler)(nil)
