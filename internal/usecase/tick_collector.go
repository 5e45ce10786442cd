package usecase

import (
	"context"

	"FinSeries/internal/domain/models"
	drepo "FinSeries/internal/domain/repository"
	domsvc "FinSeries/internal/domain/service"
	applogger "FinSeries/pkg/logger"
)

// TickCollector reads a live tick stream and feeds the series manager.
type TickCollector struct {
	stream  drepo.TickStream
	mgr     domsvc.SeriesManager
	metrics drepo.Metrics
	l       *applogger.Logger
	dec     tickDecoding
	done    chan struct{}
}

func NewTickCollector(stream drepo.TickStream, mgr domsvc.SeriesManager, metrics drepo.Metrics, l *applogger.Logger, opts ...TickOption) *TickCollector {
	return &TickCollector{stream: stream, mgr: mgr, metrics: metrics, l: l, dec: newTickDecoding(opts), done: make(chan struct{})}
}

// IsConnected returns true if the tick stream is connected.
func (c *TickCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *TickCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	tickCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, tickCh, errCh)
	return nil
}

// Done is closed once the consume loop exits.
func (c *TickCollector) Done() <-chan struct{} { return c.done }

func (c *TickCollector) consume(ctx context.Context, tickCh <-chan *models.TickMessage, errCh <-chan error) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				c.recordError("stream")
				if c.l != nil {
					c.l.Warn("tick stream error, reconnecting", applogger.Error(err))
				}
				if rerr := c.stream.Reconnect(ctx); rerr != nil && c.l != nil {
					c.l.Error("tick stream reconnect failed", applogger.Error(rerr))
				}
			}
		case m, ok := <-tickCh:
			if !ok {
				return
			}
			if m == nil {
				continue
			}
			c.ingest(m)
		}
	}
}

func (c *TickCollector) ingest(m *models.TickMessage) {
	if err := c.mgr.AddDataPoint(m.SeriesID, TickToPoint(m, c.dec.epochSeconds)); err != nil {
		if !isDomainRejection(err) {
			c.recordError("stream_ingest")
		}
		return
	}
	if c.metrics != nil {
		c.metrics.RecordLastPrice(m.SeriesID, m.Price)
	}
}

func (c *TickCollector) recordError(kind string) {
	if c.metrics != nil {
		c.metrics.RecordError(kind)
	}
}

// Shutdown closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	return c.stream.Close()
}
