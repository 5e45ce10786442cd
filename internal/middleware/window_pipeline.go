package middleware

import (
	"context"
	"sync"
	"time"

	"FinSeries/internal/domain/models"
	domrepo "FinSeries/internal/domain/repository"
	applogger "FinSeries/pkg/logger"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, w *models.AggregatedWindow) error
}

// WindowPipeline decouples window closing from publication. Submit never
// blocks ingestion: windows are buffered and flushed by a background
// goroutine that retries with exponential backoff. Windows that do not fit
// in the buffer are dropped and counted.
type WindowPipeline struct {
	proc       Proc
	metrics    domrepo.Metrics
	l          *applogger.Logger
	bufSize    int
	backoffMin time.Duration
	backoffMax time.Duration
	maxRetries int

	bufCh   chan models.AggregatedWindow
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

type PipelineOption func(*WindowPipeline)

// WithBufferSize sets the number of windows held while downstream catches up.
func WithBufferSize(n int) PipelineOption {
	return func(p *WindowPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBackoff sets the retry backoff bounds.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *WindowPipeline) {
		if min > 0 {
			p.backoffMin = min
		}
		if max >= p.backoffMin {
			p.backoffMax = max
		}
	}
}

// WithMaxRetries bounds the attempts per window. Zero retries forever.
func WithMaxRetries(n int) PipelineOption {
	return func(p *WindowPipeline) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *WindowPipeline) { p.l = l }
}

// NewWindowPipeline creates a new pipeline.
func NewWindowPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *WindowPipeline {
	p := &WindowPipeline{
		proc:       proc,
		metrics:    metrics,
		bufSize:    1000,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		maxRetries: 5,
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.AggregatedWindow, p.bufSize)
	return p
}

// Submit enqueues closed windows without blocking.
func (p *WindowPipeline) Submit(ws []models.AggregatedWindow) {
	for _, w := range ws {
		select {
		case p.bufCh <- w:
		default:
			p.recordError("pipeline_buffer_full")
			if p.l != nil {
				p.l.Warn("window dropped: pipeline buffer full",
					applogger.String("series", w.SeriesID),
					applogger.String("granularity", w.Granularity.Label()),
					applogger.Int64("start", w.StartTime.UnixMilli()))
			}
		}
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
	}
}

// Start launches background flushing of buffered windows.
func (p *WindowPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.stopCh:
				p.drain(ctx)
				return
			case <-ctx.Done():
				return
			case w := <-p.bufCh:
				p.deliver(ctx, w)
			}
		}
	}()
}

// Stop flushes what is buffered once and stops the background goroutine.
func (p *WindowPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	p.wg.Wait()
}

// Len returns the number of buffered windows.
func (p *WindowPipeline) Len() int { return len(p.bufCh) }

func (p *WindowPipeline) deliver(ctx context.Context, w models.AggregatedWindow) {
	backoff := p.backoffMin
	for attempt := 1; ; attempt++ {
		start := time.Now()
		err := p.proc.Process(ctx, &w)
		if err == nil {
			if p.metrics != nil {
				p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
			}
			return
		}
		p.recordError("pipeline_flush")
		if p.maxRetries > 0 && attempt >= p.maxRetries {
			p.recordError("pipeline_drop")
			if p.l != nil {
				p.l.Error("window dropped after retries",
					applogger.String("series", w.SeriesID),
					applogger.String("granularity", w.Granularity.Label()),
					applogger.Int("attempts", attempt),
					applogger.Error(err))
			}
			return
		}
		select {
		case <-time.After(backoff):
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
		// exponential backoff with cap
		if backoff *= 2; backoff > p.backoffMax {
			backoff = p.backoffMax
		}
	}
}

func (p *WindowPipeline) drain(ctx context.Context) {
	for {
		select {
		case w := <-p.bufCh:
			if err := p.proc.Process(ctx, &w); err != nil {
				p.recordError("pipeline_drain")
			}
		default:
			return
		}
	}
}

func (p *WindowPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

var _ domrepo.WindowSink = (*WindowPipeline)(nil)
