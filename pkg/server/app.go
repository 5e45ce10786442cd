package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "FinSeries/internal/middleware"
	"FinSeries/internal/usecase"
	pkgch "FinSeries/pkg/clickhouse"
	"FinSeries/pkg/config"
	xhttp "FinSeries/pkg/http"
	pkgkafka "FinSeries/pkg/kafka"
	applogger "FinSeries/pkg/logger"
)

var errFeedDisconnected = errors.New("tick feed disconnected")

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	series     *usecase.SeriesUseCase
	handler    xhttp.Handler
	httpServer *xhttp.Server

	pipeline  *mid.WindowPipeline
	processor *usecase.WindowProcessor
	collector *usecase.TickCollector
	consumer  *pkgkafka.Consumer
	ticks     pkgkafka.MessageHandler
	chClient  *pkgch.Client
	ready     *xhttp.ReadinessHandler

	cancel context.CancelFunc
}

type Option func(*App)

// WithPipeline publishes closed windows through p and closes proc on shutdown.
func WithPipeline(p *mid.WindowPipeline, proc *usecase.WindowProcessor) Option {
	return func(a *App) {
		a.pipeline = p
		a.processor = proc
	}
}

// WithCollector ingests ticks from a live feed.
func WithCollector(c *usecase.TickCollector) Option {
	return func(a *App) { a.collector = c }
}

// WithConsumer ingests ticks from Kafka.
func WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = c
		a.ticks = h
	}
}

// WithClickHouse closes the client on shutdown and reports it on /readyz.
func WithClickHouse(c *pkgch.Client) Option {
	return func(a *App) {
		if c == nil {
			return
		}
		a.chClient = c
		a.ready.Add("clickhouse", c.Health)
	}
}

// WithReadinessCheck adds a dependency to /readyz.
func WithReadinessCheck(name string, c xhttp.Check) Option {
	return func(a *App) { a.ready.Add(name, c) }
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, series *usecase.SeriesUseCase, handler xhttp.Handler, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		l:       l,
		series:  series,
		handler: handler,
		ready:   xhttp.NewReadinessHandler(2 * time.Second),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.collector != nil {
		a.ready.Add("tick_feed", func(context.Context) error {
			if !a.collector.IsConnected() {
				return errFeedDisconnected
			}
			return nil
		})
	}
	return a
}

// Start bootstraps configured series and starts every component.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	if err := a.series.Bootstrap(a.cfg.Aggregation.Series); err != nil {
		return fmt.Errorf("bootstrap series: %w", err)
	}
	a.l.Info("series ready", applogger.Strings("series", a.series.List()))

	if a.pipeline != nil {
		a.pipeline.Start(ctx)
		a.l.Info("window pipeline started", applogger.String("backend", a.cfg.Backend.Type))
	}

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			// the feed is optional; the API keeps serving
			a.l.Error("tick feed start error", applogger.Error(err))
		} else {
			a.l.Info("tick feed started", applogger.Strings("series", a.cfg.Feed.Series))
		}
	}

	if a.consumer != nil && a.ticks != nil {
		a.consumer.RegisterHandler(a.ticks)
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.ticks.Topic()))
	}

	a.httpServer = xhttp.NewServer(xhttp.Handlers{a.handler, a.ready}, a.l,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(len(a.cfg.Server.CORSOrigins) > 0, a.cfg.Server.CORSOrigins...),
		xhttp.WithMetrics(a.cfg.Metrics.Enabled, a.cfg.Metrics.Path),
	)
	return a.httpServer.Start()
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	if err := a.Start(context.Background()); err != nil {
		a.l.Error("app start error", applogger.Error(err))
		_ = a.Shutdown(context.Background())
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Shutdown stops ingestion first, then drains closed windows to the backend.
func (a *App) Shutdown(ctx context.Context) error {
	a.l.Info("shutting down")

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := a.consumer.Stop(stopCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
		cancel()
	}

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.l.Warn("tick feed stop error", applogger.Error(err))
		}
	}

	if a.pipeline != nil {
		a.pipeline.Stop()
		if n := a.pipeline.Len(); n > 0 {
			a.l.Warn("windows left unpublished", applogger.Int("count", n))
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.processor != nil {
		a.processor.Close()
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
