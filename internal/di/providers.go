package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"FinSeries/internal/domain/repository"
	"FinSeries/internal/handler/api"
	mid "FinSeries/internal/middleware"
	internalrepo "FinSeries/internal/repository"
	"FinSeries/internal/service/tickfeed"
	"FinSeries/internal/services/timeseries"
	"FinSeries/internal/usecase"
	pkgcache "FinSeries/pkg/cache"
	pkgch "FinSeries/pkg/clickhouse"
	"FinSeries/pkg/config"
	pkgkafka "FinSeries/pkg/kafka"
	applogger "FinSeries/pkg/logger"
	"FinSeries/pkg/metrics"
	"FinSeries/pkg/server"

	kafkago "github.com/segmentio/kafka-go"
)

const windowsTable = "windows"

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client when the clickhouse
// backend is selected.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Backend.Type != usecase.BackendClickHouse {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.WindowsSchema(cfg.ClickHouse.Database, windowsTable)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer when the kafka backend is
// selected. Messages are hashed by series id.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideRedisCache connects to Redis when the redis backend is selected.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if cfg.Backend.Type != usecase.BackendRedis {
		return nil, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideWindowPublisher wraps the producer, if any.
func ProvideWindowPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.WindowPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaWindowPublisher(producer, cfg.Kafka.Topic)
}

// ProvideWindowStorage picks ClickHouse or Redis storage for the backend.
func ProvideWindowStorage(ch *pkgch.Client, rc *pkgcache.RedisCache, cfg *config.Config) repository.WindowStorage {
	switch {
	case ch != nil:
		return internalrepo.NewClickHouseWindowStorage(ch.DB(), ch.Database()+"."+windowsTable)
	case rc != nil:
		return internalrepo.NewRedisWindowStorage(rc, cfg.Redis.Channel, cfg.Redis.HistoryLimit, cfg.Redis.TTL)
	}
	return nil
}

// ProvideWindowProcessor routes windows to the configured backend.
func ProvideWindowProcessor(
	pub repository.WindowPublisher,
	store repository.WindowStorage,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.WindowProcessor {
	return usecase.NewWindowProcessor(pub, store, m, cfg.Backend.Type)
}

// ProvideWindowPipeline buffers closed windows between the manager and the
// backend. It is nil when nothing is published.
func ProvideWindowPipeline(
	proc *usecase.WindowProcessor,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *mid.WindowPipeline {
	if proc.Backend() == usecase.BackendNone {
		return nil
	}
	return mid.NewWindowPipeline(proc, m,
		mid.WithBufferSize(cfg.Backend.BufferSize),
		mid.WithBackoff(cfg.Backend.BackoffMin, cfg.Backend.BackoffMax),
		mid.WithLogger(l),
	)
}

// ProvideSeriesManager builds the aggregation core.
func ProvideSeriesManager(
	pipe *mid.WindowPipeline,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *timeseries.Manager {
	opts := []timeseries.ManagerOption{
		timeseries.WithLogger(l),
		timeseries.WithMetrics(m),
		timeseries.WithMaxFillWindows(cfg.Aggregation.MaxFillWindows),
	}
	if pipe != nil {
		opts = append(opts, timeseries.WithSink(pipe))
	}
	return timeseries.NewManager(timeseries.NewCatalog(), timeseries.NewStore(), opts...)
}

// ProvideSeriesUseCase adapts boundary requests to the manager.
func ProvideSeriesUseCase(mgr *timeseries.Manager) *usecase.SeriesUseCase {
	return usecase.NewSeriesUseCase(mgr)
}

// ProvideSeriesHandler creates the HTTP API.
func ProvideSeriesHandler(l *applogger.Logger, uc *usecase.SeriesUseCase, cfg *config.Config) *api.SeriesEchoHandler {
	var opts []api.HandlerOption
	if cfg.Server.RateLimit.Enabled {
		opts = append(opts, api.WithRateLimit(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSec))
	}
	return api.NewSeriesEchoHandler(l, uc, opts...)
}

// ProvideTickCollector streams ticks from the websocket feed when enabled.
func ProvideTickCollector(
	mgr *timeseries.Manager,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.TickCollector {
	if !cfg.Feed.Enabled {
		return nil
	}
	stream := tickfeed.New(cfg.Feed.URL, cfg.Feed.Series,
		tickfeed.WithTiming(cfg.Feed.ReconnectDelay, cfg.Feed.PingInterval),
		tickfeed.WithLogger(l),
	)
	return usecase.NewTickCollector(stream, mgr, m, l, usecase.WithEpochSeconds(cfg.Aggregation.EpochSeconds))
}

// ProvideKafkaConsumer creates a Kafka consumer when enabled.
func ProvideKafkaConsumer(cfg *config.Config, m repository.Metrics, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.HookFuncs{
			After: func(_ context.Context, _ string, km kafkago.Message, _ []byte, err error) {
				if err == nil && !km.Time.IsZero() {
					m.RecordLatency("kafka_ingest_lag_seconds", time.Since(km.Time).Seconds())
				}
			},
		},
		pkgkafka.HookFuncs{
			Err: func(_ context.Context, topic string, _ kafkago.Message, _ []byte, _ error) {
				m.RecordError("consumer_" + strings.ReplaceAll(topic, ".", "_"))
			},
		},
	))
	return consumer, nil
}

// ProvideKafkaTicksHandler feeds the ticks topic into the manager.
func ProvideKafkaTicksHandler(mgr *timeseries.Manager, m repository.Metrics, l *applogger.Logger, cfg *config.Config) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.TicksTopic, mgr, m, l, usecase.WithEpochSeconds(cfg.Aggregation.EpochSeconds))
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	uc *usecase.SeriesUseCase,
	handler *api.SeriesEchoHandler,
	pipe *mid.WindowPipeline,
	proc *usecase.WindowProcessor,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	ch *pkgch.Client,
	rc *pkgcache.RedisCache,
) *server.App {
	opts := []server.Option{
		server.WithClickHouse(ch),
		server.WithPipeline(pipe, proc),
	}
	if collector != nil {
		opts = append(opts, server.WithCollector(collector))
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, kh))
	}
	if rc != nil {
		opts = append(opts, server.WithReadinessCheck("redis", rc.Ping))
	}
	return server.New(cfg, l, uc, handler, opts...)
}
