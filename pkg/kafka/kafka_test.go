package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffWithJitterStaysInBounds(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 80*time.Millisecond)
	}
	// max below min collapses to min
	d := backoffWithJitter(20*time.Millisecond, time.Millisecond, 3)
	assert.LessOrEqual(t, d, 20*time.Millisecond)
	assert.GreaterOrEqual(t, d, 10*time.Millisecond)
}

func TestQueueForPinsPartitions(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}), WithConsumerWorkers(3))
	require.NoError(t, err)
	require.Len(t, c.queues, 3)

	assert.Equal(t, c.queueFor(4), c.queueFor(4))
	assert.Equal(t, c.queueFor(1), c.queueFor(4))
	assert.NotEqual(t, c.queueFor(0), c.queueFor(1))
	assert.Equal(t, c.queueFor(2), c.queueFor(-2))
}

func TestNewConsumerValidates(t *testing.T) {
	_, err := NewConsumer()
	assert.Error(t, err)

	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}), WithConsumerWorkers(0))
	require.NoError(t, err)
	assert.Len(t, c.queues, 1)
	assert.Error(t, c.Start())
}

func TestStartOffset(t *testing.T) {
	assert.Equal(t, kafka.LastOffset, startOffset("latest"))
	assert.Equal(t, kafka.FirstOffset, startOffset("earliest"))
	assert.Equal(t, kafka.FirstOffset, startOffset(""))
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encodeValue(map[string]float64{"p": 1.5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":1.5}`, string(b))

	_, err = encodeValue(make(chan int))
	assert.Error(t, err)
}

func TestHookChain(t *testing.T) {
	var order []string
	var errs int
	rec := func(name string) HookFuncs {
		return HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "before:"+name)
				return ctx, km, append(data, name...), nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				order = append(order, "after:"+name)
			},
			Err: func(context.Context, string, kafka.Message, []byte, error) { errs++ },
		}
	}
	chain := NewHookChain(rec("a"), nil, rec("b"))

	_, _, data, err := chain.BeforeHandle(context.Background(), "ticks", kafka.Message{}, []byte(">"))
	require.NoError(t, err)
	assert.Equal(t, ">ab", string(data))
	chain.AfterHandle(context.Background(), "ticks", kafka.Message{}, data, nil)
	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, order)

	panicky := HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
		panic("boom")
	}}
	chain = NewHookChain(rec("a"), panicky)
	_, _, data, err = chain.BeforeHandle(context.Background(), "ticks", kafka.Message{}, []byte(">"))
	var herr *HookError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "ERR_PANIC", herr.Code)
	assert.Equal(t, ">a", string(data))
	assert.Equal(t, 1, errs)
}

func TestProducerConfigValidate(t *testing.T) {
	cfg := defaultProducerConfig()
	assert.ErrorContains(t, cfg.validate(), "brokers are required")

	cfg.Brokers = []string{"localhost:9092"}
	assert.NoError(t, cfg.validate())

	cfg.RequiredAcks = 2
	assert.Error(t, cfg.validate())

	cfg.RequiredAcks = 1
	cfg.Compression = "brotli"
	assert.ErrorContains(t, cfg.validate(), "unknown compression")
}

func TestCompressionCodec(t *testing.T) {
	for name, want := range map[string]kafka.Compression{
		"":       0,
		"none":   0,
		"gzip":   kafka.Gzip,
		"snappy": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
	} {
		got, err := compressionCodec(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestProducerBalancer(t *testing.T) {
	cfg := defaultProducerConfig()
	assert.IsType(t, &kafka.LeastBytes{}, cfg.balancer())

	WithHashByKey(true)(&cfg)
	assert.IsType(t, &kafka.Hash{}, cfg.balancer())
}

func TestProducerOptionsKeepDefaults(t *testing.T) {
	cfg := defaultProducerConfig()
	WithMaxAttempts(0)(&cfg)
	WithBatchSize(-1)(&cfg)
	WithTimeouts(0, 3*time.Second)(&cfg)

	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
}
