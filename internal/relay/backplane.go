package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/okian/ensemble/internal/domain/dedupe"
	"github.com/okian/ensemble/pkg/logger"
	"github.com/okian/ensemble/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// Default backplane configuration constants.
const (
	defaultChannel       = "ensemble"
	defaultPublishBuffer = 1024
	defaultMaxRetries    = 5
	pingInterval         = 200 * time.Millisecond
)

// Envelope wraps one wire frame crossing relay instances.
type Envelope struct {
	ID       string          `json:"id"`
	Instance string          `json:"instance"`
	Frame    json.RawMessage `json:"frame"`
}

// Backplane shares frames between relay instances.
type Backplane interface {
	// Publish queues env for the other instances without blocking.
	Publish(ctx context.Context, env Envelope) error
	// Messages yields envelopes published by any instance, never the
	// same envelope id twice.
	Messages() <-chan Envelope
	Close() error
}

// RedisBackplane is a Backplane over one Redis pub/sub channel.
type RedisBackplane struct {
	rdb        *redis.Client
	pubsub     *redis.PubSub
	channel    string
	deduper    dedupe.Deduper
	bufferSize int
	maxRetries uint64
	logger     logger.Logger

	out       chan Envelope
	in        chan Envelope
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRedisBackplane connects to addr, retrying the first ping with
// exponential backoff, and subscribes to the channel.
func NewRedisBackplane(ctx context.Context, addr string, opts ...BackplaneOption) (*RedisBackplane, error) {
	b := &RedisBackplane{
		channel:    defaultChannel,
		bufferSize: defaultPublishBuffer,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Get().Named("backplane")
	}
	if b.deduper == nil {
		b.deduper = dedupe.NewInMemoryDeduper()
	}

	b.rdb = redis.NewClient(&redis.Options{Addr: addr})
	if err := b.ping(ctx); err != nil {
		_ = b.rdb.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", ErrBackplane, addr, err)
	}

	b.pubsub = b.rdb.Subscribe(ctx, b.channel)
	if _, err := b.pubsub.Receive(ctx); err != nil {
		_ = b.pubsub.Close()
		_ = b.rdb.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %w", ErrBackplane, b.channel, err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.cancel = cancel
	b.out = make(chan Envelope, b.bufferSize)
	b.in = make(chan Envelope, b.bufferSize)

	b.wg.Add(2)
	go b.publishLoop(runCtx)
	go b.receiveLoop(runCtx)

	b.logger.Info(ctx, "backplane connected",
		logger.String("addr", addr),
		logger.String("channel", b.channel),
	)
	return b, nil
}

func (b *RedisBackplane) ping(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = pingInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, b.maxRetries), ctx)
	return backoff.RetryNotify(func() error {
		return b.rdb.Ping(ctx).Err()
	}, policy, func(err error, wait time.Duration) {
		b.logger.Warn(ctx, "redis not ready, retrying",
			logger.String("wait", wait.String()),
			logger.Error(err),
		)
	})
}

// Publish implements Backplane. The envelope id is recorded first so the
// copy Redis sends back to this instance is dropped.
func (b *RedisBackplane) Publish(ctx context.Context, env Envelope) error {
	b.deduper.SeenAndRecord(ctx, env.ID)
	select {
	case b.out <- env:
		return nil
	default:
		b.deduper.Forget(ctx, env.ID)
		return fmt.Errorf("%w: publish buffer full", ErrBackplane)
	}
}

// Messages implements Backplane.
func (b *RedisBackplane) Messages() <-chan Envelope { return b.in }

// Close stops both loops and closes the Redis client.
func (b *RedisBackplane) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.cancel()
		_ = b.pubsub.Close()
		b.wg.Wait()
		err = b.rdb.Close()
	})
	return err
}

func (b *RedisBackplane) publishLoop(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-b.out:
			data, err := json.Marshal(env)
			if err != nil {
				metrics.RecordErrorByComponent("backplane", "encode")
				continue
			}
			if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
				metrics.RecordErrorByComponent("backplane", "publish")
				b.logger.Warn(ctx, "publish failed", logger.Error(err))
				continue
			}
			metrics.RecordBackplanePublished()
		}
	}
}

func (b *RedisBackplane) receiveLoop(ctx context.Context) {
	defer b.wg.Done()
	defer close(b.in)
	msgs := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			env, ok := b.accept(ctx, []byte(msg.Payload))
			if !ok {
				continue
			}
			select {
			case b.in <- env:
			case <-ctx.Done():
				return
			}
		}
	}
}

// accept decodes a payload and drops envelopes already seen.
func (b *RedisBackplane) accept(ctx context.Context, payload []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.ID == "" {
		metrics.RecordDecodeError()
		b.logger.Warn(ctx, "dropping malformed envelope", logger.Int("bytes", len(payload)))
		return Envelope{}, false
	}
	if b.deduper.SeenAndRecord(ctx, env.ID) {
		metrics.RecordBackplaneDuplicate()
		return Envelope{}, false
	}
	metrics.RecordBackplaneReceived()
	return env, true
}
