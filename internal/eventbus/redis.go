package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gezibash/arc-ledger/internal/codec"
	"github.com/gezibash/arc-ledger/internal/journal"
	"github.com/gezibash/arc-ledger/internal/storage"
)

const (
	KeyAddr         = "addr"
	KeyPassword     = "password"
	KeyDB           = "db"
	KeyMaxRetries   = "max_retries"
	KeyDialTimeout  = "dial_timeout"
	KeyWriteTimeout = "write_timeout"
	KeyChannel      = "channel"

	redisBackend = "redis"
)

// RedisDefaults returns the default configuration for the Redis publisher.
func RedisDefaults() map[string]string {
	return map[string]string{
		KeyAddr:         "localhost:6379",
		KeyPassword:     "",
		KeyDB:           "0",
		KeyMaxRetries:   "3",
		KeyDialTimeout:  "5s",
		KeyWriteTimeout: "3s",
		KeyChannel:      "arc-ledger:events",
	}
}

// RedisPublisher publishes each committed record, CBOR-encoded, to a Redis
// pub/sub channel. Records of one batch are sent in a single pipeline.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher connects to Redis using config merged over
// RedisDefaults.
func NewRedisPublisher(ctx context.Context, config map[string]string) (*RedisPublisher, error) {
	opts := storage.NewOptions(redisBackend, RedisDefaults(), config)

	addr, err := opts.Required(KeyAddr)
	if err != nil {
		return nil, err
	}
	db, err := opts.Int(KeyDB, 0)
	if err != nil {
		return nil, err
	}
	if db < 0 {
		return nil, storage.NewConfigErrorWithValue(redisBackend, KeyDB, opts.Values[KeyDB], "must be non-negative")
	}
	maxRetries, err := opts.Int(KeyMaxRetries, 3)
	if err != nil {
		return nil, err
	}
	dialTimeout, err := opts.Duration(KeyDialTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := opts.Duration(KeyWriteTimeout, 3*time.Second)
	if err != nil {
		return nil, err
	}
	channel, err := opts.Required(KeyChannel)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     opts.String(KeyPassword, ""),
		DB:           db,
		MaxRetries:   maxRetries,
		DialTimeout:  dialTimeout,
		WriteTimeout: writeTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, storage.NewConfigErrorWithCause(redisBackend, KeyAddr, "failed to connect", err)
	}

	slog.Info("redis event publisher initialized", "addr", addr, "db", db, "channel", channel)
	return NewRedisPublisherWithClient(client, channel), nil
}

// NewRedisPublisherWithClient wraps an existing client.
func NewRedisPublisherWithClient(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Channel returns the pub/sub channel records are published to.
func (p *RedisPublisher) Channel() string {
	return p.channel
}

// Publish sends records in order.
func (p *RedisPublisher) Publish(ctx context.Context, records []journal.Record) error {
	if len(records) == 0 {
		return nil
	}
	pipe := p.client.Pipeline()
	for _, r := range records {
		data, err := codec.Marshal(r)
		if err != nil {
			return err
		}
		pipe.Publish(ctx, p.channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %d records: %w", len(records), err)
	}
	return nil
}

// DecodeRecord decodes a message payload published by RedisPublisher.
func DecodeRecord(payload string) (journal.Record, error) {
	var r journal.Record
	err := codec.Unmarshal([]byte(payload), &r)
	return r, err
}

// Close closes the client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
