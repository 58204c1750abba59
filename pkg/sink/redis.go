package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/tap-nhl/pkg/record"
)

// DefaultRedisStream is the stream key records are appended to.
const DefaultRedisStream = "nhl:players"

// RedisStream appends every record to a Redis stream with XADD.
type RedisStream struct {
	client *redis.Client
	stream string
	runID  string
	logger zerolog.Logger
}

// NewRedisStream creates a sink appending to stream.
func NewRedisStream(client *redis.Client, stream, runID string) *RedisStream {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if stream == "" {
		stream = DefaultRedisStream
	}
	return &RedisStream{
		client: client,
		stream: stream,
		runID:  runID,
		logger: log.With().Str("component", "sink").Str("sink", KindRedis).Logger(),
	}
}

// OpenRedisStream connects to addr and verifies the connection.
func OpenRedisStream(ctx context.Context, addr, stream, runID string) (*RedisStream, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis sink requires an address")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	s := NewRedisStream(client, stream, runID)
	s.logger.Info().Str("addr", addr).Str("stream", s.stream).Msg("Redis sink connected")
	return s, nil
}

// WriteSchema is a no-op; stream entries are self-describing.
func (s *RedisStream) WriteSchema(ctx context.Context, stream string, schema any, keyProperties []string) error {
	return nil
}

// WriteRecord appends one entry holding the record JSON.
func (s *RedisStream) WriteRecord(ctx context.Context, rec Record) error {
	data, err := record.Marshal(rec.Data)
	if err != nil {
		nhlSinkErrorsTotal.WithLabelValues(KindRedis).Inc()
		return fmt.Errorf("marshaling record: %w", err)
	}

	extractedAt := rec.ExtractedAt
	if extractedAt.IsZero() {
		extractedAt = time.Now()
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"stream":       rec.Stream,
			"player_id":    rec.PlayerID,
			"run_id":       s.runID,
			"extracted_at": extractedAt.UTC().Format(time.RFC3339Nano),
			"data":         string(data),
		},
	}).Err()
	if err != nil {
		nhlSinkErrorsTotal.WithLabelValues(KindRedis).Inc()
		return fmt.Errorf("redis xadd %s: %w", s.stream, err)
	}
	nhlSinkWritesTotal.WithLabelValues(KindRedis, "RECORD").Inc()
	return nil
}

// WriteState is a no-op; run state is never persisted.
func (s *RedisStream) WriteState(ctx context.Context, state any) error {
	s.logger.Debug().Msg("State not persisted by redis sink")
	return nil
}

// Close closes the Redis client.
func (s *RedisStream) Close() error {
	return s.client.Close()
}
