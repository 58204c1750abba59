// Package sink delivers extracted records downstream: Singer messages on
// stdout, a Redis stream, or a Postgres table.
package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/tap-nhl/pkg/record"
)

// Prometheus metrics for sinks.
var (
	nhlSinkWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nhl_sink_writes_total",
		Help: "Total messages written by sink kind and message type",
	}, []string{"sink", "type"})

	nhlSinkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nhl_sink_errors_total",
		Help: "Total sink write errors by sink kind",
	}, []string{"sink"})
)

// Sink kinds.
const (
	KindStdout   = "stdout"
	KindRedis    = "redis"
	KindPostgres = "postgres"
)

// Record is one extracted landing record.
type Record struct {
	Stream      string
	PlayerID    int64
	Data        *record.Object
	ExtractedAt time.Time
}

// Sink receives the output of a sync run.
type Sink interface {
	// WriteSchema announces a stream before its records.
	WriteSchema(ctx context.Context, stream string, schema any, keyProperties []string) error

	// WriteRecord delivers one record.
	WriteRecord(ctx context.Context, rec Record) error

	// WriteState reports sync progress.
	WriteState(ctx context.Context, state any) error

	// Close flushes and releases resources.
	Close() error
}

// Config selects and configures a sink.
type Config struct {
	Kind string

	// Output for the stdout sink (default os.Stdout).
	Output io.Writer

	RedisAddr   string
	RedisStream string

	PostgresDSN string

	// RunID tags records written to Redis and Postgres.
	RunID string
}

// Open creates the sink described by cfg.
func Open(ctx context.Context, cfg Config) (Sink, error) {
	switch cfg.Kind {
	case "", KindStdout:
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		return NewSinger(out), nil
	case KindRedis:
		s, err := OpenRedisStream(ctx, cfg.RedisAddr, cfg.RedisStream, cfg.RunID)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindPostgres:
		s, err := OpenPostgres(ctx, cfg.PostgresDSN, cfg.RunID)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown sink kind %q", cfg.Kind)
	}
}
