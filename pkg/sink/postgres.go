package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/tap-nhl/pkg/record"
)

// RecordsTable holds the latest landing document per stream and player.
const RecordsTable = "nhl_player_records"

const createTableSQL = `
CREATE TABLE IF NOT EXISTS ` + RecordsTable + ` (
	stream       TEXT        NOT NULL,
	player_id    BIGINT      NOT NULL,
	record       JSONB       NOT NULL,
	run_id       TEXT        NOT NULL,
	extracted_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (stream, player_id)
)`

const upsertSQL = `
INSERT INTO ` + RecordsTable + ` (stream, player_id, record, run_id, extracted_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (stream, player_id) DO UPDATE SET
	record = EXCLUDED.record,
	run_id = EXCLUDED.run_id,
	extracted_at = EXCLUDED.extracted_at`

// execer is the part of *pgxpool.Pool used by the sink.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Postgres upserts records into RecordsTable.
type Postgres struct {
	db     execer
	close  func()
	runID  string
	logger zerolog.Logger
}

// NewPostgres creates a sink on an existing pool. The table is not created;
// call EnsureSchema.
func NewPostgres(pool *pgxpool.Pool, runID string) *Postgres {
	return newPostgres(pool, pool.Close, runID)
}

func newPostgres(db execer, closeFn func(), runID string) *Postgres {
	return &Postgres{
		db:     db,
		close:  closeFn,
		runID:  runID,
		logger: log.With().Str("component", "sink").Str("sink", KindPostgres).Logger(),
	}
}

// OpenPostgres connects to dsn, verifies the connection and creates the
// records table if needed.
func OpenPostgres(ctx context.Context, dsn, runID string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres sink requires a dsn")
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = 4
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := NewPostgres(pool, runID)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s.logger.Info().Str("table", RecordsTable).Msg("Postgres sink connected")
	return s, nil
}

// EnsureSchema creates the records table if it does not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create %s: %w", RecordsTable, err)
	}
	return nil
}

// WriteSchema is a no-op; the table stores documents as JSONB.
func (s *Postgres) WriteSchema(ctx context.Context, stream string, schema any, keyProperties []string) error {
	return nil
}

// WriteRecord upserts the record keyed by stream and player id.
func (s *Postgres) WriteRecord(ctx context.Context, rec Record) error {
	data, err := record.Marshal(rec.Data)
	if err != nil {
		nhlSinkErrorsTotal.WithLabelValues(KindPostgres).Inc()
		return fmt.Errorf("marshaling record: %w", err)
	}

	extractedAt := rec.ExtractedAt
	if extractedAt.IsZero() {
		extractedAt = time.Now()
	}

	if _, err := s.db.Exec(ctx, upsertSQL, rec.Stream, rec.PlayerID, string(data), s.runID, extractedAt.UTC()); err != nil {
		nhlSinkErrorsTotal.WithLabelValues(KindPostgres).Inc()
		return fmt.Errorf("upsert %s player %d: %w", rec.Stream, rec.PlayerID, err)
	}
	nhlSinkWritesTotal.WithLabelValues(KindPostgres, "RECORD").Inc()
	return nil
}

// WriteState is a no-op; run state is never persisted.
func (s *Postgres) WriteState(ctx context.Context, state any) error {
	s.logger.Debug().Msg("State not persisted by postgres sink")
	return nil
}

// Close closes the pool.
func (s *Postgres) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
