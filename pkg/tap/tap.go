// Package tap runs a sync: every selected stream is planned into player
// partitions, each partition's landing records are written to a sink, and a
// STATE message closes each stream.
package tap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/tap-nhl/pkg/record"
	"github.com/Sternrassler/tap-nhl/pkg/sink"
	"github.com/Sternrassler/tap-nhl/pkg/stream"
)

// Name is the tap name reported by About and the catalog.
const Name = "tap-nhl"

// ErrUnknownStream is returned when a selected stream does not exist.
var ErrUnknownStream = errors.New("unknown stream")

// Runner syncs a set of streams into one sink.
type Runner struct {
	streams []*stream.Stream
	out     sink.Sink
	logger  zerolog.Logger

	// Now stamps extracted records (default time.Now).
	Now func() time.Time
}

// Result summarizes one stream of a sync.
type Result struct {
	Stream     string
	Partitions int
	Records    int
	Duration   time.Duration
}

// NewRunner creates a runner writing to out.
func NewRunner(streams []*stream.Stream, out sink.Sink) *Runner {
	return &Runner{
		streams: streams,
		out:     out,
		logger:  log.With().Str("component", "tap").Logger(),
		Now:     time.Now,
	}
}

// Streams creates the streams named in selected (all categories when empty).
// Already created streams are closed when a later one fails.
func Streams(selected []string, settings stream.Settings) ([]*stream.Stream, error) {
	categories := stream.Categories()
	if len(selected) > 0 {
		categories = categories[:0:0]
		for _, name := range selected {
			c, ok := stream.Lookup(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownStream, name)
			}
			categories = append(categories, c)
		}
	}

	streams := make([]*stream.Stream, 0, len(categories))
	for _, c := range categories {
		s, err := stream.New(c, settings)
		if err != nil {
			for _, created := range streams {
				created.Close()
			}
			return nil, err
		}
		streams = append(streams, s)
	}
	return streams, nil
}

// Sync runs every stream in order. It stops at the first error; records
// already written stay written.
func (r *Runner) Sync(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(r.streams))
	for _, s := range r.streams {
		res, err := r.syncStream(ctx, s)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (r *Runner) syncStream(ctx context.Context, s *stream.Stream) (Result, error) {
	start := time.Now()
	res := Result{Stream: s.Name()}
	logger := r.logger.With().Str("stream", s.Name()).Logger()

	if err := r.out.WriteSchema(ctx, s.Name(), LandingSchema(), []string{stream.PrimaryKey}); err != nil {
		return res, fmt.Errorf("write %s schema: %w", s.Name(), err)
	}

	partitions, err := s.Partitions(ctx)
	if err != nil {
		return res, fmt.Errorf("plan %s partitions: %w", s.Name(), err)
	}
	res.Partitions = len(partitions)
	logger.Info().Int("partitions", len(partitions)).Msg("Stream sync started")

	completed := make([]PartitionState, 0, len(partitions))
	for _, p := range partitions {
		n, err := s.Records(ctx, p, func(obj *record.Object) error {
			return r.out.WriteRecord(ctx, sink.Record{
				Stream:      s.Name(),
				PlayerID:    p.PlayerID,
				Data:        obj,
				ExtractedAt: r.Now(),
			})
		})
		res.Records += n
		if err != nil {
			return res, err
		}
		completed = append(completed, PartitionState{Context: p})
	}

	if err := r.out.WriteState(ctx, streamState(s.Name(), completed)); err != nil {
		return res, fmt.Errorf("write %s state: %w", s.Name(), err)
	}

	res.Duration = time.Since(start)
	logger.Info().
		Int("records", res.Records).
		Dur("duration", res.Duration).
		Msg("Stream sync finished")
	return res, nil
}

// Close closes every stream. The sink is owned by the caller.
func (r *Runner) Close() error {
	for _, s := range r.streams {
		s.Close()
	}
	return nil
}

// State is the STATE message value.
type State struct {
	Bookmarks map[string]StreamState `json:"bookmarks"`
}

// StreamState lists the partitions synced in this run.
type StreamState struct {
	Partitions []PartitionState `json:"partitions"`
}

// PartitionState identifies one synced partition.
type PartitionState struct {
	Context stream.Partition `json:"context"`
}

func streamState(name string, partitions []PartitionState) State {
	return State{Bookmarks: map[string]StreamState{name: {Partitions: partitions}}}
}
