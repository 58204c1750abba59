package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Sternrassler/tap-nhl/pkg/record"
)

type schemaMessage struct {
	Type          string   `json:"type"`
	Stream        string   `json:"stream"`
	Schema        any      `json:"schema"`
	KeyProperties []string `json:"key_properties"`
}

type recordMessage struct {
	Type          string         `json:"type"`
	Stream        string         `json:"stream"`
	Record        *record.Object `json:"record"`
	TimeExtracted string         `json:"time_extracted,omitempty"`
}

type stateMessage struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Singer writes Singer protocol messages, one JSON document per line.
type Singer struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewSinger creates a Singer sink writing to w.
func NewSinger(w io.Writer) *Singer {
	return &Singer{w: bufio.NewWriter(w)}
}

// WriteSchema writes a SCHEMA message.
func (s *Singer) WriteSchema(ctx context.Context, stream string, schema any, keyProperties []string) error {
	if keyProperties == nil {
		keyProperties = []string{}
	}
	return s.write("SCHEMA", schemaMessage{
		Type:          "SCHEMA",
		Stream:        stream,
		Schema:        schema,
		KeyProperties: keyProperties,
	})
}

// WriteRecord writes a RECORD message.
func (s *Singer) WriteRecord(ctx context.Context, rec Record) error {
	msg := recordMessage{
		Type:   "RECORD",
		Stream: rec.Stream,
		Record: rec.Data,
	}
	if !rec.ExtractedAt.IsZero() {
		msg.TimeExtracted = rec.ExtractedAt.UTC().Format(time.RFC3339Nano)
	}
	return s.write("RECORD", msg)
}

// WriteState writes a STATE message and flushes, so a consumer never sees
// a state ahead of the records it covers.
func (s *Singer) WriteState(ctx context.Context, state any) error {
	if err := s.write("STATE", stateMessage{Type: "STATE", Value: state}); err != nil {
		return err
	}
	return s.flush()
}

// Close flushes buffered messages.
func (s *Singer) Close() error {
	return s.flush()
}

func (s *Singer) write(kind string, msg any) error {
	data, err := record.Marshal(msg)
	if err != nil {
		nhlSinkErrorsTotal.WithLabelValues(KindStdout).Inc()
		return fmt.Errorf("encode %s message: %w", kind, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		nhlSinkErrorsTotal.WithLabelValues(KindStdout).Inc()
		return fmt.Errorf("write %s message: %w", kind, err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		nhlSinkErrorsTotal.WithLabelValues(KindStdout).Inc()
		return fmt.Errorf("write %s message: %w", kind, err)
	}
	nhlSinkWritesTotal.WithLabelValues(KindStdout, kind).Inc()
	return nil
}

func (s *Singer) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		nhlSinkErrorsTotal.WithLabelValues(KindStdout).Inc()
		return fmt.Errorf("flush singer output: %w", err)
	}
	return nil
}
