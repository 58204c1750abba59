package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/tap-nhl/pkg/record"
)

// Prometheus metrics for pagination.
var (
	nhlPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nhl_pages_total",
		Help: "Total pages fetched by pagination scheme",
	}, []string{"scheme"})

	nhlPaginationLoopsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nhl_pagination_repeated_cursor_total",
		Help: "Total cursor walks aborted because the server repeated a cursor",
	})
)

// ErrCursorLoop is returned when the server hands back a cursor it already sent.
var ErrCursorLoop = errors.New("pagination cursor loop")

const (
	// DefaultRecordsPath is where listing endpoints keep their rows.
	DefaultRecordsPath = "$.standings[*]"

	// DefaultNextCursorPath is where the web API puts its continuation token.
	DefaultNextCursorPath = "$.pagination.nextCursor"
)

// Config holds cursor paginator configuration.
type Config struct {
	// RecordsPath selects the records of a page (default DefaultRecordsPath).
	RecordsPath string

	// NextCursorPath selects the continuation token (default DefaultNextCursorPath).
	NextCursorPath string
}

// DefaultConfig returns the web API's listing layout.
func DefaultConfig() Config {
	return Config{
		RecordsPath:    DefaultRecordsPath,
		NextCursorPath: DefaultNextCursorPath,
	}
}

// PageFetcher fetches one page. cursor is empty for the first page.
type PageFetcher interface {
	FetchPage(ctx context.Context, cursor string) ([]byte, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, cursor string) ([]byte, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, cursor string) ([]byte, error) {
	return f(ctx, cursor)
}

// CursorPaginator walks a cursor paginated endpoint.
type CursorPaginator struct {
	fetcher PageFetcher
	config  Config
}

// NewCursorPaginator creates a new cursor paginator.
func NewCursorPaginator(fetcher PageFetcher, config Config) *CursorPaginator {
	if config.RecordsPath == "" {
		config.RecordsPath = DefaultRecordsPath
	}
	if config.NextCursorPath == "" {
		config.NextCursorPath = DefaultNextCursorPath
	}
	return &CursorPaginator{
		fetcher: fetcher,
		config:  config,
	}
}

// Each fetches pages until the server stops returning a cursor and calls fn
// for every extracted record. It returns the number of pages fetched.
func (p *CursorPaginator) Each(ctx context.Context, fn func(rec any) error) (int, error) {
	start := time.Now()
	seen := make(map[string]struct{})
	cursor := ""
	pages := 0

	for {
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		body, err := p.fetcher.FetchPage(ctx, cursor)
		if err != nil {
			return pages, fmt.Errorf("fetch page %d: %w", pages+1, err)
		}
		pages++
		nhlPagesTotal.WithLabelValues("cursor").Inc()

		doc, err := record.Decode(body)
		if err != nil {
			return pages, fmt.Errorf("page %d: %w", pages, err)
		}

		records, err := Extract(doc, p.config.RecordsPath)
		if err != nil {
			return pages, err
		}
		for _, rec := range records {
			if err := fn(rec); err != nil {
				return pages, err
			}
		}

		next, err := nextCursor(doc, p.config.NextCursorPath)
		if err != nil {
			return pages, err
		}
		if next == "" {
			break
		}
		if _, dup := seen[next]; dup || next == cursor {
			nhlPaginationLoopsTotal.Inc()
			log.Warn().
				Str("cursor", next).
				Int("pages", pages).
				Msg("Server repeated a pagination cursor")
			return pages, fmt.Errorf("%w: cursor %q after page %d", ErrCursorLoop, next, pages)
		}
		seen[next] = struct{}{}

		log.Debug().
			Str("cursor", next).
			Int("records", len(records)).
			Msg("Following pagination cursor")
		cursor = next
	}

	log.Debug().
		Int("pages", pages).
		Dur("duration", time.Since(start)).
		Msg("Cursor pagination complete")

	return pages, nil
}

// nextCursor returns the first truthy match of path as a string.
func nextCursor(doc any, path string) (string, error) {
	matches, err := Extract(doc, path)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	switch v := matches[0].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		if v == "0" {
			return "", nil
		}
		return v.String(), nil
	case bool:
		if !v {
			return "", nil
		}
		return "true", nil
	default:
		return "", fmt.Errorf("pagination cursor at %s has unsupported type %T", path, v)
	}
}
