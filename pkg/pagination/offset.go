package pagination

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// OffsetFetcher fetches the page starting at row start and reports how many
// rows it held and the total the server claims.
type OffsetFetcher func(ctx context.Context, start int) (rows int, total int, err error)

// Offsets pages with start/limit until start reaches total or a page comes
// back empty. It returns the number of pages fetched.
func Offsets(ctx context.Context, pageSize int, fetch OffsetFetcher) (int, error) {
	if pageSize <= 0 {
		return 0, fmt.Errorf("page size must be > 0 (got %d)", pageSize)
	}

	pages := 0
	for start := 0; ; {
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		rows, total, err := fetch(ctx, start)
		if err != nil {
			return pages, err
		}
		pages++
		nhlPagesTotal.WithLabelValues("offset").Inc()

		start += pageSize
		if rows == 0 || start >= total {
			log.Debug().
				Int("pages", pages).
				Int("rows", rows).
				Int("total", total).
				Msg("Offset pagination complete")
			return pages, nil
		}
	}
}
