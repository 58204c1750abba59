// Package pagination walks the two paging schemes of the NHL APIs.
//
// The web API (api-web.nhle.com) continues a listing with an opaque cursor
// found in the response body. The stats API (api.nhle.com/stats/rest) pages
// with start/limit offsets and reports a total row count.
//
// Example usage:
//
//	p := pagination.NewCursorPaginator(fetcher, pagination.Config{RecordsPath: "$"})
//	pages, err := p.Each(ctx, func(rec any) error {
//		return emit(rec)
//	})
//
// The cursor paginator:
//   - Extracts records with a JSON path (default "$.standings[*]")
//   - Reads the next cursor from "$.pagination.nextCursor"
//   - Stops when no cursor is returned, or the same cursor comes back twice
//   - Fetches pages sequentially; the first error aborts the walk
//
// Offsets drives start/limit paging and stops on start >= total or on an
// empty page, so a missing or wrong total cannot loop forever.
package pagination
