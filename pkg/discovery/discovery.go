// Package discovery enumerates every NHL player id by paging the stats API
// summary endpoints season by season.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/tap-nhl/pkg/client"
	"github.com/Sternrassler/tap-nhl/pkg/pagination"
	"github.com/Sternrassler/tap-nhl/pkg/season"
)

// Prometheus metrics for discovery.
var (
	nhlDiscoveryPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nhl_discovery_pages_total",
		Help: "Total stats API summary pages fetched during discovery",
	}, []string{"stream"})

	nhlDiscoveredPlayers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nhl_discovered_players",
		Help: "Distinct player ids found by the last discovery pass",
	}, []string{"stream"})

	nhlDiscoveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nhl_discovery_duration_seconds",
		Help:    "Duration of a full discovery pass",
		Buckets: []float64{1, 10, 30, 60, 120, 300, 600, 1200},
	}, []string{"stream"})
)

const (
	// PageSize is the number of summary rows requested per page.
	PageSize = 250

	// SkaterEndpoint is the skater summary endpoint of the stats API.
	SkaterEndpoint = "https://api.nhle.com/stats/rest/en/skater/summary"

	// GoalieEndpoint is the goalie summary endpoint of the stats API.
	GoalieEndpoint = "https://api.nhle.com/stats/rest/en/goalie/summary"
)

// ErrNoEndpoints is returned when discovery is asked to run without any
// summary endpoint. It is a configuration error and no request is made.
var ErrNoEndpoints = errors.New("discovery: no discovery endpoints configured")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Getter is the part of client.Session used by discovery.
type Getter interface {
	Get(ctx context.Context, rawURL string, params url.Values) (*client.Response, error)
}

// summaryPage is one page of a stats API summary listing.
type summaryPage struct {
	Data []struct {
		PlayerID *int64 `json:"playerId"`
	} `json:"data"`
	Total int `json:"total"`
}

// Discoverer collects player ids from summary endpoints.
type Discoverer struct {
	// PageSize is the limit sent with each page request (default PageSize).
	PageSize int

	session Getter
	name    string
	logger  zerolog.Logger
}

// New creates a discoverer. name identifies the owning stream in logs and
// metrics.
func New(session Getter, name string) *Discoverer {
	return &Discoverer{
		PageSize: PageSize,
		session:  session,
		name:     name,
		logger:   log.With().Str("component", "discovery").Str("stream", name).Logger(),
	}
}

// Discover pages every endpoint for every season and returns the distinct
// player ids in ascending order. Any failed request aborts the pass.
func (d *Discoverer) Discover(ctx context.Context, endpoints []string, seasons []season.ID) ([]int64, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	start := time.Now()
	seen := make(map[int64]struct{})

	for _, seasonID := range seasons {
		for _, endpoint := range endpoints {
			before := len(seen)
			pages, err := pagination.Offsets(ctx, d.PageSize, func(ctx context.Context, offset int) (int, int, error) {
				return d.fetchPage(ctx, endpoint, seasonID, offset, seen)
			})
			if err != nil {
				return nil, fmt.Errorf("discover season %s at %s: %w", seasonID, endpoint, err)
			}

			d.logger.Debug().
				Str("season_id", seasonID.String()).
				Str("endpoint", endpoint).
				Int("pages", pages).
				Int("new_players", len(seen)-before).
				Msg("Season discovered")
		}
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	nhlDiscoveredPlayers.WithLabelValues(d.name).Set(float64(len(ids)))
	nhlDiscoveryDuration.WithLabelValues(d.name).Observe(time.Since(start).Seconds())

	d.logger.Info().
		Int("players", len(ids)).
		Int("seasons", len(seasons)).
		Dur("duration", time.Since(start)).
		Msg("Player discovery complete")

	return ids, nil
}

// fetchPage requests one summary page and adds its player ids to seen.
func (d *Discoverer) fetchPage(ctx context.Context, endpoint string, seasonID season.ID, offset int, seen map[int64]struct{}) (int, int, error) {
	params := url.Values{}
	params.Set("isAggregate", "false")
	params.Set("isGame", "false")
	params.Set("start", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(d.PageSize))
	params.Set("cayenneExp", "seasonId="+seasonID.String())

	resp, err := d.session.Get(ctx, endpoint, params)
	if err != nil {
		return 0, 0, err
	}
	nhlDiscoveryPagesTotal.WithLabelValues(d.name).Inc()

	var page summaryPage
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return 0, 0, fmt.Errorf("decode summary page (start=%d): %w", offset, err)
	}

	for _, row := range page.Data {
		if row.PlayerID != nil {
			seen[*row.PlayerID] = struct{}{}
		}
	}
	return len(page.Data), page.Total, nil
}
