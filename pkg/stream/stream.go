package stream

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/tap-nhl/pkg/cache"
	"github.com/Sternrassler/tap-nhl/pkg/client"
	"github.com/Sternrassler/tap-nhl/pkg/discovery"
	"github.com/Sternrassler/tap-nhl/pkg/locale"
	"github.com/Sternrassler/tap-nhl/pkg/pagination"
	"github.com/Sternrassler/tap-nhl/pkg/ratelimit"
	"github.com/Sternrassler/tap-nhl/pkg/record"
	"github.com/Sternrassler/tap-nhl/pkg/season"
)

// Prometheus metrics for streams.
var (
	nhlRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nhl_records_total",
		Help: "Total records extracted by stream",
	}, []string{"stream"})

	nhlPartitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nhl_partitions_planned_total",
		Help: "Total partitions planned by stream and id source",
	}, []string{"stream", "source"})

	nhlSkippedRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nhl_skipped_records_total",
		Help: "Total extracted values dropped because they were not JSON objects",
	}, []string{"stream"})
)

const (
	// DefaultAPIURL is the web API serving player landing documents.
	DefaultAPIURL = "https://api-web.nhle.com"

	// PageLimit is the limit parameter sent with detail requests.
	PageLimit = 1000

	// PrimaryKey is the key property of landing records.
	PrimaryKey = "playerId"
)

// Partition is one unit of sync work: a single player.
type Partition struct {
	PlayerID int64 `json:"player_id"`
}

// Getter performs a GET through a retrying session.
type Getter interface {
	Get(ctx context.Context, rawURL string, params url.Values) (*client.Response, error)
}

// Settings configures a stream.
type Settings struct {
	// APIURL is the web API root (default DefaultAPIURL).
	APIURL string

	// UserAgent and AuthToken are sent with every request.
	UserAgent string
	AuthToken string

	// IDs holds explicit player ids by config key.
	IDs map[string][]int64

	// Seasons builds the discovery season list.
	Seasons season.Builder

	// ReplicationKey, when set, is sent as sortBy.
	ReplicationKey string

	// Retry overrides the retry policy of both sessions.
	Retry *client.RetryConfig

	// RateInterval spaces detail requests (default ratelimit.DefaultInterval,
	// negative disables pacing).
	RateInterval time.Duration
}

// Stream extracts landing records for one category.
type Stream struct {
	category Category
	settings Settings
	detail   Getter
	logger   zerolog.Logger

	seasons          *cache.Lazy[[]season.ID]
	discoverySession *cache.Lazy[*client.Session]
	playerIDs        *cache.Lazy[[]int64]
}

// New creates a stream. The detail session and its pacer are created here;
// the discovery session only when discovery runs.
func New(category Category, settings Settings) (*Stream, error) {
	if settings.APIURL == "" {
		settings.APIURL = DefaultAPIURL
	}
	if settings.UserAgent == "" {
		settings.UserAgent = client.DefaultUserAgent
	}

	logger := log.With().Str("component", "stream").Str("stream", category.Name).Logger()

	interval := settings.RateInterval
	if interval == 0 {
		interval = ratelimit.DefaultInterval
	}

	detailCfg := client.DefaultConfig(settings.UserAgent)
	detailCfg.AuthToken = settings.AuthToken
	detailCfg.Pacer = ratelimit.NewInterval(interval, logger)
	if settings.Retry != nil {
		detailCfg.Retry = *settings.Retry
	}
	detail, err := client.New(detailCfg)
	if err != nil {
		return nil, fmt.Errorf("create %s detail session: %w", category.Name, err)
	}

	return newStream(category, settings, detail, logger), nil
}

// newStream wires a stream around an existing detail getter.
func newStream(category Category, settings Settings, detail Getter, logger zerolog.Logger) *Stream {
	s := &Stream{
		category: category,
		settings: settings,
		detail:   detail,
		logger:   logger,
	}

	s.seasons = cache.NewLazy(category.Name+".seasons", func(ctx context.Context) ([]season.ID, error) {
		return settings.Seasons.Seasons(), nil
	})

	s.discoverySession = cache.NewLazy(category.Name+".discovery_session", func(ctx context.Context) (*client.Session, error) {
		cfg := client.DiscoveryConfig(settings.UserAgent)
		if settings.Retry != nil {
			cfg.Retry = *settings.Retry
		}
		return client.New(cfg)
	})

	s.playerIDs = cache.NewLazy(category.Name+".player_ids", func(ctx context.Context) ([]int64, error) {
		// Checked before the session or season list is built.
		if len(category.DiscoveryEndpoints) == 0 {
			return nil, fmt.Errorf("stream %s: %w", category.Name, discovery.ErrNoEndpoints)
		}
		session, err := s.discoverySession.Get(ctx)
		if err != nil {
			return nil, err
		}
		seasons, err := s.seasons.Get(ctx)
		if err != nil {
			return nil, err
		}
		return discovery.New(session, category.Name).Discover(ctx, category.DiscoveryEndpoints, seasons)
	})

	return s
}

// Name returns the stream name.
func (s *Stream) Name() string {
	return s.category.Name
}

// Category returns the stream category.
func (s *Stream) Category() Category {
	return s.category
}

// Seasons returns the memoized discovery season list.
func (s *Stream) Seasons(ctx context.Context) ([]season.ID, error) {
	return s.seasons.Get(ctx)
}

// ConfiguredIDs returns the first non-empty id list among the category's
// config keys, in input order.
func (s *Stream) ConfiguredIDs() []int64 {
	for _, key := range s.category.ConfigKeys {
		if ids := s.settings.IDs[key]; len(ids) > 0 {
			return ids
		}
	}
	return nil
}

// PlayerIDs returns the memoized discovered player ids.
func (s *Stream) PlayerIDs(ctx context.Context) ([]int64, error) {
	return s.playerIDs.Get(ctx)
}

// Partitions plans one partition per player: configured ids when present,
// discovered ids otherwise. It returns nil when there is nothing to sync.
func (s *Stream) Partitions(ctx context.Context) ([]Partition, error) {
	ids := s.ConfiguredIDs()
	source := "config"
	if len(ids) == 0 {
		discovered, err := s.PlayerIDs(ctx)
		if err != nil {
			return nil, err
		}
		ids = discovered
		source = "discovery"
	}
	if len(ids) == 0 {
		s.logger.Info().Msg("No player ids configured or discovered")
		return nil, nil
	}

	partitions := make([]Partition, len(ids))
	for i, id := range ids {
		partitions[i] = Partition{PlayerID: id}
	}
	nhlPartitionsTotal.WithLabelValues(s.category.Name, source).Add(float64(len(partitions)))

	s.logger.Info().
		Str("source", source).
		Int("partitions", len(partitions)).
		Msg("Partitions planned")

	return partitions, nil
}

// Records fetches the landing document(s) of one partition, normalizes
// locale fields and passes each record to emit. It returns the number of
// records emitted. A partition without a player id yields nothing.
func (s *Stream) Records(ctx context.Context, partition Partition, emit func(*record.Object) error) (int, error) {
	logger := s.logger.With().Int64("player_id", partition.PlayerID).Logger()
	if partition.PlayerID <= 0 {
		logger.Debug().Msg("No player id in partition, skipping")
		return 0, nil
	}

	target := s.landingURL(partition.PlayerID)
	fetcher := pagination.PageFetcherFunc(func(ctx context.Context, cursor string) ([]byte, error) {
		resp, err := s.detail.Get(ctx, target, s.params(cursor))
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	})

	count := 0
	paginator := pagination.NewCursorPaginator(fetcher, pagination.Config{RecordsPath: "$"})
	_, err := paginator.Each(ctx, func(rec any) error {
		obj, ok := rec.(*record.Object)
		if !ok {
			nhlSkippedRecordsTotal.WithLabelValues(s.category.Name).Inc()
			logger.Warn().Str("type", fmt.Sprintf("%T", rec)).Msg("Skipping non-object record")
			return nil
		}
		if err := emit(locale.NormalizeRecord(obj)); err != nil {
			return err
		}
		count++
		nhlRecordsTotal.WithLabelValues(s.category.Name).Inc()
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("%s player %d: %w", s.category.Name, partition.PlayerID, err)
	}

	logger.Debug().Int("records", count).Msg("Partition synced")
	return count, nil
}

// Close releases pooled connections of both sessions.
func (s *Stream) Close() error {
	if closer, ok := s.detail.(interface{ Close() error }); ok {
		closer.Close()
	}
	if s.discoverySession.Loaded() {
		if session, err := s.discoverySession.Get(context.Background()); err == nil {
			session.Close()
		}
	}
	return nil
}

func (s *Stream) landingURL(playerID int64) string {
	return strings.TrimRight(s.settings.APIURL, "/") + "/v1/player/" + strconv.FormatInt(playerID, 10) + "/landing"
}

func (s *Stream) params(cursor string) url.Values {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(PageLimit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}
	if s.settings.ReplicationKey != "" {
		params.Set("sortBy", s.settings.ReplicationKey)
	}
	return params
}
