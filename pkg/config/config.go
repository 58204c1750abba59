// Package config loads and validates the tap configuration.
//
// Settings come from a JSON or YAML file, then TAP_NHL_* environment
// variables (nested keys use "_", e.g. TAP_NHL_SINK_KIND). Id lists may be
// given in the environment as comma-separated values.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Sternrassler/tap-nhl/pkg/client"
	"github.com/Sternrassler/tap-nhl/pkg/season"
	"github.com/Sternrassler/tap-nhl/pkg/sink"
	"github.com/Sternrassler/tap-nhl/pkg/stream"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TAP_NHL"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full tap configuration.
type Config struct {
	APIURL    string `mapstructure:"api_url" validate:"required,url"`
	AuthToken string `mapstructure:"auth_token"`
	UserAgent string `mapstructure:"user_agent" validate:"required"`

	SkaterIDs []int64 `mapstructure:"skater_ids" validate:"dive,gt=0"`
	GoalieIDs []int64 `mapstructure:"goalie_ids" validate:"dive,gt=0"`
	// PlayerIDs is the legacy alias of SkaterIDs.
	PlayerIDs []int64 `mapstructure:"player_ids" validate:"dive,gt=0"`

	DiscoverySeasons     []int `mapstructure:"discovery_seasons" validate:"dive,season"`
	DiscoverySeasonStart int   `mapstructure:"discovery_season_start" validate:"gte=1917"`
	// DiscoverySeasonEnd is exclusive; zero means the current year + 1.
	DiscoverySeasonEnd int `mapstructure:"discovery_season_end" validate:"gte=0"`

	ReplicationKey string `mapstructure:"replication_key"`
	// RateInterval is a duration string such as "350ms"; a bare number is
	// read as nanoseconds and rejected below 1ms. Negative disables pacing.
	RateInterval time.Duration `mapstructure:"rate_interval"`

	MetricsAddr string `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`

	Log  LogConfig  `mapstructure:"log"`
	Sink SinkConfig `mapstructure:"sink"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `mapstructure:"pretty"`
}

// SinkConfig selects where records go.
type SinkConfig struct {
	Kind        string `mapstructure:"kind" validate:"oneof=stdout redis postgres"`
	RedisAddr   string `mapstructure:"redis_addr" validate:"required_if=Kind redis"`
	RedisStream string `mapstructure:"redis_stream"`
	PostgresDSN string `mapstructure:"postgres_dsn" validate:"required_if=Kind postgres"`
}

// Keys lists every accepted configuration key.
func Keys() []string {
	return []string{
		"api_url", "auth_token", "user_agent",
		"skater_ids", "goalie_ids", "player_ids",
		"discovery_seasons", "discovery_season_start", "discovery_season_end",
		"replication_key", "rate_interval", "metrics_addr",
		"log.level", "log.pretty",
		"sink.kind", "sink.redis_addr", "sink.redis_stream", "sink.postgres_dsn",
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", stream.DefaultAPIURL)
	v.SetDefault("auth_token", "")
	v.SetDefault("user_agent", client.DefaultUserAgent)
	v.SetDefault("skater_ids", []int64{})
	v.SetDefault("goalie_ids", []int64{})
	v.SetDefault("player_ids", []int64{})
	v.SetDefault("discovery_seasons", []int{})
	v.SetDefault("discovery_season_start", season.FirstStartYear)
	v.SetDefault("discovery_season_end", 0)
	v.SetDefault("replication_key", "")
	v.SetDefault("rate_interval", 0)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("sink.kind", sink.KindStdout)
	v.SetDefault("sink.redis_addr", "")
	v.SetDefault("sink.redis_stream", sink.DefaultRedisStream)
	v.SetDefault("sink.postgres_dsn", "")
}

// Load reads path (optional) and the environment. The result is not
// validated; call Validate.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("season", func(fl validator.FieldLevel) bool {
		return season.ID(fl.Field().Int()).Valid()
	}); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.RateInterval > 0 && c.RateInterval < time.Millisecond {
		return fmt.Errorf("%w: rate_interval %s is below 1ms; use a duration string like \"350ms\"",
			ErrInvalidConfig, c.RateInterval)
	}
	if c.DiscoverySeasonEnd != 0 && c.DiscoverySeasonEnd <= c.DiscoverySeasonStart {
		return fmt.Errorf("%w: discovery_season_end %d must be after discovery_season_start %d",
			ErrInvalidConfig, c.DiscoverySeasonEnd, c.DiscoverySeasonStart)
	}
	return nil
}

// IDList returns the player ids configured under key, or nil for unknown keys.
func (c *Config) IDList(key string) []int64 {
	switch key {
	case "skater_ids":
		return c.SkaterIDs
	case "goalie_ids":
		return c.GoalieIDs
	case "player_ids":
		return c.PlayerIDs
	default:
		return nil
	}
}

// IDs returns every configured id list keyed by config key.
func (c *Config) IDs() map[string][]int64 {
	ids := make(map[string][]int64, 3)
	for _, key := range []string{"skater_ids", "goalie_ids", "player_ids"} {
		if list := c.IDList(key); len(list) > 0 {
			ids[key] = list
		}
	}
	return ids
}

// SeasonBuilder returns the discovery season builder.
func (c *Config) SeasonBuilder() season.Builder {
	explicit := make([]season.ID, len(c.DiscoverySeasons))
	for i, s := range c.DiscoverySeasons {
		explicit[i] = season.ID(s)
	}
	return season.Builder{
		Explicit:  explicit,
		StartYear: c.DiscoverySeasonStart,
		EndYear:   c.DiscoverySeasonEnd,
	}
}

// StreamSettings maps the config onto stream settings.
func (c *Config) StreamSettings() stream.Settings {
	return stream.Settings{
		APIURL:         c.APIURL,
		UserAgent:      c.UserAgent,
		AuthToken:      c.AuthToken,
		IDs:            c.IDs(),
		Seasons:        c.SeasonBuilder(),
		ReplicationKey: c.ReplicationKey,
		RateInterval:   c.RateInterval,
	}
}

// SinkSettings maps the config onto sink settings.
func (c *Config) SinkSettings(runID string) sink.Config {
	return sink.Config{
		Kind:        c.Sink.Kind,
		RedisAddr:   c.Sink.RedisAddr,
		RedisStream: c.Sink.RedisStream,
		PostgresDSN: c.Sink.PostgresDSN,
		RunID:       runID,
	}
}
