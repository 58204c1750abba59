// Command tap-nhl extracts NHL player landing records as Singer messages.
//
// Usage:
//
//	tap-nhl --config config.json                        sync every stream to stdout
//	tap-nhl sync --config config.json --stream goalies  sync one stream
//	tap-nhl --discover                                  print the catalog
//	tap-nhl --about                                     print tap info
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/tap-nhl/pkg/config"
	"github.com/Sternrassler/tap-nhl/pkg/logging"
	"github.com/Sternrassler/tap-nhl/pkg/metrics"
	"github.com/Sternrassler/tap-nhl/pkg/sink"
	"github.com/Sternrassler/tap-nhl/pkg/tap"
)

const version = "0.1.0"

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("tap-nhl failed")
		os.Exit(1)
	}
}

type options struct {
	configPath string
	discover   bool
	about      bool
	streams    []string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "tap-nhl",
		Short:         "Singer tap for NHL player statistics",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case opts.about:
				return writeJSON(cmd.OutOrStdout(), tap.AboutInfo(version, config.Keys()))
			case opts.discover:
				return writeJSON(cmd.OutOrStdout(), tap.BuildCatalog())
			}
			return runSync(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (JSON or YAML)")
	cmd.Flags().BoolVar(&opts.discover, "discover", false, "Print the catalog and exit")
	cmd.Flags().BoolVar(&opts.about, "about", false, "Print tap info and exit")
	cmd.PersistentFlags().StringSliceVar(&opts.streams, "stream", nil, "Streams to sync (default all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Sync the selected streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "discover",
		Short: "Print the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), tap.BuildCatalog())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "about",
		Short: "Print tap info",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), tap.AboutInfo(version, config.Keys()))
		},
	})

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runSync(ctx context.Context, out io.Writer, opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
		RunID:  runID,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		server := startMetricsServer(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	sinkCfg := cfg.SinkSettings(runID)
	sinkCfg.Output = out
	target, err := sink.Open(ctx, sinkCfg)
	if err != nil {
		return err
	}

	streams, err := tap.Streams(opts.streams, cfg.StreamSettings())
	if err != nil {
		target.Close()
		return err
	}
	runner := tap.NewRunner(streams, target)
	defer runner.Close()

	logger.Info().
		Str("sink", sinkCfg.Kind).
		Int("streams", len(streams)).
		Msg("Sync started")

	start := time.Now()
	results, syncErr := runner.Sync(ctx)
	closeErr := target.Close()

	records := 0
	for _, r := range results {
		records += r.Records
	}
	event := logger.Info()
	if syncErr != nil {
		event = logger.Error().Err(syncErr)
	}
	event.Int("records", records).Dur("duration", time.Since(start)).Msg("Sync finished")

	if syncErr != nil {
		return syncErr
	}
	if closeErr != nil {
		return fmt.Errorf("close sink: %w", closeErr)
	}
	return nil
}

func newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", healthHandler)
	r.Handle("/metrics", metrics.Handler())
	return r
}

func startMetricsServer(addr string, logger zerolog.Logger) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           newRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return server
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}
