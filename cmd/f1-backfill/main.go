// Command f1-backfill archives historical Formula 1 seasons from the
// Jolpica/Ergast API over an inclusive year range: races calendar and both
// standings tables per year, optionally one results file per year, and
// optionally one results file per round.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pldata/f1-archive/pkg/archive"
	"github.com/pldata/f1-archive/pkg/cache"
	"github.com/pldata/f1-archive/pkg/client"
	"github.com/pldata/f1-archive/pkg/config"
	"github.com/pldata/f1-archive/pkg/logging"
	"github.com/pldata/f1-archive/pkg/payload"
	"github.com/pldata/f1-archive/pkg/ratelimit"
	"github.com/pldata/f1-archive/pkg/runner"
)

const userAgent = "f1-archive-backfill/1.1"

func main() {
	os.Exit(run())
}

func run() int {
	config.LoadDotenv()

	cfg, err := config.LoadBackfill(os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Fetch.LogLevel,
		Pretty: cfg.Fetch.LogPretty,
		Output: os.Stderr,
	})

	if cfg.PerRoundResults && cfg.YearResults {
		logger.Warn().Msg("Both year-level and per-round results are enabled; " +
			"this is redundant and increases API load")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if srv := startMetrics(cfg.Fetch.MetricsAddr, logger); srv != nil {
		defer srv.Shutdown(context.Background())
	}

	fetcher, err := newFetcher(ctx, cfg.BaseURL, cfg.Fetch)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create fetcher")
		return 2
	}

	r := runner.New(fetcher)

	logger.Info().
		Int("start_year", cfg.StartYear).
		Int("end_year", cfg.EndYear).
		Str("out_root", cfg.OutRoot).
		Msg("Starting historical backfill")

	for year := cfg.StartYear; year <= cfg.EndYear; year++ {
		if code := runYear(ctx, r, cfg, year, logger); code != 0 {
			return code
		}
	}

	logger.Info().Msg("Backfill complete")
	return 0
}

// runYear archives one season: the fixed per-year jobs, then the optional
// per-round results fan-out driven by the just-written races calendar.
func runYear(ctx context.Context, r *runner.Runner, cfg config.BackfillConfig, year int, logger zerolog.Logger) int {
	yearDir := filepath.Join(cfg.OutRoot, strconv.Itoa(year))

	if err := r.Run(ctx, runner.ErgastYearJobs(year, yearDir, cfg.YearResults)); err != nil {
		logger.Error().Err(err).Int("year", year).Msg("Season backfill failed")
		return 2
	}

	if !cfg.PerRoundResults {
		return 0
	}

	racesPath := filepath.Join(yearDir, "races.json")
	raw, err := archive.ReadJSON(racesPath)
	if err != nil {
		logger.Error().Err(err).Str("path", racesPath).Msg("Cannot read races calendar for fan-out")
		return 3
	}

	rounds := payload.RoundsFromRaces(raw)
	if len(rounds) == 0 {
		logger.Warn().Int("year", year).Msg("No rounds found, skipping per-round results")
		return 0
	}

	jobs := make([]runner.Job, 0, len(rounds))
	for _, round := range rounds {
		jobs = append(jobs, runner.ErgastRoundJob(year, round, yearDir))
	}

	if _, err := r.FanOut(ctx, jobs); err != nil {
		logger.Error().Err(err).Int("year", year).Msg("Per-round fan-out finished with failures")
		return 2
	}
	return 0
}

// newFetcher wires the client with pacing and the optional Redis cache.
// Ergast needs no credentials, so no auth headers are set.
func newFetcher(ctx context.Context, baseURL string, fetch config.FetchConfig) (*client.Client, error) {
	var cacheManager *cache.Manager
	if fetch.CacheRedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: fetch.CacheRedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			cacheLogger := logging.NewLogger("cache")
			cacheLogger.Warn().Err(err).
				Str("addr", fetch.CacheRedisAddr).
				Msg("Redis unreachable, response cache disabled")
		} else {
			cacheManager = cache.NewManager(redisClient)
		}
	}

	return client.New(client.Config{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Pacer:     ratelimit.NewPacer(fetch.Sleep),
		Cache:     cacheManager,
		CacheTTL:  fetch.CacheTTL,
		Retry: client.RetryConfig{
			MaxAttempts:       fetch.MaxRetries + 1,
			InitialBackoff:    fetch.BackoffBase,
			MaxBackoff:        60 * time.Second,
			BackoffMultiplier: 2.0,
		},
	})
}

// startMetrics exposes /metrics for the duration of the run when an
// address is configured.
func startMetrics(addr string, logger zerolog.Logger) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("Metrics server stopped")
		}
	}()

	logger.Info().Str("addr", addr).Msg("Serving metrics")
	return srv
}
