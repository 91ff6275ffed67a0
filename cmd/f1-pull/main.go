// Command f1-pull archives one season of Formula 1 data from API-Sports:
// the fixed resource list (seasons, races, standings, circuits, drivers,
// teams), then optionally one results file per race id found in the
// freshly written races listing.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
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

const userAgent = "f1-archive/1.1"

func main() {
	os.Exit(run())
}

func run() int {
	config.LoadDotenv()

	cfg, err := config.LoadPull(os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Fetch.LogLevel,
		Pretty: cfg.Fetch.LogPretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if srv := startMetrics(cfg.Fetch.MetricsAddr, logger); srv != nil {
		defer srv.Shutdown(context.Background())
	}

	fetcher, err := newFetcher(ctx, cfg.BaseURL, cfg.Headers, cfg.Fetch)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create fetcher")
		return 2
	}

	r := runner.New(fetcher)

	logger.Info().
		Str("season", cfg.Season).
		Str("out_dir", cfg.OutDir).
		Msg("Starting season pull")

	if err := r.Run(ctx, runner.APISportsJobs(cfg.Season, cfg.OutDir)); err != nil {
		logger.Error().Err(err).Msg("Season pull failed")
		return 2
	}

	if cfg.EnableRaceResults {
		if code := runRaceResults(ctx, r, cfg, logger); code != 0 {
			return code
		}
	}

	logger.Info().Str("season", cfg.Season).Msg("Season pull complete")
	return 0
}

// runRaceResults executes the per-race fan-out phase. Race ids come from
// the races.json written moments ago, so a rerun with fan-out enabled can
// also pick them up without refetching the listing.
func runRaceResults(ctx context.Context, r *runner.Runner, cfg config.PullConfig, logger zerolog.Logger) int {
	racesPath := filepath.Join(cfg.OutDir, "races.json")

	raw, err := archive.ReadJSON(racesPath)
	if err != nil {
		logger.Error().Err(err).Str("path", racesPath).Msg("Cannot read races listing for fan-out")
		return 3
	}

	ids := payload.ExtractRaceIDs(raw)
	if len(ids) == 0 {
		logger.Warn().Str("path", racesPath).Msg("No race ids found, skipping race results")
		return 0
	}

	jobs := make([]runner.Job, 0, len(ids))
	for _, id := range ids {
		jobs = append(jobs, runner.RaceResultJob(cfg.RaceResultsRoute, cfg.RaceResultsParam, id, cfg.OutDir))
	}

	if _, err := r.FanOut(ctx, jobs); err != nil {
		logger.Error().Err(err).Msg("Race results fan-out finished with failures")
		return 2
	}
	return 0
}

// newFetcher wires the client with pacing and the optional Redis cache.
// An unreachable Redis disables caching instead of failing the run.
func newFetcher(ctx context.Context, baseURL string, headers map[string]string, fetch config.FetchConfig) (*client.Client, error) {
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
		Headers:   headers,
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
