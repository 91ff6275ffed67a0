// Package config builds the archiver configuration from the environment.
// Configuration is read once at startup into explicit structs and passed
// by value; nothing in the repository reads the environment after that.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults shared by both commands.
const (
	DefaultAPISportsBaseURL = "https://v1.formula-1.api-sports.io"
	DefaultErgastBaseURL    = "https://api.jolpica.ca/ergast/f1"
)

// FetchConfig holds the tuning shared by both commands: retry policy,
// pacing, optional cache and metrics endpoints, logging.
type FetchConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BackoffBase is the base of the exponential backoff schedule.
	BackoffBase time.Duration

	// Sleep is the proactive inter-request delay.
	Sleep time.Duration

	// CacheRedisAddr enables the Redis response cache when non-empty.
	CacheRedisAddr string

	// CacheTTL is how long cached responses stay fresh.
	CacheTTL time.Duration

	// MetricsAddr exposes /metrics for the duration of the run when set.
	MetricsAddr string

	LogLevel  string
	LogPretty bool
}

// PullConfig configures cmd/f1-pull (API-Sports season pull).
type PullConfig struct {
	BaseURL string

	// Headers carry the credential material: either the direct
	// x-apisports-key header or the X-RapidAPI-Key/-Host pair.
	Headers map[string]string

	Season string
	OutDir string

	// Race-results fan-out, off by default. Route and parameter name are
	// configurable because the upstream has renamed both over time.
	EnableRaceResults bool
	RaceResultsRoute  string
	RaceResultsParam  string

	Fetch FetchConfig
}

// BackfillConfig configures cmd/f1-backfill (Ergast historical backfill).
type BackfillConfig struct {
	BaseURL string
	OutRoot string

	// Inclusive year range.
	StartYear int
	EndYear   int

	// YearResults writes one results.json per year (few requests).
	// PerRoundResults additionally writes one file per round (many
	// requests; prone to 429 on long ranges).
	YearResults     bool
	PerRoundResults bool

	Fetch FetchConfig
}

// Env reads environment variables, overridable for tests.
type Env func(key string) (string, bool)

// LoadPull builds the pull configuration from the environment.
// Missing credentials are a configuration error: no network call is made.
func LoadPull(getenv Env) (PullConfig, error) {
	season := envString(getenv, "2024", "F1_SEASON")

	cfg := PullConfig{
		BaseURL:           strings.TrimRight(envString(getenv, DefaultAPISportsBaseURL, "F1_BASE_URL"), "/"),
		Season:            season,
		OutDir:            envString(getenv, "data/f1/"+season, "F1_OUT_DIR"),
		EnableRaceResults: envBool(getenv, false, "F1_ENABLE_RACE_RESULTS"),
		RaceResultsRoute:  envString(getenv, "races/results", "F1_RACE_RESULTS_GET"),
		RaceResultsParam:  envString(getenv, "race", "F1_RACE_RESULTS_PARAM"),
		Fetch:             loadFetch(getenv, 3, time.Second, 300*time.Millisecond),
	}

	headers, err := authHeaders(getenv)
	if err != nil {
		return PullConfig{}, err
	}
	cfg.Headers = headers

	return cfg, nil
}

// LoadBackfill builds the backfill configuration from the environment.
// The ERGAST_* tuning variables take precedence over the shared F1_* ones.
func LoadBackfill(getenv Env) (BackfillConfig, error) {
	cfg := BackfillConfig{
		BaseURL:         strings.TrimRight(envString(getenv, DefaultErgastBaseURL, "ERGAST_BASE_URL"), "/"),
		OutRoot:         envString(getenv, "data/f1", "ERGAST_OUT_ROOT"),
		StartYear:       envInt(getenv, 1950, "ERGAST_START_YEAR"),
		EndYear:         envInt(getenv, 1959, "ERGAST_END_YEAR"),
		YearResults:     envBool(getenv, true, "ERGAST_DOWNLOAD_YEAR_RESULTS"),
		PerRoundResults: envBool(getenv, false, "ERGAST_DOWNLOAD_RESULTS_PER_ROUND"),
		Fetch:           loadFetch(getenv, 8, time.Second, 350*time.Millisecond),
	}

	// Backfill-specific aliases for the shared tuning knobs.
	cfg.Fetch.MaxRetries = envInt(getenv, cfg.Fetch.MaxRetries, "ERGAST_MAX_RETRIES")
	cfg.Fetch.BackoffBase = envSeconds(getenv, cfg.Fetch.BackoffBase, "ERGAST_BACKOFF_BASE_SECONDS")
	cfg.Fetch.Sleep = envSeconds(getenv, cfg.Fetch.Sleep, "ERGAST_SLEEP_SECONDS")

	if cfg.StartYear > cfg.EndYear {
		return BackfillConfig{}, fmt.Errorf("ERGAST_START_YEAR (%d) must be <= ERGAST_END_YEAR (%d)",
			cfg.StartYear, cfg.EndYear)
	}

	return cfg, nil
}

// LoadDotenv loads a .env file when present. Absence is not an error.
func LoadDotenv() {
	_ = godotenv.Load()
}

// loadFetch reads the shared fetch tuning with per-command defaults.
func loadFetch(getenv Env, retries int, backoff, sleep time.Duration) FetchConfig {
	return FetchConfig{
		MaxRetries:     envInt(getenv, retries, "F1_MAX_RETRIES"),
		BackoffBase:    envSeconds(getenv, backoff, "F1_BACKOFF_BASE"),
		Sleep:          envSeconds(getenv, sleep, "F1_SLEEP"),
		CacheRedisAddr: envString(getenv, "", "F1_CACHE_REDIS_ADDR"),
		CacheTTL:       envSeconds(getenv, 6*time.Hour, "F1_CACHE_TTL"),
		MetricsAddr:    envString(getenv, "", "F1_METRICS_ADDR"),
		LogLevel:       envString(getenv, "info", "F1_LOG_LEVEL"),
		LogPretty:      envBool(getenv, true, "F1_LOG_PRETTY"),
	}
}

// authHeaders selects the credential headers for API-Sports access.
// RapidAPI takes precedence when its key is set.
func authHeaders(getenv Env) (map[string]string, error) {
	if rapidKey := envString(getenv, "", "RAPIDAPI_KEY"); rapidKey != "" {
		rapidHost := envString(getenv, "", "RAPIDAPI_HOST")
		if rapidHost == "" {
			return nil, fmt.Errorf("RAPIDAPI_KEY is set but RAPIDAPI_HOST is missing " +
				"(the host is usually like: v1.formula-1.api-sports.io)")
		}
		return map[string]string{
			"X-RapidAPI-Key":  rapidKey,
			"X-RapidAPI-Host": rapidHost,
		}, nil
	}

	if key := envString(getenv, "", "APISPORTS_KEY", "F1_API_KEY"); key != "" {
		return map[string]string{
			"x-apisports-key": key,
		}, nil
	}

	return nil, fmt.Errorf("missing API key: set RAPIDAPI_KEY + RAPIDAPI_HOST (RapidAPI) " +
		"or APISPORTS_KEY / F1_API_KEY (direct)")
}

// envString returns the first set variable among keys, else the default.
func envString(getenv Env, def string, keys ...string) string {
	for _, key := range keys {
		if value, ok := getenv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return def
}

// envBool parses a boolean variable; only "true" (case-insensitive)
// enables, matching the established behavior of these variables.
func envBool(getenv Env, def bool, keys ...string) bool {
	value := envString(getenv, "", keys...)
	if value == "" {
		return def
	}
	return strings.EqualFold(value, "true")
}

// envInt parses an integer variable, keeping the default on parse failure.
func envInt(getenv Env, def int, keys ...string) int {
	value := envString(getenv, "", keys...)
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}

// envSeconds parses a duration given as (possibly fractional) seconds.
func envSeconds(getenv Env, def time.Duration, keys ...string) time.Duration {
	value := envString(getenv, "", keys...)
	if value == "" {
		return def
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds < 0 {
		return def
	}
	return time.Duration(seconds * float64(time.Second))
}
