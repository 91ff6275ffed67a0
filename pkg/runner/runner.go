// Package runner drives the fetch-classify-write cycle over a declarative
// job list, plus the per-identifier fan-out phase.
package runner

import (
	"context"
	"fmt"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/pldata/f1-archive/pkg/archive"
	"github.com/pldata/f1-archive/pkg/logging"
	"github.com/pldata/f1-archive/pkg/payload"
)

// Prometheus metrics for job execution.
var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "f1_jobs_total",
		Help: "Total jobs executed by result",
	}, []string{"result"}) // "ok", "api_error", "failed"

	payloadsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "f1_payloads_written_total",
		Help: "Total payload files written to the archive",
	})
)

// Job is one configured fetch-and-write unit. Jobs are immutable and
// executed strictly in order.
type Job struct {
	// Name identifies the job in logs (e.g. "standings_drivers").
	Name string

	// Route is the upstream route, relative to the client's base URL.
	Route string

	// Params are the query parameters for the request.
	Params url.Values

	// OutPath is where the payload is written.
	OutPath string
}

// Fetcher fetches one route and returns the raw JSON body.
type Fetcher interface {
	GetJSON(ctx context.Context, route string, params url.Values) ([]byte, error)
}

// Runner executes job lists against one upstream.
type Runner struct {
	fetcher Fetcher
	logger  zerolog.Logger
}

// New creates a runner using the given fetcher.
func New(fetcher Fetcher) *Runner {
	return &Runner{
		fetcher: fetcher,
		logger:  logging.NewLogger("runner"),
	}
}

// Run executes jobs in order. A payload carrying an API-level error is
// still written to disk for inspection and only logged as a warning, so a
// full run leaves a complete diagnostic trail. A fetch or write failure
// aborts the run.
func (r *Runner) Run(ctx context.Context, jobs []Job) error {
	for _, job := range jobs {
		if err := r.runOne(ctx, job); err != nil {
			jobsTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("job %s: %w", job.Name, err)
		}
	}
	return nil
}

// Outcome records the result of one fan-out job.
type Outcome struct {
	Job Job
	Err error
}

// FanOut executes per-identifier jobs with partial-failure isolation: a
// failed identifier is recorded and the loop continues, so one bad id
// cannot lose progress on the others. The returned error summarizes any
// failures; the caller decides whether that is fatal.
func (r *Runner) FanOut(ctx context.Context, jobs []Job) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(jobs))
	failed := 0

	for _, job := range jobs {
		err := r.runOne(ctx, job)
		outcomes = append(outcomes, Outcome{Job: job, Err: err})

		if err != nil {
			failed++
			jobsTotal.WithLabelValues("failed").Inc()
			r.logger.Error().
				Str("job", job.Name).
				Err(err).
				Msg("Fan-out job failed, continuing with remaining identifiers")

			// A dead context will fail every remaining job the same way.
			if ctx.Err() != nil {
				break
			}
		}
	}

	r.logger.Info().
		Int("total", len(outcomes)).
		Int("failed", failed).
		Msg("Fan-out phase complete")

	if failed > 0 {
		return outcomes, fmt.Errorf("%d of %d fan-out jobs failed", failed, len(outcomes))
	}
	return outcomes, nil
}

// runOne performs a single fetch-classify-write cycle.
func (r *Runner) runOne(ctx context.Context, job Job) error {
	raw, err := r.fetcher.GetJSON(ctx, job.Route, job.Params)
	if err != nil {
		return err
	}

	if msg, ok := payload.FirstErrorMessage(raw); ok {
		// Domain error inside a 2xx body. Written anyway so the failure
		// is visible in the archive.
		jobsTotal.WithLabelValues("api_error").Inc()
		r.logger.Warn().
			Str("job", job.Name).
			Str("api_error", msg).
			Msg("Upstream reported an API-level error")
	} else {
		jobsTotal.WithLabelValues("ok").Inc()
	}

	if err := archive.WriteJSON(job.OutPath, raw); err != nil {
		return err
	}
	payloadsWritten.Inc()

	r.logger.Info().
		Str("job", job.Name).
		Str("path", job.OutPath).
		Msg("Wrote payload")
	return nil
}
