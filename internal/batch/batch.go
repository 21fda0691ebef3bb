// Package batch runs per-record work with bounded concurrency.
package batch

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Runner applies a function to every record index of a container.
type Runner struct {
	workers int // 0 = auto, <0 = serial, >0 = fixed count
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the number of workers.
// Values < 0 force serial processing. Zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithLogger sets the logger for batch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Workers returns the number of goroutines used for n items.
func (r *Runner) Workers(n int) int {
	w := r.workers
	switch {
	case w < 0:
		w = 1
	case w == 0:
		w = runtime.GOMAXPROCS(0)
	}
	return max(1, min(w, n))
}

// Run calls fn for every i in [0, n).
//
// The first error cancels the context passed to the remaining calls, stops
// scheduling new ones and is returned once all running calls finish. fn
// must be safe for concurrent use when more than one worker is configured.
func (r *Runner) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return ctx.Err()
	}
	workers := r.Workers(n)
	r.log().Debug("batch run", "items", n, "workers", workers)

	if workers == 1 {
		for i := range n {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range n {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			return fn(egCtx, i)
		})
	}
	return eg.Wait()
}
