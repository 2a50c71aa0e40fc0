// Package dispatch runs a single-batch translation function over many
// batches with bounded concurrency and assembles the ordered result.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pricofy/batch-translator/internal/chunker"
)

// DefaultConcurrency is the default number of batches in flight.
const DefaultConcurrency = 4

// BatchFunc translates one batch and returns one output per input text.
type BatchFunc func(ctx context.Context, batch chunker.Batch) ([]string, error)

// Dispatcher runs fn over every batch and returns their results in batch order.
type Dispatcher interface {
	Dispatch(ctx context.Context, batches []chunker.Batch, fn BatchFunc) (*Report, error)
}

// Report is the outcome of one dispatch.
type Report struct {
	// Translations holds one output per input text, in input order.
	Translations []string
	// Batches is the number of batches dispatched.
	Batches int
	// Degraded lists the indexes of batches replaced by placeholders.
	Degraded []int
}

// Pool is a Dispatcher with a fixed number of concurrent workers.
type Pool struct {
	concurrency int
	logger      zerolog.Logger
	metrics     *Metrics
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for per-batch events.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithMetrics records batch outcomes into m.
func WithMetrics(m *Metrics) Option {
	return func(p *Pool) {
		p.metrics = m
	}
}

// NewPool creates a Pool running at most concurrency batches at once.
// Values below 1 fall back to DefaultConcurrency.
func NewPool(concurrency int, opts ...Option) *Pool {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	p := &Pool{
		concurrency: concurrency,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Concurrency returns the worker count.
func (p *Pool) Concurrency() int {
	return p.concurrency
}

// Dispatch invokes fn exactly once per batch with at most Concurrency
// invocations in flight, and returns only after every invocation has returned.
// Service errors degrade their batch to empty placeholders; any other error
// cancels the remaining batches and is returned.
func (p *Pool) Dispatch(ctx context.Context, batches []chunker.Batch, fn BatchFunc) (*Report, error) {
	results := make([][]string, len(batches))
	degraded := make([]bool, len(batches))
	total := 0
	for _, b := range batches {
		total += b.Len()
	}

	isolated := Isolate(fn)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, batch := range batches {
		g.Go(func() error {
			// Batches queued behind a fatal error are not sent.
			if err := gCtx.Err(); err != nil {
				return err
			}

			out, err := p.run(gCtx, batch, isolated)
			if err != nil {
				return fmt.Errorf("batch %d failed: %w", batch.Index, err)
			}
			results[i] = out.Texts
			degraded[i] = out.Degraded
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Translations: Assemble(results, total),
		Batches:      len(batches),
	}
	for i, d := range degraded {
		if d {
			report.Degraded = append(report.Degraded, batches[i].Index)
		}
	}
	return report, nil
}

// run executes one isolated batch and records its outcome.
func (p *Pool) run(ctx context.Context, batch chunker.Batch, fn IsolatedFunc) (Outcome, error) {
	log := p.logger.With().
		Int("batch", batch.Index).
		Int("size", batch.Len()).
		Int("tokens", chunker.EstimateBatchTokens(batch)).
		Logger()

	p.metrics.begin()
	start := time.Now()
	out, err := fn(ctx, batch)
	elapsed := time.Since(start)
	p.metrics.end(elapsed)

	switch {
	case err != nil:
		p.metrics.observe(outcomeFailed)
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("batch failed")
	case out.Degraded:
		p.metrics.observe(outcomeDegraded)
		log.Warn().Err(out.Cause).Dur("elapsed", elapsed).Msg("batch degraded to placeholders")
	default:
		p.metrics.observe(outcomeOK)
		log.Debug().Dur("elapsed", elapsed).Msg("batch translated")
	}

	return out, err
}
