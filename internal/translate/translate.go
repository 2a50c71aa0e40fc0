// Package translate is the entry point for translating one or many texts:
// it resolves per-call options against the process configuration, splits the
// texts into batches and dispatches them to a translation backend.
package translate

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pricofy/batch-translator/internal/chunker"
	"github.com/pricofy/batch-translator/internal/config"
	"github.com/pricofy/batch-translator/internal/dispatch"
	"github.com/pricofy/batch-translator/internal/domain"
)

// Backend translates a single batch. The router package provides the Lambda backend.
type Backend interface {
	// Validate reports a ConfigError for params that can never succeed.
	// It is called before any batch is sent.
	Validate(params domain.Params) error
	TranslateBatch(ctx context.Context, texts []string, params domain.Params) ([]string, error)
}

// Options are per-call settings. Zero values fall back to the configuration.
type Options struct {
	Source      string
	Target      domain.Target
	HTML        *bool
	Model       string
	BatchSize   int
	Concurrency int
	APIKey      string
	// Params are passed through to the backend untouched.
	Params map[string]any
}

// To returns Options translating into target.
func To(target string) Options {
	return Options{Target: domain.Target{Lang: target}}
}

// OptionsFromRequest extracts the translation options of a request.
func OptionsFromRequest(req domain.Request) Options {
	return Options{
		Source:      req.Source,
		Target:      req.Target,
		HTML:        req.HTML,
		Model:       req.Model,
		BatchSize:   req.BatchSize,
		Concurrency: req.Concurrency,
		APIKey:      req.APIKey,
		Params:      req.Params,
	}
}

// DispatcherFactory returns a Dispatcher for the given concurrency.
type DispatcherFactory func(concurrency int) dispatch.Dispatcher

// Service translates texts through a Backend.
type Service struct {
	cfg           config.Config
	backend       Backend
	logger        zerolog.Logger
	metrics       *dispatch.Metrics
	newDispatcher DispatcherFactory
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics records batch metrics for every dispatch.
func WithMetrics(m *dispatch.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDispatcher replaces the default dispatch.Pool.
func WithDispatcher(f DispatcherFactory) ServiceOption {
	return func(s *Service) {
		s.newDispatcher = f
	}
}

// NewService creates a Service. cfg must already be validated.
func NewService(cfg config.Config, backend Backend, opts ...ServiceOption) *Service {
	s := &Service{
		cfg:     cfg,
		backend: backend,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newDispatcher == nil {
		s.newDispatcher = func(concurrency int) dispatch.Dispatcher {
			return dispatch.NewPool(concurrency,
				dispatch.WithLogger(s.logger),
				dispatch.WithMetrics(s.metrics))
		}
	}
	return s
}

// plan is a fully resolved call.
type plan struct {
	params      domain.Params
	batchSize   int
	concurrency int
}

// resolve merges opts over the configuration and validates the result.
func (s *Service) resolve(opts Options) (plan, error) {
	if opts.Target.Multiple {
		return plan{}, opts.Target.Validate()
	}

	p := plan{
		params: domain.Params{
			Source:   firstNonEmpty(opts.Source, s.cfg.Source),
			Target:   firstNonEmpty(opts.Target.Lang, s.cfg.Target),
			HTML:     s.cfg.HTML,
			Model:    firstNonEmpty(opts.Model, s.cfg.Model),
			Glossary: s.cfg.Glossary.Name(),
			APIKey:   firstNonEmpty(opts.APIKey, s.cfg.APIKey),
			Extra:    opts.Params,
		},
		batchSize:   s.cfg.BatchSize,
		concurrency: s.cfg.Concurrency,
	}
	if opts.HTML != nil {
		p.params.HTML = *opts.HTML
	}

	if p.params.Target == "" {
		return plan{}, domain.NewConfigError("target", "target language is required")
	}

	switch {
	case opts.BatchSize < 0:
		return plan{}, domain.NewConfigError(config.KeyBatchSize, "must be at least 1, got %d", opts.BatchSize)
	case opts.BatchSize > 0:
		p.batchSize = opts.BatchSize
	}
	switch {
	case opts.Concurrency < 0:
		return plan{}, domain.NewConfigError(config.KeyConcurrency, "must be at least 1, got %d", opts.Concurrency)
	case opts.Concurrency > 0:
		p.concurrency = opts.Concurrency
	}

	if err := s.backend.Validate(p.params); err != nil {
		return plan{}, err
	}
	return p, nil
}

// Translate translates texts and returns one translation per text, in order.
// Batches rejected by the translation service come back as empty strings and
// are listed in Report.Degraded. Configuration errors are returned before any
// request is sent; transport errors abort the whole call.
func (s *Service) Translate(ctx context.Context, texts []string, opts Options) (*dispatch.Report, error) {
	p, err := s.resolve(opts)
	if err != nil {
		return nil, err
	}

	batches := chunker.Partition(texts, p.batchSize)
	log := s.logger.With().
		Str("source", p.params.Source).
		Str("target", p.params.Target).
		Int("texts", len(texts)).
		Int("batches", len(batches)).
		Int("concurrency", p.concurrency).
		Logger()

	start := time.Now()
	report, err := s.newDispatcher(p.concurrency).Dispatch(ctx, batches, func(ctx context.Context, b chunker.Batch) ([]string, error) {
		return s.backend.TranslateBatch(ctx, b.Texts, p.params)
	})
	if err != nil {
		log.Error().Err(err).Msg("translation failed")
		return nil, err
	}

	event := log.Info()
	if len(report.Degraded) > 0 {
		event = log.Warn().Ints("degraded", report.Degraded)
	}
	event.Dur("elapsed", time.Since(start)).Msg("translation finished")

	return report, nil
}

// TranslateText translates a single text.
func (s *Service) TranslateText(ctx context.Context, text string, opts Options) (string, error) {
	report, err := s.Translate(ctx, []string{text}, opts)
	if err != nil {
		return "", err
	}
	return report.Translations[0], nil
}

// TranslateTexts translates texts and returns the translations in the same
// shape: a single text in, a single text out.
func (s *Service) TranslateTexts(ctx context.Context, texts domain.Texts, opts Options) (domain.Texts, *dispatch.Report, error) {
	report, err := s.Translate(ctx, texts.Values, opts)
	if err != nil {
		return domain.Texts{}, nil, err
	}
	return texts.Reshape(report.Translations), report, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
