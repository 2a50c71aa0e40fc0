// Package main is the entry point for the batch translator Lambda function.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pricofy/batch-translator/internal/config"
	"github.com/pricofy/batch-translator/internal/dispatch"
	"github.com/pricofy/batch-translator/internal/domain"
	"github.com/pricofy/batch-translator/internal/handler"
	"github.com/pricofy/batch-translator/internal/logging"
	"github.com/pricofy/batch-translator/internal/router"
	"github.com/pricofy/batch-translator/internal/translate"
)

const metricsNamespace = "batch_translator"

// app holds everything built once per cold start.
type app struct {
	handler  *handler.Handler
	warmer   *warmer
	registry *prometheus.Registry
	logger   zerolog.Logger
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		bootstrap := logging.New("info", logging.FormatJSON, os.Stdout)
		bootstrap.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout).With().
		Str("environment", cfg.Environment).
		Logger()

	client, err := router.NewLambdaClient(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create lambda client")
	}

	a, err := newApp(cfg, client, os.Getenv("AWS_LAMBDA_FUNCTION_NAME"), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to register metrics")
	}

	logger.Info().
		Int("batch_size", cfg.BatchSize).
		Int("concurrency", cfg.Concurrency).
		Bool("glossary", cfg.Glossary.Enabled).
		Msg("batch translator ready")

	lambda.Start(a.handleRequest)
}

// newApp wires the handler and warmer around client. functionName is this
// function's own name, used for warmup self-invocation.
func newApp(cfg config.Config, client router.Invoker, functionName string, logger zerolog.Logger) (*app, error) {
	a := &app{logger: logger}
	opts := []translate.ServiceOption{translate.WithLogger(logger)}
	if cfg.MetricsEnabled {
		a.registry = prometheus.NewRegistry()
		m, err := dispatch.NewMetrics(metricsNamespace, a.registry)
		if err != nil {
			return nil, err
		}
		opts = append(opts, translate.WithMetrics(m))
	}

	svc := translate.NewService(cfg, router.New(client, cfg.Environment, logger), opts...)
	a.handler = handler.New(svc, logger)
	a.warmer = newWarmer(client, functionName, logger)
	return a, nil
}

func (a *app) handleRequest(ctx context.Context, event json.RawMessage) (interface{}, error) {
	// Warmup detection (MUST be first - before any other processing)
	if warmup, ok := IsWarmupEvent(event); ok {
		return a.warmer.Handle(ctx, warmup)
	}

	// Parse the request and delegate to the handler
	var req domain.Request
	if err := json.Unmarshal(event, &req); err != nil {
		return nil, err
	}

	resp, err := a.handler.Handle(ctx, req)
	a.logMetrics()
	return resp, err
}

// logMetrics writes the batch counters at debug level. Lambda has no scrape
// endpoint, so the registry is flushed into the logs instead.
func (a *app) logMetrics() {
	if a.registry == nil || a.logger.GetLevel() > zerolog.DebugLevel {
		return
	}

	families, err := a.registry.Gather()
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to gather metrics")
		return
	}

	event := a.logger.Debug()
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += "." + lp.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				event = event.Float64(name, m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				event = event.Float64(name, m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				event = event.Uint64(name+".count", m.GetHistogram().GetSampleCount())
			}
		}
	}
	event.Msg("batch metrics")
}
