// Package router routes single-batch translation requests to the translator Lambdas.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/pricofy/batch-translator/internal/domain"
)

// Translator Lambda names. A configured deployment environment is appended
// as a suffix; without one the plain names are invoked.
const (
	fnRomanceEN = "pricofy-translator-romance-en"
	fnENRomance = "pricofy-translator-en-romance"
	fnDeEN      = "pricofy-translator-de-en"
	fnENDe      = "pricofy-translator-en-de"
)

// serviceErrorCodes are the Lambda API error codes meaning the request itself
// was rejected. They degrade the batch; every other SDK error propagates.
var serviceErrorCodes = map[string]bool{
	"InvalidParameterValueException": true,
	"InvalidRequestContentException": true,
	"RequestTooLargeException":       true,
}

// functionErrorHandled is the FunctionError value for errors returned by the
// function itself rather than raised by the Lambda runtime.
const functionErrorHandled = "Handled"

// Invoker is the subset of the Lambda client used by the Router.
type Invoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Router routes translation requests to the appropriate Lambda function.
type Router struct {
	client      Invoker
	environment string
	logger      zerolog.Logger
}

// step is one translator Lambda call of a route.
type step struct {
	function   string
	sourceLang string
	targetLang string // only set for en-romance
}

// NewLambdaClient creates a Lambda client from the default AWS configuration.
func NewLambdaClient(ctx context.Context) (*lambda.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return lambda.NewFromConfig(cfg), nil
}

// New creates a Router backed by client.
func New(client Invoker, environment string, logger zerolog.Logger) *Router {
	return &Router{
		client:      client,
		environment: environment,
		logger:      logger,
	}
}

// FunctionName returns the deployed name of a translator Lambda.
func (r *Router) FunctionName(base string) string {
	if r.environment == "" {
		return base
	}
	return base + "-" + r.environment
}

// IsValidPair checks if a language pair can be translated.
func (r *Router) IsValidPair(source, target string) bool {
	return r.route(source, target) != nil
}

// Validate reports a ConfigError if params cannot be routed.
// It runs before any batch is sent.
func (r *Router) Validate(params domain.Params) error {
	if params.Source == "" {
		return domain.NewConfigError("source", "source language is required: the translators do not detect languages")
	}
	if params.Target == "" {
		return domain.NewConfigError("target", "target language is required")
	}
	source, target := NormalizeLang(params.Source), NormalizeLang(params.Target)
	if source == target {
		return domain.NewConfigError("target", "source and target must be different, both are %q", source)
	}
	if r.route(source, target) == nil {
		return domain.NewConfigError("target", "no translator for %s→%s", source, target)
	}
	return nil
}

// route determines which Lambda(s) to call for a translation, in order.
// Pairs that don't involve English pivot through English.
func (r *Router) route(source, target string) []step {
	source, target = NormalizeLang(source), NormalizeLang(target)
	src, dst := family(source), family(target)
	if src == "" || dst == "" || source == target {
		return nil
	}

	toEnglish := func() step {
		if src == familyGerman {
			return step{function: fnDeEN, sourceLang: source}
		}
		return step{function: fnRomanceEN, sourceLang: source}
	}
	fromEnglish := func() step {
		if dst == familyGerman {
			return step{function: fnENDe, sourceLang: familyEnglish}
		}
		return step{function: fnENRomance, sourceLang: familyEnglish, targetLang: target}
	}

	switch {
	case dst == familyEnglish:
		return []step{toEnglish()}
	case src == familyEnglish:
		return []step{fromEnglish()}
	default:
		return []step{toEnglish(), fromEnglish()}
	}
}

// TranslateBatch translates one batch of texts, chaining Lambda calls when
// the pair pivots through English.
func (r *Router) TranslateBatch(ctx context.Context, texts []string, params domain.Params) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}

	route := r.route(params.Source, params.Target)
	if route == nil {
		return nil, domain.NewConfigError("target", "unsupported language pair: %s-%s", params.Source, params.Target)
	}

	current := texts
	for i, s := range route {
		last := i == len(route)-1
		result, err := r.invoke(ctx, s, current, params, last)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s) failed: %w", i+1, s.function, err)
		}
		current = result
	}

	return current, nil
}

// invoke calls a translator Lambda with one batch.
func (r *Router) invoke(ctx context.Context, s step, texts []string, params domain.Params, last bool) ([]string, error) {
	functionName := r.FunctionName(s.function)

	req := domain.TranslatorRequest{
		Chunks:     [][]string{texts},
		SourceLang: s.sourceLang,
		TargetLang: s.targetLang,
		Format:     params.Format(),
		Model:      params.Model,
		APIKey:     params.APIKey,
		Params:     params.Extra,
	}
	// The glossary maps into the requested target language only.
	if last {
		req.Glossary = params.Glossary
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	r.logger.Debug().
		Str("function", functionName).
		Int("texts", len(texts)).
		Msg("invoking translator")

	result, err := r.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(functionName),
		Payload:      payload,
	})
	if err != nil {
		return nil, classifyInvokeError(functionName, err)
	}

	// Handled errors come from the translator's own code. Unhandled ones are
	// crashes, timeouts and out-of-memory kills of the runtime.
	if result.FunctionError != nil {
		detail := fmt.Sprintf("%s: %s", *result.FunctionError, truncate(string(result.Payload), 256))
		if *result.FunctionError == functionErrorHandled {
			return nil, &domain.ServiceError{
				Code:    "FUNCTION_ERROR",
				Message: functionName + ": " + detail,
			}
		}
		return nil, &domain.TransportError{Op: "invoke " + functionName, Err: errors.New(detail)}
	}

	var resp domain.TranslatorResponse
	if err := json.Unmarshal(result.Payload, &resp); err != nil {
		return nil, &domain.TransportError{Op: "decode " + functionName, Err: err}
	}

	if resp.Error != "" {
		return nil, &domain.ServiceError{Code: resp.ErrorCode, Message: resp.Error}
	}

	if len(resp.Translations) != 1 || len(resp.Translations[0]) != len(texts) {
		return nil, &domain.ServiceError{
			Code:    "MALFORMED_RESPONSE",
			Message: fmt.Sprintf("%s returned %s for 1 chunk of %d texts", functionName, shape(resp.Translations), len(texts)),
		}
	}

	out := resp.Translations[0]
	if !params.HTML {
		for i := range out {
			out[i] = html.UnescapeString(out[i])
		}
	}
	return out, nil
}

// classifyInvokeError maps an SDK error onto the domain error variants.
func classifyInvokeError(functionName string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && serviceErrorCodes[apiErr.ErrorCode()] {
		return &domain.ServiceError{
			Code:    apiErr.ErrorCode(),
			Message: apiErr.ErrorMessage(),
			Err:     err,
		}
	}
	return &domain.TransportError{Op: "invoke " + functionName, Err: err}
}

func shape(chunks [][]string) string {
	if len(chunks) != 1 {
		return fmt.Sprintf("%d chunks", len(chunks))
	}
	return fmt.Sprintf("%d texts", len(chunks[0]))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
