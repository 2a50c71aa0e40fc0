// Package main contains the Lambda warmup handler for preventing cold starts.
// CloudWatch Events trigger this handler periodically to keep Lambda instances warm.
package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pricofy/batch-translator/internal/dispatch"
	"github.com/pricofy/batch-translator/internal/router"
)

const (
	// WarmupSource identifies warmup events from CloudWatch
	WarmupSource = "warmup"

	// WarmupDelay ensures instances overlap to create true concurrency
	WarmupDelay = 75 * time.Millisecond
)

// WarmupEvent represents the CloudWatch Event payload for warmup
type WarmupEvent struct {
	Source      string `json:"source"`
	Concurrency int    `json:"concurrency"`
}

// WarmupResponse is the response returned by warmup operations
type WarmupResponse struct {
	Status          string `json:"status"`
	InstancesWarmed int    `json:"instancesWarmed"`
}

// IsWarmupEvent checks if the event is a warmup event
func IsWarmupEvent(event json.RawMessage) (*WarmupEvent, bool) {
	var warmup WarmupEvent
	if err := json.Unmarshal(event, &warmup); err != nil {
		return nil, false
	}
	if warmup.Source != WarmupSource {
		return nil, false
	}
	return &warmup, true
}

// warmer keeps instances of this function warm by invoking itself.
type warmer struct {
	client       router.Invoker
	functionName string
	logger       zerolog.Logger
	delay        time.Duration
}

func newWarmer(client router.Invoker, functionName string, logger zerolog.Logger) *warmer {
	return &warmer{
		client:       client,
		functionName: functionName,
		logger:       logger,
		delay:        WarmupDelay,
	}
}

// Handle processes a warmup event and optionally self-invokes
// to maintain multiple warm instances.
func (w *warmer) Handle(ctx context.Context, warmup *WarmupEvent) (interface{}, error) {
	instancesWarmed := 1 // This instance counts as 1

	if warmup.Concurrency > 0 {
		if err := w.selfInvoke(ctx, warmup.Concurrency); err != nil {
			w.logger.Warn().Err(err).Int("concurrency", warmup.Concurrency).Msg("warmup self-invocation failed")
		} else {
			instancesWarmed += warmup.Concurrency
		}
	}

	// Brief delay to ensure instances overlap
	time.Sleep(w.delay)

	return map[string]interface{}{
		"statusCode": 200,
		"body": WarmupResponse{
			Status:          "warm",
			InstancesWarmed: instancesWarmed,
		},
	}, nil
}

// selfInvoke invokes this Lambda function count times asynchronously,
// at most dispatch.DefaultConcurrency at once, and returns the first error.
func (w *warmer) selfInvoke(ctx context.Context, count int) error {
	// Payload for child invocations (concurrency=0 to prevent infinite loop)
	payload, err := json.Marshal(WarmupEvent{
		Source:      WarmupSource,
		Concurrency: 0, // Critical: prevent recursive invocation
	})
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(dispatch.DefaultConcurrency)

	for i := 0; i < count; i++ {
		g.Go(func() error {
			_, err := w.client.Invoke(ctx, &lambdasdk.InvokeInput{
				FunctionName:   aws.String(w.functionName),
				InvocationType: types.InvocationTypeEvent, // Async invocation
				Payload:        payload,
			})
			return err
		})
	}

	return g.Wait()
}
