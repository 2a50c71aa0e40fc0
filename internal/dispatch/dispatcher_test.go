package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricofy/batch-translator/internal/chunker"
	"github.com/pricofy/batch-translator/internal/domain"
)

// upper is a fake translation primitive that upper-cases every text.
func upper(_ context.Context, batch chunker.Batch) ([]string, error) {
	out := make([]string, batch.Len())
	for i, text := range batch.Texts {
		out[i] = strings.ToUpper(text)
	}
	return out, nil
}

func makeTexts(n int) []string {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}
	return texts
}

func TestPool_Dispatch(t *testing.T) {
	texts := []string{"hola", "mundo", "buenos", "dias", "a", "todos"}
	batches := chunker.Partition(texts, 2)

	report, err := NewPool(2).Dispatch(context.Background(), batches, upper)
	require.NoError(t, err)

	assert.Equal(t, []string{"HOLA", "MUNDO", "BUENOS", "DIAS", "A", "TODOS"}, report.Translations)
	assert.Equal(t, 3, report.Batches)
	assert.Empty(t, report.Degraded)
}

func TestPool_Dispatch_Empty(t *testing.T) {
	var calls int32
	fn := func(ctx context.Context, batch chunker.Batch) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return upper(ctx, batch)
	}

	report, err := NewPool(4).Dispatch(context.Background(), nil, fn)
	require.NoError(t, err)

	assert.Empty(t, report.Translations)
	assert.NotNil(t, report.Translations)
	assert.Equal(t, 0, report.Batches)
	assert.Equal(t, int32(0), calls)
}

func TestPool_Dispatch_InvokesOncePerBatch(t *testing.T) {
	batches := chunker.Partition(makeTexts(53), 5)

	var mu sync.Mutex
	seen := make(map[int]int)
	fn := func(ctx context.Context, batch chunker.Batch) ([]string, error) {
		mu.Lock()
		seen[batch.Index]++
		mu.Unlock()
		return upper(ctx, batch)
	}

	report, err := NewPool(3).Dispatch(context.Background(), batches, fn)
	require.NoError(t, err)

	require.Len(t, seen, len(batches))
	for i := range batches {
		assert.Equal(t, 1, seen[i], "batch %d", i)
	}
	assert.Len(t, report.Translations, 53)
}

func TestPool_Dispatch_BoundsConcurrency(t *testing.T) {
	for _, concurrency := range []int{1, 2, 4, 7} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			batches := chunker.Partition(makeTexts(40), 2)

			var inFlight, peak int32
			fn := func(ctx context.Context, batch chunker.Batch) ([]string, error) {
				cur := atomic.AddInt32(&inFlight, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return upper(ctx, batch)
			}

			_, err := NewPool(concurrency).Dispatch(context.Background(), batches, fn)
			require.NoError(t, err)

			assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(concurrency))
			assert.Positive(t, atomic.LoadInt32(&peak))
		})
	}
}

func TestPool_Dispatch_OrderIndependentOfCompletion(t *testing.T) {
	texts := makeTexts(12)
	batches := chunker.Partition(texts, 2)

	// Earlier batches finish last.
	fn := func(ctx context.Context, batch chunker.Batch) ([]string, error) {
		time.Sleep(time.Duration(len(batches)-batch.Index) * 3 * time.Millisecond)
		return upper(ctx, batch)
	}

	report, err := NewPool(len(batches)).Dispatch(context.Background(), batches, fn)
	require.NoError(t, err)

	expected := make([]string, len(texts))
	for i, text := range texts {
		expected[i] = strings.ToUpper(text)
	}
	assert.Equal(t, expected, report.Translations)
}

func TestPool_Dispatch_IsolatesServiceErrors(t *testing.T) {
	texts := []string{"hola", "mundo", "buenos", "dias", "a", "todos"}
	batches := chunker.Partition(texts, 2)

	fn := func(ctx context.Context, batch chunker.Batch) ([]string, error) {
		if batch.Index == 1 {
			return nil, &domain.ServiceError{Code: "INVALID_ARGUMENT", Message: "glossary not found"}
		}
		return upper(ctx, batch)
	}

	report, err := NewPool(2).Dispatch(context.Background(), batches, fn)
	require.NoError(t, err)

	assert.Equal(t, []string{"HOLA", "MUNDO", "", "", "A", "TODOS"}, report.Translations)
	assert.Equal(t, []int{1}, report.Degraded)
	assert.Equal(t, 3, report.Batches)
}

func TestPool_Dispatch_AllBatchesFail(t *testing.T) {
	batches := chunker.Partition(makeTexts(5), 2)
	fn := func(context.Context, chunker.Batch) ([]string, error) {
		return nil, &domain.ServiceError{Message: "rejected"}
	}

	report, err := NewPool(2).Dispatch(context.Background(), batches, fn)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "", "", "", ""}, report.Translations)
	assert.Equal(t, []int{0, 1, 2}, report.Degraded)
}

func TestPool_Dispatch_PropagatesOtherErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "transport", err: &domain.TransportError{Op: "invoke", Err: errors.New("connection reset")}},
		{name: "unclassified", err: errors.New("boom")},
		{name: "config", err: domain.NewConfigError("glossary", "glossary id is required")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := chunker.Partition(makeTexts(6), 2)
			fn := func(ctx context.Context, batch chunker.Batch) ([]string, error) {
				if batch.Index == 0 {
					return nil, tt.err
				}
				return upper(ctx, batch)
			}

			report, err := NewPool(1).Dispatch(context.Background(), batches, fn)
			require.Error(t, err)
			assert.Nil(t, report)
			assert.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), "batch 0 failed")
		})
	}
}

func TestPool_Dispatch_WaitsForInFlight(t *testing.T) {
	batches := chunker.Partition(makeTexts(8), 2)

	var finished int32
	var started sync.WaitGroup
	started.Add(3)
	fn := func(ctx context.Context, batch chunker.Batch) ([]string, error) {
		if batch.Index == 0 {
			started.Wait()
			return nil, errors.New("boom")
		}
		started.Done()
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&finished, 1)
		return upper(ctx, batch)
	}

	_, err := NewPool(4).Dispatch(context.Background(), batches, fn)
	require.Error(t, err)

	// The three siblings started alongside the failing batch have all returned.
	assert.Equal(t, int32(3), atomic.LoadInt32(&finished))
}

func TestPool_Dispatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	fn := func(ctx context.Context, batch chunker.Batch) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return upper(ctx, batch)
	}

	_, err := NewPool(2).Dispatch(ctx, chunker.Partition(makeTexts(4), 2), fn)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls)
}

func TestPool_Dispatch_LogsDegradedBatches(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	fn := func(ctx context.Context, batch chunker.Batch) ([]string, error) {
		return nil, &domain.ServiceError{Message: "rejected"}
	}

	_, err := NewPool(1, WithLogger(logger)).Dispatch(context.Background(), chunker.Partition([]string{"a"}, 1), fn)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"batch":0`)
	assert.Contains(t, buf.String(), "batch degraded to placeholders")
}

func TestPool_Dispatch_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics("translator", reg)
	require.NoError(t, err)

	fn := func(ctx context.Context, batch chunker.Batch) ([]string, error) {
		if batch.Index == 2 {
			return nil, &domain.ServiceError{Message: "rejected"}
		}
		return upper(ctx, batch)
	}

	_, err = NewPool(2, WithMetrics(m)).Dispatch(context.Background(), chunker.Partition(makeTexts(6), 2), fn)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.batches.WithLabelValues(outcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues(outcomeDegraded)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics("translator", reg)
	require.NoError(t, err)

	_, err = NewMetrics("translator", reg)
	assert.Error(t, err)
}

func TestNewPool_DefaultConcurrency(t *testing.T) {
	assert.Equal(t, DefaultConcurrency, NewPool(0).Concurrency())
	assert.Equal(t, DefaultConcurrency, NewPool(-3).Concurrency())
	assert.Equal(t, 7, NewPool(7).Concurrency())
}
