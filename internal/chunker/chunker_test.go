package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{name: "empty string", text: "", expected: 0},
		{name: "short text", text: "Hi", expected: 1}, // 2/4 = 0, min 1
		{name: "typical title", text: "iPhone 12 Pro en buen estado", expected: 7},
		{name: "repeated", text: strings.Repeat("a", 40), expected: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EstimateTokens(tt.text))
		})
	}
}

func TestEstimateBatchTokens(t *testing.T) {
	b := Batch{Texts: []string{strings.Repeat("a", 40), "Hi", ""}}
	assert.Equal(t, 11, EstimateBatchTokens(b))
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name            string
		texts           []string
		size            int
		expectedBatches int
		expectedLens    []int
	}{
		{name: "empty input", texts: []string{}, size: 2, expectedBatches: 0},
		{name: "nil input", texts: nil, size: 2, expectedBatches: 0},
		{name: "single text", texts: []string{"hola"}, size: 2, expectedBatches: 1, expectedLens: []int{1}},
		{
			name:            "exact multiple",
			texts:           []string{"hola", "mundo", "buenos", "dias", "a", "todos"},
			size:            2,
			expectedBatches: 3,
			expectedLens:    []int{2, 2, 2},
		},
		{
			name:            "last batch shorter",
			texts:           []string{"a", "b", "c", "d", "e"},
			size:            2,
			expectedBatches: 3,
			expectedLens:    []int{2, 2, 1},
		},
		{
			name:            "batch size larger than input",
			texts:           []string{"a", "b", "c"},
			size:            100,
			expectedBatches: 1,
			expectedLens:    []int{3},
		},
		{
			name:            "batch size one",
			texts:           []string{"a", "b", "c"},
			size:            1,
			expectedBatches: 3,
			expectedLens:    []int{1, 1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := Partition(tt.texts, tt.size)
			require.Len(t, batches, tt.expectedBatches)

			var all []string
			for i, b := range batches {
				assert.Equal(t, i, b.Index)
				assert.Equal(t, len(all), b.Offset)
				assert.Equal(t, tt.expectedLens[i], b.Len())
				all = append(all, b.Texts...)
			}

			if len(tt.texts) == 0 {
				assert.Empty(t, all)
				return
			}
			assert.Equal(t, tt.texts, all)
		})
	}
}

func TestPartition_CountMatchesCeil(t *testing.T) {
	for n := 0; n <= 25; n++ {
		for size := 1; size <= 7; size++ {
			t.Run(fmt.Sprintf("n=%d/size=%d", n, size), func(t *testing.T) {
				texts := make([]string, n)
				for i := range texts {
					texts[i] = fmt.Sprintf("t%d", i)
				}

				batches := Partition(texts, size)
				assert.Len(t, batches, Count(n, size))
				assert.Equal(t, (n+size-1)/size, len(batches))

				for _, b := range batches {
					assert.LessOrEqual(t, b.Len(), size)
					assert.Positive(t, b.Len())
				}
			})
		}
	}
}

func TestPartition_Idempotent(t *testing.T) {
	texts := []string{"first", "second", "third", "fourth", "fifth"}

	first := Partition(texts, 2)
	second := Partition(texts, 2)

	assert.Equal(t, first, second)
}

func TestPartition_DefaultBatchSize(t *testing.T) {
	texts := make([]string, DefaultBatchSize+1)
	batches := Partition(texts, 0) // Should use default

	require.Len(t, batches, 2)
	assert.Equal(t, DefaultBatchSize, batches[0].Len())
	assert.Equal(t, 1, batches[1].Len())
}

func TestPartition_BatchesDoNotOverlap(t *testing.T) {
	texts := []string{"a", "b", "c", "d"}
	batches := Partition(texts, 2)
	require.Len(t, batches, 2)

	// Appending to one batch must not clobber the next batch's texts.
	grown := append(batches[0].Texts, "x")
	assert.Equal(t, []string{"a", "b", "x"}, grown)
	assert.Equal(t, []string{"c", "d"}, batches[1].Texts)
	assert.Equal(t, []string{"a", "b", "c", "d"}, texts)
}
