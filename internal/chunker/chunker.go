// Package chunker splits input texts into request-sized batches.
package chunker

// DefaultBatchSize is the default maximum number of texts per batch.
const DefaultBatchSize = 100

// Batch is a contiguous run of input texts sent in one translation request.
type Batch struct {
	// Index is the position of the batch among all batches of one call.
	Index int
	// Offset is the position of the first text in the original input.
	Offset int
	// Texts shares the caller's backing array and must not be modified.
	Texts []string
}

// Len returns the number of texts in the batch.
func (b Batch) Len() int {
	return len(b.Texts)
}

// Count returns the number of batches needed for total texts.
func Count(total, size int) int {
	if total <= 0 {
		return 0
	}
	if size <= 0 {
		size = DefaultBatchSize
	}
	return (total + size - 1) / size
}

// Partition splits texts into batches of at most size texts.
// Each text is kept whole and order is preserved; only the last batch may be shorter.
// Returns nil for empty input.
func Partition(texts []string, size int) []Batch {
	if len(texts) == 0 {
		return nil
	}

	if size <= 0 {
		size = DefaultBatchSize
	}

	batches := make([]Batch, 0, Count(len(texts), size))
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, Batch{
			Index:  len(batches),
			Offset: start,
			Texts:  texts[start:end:end],
		})
	}

	return batches
}

// EstimateTokens estimates the token count for a text.
// Uses a simple heuristic: ~4 characters per token for Latin languages.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	// Rough estimate: 1 token ≈ 4 characters
	tokens := len(text) / 4
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

// EstimateBatchTokens sums EstimateTokens over every text in the batch.
func EstimateBatchTokens(b Batch) int {
	total := 0
	for _, text := range b.Texts {
		total += EstimateTokens(text)
	}
	return total
}
