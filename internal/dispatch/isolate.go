package dispatch

import (
	"context"
	"fmt"

	"github.com/pricofy/batch-translator/internal/chunker"
	"github.com/pricofy/batch-translator/internal/domain"
)

// Outcome is the failure-normalized result of one batch.
type Outcome struct {
	// Texts always has one entry per input text of the batch.
	Texts []string
	// Degraded is set when Texts are placeholders for a failed batch.
	Degraded bool
	// Cause is the service error that degraded the batch.
	Cause error
}

// IsolatedFunc is a BatchFunc wrapped by Isolate.
type IsolatedFunc func(ctx context.Context, batch chunker.Batch) (Outcome, error)

// Isolate wraps fn so that a *domain.ServiceError degrades only its own batch
// to empty strings. Every other error is returned unchanged.
// A result with the wrong number of texts counts as a service error.
func Isolate(fn BatchFunc) IsolatedFunc {
	return func(ctx context.Context, batch chunker.Batch) (Outcome, error) {
		texts, err := fn(ctx, batch)
		if err == nil && len(texts) != batch.Len() {
			err = &domain.ServiceError{
				Code:    "LENGTH_MISMATCH",
				Message: fmt.Sprintf("got %d translations for %d texts", len(texts), batch.Len()),
			}
		}

		if err != nil {
			if !domain.IsServiceError(err) {
				return Outcome{}, err
			}
			return Outcome{
				Texts:    Placeholders(batch.Len()),
				Degraded: true,
				Cause:    err,
			}, nil
		}

		return Outcome{Texts: texts}, nil
	}
}

// Placeholders returns n empty strings.
func Placeholders(n int) []string {
	return make([]string, n)
}
