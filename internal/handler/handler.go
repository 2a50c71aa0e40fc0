// Package handler provides the Lambda handler for the batch translator.
package handler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pricofy/batch-translator/internal/domain"
	"github.com/pricofy/batch-translator/internal/translate"
)

// Handler serves translation requests. It is built once per cold start.
type Handler struct {
	svc    *translate.Service
	logger zerolog.Logger
}

// New creates a Handler around svc.
func New(svc *translate.Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Handle processes a translation request.
// Request and configuration problems, as well as transport failures, are
// reported in Response.Error; batches rejected by the translation service
// come back as empty strings and are listed in DegradedChunks.
func (h *Handler) Handle(ctx context.Context, req domain.Request) (*domain.Response, error) {
	// Validate request
	if err := validateRequest(req); err != nil {
		return &domain.Response{Error: err.Error()}, nil
	}

	out, report, err := h.svc.TranslateTexts(ctx, req.Texts, translate.OptionsFromRequest(req))
	if err != nil {
		h.logger.Error().Err(err).
			Bool("config_error", domain.IsConfigError(err)).
			Msg("translation request failed")
		return &domain.Response{Error: fmt.Sprintf("translation failed: %v", err)}, nil
	}

	return &domain.Response{
		Translations:    &out,
		ChunksProcessed: report.Batches,
		DegradedChunks:  report.Degraded,
	}, nil
}

// validateRequest checks the request shape. A missing target may still be
// filled in from the configuration, so the translate service checks that.
func validateRequest(req domain.Request) error {
	if req.Texts.Values == nil {
		return fmt.Errorf("texts is required")
	}
	if req.Target.Multiple {
		return req.Target.Validate()
	}
	return nil
}
