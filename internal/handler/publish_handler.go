package handler

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"vfxpublish/internal/auth"
	"vfxpublish/internal/domain"
	"vfxpublish/internal/service"
)

// Publisher integrates one publish request.
type Publisher interface {
	Publish(ctx context.Context, req *domain.PublishRequest) (*domain.PublishResult, error)
}

type PublishHandler struct {
	publisher Publisher
	logger    *zap.Logger
}

func NewPublishHandler(publisher Publisher, logger *zap.Logger) *PublishHandler {
	return &PublishHandler{publisher: publisher, logger: logger}
}

// Publish handles POST /v1/publish. A committed version answers 201, a
// skipped request 200.
func (h *PublishHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req domain.PublishRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: %w", service.ErrInvalidRequest, err))
		return
	}
	if req.Author == "" {
		if subject, ok := auth.SubjectFromContext(r.Context()); ok {
			req.Author = subject
		}
	}

	result, err := h.publisher.Publish(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusCreated
	if result.Skipped {
		status = http.StatusOK
	}
	writeJSON(w, h.logger, status, result)
}
