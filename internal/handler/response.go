package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"vfxpublish/internal/repository"
	"vfxpublish/internal/service"
	"vfxpublish/internal/service/pathtemplate"
	"vfxpublish/internal/service/s3"
	"vfxpublish/internal/service/versioning"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var (
		unresolved  *pathtemplate.UnresolvedPlaceholderError
		unavailable *versioning.DirectoryUnavailableError
		storeErr    *service.StoreError
	)
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrInvalidFolder):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrFolderNotFound), errors.Is(err, s3.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrFolderExists):
		return http.StatusConflict
	case errors.As(err, &unresolved):
		return http.StatusUnprocessableEntity
	case errors.As(err, &storeErr):
		return http.StatusBadGateway
	case errors.As(err, &unavailable):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Info("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, logger, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
