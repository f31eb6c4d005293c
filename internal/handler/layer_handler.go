package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vfxpublish/internal/service"
	"vfxpublish/internal/service/s3"
)

// LayerReader reads mirrored root layers back from object storage.
type LayerReader interface {
	GetObject(ctx context.Context, key string) (s3.S3Object, error)
}

// LayerHandler serves root layers from the S3 mirror. Keys follow the
// mirror layout: <project>/<folder path>/<file>.
type LayerHandler struct {
	layers LayerReader
	logger *zap.Logger
}

func NewLayerHandler(layers LayerReader, logger *zap.Logger) *LayerHandler {
	return &LayerHandler{layers: layers, logger: logger}
}

// GetLayer streams /v1/projects/{project}/layers/<folder path>/<file>.
func (h *LayerHandler) GetLayer(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	rel := strings.Trim(chi.URLParam(r, "*"), "/")
	key := path.Join(project, rel)
	if rel == "" || !strings.HasPrefix(key, project+"/") {
		writeError(w, h.logger, fmt.Errorf("%w: bad layer path %q", service.ErrInvalidRequest, rel))
		return
	}

	obj, err := h.layers.GetObject(r.Context(), key)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", obj.ContentType())
	if n := obj.ContentLength(); n > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(n, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		h.logger.Error("Error streaming layer", zap.String("key", key), zap.Error(err))
	}
}
