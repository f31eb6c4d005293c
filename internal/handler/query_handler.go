package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vfxpublish/internal/domain"
	"vfxpublish/internal/service"
)

// EntityReader lists published entities.
type EntityReader interface {
	ListProducts(ctx context.Context, project, folderID string) ([]domain.Entity, error)
	ListVersions(ctx context.Context, project, productID string) ([]domain.Entity, error)
	FindRepresentations(ctx context.Context, project string, versionIDs []string) ([]domain.Entity, error)
}

type QueryHandler struct {
	folders  service.FolderLookup
	entities EntityReader
	logger   *zap.Logger
}

func NewQueryHandler(folders service.FolderLookup, entities EntityReader, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{folders: folders, entities: entities, logger: logger}
}

type entitiesResponse struct {
	Items []domain.Entity `json:"items"`
}

func listResponse(items []domain.Entity) entitiesResponse {
	if items == nil {
		items = []domain.Entity{}
	}
	return entitiesResponse{Items: items}
}

// ListProducts handles GET /v1/projects/{project}/products?folder_path=...
func (h *QueryHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	folderPath := r.URL.Query().Get("folder_path")
	if folderPath == "" {
		writeError(w, h.logger, fmt.Errorf("%w: folder_path is required", service.ErrInvalidRequest))
		return
	}

	folder, err := h.folders.GetByPath(r.Context(), project, folderPath)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if folder == nil {
		writeError(w, h.logger, fmt.Errorf("%w: %s/%s", service.ErrFolderNotFound, project, domain.NormalizeFolderPath(folderPath)))
		return
	}

	products, err := h.entities.ListProducts(r.Context(), project, folder.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, listResponse(products))
}

// ListVersions handles GET /v1/projects/{project}/products/{productID}/versions.
func (h *QueryHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	productID := chi.URLParam(r, "productID")

	versions, err := h.entities.ListVersions(r.Context(), project, productID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, listResponse(versions))
}

// ListRepresentations handles GET /v1/projects/{project}/versions/{versionID}/representations.
func (h *QueryHandler) ListRepresentations(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	versionID := chi.URLParam(r, "versionID")

	repres, err := h.entities.FindRepresentations(r.Context(), project, []string{versionID})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, listResponse(repres))
}
