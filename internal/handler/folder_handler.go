package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vfxpublish/internal/domain"
	"vfxpublish/internal/service"
)

type FolderHandler struct {
	folderService *service.FolderService
	logger        *zap.Logger
}

type createFolderRequest struct {
	// Path is created with every missing parent.
	Path string `json:"path"`
}

func NewFolderHandler(folderService *service.FolderService, logger *zap.Logger) *FolderHandler {
	return &FolderHandler{
		folderService: folderService,
		logger:        logger,
	}
}

// CreateFolder handles POST /v1/projects/{project}/folders.
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	var req createFolderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: %w", service.ErrInvalidFolder, err))
		return
	}

	folder, err := h.folderService.EnsurePath(r.Context(), project, req.Path)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, folder)
}

// GetFolderContent handles GET /v1/projects/{project}/folders?path=/assets
// and lists the direct children of path.
func (h *FolderHandler) GetFolderContent(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	path := r.URL.Query().Get("path")

	folders, err := h.folderService.ListChildren(r.Context(), project, path)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response := struct {
		Path    string          `json:"path"`
		Folders []domain.Folder `json:"folders"`
	}{
		Path:    domain.NormalizeFolderPath(path),
		Folders: folders,
	}
	writeJSON(w, h.logger, http.StatusOK, response)
}
