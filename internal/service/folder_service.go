package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"vfxpublish/internal/domain"
)

// FolderStore persists the folder hierarchy of a project.
type FolderStore interface {
	FolderLookup
	Create(ctx context.Context, folder *domain.Folder) error
	ListChildren(ctx context.Context, project string, parentID *string) ([]domain.Folder, error)
}

type FolderService struct {
	store  FolderStore
	logger *zap.Logger
}

func NewFolderService(store FolderStore, logger *zap.Logger) *FolderService {
	return &FolderService{store: store, logger: logger}
}

// CreateFolder creates name below parentPath. An empty parentPath or "/"
// creates a top-level folder.
func (s *FolderService) CreateFolder(ctx context.Context, project, parentPath, name string) (*domain.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: name %q", ErrInvalidFolder, name)
	}

	folder := &domain.Folder{ProjectName: project, Name: name}
	if len(domain.SplitFolderPath(parentPath)) > 0 {
		parent, err := s.GetByPath(ctx, project, parentPath)
		if err != nil {
			return nil, err
		}
		folder.ParentID = &parent.ID
	}

	if err := s.store.Create(ctx, folder); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	s.logger.Info("Created folder",
		zap.String("project", project),
		zap.String("path", folder.Path))
	return folder, nil
}

// EnsurePath returns the folder at path, creating every missing segment.
func (s *FolderService) EnsurePath(ctx context.Context, project, path string) (*domain.Folder, error) {
	parts := domain.SplitFolderPath(path)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidFolder)
	}

	var parent *domain.Folder
	for i, name := range parts {
		current := "/" + strings.Join(parts[:i+1], "/")
		folder, err := s.store.GetByPath(ctx, project, current)
		if err != nil {
			return nil, fmt.Errorf("failed to get folder %s: %w", current, err)
		}
		if folder == nil {
			folder = &domain.Folder{ProjectName: project, Name: name}
			if parent != nil {
				folder.ParentID = &parent.ID
			}
			if err := s.store.Create(ctx, folder); err != nil {
				return nil, fmt.Errorf("failed to create folder %s: %w", current, err)
			}
			s.logger.Info("Created folder",
				zap.String("project", project),
				zap.String("path", folder.Path))
		}
		parent = folder
	}
	return parent, nil
}

// GetByPath returns the folder at path or ErrFolderNotFound.
func (s *FolderService) GetByPath(ctx context.Context, project, path string) (*domain.Folder, error) {
	folder, err := s.store.GetByPath(ctx, project, path)
	if err != nil {
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	if folder == nil {
		return nil, fmt.Errorf("%w: %s%s", ErrFolderNotFound, project, domain.NormalizeFolderPath(path))
	}
	return folder, nil
}

// ListChildren lists the folders directly below path; "/" lists the
// top-level folders.
func (s *FolderService) ListChildren(ctx context.Context, project, path string) ([]domain.Folder, error) {
	var parentID *string
	if len(domain.SplitFolderPath(path)) > 0 {
		parent, err := s.GetByPath(ctx, project, path)
		if err != nil {
			return nil, err
		}
		parentID = &parent.ID
	}

	folders, err := s.store.ListChildren(ctx, project, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}
