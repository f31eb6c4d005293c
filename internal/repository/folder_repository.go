package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"vfxpublish/internal/domain"
)

var ErrFolderExists = errors.New("folder already exists")

var folderColumns = []string{"id", "project_name", "name", "parent_id", "path", "level"}

type FolderRepository struct {
	db *DB
}

func NewFolderRepository(db *DB) *FolderRepository {
	return &FolderRepository{db: db}
}

// Create inserts folder below folder.ParentID, deriving Path and Level from
// the parent. A folder without parent is a top-level folder ("/assets").
func (r *FolderRepository) Create(ctx context.Context, folder *domain.Folder) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var path string
	var level int

	if folder.ParentID == nil {
		path = "/" + folder.Name
		level = 0
	} else {
		parent, err := r.getByID(ctx, tx, folder.ProjectName, *folder.ParentID)
		if err != nil {
			return err
		}
		if parent == nil {
			return fmt.Errorf("failed to get parent folder %s: not found", *folder.ParentID)
		}
		path = parent.Path + "/" + folder.Name
		level = parent.Level + 1
	}

	existing, err := r.getByPath(ctx, tx, folder.ProjectName, path)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrFolderExists, path)
	}

	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}

	ib := r.db.Flavor.NewInsertBuilder()
	ib.InsertInto("folders")
	ib.Cols(folderColumns...)
	ib.Values(folder.ID, folder.ProjectName, folder.Name, folder.ParentID, path, level)

	query, args := ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	folder.Path = path
	folder.Level = level

	return tx.Commit()
}

// GetByPath returns the folder at a project-relative path or nil.
func (r *FolderRepository) GetByPath(ctx context.Context, project, path string) (*domain.Folder, error) {
	return r.getByPath(ctx, r.db, project, domain.NormalizeFolderPath(path))
}

func (r *FolderRepository) GetByID(ctx context.Context, project, id string) (*domain.Folder, error) {
	return r.getByID(ctx, r.db, project, id)
}

// ListChildren returns the direct children of parentID, or the top-level
// folders when parentID is nil.
func (r *FolderRepository) ListChildren(ctx context.Context, project string, parentID *string) ([]domain.Folder, error) {
	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select(folderColumns...)
	sb.From("folders")
	if parentID == nil {
		sb.Where(sb.Equal("project_name", project), sb.IsNull("parent_id"))
	} else {
		sb.Where(sb.Equal("project_name", project), sb.Equal("parent_id", *parentID))
	}
	sb.OrderBy("name")

	query, args := sb.Build()
	folders := []domain.Folder{}
	if err := r.db.SelectContext(ctx, &folders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

func (r *FolderRepository) getByPath(ctx context.Context, q sqlx.QueryerContext, project, path string) (*domain.Folder, error) {
	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select(folderColumns...)
	sb.From("folders")
	sb.Where(sb.Equal("project_name", project), sb.Equal("path", path))

	query, args := sb.Build()
	var folder domain.Folder
	if err := sqlx.GetContext(ctx, q, &folder, query, args...); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get folder %s: %w", path, err)
	}
	return &folder, nil
}

func (r *FolderRepository) getByID(ctx context.Context, q sqlx.QueryerContext, project, id string) (*domain.Folder, error) {
	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select(folderColumns...)
	sb.From("folders")
	sb.Where(sb.Equal("project_name", project), sb.Equal("id", id))

	query, args := sb.Build()
	var folder domain.Folder
	if err := sqlx.GetContext(ctx, q, &folder, query, args...); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get folder %s: %w", id, err)
	}
	return &folder, nil
}
