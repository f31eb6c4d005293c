package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx/types"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"vfxpublish/internal/domain"
)

var tracer = otel.Tracer("vfxpublish/internal/repository")

type productRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	ProductType string         `db:"product_type"`
	FolderID    string         `db:"folder_id"`
	Data        types.JSONText `db:"data"`
	Attrib      types.JSONText `db:"attrib"`
}

type versionRow struct {
	ID        string         `db:"id"`
	Version   int            `db:"version"`
	ProductID string         `db:"product_id"`
	TaskID    sql.NullString `db:"task_id"`
	Data      types.JSONText `db:"data"`
	Attrib    types.JSONText `db:"attrib"`
}

type representationRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	VersionID string         `db:"version_id"`
	Files     types.JSONText `db:"files"`
	Data      types.JSONText `db:"data"`
	Attrib    types.JSONText `db:"attrib"`
}

var (
	productColumns        = []string{"id", "name", "product_type", "folder_id", "data", "attrib"}
	versionColumns        = []string{"id", "version", "product_id", "task_id", "data", "attrib"}
	representationColumns = []string{"id", "name", "version_id", "files", "data", "attrib"}
)

func decodeObject(raw types.JSONText) (map[string]any, error) {
	out := map[string]any{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func decodeList(raw types.JSONText) ([]any, error) {
	out := []any{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

func decodeDataAttrib(data, attrib types.JSONText) (map[string]any, map[string]any, error) {
	d, err := decodeObject(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode data: %w", err)
	}
	a, err := decodeObject(attrib)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode attrib: %w", err)
	}
	return d, a, nil
}

func (r productRow) entity() (domain.Entity, error) {
	data, attrib, err := decodeDataAttrib(r.Data, r.Attrib)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", r.ID, err)
	}
	return domain.Entity{
		domain.FieldID:          r.ID,
		domain.FieldName:        r.Name,
		domain.FieldProductType: r.ProductType,
		domain.FieldFolderID:    r.FolderID,
		domain.FieldData:        data,
		domain.FieldAttrib:      attrib,
	}, nil
}

func (r versionRow) entity() (domain.Entity, error) {
	data, attrib, err := decodeDataAttrib(r.Data, r.Attrib)
	if err != nil {
		return nil, fmt.Errorf("version %s: %w", r.ID, err)
	}
	e := domain.Entity{
		domain.FieldID:        r.ID,
		domain.FieldVersion:   r.Version,
		domain.FieldProductID: r.ProductID,
		domain.FieldData:      data,
		domain.FieldAttrib:    attrib,
	}
	if r.TaskID.Valid {
		e[domain.FieldTaskID] = r.TaskID.String
	}
	return e, nil
}

func (r representationRow) entity() (domain.Entity, error) {
	data, attrib, err := decodeDataAttrib(r.Data, r.Attrib)
	if err != nil {
		return nil, fmt.Errorf("representation %s: %w", r.ID, err)
	}
	files, err := decodeList(r.Files)
	if err != nil {
		return nil, fmt.Errorf("representation %s: failed to decode files: %w", r.ID, err)
	}
	return domain.Entity{
		domain.FieldID:        r.ID,
		domain.FieldName:      r.Name,
		domain.FieldVersionID: r.VersionID,
		domain.FieldFiles:     files,
		domain.FieldData:      data,
		domain.FieldAttrib:    attrib,
	}, nil
}

// EntityRepository reads and writes products, versions and representations.
type EntityRepository struct {
	db     *DB
	logger *zap.Logger
}

func NewEntityRepository(db *DB, logger *zap.Logger) *EntityRepository {
	return &EntityRepository{db: db, logger: logger}
}

func (r *EntityRepository) FindProductByName(ctx context.Context, project, name, folderID string) (domain.Entity, error) {
	ctx, span := tracer.Start(ctx, "repository.EntityRepository.FindProductByName")
	defer span.End()

	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select(productColumns...)
	sb.From("products")
	sb.Where(
		sb.Equal("project_name", project),
		sb.Equal("folder_id", folderID),
		sb.Equal("name", name),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var row productRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product %s: %w", name, err)
	}
	return row.entity()
}

func (r *EntityRepository) FindVersionByNumber(ctx context.Context, project string, number int, productID string) (domain.Entity, error) {
	ctx, span := tracer.Start(ctx, "repository.EntityRepository.FindVersionByNumber")
	defer span.End()

	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select(versionColumns...)
	sb.From("versions")
	sb.Where(
		sb.Equal("project_name", project),
		sb.Equal("product_id", productID),
		sb.Equal("version", number),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var row versionRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get version %d of product %s: %w", number, productID, err)
	}
	return row.entity()
}

func (r *EntityRepository) FindRepresentations(ctx context.Context, project string, versionIDs []string) ([]domain.Entity, error) {
	ctx, span := tracer.Start(ctx, "repository.EntityRepository.FindRepresentations")
	defer span.End()

	if len(versionIDs) == 0 {
		return nil, nil
	}

	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select(representationColumns...)
	sb.From("representations")
	sb.Where(
		sb.Equal("project_name", project),
		sb.In("version_id", sqlbuilder.Flatten(versionIDs)...),
	)
	sb.OrderBy("name")

	query, args := sb.Build()
	var rows []representationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list representations: %w", err)
	}

	entities := make([]domain.Entity, 0, len(rows))
	for _, row := range rows {
		e, err := row.entity()
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// ListProducts returns the products of a folder ordered by name.
func (r *EntityRepository) ListProducts(ctx context.Context, project, folderID string) ([]domain.Entity, error) {
	ctx, span := tracer.Start(ctx, "repository.EntityRepository.ListProducts")
	defer span.End()

	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select(productColumns...)
	sb.From("products")
	sb.Where(
		sb.Equal("project_name", project),
		sb.Equal("folder_id", folderID),
	)
	sb.OrderBy("name")

	query, args := sb.Build()
	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	entities := make([]domain.Entity, 0, len(rows))
	for _, row := range rows {
		e, err := row.entity()
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// ListVersions returns the versions of a product, newest first.
func (r *EntityRepository) ListVersions(ctx context.Context, project, productID string) ([]domain.Entity, error) {
	ctx, span := tracer.Start(ctx, "repository.EntityRepository.ListVersions")
	defer span.End()

	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select(versionColumns...)
	sb.From("versions")
	sb.Where(
		sb.Equal("project_name", project),
		sb.Equal("product_id", productID),
	)
	sb.OrderBy("version").Desc()

	query, args := sb.Build()
	var rows []versionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	entities := make([]domain.Entity, 0, len(rows))
	for _, row := range rows {
		e, err := row.entity()
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}
