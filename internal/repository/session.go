package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"vfxpublish/internal/domain"
	"vfxpublish/internal/service"
)

// ErrEntityNotFound is returned on commit when an update targets a missing row.
var ErrEntityNotFound = errors.New("entity not found")

type entityTable struct {
	name string
	// columns maps entity keys to column names; "id" and "attrib" are
	// handled separately.
	columns map[string]string
}

var entityTables = map[domain.EntityKind]entityTable{
	domain.KindProduct: {
		name: "products",
		columns: map[string]string{
			domain.FieldName:        "name",
			domain.FieldProductType: "product_type",
			domain.FieldFolderID:    "folder_id",
			domain.FieldData:        "data",
		},
	},
	domain.KindVersion: {
		name: "versions",
		columns: map[string]string{
			domain.FieldVersion:   "version",
			domain.FieldProductID: "product_id",
			domain.FieldTaskID:    "task_id",
			domain.FieldData:      "data",
		},
	},
	domain.KindRepresentation: {
		name: "representations",
		columns: map[string]string{
			domain.FieldName:      "name",
			domain.FieldVersionID: "version_id",
			domain.FieldFiles:     "files",
			domain.FieldData:      "data",
		},
	},
}

var jsonColumns = map[string]bool{"data": true, "attrib": true, "files": true}

type operation struct {
	create  bool
	kind    domain.EntityKind
	id      string
	payload domain.Entity
}

// Session queues entity operations for one project and applies them in a
// single transaction on Commit.
type Session struct {
	db      *DB
	project string
	ops     []operation
	logger  *zap.Logger
}

// NewSession starts an empty operation session for project.
func (r *EntityRepository) NewSession(project string) service.OperationSession {
	return &Session{db: r.db, project: project, logger: r.logger}
}

// CreateEntity queues an insert. Payloads without an id get a new UUID.
func (s *Session) CreateEntity(kind domain.EntityKind, payload domain.Entity) string {
	id := payload.ID()
	if id == "" {
		id = uuid.NewString()
	}
	s.ops = append(s.ops, operation{create: true, kind: kind, id: id, payload: payload})
	return id
}

// UpdateEntity queues a partial update. Top-level keys replace their column,
// attrib keys are merged into the stored attributes.
func (s *Session) UpdateEntity(kind domain.EntityKind, id string, changes domain.Entity) {
	s.ops = append(s.ops, operation{kind: kind, id: id, payload: changes})
}

// Commit applies every queued operation or none. The queue is emptied either
// way.
func (s *Session) Commit(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "repository.Session.Commit")
	defer span.End()

	ops := s.ops
	s.ops = nil
	if len(ops) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, op := range ops {
		if op.create {
			err = s.insert(ctx, tx, op)
		} else {
			err = s.update(ctx, tx, op)
		}
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Debug("Committed operation session",
		zap.String("project", s.project),
		zap.Int("operations", len(ops)))
	return nil
}

func (s *Session) insert(ctx context.Context, tx *sqlx.Tx, op operation) error {
	table, ok := entityTables[op.kind]
	if !ok {
		return fmt.Errorf("unsupported entity kind %q", op.kind)
	}

	cols := []string{"id", "project_name"}
	values := []any{op.id, s.project}
	for _, key := range sortedKeys(op.payload) {
		if key == domain.FieldID {
			continue
		}
		column, err := columnFor(table, key)
		if err != nil {
			return fmt.Errorf("create %s: %w", op.kind, err)
		}
		value, err := columnValue(column, op.payload[key])
		if err != nil {
			return fmt.Errorf("create %s: %w", op.kind, err)
		}
		cols = append(cols, column)
		values = append(values, value)
	}

	ib := s.db.Flavor.NewInsertBuilder()
	ib.InsertInto(table.name)
	ib.Cols(cols...)
	ib.Values(values...)

	query, args := ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create %s %s: %w", op.kind, op.id, err)
	}
	return nil
}

func (s *Session) update(ctx context.Context, tx *sqlx.Tx, op operation) error {
	table, ok := entityTables[op.kind]
	if !ok {
		return fmt.Errorf("unsupported entity kind %q", op.kind)
	}

	ub := s.db.Flavor.NewUpdateBuilder()
	ub.Update(table.name)

	assignments := []string{"updated_at = CURRENT_TIMESTAMP"}
	for _, key := range sortedKeys(op.payload) {
		if key == domain.FieldID {
			continue
		}
		column, err := columnFor(table, key)
		if err != nil {
			return fmt.Errorf("update %s %s: %w", op.kind, op.id, err)
		}

		raw := op.payload[key]
		if column == "attrib" {
			merged, err := s.mergedAttrib(ctx, tx, table.name, op.id, raw)
			if err != nil {
				return fmt.Errorf("update %s %s: %w", op.kind, op.id, err)
			}
			raw = merged
		}
		value, err := columnValue(column, raw)
		if err != nil {
			return fmt.Errorf("update %s %s: %w", op.kind, op.id, err)
		}
		assignments = append(assignments, ub.Assign(column, value))
	}
	ub.Set(assignments...)
	ub.Where(
		ub.Equal("id", op.id),
		ub.Equal("project_name", s.project),
	)

	query, args := ub.Build()
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", op.kind, op.id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", op.kind, op.id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrEntityNotFound, op.kind, op.id)
	}
	return nil
}

// mergedAttrib overlays changes on the attributes stored for id.
func (s *Session) mergedAttrib(ctx context.Context, tx *sqlx.Tx, table, id string, changes any) (map[string]any, error) {
	patch, ok := changes.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("attrib changes must be an object, got %T", changes)
	}

	sb := s.db.Flavor.NewSelectBuilder()
	sb.Select("attrib")
	sb.From(table)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("project_name", s.project),
	)

	query, args := sb.Build()
	var raw types.JSONText
	if err := tx.GetContext(ctx, &raw, query, args...); err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
		}
		return nil, fmt.Errorf("failed to load attributes: %w", err)
	}
	current, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	for key, value := range patch {
		current[key] = value
	}
	return current, nil
}

func columnFor(table entityTable, key string) (string, error) {
	if key == domain.FieldAttrib {
		return "attrib", nil
	}
	column, ok := table.columns[key]
	if !ok {
		return "", fmt.Errorf("unknown field %q for %s", key, table.name)
	}
	return column, nil
}

func columnValue(column string, value any) (any, error) {
	if jsonColumns[column] {
		if value == nil {
			if column == "files" {
				return "[]", nil
			}
			return "{}", nil
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", column, err)
		}
		return string(raw), nil
	}

	switch column {
	case "version":
		switch v := value.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			return int(v), nil
		default:
			return nil, fmt.Errorf("version must be an integer, got %T", value)
		}
	case "task_id":
		if s, ok := value.(string); ok && s == "" {
			return nil, nil
		}
	}
	return value, nil
}

func sortedKeys(e domain.Entity) []string {
	keys := make([]string, 0, len(e))
	for key := range e {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
