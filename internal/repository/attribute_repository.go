package repository

import (
	"context"
	"fmt"

	"vfxpublish/internal/domain"
)

// AttributeRepository reads the attribute schema declared per entity kind.
type AttributeRepository struct {
	db *DB
}

func NewAttributeRepository(db *DB) *AttributeRepository {
	return &AttributeRepository{db: db}
}

func (r *AttributeRepository) AttributesForKind(ctx context.Context, kind domain.EntityKind) ([]string, error) {
	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select("name")
	sb.From("attribute_definitions")
	sb.Where(sb.Equal("kind", string(kind)))
	sb.OrderBy("name")

	query, args := sb.Build()
	var names []string
	if err := r.db.SelectContext(ctx, &names, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list %s attributes: %w", kind, err)
	}
	return names, nil
}

// Define declares an attribute for kind. Defining an existing attribute is a
// no-op.
func (r *AttributeRepository) Define(ctx context.Context, kind domain.EntityKind, name string) error {
	sb := r.db.Flavor.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("attribute_definitions")
	sb.Where(sb.Equal("kind", string(kind)), sb.Equal("name", name))

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return fmt.Errorf("failed to check attribute %s: %w", name, err)
	}
	if count > 0 {
		return nil
	}

	ib := r.db.Flavor.NewInsertBuilder()
	ib.InsertInto("attribute_definitions")
	ib.Cols("kind", "name")
	ib.Values(string(kind), name)

	query, args = ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to define %s attribute %s: %w", kind, name, err)
	}
	return nil
}
