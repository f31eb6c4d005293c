package service

import (
	"context"

	"vfxpublish/internal/domain"
)

// EntityLookup reads the current store snapshot. Absent entities are
// reported as (nil, nil).
type EntityLookup interface {
	FindProductByName(ctx context.Context, project, name, folderID string) (domain.Entity, error)
	FindVersionByNumber(ctx context.Context, project string, number int, productID string) (domain.Entity, error)
	FindRepresentations(ctx context.Context, project string, versionIDs []string) ([]domain.Entity, error)
}

// OperationSession queues creates and updates and applies them together on
// Commit. CreateEntity returns the identity the entity will have once
// committed.
type OperationSession interface {
	CreateEntity(kind domain.EntityKind, payload domain.Entity) string
	UpdateEntity(kind domain.EntityKind, id string, changes domain.Entity)
	Commit(ctx context.Context) error
}

type SessionFactory interface {
	NewSession(project string) OperationSession
}

// AttributeSchema lists the attribute names the store declares for a kind.
type AttributeSchema interface {
	AttributesForKind(ctx context.Context, kind domain.EntityKind) ([]string, error)
}

// FolderLookup resolves publish target folders. Absent folders are reported
// as (nil, nil).
type FolderLookup interface {
	GetByPath(ctx context.Context, project, path string) (*domain.Folder, error)
}
