// Package testsupport holds fakes shared by package tests.
package testsupport

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"vfxpublish/internal/domain"
	"vfxpublish/internal/service"
)

const (
	OpCreate = "create"
	OpUpdate = "update"
)

// Op is one committed session operation.
type Op struct {
	Type    string
	Kind    domain.EntityKind
	ID      string
	Project string
	Payload domain.Entity
}

// MemStore is an in-memory store. Entities are kept as JSON so lookups
// return the same decoded shapes a database would ([]any, float64).
type MemStore struct {
	mu         sync.Mutex
	folders    map[string]*domain.Folder
	entities   map[string]*memEntity
	attributes map[domain.EntityKind][]string
	ops        []Op

	// CommitHook, when set, runs before a commit is applied; an error
	// aborts the commit with nothing applied.
	CommitHook func(project string, ops []Op) error
	// LookupErr fails every entity lookup when set.
	LookupErr error
}

type memEntity struct {
	kind    domain.EntityKind
	project string
	raw     []byte
}

var _ service.EntityLookup = (*MemStore)(nil)
var _ service.SessionFactory = (*MemStore)(nil)
var _ service.AttributeSchema = (*MemStore)(nil)
var _ service.FolderStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		folders:  make(map[string]*domain.Folder),
		entities: make(map[string]*memEntity),
		attributes: map[domain.EntityKind][]string{
			domain.KindProduct:        {"productGroup", "description"},
			domain.KindVersion:        {"fps", "frameStart", "frameEnd", "handleStart", "handleEnd", "step", "intent", "source", "comment", "families"},
			domain.KindRepresentation: {"path", "template", "extension", "fps", "resolutionWidth", "resolutionHeight"},
		},
	}
}

// SetAttributes replaces the schema of kind.
func (s *MemStore) SetAttributes(kind domain.EntityKind, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes[kind] = names
}

// AddFolder registers a folder for path ("/assets/hero") and returns it.
func (s *MemStore) AddFolder(project, path string) *domain.Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	path = domain.NormalizeFolderPath(path)
	parts := domain.SplitFolderPath(path)
	folder := &domain.Folder{
		ID:          uuid.NewString(),
		ProjectName: project,
		Name:        parts[len(parts)-1],
		Path:        path,
		Level:       len(parts) - 1,
	}
	s.folders[project+":"+path] = folder
	return folder
}

// Create stores folder below its parent, deriving Path and Level.
func (s *MemStore) Create(_ context.Context, folder *domain.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := "/" + folder.Name
	level := 0
	if folder.ParentID != nil {
		var parent *domain.Folder
		for _, f := range s.folders {
			if f.ProjectName == folder.ProjectName && f.ID == *folder.ParentID {
				parent = f
			}
		}
		if parent == nil {
			return fmt.Errorf("parent folder %s not found", *folder.ParentID)
		}
		path = parent.Path + "/" + folder.Name
		level = parent.Level + 1
	}
	if _, exists := s.folders[folder.ProjectName+":"+path]; exists {
		return fmt.Errorf("folder %s already exists", path)
	}
	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}
	folder.Path, folder.Level = path, level

	copied := *folder
	s.folders[folder.ProjectName+":"+path] = &copied
	return nil
}

func (s *MemStore) ListChildren(_ context.Context, project string, parentID *string) ([]domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folders := []domain.Folder{}
	for _, f := range s.folders {
		if f.ProjectName != project {
			continue
		}
		switch {
		case parentID == nil && f.ParentID == nil,
			parentID != nil && f.ParentID != nil && *f.ParentID == *parentID:
			folders = append(folders, *f)
		}
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	return folders, nil
}

// Ops returns the committed operations in order.
func (s *MemStore) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Op(nil), s.ops...)
}

// Count returns how many committed operations of type opType touched kind.
func (s *MemStore) Count(opType string, kind domain.EntityKind) int {
	n := 0
	for _, op := range s.Ops() {
		if op.Type == opType && op.Kind == kind {
			n++
		}
	}
	return n
}

// Entities returns every stored entity of kind.
func (s *MemStore) Entities(kind domain.EntityKind) []domain.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Entity
	for _, e := range s.entities {
		if e.kind == kind {
			out = append(out, decode(e.raw))
		}
	}
	return out
}

// Get returns a stored entity by id or nil.
func (s *MemStore) Get(id string) domain.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entities[id]; ok {
		return decode(e.raw)
	}
	return nil
}

func (s *MemStore) GetByPath(_ context.Context, project, path string) (*domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	folder, ok := s.folders[project+":"+domain.NormalizeFolderPath(path)]
	if !ok {
		return nil, nil
	}
	copied := *folder
	return &copied, nil
}

func (s *MemStore) AttributesForKind(_ context.Context, kind domain.EntityKind) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.attributes[kind]...), nil
}

func (s *MemStore) find(project string, kind domain.EntityKind, match func(domain.Entity) bool) []domain.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Entity
	for _, e := range s.entities {
		if e.kind != kind || e.project != project {
			continue
		}
		entity := decode(e.raw)
		if match(entity) {
			out = append(out, entity)
		}
	}
	return out
}

func (s *MemStore) FindProductByName(_ context.Context, project, name, folderID string) (domain.Entity, error) {
	if s.LookupErr != nil {
		return nil, s.LookupErr
	}
	found := s.find(project, domain.KindProduct, func(e domain.Entity) bool {
		return e.String(domain.FieldName) == name && e.String(domain.FieldFolderID) == folderID
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (s *MemStore) FindVersionByNumber(_ context.Context, project string, number int, productID string) (domain.Entity, error) {
	if s.LookupErr != nil {
		return nil, s.LookupErr
	}
	found := s.find(project, domain.KindVersion, func(e domain.Entity) bool {
		n, _ := e[domain.FieldVersion].(float64)
		return int(n) == number && e.String(domain.FieldProductID) == productID
	})
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (s *MemStore) FindRepresentations(_ context.Context, project string, versionIDs []string) ([]domain.Entity, error) {
	if s.LookupErr != nil {
		return nil, s.LookupErr
	}
	ids := make(map[string]struct{}, len(versionIDs))
	for _, id := range versionIDs {
		ids[id] = struct{}{}
	}
	return s.find(project, domain.KindRepresentation, func(e domain.Entity) bool {
		_, ok := ids[e.String(domain.FieldVersionID)]
		return ok
	}), nil
}

func (s *MemStore) NewSession(project string) service.OperationSession {
	return &memSession{store: s, project: project}
}

type memSession struct {
	store   *MemStore
	project string
	ops     []Op
}

func (m *memSession) CreateEntity(kind domain.EntityKind, payload domain.Entity) string {
	copied := decode(encode(payload))
	id := copied.ID()
	if id == "" {
		id = uuid.NewString()
		copied[domain.FieldID] = id
	}
	m.ops = append(m.ops, Op{Type: OpCreate, Kind: kind, ID: id, Project: m.project, Payload: copied})
	return id
}

func (m *memSession) UpdateEntity(kind domain.EntityKind, id string, changes domain.Entity) {
	m.ops = append(m.ops, Op{Type: OpUpdate, Kind: kind, ID: id, Project: m.project, Payload: decode(encode(changes))})
}

func (m *memSession) Commit(_ context.Context) error {
	ops := m.ops
	m.ops = nil
	if len(ops) == 0 {
		return nil
	}

	s := m.store
	if s.CommitHook != nil {
		if err := s.CommitHook(m.project, ops); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]*memEntity, len(s.entities))
	for id, e := range s.entities {
		staged[id] = e
	}
	for _, op := range ops {
		switch op.Type {
		case OpCreate:
			if _, exists := staged[op.ID]; exists {
				return fmt.Errorf("%s %s already exists", op.Kind, op.ID)
			}
			if err := checkUnique(staged, op); err != nil {
				return err
			}
			staged[op.ID] = &memEntity{kind: op.Kind, project: op.Project, raw: encode(op.Payload)}
		case OpUpdate:
			current, ok := staged[op.ID]
			if !ok || current.kind != op.Kind {
				return fmt.Errorf("%s %s not found", op.Kind, op.ID)
			}
			merged := decode(current.raw)
			for key, value := range op.Payload {
				if key == domain.FieldAttrib {
					attrib := merged.Attrib()
					for k, v := range value.(map[string]any) {
						attrib[k] = v
					}
					merged[domain.FieldAttrib] = attrib
					continue
				}
				merged[key] = value
			}
			staged[op.ID] = &memEntity{kind: current.kind, project: current.project, raw: encode(merged)}
		}
	}

	s.entities = staged
	s.ops = append(s.ops, ops...)
	return nil
}

// checkUnique mirrors the unique indexes of the SQL schema.
func checkUnique(staged map[string]*memEntity, op Op) error {
	for _, e := range staged {
		if e.kind != op.Kind || e.project != op.Project {
			continue
		}
		other := decode(e.raw)
		switch op.Kind {
		case domain.KindProduct:
			if other.String(domain.FieldName) == op.Payload.String(domain.FieldName) &&
				other.String(domain.FieldFolderID) == op.Payload.String(domain.FieldFolderID) {
				return fmt.Errorf("duplicate product %s", op.Payload.String(domain.FieldName))
			}
		case domain.KindVersion:
			if other[domain.FieldVersion] == op.Payload[domain.FieldVersion] &&
				other.String(domain.FieldProductID) == op.Payload.String(domain.FieldProductID) {
				return fmt.Errorf("duplicate version %v", op.Payload[domain.FieldVersion])
			}
		case domain.KindRepresentation:
			if strings.EqualFold(other.String(domain.FieldName), op.Payload.String(domain.FieldName)) &&
				other.String(domain.FieldVersionID) == op.Payload.String(domain.FieldVersionID) {
				return fmt.Errorf("duplicate representation %s", op.Payload.String(domain.FieldName))
			}
		}
	}
	return nil
}

func encode(e domain.Entity) []byte {
	raw, err := json.Marshal(e)
	if err != nil {
		panic(fmt.Sprintf("testsupport: encode entity: %v", err))
	}
	return raw
}

func decode(raw []byte) domain.Entity {
	var e domain.Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		panic(fmt.Sprintf("testsupport: decode entity: %v", err))
	}
	return e
}
