package domain

import (
	"strings"

	"github.com/google/uuid"
)

type EntityKind string

const (
	KindFolder         EntityKind = "folder"
	KindProduct        EntityKind = "product"
	KindVersion        EntityKind = "version"
	KindRepresentation EntityKind = "representation"
)

// Reserved entity keys shared by every kind.
const (
	FieldID     = "id"
	FieldName   = "name"
	FieldData   = "data"
	FieldAttrib = "attrib"
)

// Kind specific top-level keys.
const (
	FieldProductType = "productType"
	FieldFolderID    = "folderId"
	FieldVersion     = "version"
	FieldProductID   = "productId"
	FieldTaskID      = "taskId"
	FieldVersionID   = "versionId"
	FieldFiles       = "files"
)

// Entity is the payload exchanged with the store: top-level fields plus the
// reserved "attrib" map holding schema-declared attributes.
type Entity map[string]any

func (e Entity) ID() string {
	return e.String(FieldID)
}

func (e Entity) String(key string) string {
	if e == nil {
		return ""
	}
	s, _ := e[key].(string)
	return s
}

// Attrib returns the attribute map, or an empty map if the entity has none.
func (e Entity) Attrib() map[string]any {
	if e == nil {
		return map[string]any{}
	}
	if attrib, ok := e[FieldAttrib].(map[string]any); ok {
		return attrib
	}
	return map[string]any{}
}

// Data returns the free-form data map, or an empty map if the entity has none.
func (e Entity) Data() map[string]any {
	if e == nil {
		return map[string]any{}
	}
	if data, ok := e[FieldData].(map[string]any); ok {
		return data
	}
	return map[string]any{}
}

// File is one entry of a representation file list.
type File struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func orNewID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func copyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// NewProductEntity builds a product payload. An empty id gets a fresh one.
func NewProductEntity(name, productType, folderID string, data, attrib map[string]any, id string) Entity {
	return Entity{
		FieldID:          orNewID(id),
		FieldName:        name,
		FieldProductType: productType,
		FieldFolderID:    folderID,
		FieldData:        copyMap(data),
		FieldAttrib:      copyMap(attrib),
	}
}

// NewVersionEntity builds a version payload. taskID may be empty.
func NewVersionEntity(version int, productID, taskID string, data, attrib map[string]any, id string) Entity {
	e := Entity{
		FieldID:        orNewID(id),
		FieldVersion:   version,
		FieldProductID: productID,
		FieldData:      copyMap(data),
		FieldAttrib:    copyMap(attrib),
	}
	if taskID != "" {
		e[FieldTaskID] = taskID
	}
	return e
}

// NewRepresentationEntity builds a representation payload.
func NewRepresentationEntity(name, versionID string, files []File, data, attrib map[string]any, id string) Entity {
	if files == nil {
		files = []File{}
	}
	return Entity{
		FieldID:        orNewID(id),
		FieldName:      name,
		FieldVersionID: versionID,
		FieldFiles:     files,
		FieldData:      copyMap(data),
		FieldAttrib:    copyMap(attrib),
	}
}

// RepresentationKey is the case-insensitive identity of a representation
// within its version.
func RepresentationKey(name string) string {
	return strings.ToLower(name)
}
