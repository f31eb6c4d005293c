package domain

import "strings"

// Folder is the parent of products. Path is project-relative and starts with
// a slash: "/assets/characters/hero".
type Folder struct {
	ID          string  `json:"id" db:"id"`
	ProjectName string  `json:"project_name" db:"project_name"`
	Name        string  `json:"name" db:"name"`
	ParentID    *string `json:"parent_id,omitempty" db:"parent_id"`
	Path        string  `json:"path" db:"path"`
	Level       int     `json:"level" db:"level"`
}

// Hierarchy is the parent path without the leading slash, as used by path
// templates ("assets/characters" for "/assets/characters/hero").
func (f *Folder) Hierarchy() string {
	parent := f.Path
	if i := strings.LastIndex(parent, "/"); i >= 0 {
		parent = parent[:i]
	}
	return strings.Trim(parent, "/")
}

// NormalizeFolderPath turns "assets/characters/hero/" into "/assets/characters/hero".
func NormalizeFolderPath(p string) string {
	parts := SplitFolderPath(p)
	return "/" + strings.Join(parts, "/")
}

// SplitFolderPath returns the non-empty path segments.
func SplitFolderPath(p string) []string {
	raw := strings.Split(strings.ReplaceAll(p, "\\", "/"), "/")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
