// Package usd renders and writes root aggregation layers.
package usd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RootLayer is a .usda layer that sublayers every published file of a
// version under a single default prim.
type RootLayer struct {
	DefaultPrim string
	Sublayers   []string
}

// Render returns the layer in usda text form. Sublayer order is preserved;
// earlier layers are stronger.
func (l RootLayer) Render() []byte {
	var buf bytes.Buffer
	buf.WriteString("#usda 1.0\n(\n")
	fmt.Fprintf(&buf, "    defaultPrim = %q\n", primName(l.DefaultPrim))
	buf.WriteString("    subLayers = [\n")
	for i, layer := range l.Sublayers {
		sep := ","
		if i == len(l.Sublayers)-1 {
			sep = ""
		}
		fmt.Fprintf(&buf, "        @%s@%s\n", filepath.ToSlash(layer), sep)
	}
	buf.WriteString("    ]\n)\n\n")
	fmt.Fprintf(&buf, "def Xform %q\n{\n}\n", primName(l.DefaultPrim))
	return buf.Bytes()
}

// primName makes name a valid prim identifier.
func primName(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "root"
	}
	return b.String()
}

// FileWriter writes root layers to the local filesystem.
type FileWriter struct {
	DirPerm  os.FileMode
	FilePerm os.FileMode
}

func NewFileWriter() *FileWriter {
	return &FileWriter{DirPerm: 0o755, FilePerm: 0o644}
}

// WriteRoot writes content to path through a temporary file in the same
// directory, so readers never observe a partial layer.
func (w *FileWriter) WriteRoot(ctx context.Context, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, w.DirPerm); err != nil {
		return fmt.Errorf("failed to create layer directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp layer in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write layer %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close layer %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), w.FilePerm); err != nil {
		return fmt.Errorf("failed to chmod layer %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move layer into %s: %w", path, err)
	}
	return nil
}
