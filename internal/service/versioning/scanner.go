// Package versioning derives the next free version number of an artifact
// family from the files already present on disk.
package versioning

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
)

// DefaultPattern matches root layers such as "hero_USD_v00003.usda".
const DefaultPattern = `_USD_v(\d+)\.usda$`

// DirLister lists a directory. os.ReadDir satisfies it through OSLister.
type DirLister interface {
	ReadDir(dir string) ([]fs.DirEntry, error)
}

type OSLister struct{}

func (OSLister) ReadDir(dir string) ([]fs.DirEntry, error) {
	return os.ReadDir(dir)
}

// DirectoryUnavailableError means the directory exists (or could not be
// proven absent) but cannot be listed.
type DirectoryUnavailableError struct {
	Dir string
	Err error
}

func (e *DirectoryUnavailableError) Error() string {
	return fmt.Sprintf("version directory %s unavailable: %v", e.Dir, e.Err)
}

func (e *DirectoryUnavailableError) Unwrap() error {
	return e.Err
}

// Scanner extracts version numbers from file names. It never keeps a counter:
// every call re-derives the answer from the directory listing.
type Scanner struct {
	pattern *regexp.Regexp
	lister  DirLister
}

type Option func(*Scanner)

// WithLister replaces the filesystem used for listing.
func WithLister(l DirLister) Option {
	return func(s *Scanner) {
		s.lister = l
	}
}

// NewScanner compiles pattern, which must contain exactly one capture group
// holding the integer version.
func NewScanner(pattern string, opts ...Option) (*Scanner, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid version pattern %q: %w", pattern, err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("version pattern %q must have exactly one capture group, has %d", pattern, re.NumSubexp())
	}

	s := &Scanner{pattern: re, lister: OSLister{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Pattern returns the compiled file name pattern.
func (s *Scanner) Pattern() string {
	return s.pattern.String()
}

// Existing returns the sorted version numbers found in dir. A directory that
// does not exist yet holds no versions.
func (s *Scanner) Existing(dir string) ([]int, error) {
	entries, err := s.lister.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &DirectoryUnavailableError{Dir: dir, Err: err}
	}

	var versions []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := s.pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		v, err := strconv.Atoi(match[1])
		if err != nil || v <= 0 {
			continue
		}
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions, nil
}

// NextVersion returns max(existing)+1, or 1 when nothing matches.
func (s *Scanner) NextVersion(dir string) (int, error) {
	versions, err := s.Existing(dir)
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 1, nil
	}
	return versions[len(versions)-1] + 1, nil
}
