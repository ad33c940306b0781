package xupload

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Resolver maps caller-supplied relative paths onto locations under a data root.
type Resolver struct {
	root string
}

// NewResolver creates a Resolver for the given data root. The root is made absolute.
func NewResolver(root string) (*Resolver, error) {
	if root == "" {
		return nil, fmt.Errorf("new resolver: %w: empty root", ErrInvalidPath)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("new resolver: %w", err)
	}
	return &Resolver{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute data root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve validates p and returns its location under the root.
// It rejects:
//   - empty paths
//   - absolute paths (leading "/")
//   - any ".." segment
//   - NUL bytes
//   - anything whose joined absolute form does not start with root + separator
func (r *Resolver) Resolve(p string) (Location, error) {
	if p == "" || strings.ContainsRune(p, 0) {
		return Location{}, fmt.Errorf("resolve %q: %w", p, ErrInvalidPath)
	}
	if strings.HasPrefix(p, "/") || filepath.IsAbs(p) {
		return Location{}, fmt.Errorf("resolve %q: %w: absolute path", p, ErrInvalidPath)
	}
	for _, seg := range strings.Split(filepath.ToSlash(p), "/") {
		if seg == ".." {
			return Location{}, fmt.Errorf("resolve %q: %w: parent segment", p, ErrInvalidPath)
		}
	}

	abs := filepath.Join(r.root, p)
	if !strings.HasPrefix(abs, r.root+string(filepath.Separator)) {
		return Location{}, fmt.Errorf("resolve %q: %w: outside root", p, ErrInvalidPath)
	}

	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == "." {
		return Location{}, fmt.Errorf("resolve %q: %w", p, ErrInvalidPath)
	}

	return Location{Root: r.root, Rel: rel}, nil
}

// Location is a resolved object base path. Rel never escapes Root.
type Location struct {
	Root string
	Rel  string
}

// Abs returns the absolute base path, without any artifact suffix.
func (l Location) Abs() string {
	return filepath.Join(l.Root, l.Rel)
}

// DataName is the root-relative name of the data artifact.
func (l Location) DataName() string {
	return l.Rel + DataSuffix
}

// MetaName is the root-relative name of the metadata artifact.
func (l Location) MetaName() string {
	return l.Rel + MetaSuffix
}

// DataPath is the absolute path of the data artifact.
func (l Location) DataPath() string {
	return l.Abs() + DataSuffix
}

// MetaPath is the absolute path of the metadata artifact.
func (l Location) MetaPath() string {
	return l.Abs() + MetaSuffix
}

// Collection is the root-relative directory holding the object's artifacts.
// It is "." for objects placed directly in the root.
func (l Location) Collection() string {
	return filepath.Dir(l.Rel)
}

// Scope is the directory whose collections share a quota with this object:
// the parent of the collection, clamped to the root.
func (l Location) Scope() string {
	c := l.Collection()
	if c == "." {
		return "."
	}
	return filepath.Dir(c)
}
