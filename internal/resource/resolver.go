// Package resource resolves bundled application resources and the
// app-resource:// scheme.
package resource

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Scheme prefixes a URL that names a bundled resource.
const Scheme = "app-resource://"

// Resolver maps resource names to files under a root directory.
type Resolver struct {
	root string // absolute
}

// NewResolver creates a resolver rooted at dir. The directory need not exist
// yet.
func NewResolver(dir string) (*Resolver, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resource: resolve root: %w", err)
	}
	return &Resolver{root: abs}, nil
}

// Root returns the resources directory.
func (r *Resolver) Root() string { return r.root }

// Path returns the absolute path of name inside the resources directory, or
// "" if name escapes it.
func (r *Resolver) Path(name string) string {
	p, err := r.safePath(name)
	if err != nil {
		return ""
	}
	return p
}

// Resolve turns an app-resource:// URL into a file path. Anything that is
// not a resource URL, cannot be decoded or escapes the root yields "".
func (r *Resolver) Resolve(rawURL string) string {
	rest, ok := strings.CutPrefix(rawURL, Scheme)
	if !ok || rest == "" {
		return ""
	}
	// Drop any query or fragment the caller carried along.
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	decoded, err := url.PathUnescape(rest)
	if err != nil {
		return ""
	}
	return r.Path(decoded)
}

// Open opens a resource for reading.
func (r *Resolver) Open(name string) (*os.File, error) {
	p, err := r.safePath(name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// safePath rejects absolute names and any result outside the root.
func (r *Resolver) safePath(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("resource: empty name")
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("resource: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(r.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("resource: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, r.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("resource: path escapes resources root: %s", rel)
	}
	return abs, nil
}
