// Package storage implements the physical side of the engine: tenant-rooted
// path resolution, the storage adapter contract with disk and S3 backends,
// MIME inference and the pure path-rewrite helpers used for subtree
// rename/move.
package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/cloudcrate/cloudcrate/internal/common"
	"github.com/cloudcrate/cloudcrate/internal/models"
)

// Resolver derives and validates physical paths from a tenant and a relative
// path. It is the security boundary for every filesystem touch: all physical
// path construction must go through it, no component concatenates paths
// itself.
type Resolver struct {
	basePath string
}

// NewResolver returns a resolver rooted at basePath, the directory that
// holds every tenant root.
func NewResolver(basePath string) *Resolver {
	return &Resolver{basePath: filepath.Clean(basePath)}
}

// BasePath returns the storage base directory.
func (r *Resolver) BasePath() string { return r.basePath }

// Within normalizes rel against the tenant root and returns the cleaned
// path, still relative to the base path (slash-separated, starting with the
// tenant root). It fails with ErrorAccessDenied when rel is absolute, names
// a drive, or escapes the tenant root through ".." segments, regardless of
// which separator style the input uses.
func (r *Resolver) Within(tenant models.Tenant, rel string) (string, error) {
	rel = strings.ReplaceAll(rel, `\`, "/")

	if path.IsAbs(rel) || hasDrivePrefix(rel) {
		return "", fmt.Errorf("path %q: %w", rel, common.ErrorAccessDenied)
	}

	root := tenant.Root()
	joined := path.Clean(path.Join(root, rel))
	if joined != root && !strings.HasPrefix(joined, root+"/") {
		return "", fmt.Errorf("path %q escapes tenant root: %w", rel, common.ErrorAccessDenied)
	}
	return joined, nil
}

// Resolve joins the base path with the tenant-confined relative path and
// returns an absolute path in the platform's separator style. Fails with
// ErrorAccessDenied under the same conditions as Within.
func (r *Resolver) Resolve(tenant models.Tenant, rel string) (string, error) {
	within, err := r.Within(tenant, rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.basePath, filepath.FromSlash(within)), nil
}

// TenantRoot returns the absolute path of the tenant's storage root.
func (r *Resolver) TenantRoot(tenant models.Tenant) string {
	return filepath.Join(r.basePath, filepath.FromSlash(tenant.Root()))
}

// hasDrivePrefix reports whether p starts with a Windows drive letter
// ("C:..."), which filepath.IsAbs does not catch on non-Windows hosts.
func hasDrivePrefix(p string) bool {
	return len(p) >= 2 && p[1] == ':' &&
		(('a' <= p[0] && p[0] <= 'z') || ('A' <= p[0] && p[0] <= 'Z'))
}
