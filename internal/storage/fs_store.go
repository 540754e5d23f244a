package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/skycms/skycms/internal/foundation/errors"
)

// FSStore stores artifacts on the local filesystem:
//
//	<root>/
//	  <tenant-id>/
//	    index.html
//	    toc.json
//	    general/
//	      terms.html
//
// Writes go through a temp file and rename so readers never observe a
// half-written artifact.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem store rooted at the given directory.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, errors.StorageError("failed to create artifact root").
			WithCause(err).
			WithContext("root", root).
			Build()
	}
	return &FSStore{root: root}, nil
}

// TenantRoot returns the artifact directory for a tenant.
func (s *FSStore) TenantRoot(tenantID string) string {
	return filepath.Join(s.root, tenantID)
}

func (s *FSStore) Write(ctx context.Context, tenantID, artifactPath string, data []byte) error {
	target, err := s.resolve(tenantID, artifactPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return errors.StorageError("failed to create artifact directory").
			WithCause(err).
			WithContext("path", artifactPath).
			Build()
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return errors.StorageError("failed to write artifact").
			WithCause(err).
			WithContext("path", artifactPath).
			Build()
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return errors.StorageError("failed to replace artifact").
			WithCause(err).
			WithContext("path", artifactPath).
			Build()
	}
	return nil
}

func (s *FSStore) Read(ctx context.Context, tenantID, artifactPath string) ([]byte, error) {
	target, err := s.resolve(tenantID, artifactPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError("artifact not found").
				WithContext("path", artifactPath).
				Build()
		}
		return nil, errors.StorageError("failed to read artifact").
			WithCause(err).
			WithContext("path", artifactPath).
			Build()
	}
	return data, nil
}

func (s *FSStore) Exists(ctx context.Context, tenantID, artifactPath string) (bool, error) {
	target, err := s.resolve(tenantID, artifactPath)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.StorageError("failed to stat artifact").
			WithCause(err).
			WithContext("path", artifactPath).
			Build()
	}
	return true, nil
}

func (s *FSStore) Delete(ctx context.Context, tenantID, artifactPath string) error {
	target, err := s.resolve(tenantID, artifactPath)
	if err != nil {
		return err
	}

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return errors.StorageError("failed to delete artifact").
			WithCause(err).
			WithContext("path", artifactPath).
			Build()
	}

	// Prune now-empty parent directories up to the tenant root.
	dir := filepath.Dir(target)
	tenantRoot := s.TenantRoot(tenantID)
	for dir != tenantRoot && strings.HasPrefix(dir, tenantRoot) {
		if os.Remove(dir) != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

func (s *FSStore) List(ctx context.Context, tenantID string) ([]string, error) {
	tenantRoot := s.TenantRoot(tenantID)

	var paths []string
	err := filepath.WalkDir(tenantRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(tenantRoot, path)
		if err != nil {
			return err
		}
		paths = append(paths, "/"+filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.StorageError("failed to list artifacts").
			WithCause(err).
			WithContext("tenant", tenantID).
			Build()
	}

	sort.Strings(paths)
	return paths, nil
}

func (s *FSStore) Close() error {
	return nil
}

// resolve maps a tenant and artifact path to a filesystem path, rejecting
// anything that would escape the tenant's subtree.
func (s *FSStore) resolve(tenantID, artifactPath string) (string, error) {
	rel := strings.TrimPrefix(artifactPath, "/")
	if rel == "" || tenantID == "" {
		return "", errors.ValidationError("artifact path and tenant are required").Build()
	}

	target := filepath.Join(s.TenantRoot(tenantID), filepath.FromSlash(rel))
	if !strings.HasPrefix(target, s.TenantRoot(tenantID)+string(filepath.Separator)) {
		return "", errors.ValidationError("artifact path escapes tenant root").
			WithContext("path", artifactPath).
			Build()
	}
	return target, nil
}
