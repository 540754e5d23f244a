// Package storage persists the static artifacts produced by publishing:
// rendered pages and the table-of-contents document, laid out per tenant.
package storage

import "context"

// ArtifactStore stores rendered site artifacts addressed by tenant and
// artifact path. Artifact paths are absolute site paths like
// "/index.html" or "/general/terms.html".
type ArtifactStore interface {
	// Write stores an artifact, replacing any previous content.
	Write(ctx context.Context, tenantID, artifactPath string, data []byte) error

	// Read returns an artifact's content. Returns a not-found error when
	// the artifact does not exist.
	Read(ctx context.Context, tenantID, artifactPath string) ([]byte, error)

	// Exists reports whether the artifact is present.
	Exists(ctx context.Context, tenantID, artifactPath string) (bool, error)

	// Delete removes an artifact. Deleting a missing artifact is not an
	// error; unpublish must be idempotent.
	Delete(ctx context.Context, tenantID, artifactPath string) error

	// List returns the artifact paths stored for a tenant, sorted.
	List(ctx context.Context, tenantID string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
