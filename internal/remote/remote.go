// Package remote stores the encrypted ledger snapshot in a shared location
// with optimistic concurrency: every write names the version it replaces.
package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	// ErrNotFound means no object exists at the path.
	ErrNotFound = errors.New("remote object not found")
	// ErrVersionConflict means the object changed since the expected version
	// was read, or already exists on a create-only write.
	ErrVersionConflict = errors.New("remote version conflict")
)

// Object is a stored blob and its opaque version token.
type Object struct {
	Data    []byte
	Version string
}

// ObjectStore is the remote the sync engine pushes to and pulls from.
type ObjectStore interface {
	Get(ctx context.Context, path string) (Object, error)
	// Put writes data if the current version equals expected. An empty
	// expected version only succeeds when nothing exists yet. It returns the
	// new version.
	Put(ctx context.Context, path string, data []byte, expected string) (string, error)
}

// ContentVersion is the version token used by stores without native
// versioning: the hex SHA-256 of the content.
func ContentVersion(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
