package storage

import "context"

// Handler is the capability set the pipeline needs from persistent
// storage. Paths are always relative to the handler's root; backends are
// swappable without touching callers.
type Handler interface {
	// Write persists data at path. The write is atomic from a reader's
	// perspective: no caller ever observes a partial object, and a
	// failed write leaves nothing visible at path.
	Write(ctx context.Context, path string, data []byte) error

	// Read returns the full contents at path.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns every path under prefix, in lexical order. With the
	// zero-padded shard naming that equals shard index order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists reports whether path holds an object.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes the object at path. Deleting a missing path is not
	// an error.
	Delete(ctx context.Context, path string) error

	// URI renders path as a full locator (file:///... or s3://...) for
	// logs and manifests.
	URI(path string) string
}
