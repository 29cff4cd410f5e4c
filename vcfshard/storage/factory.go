package storage

import (
	"fmt"
	"log/slog"
	"strings"
)

// Options carries everything a backend may need; unused fields are
// ignored by the other backend.
type Options struct {
	// Backend selects the implementation: "local" or "s3". Empty defaults
	// to local.
	Backend string `mapstructure:"backend"`
	// BasePath is the local backend's root directory.
	BasePath string `mapstructure:"basePath"`
	// ObjectStore configures the s3 backend.
	ObjectStore ObjectStoreConfig `mapstructure:"objectStore"`
}

// NewHandler creates the storage backend selected by opts.Backend.
func NewHandler(opts Options) (Handler, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	switch backend {
	case "", "local":
		base := opts.BasePath
		if base == "" {
			base = "/data"
		}
		slog.Debug("creating local storage handler", "basePath", base)
		return NewLocalHandler(base)
	case "s3", "minio", "objectstore":
		slog.Debug("creating object storage handler",
			"endpoint", opts.ObjectStore.Endpoint, "bucket", opts.ObjectStore.Bucket)
		return NewObjectStoreHandler(opts.ObjectStore)
	default:
		return nil, fmt.Errorf("%w: %q (supported: local, s3)", ErrUnsupported, opts.Backend)
	}
}
