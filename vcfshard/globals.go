package internal

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for config discovery and log fields
	DefaultAppName       = "vcfshard"
	DefaultConfigPath    = filepath.Join("etc", DefaultAppName)
	DefaultOutputRoot    = "/data"
	DefaultLinesPerShard = 10000

	// DefaultShardDirName is the per-run subdirectory holding shard artifacts
	DefaultShardDirName = "shards"
	// DefaultManifestName is the completion-marker artifact under each run directory
	DefaultManifestName = "manifest.json"
)

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Str("app", DefaultAppName).Logger()
}
