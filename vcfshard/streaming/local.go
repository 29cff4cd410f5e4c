package streaming

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/variantkit/vcfshard/vcfshard/vcf"
)

// localStreamer streams a VCF from the local filesystem. Compressed
// (.vcf.gz, bgzip) and plain files are both handled via magic-byte
// sniffing in the shared stream core.
type localStreamer struct {
	*parserStream
}

func openLocal(path string, region vcf.Region) (VCFStreamer, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: VCF file not found: %s", ErrSourceUnavailable, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceUnavailable, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	slog.Info("opened local VCF file", "path", path, "sizeBytes", info.Size())

	stream, err := newParserStream(path, f, region, f)
	if err != nil {
		return nil, err
	}
	return &localStreamer{parserStream: stream}, nil
}
