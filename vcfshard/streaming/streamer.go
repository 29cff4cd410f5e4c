package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/variantkit/vcfshard/vcfshard/vcf"
)

// ErrSourceUnavailable marks locators that cannot be opened or read:
// missing files, network failures, unsupported schemes. Transport
// problems mid-stream wrap it too, so the orchestrator's retry policy
// can match it with errors.Is.
var ErrSourceUnavailable = errors.New("VCF source unavailable")

// VCFStreamer yields variant records from one source in file order.
// Implementations are single-pass and not safe for concurrent use; the
// sharding stage drains them on a single goroutine.
type VCFStreamer interface {
	// Header returns the stream's preamble, parsed during Open and held
	// for the stream's lifetime.
	Header() *vcf.Header

	// Next returns the next record passing the region filter, or io.EOF
	// when the source is exhausted.
	Next() (*vcf.Record, error)

	// Close releases the underlying file or network resources. Safe to
	// call multiple times and after an abandoned iteration.
	Close() error
}

// Open creates the streamer matching the locator's scheme: plain paths
// and file:// URLs stream from the local filesystem, https:// URLs
// stream via incremental range requests. The header is parsed before
// Open returns, so format problems surface immediately.
func Open(ctx context.Context, source string, region vcf.Region) (VCFStreamer, error) {
	parsed, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed locator %q: %v", ErrSourceUnavailable, source, err)
	}

	switch parsed.Scheme {
	case "https":
		slog.Debug("creating HTTPS streamer", "source", source)
		return openHTTPS(ctx, source, region)
	case "", "file":
		path := source
		if parsed.Scheme == "file" {
			path = parsed.Path
		}
		slog.Debug("creating local file streamer", "path", path)
		return openLocal(path, region)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q (supported: file://, https://, local paths)",
			ErrSourceUnavailable, parsed.Scheme)
	}
}
