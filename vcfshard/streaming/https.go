package streaming

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/variantkit/vcfshard/vcfshard/vcf"
)

// rangeChunkSize is how many bytes each Range request asks for. Peak
// memory stays bounded by the HTTP buffers regardless of resource size.
const rangeChunkSize = 4 << 20

// httpsStreamer streams a remote VCF over HTTPS by issuing sequential
// byte-range requests, never holding more than one chunk's buffers. A
// server that ignores Range (plain 200) degrades to streaming the single
// response body, which is still incremental.
type httpsStreamer struct {
	*parserStream
	cancel context.CancelFunc
}

func openHTTPS(ctx context.Context, source string, region vcf.Region) (VCFStreamer, error) {
	if !strings.HasPrefix(source, "https://") {
		return nil, fmt.Errorf("%w: source must be an HTTPS URL, got %s", ErrSourceUnavailable, source)
	}

	ctx, cancel := context.WithCancel(ctx)
	body := &rangeReader{
		ctx:    ctx,
		client: &http.Client{Timeout: 0}, // per-chunk reads are bounded by ctx
		url:    source,
		size:   -1,
	}

	// Probe the first chunk now so a dead endpoint fails Open, not the
	// first Next.
	if err := body.fetch(); err != nil {
		cancel()
		return nil, err
	}
	slog.Info("opened remote VCF", "url", source, "totalBytes", body.size, "rangeSupport", !body.whole)

	stream, err := newParserStream(source, body, region, body)
	if err != nil {
		cancel()
		return nil, err
	}
	return &httpsStreamer{parserStream: stream, cancel: cancel}, nil
}

func (s *httpsStreamer) Close() error {
	err := s.parserStream.Close()
	s.cancel()
	return err
}

// rangeReader turns sequential Range requests into one contiguous byte
// stream. It implements io.Reader and io.Closer; Close releases the
// in-flight response body.
type rangeReader struct {
	ctx    context.Context
	client *http.Client
	url    string

	offset int64
	size   int64 // -1 until learned from Content-Range
	whole  bool  // server ignored Range; current body is the whole resource

	body io.ReadCloser
}

func (r *rangeReader) Read(p []byte) (int, error) {
	for {
		if r.body != nil {
			n, err := r.body.Read(p)
			r.offset += int64(n)
			if err == io.EOF {
				r.body.Close()
				r.body = nil
				if r.whole {
					return n, io.EOF
				}
				err = nil
			}
			if n > 0 || err != nil {
				return n, err
			}
			continue
		}

		if r.size >= 0 && r.offset >= r.size {
			return 0, io.EOF
		}
		if err := r.fetch(); err != nil {
			if err == io.EOF {
				return 0, io.EOF
			}
			return 0, err
		}
	}
}

// fetch requests the next chunk starting at the current offset.
func (r *rangeReader) fetch() error {
	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, r.url, err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", r.offset, r.offset+rangeChunkSize-1))

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, r.url, err)
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		if total, ok := contentRangeTotal(resp.Header.Get("Content-Range")); ok {
			r.size = total
		}
		r.body = resp.Body
		return nil
	case http.StatusOK:
		resp.Body.Close()
		if r.offset != 0 {
			return fmt.Errorf("%w: %s: server stopped honoring Range requests mid-stream", ErrSourceUnavailable, r.url)
		}
		// No Range support at all: re-issue without the header and
		// stream the single body.
		return r.fetchWhole()
	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		r.size = r.offset
		return io.EOF
	default:
		resp.Body.Close()
		return fmt.Errorf("%w: %s: unexpected status %s", ErrSourceUnavailable, r.url, resp.Status)
	}
}

func (r *rangeReader) fetchWhole() error {
	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, r.url, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, r.url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("%w: %s: unexpected status %s", ErrSourceUnavailable, r.url, resp.Status)
	}
	r.whole = true
	r.body = resp.Body
	return nil
}

func (r *rangeReader) Close() error {
	if r.body != nil {
		err := r.body.Close()
		r.body = nil
		return err
	}
	return nil
}

// contentRangeTotal extracts the total length from a
// "bytes start-end/total" header value.
func contentRangeTotal(h string) (int64, bool) {
	_, totalStr, found := strings.Cut(h, "/")
	if !found || totalStr == "*" {
		return 0, false
	}
	total, err := strconv.ParseInt(strings.TrimSpace(totalStr), 10, 64)
	if err != nil {
		return 0, false
	}
	return total, true
}

// interface conformance
var (
	_ VCFStreamer = (*localStreamer)(nil)
	_ VCFStreamer = (*httpsStreamer)(nil)
)
