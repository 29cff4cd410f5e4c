package streaming

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/variantkit/vcfshard/vcfshard/vcf"
)

// parserStream is the shared body of both streamer variants: it owns the
// decompression layer, the parser, and the region scan-and-skip filter.
// The variants differ only in how the raw byte stream is produced.
type parserStream struct {
	source string
	parser *vcf.Parser
	header *vcf.Header
	region vcf.Region

	// sawContig flips once the target contig is reached; because the
	// input is coordinate-sorted, leaving the contig (or passing the
	// interval end) ends the scan early.
	sawContig bool
	done      bool

	closers   []io.Closer
	closeOnce sync.Once
	closeErr  error
}

// newParserStream wires the decompression layer and parses the header.
// On any failure the provided closers are released before returning.
func newParserStream(source string, raw io.Reader, region vcf.Region, closers ...io.Closer) (*parserStream, error) {
	s := &parserStream{source: source, region: region, closers: closers}

	decoded, err := decodeIfCompressed(raw)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, source, err)
	}

	s.parser = vcf.NewParser(decoded)
	header, err := s.parser.ParseHeader()
	if err != nil {
		s.Close()
		if errors.Is(err, vcf.ErrFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: reading header: %v", ErrSourceUnavailable, source, err)
	}
	s.header = header

	if region.Contig != "" && !header.HasContig(region.Contig) {
		// Not an error: an unknown contig simply selects nothing, same
		// as an interval with no overlapping records.
		s.done = true
	}
	return s, nil
}

func (s *parserStream) Header() *vcf.Header {
	return s.header
}

func (s *parserStream) Next() (*vcf.Record, error) {
	if s.done {
		return nil, io.EOF
	}
	for {
		rec, err := s.parser.Next()
		if err == io.EOF {
			s.done = true
			return nil, io.EOF
		}
		if err != nil {
			if errors.Is(err, vcf.ErrFormat) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, s.source, err)
		}

		if s.region.IsZero() {
			return rec, nil
		}

		onContig := rec.Chrom == s.region.Contig
		if onContig {
			s.sawContig = true
			if s.region.End != 0 && rec.Pos >= s.region.End {
				s.done = true
				return nil, io.EOF
			}
		} else if s.sawContig {
			// Coordinate-sorted input groups records by contig, so the
			// first record past the target contig ends the scan.
			s.done = true
			return nil, io.EOF
		}

		if s.region.Overlaps(rec.Chrom, rec.Pos, len(rec.Ref)) {
			return rec, nil
		}
	}
}

func (s *parserStream) Close() error {
	s.closeOnce.Do(func() {
		for _, c := range s.closers {
			if err := c.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}

// decodeIfCompressed sniffs the gzip magic bytes and inserts a
// decompressor when present. BGZF inputs are gzip-conformant
// multi-member streams, so the same path covers .vcf, .vcf.gz and .bcf
// companions compressed with bgzip.
func decodeIfCompressed(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	magic, err := br.Peek(2)
	if err != nil {
		if err == io.EOF {
			// Too short to be compressed; let the parser report it.
			return br, nil
		}
		return nil, err
	}
	if magic[0] != 0x1f || magic[1] != 0x8b {
		return br, nil
	}
	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	return zr, nil
}
