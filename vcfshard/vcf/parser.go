package vcf

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Parser reads a VCF text stream sequentially: the header once, then one
// record per call. It holds no more than one line in memory at a time,
// so peak memory does not scale with input size.
type Parser struct {
	r      *bufio.Reader
	header *Header
	line   int
}

// NewParser wraps an already-decompressed text stream.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: bufio.NewReaderSize(r, 256*1024)}
}

// ParseHeader consumes the preamble up to and including the #CHROM line.
// It must be called exactly once, before the first Next.
func (p *Parser) ParseHeader() (*Header, error) {
	if p.header != nil {
		return p.header, nil
	}

	header := &Header{}
	for {
		line, err := p.readLine()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: stream ended before #CHROM line", ErrFormat)
		}
		if err != nil {
			return nil, err
		}

		switch {
		case strings.HasPrefix(line, "##"):
			if p.line == 1 && !strings.HasPrefix(line, "##fileformat=") {
				return nil, fmt.Errorf("%w: first line is %q, want ##fileformat", ErrFormat, truncate(line, 40))
			}
			if err := header.addMetaLine(line); err != nil {
				return nil, err
			}
		case strings.HasPrefix(line, "#"):
			if p.line == 1 {
				return nil, fmt.Errorf("%w: missing ##fileformat line", ErrFormat)
			}
			if err := header.addColumnLine(line); err != nil {
				return nil, err
			}
			p.header = header
			return header, nil
		default:
			return nil, fmt.Errorf("%w: line %d: data before #CHROM line", ErrFormat, p.line)
		}
	}
}

// Next returns the next record, or io.EOF when the stream is exhausted.
func (p *Parser) Next() (*Record, error) {
	if p.header == nil {
		return nil, fmt.Errorf("%w: ParseHeader must run before Next", ErrFormat)
	}
	for {
		line, err := p.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			return nil, fmt.Errorf("%w: line %d: header line after records", ErrFormat, p.line)
		}
		rec, err := parseRecord(line, p.header)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", p.line, err)
		}
		return rec, nil
	}
}

// readLine returns the next line without its terminator. Lines of any
// length are supported; a final line without a newline is still
// delivered before io.EOF.
func (p *Parser) readLine() (string, error) {
	line, err := p.r.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	p.line++
	return strings.TrimRight(line, "\r\n"), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
