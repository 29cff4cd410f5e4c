package vcf

import (
	"fmt"
	"io"
)

// Write renders a complete, self-contained VCF document: the full header
// followed by the given records in order. Compression is the caller's
// concern.
func Write(w io.Writer, header *Header, records []*Record) error {
	if header == nil || len(header.Lines()) == 0 {
		return fmt.Errorf("%w: cannot write a shard without a header", ErrFormat)
	}
	if _, err := w.Write(header.Encode()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, rec := range records {
		if _, err := io.WriteString(w, rec.Encode()); err != nil {
			return fmt.Errorf("writing record %s: %w", rec, err)
		}
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("writing record %s: %w", rec, err)
		}
	}
	return nil
}
