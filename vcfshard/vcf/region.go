package vcf

import (
	"fmt"
	"strconv"
	"strings"
)

// Region defines a genomic interval of interest on a single contig.
// Start and End are 1-based and half-open: a record overlaps the region
// when any of its reference bases falls inside [Start, End). If End is
// zero the region extends to the end of the contig; if Start is also
// zero the region matches the whole contig.
type Region struct {
	Contig string
	Start  uint64
	End    uint64
}

// ParseRegion parses the conventional region syntax used by variant
// tooling: "chr21" for a whole contig or "chr21:5000-6000" for an
// interval. The interval form is inclusive of both endpoints on input
// and normalized to the half-open representation.
func ParseRegion(s string) (Region, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Region{}, fmt.Errorf("region cannot be empty")
	}

	contig, interval, found := strings.Cut(s, ":")
	if contig == "" {
		return Region{}, fmt.Errorf("region %q has no contig", s)
	}
	if !found {
		return Region{Contig: contig}, nil
	}

	startStr, endStr, found := strings.Cut(interval, "-")
	if !found {
		return Region{}, fmt.Errorf("region %q interval must be start-end", s)
	}
	start, err := strconv.ParseUint(strings.ReplaceAll(startStr, ",", ""), 10, 64)
	if err != nil {
		return Region{}, fmt.Errorf("region %q has invalid start: %w", s, err)
	}
	end, err := strconv.ParseUint(strings.ReplaceAll(endStr, ",", ""), 10, 64)
	if err != nil {
		return Region{}, fmt.Errorf("region %q has invalid end: %w", s, err)
	}
	if start == 0 {
		return Region{}, fmt.Errorf("region %q start must be 1-based", s)
	}
	if end < start {
		return Region{}, fmt.Errorf("region %q end precedes start", s)
	}

	return Region{Contig: contig, Start: start, End: end + 1}, nil
}

// IsZero reports whether the region carries no filter at all.
func (r Region) IsZero() bool {
	return r.Contig == "" && r.Start == 0 && r.End == 0
}

// Overlaps reports whether a record at pos with the given reference
// allele length overlaps the region.
func (r Region) Overlaps(contig string, pos uint64, refLen int) bool {
	if r.Contig != "" && contig != r.Contig {
		return false
	}
	if refLen < 1 {
		refLen = 1
	}
	recEnd := pos + uint64(refLen) // half-open record span [pos, recEnd)
	if r.Start != 0 && recEnd <= r.Start {
		return false
	}
	if r.End != 0 && pos >= r.End {
		return false
	}
	return true
}

// String renders the region back into the conventional syntax.
func (r Region) String() string {
	if r.Start == 0 && r.End == 0 {
		return r.Contig
	}
	end := r.End
	if end > 0 {
		end--
	}
	return fmt.Sprintf("%s:%d-%d", r.Contig, r.Start, end)
}
