package vcf

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is one parsed variant row. Records are immutable once parsed;
// the shard writer appends them to its buffer and never touches them
// again after flushing.
type Record struct {
	Chrom  string
	Pos    uint64 // 1-based
	ID     string
	Ref    string
	Alts   []string
	Qual   *float64 // nil when the source column is "."
	Filter string
	// Info holds the typed key-value metadata declared by the header:
	// Flag keys map to bool true, Integer to int64 (or []int64), Float
	// to float64 (or []float64), everything else to string.
	Info map[string]any
	// Format and Samples carry the per-sample genotype block in file
	// order; Samples[i] belongs to the i-th sample of the header.
	Format  []string
	Samples []string

	raw string
}

// Encode returns the record exactly as it appeared in the source,
// without a trailing newline. Shards are byte-faithful to their input.
func (r *Record) Encode() string {
	return r.raw
}

// String is a compact human-readable summary used in logs.
func (r *Record) String() string {
	return fmt.Sprintf("%s:%d %s>%s", r.Chrom, r.Pos, r.Ref, strings.Join(r.Alts, ","))
}

// parseRecord parses one data line against the header declarations.
func parseRecord(line string, header *Header) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nil, fmt.Errorf("%w: record has %d fields, need at least 8", ErrFormat, len(fields))
	}

	pos, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil || pos == 0 {
		return nil, fmt.Errorf("%w: invalid POS %q", ErrFormat, fields[1])
	}
	if fields[3] == "" {
		return nil, fmt.Errorf("%w: empty REF at %s:%d", ErrFormat, fields[0], pos)
	}

	rec := &Record{
		Chrom:  fields[0],
		Pos:    pos,
		ID:     dotToEmpty(fields[2]),
		Ref:    fields[3],
		Filter: dotToEmpty(fields[6]),
		raw:    line,
	}

	if fields[4] == "" || fields[4] == "." {
		return nil, fmt.Errorf("%w: record at %s:%d has no ALT allele", ErrFormat, rec.Chrom, pos)
	}
	rec.Alts = strings.Split(fields[4], ",")

	if fields[5] != "." && fields[5] != "" {
		q, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid QUAL %q at %s:%d", ErrFormat, fields[5], rec.Chrom, pos)
		}
		rec.Qual = &q
	}

	rec.Info, err = parseInfo(fields[7], header)
	if err != nil {
		return nil, fmt.Errorf("%w: INFO at %s:%d: %v", ErrFormat, rec.Chrom, pos, err)
	}

	if len(fields) > 8 {
		rec.Format = strings.Split(fields[8], ":")
		rec.Samples = append([]string(nil), fields[9:]...)
	}

	return rec, nil
}

// parseInfo interprets the semicolon-separated INFO column using the
// header's type declarations; undeclared keys stay as raw strings.
func parseInfo(column string, header *Header) (map[string]any, error) {
	if column == "." || column == "" {
		return nil, nil
	}
	info := make(map[string]any)
	for _, entry := range strings.Split(column, ";") {
		if entry == "" {
			continue
		}
		key, value, found := strings.Cut(entry, "=")
		if !found {
			// Bare key: a Flag.
			info[key] = true
			continue
		}
		decl, declared := header.Infos[key]
		if !declared {
			info[key] = value
			continue
		}
		typed, err := coerceInfoValue(value, decl)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", key, err)
		}
		info[key] = typed
	}
	return info, nil
}

func coerceInfoValue(value string, decl FieldDecl) (any, error) {
	parts := strings.Split(value, ",")
	switch decl.Type {
	case TypeInteger:
		if len(parts) == 1 {
			return strconv.ParseInt(parts[0], 10, 64)
		}
		out := make([]int64, len(parts))
		for i, p := range parts {
			v, err := strconv.ParseInt(p, 10, 64)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case TypeFloat:
		if len(parts) == 1 {
			return strconv.ParseFloat(parts[0], 64)
		}
		out := make([]float64, len(parts))
		for i, p := range parts {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case TypeFlag:
		// A Flag with a value is technically malformed but seen in the
		// wild; treat presence as true.
		return true, nil
	default:
		return value, nil
	}
}

func dotToEmpty(s string) string {
	if s == "." {
		return ""
	}
	return s
}
