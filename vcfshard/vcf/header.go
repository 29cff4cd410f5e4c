package vcf

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFormat is the root of all parse failures in this package. Callers
// match it with errors.Is to distinguish corrupt/unsupported input from
// transport problems.
var ErrFormat = errors.New("malformed VCF")

// FieldType enumerates the value types a header can declare for INFO and
// FORMAT fields.
type FieldType string

const (
	TypeInteger   FieldType = "Integer"
	TypeFloat     FieldType = "Float"
	TypeFlag      FieldType = "Flag"
	TypeCharacter FieldType = "Character"
	TypeString    FieldType = "String"
)

// FieldDecl is one ##INFO or ##FORMAT declaration from the header.
type FieldDecl struct {
	ID          string
	Number      string
	Type        FieldType
	Description string
}

// ContigDecl is one ##contig declaration.
type ContigDecl struct {
	ID     string
	Length uint64
}

// Header holds the textual preamble of a VCF stream: every ## meta line,
// the #CHROM column line, and the declarations parsed out of them. It is
// read once per run and copied verbatim into every shard so each shard
// parses on its own.
type Header struct {
	FileFormat string
	Samples    []string
	Contigs    []ContigDecl
	Infos      map[string]FieldDecl
	Formats    map[string]FieldDecl

	// lines preserves the preamble byte-for-byte, including the final
	// #CHROM line, so shards reproduce the source header exactly.
	lines []string
}

// Lines returns the verbatim header lines including the #CHROM line.
func (h *Header) Lines() []string {
	return h.lines
}

// Encode renders the header as it appeared in the source, with a
// trailing newline after the #CHROM line.
func (h *Header) Encode() []byte {
	var b strings.Builder
	for _, line := range h.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// HasContig reports whether the header declares the named contig. A
// header with no ##contig lines is treated as declaring everything.
func (h *Header) HasContig(name string) bool {
	if len(h.Contigs) == 0 {
		return true
	}
	for _, c := range h.Contigs {
		if c.ID == name {
			return true
		}
	}
	return false
}

// addMetaLine folds one ## line into the header declarations.
func (h *Header) addMetaLine(line string) error {
	h.lines = append(h.lines, line)

	body := strings.TrimPrefix(line, "##")
	key, value, found := strings.Cut(body, "=")
	if !found || key == "" {
		return fmt.Errorf("%w: meta line %q is not key=value", ErrFormat, line)
	}

	switch key {
	case "fileformat":
		h.FileFormat = value
	case "INFO", "FORMAT":
		decl, err := parseFieldDecl(value)
		if err != nil {
			return fmt.Errorf("%w: %s line: %v", ErrFormat, key, err)
		}
		if key == "INFO" {
			if h.Infos == nil {
				h.Infos = make(map[string]FieldDecl)
			}
			h.Infos[decl.ID] = decl
		} else {
			if h.Formats == nil {
				h.Formats = make(map[string]FieldDecl)
			}
			h.Formats[decl.ID] = decl
		}
	case "contig":
		decl, err := parseContigDecl(value)
		if err != nil {
			return fmt.Errorf("%w: contig line: %v", ErrFormat, err)
		}
		h.Contigs = append(h.Contigs, decl)
	}
	// Unknown meta keys are carried verbatim without interpretation.
	return nil
}

// addColumnLine folds the #CHROM line into the header and extracts the
// sample list.
func (h *Header) addColumnLine(line string) error {
	h.lines = append(h.lines, line)

	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return fmt.Errorf("%w: column line has %d fields, need at least 8", ErrFormat, len(fields))
	}
	want := []string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO"}
	for i, name := range want {
		if fields[i] != name {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrFormat, i, fields[i], name)
		}
	}
	if len(fields) > 9 {
		h.Samples = append([]string(nil), fields[9:]...)
	}
	return nil
}

// parseFieldDecl parses the <ID=...,Number=...,Type=...,Description="..."> body.
func parseFieldDecl(value string) (FieldDecl, error) {
	if !strings.HasPrefix(value, "<") || !strings.HasSuffix(value, ">") {
		return FieldDecl{}, fmt.Errorf("declaration %q is not angle-bracketed", value)
	}
	var decl FieldDecl
	for _, kv := range splitDeclFields(value[1 : len(value)-1]) {
		key, val, found := strings.Cut(kv, "=")
		if !found {
			continue
		}
		switch key {
		case "ID":
			decl.ID = val
		case "Number":
			decl.Number = val
		case "Type":
			decl.Type = FieldType(val)
		case "Description":
			decl.Description = strings.Trim(val, `"`)
		}
	}
	if decl.ID == "" {
		return FieldDecl{}, fmt.Errorf("declaration %q has no ID", value)
	}
	return decl, nil
}

func parseContigDecl(value string) (ContigDecl, error) {
	if !strings.HasPrefix(value, "<") || !strings.HasSuffix(value, ">") {
		return ContigDecl{}, fmt.Errorf("declaration %q is not angle-bracketed", value)
	}
	var decl ContigDecl
	for _, kv := range splitDeclFields(value[1 : len(value)-1]) {
		key, val, found := strings.Cut(kv, "=")
		if !found {
			continue
		}
		switch key {
		case "ID":
			decl.ID = val
		case "length":
			// Length is advisory; ignore unparseable values.
			fmt.Sscanf(val, "%d", &decl.Length)
		}
	}
	if decl.ID == "" {
		return ContigDecl{}, fmt.Errorf("declaration %q has no ID", value)
	}
	return decl, nil
}

// splitDeclFields splits a declaration body on commas that are outside
// double quotes, so quoted descriptions keep their commas.
func splitDeclFields(body string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range body {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == ',' && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}
