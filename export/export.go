// Package export renders ontologies for download and reads domain lists for
// batch generation.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/goontology/ontology"
)

// Supported output formats.
const (
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// ContentType returns the MIME type for format.
func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/json"
}

// Write renders o to w in the given format.
func Write(w io.Writer, o *ontology.Ontology, format string) error {
	switch format {
	case FormatJSON, "":
		return WriteJSON(w, o)
	case FormatXLSX:
		return WriteXLSX(w, o)
	default:
		return fmt.Errorf("export: unsupported format %q", format)
	}
}

// WriteJSON writes o as indented JSON.
func WriteJSON(w io.Writer, o *ontology.Ontology) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(o)
}

// ReadDomains reads one domain per line from a text file, or the first
// column of the first sheet of an .xlsx file. Blank lines, lines starting
// with '#', and a leading "domain" header cell are skipped.
func ReadDomains(path string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readXLSXDomains(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("export.ReadDomains: %w", err)
	}
	defer f.Close()

	var domains []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if d := strings.TrimSpace(sc.Text()); d != "" && !strings.HasPrefix(d, "#") {
			domains = append(domains, d)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("export.ReadDomains: %w", err)
	}
	return domains, nil
}

func readXLSXDomains(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in %s", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}

	var domains []string
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		d := strings.TrimSpace(row[0])
		if d == "" || strings.HasPrefix(d, "#") {
			continue
		}
		if i == 0 && strings.EqualFold(d, "domain") {
			continue
		}
		domains = append(domains, d)
	}
	return domains, nil
}

// FileName derives a download file name from domain, e.g.
// "Higher Education" -> "higher-education.xlsx".
func FileName(domain, format string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(domain) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	name := strings.TrimSuffix(b.String(), "-")
	if name == "" {
		name = "ontology"
	}
	if format == "" {
		format = FormatJSON
	}
	return name + "." + format
}
