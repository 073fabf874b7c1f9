package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/goontology/ontology"
)

func sample() *ontology.Ontology {
	return &ontology.Ontology{Domain: "university", Relationships: []ontology.Relationship{
		{From: "University", Relationship: "contains", To: "Department", Category: ontology.CategoryPartOf,
			FromCardinality: "1", ToCardinality: "1..*"},
		{From: "Professor", Relationship: "teaches", To: "Course", Category: ontology.CategoryPerforms,
			FromCardinality: "1", ToCardinality: "1..*",
			Details: &ontology.Details{Examples: []string{"Algebra", "Botany"}, Significance: "core"}},
		{From: "Department", Relationship: "employs", To: "Professor", Category: ontology.CategoryHas,
			FromCardinality: "1", ToCardinality: "0..*"},
	}}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sample()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetRelationships, SheetEntities}, f.GetSheetList())

	rows, err := f.GetRows(SheetRelationships)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "From", rows[0][0])
	assert.Equal(t, []string{"University", "contains", "Department", "part-of", "1", "1..*"}, rows[1])
	assert.Equal(t, "Algebra; Botany", rows[2][9])
	assert.Equal(t, "core", rows[2][10])

	rows, err = f.GetRows(SheetEntities)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"University", "1", "0"}, rows[1])
	assert.Equal(t, []string{"Department", "1", "1"}, rows[2])
	assert.Equal(t, []string{"Course", "0", "1"}, rows[4])
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, ontology.New("empty")))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetRelationships)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWriteFormats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample(), FormatJSON))

	var o ontology.Ontology
	require.NoError(t, json.Unmarshal(buf.Bytes(), &o))
	assert.Equal(t, *sample(), o)

	assert.Error(t, Write(&buf, sample(), "csv"))
	assert.Equal(t, "application/json", ContentType(FormatJSON))
	assert.Contains(t, ContentType(FormatXLSX), "spreadsheetml")
}

func TestReadDomainsText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domains.txt")
	require.NoError(t, os.WriteFile(path, []byte("pets\n\n# comment\n  renewable energy  \nrailways\n"), 0644))

	domains, err := ReadDomains(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"pets", "renewable energy", "railways"}, domains)
}

func TestReadDomainsXLSX(t *testing.T) {
	f := excelize.NewFile()
	for i, v := range []string{"Domain", "pets", "", "cars"} {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetCellValue("Sheet1", cell, v))
	}
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "ignored"))
	path := filepath.Join(t.TempDir(), "domains.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	domains, err := ReadDomains(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"pets", "cars"}, domains)
}

func TestReadDomainsMissing(t *testing.T) {
	_, err := ReadDomains(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	tests := []struct {
		domain, format, want string
	}{
		{"Higher Education", FormatXLSX, "higher-education.xlsx"},
		{"  Pets & Owners!! ", FormatJSON, "pets-owners.json"},
		{"Café Menü", "", "café-menü.json"},
		{"???", FormatXLSX, "ontology.xlsx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileName(tt.domain, tt.format), tt.domain)
	}
}
