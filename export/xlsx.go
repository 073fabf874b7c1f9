package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/goontology/ontology"
)

// Sheet names in the workbook written by WriteXLSX.
const (
	SheetRelationships = "Relationships"
	SheetEntities      = "Entities"
)

var relationshipHeader = []any{
	"From", "Relationship", "To", "Category", "From Cardinality", "To Cardinality",
	"From Definition", "To Definition", "Explanation", "Examples", "Significance",
}

var entityHeader = []any{"Entity", "Outgoing", "Incoming"}

// WriteXLSX writes o as a workbook with a Relationships sheet (one row per
// relationship, in order) and an Entities sheet (one row per entity with
// its degree).
func WriteXLSX(w io.Writer, o *ontology.Ontology) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetRelationships); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}
	if _, err := f.NewSheet(SheetEntities); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}

	if err := writeRows(f, SheetRelationships, relationshipHeader, relationshipRows(o), bold); err != nil {
		return err
	}
	if err := writeRows(f, SheetEntities, entityHeader, entityRows(o), bold); err != nil {
		return err
	}

	if err := f.SetDocProps(&excelize.DocProperties{Title: o.Domain, Subject: "Ontology"}); err != nil {
		return fmt.Errorf("export.WriteXLSX: %w", err)
	}
	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("export: writing %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("export: styling %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("export: writing %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func relationshipRows(o *ontology.Ontology) [][]any {
	rows := make([][]any, 0, len(o.Relationships))
	for _, r := range o.Relationships {
		row := []any{r.From, r.Relationship, r.To, string(r.Category), r.FromCardinality, r.ToCardinality}
		if d := r.Details; d != nil {
			row = append(row, d.FromDefinition, d.ToDefinition, d.RelationshipExplanation,
				strings.Join(d.Examples, "; "), d.Significance)
		}
		rows = append(rows, row)
	}
	return rows
}

func entityRows(o *ontology.Ontology) [][]any {
	out := make(map[string]int)
	in := make(map[string]int)
	for _, r := range o.Relationships {
		out[r.From]++
		in[r.To]++
	}
	names := o.Entities()
	rows := make([][]any, 0, len(names))
	for _, n := range names {
		rows = append(rows, []any{n, out[n], in[n]})
	}
	return rows
}
