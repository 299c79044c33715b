package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/conagua-etl/internal/domain"
)

// WriteXLSX writes the dataset to a single-sheet workbook named after the
// kind. Present values are numeric cells; everything else is text.
func WriteXLSX(w io.Writer, ds domain.Dataset, missingText string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := ds.Kind.Slug()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open sheet writer: %w", err)
	}

	header := make([]any, 0, len(ds.Columns))
	for _, name := range ds.Header() {
		header = append(header, name)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, rec := range ds.Records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, xlsxRow(ds.Columns, rec, missingText)); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func xlsxRow(cols domain.ColumnOrder, rec domain.MeasurementRecord, missingText string) []any {
	row := make([]any, len(cols))
	for i, f := range cols {
		switch f {
		case domain.FieldValue:
			if v, ok := rec.Value.Float64(); ok {
				row[i] = v
				continue
			}
			row[i] = missingText
		case domain.FieldYear:
			row[i] = rec.Date.Year()
		case domain.FieldMonth:
			row[i] = int(rec.Date.Month())
		default:
			row[i] = f.Cell(rec, missingText)
		}
	}
	return row
}
