package sheetgrid

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Sheet1"

// ExportXLSX writes the currently visible rows, in their rendered order,
// as a workbook with a header row of column names.
func (t *Table) ExportXLSX(w io.Writer) error {
	t.mu.Lock()
	if t.state != Ready {
		t.mu.Unlock()
		return ErrNotReady
	}
	header := make([]string, len(t.columns))
	for i, col := range t.columns {
		header[i] = col.Name
	}
	rows := t.visibleRows()
	t.mu.Unlock()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, cells := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return f.Write(w)
}
