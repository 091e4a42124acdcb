package source

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Workbook reads one sheet of a local .xlsx file.
type Workbook struct {
	path  string
	sheet string
}

func NewWorkbook(path, sheet string) *Workbook {
	return &Workbook{path: path, sheet: sheet}
}

func (w *Workbook) Values(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", w.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(w.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", w.sheet, err)
	}
	return rows, nil
}
