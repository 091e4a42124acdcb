package sheetgrid

import "html/template"

// Row is one record. Cells always has one entry per column.
type Row struct {
	Cells     []string
	IsVisible bool
	columns   []*Column
}

// NewRow builds a row from a raw record. Short records are padded with
// empty cells and surplus values are dropped.
func NewRow(raw []string, columns []*Column) *Row {
	cells := make([]string, len(columns))
	copy(cells, raw)
	return &Row{Cells: cells, IsVisible: true, columns: columns}
}

// Cell returns this row's value for col.
func (r *Row) Cell(col *Column) string {
	if col.Ordering < 0 || col.Ordering >= len(r.Cells) {
		return ""
	}
	return r.Cells[col.Ordering]
}

// ApplyFilter recomputes IsVisible from every filterable column's
// selection.
func (r *Row) ApplyFilter() {
	r.IsVisible = true
	for _, col := range r.columns {
		if !col.Matches(r.Cell(col)) {
			r.IsVisible = false
			return
		}
	}
}

// TableRow renders the <tr> for this row.
func (r *Row) TableRow() template.HTML {
	cells := make([]cellView, len(r.columns))
	for i, col := range r.columns {
		v := r.Cell(col)
		cell := cellView{Type: string(col.DataType), Text: v}
		switch col.DataType {
		case TypeURL:
			cell.LinkText = col.LinkText
		case TypeTags:
			cell.Tags = col.Values(v)
		}
		cells[i] = cell
	}
	return renderHTML("row", cells)
}
