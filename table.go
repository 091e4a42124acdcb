// Package sheetgrid renders a spreadsheet-backed data source as a sortable,
// filterable HTML table. A Table controller owns one page's state and
// re-renders the whole body onto a Surface after every interaction.
package sheetgrid

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/collate"
)

// State is the controller lifecycle stage
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Source yields the raw grid, header row first.
type Source interface {
	Values(ctx context.Context) ([][]string, error)
}

// Table is the controller for one rendered table. All methods are safe
// for concurrent use; each interaction runs to completion before the next.
type Table struct {
	mu sync.Mutex

	specs       []ColumnSpec
	sortKey     string
	toggleFirst bool

	src      Source
	surface  Surface
	collator *collate.Collator

	state State
	err   error

	columns   []*Column
	columnMap map[string]*Column
	rows      []*Row
	popover   *Popover
}

// NewTable validates cfg and returns an unloaded controller. Validation
// happens before anything touches src.
func NewTable(cfg *Config, src Source, surface Surface) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Table{
		specs:       slices.Clone(cfg.Table.Columns),
		sortKey:     cfg.DefaultSortColumn(),
		toggleFirst: cfg.Table.ToggleBeforeRender,
		src:         src,
		surface:     surface,
		collator:    newCollator(),
		columnMap:   map[string]*Column{},
	}, nil
}

// Load performs the single fetch, builds columns and rows, and renders.
// A fetch failure moves the table to Failed and renders an error message;
// the error is also returned.
func (t *Table) Load(ctx context.Context) error {
	t.mu.Lock()
	if t.state != Uninitialized {
		t.mu.Unlock()
		return fmt.Errorf("load: table already %s", t.state)
	}
	t.state = Loading
	_ = t.render()
	t.mu.Unlock()

	values, err := t.src.Values(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		slog.Error("Fetching table data failed", "error", err)
		t.state = Failed
		t.err = err
		_ = t.render()
		return err
	}

	// first row is the header
	if len(values) > 0 {
		values = values[1:]
	}
	t.initColumnsAndRows(values)
	t.state = Ready
	slog.Info("Table loaded", "columns", len(t.columns), "rows", len(t.rows))
	return t.render()
}

func (t *Table) initColumns() {
	t.columns = make([]*Column, len(t.specs))
	t.columnMap = make(map[string]*Column, len(t.specs))
	for i, spec := range t.specs {
		col := NewColumn(spec, i)
		t.columns[i] = col
		t.columnMap[col.ID] = col
	}
}

func (t *Table) initRows(data [][]string) {
	t.rows = make([]*Row, 0, len(data))
	for _, rec := range data {
		t.rows = append(t.rows, NewRow(rec, t.columns))
	}
}

func (t *Table) initColumnsAndRows(data [][]string) {
	t.initColumns()
	t.initRows(data)
	for _, col := range t.columns {
		col.InitFilters(t.rows, t.collator)
	}
}

func (t *Table) rowCells() [][]string {
	data := make([][]string, len(t.rows))
	for i, row := range t.rows {
		data[i] = row.Cells
	}
	return data
}

// sortByColumn orders rows by the active sort column, comparing
// lower-cased values with the collator and keeping equal keys stable.
// Rows are rebuilt from the sorted cell arrays.
func (t *Table) sortByColumn() {
	col, ok := t.columnMap[t.sortKey]
	if !ok {
		return
	}
	mult := col.SortDirection.multiplier()
	idx := col.Ordering

	data := t.rowCells()
	slices.SortStableFunc(data, func(a, b []string) int {
		return t.collator.CompareString(strings.ToLower(a[idx]), strings.ToLower(b[idx])) * mult
	})
	t.initRows(data)
}

func (t *Table) filterData() {
	for _, row := range t.rows {
		row.ApplyFilter()
	}
}

// render is a pure function of the current state. Callers hold t.mu.
func (t *Table) render() error {
	var body template.HTML
	switch t.state {
	case Uninitialized:
		return nil
	case Loading:
		body = renderHTML("loading", nil)
	case Failed:
		body = renderHTML("failed", t.err.Error())
	case Ready:
		t.sortByColumn()
		t.filterData()

		view := tableView{Headers: make([]template.HTML, len(t.columns))}
		for i, col := range t.columns {
			view.Headers[i] = col.HeaderCell(t.sortKey)
		}
		for _, row := range t.rows {
			if row.IsVisible {
				view.Rows = append(view.Rows, row.TableRow())
			}
		}
		view.Popover = t.popoverView()
		body = renderHTML("table", view)
	}
	return t.surface.Replace(body)
}

func (t *Table) popoverView() *popoverView {
	if t.popover == nil {
		return nil
	}
	col, ok := t.columnMap[t.popover.ColumnID]
	if !ok {
		return nil
	}
	v := &popoverView{
		ID:        col.ID,
		Batch:     BatchLabel(col),
		Options:   make([]optionView, len(col.Filters)),
		Placement: Place(t.popover.Anchor, col.FilterBoxWidth),
	}
	for i, opt := range col.Filters {
		v.Options[i] = optionView{Value: opt, Checked: col.ActiveFilters[opt]}
	}
	return v
}

// Batch control modes
const (
	BatchSelect   = "select"
	BatchDeselect = "deselect"
)

// BatchLabel is "deselect" when more than half of col's options are
// active, otherwise "select".
func BatchLabel(col *Column) string {
	if col.ActiveRatio() > 0.5 {
		return BatchDeselect
	}
	return BatchSelect
}

func (t *Table) column(key string) (*Column, error) {
	if t.state != Ready {
		return nil, ErrNotReady
	}
	col, ok := t.columnMap[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, key)
	}
	return col, nil
}

func (t *Table) filterColumn(key string) (*Column, error) {
	col, err := t.column(key)
	if err != nil {
		return nil, err
	}
	if !col.Filterable {
		return nil, fmt.Errorf("%w: %q", ErrNotFilterable, key)
	}
	return col, nil
}

// Sort makes key the active sort column and re-renders using that
// column's stored direction; the stored direction flips afterwards, so
// the next click on the same column reverses the order. With
// ToggleBeforeRender the flip happens first.
func (t *Table) Sort(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	col, err := t.column(key)
	if err != nil {
		return err
	}
	if !col.Sortable {
		return fmt.Errorf("%w: %q", ErrNotSortable, key)
	}

	t.sortKey = key
	if t.toggleFirst {
		col.SortDirection = col.SortDirection.Toggle()
		return t.render()
	}
	err = t.render()
	col.SortDirection = col.SortDirection.Toggle()
	return err
}

// ToggleFilter opens key's filter popover beneath anchor, or closes it
// when it is already the open one. Any other open popover is closed.
func (t *Table) ToggleFilter(key string, anchor Anchor) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.filterColumn(key); err != nil {
		return err
	}
	if t.popover != nil && t.popover.ColumnID == key {
		t.popover = nil
	} else {
		t.popover = &Popover{ColumnID: key, Anchor: anchor}
	}
	return t.render()
}

// SetFilter replaces key's active filters with the checked values and
// re-renders, keeping key's popover open. A nil anchor keeps the last
// known position.
func (t *Table) SetFilter(key string, checked []string, anchor *Anchor) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	col, err := t.filterColumn(key)
	if err != nil {
		return err
	}
	col.SetActiveFilters(checked)
	t.keepPopover(key, anchor)
	return t.render()
}

// Batch checks (select) or unchecks (deselect) every option of key.
func (t *Table) Batch(key, mode string, anchor *Anchor) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	col, err := t.filterColumn(key)
	if err != nil {
		return err
	}
	switch mode {
	case BatchSelect:
		col.SelectAll()
	case BatchDeselect:
		col.DeselectAll()
	default:
		return fmt.Errorf("%w %q", ErrBatchMode, mode)
	}
	t.keepPopover(key, anchor)
	return t.render()
}

func (t *Table) keepPopover(key string, anchor *Anchor) {
	p := &Popover{ColumnID: key}
	if anchor != nil {
		p.Anchor = *anchor
	} else if t.popover != nil && t.popover.ColumnID == key {
		p.Anchor = t.popover.Anchor
	}
	t.popover = p
}

// Dismiss closes any open popover.
func (t *Table) Dismiss() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.popover == nil {
		return nil
	}
	t.popover = nil
	return t.render()
}

// Reposition moves the open popover to a new anchor. Without an open
// popover it does nothing.
func (t *Table) Reposition(anchor Anchor) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.popover == nil {
		return nil
	}
	t.popover.Anchor = anchor
	return t.render()
}

// State returns the lifecycle stage and, when Failed, the fetch error.
func (t *Table) State() (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state, t.err
}

// SortKey is the active sort column id.
func (t *Table) SortKey() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sortKey
}

// OpenPopover returns a copy of the open popover, or nil.
func (t *Table) OpenPopover() *Popover {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.popover == nil {
		return nil
	}
	p := *t.popover
	return &p
}

// Columns returns the live columns in order.
func (t *Table) Columns() []*Column {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.columns)
}

// Column looks up a column by id.
func (t *Table) Column(key string) (*Column, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	col, ok := t.columnMap[key]
	return col, ok
}

// Rows returns every row in the last rendered order.
func (t *Table) Rows() []*Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.rows)
}

// VisibleRows returns the cells of rendered rows in order.
func (t *Table) VisibleRows() [][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visibleRows()
}

func (t *Table) visibleRows() [][]string {
	var out [][]string
	for _, row := range t.rows {
		if row.IsVisible {
			out = append(out, slices.Clone(row.Cells))
		}
	}
	return out
}
