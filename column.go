package sheetgrid

import (
	"html/template"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DataType governs how a column's cells are rendered
type DataType string

const (
	TypeText DataType = "text"
	TypeURL  DataType = "url"
	TypeTags DataType = "tags"
)

// Direction is a sort direction
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Toggle returns the opposite direction.
func (d Direction) Toggle() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

func (d Direction) multiplier() int {
	if d == Desc {
		return -1
	}
	return 1
}

const (
	defaultLinkText     = "link"
	defaultTagSeparator = ","
)

// ColumnSpec is the static description of a column as it appears in
// configuration.
type ColumnSpec struct {
	ID             string   `yaml:"id" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	DataType       DataType `yaml:"data_type" json:"data_type,omitempty"`
	ColWidth       int      `yaml:"col_width" json:"col_width,omitempty"`
	FilterBoxWidth int      `yaml:"filter_box_width" json:"filter_box_width,omitempty"`
	Filterable     bool     `yaml:"filterable" json:"filterable,omitempty"`
	Sortable       *bool    `yaml:"sortable" json:"sortable,omitempty"`
	LinkText       string   `yaml:"link_text" json:"link_text,omitempty"`
	TagSeparator   string   `yaml:"tag_separator" json:"tag_separator,omitempty"`
}

// Column is one live data column. Ordering indexes into a row's cells.
type Column struct {
	ID             string
	Name           string
	DataType       DataType
	ColWidth       int
	FilterBoxWidth int
	Filterable     bool
	Sortable       bool
	LinkText       string
	Separator      string

	// Filters holds the distinct observed values (split tags for tags
	// columns) in collation order. ActiveFilters is the selected subset.
	Filters       []string
	ActiveFilters map[string]bool

	SortDirection Direction
	Ordering      int
}

func NewColumn(spec ColumnSpec, ordering int) *Column {
	c := &Column{
		ID:             spec.ID,
		Name:           spec.Name,
		DataType:       spec.DataType,
		ColWidth:       spec.ColWidth,
		FilterBoxWidth: spec.FilterBoxWidth,
		Filterable:     spec.Filterable,
		Sortable:       spec.Sortable == nil || *spec.Sortable,
		LinkText:       spec.LinkText,
		Separator:      spec.TagSeparator,
		ActiveFilters:  map[string]bool{},
		SortDirection:  Asc,
		Ordering:       ordering,
	}
	if c.DataType == "" {
		c.DataType = TypeText
	}
	if c.LinkText == "" {
		c.LinkText = defaultLinkText
	}
	if c.Separator == "" {
		c.Separator = defaultTagSeparator
	}
	if c.Name == "" {
		c.Name = c.ID
	}
	return c
}

// Values splits a raw cell into the filter values it contributes. Tags
// cells yield each trimmed, non-empty tag; other cells yield themselves.
func (c *Column) Values(cell string) []string {
	if c.DataType != TypeTags {
		return []string{cell}
	}
	var tags []string
	for _, part := range strings.Split(cell, c.Separator) {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// newCollator compares case-insensitively without locale tailoring. A
// Collator is not safe for concurrent use.
func newCollator() *collate.Collator {
	return collate.New(language.Und, collate.IgnoreCase)
}

// InitFilters collects the distinct values of this column across rows,
// orders them with coll and selects all of them. No-op unless the column
// is filterable.
func (c *Column) InitFilters(rows []*Row, coll *collate.Collator) {
	if !c.Filterable {
		return
	}
	seen := map[string]bool{}
	c.Filters = c.Filters[:0]
	for _, row := range rows {
		for _, v := range c.Values(row.Cell(c)) {
			if !seen[v] {
				seen[v] = true
				c.Filters = append(c.Filters, v)
			}
		}
	}
	slices.SortStableFunc(c.Filters, coll.CompareString)

	c.ActiveFilters = make(map[string]bool, len(c.Filters))
	for _, v := range c.Filters {
		c.ActiveFilters[v] = true
	}
}

// SetActiveFilters replaces the selection. Values that are not known
// options are ignored.
func (c *Column) SetActiveFilters(values []string) {
	known := make(map[string]bool, len(c.Filters))
	for _, v := range c.Filters {
		known[v] = true
	}
	c.ActiveFilters = make(map[string]bool, len(values))
	for _, v := range values {
		if known[v] {
			c.ActiveFilters[v] = true
		}
	}
}

// SelectAll marks every option active.
func (c *Column) SelectAll() {
	c.SetActiveFilters(c.Filters)
}

// DeselectAll clears the selection.
func (c *Column) DeselectAll() {
	c.SetActiveFilters(nil)
}

// ActiveValues lists the selected options in option order.
func (c *Column) ActiveValues() []string {
	var out []string
	for _, v := range c.Filters {
		if c.ActiveFilters[v] {
			out = append(out, v)
		}
	}
	return out
}

// IsFiltering reports whether the selection restricts rows. An empty or
// full selection does not.
func (c *Column) IsFiltering() bool {
	if !c.Filterable {
		return false
	}
	n := len(c.ActiveFilters)
	return n > 0 && n < len(c.Filters)
}

// Matches reports whether a cell passes this column's selection.
func (c *Column) Matches(cell string) bool {
	if !c.IsFiltering() {
		return true
	}
	for _, v := range c.Values(cell) {
		if c.ActiveFilters[v] {
			return true
		}
	}
	return false
}

// ActiveRatio is the share of options currently selected.
func (c *Column) ActiveRatio() float64 {
	if len(c.Filters) == 0 {
		return 0
	}
	return float64(len(c.ActiveFilters)) / float64(len(c.Filters))
}

// HeaderCell renders the <th> for this column. The sort indicator is
// shown when sortKey names this column.
func (c *Column) HeaderCell(sortKey string) template.HTML {
	return renderHTML("header", headerView{
		ID:         c.ID,
		Name:       c.Name,
		Width:      c.ColWidth,
		Sortable:   c.Sortable,
		Active:     c.ID == sortKey,
		Desc:       c.SortDirection == Desc,
		Filterable: c.Filterable,
		Filtering:  c.IsFiltering(),
	})
}
