package sheetgrid

import "math"

const (
	// popoverOverlap pulls the popover up over the header's bottom border.
	popoverOverlap = 2
	// popoverPadding widens a popover sized from its header cell.
	popoverPadding = 2
)

// Rect is a viewport-relative bounding box.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Scroll is the page scroll offset.
type Scroll struct {
	X float64
	Y float64
}

// Anchor is the header cell geometry a popover hangs from.
type Anchor struct {
	Rect   Rect
	Scroll Scroll
}

// Placement is a popover's document position in pixels.
type Placement struct {
	Left  int
	Top   int
	Width int
}

// Place positions a popover directly beneath its header cell, tracking
// page scroll. A positive filterBoxWidth overrides the cell width.
func Place(a Anchor, filterBoxWidth int) Placement {
	p := Placement{
		Left: round(a.Rect.Left + a.Scroll.X),
		Top:  round(a.Rect.Top + a.Scroll.Y + a.Rect.Height - popoverOverlap),
	}
	if filterBoxWidth > 0 {
		p.Width = filterBoxWidth
	} else {
		p.Width = round(a.Rect.Width + popoverPadding)
	}
	return p
}

func round(f float64) int {
	return int(math.Round(f))
}

// Popover is the open filter panel. A nil *Popover means none is open.
type Popover struct {
	ColumnID string
	Anchor   Anchor
}
