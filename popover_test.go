package sheetgrid

import "testing"

func TestPlace(t *testing.T) {
	tests := []struct {
		name   string
		anchor Anchor
		width  int
		want   Placement
	}{
		{
			name:   "no scroll",
			anchor: Anchor{Rect: Rect{Left: 10, Top: 20, Width: 100, Height: 30}},
			want:   Placement{Left: 10, Top: 48, Width: 102},
		},
		{
			name:   "scrolled page",
			anchor: Anchor{Rect: Rect{Left: -40, Top: -300, Width: 120.4, Height: 31.6}, Scroll: Scroll{X: 60, Y: 500}},
			want:   Placement{Left: 20, Top: 230, Width: 122},
		},
		{
			name:   "configured width",
			anchor: Anchor{Rect: Rect{Left: 10, Top: 20, Width: 100, Height: 30}},
			width:  400,
			want:   Placement{Left: 10, Top: 48, Width: 400},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Place(tt.anchor, tt.width); got != tt.want {
				t.Errorf("Place() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
