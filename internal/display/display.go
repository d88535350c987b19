// Package display draws reports and status screens on the 128x64 panel.
package display

// Panel geometry.
const (
	Width     = 128
	Height    = 64
	RowHeight = 10

	// PageRows is the number of full rows per page. A seventh row, showing
	// the first line of the next page, is drawn at ClippedRowY where the
	// bottom edge of the panel cuts it off.
	PageRows    = 6
	ClippedRowY = 60
)

// Surface is a monochrome display that is cleared and redrawn in full for
// every frame.
type Surface interface {
	Clear()
	Text(s string, x, y int)
	FillRect(x, y, w, h int, on bool)
	Show() error
}

// Button is the mode-switch input. Pressed samples the current level.
type Button interface {
	Pressed() bool
}

// Line is one piece of text at a fixed position.
type Line struct {
	Text string
	X, Y int
}

// Rect is a filled rectangle.
type Rect struct {
	X, Y, W, H int
}

// Screen is a complete frame: text lines and lit rectangles on a cleared
// panel.
type Screen struct {
	Lines []Line
	Rects []Rect
}

// Render clears s, draws screen and shows it.
func Render(s Surface, screen Screen) error {
	s.Clear()
	for _, r := range screen.Rects {
		s.FillRect(r.X, r.Y, r.W, r.H, true)
	}
	for _, l := range screen.Lines {
		s.Text(l.Text, l.X, l.Y)
	}
	return s.Show()
}
