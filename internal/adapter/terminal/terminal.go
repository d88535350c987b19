// Package terminal renders the display framebuffer as text, for running the
// device on a workstation.
package terminal

import (
	"image"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const clearScreen = "\x1b[H\x1b[2J"

// Screen writes frames to a terminal. Its Flush method is a display.Flusher.
type Screen struct {
	w     io.Writer
	style lipgloss.Style
	clear bool
}

// New creates a Screen writing to w. When clearEachFrame is set every frame
// first homes the cursor and clears the terminal.
func New(w io.Writer, clearEachFrame bool) *Screen {
	return &Screen{
		w: w,
		style: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")),
		clear: clearEachFrame,
	}
}

// Flush draws img inside a rounded border.
func (s *Screen) Flush(img *image.Gray) error {
	var b strings.Builder
	if s.clear {
		b.WriteString(clearScreen)
	}
	b.WriteString(s.style.Render(Rasterize(img)))
	b.WriteByte('\n')
	_, err := io.WriteString(s.w, b.String())
	return err
}

// Rasterize packs two pixel rows into each text row using half-block
// characters. Any non-zero pixel is lit.
func Rasterize(img *image.Gray) string {
	r := img.Bounds()
	lit := func(x, y int) bool {
		return y < r.Max.Y && img.GrayAt(x, y).Y != 0
	}

	rows := make([]string, 0, (r.Dy()+1)/2)
	var b strings.Builder
	for y := r.Min.Y; y < r.Max.Y; y += 2 {
		b.Reset()
		for x := r.Min.X; x < r.Max.X; x++ {
			top, bottom := lit(x, y), lit(x, y+1)
			switch {
			case top && bottom:
				b.WriteRune('█')
			case top:
				b.WriteRune('▀')
			case bottom:
				b.WriteRune('▄')
			default:
				b.WriteByte(' ')
			}
		}
		rows = append(rows, b.String())
	}
	return strings.Join(rows, "\n")
}
