package display

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Flusher pushes a finished frame to the hardware.
type Flusher func(img *image.Gray) error

// textBaseline is the offset from a row's top edge to the font baseline.
const textBaseline = 9

var (
	pixelOn  = color.Gray{Y: 0xff}
	pixelOff = color.Gray{Y: 0}
)

// Framebuffer is a Surface backed by an in-memory grayscale image. Drivers
// supply the Flusher that copies the image to the panel.
type Framebuffer struct {
	img   *image.Gray
	flush Flusher
}

// NewFramebuffer creates a blank 128x64 framebuffer.
func NewFramebuffer(flush Flusher) *Framebuffer {
	return &Framebuffer{
		img:   image.NewGray(image.Rect(0, 0, Width, Height)),
		flush: flush,
	}
}

// Clear turns every pixel off.
func (f *Framebuffer) Clear() {
	draw.Draw(f.img, f.img.Bounds(), image.NewUniform(pixelOff), image.Point{}, draw.Src)
}

// Text draws s with its top-left corner at (x, y). Text past the panel edge
// is clipped.
func (f *Framebuffer) Text(s string, x, y int) {
	d := font.Drawer{
		Dst:  f.img,
		Src:  image.NewUniform(pixelOn),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y+textBaseline),
	}
	d.DrawString(s)
}

// FillRect sets a w by h block of pixels at (x, y).
func (f *Framebuffer) FillRect(x, y, w, h int, on bool) {
	c := pixelOff
	if on {
		c = pixelOn
	}
	r := image.Rect(x, y, x+w, y+h).Intersect(f.img.Bounds())
	draw.Draw(f.img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// Show flushes the frame.
func (f *Framebuffer) Show() error {
	if f.flush == nil {
		return nil
	}
	return f.flush(f.img)
}

// Image returns the backing image.
func (f *Framebuffer) Image() *image.Gray {
	return f.img
}
