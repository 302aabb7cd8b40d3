package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Mark is one detection to draw: a centre and a radius in pixels.
type Mark struct {
	X int
	Y int
	R int
}

// Style controls detection overlays.
type Style struct {
	// CircleColor outlines each detected circle.
	CircleColor color.RGBA

	// BoxColor outlines each detection's bounding square.
	BoxColor color.RGBA

	// Thickness is the stroke width in pixels for both shapes.
	Thickness int

	// Label, when set, is printed in the top-left corner.
	Label string
}

// DefaultStyle is green circles and orange boxes, two pixels wide.
func DefaultStyle() Style {
	return Style{
		CircleColor: color.RGBA{0, 255, 0, 255},
		BoxColor:    color.RGBA{255, 128, 0, 255},
		Thickness:   2,
	}
}

// ParseColor parses a "#RRGGBB" hex colour into an opaque RGBA.
func ParseColor(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// DrawDetections draws every mark onto a copy of img: the circle first, then
// its bounding square from (x-r, y-r) to (x+r, y+r).
func DrawDetections(img image.Image, marks []Mark, style Style) *image.RGBA {
	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	t := style.Thickness
	if t < 1 {
		t = 1
	}

	for _, m := range marks {
		drawRing(result, m.X, m.Y, m.R, t, style.CircleColor)
		drawSquare(result, image.Rect(m.X-m.R, m.Y-m.R, m.X+m.R, m.Y+m.R), t, style.BoxColor)
	}

	if style.Label != "" {
		drawLabel(result, bounds.Min.X+4, bounds.Min.Y+4, style.Label,
			color.RGBA{255, 255, 255, 255}, color.RGBA{0, 0, 0, 180})
	}

	return result
}

// drawRing sets every pixel whose distance from the centre lies within half
// the stroke width of r.
func drawRing(dst *image.RGBA, cx, cy, r, thickness int, c color.RGBA) {
	half := float64(thickness) / 2
	inner := float64(r) - half
	outer := float64(r) + half
	reach := r + thickness

	for y := cy - reach; y <= cy+reach; y++ {
		for x := cx - reach; x <= cx+reach; x++ {
			d := math.Hypot(float64(x-cx), float64(y-cy))
			if d >= inner && d < outer {
				setClipped(dst, x, y, c)
			}
		}
	}
}

// drawSquare strokes the rectangle edges centred on the given corners.
func drawSquare(dst *image.RGBA, rect image.Rectangle, thickness int, c color.RGBA) {
	lo := -(thickness / 2)
	hi := lo + thickness - 1

	for o := lo; o <= hi; o++ {
		for x := rect.Min.X + lo; x <= rect.Max.X+hi; x++ {
			setClipped(dst, x, rect.Min.Y+o, c)
			setClipped(dst, x, rect.Max.Y+o, c)
		}
		for y := rect.Min.Y + lo; y <= rect.Max.Y+hi; y++ {
			setClipped(dst, rect.Min.X+o, y, c)
			setClipped(dst, rect.Max.X+o, y, c)
		}
	}
}

func setClipped(dst *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(dst.Bounds()) {
		dst.SetRGBA(x, y, c)
	}
}

// GridOverlay draws a coordinate grid over a copy of img so corner
// coordinates can be read off the picture.
//
// An unparsable gridColorHex falls back to semi-transparent red.
func GridOverlay(img image.Image, gridSpacing int, showCoordinates bool, gridColorHex string) (*image.RGBA, error) {
	if gridSpacing <= 0 {
		return nil, fmt.Errorf("grid spacing must be positive, got %d", gridSpacing)
	}

	gridColor, err := ParseColor(gridColorHex)
	if err != nil {
		gridColor = color.RGBA{255, 0, 0, 128}
	}

	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	for x := bounds.Min.X + gridSpacing; x < bounds.Max.X; x += gridSpacing {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			result.SetRGBA(x, y, gridColor)
		}
	}
	for y := bounds.Min.Y + gridSpacing; y < bounds.Max.Y; y += gridSpacing {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			result.SetRGBA(x, y, gridColor)
		}
	}

	if showCoordinates {
		labelColor := color.RGBA{255, 255, 255, 255}
		bgColor := color.RGBA{0, 0, 0, 180}

		for y := bounds.Min.Y + gridSpacing; y < bounds.Max.Y; y += gridSpacing {
			for x := bounds.Min.X + gridSpacing; x < bounds.Max.X; x += gridSpacing {
				label := strconv.Itoa(x) + "," + strconv.Itoa(y)
				drawLabel(result, x+2, y+2, label, labelColor, bgColor)
			}
		}
	}

	return result, nil
}

// drawLabel prints text with its top-left corner at (x, y) on a filled
// background box.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Height

	box := image.Rect(x-1, y-1, x+width+1, y+height+1).Intersect(img.Bounds())
	draw.Draw(img, box, image.NewUniform(bg), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(text)
}
