// Package canvas reads the JSON document a drawable browser canvas emits
// after the user draws on it, and turns the first drawn shape into a
// rectangle in image coordinates.
//
// The document follows the Fabric.js serialisation:
//
//	{"version": "4.4.0", "objects": [
//	    {"type": "rect", "left": 12.5, "top": 40, "width": 200, "height": 150,
//	     "scaleX": 1, "scaleY": 1, ...}
//	]}
//
// Only the geometry fields are read; styling fields are ignored.
package canvas

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNoObjects means nothing has been drawn yet.
	ErrNoObjects = errors.New("canvas has no drawn objects")

	// ErrInvalidObject means the first object has no usable area.
	ErrInvalidObject = errors.New("canvas object has no area")
)

// Object is one serialised canvas shape.
type Object struct {
	Type   string   `json:"type"`
	Left   float64  `json:"left"`
	Top    float64  `json:"top"`
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
	ScaleX *float64 `json:"scaleX,omitempty"`
	ScaleY *float64 `json:"scaleY,omitempty"`
}

// Document is the canvas JSON state.
type Document struct {
	Version string   `json:"version,omitempty"`
	Objects []Object `json:"objects"`
}

// Rect is a drawn rectangle in whole pixels.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Parse decodes a canvas JSON document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid canvas JSON: %w", err)
	}
	return &doc, nil
}

// FirstRect returns the first drawn object as a rectangle.
//
// Only the first object counts, whatever else was drawn after it. Its size
// includes the object's scale factors (a resized Fabric object keeps its
// width and changes scaleX), and fractional values are truncated.
func (d *Document) FirstRect() (Rect, error) {
	if len(d.Objects) == 0 {
		return Rect{}, ErrNoObjects
	}
	obj := d.Objects[0]

	sx, sy := 1.0, 1.0
	if obj.ScaleX != nil {
		sx = *obj.ScaleX
	}
	if obj.ScaleY != nil {
		sy = *obj.ScaleY
	}

	r := Rect{
		Left:   int(obj.Left),
		Top:    int(obj.Top),
		Width:  int(obj.Width * sx),
		Height: int(obj.Height * sy),
	}
	if r.Width <= 0 || r.Height <= 0 {
		return Rect{}, fmt.Errorf("%w: %q %dx%d", ErrInvalidObject, obj.Type, r.Width, r.Height)
	}
	return r, nil
}

// Scaled maps a rectangle drawn on a canvas of canvasW×canvasH display
// pixels onto an image of imageW×imageH pixels. A zero canvas size means
// the canvas was drawn at image size and r is returned unchanged.
func (r Rect) Scaled(canvasW, canvasH, imageW, imageH int) (Rect, error) {
	if canvasW == 0 && canvasH == 0 {
		return r, nil
	}
	if canvasW <= 0 || canvasH <= 0 || imageW <= 0 || imageH <= 0 {
		return Rect{}, fmt.Errorf("invalid canvas %dx%d or image %dx%d size", canvasW, canvasH, imageW, imageH)
	}

	fx := float64(imageW) / float64(canvasW)
	fy := float64(imageH) / float64(canvasH)
	return Rect{
		Left:   int(float64(r.Left) * fx),
		Top:    int(float64(r.Top) * fy),
		Width:  int(float64(r.Width) * fx),
		Height: int(float64(r.Height) * fy),
	}, nil
}

// ParseRect is Parse followed by FirstRect and Scaled.
func ParseRect(data []byte, canvasW, canvasH, imageW, imageH int) (Rect, error) {
	doc, err := Parse(data)
	if err != nil {
		return Rect{}, err
	}
	r, err := doc.FirstRect()
	if err != nil {
		return Rect{}, err
	}
	return r.Scaled(canvasW, canvasH, imageW, imageH)
}
