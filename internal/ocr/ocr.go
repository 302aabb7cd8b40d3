package ocr

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

var (
	// ErrOCRUnavailable is returned when the binary was built without
	// Tesseract support.
	ErrOCRUnavailable = errors.New("OCR unavailable: build with -tags tesseract")

	// ErrEmptyRegion is returned when the tag region does not overlap the
	// image.
	ErrEmptyRegion = errors.New("tag region is empty")
)

// DefaultLanguage is the Tesseract language used when none is given.
const DefaultLanguage = "eng"

// Bounds is a word box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Word is one recognised word and Tesseract's confidence in it (0 to 1).
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Bounds     Bounds  `json:"bounds"`
}

// TagResult is the text read from a tag.
type TagResult struct {
	Text     string `json:"text"`
	Words    []Word `json:"words"`
	Language string `json:"language"`
}

// ReadTag recognises text in img, or only in region when it is non-nil.
//
// The region is clipped to the image the same way ROI crops are.
func ReadTag(img image.Image, region *image.Rectangle, language string) (*TagResult, error) {
	if language == "" {
		language = DefaultLanguage
	}

	src := img
	var offset image.Point
	if region != nil {
		r := region.Intersect(img.Bounds())
		if r.Empty() {
			return nil, fmt.Errorf("%w: %v", ErrEmptyRegion, *region)
		}
		src = imaging.Crop(img, r)
		offset = r.Min
	}

	text, words, err := recognize(src, language)
	if err != nil {
		return nil, err
	}

	return &TagResult{
		Text:     strings.TrimSpace(text),
		Words:    offsetWords(words, offset),
		Language: language,
	}, nil
}

// offsetWords moves word boxes from crop coordinates back to the source
// image and drops empty words.
func offsetWords(words []Word, offset image.Point) []Word {
	out := make([]Word, 0, len(words))
	for _, w := range words {
		if strings.TrimSpace(w.Text) == "" {
			continue
		}
		w.Bounds.X1 += offset.X
		w.Bounds.Y1 += offset.Y
		w.Bounds.X2 += offset.X
		w.Bounds.Y2 += offset.Y
		out = append(out, w)
	}
	return out
}
