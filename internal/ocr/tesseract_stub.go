//go:build !tesseract

package ocr

import "image"

// Available reports whether Tesseract support was compiled in.
func Available() bool { return false }

// Version is empty without Tesseract.
func Version() string { return "" }

func recognize(img image.Image, language string) (string, []Word, error) {
	return "", nil, ErrOCRUnavailable
}
