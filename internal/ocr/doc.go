// Package ocr reads the heat-number tag painted or printed on a billet bundle.
//
// Recognition is done by Tesseract through gosseract and is only compiled in
// with the tesseract build tag:
//
//	go build -tags tesseract ./...
//
// Tesseract and its language data must be installed on the host:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng libtesseract-dev
//   - macOS: brew install tesseract
//
// Without the tag every read fails with ErrOCRUnavailable, so the rest of
// the service builds and runs on machines without the native library.
//
// Word boxes are always reported in the coordinates of the image that was
// passed in, even when only a tag region was recognised.
package ocr
