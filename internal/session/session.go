// Package session keeps the state of one counting workflow between calls:
// the uploaded image, the cropped region, the reference radius and the last
// detection.
//
// Steps must run in order. Detecting needs a region and a radius; a new
// region or radius discards the previous detection; a new image discards
// everything.
package session

import (
	"errors"
	"image"
	"sync"
	"time"

	"github.com/ironsheep/billet-counter/internal/detection"
	"github.com/ironsheep/billet-counter/internal/imaging"
	"github.com/ironsheep/billet-counter/internal/reference"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session IDs.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoROI is returned when a step needs a cropped region first.
	ErrNoROI = errors.New("no region of interest: crop the image first")

	// ErrNoRadius is returned when detection runs before a reference radius
	// was set.
	ErrNoRadius = errors.New("no reference radius: set reference circles first")
)

// Session is one workflow. All methods are safe for concurrent use.
type Session struct {
	id      string
	created time.Time

	mu        sync.Mutex
	lastUsed  time.Time
	imageID   string
	img       image.Image
	info      imaging.ImageInfo
	roi       *imaging.ROI
	roiImage  *image.NRGBA
	refs      []reference.Circle
	avgRadius int
	result    *detection.Result
}

// State is a point-in-time copy of a session.
type State struct {
	ID            string             `json:"session_id"`
	Created       time.Time          `json:"created"`
	Image         imaging.ImageInfo  `json:"image"`
	ROI           *imaging.ROI       `json:"roi,omitempty"`
	References    []reference.Circle `json:"references,omitempty"`
	AverageRadius int                `json:"average_radius,omitempty"`
	Count         *int               `json:"count,omitempty"`

	ImageID  string            `json:"-"`
	Source   image.Image       `json:"-"`
	ROIImage *image.NRGBA      `json:"-"`
	Result   *detection.Result `json:"-"`
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// SetImage replaces the image and resets every later step.
func (s *Session) SetImage(id string, img image.Image, info imaging.ImageInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.imageID = id
	s.img = img
	s.info = info
	s.roi = nil
	s.roiImage = nil
	s.refs = nil
	s.avgRadius = 0
	s.result = nil
}

// SetROI stores a new region and its cropped pixels. The reference radius
// is kept; the previous detection is dropped.
func (s *Session) SetROI(roi imaging.ROI, cropped *image.NRGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roi = &roi
	s.roiImage = cropped
	s.result = nil
}

// SetReference stores the reference circles and their average radius.
func (s *Session) SetReference(circles []reference.Circle, avgRadius int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs = append([]reference.Circle(nil), circles...)
	s.avgRadius = avgRadius
	s.result = nil
}

// SetResult records the latest detection.
func (s *Session) SetResult(res *detection.Result) {
	s.mu.Lock()
	s.result = res
	s.mu.Unlock()
}

// DetectInputs returns the region and radius detection runs on.
func (s *Session) DetectInputs() (*image.NRGBA, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roiImage == nil {
		return nil, 0, ErrNoROI
	}
	if s.avgRadius < 1 {
		return nil, 0, ErrNoRadius
	}
	return s.roiImage, s.avgRadius, nil
}

// State returns a copy of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:            s.id,
		Created:       s.created,
		Image:         s.info,
		References:    append([]reference.Circle(nil), s.refs...),
		AverageRadius: s.avgRadius,
		ImageID:       s.imageID,
		Source:        s.img,
		ROIImage:      s.roiImage,
		Result:        s.result,
	}
	if s.roi != nil {
		roi := *s.roi
		st.ROI = &roi
	}
	if s.result != nil {
		n := s.result.Count
		st.Count = &n
	}
	return st
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}
