package counter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"math"
	"os"

	"github.com/ironsheep/billet-counter/internal/config"
	"github.com/ironsheep/billet-counter/internal/detection"
	"github.com/ironsheep/billet-counter/internal/imaging"
	"github.com/ironsheep/billet-counter/internal/ocr"
	"github.com/ironsheep/billet-counter/internal/reference"
	"github.com/ironsheep/billet-counter/internal/session"
)

var (
	// ErrInvalidRequest is returned for malformed or incomplete requests.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnknownMode is returned for an unrecognised crop, reference or
	// preview mode.
	ErrUnknownMode = errors.New("unknown mode")
)

// LoadResult identifies the session a new image was loaded into.
type LoadResult struct {
	SessionID string            `json:"session_id"`
	Image     imaging.ImageInfo `json:"image"`
}

// CropResult is a stored region of interest.
type CropResult struct {
	ROI   imaging.ROI  `json:"roi"`
	Image *image.NRGBA `json:"-"`
}

// Service runs the counting workflow against a session store.
type Service struct {
	cfg      *config.Config
	images   *imaging.ImageCache
	sessions *session.Store
	detector detection.Detector
	opts     detection.Options
}

// New creates a Service. Overlay colours are parsed from cfg up front so a
// bad value fails at startup rather than on the first detection.
func New(cfg *config.Config, detector detection.Detector) (*Service, error) {
	opts := detection.DefaultOptions()
	opts.Tuning = detection.Tuning{
		DP:              cfg.HoughDP,
		MinDistFactor:   cfg.HoughMinDistFactor,
		Param1:          cfg.HoughParam1,
		Param2:          cfg.HoughParam2,
		MinRadiusFactor: cfg.RadiusMinFactor,
		MaxRadiusFactor: cfg.RadiusMaxFactor,
		BlurKernel:      cfg.BlurKernel,
	}
	opts.LabelCount = cfg.OverlayLabel

	var err error
	if opts.Style.CircleColor, err = imaging.ParseColor(cfg.CircleColor); err != nil {
		return nil, fmt.Errorf("circle colour: %w", err)
	}
	if opts.Style.BoxColor, err = imaging.ParseColor(cfg.BoxColor); err != nil {
		return nil, fmt.Errorf("box colour: %w", err)
	}

	images := imaging.NewImageCache()
	sessions := session.NewStore(cfg.SessionTTL)
	sessions.OnEvict = func(st session.State) {
		images.Evict(st.ImageID)
	}

	return &Service{
		cfg:      cfg,
		images:   images,
		sessions: sessions,
		detector: detector,
		opts:     opts,
	}, nil
}

// Config returns the service settings.
func (s *Service) Config() *config.Config { return s.cfg }

// DetectorAvailable reports whether detection can run. Detectors that do
// not report availability are assumed ready.
func (s *Service) DetectorAvailable() bool {
	if a, ok := s.detector.(interface{ Available() bool }); ok {
		return a.Available()
	}
	return true
}

// Sessions returns the session store, for expiry sweeping.
func (s *Service) Sessions() *session.Store { return s.sessions }

// Load decodes an image file into a new session.
func (s *Service) Load(path string) (*LoadResult, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidRequest)
	}
	img, info, err := s.images.Load(path)
	if err != nil {
		return nil, err
	}
	return s.start(img, info), nil
}

// Upload decodes uploaded bytes into a new session.
func (s *Service) Upload(data []byte) (*LoadResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidRequest)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: upload of %d bytes exceeds %d", ErrInvalidRequest, len(data), s.cfg.MaxUploadBytes)
	}
	img, info, err := s.images.Put(data)
	if err != nil {
		return nil, err
	}
	return s.start(img, info), nil
}

func (s *Service) start(img image.Image, info *imaging.ImageInfo) *LoadResult {
	sess := s.sessions.Create(info.ID, img, *info)
	if s.cfg.Debug() {
		log.Printf("Session %s: loaded %s image %dx%d", sess.ID(), info.Format, info.Width, info.Height)
	}
	return &LoadResult{SessionID: sess.ID(), Image: *info}
}

// State returns a session's current state.
func (s *Service) State(id string) (session.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return session.State{}, err
	}
	return sess.State(), nil
}

// Grid draws a coordinate grid over the session image.
func (s *Service) Grid(id string, spacing int, showCoordinates bool, colorHex string) (*image.RGBA, error) {
	st, err := s.State(id)
	if err != nil {
		return nil, err
	}
	if spacing == 0 {
		spacing = 50
	}
	if colorHex == "" {
		colorHex = "#FF0000"
	}
	return imaging.GridOverlay(st.Source, spacing, showCoordinates, colorHex)
}

// Crop resolves req against the session image and stores the region.
func (s *Service) Crop(id string, req CropRequest) (*CropResult, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	res, err := s.crop(sess.State().Source, req)
	if err != nil {
		return nil, err
	}
	sess.SetROI(res.ROI, res.Image)

	if s.cfg.Debug() {
		log.Printf("Session %s: %s ROI (%d,%d)-(%d,%d)", id, res.ROI.Mode, res.ROI.X1, res.ROI.Y1, res.ROI.X2, res.ROI.Y2)
	}
	return res, nil
}

func (s *Service) crop(img image.Image, req CropRequest) (*CropResult, error) {
	roi, err := req.ROI(img.Bounds())
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	cropped, err := imaging.Crop(img, roi)
	if err != nil {
		return nil, err
	}
	return &CropResult{ROI: roi, Image: cropped}, nil
}

// Reference computes the average radius from req and stores it.
func (s *Service) Reference(id string, req ReferenceRequest) (*ReferenceResult, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	var roiBounds *image.Rectangle
	if st := sess.State(); st.ROIImage != nil {
		b := st.ROIImage.Bounds()
		roiBounds = &b
	}

	res, err := s.reference(roiBounds, req)
	if err != nil {
		return nil, err
	}
	sess.SetReference(res.Circles, res.AverageRadius)

	if s.cfg.Debug() {
		log.Printf("Session %s: average radius %d from %d %s reference(s)", id, res.AverageRadius, len(res.Circles), res.Mode)
	}
	return res, nil
}

// reference resolves a reference request. Slider circles are held to the
// configured slider range; box and diameter references only need to fit
// inside the region they were measured on.
func (s *Service) reference(roiBounds *image.Rectangle, req ReferenceRequest) (*ReferenceResult, error) {
	mode := req.Mode
	if mode == "" {
		mode = ReferenceCircles
	}
	res := &ReferenceResult{Mode: mode}
	limit := s.cfg.ReferenceLimit

	switch mode {
	case ReferenceCircles:
		res.Circles = req.Circles
		if len(res.Circles) == 0 {
			res.Circles = reference.DefaultCircles(s.cfg.ReferenceCount)
		}

	case ReferenceBox:
		if roiBounds == nil {
			return nil, session.ErrNoROI
		}
		if req.Box == nil {
			return nil, fmt.Errorf("%w: box mode needs a box", ErrInvalidRequest)
		}
		box := req.Box.Rect().Intersect(*roiBounds)
		if box.Empty() {
			return nil, fmt.Errorf("%w: reference box", imaging.ErrEmptyROI)
		}
		res.Circles = []reference.Circle{reference.FromBox(box)}
		limit = max(roiBounds.Dx(), roiBounds.Dy())

	case ReferenceDiameter:
		if roiBounds == nil {
			return nil, session.ErrNoROI
		}
		if req.P1 == nil || req.P2 == nil {
			return nil, fmt.Errorf("%w: diameter mode needs p1 and p2", ErrInvalidRequest)
		}
		dist, err := imaging.MeasureDistance(*roiBounds, *req.P1, *req.P2)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		res.Distance = dist
		res.Circles = []reference.Circle{reference.FromDiameter(
			image.Pt(req.P1.X, req.P1.Y), image.Pt(req.P2.X, req.P2.Y))}
		// Both points lie inside the region, so its diagonal bounds the length
		limit = int(math.Ceil(math.Hypot(float64(roiBounds.Dx()), float64(roiBounds.Dy()))))

	default:
		return nil, fmt.Errorf("%w: reference mode %q", ErrUnknownMode, mode)
	}

	avg, err := reference.AverageRadius(res.Circles, limit)
	if err != nil {
		return nil, err
	}
	res.AverageRadius = avg
	return res, nil
}

// Detect counts billets in the session's region around its reference
// radius.
func (s *Service) Detect(ctx context.Context, id string) (*detection.Result, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	roi, avg, err := sess.DetectInputs()
	if err != nil {
		return nil, err
	}

	res, err := detection.Count(ctx, s.detector, roi, avg, s.opts)
	if err != nil {
		return nil, err
	}
	sess.SetResult(res)

	log.Printf("Session %s: counted %d billets (radius %d..%d)", id, res.Count, res.Params.MinRadius, res.Params.MaxRadius)
	return res, nil
}

// CountImage runs crop, reference and detection on img without a session.
func (s *Service) CountImage(ctx context.Context, img image.Image, req CountRequest) (*detection.Result, error) {
	cropped, err := s.crop(img, req.Crop)
	if err != nil {
		return nil, err
	}

	avg := req.Radius
	if avg <= 0 {
		b := cropped.Image.Bounds()
		ref, err := s.reference(&b, req.Reference)
		if err != nil {
			return nil, err
		}
		avg = ref.AverageRadius
	}

	return detection.Count(ctx, s.detector, cropped.Image, avg, s.opts)
}

// CountBytes decodes an image and runs CountImage on it.
func (s *Service) CountBytes(ctx context.Context, data []byte, req CountRequest) (*detection.Result, error) {
	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	return s.CountImage(ctx, img, req)
}

// CountFile reads an image file and runs CountImage on it.
func (s *Service) CountFile(ctx context.Context, path string, req CountRequest) (*detection.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return s.CountBytes(ctx, data, req)
}

// PreviewKind selects what Preview renders.
type PreviewKind string

const (
	// PreviewBlur is the blurred grayscale image the detector searches.
	PreviewBlur PreviewKind = "blur"

	// PreviewEdges is the thresholded edge strength at the detector's
	// upper edge threshold.
	PreviewEdges PreviewKind = "edges"
)

// Preview renders what the detector sees of the session's region, or of
// the whole image before a region is cropped.
func (s *Service) Preview(id string, kind PreviewKind) (*image.Gray, error) {
	st, err := s.State(id)
	if err != nil {
		return nil, err
	}

	var src image.Image = st.Source
	if st.ROIImage != nil {
		src = st.ROIImage
	}

	switch kind {
	case PreviewBlur, "":
		return imaging.Preview(src, s.opts.Tuning.BlurKernel)
	case PreviewEdges:
		return imaging.EdgePreview(src, s.opts.Tuning.BlurKernel, s.opts.Tuning.Param1)
	default:
		return nil, fmt.Errorf("%w: preview kind %q", ErrUnknownMode, kind)
	}
}

// ReadTag reads the bundle tag from the session image, optionally limited
// to region. An empty language uses the configured one.
func (s *Service) ReadTag(id string, region *image.Rectangle, language string) (*ocr.TagResult, error) {
	st, err := s.State(id)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = s.cfg.OCRLanguage
	}
	return ocr.ReadTag(st.Source, region, language)
}

// Close ends a session and frees its image.
func (s *Service) Close(id string) error {
	if !s.sessions.Delete(id) {
		return fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	return nil
}
