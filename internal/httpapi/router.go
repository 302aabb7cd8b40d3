// Package httpapi serves the billet counting workflow over HTTP with gin.
//
// The routes mirror the upload page: upload an image, crop, set the
// reference size, detect, and fetch images along the way. Errors are JSON
// objects with a single "error" field.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/billet-counter/internal/canvas"
	"github.com/ironsheep/billet-counter/internal/counter"
	"github.com/ironsheep/billet-counter/internal/detection"
	"github.com/ironsheep/billet-counter/internal/imaging"
	"github.com/ironsheep/billet-counter/internal/ocr"
	"github.com/ironsheep/billet-counter/internal/reference"
	"github.com/ironsheep/billet-counter/internal/session"
)

// API holds the handlers' dependencies.
type API struct {
	svc     *counter.Service
	version string
}

// NewRouter builds the gin engine with logging, panic recovery and every
// route registered.
func NewRouter(svc *counter.Service, version string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.MaxMultipartMemory = svc.Config().MaxUploadBytes

	api := &API{svc: svc, version: version}
	api.setupRoutes(r)
	return r
}

func (a *API) setupRoutes(r *gin.Engine) {
	r.GET("/healthz", a.healthHandler)

	g := r.Group("/api")
	g.POST("/count", a.countHandler)

	s := g.Group("/sessions")
	s.POST("", a.uploadHandler)
	s.GET("/:id", a.stateHandler)
	s.DELETE("/:id", a.closeHandler)
	s.GET("/:id/image", a.imageHandler)
	s.GET("/:id/roi", a.roiHandler)
	s.POST("/:id/crop", a.cropHandler)
	s.POST("/:id/reference", a.referenceHandler)
	s.POST("/:id/detect", a.detectHandler)
	s.GET("/:id/preview", a.previewHandler)
	s.POST("/:id/tag", a.tagHandler)
}

// statusFor maps workflow errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoROI), errors.Is(err, session.ErrNoRadius):
		return http.StatusConflict
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, detection.ErrDetectorUnavailable), errors.Is(err, ocr.ErrOCRUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, counter.ErrInvalidRequest),
		errors.Is(err, counter.ErrUnknownMode),
		errors.Is(err, imaging.ErrEmptyROI),
		errors.Is(err, imaging.ErrInvalidKernel),
		errors.Is(err, canvas.ErrNoObjects),
		errors.Is(err, canvas.ErrInvalidObject),
		errors.Is(err, reference.ErrNoReference),
		errors.Is(err, reference.ErrInvalidSize),
		errors.Is(err, reference.ErrRadiusTooSmall),
		errors.Is(err, detection.ErrInvalidRadius),
		errors.Is(err, ocr.ErrEmptyRegion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
