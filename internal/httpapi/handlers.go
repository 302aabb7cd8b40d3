package httpapi

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/billet-counter/internal/counter"
	"github.com/ironsheep/billet-counter/internal/detection"
	"github.com/ironsheep/billet-counter/internal/imaging"
	"github.com/ironsheep/billet-counter/internal/ocr"
	"github.com/ironsheep/billet-counter/internal/session"
)

// uploadExtensions is the file type filter of the upload form.
var uploadExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

func (a *API) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"version":            a.version,
		"detector_available": a.svc.DetectorAvailable(),
		"ocr_available":      ocr.Available(),
		"sessions":           a.svc.Sessions().Len(),
	})
}

// readUpload reads the "image" form file, enforcing the type filter and
// the upload size limit.
func (a *API) readUpload(c *gin.Context) ([]byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("%w: image file is required", counter.ErrInvalidRequest)
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !uploadExtensions[ext] {
		return nil, fmt.Errorf("%w: %q (allowed: jpg, jpeg, png)", imaging.ErrUnsupportedFormat, file.Filename)
	}

	limit := a.svc.Config().MaxUploadBytes
	if file.Size > limit {
		return nil, fmt.Errorf("%w: upload of %d bytes exceeds %d", counter.ErrInvalidRequest, file.Size, limit)
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}

func (a *API) uploadHandler(c *gin.Context) {
	data, err := a.readUpload(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	res, err := a.svc.Upload(data)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (a *API) stateHandler(c *gin.Context) {
	st, err := a.svc.State(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *API) closeHandler(c *gin.Context) {
	if err := a.svc.Close(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// queryScale reads the optional "scale" query parameter.
func queryScale(c *gin.Context) (float64, error) {
	v := c.Query("scale")
	if v == "" {
		return 1, nil
	}
	scale, err := strconv.ParseFloat(v, 64)
	if err != nil || scale <= 0 {
		return 0, fmt.Errorf("%w: scale must be a positive number", counter.ErrInvalidRequest)
	}
	return scale, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", counter.ErrInvalidRequest, key)
	}
	return n, nil
}

func writePNG(c *gin.Context, img image.Image) {
	scale, err := queryScale(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if err := imaging.WritePNG(c.Writer, img, scale); err != nil {
		_ = c.Error(err)
	}
}

// imageHandler returns the session image, with a coordinate grid when
// ?grid=<spacing> is given.
func (a *API) imageHandler(c *gin.Context) {
	id := c.Param("id")

	spacing, err := queryInt(c, "grid", 0)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if spacing == 0 {
		st, err := a.svc.State(id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		writePNG(c, st.Source)
		return
	}

	coords := c.DefaultQuery("coords", "true") != "false"
	img, err := a.svc.Grid(id, spacing, coords, c.Query("color"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	writePNG(c, img)
}

func (a *API) roiHandler(c *gin.Context) {
	st, err := a.svc.State(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if st.ROIImage == nil {
		abortWithError(c, session.ErrNoROI)
		return
	}
	writePNG(c, st.ROIImage)
}

func (a *API) cropHandler(c *gin.Context) {
	var req counter.CropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", counter.ErrInvalidRequest, err))
		return
	}
	res, err := a.svc.Crop(c.Param("id"), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"roi":    res.ROI,
		"width":  res.ROI.Width(),
		"height": res.ROI.Height(),
	})
}

func (a *API) referenceHandler(c *gin.Context) {
	var req counter.ReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", counter.ErrInvalidRequest, err))
		return
	}
	res, err := a.svc.Reference(c.Param("id"), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// detectResponse is a detection with its overlay as base64 PNG.
type detectResponse struct {
	*detection.Result
	Overlay *imaging.EncodedImage `json:"overlay"`
}

// writeDetection answers with JSON, or with the overlay PNG itself and the
// count in a header when ?format=png.
func writeDetection(c *gin.Context, res *detection.Result) {
	if c.Query("format") == "png" {
		c.Header("X-Billet-Count", strconv.Itoa(res.Count))
		writePNG(c, res.Overlay)
		return
	}

	scale, err := queryScale(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	enc, err := imaging.Encode(res.Overlay, scale)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detectResponse{Result: res, Overlay: enc})
}

func (a *API) detectHandler(c *gin.Context) {
	res, err := a.svc.Detect(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	writeDetection(c, res)
}

func (a *API) previewHandler(c *gin.Context) {
	kind := counter.PreviewKind(c.DefaultQuery("kind", string(counter.PreviewBlur)))
	img, err := a.svc.Preview(c.Param("id"), kind)
	if err != nil {
		abortWithError(c, err)
		return
	}
	writePNG(c, img)
}

type tagRequest struct {
	Region   *imaging.ROI `json:"region"`
	Language string       `json:"language"`
}

func (a *API) tagHandler(c *gin.Context) {
	var req tagRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, fmt.Errorf("%w: %v", counter.ErrInvalidRequest, err))
			return
		}
	}

	var region *image.Rectangle
	if req.Region != nil {
		r := req.Region.Rect()
		region = &r
	}

	res, err := a.svc.ReadTag(c.Param("id"), region, req.Language)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// countForm is the one-shot counting form: the crop fields of
// counter.CropRequest plus a radius or a JSON reference request.
type countForm struct {
	counter.CropRequest
	Canvas    string `form:"canvas"`
	Radius    int    `form:"radius"`
	Reference string `form:"reference"`
}

func (a *API) countHandler(c *gin.Context) {
	data, err := a.readUpload(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var form countForm
	if err := c.ShouldBind(&form); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", counter.ErrInvalidRequest, err))
		return
	}

	req := counter.CountRequest{Crop: form.CropRequest, Radius: form.Radius}
	if form.Canvas != "" {
		req.Crop.Canvas = json.RawMessage(form.Canvas)
	}
	if form.Reference != "" {
		if err := json.Unmarshal([]byte(form.Reference), &req.Reference); err != nil {
			abortWithError(c, fmt.Errorf("%w: reference: %v", counter.ErrInvalidRequest, err))
			return
		}
	}

	res, err := a.svc.CountBytes(c.Request.Context(), data, req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	writeDetection(c, res)
}
