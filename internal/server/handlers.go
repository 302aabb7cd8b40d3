package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/ironsheep/billet-counter/internal/counter"
	"github.com/ironsheep/billet-counter/internal/detection"
	"github.com/ironsheep/billet-counter/internal/imaging"
)

// errInvalidArguments marks tool calls whose arguments could not be used
// at all; they are reported as -32602 rather than as tool failures.
var errInvalidArguments = errors.New("invalid arguments")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "billet_load", "billet_detect").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		if errors.Is(err, errInvalidArguments) {
			return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
		}
		log.Printf("Tool %s failed: %v", params.Name, err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "billet_load":
		return s.handleLoad(args)
	case "billet_grid":
		return s.handleGrid(args)
	case "billet_crop":
		return s.handleCrop(args)
	case "billet_reference":
		return s.handleReference(args)
	case "billet_detect":
		return s.handleDetect(ctx, args)
	case "billet_count":
		return s.handleCount(ctx, args)
	case "billet_preview":
		return s.handlePreview(args)
	case "billet_read_tag":
		return s.handleReadTag(args)
	case "billet_session_close":
		return s.handleSessionClose(args)
	default:
		return nil, fmt.Errorf("%w: unknown tool: %s", errInvalidArguments, name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments; missing arguments decode as {}.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidArguments, err)
	}
	return nil
}

func requireSession(id string) error {
	if id == "" {
		return fmt.Errorf("%w: session_id is required", errInvalidArguments)
	}
	return nil
}

// === Session Handlers ===

type loadArgs struct {
	Path        string `json:"path"`
	ImageBase64 string `json:"image_base64"`
}

// imageBytes returns decoded base64 data, or nil when a path was given.
func (a loadArgs) imageBytes() ([]byte, error) {
	if a.Path != "" {
		return nil, nil
	}
	if a.ImageBase64 == "" {
		return nil, fmt.Errorf("%w: path or image_base64 is required", errInvalidArguments)
	}
	data, err := base64.StdEncoding.DecodeString(a.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: image_base64: %v", errInvalidArguments, err)
	}
	return data, nil
}

func (s *Server) handleLoad(args json.RawMessage) (interface{}, error) {
	var a loadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	data, err := a.imageBytes()
	if err != nil {
		return nil, err
	}
	if data == nil {
		return s.svc.Load(a.Path)
	}
	return s.svc.Upload(data)
}

type gridArgs struct {
	SessionID       string  `json:"session_id"`
	GridSpacing     int     `json:"grid_spacing"`
	ShowCoordinates *bool   `json:"show_coordinates"`
	GridColor       string  `json:"grid_color"`
	Scale           float64 `json:"scale"`
}

func (s *Server) handleGrid(args json.RawMessage) (interface{}, error) {
	var a gridArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireSession(a.SessionID); err != nil {
		return nil, err
	}
	show := true
	if a.ShowCoordinates != nil {
		show = *a.ShowCoordinates
	}
	img, err := s.svc.Grid(a.SessionID, a.GridSpacing, show, a.GridColor)
	if err != nil {
		return nil, err
	}
	return imaging.Encode(img, a.Scale)
}

type cropArgs struct {
	SessionID string `json:"session_id"`
	counter.CropRequest
	Scale float64 `json:"scale"`
}

type cropResult struct {
	SessionID string                `json:"session_id"`
	ROI       imaging.ROI           `json:"roi"`
	Image     *imaging.EncodedImage `json:"image"`
}

func (s *Server) handleCrop(args json.RawMessage) (interface{}, error) {
	var a cropArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireSession(a.SessionID); err != nil {
		return nil, err
	}
	res, err := s.svc.Crop(a.SessionID, a.CropRequest)
	if err != nil {
		return nil, err
	}
	enc, err := imaging.Encode(res.Image, a.Scale)
	if err != nil {
		return nil, err
	}
	return &cropResult{SessionID: a.SessionID, ROI: res.ROI, Image: enc}, nil
}

type referenceArgs struct {
	SessionID string `json:"session_id"`
	counter.ReferenceRequest
}

func (s *Server) handleReference(args json.RawMessage) (interface{}, error) {
	var a referenceArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireSession(a.SessionID); err != nil {
		return nil, err
	}
	return s.svc.Reference(a.SessionID, a.ReferenceRequest)
}

// === Detection Handlers ===

type detectArgs struct {
	SessionID string  `json:"session_id"`
	Scale     float64 `json:"scale"`
}

type detectResult struct {
	*detection.Result
	Overlay *imaging.EncodedImage `json:"overlay"`
}

func newDetectResult(res *detection.Result, scale float64) (*detectResult, error) {
	enc, err := imaging.Encode(res.Overlay, scale)
	if err != nil {
		return nil, err
	}
	return &detectResult{Result: res, Overlay: enc}, nil
}

func (s *Server) handleDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a detectArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireSession(a.SessionID); err != nil {
		return nil, err
	}
	res, err := s.svc.Detect(ctx, a.SessionID)
	if err != nil {
		return nil, err
	}
	return newDetectResult(res, a.Scale)
}

type countArgs struct {
	loadArgs
	counter.CountRequest
	Scale float64 `json:"scale"`
}

func (s *Server) handleCount(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a countArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	data, err := a.imageBytes()
	if err != nil {
		return nil, err
	}

	var res *detection.Result
	if data == nil {
		res, err = s.svc.CountFile(ctx, a.Path, a.CountRequest)
	} else {
		res, err = s.svc.CountBytes(ctx, data, a.CountRequest)
	}
	if err != nil {
		return nil, err
	}
	return newDetectResult(res, a.Scale)
}

type previewArgs struct {
	SessionID string              `json:"session_id"`
	Kind      counter.PreviewKind `json:"kind"`
	Scale     float64             `json:"scale"`
}

func (s *Server) handlePreview(args json.RawMessage) (interface{}, error) {
	var a previewArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireSession(a.SessionID); err != nil {
		return nil, err
	}
	img, err := s.svc.Preview(a.SessionID, a.Kind)
	if err != nil {
		return nil, err
	}
	return imaging.Encode(img, a.Scale)
}

// === OCR Handlers ===

type readTagArgs struct {
	SessionID string `json:"session_id"`
	X1        *int   `json:"x1"`
	Y1        *int   `json:"y1"`
	X2        *int   `json:"x2"`
	Y2        *int   `json:"y2"`
	Language  string `json:"language"`
}

// region returns the tag region, nil when no corner was given.
func (a readTagArgs) region() (*image.Rectangle, error) {
	set := 0
	for _, v := range []*int{a.X1, a.Y1, a.X2, a.Y2} {
		if v != nil {
			set++
		}
	}
	switch set {
	case 0:
		return nil, nil
	case 4:
		r := image.Rectangle{Min: image.Pt(*a.X1, *a.Y1), Max: image.Pt(*a.X2, *a.Y2)}
		return &r, nil
	default:
		return nil, fmt.Errorf("%w: tag region needs all of x1, y1, x2, y2", errInvalidArguments)
	}
}

func (s *Server) handleReadTag(args json.RawMessage) (interface{}, error) {
	var a readTagArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireSession(a.SessionID); err != nil {
		return nil, err
	}
	region, err := a.region()
	if err != nil {
		return nil, err
	}
	return s.svc.ReadTag(a.SessionID, region, a.Language)
}

type sessionCloseArgs struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleSessionClose(args json.RawMessage) (interface{}, error) {
	var a sessionCloseArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := requireSession(a.SessionID); err != nil {
		return nil, err
	}
	if err := s.svc.Close(a.SessionID); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"session_id": a.SessionID,
		"closed":     true,
	}, nil
}
