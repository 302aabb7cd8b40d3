package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/billet-counter/internal/detection"
	"github.com/ironsheep/billet-counter/internal/ocr"
)

// createTestPNG returns an encoded gradient image.
func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

func createTestImageFile(t *testing.T, width, height int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.png")
	if err := os.WriteFile(path, createTestPNG(t, width, height), 0644); err != nil {
		t.Fatalf("failed to write image: %v", err)
	}
	return path
}

// callTool runs one tools/call and decodes the text content into out.
func callTool(t *testing.T, s *Server, name string, args interface{}, out interface{}) *MCPError {
	t.Helper()

	argBytes, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("failed to marshal args: %v", err)
	}
	params, _ := json.Marshal(ToolCallParams{Name: name, Arguments: argBytes})

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  params,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return resp.Error
	}

	content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(content[0]["text"].(string)), out); err != nil {
			t.Fatalf("failed to decode tool result: %v", err)
		}
	}
	return nil
}

type loadResponse struct {
	SessionID string `json:"session_id"`
	Image     struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Format string `json:"format"`
	} `json:"image"`
}

type encodedResponse struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

type detectResponse struct {
	Count   int `json:"count"`
	Circles []struct {
		X      int `json:"x"`
		Y      int `json:"y"`
		Radius int `json:"radius"`
	} `json:"circles"`
	AverageRadius int             `json:"average_radius"`
	Params        map[string]any  `json:"params"`
	Overlay       encodedResponse `json:"overlay"`
}

func TestHandleToolsCall_Workflow(t *testing.T) {
	s := newTestServer(t,
		detection.RawCircle{X: 25.5, Y: 25, R: 24.6},
		detection.RawCircle{X: 80, Y: 26.5, R: 25},
	)
	path := createTestImageFile(t, 240, 160)

	var loaded loadResponse
	if e := callTool(t, s, "billet_load", map[string]interface{}{"path": path}, &loaded); e != nil {
		t.Fatalf("billet_load failed: %+v", e)
	}
	if loaded.SessionID == "" || loaded.Image.Width != 240 || loaded.Image.Format != "png" {
		t.Fatalf("billet_load result: %+v", loaded)
	}
	id := loaded.SessionID

	var grid encodedResponse
	if e := callTool(t, s, "billet_grid", map[string]interface{}{"session_id": id, "grid_spacing": 40}, &grid); e != nil {
		t.Fatalf("billet_grid failed: %+v", e)
	}
	if grid.Width != 240 || grid.MimeType != "image/png" {
		t.Errorf("billet_grid result: %dx%d %s", grid.Width, grid.Height, grid.MimeType)
	}

	var crop struct {
		ROI struct {
			Mode           string `json:"mode"`
			X1, Y1, X2, Y2 int
		} `json:"roi"`
		Image encodedResponse `json:"image"`
	}
	cropArgs := map[string]interface{}{
		"session_id": id,
		"mode":       "canvas",
		"canvas": map[string]interface{}{
			"objects": []map[string]interface{}{
				{"type": "rect", "left": 20.9, "top": 10, "width": 150, "height": 100},
			},
		},
	}
	if e := callTool(t, s, "billet_crop", cropArgs, &crop); e != nil {
		t.Fatalf("billet_crop failed: %+v", e)
	}
	if crop.ROI.Mode != "canvas" || crop.ROI.X1 != 20 || crop.ROI.X2 != 170 || crop.ROI.Y2 != 110 {
		t.Errorf("billet_crop roi: %+v", crop.ROI)
	}
	if crop.Image.Width != 150 || crop.Image.Height != 100 {
		t.Errorf("billet_crop image: %dx%d", crop.Image.Width, crop.Image.Height)
	}

	// Detect before the reference step is a tool failure
	if e := callTool(t, s, "billet_detect", map[string]interface{}{"session_id": id}, nil); e == nil || e.Code != -32000 {
		t.Errorf("billet_detect before reference: got %+v, want -32000", e)
	}

	var ref struct {
		AverageRadius int `json:"average_radius"`
	}
	refArgs := map[string]interface{}{
		"session_id": id,
		"circles":    []map[string]int{{"width": 50, "height": 50}, {"width": 48, "height": 52}},
	}
	if e := callTool(t, s, "billet_reference", refArgs, &ref); e != nil {
		t.Fatalf("billet_reference failed: %+v", e)
	}
	if ref.AverageRadius != 25 {
		t.Errorf("average radius: got %d, want 25", ref.AverageRadius)
	}

	var det detectResponse
	if e := callTool(t, s, "billet_detect", map[string]interface{}{"session_id": id}, &det); e != nil {
		t.Fatalf("billet_detect failed: %+v", e)
	}
	if det.Count != 2 || len(det.Circles) != 2 {
		t.Fatalf("billet_detect count: %+v", det)
	}
	if det.Circles[0].X != 26 || det.Circles[1].Y != 26 {
		t.Errorf("circles should be rounded half to even: %+v", det.Circles)
	}
	if det.Params["min_radius"] != float64(20) || det.Params["max_radius"] != float64(30) {
		t.Errorf("params: %v", det.Params)
	}
	if det.Overlay.Width != 150 || det.Overlay.ImageBase64 == "" {
		t.Errorf("overlay: %dx%d", det.Overlay.Width, det.Overlay.Height)
	}
	if _, err := base64.StdEncoding.DecodeString(det.Overlay.ImageBase64); err != nil {
		t.Errorf("overlay is not base64: %v", err)
	}

	var preview encodedResponse
	if e := callTool(t, s, "billet_preview", map[string]interface{}{"session_id": id, "kind": "edges", "scale": 0.5}, &preview); e != nil {
		t.Fatalf("billet_preview failed: %+v", e)
	}
	if preview.Width != 75 || preview.Height != 50 {
		t.Errorf("preview size: %dx%d, want 75x50", preview.Width, preview.Height)
	}

	var closed map[string]interface{}
	if e := callTool(t, s, "billet_session_close", map[string]interface{}{"session_id": id}, &closed); e != nil {
		t.Fatalf("billet_session_close failed: %+v", e)
	}
	if closed["closed"] != true {
		t.Errorf("close result: %v", closed)
	}
	if e := callTool(t, s, "billet_detect", map[string]interface{}{"session_id": id}, nil); e == nil {
		t.Error("closed session should be gone")
	}
}

func TestHandleToolsCall_LoadBase64(t *testing.T) {
	s := newTestServer(t)

	var loaded loadResponse
	args := map[string]interface{}{"image_base64": base64.StdEncoding.EncodeToString(createTestPNG(t, 30, 20))}
	if e := callTool(t, s, "billet_load", args, &loaded); e != nil {
		t.Fatalf("billet_load failed: %+v", e)
	}
	if loaded.Image.Width != 30 || loaded.Image.Height != 20 {
		t.Errorf("image: %+v", loaded.Image)
	}
}

func TestHandleToolsCall_Count(t *testing.T) {
	s := newTestServer(t, detection.RawCircle{X: 10, Y: 10, R: 10})
	path := createTestImageFile(t, 100, 100)

	var det detectResponse
	args := map[string]interface{}{
		"path":   path,
		"crop":   map[string]interface{}{"mode": "percent", "left": 10, "right": 90, "top": 10, "bottom": 90},
		"radius": 12,
	}
	if e := callTool(t, s, "billet_count", args, &det); e != nil {
		t.Fatalf("billet_count failed: %+v", e)
	}
	if det.Count != 1 || det.AverageRadius != 12 {
		t.Errorf("billet_count result: %+v", det)
	}
	if det.Overlay.Width != 80 || det.Overlay.Height != 80 {
		t.Errorf("overlay: %dx%d, want 80x80", det.Overlay.Width, det.Overlay.Height)
	}

	args = map[string]interface{}{
		"image_base64": base64.StdEncoding.EncodeToString(createTestPNG(t, 100, 100)),
		"crop":         map[string]interface{}{"mode": "corners", "x1": 0, "y1": 0, "x2": 60, "y2": 60},
		"reference":    map[string]interface{}{"circles": []map[string]int{{"width": 30, "height": 30}}},
	}
	if e := callTool(t, s, "billet_count", args, &det); e != nil {
		t.Fatalf("billet_count failed: %+v", e)
	}
	if det.AverageRadius != 15 {
		t.Errorf("average radius: got %d, want 15", det.AverageRadius)
	}
}

func TestHandleToolsCall_ReadTag(t *testing.T) {
	if ocr.Available() {
		t.Skip("Tesseract compiled in")
	}
	s := newTestServer(t)

	var loaded loadResponse
	if e := callTool(t, s, "billet_load", map[string]interface{}{"path": createTestImageFile(t, 40, 40)}, &loaded); e != nil {
		t.Fatalf("billet_load failed: %+v", e)
	}

	e := callTool(t, s, "billet_read_tag", map[string]interface{}{"session_id": loaded.SessionID}, nil)
	if e == nil || e.Code != -32000 {
		t.Fatalf("billet_read_tag: got %+v, want -32000", e)
	}
	if data, _ := e.Data.(string); !strings.Contains(data, "OCR unavailable") {
		t.Errorf("error data: got %v", e.Data)
	}

	e = callTool(t, s, "billet_read_tag", map[string]interface{}{"session_id": loaded.SessionID, "x1": 1}, nil)
	if e == nil || e.Code != -32602 {
		t.Errorf("partial region: got %+v, want -32602", e)
	}

	// Reversed corners select nothing, like a reversed crop
	e = callTool(t, s, "billet_read_tag", map[string]interface{}{
		"session_id": loaded.SessionID, "x1": 30, "y1": 30, "x2": 10, "y2": 10,
	}, nil)
	if e == nil || e.Code != -32000 {
		t.Fatalf("reversed region: got %+v, want -32000", e)
	}
	if data, _ := e.Data.(string); !strings.Contains(data, "empty") {
		t.Errorf("reversed region error: got %v", e.Data)
	}
}

func TestReadTagArgs_Region(t *testing.T) {
	x1, y1, x2, y2 := 30, 30, 10, 10
	r, err := readTagArgs{X1: &x1, Y1: &y1, X2: &x2, Y2: &y2}.region()
	if err != nil {
		t.Fatalf("region failed: %v", err)
	}
	if r.Min != image.Pt(30, 30) || r.Max != image.Pt(10, 10) || !r.Empty() {
		t.Errorf("reversed corners should stay reversed, got %v", *r)
	}
}

func TestHandleToolsCall_InvalidArguments(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		tool     string
		args     interface{}
		wantCode int
	}{
		{"unknown tool", "image_load", map[string]interface{}{}, -32602},
		{"missing session", "billet_detect", map[string]interface{}{}, -32602},
		{"wrong type", "billet_crop", map[string]interface{}{"session_id": 7}, -32602},
		{"no image", "billet_load", map[string]interface{}{}, -32602},
		{"bad base64", "billet_load", map[string]interface{}{"image_base64": "***"}, -32602},
		{"unknown session", "billet_crop", map[string]interface{}{"session_id": "nope"}, -32000},
		{"missing file", "billet_load", map[string]interface{}{"path": "/nonexistent/bundle.png"}, -32000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := callTool(t, s, tt.tool, tt.args, nil)
			if e == nil {
				t.Fatal("expected an error")
			}
			if e.Code != tt.wantCode {
				t.Errorf("code: got %d, want %d (%v)", e.Code, tt.wantCode, e.Data)
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`"not an object"`),
	})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("got %+v, want -32602", resp.Error)
	}
}
