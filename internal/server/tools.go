package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var sessionIDProperty = map[string]interface{}{
	"type":        "string",
	"description": "Session ID returned by billet_load",
}

var scaleProperty = map[string]interface{}{
	"type":        "number",
	"description": "Optional scale factor for the returned image (e.g., 0.5 for half size). Default 1.0",
	"default":     1.0,
}

// cropProperties are shared by billet_crop and billet_count.
func cropProperties() map[string]interface{} {
	percent := func(edge string, def float64) map[string]interface{} {
		return map[string]interface{}{
			"type":        "number",
			"minimum":     0,
			"maximum":     100,
			"default":     def,
			"description": "Percent mode: " + edge + " edge as a percentage of the image size",
		}
	}
	corner := func(desc string) map[string]interface{} {
		return map[string]interface{}{
			"type":        "integer",
			"description": "Corners mode: " + desc,
		}
	}
	return map[string]interface{}{
		"mode": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"percent", "corners", "canvas"},
			"default":     "corners",
			"description": "How the region is given: slider percentages, corner coordinates, or a drawn canvas rectangle",
		},
		"left":   percent("left", 0),
		"right":  percent("right", 100),
		"top":    percent("top", 0),
		"bottom": percent("bottom", 100),
		"x1":     corner("left edge X coordinate (0-based)"),
		"y1":     corner("top edge Y coordinate (0-based)"),
		"x2":     corner("right edge X coordinate (exclusive)"),
		"y2":     corner("bottom edge Y coordinate (exclusive)"),
		"canvas": map[string]interface{}{
			"type":        "object",
			"description": "Canvas mode: drawable canvas JSON ({\"objects\":[{\"left\",\"top\",\"width\",\"height\"}]}); the first object is used",
		},
		"canvas_width": map[string]interface{}{
			"type":        "integer",
			"description": "Canvas mode: displayed canvas width when it differs from the image width",
		},
		"canvas_height": map[string]interface{}{
			"type":        "integer",
			"description": "Canvas mode: displayed canvas height when it differs from the image height",
		},
	}
}

func referenceProperties() map[string]interface{} {
	point := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"x": map[string]interface{}{"type": "integer"},
			"y": map[string]interface{}{"type": "integer"},
		},
		"required": []string{"x", "y"},
	}
	return map[string]interface{}{
		"mode": map[string]interface{}{
			"type":        "string",
			"enum":        []string{"circles", "box", "diameter"},
			"default":     "circles",
			"description": "circles: width/height pairs; box: a box drawn around one billet; diameter: two points across one billet",
		},
		"circles": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"width":  map[string]interface{}{"type": "integer", "minimum": 1},
					"height": map[string]interface{}{"type": "integer", "minimum": 1},
				},
				"required": []string{"width", "height"},
			},
			"description": "Reference circle sizes in pixels. Radius of each is (width + height) / 4. Default: two 50x50 circles",
		},
		"box": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"x1": map[string]interface{}{"type": "integer"},
				"y1": map[string]interface{}{"type": "integer"},
				"x2": map[string]interface{}{"type": "integer"},
				"y2": map[string]interface{}{"type": "integer"},
			},
			"description": "Box mode: box around one billet, in region coordinates",
		},
		"p1": point,
		"p2": point,
	}
}

func withProperties(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "billet_load",
			Description: "Load a JPEG or PNG photo of a billet bundle and start a counting session. Give either a file path or base64 image data.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"image_base64": map[string]interface{}{
						"type":        "string",
						"description": "Base64-encoded image data, used when path is empty",
					},
				},
			},
		},
		{
			Name:        "billet_grid",
			Description: "Draw a labelled coordinate grid over the session image to help choose crop corners.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
					"grid_spacing": map[string]interface{}{
						"type":        "integer",
						"description": "Pixels between grid lines. Default 50",
						"default":     50,
					},
					"show_coordinates": map[string]interface{}{
						"type":        "boolean",
						"description": "Label grid intersections with coordinates. Default true",
						"default":     true,
					},
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Grid line colour as hex. Default #FF0000",
						"default":     "#FF0000",
					},
					"scale": scaleProperty,
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "billet_crop",
			Description: "Select the region of interest to count in. Out-of-range bounds are clipped to the image; an empty region is an error. Returns the region and its pixels as base64 PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(cropProperties(), map[string]interface{}{
					"session_id": sessionIDProperty,
					"scale":      scaleProperty,
				}),
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "billet_reference",
			Description: "Set the reference billet size. The average radius sets the detector's search range (0.8x to 1.2x) and minimum spacing (1.5x).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProperties(referenceProperties(), map[string]interface{}{
					"session_id": sessionIDProperty,
				}),
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "billet_detect",
			Description: "Count billets in the session's region. Returns the count, each circle, the detector parameters and an overlay image with circles in green and boxes in orange.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
					"scale":      scaleProperty,
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "billet_count",
			Description: "Load, crop, set the reference and count in one call without keeping a session.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"image_base64": map[string]interface{}{
						"type":        "string",
						"description": "Base64-encoded image data, used when path is empty",
					},
					"crop": map[string]interface{}{
						"type":        "object",
						"properties":  cropProperties(),
						"description": "Region of interest, as for billet_crop",
					},
					"reference": map[string]interface{}{
						"type":        "object",
						"properties":  referenceProperties(),
						"description": "Reference billet size, as for billet_reference",
					},
					"radius": map[string]interface{}{
						"type":        "integer",
						"description": "Average radius in pixels; overrides reference when positive",
					},
					"scale": scaleProperty,
				},
			},
		},
		{
			Name:        "billet_preview",
			Description: "Show what the detector sees: the blurred grayscale region, or its edges at the detector's edge threshold.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
					"kind": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"blur", "edges"},
						"description": "Preview kind. Default blur",
						"default":     "blur",
					},
					"scale": scaleProperty,
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "billet_read_tag",
			Description: "Read the bundle's heat-number tag with OCR, optionally only inside a region of the session image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
					"x1": map[string]interface{}{
						"type":        "integer",
						"description": "Tag region left edge. Omit all four to read the whole image",
					},
					"y1": map[string]interface{}{
						"type":        "integer",
						"description": "Tag region top edge",
					},
					"x2": map[string]interface{}{
						"type":        "integer",
						"description": "Tag region right edge (exclusive)",
					},
					"y2": map[string]interface{}{
						"type":        "integer",
						"description": "Tag region bottom edge (exclusive)",
					},
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Tesseract language code. Default eng",
						"default":     "eng",
					},
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "billet_session_close",
			Description: "End a counting session and free its image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty,
				},
				"required": []string{"session_id"},
			},
		},
	}
}
