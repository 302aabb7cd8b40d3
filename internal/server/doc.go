// Package server exposes the billet counting workflow as MCP tools.
//
// The server speaks JSON-RPC 2.0 over stdio, one message per line:
//   - initialize: protocol handshake
//   - tools/list: enumerate the tools below
//   - tools/call: run a tool
//   - ping: health check
//
// stdout carries protocol messages only; logging goes to stderr.
//
// # Tools
//
// A counting session follows the same steps as the upload UI:
//
//   - billet_load: load an image from a path or base64 data, start a session
//   - billet_grid: coordinate grid over the image, for choosing corners
//   - billet_crop: select the region of interest (percent, corners or canvas)
//   - billet_reference: set the reference radius (circles, box or diameter)
//   - billet_detect: count billets in the region and return the overlay
//   - billet_preview: blurred or edge view of what the detector sees
//   - billet_read_tag: OCR the bundle tag
//   - billet_session_close: drop a session
//
// billet_count does load, crop, reference and detect in one call without
// keeping a session.
//
// # Errors
//
// Unknown methods return -32601. Undecodable tools/call params, unknown
// tools, bad arguments and a missing session_id return -32602. Any other
// tool failure returns -32000 with the underlying error text as data.
package server
