// Package counter runs the billet counting workflow on top of the image,
// reference, detection and session packages. The MCP server, the HTTP API
// and the count command all call into a Service, so the three surfaces
// share one set of rules for cropping, reference radii and detection.
package counter
