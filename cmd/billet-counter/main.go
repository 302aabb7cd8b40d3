package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ironsheep/billet-counter/internal/config"
	"github.com/ironsheep/billet-counter/internal/counter"
	"github.com/ironsheep/billet-counter/internal/detection"
	"github.com/ironsheep/billet-counter/internal/httpapi"
	"github.com/ironsheep/billet-counter/internal/imaging"
	"github.com/ironsheep/billet-counter/internal/reference"
	"github.com/ironsheep/billet-counter/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("billet-counter %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if cfg.Debug() {
		log.Printf("Billet counter v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	svc, err := counter.New(cfg, detection.NewHoughDetector())
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if !svc.DetectorAvailable() {
		log.Printf("Circle detection unavailable: %v", detection.ErrDetectorUnavailable)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go svc.Sessions().Run(ctx, sweepInterval(cfg.SessionTTL))

	mode := ""
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	switch mode {
	case "", "mcp":
		err = server.New(svc, Version).Run(ctx)
	case "serve":
		err = serveHTTP(ctx, svc)
	case "count":
		err = runCount(ctx, svc, os.Args[2:], os.Stdout)
	default:
		err = fmt.Errorf("unknown command %q (try --help)", mode)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func printHelp() {
	fmt.Println("billet-counter - count steel billets in bundle photos")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  billet-counter [mcp]          MCP server over stdin/stdout (default)")
	fmt.Println("  billet-counter serve          HTTP API on BILLET_HTTP_ADDR")
	fmt.Println("  billet-counter count [flags] <image>")
	fmt.Println("                                Count once and print the result as JSON")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables (also read from .env):")
	fmt.Println("  BILLET_LOG_LEVEL=debug         Enable debug logging")
	fmt.Println("  BILLET_HTTP_ADDR=:8080         HTTP listen address")
	fmt.Println("  BILLET_MAX_UPLOAD_MB=20        Largest accepted image")
	fmt.Println("  BILLET_SESSION_TTL=30m         Idle time before a session expires")
	fmt.Println("  BILLET_REFERENCE_LIMIT=100     Largest reference circle size")
	fmt.Println("  BILLET_REFERENCE_COUNT=2       Default number of reference circles")
	fmt.Println("  BILLET_BLUR_KERNEL=11          Gaussian blur before detection")
	fmt.Println("  BILLET_OVERLAY_LABEL=false     Print the count on overlays")
	fmt.Println("  BILLET_OCR_LANGUAGE=eng        Tesseract language for tag reading")
	fmt.Println()
	fmt.Println("Circle detection needs a build with -tags gocv, tag reading -tags tesseract.")
}

// sweepInterval checks for idle sessions a few times per TTL.
func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	return interval
}

func serveHTTP(ctx context.Context, svc *counter.Service) error {
	cfg := svc.Config()
	if !cfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(svc, Version),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// refList collects repeated --ref WxH flags.
type refList []reference.Circle

func (r *refList) String() string {
	parts := make([]string, len(*r))
	for i, c := range *r {
		parts[i] = fmt.Sprintf("%dx%d", c.Width, c.Height)
	}
	return strings.Join(parts, ",")
}

func (r *refList) Set(v string) error {
	w, h, ok := strings.Cut(strings.ToLower(v), "x")
	if !ok {
		return fmt.Errorf("expected WxH, got %q", v)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return fmt.Errorf("invalid width in %q", v)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return fmt.Errorf("invalid height in %q", v)
	}
	*r = append(*r, reference.Circle{Width: width, Height: height})
	return nil
}

// parseNumbers splits a comma separated list of exactly n numbers.
func parseNumbers(v string, n int) ([]float64, error) {
	parts := strings.Split(v, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated numbers, got %q", n, v)
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", p)
		}
		out[i] = f
	}
	return out, nil
}

// runCount counts billets in one image and writes the result as JSON to w.
// The image may come before or after the flags.
func runCount(ctx context.Context, svc *counter.Service, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("count", flag.ContinueOnError)
	percent := fs.String("percent", "", "crop by percentages: left,right,top,bottom")
	corners := fs.String("corners", "", "crop by corners: x1,y1,x2,y2")
	canvasFile := fs.String("canvas", "", "crop by the first rectangle in a canvas JSON file")
	radius := fs.Int("radius", 0, "average billet radius in pixels (skips references)")
	out := fs.String("out", "", "write the overlay PNG to this file")
	var refs refList
	fs.Var(&refs, "ref", "reference circle WxH (repeatable, default 50x50 twice)")

	var path string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		path, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if path == "" && fs.NArg() == 1 {
		path = fs.Arg(0)
	} else if path == "" || fs.NArg() != 0 {
		return errors.New("usage: billet-counter count [flags] <image>")
	}

	req := counter.CountRequest{
		Radius:    *radius,
		Reference: counter.ReferenceRequest{Mode: counter.ReferenceCircles, Circles: refs},
	}

	switch {
	case *percent != "":
		v, err := parseNumbers(*percent, 4)
		if err != nil {
			return fmt.Errorf("--percent: %w", err)
		}
		req.Crop = counter.CropRequest{Mode: imaging.ROIModePercent, Left: &v[0], Right: &v[1], Top: &v[2], Bottom: &v[3]}
	case *corners != "":
		v, err := parseNumbers(*corners, 4)
		if err != nil {
			return fmt.Errorf("--corners: %w", err)
		}
		req.Crop = counter.CropRequest{Mode: imaging.ROIModeCorners, X1: int(v[0]), Y1: int(v[1]), X2: int(v[2]), Y2: int(v[3])}
	case *canvasFile != "":
		data, err := os.ReadFile(*canvasFile)
		if err != nil {
			return fmt.Errorf("--canvas: %w", err)
		}
		req.Crop = counter.CropRequest{Mode: imaging.ROIModeCanvas, Canvas: data}
	default:
		// Whole image
		req.Crop = counter.CropRequest{Mode: imaging.ROIModePercent}
	}

	res, err := svc.CountFile(ctx, path, req)
	if err != nil {
		return err
	}

	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", *out, err)
		}
		if err := imaging.WritePNG(f, res.Overlay, 1); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
