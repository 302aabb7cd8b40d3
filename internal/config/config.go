// Package config loads runtime settings from the environment.
//
// A .env file in the working directory (or next to the executable) is loaded
// first; variables already present in the environment win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the counter. Zero values are never used;
// Load fills defaults for anything unset.
type Config struct {
	LogLevel string

	HTTPAddr       string
	MaxUploadBytes int64
	SessionTTL     time.Duration

	ReferenceLimit int
	ReferenceCount int

	HoughDP            float64
	HoughMinDistFactor float64
	HoughParam1        float64
	HoughParam2        float64
	RadiusMinFactor    float64
	RadiusMaxFactor    float64
	BlurKernel         int

	CircleColor  string
	BoxColor     string
	OverlayLabel bool

	OCRLanguage string
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		LogLevel:           "info",
		HTTPAddr:           ":8080",
		MaxUploadBytes:     20 << 20,
		SessionTTL:         30 * time.Minute,
		ReferenceLimit:     100,
		ReferenceCount:     2,
		HoughDP:            1.2,
		HoughMinDistFactor: 1.5,
		HoughParam1:        50,
		HoughParam2:        30,
		RadiusMinFactor:    0.8,
		RadiusMaxFactor:    1.2,
		BlurKernel:         11,
		CircleColor:        "#00FF00",
		BoxColor:           "#FF8000",
		OCRLanguage:        "eng",
	}
}

// Load reads .env (if any) and then the BILLET_* environment variables.
func Load() (*Config, error) {
	envPaths := []string{".env"}
	if execPath, err := os.Executable(); err == nil {
		envPaths = append(envPaths, filepath.Join(filepath.Dir(execPath), ".env"))
	}
	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
			}
			break
		}
	}

	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, starting from Default.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()
	p := &parser{getenv: getenv}

	cfg.LogLevel = strings.ToLower(p.str("BILLET_LOG_LEVEL", cfg.LogLevel))
	cfg.HTTPAddr = p.str("BILLET_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MaxUploadBytes = int64(p.integer("BILLET_MAX_UPLOAD_MB", int(cfg.MaxUploadBytes>>20))) << 20
	cfg.SessionTTL = p.duration("BILLET_SESSION_TTL", cfg.SessionTTL)
	cfg.ReferenceLimit = p.integer("BILLET_REFERENCE_LIMIT", cfg.ReferenceLimit)
	cfg.ReferenceCount = p.integer("BILLET_REFERENCE_COUNT", cfg.ReferenceCount)
	cfg.HoughDP = p.float("BILLET_HOUGH_DP", cfg.HoughDP)
	cfg.HoughMinDistFactor = p.float("BILLET_HOUGH_MIN_DIST_FACTOR", cfg.HoughMinDistFactor)
	cfg.HoughParam1 = p.float("BILLET_HOUGH_PARAM1", cfg.HoughParam1)
	cfg.HoughParam2 = p.float("BILLET_HOUGH_PARAM2", cfg.HoughParam2)
	cfg.RadiusMinFactor = p.float("BILLET_RADIUS_MIN_FACTOR", cfg.RadiusMinFactor)
	cfg.RadiusMaxFactor = p.float("BILLET_RADIUS_MAX_FACTOR", cfg.RadiusMaxFactor)
	cfg.BlurKernel = p.integer("BILLET_BLUR_KERNEL", cfg.BlurKernel)
	cfg.CircleColor = p.str("BILLET_CIRCLE_COLOR", cfg.CircleColor)
	cfg.BoxColor = p.str("BILLET_BOX_COLOR", cfg.BoxColor)
	cfg.OverlayLabel = p.boolean("BILLET_OVERLAY_LABEL", cfg.OverlayLabel)
	cfg.OCRLanguage = p.str("BILLET_OCR_LANGUAGE", cfg.OCRLanguage)

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the detector cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("BILLET_MAX_UPLOAD_MB must be positive")
	case c.ReferenceLimit < 1:
		return fmt.Errorf("BILLET_REFERENCE_LIMIT must be at least 1")
	case c.ReferenceCount < 1:
		return fmt.Errorf("BILLET_REFERENCE_COUNT must be at least 1")
	case c.HoughDP <= 0:
		return fmt.Errorf("BILLET_HOUGH_DP must be positive")
	case c.RadiusMinFactor <= 0 || c.RadiusMaxFactor < c.RadiusMinFactor:
		return fmt.Errorf("radius factors must satisfy 0 < min <= max")
	case c.BlurKernel < 1 || c.BlurKernel%2 == 0:
		return fmt.Errorf("BILLET_BLUR_KERNEL must be a positive odd number, got %d", c.BlurKernel)
	}
	return nil
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}

// parser accumulates the first conversion error so FromEnv stays linear.
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *parser) boolean(key string, def bool) bool {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}
