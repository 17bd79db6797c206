// Package config loads server settings from environment variables.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names.
const (
	EnvAddr        = "IMAGE_FILTER_ADDR"
	EnvMaxUploadMB = "IMAGE_FILTER_MAX_UPLOAD_MB"
	EnvMaxPixels   = "IMAGE_FILTER_MAX_PIXELS"
	EnvFormat      = "IMAGE_FILTER_FORMAT"
	EnvJPEGQuality = "IMAGE_FILTER_JPEG_QUALITY"
	EnvTimeout     = "IMAGE_FILTER_TIMEOUT"
	EnvMaxImages   = "IMAGE_FILTER_MAX_IMAGES"
	EnvCORSOrigin  = "IMAGE_FILTER_CORS_ORIGIN"
	EnvLogLevel    = "IMAGE_FILTER_LOG_LEVEL"

	// EnvPort is honored when EnvAddr is unset; container platforms set it.
	EnvPort = "PORT"
)

const (
	defaultAddr      = ":18080"
	defaultFormat    = "jpeg"
	defaultOrigin    = "*"
	defaultUploadMB  = 10
	defaultMaxPixels = 40_000_000
	defaultQuality   = 90
	defaultTimeout   = 30 * time.Second
)

// Config holds the server settings.
type Config struct {
	// Addr is the listen address, e.g. ":18080".
	Addr string

	// MaxUploadBytes caps the size of an uploaded image body.
	MaxUploadBytes int64

	// MaxPixels caps width*height of decoded uploads. 0 disables the check.
	MaxPixels int

	// OutputFormat is used for downloads when the source format cannot be
	// re-encoded and no format is requested: "jpeg", "png" or "bmp".
	OutputFormat string

	// JPEGQuality is the encoder quality (1-100) for JPEG downloads.
	JPEGQuality int

	// FilterTimeout bounds a single filter request. 0 disables it.
	FilterTimeout time.Duration

	// MaxImages caps the number of stored image ids. 0 means unlimited.
	MaxImages int

	// CORSOrigin is sent as Access-Control-Allow-Origin.
	CORSOrigin string

	// Debug enables verbose logging.
	Debug bool
}

// Default returns the settings used when no environment variables are set.
func Default() *Config {
	return &Config{
		Addr:           defaultAddr,
		MaxUploadBytes: defaultUploadMB << 20,
		MaxPixels:      defaultMaxPixels,
		OutputFormat:   defaultFormat,
		JPEGQuality:    defaultQuality,
		FilterTimeout:  defaultTimeout,
		CORSOrigin:     defaultOrigin,
	}
}

// Load reads settings from the environment, falling back to Default for
// anything unset. Malformed values are reported as errors rather than
// silently ignored.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if v := getenv(EnvAddr); v != "" {
		cfg.Addr = v
	} else if v := getenv(EnvPort); v != "" {
		cfg.Addr = ":" + v
	}

	mb, err := intVar(getenv, EnvMaxUploadMB, defaultUploadMB, 1)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(mb) << 20

	if cfg.MaxPixels, err = intVar(getenv, EnvMaxPixels, defaultMaxPixels, 0); err != nil {
		return nil, err
	}
	if cfg.JPEGQuality, err = intVar(getenv, EnvJPEGQuality, defaultQuality, 1); err != nil {
		return nil, err
	}
	if cfg.JPEGQuality > 100 {
		return nil, fmt.Errorf("%s: quality %d exceeds 100", EnvJPEGQuality, cfg.JPEGQuality)
	}
	if cfg.MaxImages, err = intVar(getenv, EnvMaxImages, 0, 0); err != nil {
		return nil, err
	}

	if v := getenv(EnvFormat); v != "" {
		switch f := strings.ToLower(v); f {
		case "jpeg", "jpg":
			cfg.OutputFormat = "jpeg"
		case "png", "bmp":
			cfg.OutputFormat = f
		default:
			return nil, fmt.Errorf("%s: unsupported format %q", EnvFormat, v)
		}
	}

	if v := getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("%s: invalid duration %q", EnvTimeout, v)
		}
		cfg.FilterTimeout = d
	}

	if v := getenv(EnvCORSOrigin); v != "" {
		cfg.CORSOrigin = v
	}

	cfg.Debug = strings.EqualFold(getenv(EnvLogLevel), "debug")
	return cfg, nil
}

func intVar(getenv func(string) string, name string, def, lo int) (int, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", name, v)
	}
	if n < lo {
		return 0, fmt.Errorf("%s: %d is below the minimum %d", name, n, lo)
	}
	return n, nil
}

// LogSummary writes the effective settings to the standard logger.
func (c *Config) LogSummary() {
	log.Printf("[startup] addr=%s maxUploadMiB=%d maxPixels=%d format=%s jpegQuality=%d timeout=%s maxImages=%d cors=%s debug=%v",
		c.Addr, c.MaxUploadBytes>>20, c.MaxPixels, c.OutputFormat, c.JPEGQuality,
		c.FilterTimeout, c.MaxImages, c.CORSOrigin, c.Debug)
}
