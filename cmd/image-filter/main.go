package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/image-filter-server/internal/config"
	"github.com/ironsheep/image-filter-server/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("image-filter %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("image-filter - HTTP server for raster image filters")
			fmt.Println()
			fmt.Println("Usage: image-filter [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			d := config.Default()
			fmt.Printf("  %-28s Listen address (default %s; PORT also works)\n", config.EnvAddr, d.Addr)
			fmt.Printf("  %-28s Upload size limit in MiB (default %d)\n", config.EnvMaxUploadMB, d.MaxUploadBytes>>20)
			fmt.Printf("  %-28s Pixel count limit, 0 disables (default %d)\n", config.EnvMaxPixels, d.MaxPixels)
			fmt.Printf("  %-28s Fallback download format: jpeg, png, bmp (default %s)\n", config.EnvFormat, d.OutputFormat)
			fmt.Printf("  %-28s JPEG quality 1-100 (default %d)\n", config.EnvJPEGQuality, d.JPEGQuality)
			fmt.Printf("  %-28s Per-filter deadline, 0 disables (default %s)\n", config.EnvTimeout, d.FilterTimeout)
			fmt.Printf("  %-28s Stored image limit, 0 is unlimited\n", config.EnvMaxImages)
			fmt.Printf("  %-28s Access-Control-Allow-Origin (default %s)\n", config.EnvCORSOrigin, d.CORSOrigin)
			fmt.Printf("  %-28s Set to debug for verbose logging\n", config.EnvLogLevel)
			return
		}
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if cfg.Debug {
		log.Printf("Image Filter Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}
	cfg.LogSummary()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
