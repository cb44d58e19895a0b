package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/banshee-data/spectrum.report/internal/api"
	"github.com/banshee-data/spectrum.report/internal/camera"
	"github.com/banshee-data/spectrum.report/internal/config"
	"github.com/banshee-data/spectrum.report/internal/db"
	"github.com/banshee-data/spectrum.report/internal/feed"
	"github.com/banshee-data/spectrum.report/internal/spectro/l1frames"
	"github.com/banshee-data/spectrum.report/internal/spectro/pipeline"
	"github.com/banshee-data/spectrum.report/internal/timeutil"
	"github.com/banshee-data/spectrum.report/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Use the synthetic frame source instead of a camera")
	listen     = flag.String("listen", ":8080", "HTTP listen address")
	configPath = flag.String("config", "", "Path to a spectrometer JSON config (defaults when empty)")
	dbPath     = flag.String("db", "spectrum.db", "SQLite database path (empty disables storage)")
	cameraID   = flag.Int("camera", 0, "Camera device index")
	camWidth   = flag.Int("camera-width", 0, "Requested camera frame width (0 keeps the driver default)")
	camHeight  = flag.Int("camera-height", 0, "Requested camera frame height (0 keeps the driver default)")
	camFPS     = flag.Float64("camera-fps", 0, "Requested camera frame rate (0 keeps the driver default)")
	imageDir   = flag.String("images", "", "Replay PNG/JPEG frames from this directory instead of a camera")
	autostart  = flag.Bool("autostart", true, "Start capturing at launch")
	feedTCP    = flag.String("feed-tcp", "", "TCP listen address for the JSON spectrum feed (empty disables)")
	feedGRPC   = flag.String("feed-grpc", "", "gRPC listen address for the spectrum feed (empty disables)")
	verbose    = flag.Bool("verbose", false, "Log diagnostics to stdout")
	trace      = flag.Bool("trace", false, "Log per-frame telemetry to stdout")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

// configureLogging routes every package's ops stream to stderr and the diag
// and trace streams to stdout when enabled.
func configureLogging() {
	var diag, tr io.Writer
	if *verbose {
		diag = os.Stdout
	}
	if *trace {
		tr = os.Stdout
	}
	pipeline.SetLogWriters(os.Stderr, diag, tr)
	feed.SetLogWriters(os.Stderr, diag, tr)
	api.SetLogWriters(os.Stderr, diag, tr)
	camera.SetLogWriters(os.Stderr, diag, tr)
}

func sourceFactory(clock timeutil.Clock) api.SourceFactory {
	switch {
	case *devMode:
		return func() (l1frames.FrameSource, error) {
			return l1frames.NewSyntheticSource(clock, time.Now().UnixNano()), nil
		}
	case *imageDir != "":
		return func() (l1frames.FrameSource, error) {
			src, err := camera.OpenDir(*imageDir, true)
			if err != nil {
				return nil, err
			}
			return src, nil
		}
	default:
		return func() (l1frames.FrameSource, error) {
			dev, err := camera.Open(camera.Options{Device: *cameraID, Width: *camWidth, Height: *camHeight, FrameRate: *camFPS})
			if err != nil {
				return nil, err
			}
			return dev, nil
		}
	}
}

// Main
func main() {
	flag.Parse()

	if *showVer {
		version.Print(os.Stdout)
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	configureLogging()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = cfg.Merge(loaded)
		log.Printf("loaded config from %s", *configPath)
	}
	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	clock := timeutil.RealClock{}
	coord, err := pipeline.NewCoordinator(pc, clock)
	if err != nil {
		log.Fatalf("failed to create pipeline: %v", err)
	}

	var store *db.DB
	if *dbPath != "" {
		store, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()
	}

	hub := feed.NewHub(feed.DefaultClientBuffer)
	coord.OnPublish(hub.Hook())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := coord.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("pipeline stopped: %v", err)
		}
		log.Print("pipeline routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("feed hub stopped: %v", err)
		}
	}()

	if *feedTCP != "" {
		ln, err := net.Listen("tcp", *feedTCP)
		if err != nil {
			log.Fatalf("failed to listen for feed clients: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hub.ServeTCP(ctx, ln); err != nil {
				log.Printf("tcp feed stopped: %v", err)
			}
		}()
		log.Printf("tcp spectrum feed on %s", ln.Addr())
	}

	if *feedGRPC != "" {
		ln, err := net.Listen("tcp", *feedGRPC)
		if err != nil {
			log.Fatalf("failed to listen for grpc clients: %v", err)
		}
		gs := grpc.NewServer()
		feed.RegisterSpectrumFeedServer(gs, feed.NewGRPCService(hub))
		wg.Add(1)
		go func() {
			defer wg.Done()
			go func() {
				<-ctx.Done()
				gs.GracefulStop()
			}()
			if err := gs.Serve(ln); err != nil {
				log.Printf("grpc feed stopped: %v", err)
			}
		}()
		log.Printf("grpc spectrum feed on %s", ln.Addr())
	}

	newSource := sourceFactory(clock)
	srv := api.NewServer(coord, store, hub, cfg, newSource)

	if *autostart {
		src, err := newSource()
		if err != nil {
			log.Printf("failed to open frame source, capture not started: %v", err)
		} else if err := coord.Attach(src); err != nil {
			log.Printf("failed to start capture: %v", err)
		} else {
			log.Printf("capturing from %s", src.Name())
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := srv.ServeMux()
		hub.AttachAdminRoutes(mux)
		if store != nil {
			if err := store.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach db admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("HTTP API listening on %s", *listen)

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
