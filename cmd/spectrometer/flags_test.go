package main

import (
	"testing"

	"github.com/banshee-data/spectrum.report/internal/spectro/l1frames"
	"github.com/banshee-data/spectrum.report/internal/timeutil"
)

// TestFlagDefaults verifies the daemon's flag defaults.
func TestFlagDefaults(t *testing.T) {
	if *listen != ":8080" {
		t.Errorf("listen default = %q, want :8080", *listen)
	}
	if *dbPath != "spectrum.db" {
		t.Errorf("db default = %q, want spectrum.db", *dbPath)
	}
	if !*autostart {
		t.Error("autostart should default to true")
	}
	if *feedTCP != "" || *feedGRPC != "" {
		t.Errorf("feeds should be disabled by default, got tcp=%q grpc=%q", *feedTCP, *feedGRPC)
	}
}

// TestSourceFactory_Dev verifies dev mode yields the synthetic source.
func TestSourceFactory_Dev(t *testing.T) {
	*devMode = true
	defer func() { *devMode = false }()

	src, err := sourceFactory(timeutil.RealClock{})()
	if err != nil {
		t.Fatalf("sourceFactory() error = %v", err)
	}
	defer src.Close()
	if _, ok := src.(*l1frames.SyntheticSource); !ok {
		t.Errorf("sourceFactory() = %T, want *l1frames.SyntheticSource", src)
	}
}

// TestSourceFactory_ImagesMissing verifies a bad image directory surfaces
// as an error rather than a typed nil source.
func TestSourceFactory_ImagesMissing(t *testing.T) {
	*imageDir = t.TempDir() + "/missing"
	defer func() { *imageDir = "" }()

	src, err := sourceFactory(timeutil.RealClock{})()
	if err == nil {
		t.Fatal("expected error for missing image directory")
	}
	if src != nil {
		t.Errorf("source = %v, want nil interface", src)
	}
}
