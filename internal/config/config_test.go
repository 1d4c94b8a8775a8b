package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if cfg.Geocoder.BaseURL == "" || cfg.Router.BaseURL == "" {
		t.Fatalf("defaults missing: %+v", cfg)
	}
	if len(cfg.Fleet) != 7 {
		t.Fatalf("default fleet size %d", len(cfg.Fleet))
	}
	if cfg.Params.RadiusKm != 150 || cfg.Params.DieselPrice != 6.0 {
		t.Fatalf("default params: %+v", cfg.Params)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
geocoder:
  userAgent: test-agent/1.0
  minIntervalSeconds: 0.5
params:
  radiusKm: 80
fleet:
  - type: Sprinter
    capacityKg: 1200
    available: 3
    maxStops: 10
    kmPerLiter: 8
    axles: 2
    fixedCost: 90
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Geocoder.UserAgent != "test-agent/1.0" {
		t.Fatalf("user agent %q", cfg.Geocoder.UserAgent)
	}
	if got := cfg.Geocoder.MinInterval(); got != 500*time.Millisecond {
		t.Fatalf("min interval %v", got)
	}
	if cfg.Params.RadiusKm != 80 {
		t.Fatalf("radius %v", cfg.Params.RadiusKm)
	}
	// omitted params still get defaults
	if cfg.Params.DieselPrice != 6.0 {
		t.Fatalf("diesel %v", cfg.Params.DieselPrice)
	}
	if len(cfg.Fleet) != 1 || cfg.Fleet[0].Type != "Sprinter" {
		t.Fatalf("fleet: %+v", cfg.Fleet)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed file must error")
	}
}
