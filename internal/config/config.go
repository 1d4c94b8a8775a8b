package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"fretecalc/internal/model"
)

// Config is loaded from an optional YAML file (CONFIG_PATH, default
// config.yaml). Every field has a working default so the service starts
// with no file at all; DATABASE_URL/REDIS_URL/PORT stay environment-only.
type Config struct {
	Geocoder GeocoderConfig       `yaml:"geocoder"`
	Router   RouterConfig         `yaml:"router"`
	Params   model.Params         `yaml:"params"`
	Fleet    []model.VehicleClass `yaml:"fleet"`
}

type GeocoderConfig struct {
	BaseURL      string  `yaml:"baseUrl"`
	UserAgent    string  `yaml:"userAgent"`
	CountryCodes string  `yaml:"countryCodes"`
	MinIntervalS float64 `yaml:"minIntervalSeconds"`
}

// MinInterval converts the configured spacing into a duration.
func (g GeocoderConfig) MinInterval() time.Duration {
	return time.Duration(g.MinIntervalS * float64(time.Second))
}

type RouterConfig struct {
	BaseURL string `yaml:"baseUrl"`
}

// Default returns the stock configuration: the public Nominatim and OSRM
// endpoints and the seven standard Brazilian vehicle classes.
func Default() Config {
	return Config{
		Geocoder: GeocoderConfig{
			BaseURL:      "https://nominatim.openstreetmap.org",
			UserAgent:    "fretecalc/1.0",
			CountryCodes: "br",
			MinIntervalS: 1.1,
		},
		Router: RouterConfig{BaseURL: "https://router.project-osrm.org"},
		Params: model.Params{
			RadiusKm:    model.DefaultRadiusKm,
			DieselPrice: model.DefaultDieselPrice,
		},
		Fleet: DefaultFleet(),
	}
}

// DefaultFleet is the stock fleet; teams override it via the fleet API.
func DefaultFleet() []model.VehicleClass {
	return []model.VehicleClass{
		{Type: "Van", CapacityKg: 1800, Available: 5, MaxStops: 30, KmPerLiter: 9, Axles: 2, FixedCost: 100},
		{Type: "3/4", CapacityKg: 5000, Available: 5, MaxStops: 25, KmPerLiter: 7, Axles: 2, FixedCost: 150},
		{Type: "Toco", CapacityKg: 8000, Available: 5, MaxStops: 20, KmPerLiter: 5.5, Axles: 2, FixedCost: 200},
		{Type: "Truck", CapacityKg: 14000, Available: 5, MaxStops: 15, KmPerLiter: 4, Axles: 3, FixedCost: 300},
		{Type: "Bi-Truck", CapacityKg: 18000, Available: 5, MaxStops: 12, KmPerLiter: 3.5, Axles: 4, FixedCost: 350},
		{Type: "Carreta", CapacityKg: 32000, Available: 3, MaxStops: 5, KmPerLiter: 2.5, Axles: 5, FixedCost: 450},
		{Type: "Rodotrem", CapacityKg: 50000, Available: 2, MaxStops: 2, KmPerLiter: 1.8, Axles: 9, FixedCost: 700},
	}
}

// Load reads path and overlays it on Default. A missing file is not an
// error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cfg.Fleet) == 0 {
		cfg.Fleet = DefaultFleet()
	}
	cfg.Params = cfg.Params.WithDefaults()
	return cfg, nil
}
