package api

import (
	"testing"

	"fretecalc/internal/model"
)

func TestParseWeight(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1234.56", 1234.56, true},
		{"1.234,56", 1234.56, true},
		{"12,5", 12.5, true},
		{" 800 ", 800, true},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, c := range cases {
		got, err := ParseWeight(c.in)
		if (err == nil) != c.ok {
			t.Errorf("ParseWeight(%q) err = %v", c.in, err)
			continue
		}
		if c.ok && got != c.want {
			t.Errorf("ParseWeight(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNormalizeWeightKg(t *testing.T) {
	if got := NormalizeWeightKg(12.5); got != 12500 {
		t.Errorf("12.5 -> %v, want 12500", got)
	}
	if got := NormalizeWeightKg(1200); got != 1200 {
		t.Errorf("1200 -> %v, want 1200", got)
	}
	if got := NormalizeWeightKg(50); got != 50 {
		t.Errorf("threshold value must pass through, got %v", got)
	}
	if got := NormalizeWeightKg(0); got != 0 {
		t.Errorf("zero -> %v", got)
	}
}

func TestExtractCoordinates(t *testing.T) {
	cases := []struct {
		in      string
		lat, lon float64
		ok      bool
	}{
		{"-23.5505, -46.6333", -23.5505, -46.6333, true},
		{"https://maps.example.com/place/X/@-22.9099,-47.0626,15z", -22.9099, -47.0626, true},
		{"https://maps.example.com/place/!3d-23.5505!4d-46.6333", -23.5505, -46.6333, true},
		{"Avenida Paulista, 1000", 0, 0, false},
		{"95.0, 10.0", 0, 0, false},   // latitude out of range
		{"10.0, 200.0", 0, 0, false},  // longitude out of range
	}
	for _, c := range cases {
		got, ok := ExtractCoordinates(c.in)
		if ok != c.ok {
			t.Errorf("ExtractCoordinates(%q) ok = %v, want %v", c.in, ok, c.ok)
			continue
		}
		if ok && (got.Lat != c.lat || got.Lon != c.lon) {
			t.Errorf("ExtractCoordinates(%q) = %+v", c.in, got)
		}
	}
}

func TestBuildAddress(t *testing.T) {
	o := &model.Order{Neighborhood: "Centro", City: "Campinas", Region: "SP"}
	if got := BuildAddress(o); got != "Centro, Campinas - SP" {
		t.Errorf("got %q", got)
	}
	o = &model.Order{City: "Campinas", Region: "SP"}
	if got := BuildAddress(o); got != "Campinas - SP" {
		t.Errorf("got %q", got)
	}
	o = &model.Order{City: "Campinas"}
	if got := BuildAddress(o); got != "Campinas" {
		t.Errorf("got %q", got)
	}
	o = &model.Order{Address: "Rua A, 10", City: "Campinas"}
	if got := BuildAddress(o); got != "Rua A, 10" {
		t.Errorf("explicit address must win, got %q", got)
	}
}
