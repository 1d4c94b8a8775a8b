package api

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"fretecalc/internal/model"
)

// Weights at or above this are kilograms; below it they are read as
// tonnes and scaled.
const tonnesThreshold = 50.0

var errBadWeight = errors.New("unparseable weight")

// ParseWeight reads a weight cell. Accepts Brazilian decimal notation
// ("1.234,56") as well as plain "1234.56".
func ParseWeight(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errBadWeight
	}
	if strings.Contains(s, ",") {
		// thousands dots, decimal comma
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errBadWeight
	}
	return v, nil
}

// NormalizeWeightKg scales values that were entered in tonnes.
func NormalizeWeightKg(w float64) float64 {
	if w > 0 && w < tonnesThreshold {
		return w * 1000
	}
	return w
}

var (
	rePlainCoords = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*$`)
	reAtCoords    = regexp.MustCompile(`@(-?\d+(?:\.\d+)?),(-?\d+(?:\.\d+)?)`)
	reBangCoords  = regexp.MustCompile(`!3d(-?\d+(?:\.\d+)?)!4d(-?\d+(?:\.\d+)?)`)
)

// ExtractCoordinates recognizes pasted coordinates or map links:
// "lat, lon", ".../@lat,lon,...z", and the "!3dlat!4dlon" URL form.
func ExtractCoordinates(text string) (model.Coordinates, bool) {
	for _, re := range []*regexp.Regexp{reBangCoords, reAtCoords, rePlainCoords} {
		if m := re.FindStringSubmatch(text); m != nil {
			lat, err1 := strconv.ParseFloat(m[1], 64)
			lon, err2 := strconv.ParseFloat(m[2], 64)
			if err1 == nil && err2 == nil && lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180 {
				return model.Coordinates{Lat: lat, Lon: lon}, true
			}
		}
	}
	return model.Coordinates{}, false
}

// BuildAddress assembles a geocodable address string from the order's
// location fields when no explicit address was given.
func BuildAddress(o *model.Order) string {
	if o.Address != "" {
		return o.Address
	}
	parts := []string{}
	if o.Neighborhood != "" {
		parts = append(parts, o.Neighborhood)
	}
	city := o.City
	if o.Region != "" {
		city = o.City + " - " + o.Region
	}
	if city != "" {
		parts = append(parts, city)
	}
	return strings.Join(parts, ", ")
}
