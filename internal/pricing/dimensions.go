package pricing

import (
	"strconv"
	"strings"
)

// Dimensions are package dimensions in centimeters.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// dimensionalWeightDivisor is the industry volumetric-weight divisor.
const dimensionalWeightDivisor = 139.0

var defaultDimensions = Dimensions{Length: 10, Width: 10, Height: 10}

// ParseDimensions parses an "LxWxH" catalog string. Missing or malformed
// input falls back to 10x10x10, matching catalog defaults.
func ParseDimensions(raw string) Dimensions {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(raw)), "x")
	if len(parts) != 3 {
		return defaultDimensions
	}

	values := make([]float64, 3)
	for i, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || value <= 0 {
			return defaultDimensions
		}
		values[i] = value
	}

	return Dimensions{Length: values[0], Width: values[1], Height: values[2]}
}

// DimensionalWeight returns the volumetric-weight proxy L×W×H/139, used when
// a package is bulky but light.
func (d Dimensions) DimensionalWeight() float64 {
	return d.Length * d.Width * d.Height / dimensionalWeightDivisor
}

// ChargeableWeight is the greater of actual and dimensional weight.
func ChargeableWeight(actualWeight float64, dims Dimensions) float64 {
	dimensional := dims.DimensionalWeight()
	if dimensional > actualWeight {
		return dimensional
	}
	return actualWeight
}
