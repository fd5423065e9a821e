// Package geo computes delivery distances and fees.
package geo

import (
	"math"

	"github.com/shopspring/decimal"
)

const earthRadiusKm = 6371

// DistanceKm returns the great-circle distance between two coordinates
// using the haversine formula.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DeliveryFee applies the tiered distance model: a flat base price up to
// baseKm, then a per-km rate for the remainder.
func DeliveryFee(distanceKm, baseKm, basePrice, afterBasePrice decimal.Decimal) decimal.Decimal {
	if distanceKm.LessThanOrEqual(baseKm) {
		return basePrice
	}
	extra := distanceKm.Sub(baseKm).Mul(afterBasePrice)
	return basePrice.Add(extra)
}
