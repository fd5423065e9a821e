package geo

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDistanceKm_SamePoint(t *testing.T) {
	if d := DistanceKm(30.0444, 31.2357, 30.0444, 31.2357); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceKm_KnownDistance(t *testing.T) {
	// Cairo to Alexandria, roughly 181 km great-circle.
	d := DistanceKm(30.0444, 31.2357, 31.2001, 29.9187)
	if math.Abs(d-181) > 5 {
		t.Fatalf("expected ~181 km, got %f", d)
	}
}

func TestDistanceKm_Symmetric(t *testing.T) {
	a := DistanceKm(30.0444, 31.2357, 31.2001, 29.9187)
	b := DistanceKm(31.2001, 29.9187, 30.0444, 31.2357)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", a, b)
	}
}

func TestDeliveryFee_WithinBase(t *testing.T) {
	fee := DeliveryFee(
		decimal.NewFromInt(2),
		decimal.NewFromInt(2),
		decimal.NewFromInt(40),
		decimal.NewFromInt(25),
	)
	if !fee.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected 40, got %s", fee)
	}
}

func TestDeliveryFee_BeyondBase(t *testing.T) {
	// 5 km: 40 base + 3 extra km * 25 = 115.
	fee := DeliveryFee(
		decimal.NewFromInt(5),
		decimal.NewFromInt(2),
		decimal.NewFromInt(40),
		decimal.NewFromInt(25),
	)
	if !fee.Equal(decimal.NewFromInt(115)) {
		t.Fatalf("expected 115, got %s", fee)
	}
}

func TestDeliveryFee_FractionalDistance(t *testing.T) {
	fee := DeliveryFee(
		decimal.NewFromFloat(2.5),
		decimal.NewFromInt(2),
		decimal.NewFromInt(40),
		decimal.NewFromInt(25),
	)
	if !fee.Equal(decimal.NewFromFloat(52.5)) {
		t.Fatalf("expected 52.5, got %s", fee)
	}
}
