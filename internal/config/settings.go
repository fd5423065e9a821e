package config

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Setting keys for the delivery-fee model and platform fee.
const (
	SettingBaseKm         = "base_km"
	SettingBasePrice      = "base_price"
	SettingAfterBasePrice = "after_base_price"
	SettingSystemFees     = "system_fees"
)

// Hardcoded fallbacks used when a setting row is absent or unreadable.
var (
	DefaultBaseKm         = decimal.NewFromInt(2)
	DefaultBasePrice      = decimal.NewFromInt(40)
	DefaultAfterBasePrice = decimal.NewFromInt(25)
	DefaultSystemFees     = decimal.NewFromInt(40)
)

// SettingReader reads one named numeric tuning value.
// Satisfied by *database.Queries.
type SettingReader interface {
	GetSetting(ctx context.Context, key string) (pgtype.Numeric, error)
}

// DeliveryParams is the resolved fee model for one order conversion.
type DeliveryParams struct {
	BaseKm         decimal.Decimal
	BasePrice      decimal.Decimal
	AfterBasePrice decimal.Decimal
	SystemFees     decimal.Decimal
}

// Settings resolves tuning values from the store with hardcoded fallbacks.
type Settings struct {
	store SettingReader
}

func NewSettings(store SettingReader) *Settings {
	return &Settings{store: store}
}

// Delivery resolves the full fee model. A missing or malformed setting
// falls back silently; the defaults are part of the documented contract.
func (s *Settings) Delivery(ctx context.Context) DeliveryParams {
	return DeliveryParams{
		BaseKm:         s.lookup(ctx, SettingBaseKm, DefaultBaseKm),
		BasePrice:      s.lookup(ctx, SettingBasePrice, DefaultBasePrice),
		AfterBasePrice: s.lookup(ctx, SettingAfterBasePrice, DefaultAfterBasePrice),
		SystemFees:     s.lookup(ctx, SettingSystemFees, DefaultSystemFees),
	}
}

// SystemFees resolves just the platform fee (used by the wallet credit).
func (s *Settings) SystemFees(ctx context.Context) decimal.Decimal {
	return s.lookup(ctx, SettingSystemFees, DefaultSystemFees)
}

func (s *Settings) lookup(ctx context.Context, key string, fallback decimal.Decimal) decimal.Decimal {
	n, err := s.store.GetSetting(ctx, key)
	if err != nil || !n.Valid {
		return fallback
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return fallback
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return fallback
	}
	return d
}

// StaticSettings is a fixed-value provider for tests and tooling.
type StaticSettings struct {
	Params DeliveryParams
}

func (s StaticSettings) Delivery(ctx context.Context) DeliveryParams { return s.Params }

func (s StaticSettings) SystemFees(ctx context.Context) decimal.Decimal {
	return s.Params.SystemFees
}
