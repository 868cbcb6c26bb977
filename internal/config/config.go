// Package config loads the engine's closed configuration set once at
// startup. There is deliberately no live-reload method: live
// reconfiguration of risk caps mid-session is out of scope, so Config
// is read once, handed to the components that need it, and never
// touched again for the life of the process.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/rishav/matchcore/internal/fixedpoint"
	"github.com/rishav/matchcore/internal/matching"
	"github.com/rishav/matchcore/internal/risk"
)

// Config is the full cross-component configuration set: risk limits,
// margin mode, liquidation bounds, book depth, and self-match policy.
// Grounded on risk.Config/risk.DefaultConfig, generalized here to cover
// every component rather than just the risk gate.
type Config struct {
	TickSizeFixedPoint     float64 `mapstructure:"tick_size_fixed_point"`
	PriceCollarPct         float64 `mapstructure:"price_collar_pct"`
	MaxOrderQty            uint32  `mapstructure:"max_order_qty"`
	MaxOrderNotional       float64 `mapstructure:"max_order_notional"`
	RateLimitPerSec        int     `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst         int     `mapstructure:"rate_limit_burst"`
	StartingCapital        float64 `mapstructure:"starting_capital"`
	BookDepthInUpdates     int     `mapstructure:"book_depth_in_updates"`
	MarginMode             string  `mapstructure:"margin_mode"` // disabled | initial_only | initial_and_maintenance
	LiquidationMaxAttempts int     `mapstructure:"liquidation_max_attempts"`
	SelfMatchPolicy        string  `mapstructure:"self_match_policy"` // skip_resting | cancel_resting | cancel_incoming
	InitialMarginRatio     float64 `mapstructure:"initial_margin_ratio"`
	MaintenanceMarginRatio float64 `mapstructure:"maintenance_margin_ratio"`

	JournalPath string `mapstructure:"journal_path"`
}

// defaults mirrors the same values risk.DefaultConfig hardcodes in Go,
// expressed here as the values viper falls back to when no file or
// environment override is present.
func defaults() map[string]any {
	return map[string]any{
		"tick_size_fixed_point":    1.0,
		"price_collar_pct":         0.05,
		"max_order_qty":            10000,
		"max_order_notional":       10_000.0, // 10^12 fixed-point units
		"rate_limit_per_sec":       1000,
		"rate_limit_burst":         1000,
		"starting_capital":         10000.0,
		"book_depth_in_updates":    10,
		"margin_mode":              "disabled",
		"liquidation_max_attempts": 3,
		"self_match_policy":        "skip_resting",
		"initial_margin_ratio":     0.25,
		"maintenance_margin_ratio": 0.15,
		"journal_path":             "matchcore.journal",
	}
}

// Load reads configuration from an optional YAML file at path (empty
// string skips the file entirely) and from MATCHCORE_-prefixed
// environment variables, which take precedence over the file, which
// takes precedence over the named defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, val := range defaults() {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix("MATCHCORE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// RiskConfig projects the subset of Config risk.Gate needs, converting
// float64 percentages/ratios into fixedpoint.Fixed via FromFloat (read
// once at startup, never on the hot path, so the conversion's rounding
// behavior is immaterial). tick_size_fixed_point is already in raw
// fixed-point units and is converted without scaling.
func (c Config) RiskConfig() risk.Config {
	return risk.Config{
		TickSize:               fixedpoint.Fixed(c.TickSizeFixedPoint),
		PriceCollarPct:         fixedpoint.FromFloat(c.PriceCollarPct),
		MaxOrderQty:            c.MaxOrderQty,
		MaxOrderNotional:       fixedpoint.FromFloat(c.MaxOrderNotional),
		RateLimitPerSec:        c.RateLimitPerSec,
		RateLimitBurst:         c.RateLimitBurst,
		StartingCapital:        fixedpoint.FromFloat(c.StartingCapital),
		BookDepthInUpdates:     c.BookDepthInUpdates,
		MarginMode:             c.riskMarginMode(),
		LiquidationMaxAttempts: c.LiquidationMaxAttempts,
		SelfMatchPolicy:        c.SelfMatchPolicy,
		InitialMarginRatio:     fixedpoint.FromFloat(c.InitialMarginRatio),
		MaintenanceMarginRatio: fixedpoint.FromFloat(c.MaintenanceMarginRatio),
	}
}

func (c Config) riskMarginMode() risk.MarginMode {
	switch c.MarginMode {
	case "initial_only":
		return risk.MarginInitialOnly
	case "initial_and_maintenance":
		return risk.MarginInitialAndMaintenance
	default:
		return risk.MarginDisabled
	}
}

// SelfMatchEnginePolicy translates the configured string into
// matching.SelfMatchPolicy. Kept here rather than in internal/matching so
// that package stays free of any string-parsing/config concern.
func (c Config) SelfMatchEnginePolicy() matching.SelfMatchPolicy {
	switch c.SelfMatchPolicy {
	case "cancel_resting":
		return matching.CancelResting
	case "cancel_incoming":
		return matching.CancelIncoming
	default:
		return matching.SkipRestingOrder
	}
}
