// Package strategyconfig loads the strategy parameters from YAML.
package strategyconfig

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/aegis-us/internal/filter"
)

// Config is the strategy file
// ⭐ SSOT: strategy parameters that are not secrets live in this file only
type Config struct {
	Meta      Meta            `yaml:"meta" json:"meta"`
	Universe  UniverseConfig  `yaml:"universe" json:"universe"`
	Crossover CrossoverConfig `yaml:"crossover" json:"crossover"`
	Schedule  ScheduleConfig  `yaml:"schedule" json:"schedule"`
}

// Meta identifies the strategy version
type Meta struct {
	StrategyID  string `yaml:"strategy_id" json:"strategy_id"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description" json:"description"`
}

// UniverseConfig restricts which assets are considered
type UniverseConfig struct {
	MinPrice  float64  `yaml:"min_price" json:"min_price"`
	MaxPrice  float64  `yaml:"max_price" json:"max_price"`
	Exchanges []string `yaml:"exchanges" json:"exchanges"` // empty means any
}

// CrossoverConfig holds the SMA breakout parameters
type CrossoverConfig struct {
	PriceLookbackDays int     `yaml:"price_lookback_days" json:"price_lookback_days"`
	SMALookbackDays   int     `yaml:"sma_lookback_days" json:"sma_lookback_days"`
	ShortWindow       int     `yaml:"short_window" json:"short_window"`
	LongWindow        int     `yaml:"long_window" json:"long_window"`
	MinSpreadPct      float64 `yaml:"min_spread_pct" json:"min_spread_pct"`
	MaxSpreadPct      float64 `yaml:"max_spread_pct" json:"max_spread_pct"`
}

// ScheduleConfig tunes the phase loop. Zero keeps the environment value.
type ScheduleConfig struct {
	PhasePause  time.Duration `yaml:"phase_pause" json:"phase_pause"`
	PhaseWindow time.Duration `yaml:"phase_window" json:"phase_window"`
}

// PriceRange returns the inclusive price range
func (c *Config) PriceRange() (decimal.Decimal, decimal.Decimal) {
	return decimal.NewFromFloat(c.Universe.MinPrice), decimal.NewFromFloat(c.Universe.MaxPrice)
}

// FilterConfig converts the crossover section for the filter package
func (c *Config) FilterConfig() filter.Config {
	x := c.Crossover
	return filter.Config{
		PriceLookbackDays: x.PriceLookbackDays,
		SMALookbackDays:   x.SMALookbackDays,
		ShortWindow:       x.ShortWindow,
		LongWindow:        x.LongWindow,
		MinSpreadPct:      decimal.NewFromFloat(x.MinSpreadPct),
		MaxSpreadPct:      decimal.NewFromFloat(x.MaxSpreadPct),
	}
}

// Predicates returns the asset predicates beyond tradability
func (c *Config) Predicates() []filter.AssetPredicate {
	if len(c.Universe.Exchanges) == 0 {
		return nil
	}
	return []filter.AssetPredicate{filter.OnAnyExchange(c.Universe.Exchanges...)}
}
