package strategyconfig

import (
	"fmt"
	"regexp"
)

var strategyIDPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidationError names the offending field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error [%s]: %s", e.Field, e.Message)
}

// Validate checks ranges and cross-field constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}
	if !strategyIDPattern.MatchString(cfg.Meta.StrategyID) {
		return ValidationError{"meta.strategy_id", "must match ^[a-z0-9_]+$"}
	}

	// === Universe ===
	u := cfg.Universe
	if u.MinPrice < 0 {
		return ValidationError{"universe.min_price", "must be >= 0"}
	}
	if u.MaxPrice <= 0 {
		return ValidationError{"universe.max_price", "must be > 0"}
	}
	if u.MinPrice > u.MaxPrice {
		return ValidationError{"universe", fmt.Sprintf("min_price=%.2f exceeds max_price=%.2f", u.MinPrice, u.MaxPrice)}
	}
	for i, ex := range u.Exchanges {
		if ex == "" {
			return ValidationError{fmt.Sprintf("universe.exchanges[%d]", i), "must not be empty"}
		}
	}

	// === Crossover ===
	x := cfg.Crossover
	if x.PriceLookbackDays < 1 {
		return ValidationError{"crossover.price_lookback_days", "must be >= 1"}
	}
	if x.ShortWindow < 1 {
		return ValidationError{"crossover.short_window", "must be >= 1"}
	}
	if x.ShortWindow >= x.LongWindow {
		return ValidationError{"crossover", "short_window must be < long_window"}
	}
	// the long SMA needs a full window of bars
	if x.SMALookbackDays < x.LongWindow {
		return ValidationError{"crossover.sma_lookback_days", fmt.Sprintf("must be >= long_window=%d", x.LongWindow)}
	}
	if x.MinSpreadPct > x.MaxSpreadPct {
		return ValidationError{"crossover", "min_spread_pct must be <= max_spread_pct"}
	}

	// === Schedule ===
	if cfg.Schedule.PhasePause < 0 {
		return ValidationError{"schedule.phase_pause", "must be >= 0"}
	}
	if cfg.Schedule.PhaseWindow < 0 {
		return ValidationError{"schedule.phase_window", "must be >= 0"}
	}

	return nil
}
