// Package filter narrows the tradable asset list down to trade candidates.
package filter

import (
	"context"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"

	"github.com/wonny/aegis-us/internal/contracts"
	"github.com/wonny/aegis-us/pkg/logger"
)

// Config holds the lookbacks and thresholds of the candidate filters
type Config struct {
	PriceLookbackDays int             // daily bars fetched for the last price
	SMALookbackDays   int             // daily bars fetched for the crossover
	ShortWindow       int             // short SMA window
	LongWindow        int             // long SMA window
	MinSpreadPct      decimal.Decimal // inclusive
	MaxSpreadPct      decimal.Decimal // inclusive
}

// DefaultConfig returns the momentum breakout defaults
func DefaultConfig() Config {
	return Config{
		PriceLookbackDays: 5,
		SMALookbackDays:   100,
		ShortWindow:       3,
		LongWindow:        45,
		MinSpreadPct:      decimal.NewFromInt(6),
		MaxSpreadPct:      decimal.NewFromInt(40),
	}
}

// Filter applies price and moving average filters using historic bars
// ⭐ SSOT: candidate filtering logic lives here only
type Filter struct {
	bars   contracts.BarSource
	logger *logger.Logger
	cfg    Config
	now    func() time.Time
}

// New creates a new filter
func New(bars contracts.BarSource, cfg Config, log *logger.Logger) *Filter {
	return &Filter{
		bars:   bars,
		logger: log.WithComponent("filter"),
		cfg:    cfg,
		now:    time.Now,
	}
}

// WithClock overrides the time source used to build bar ranges
func (f *Filter) WithClock(now func() time.Time) *Filter {
	f.now = now
	return f
}

// Config returns the filter configuration
func (f *Filter) Config() Config {
	return f.cfg
}

// FilterByPriceRange keeps assets whose last daily close is within
// [min, max]. Assets whose bars cannot be fetched, or have none, are
// dropped. Only a cancelled context fails the call.
func (f *Filter) FilterByPriceRange(ctx context.Context, assets []contracts.Asset, min, max decimal.Decimal) ([]contracts.Asset, error) {
	kept := make([]contracts.Asset, 0, len(assets))
	to := f.now()
	from := to.AddDate(0, 0, -f.cfg.PriceLookbackDays)

	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bars, err := f.bars.HistoricAgg(ctx, contracts.BarSizeDay, asset.Symbol, from, to, f.cfg.PriceLookbackDays)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.WithSymbol(asset.Symbol).WithError(err).Warn("Dropping asset: price fetch failed")
			continue
		}
		if len(bars) == 0 {
			continue
		}

		last := bars[len(bars)-1].Close
		if last.GreaterThanOrEqual(min) && last.LessThanOrEqual(max) {
			kept = append(kept, asset)
		}
	}

	f.logger.WithFields(map[string]interface{}{
		"in":  len(assets),
		"out": len(kept),
		"min": min.String(),
		"max": max.String(),
	}).Debug("Price range filter applied")

	return kept, nil
}

// FilterBySMACrossover keeps assets whose short SMA is above the long SMA
// by a percentage spread within [MinSpreadPct, MaxSpreadPct].
func (f *Filter) FilterBySMACrossover(ctx context.Context, assets []contracts.Asset) ([]contracts.Asset, error) {
	kept := make([]contracts.Asset, 0, len(assets))
	to := f.now()
	from := to.AddDate(0, 0, -f.cfg.SMALookbackDays)

	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bars, err := f.bars.HistoricAgg(ctx, contracts.BarSizeDay, asset.Symbol, from, to, f.cfg.SMALookbackDays)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.WithSymbol(asset.Symbol).WithError(err).Warn("Dropping asset: bar fetch failed")
			continue
		}

		spread, ok := f.Spread(bars)
		if !ok {
			continue
		}

		if spread.GreaterThanOrEqual(f.cfg.MinSpreadPct) && spread.LessThanOrEqual(f.cfg.MaxSpreadPct) {
			kept = append(kept, asset)
		}
	}

	f.logger.WithFields(map[string]interface{}{
		"in":  len(assets),
		"out": len(kept),
	}).Debug("SMA crossover filter applied")

	return kept, nil
}

// Spread returns (short-long)*100/long over bars. ok is false when either
// average is unavailable.
func (f *Filter) Spread(bars []contracts.Bar) (decimal.Decimal, bool) {
	short := SimpleMovingAverage(bars, f.cfg.ShortWindow)
	long := SimpleMovingAverage(bars, f.cfg.LongWindow)
	if short.IsZero() || long.IsZero() {
		return decimal.Zero, false
	}
	return short.Sub(long).Mul(decimal.NewFromInt(100)).Div(long), true
}

// smaPrecision drops float noise from the indicator output
const smaPrecision = 8

// SimpleMovingAverage returns the mean close of the last window bars, or
// zero when bars is empty, window is not positive, or window exceeds len(bars).
func SimpleMovingAverage(bars []contracts.Bar, window int) decimal.Decimal {
	if len(bars) == 0 || window <= 0 || window > len(bars) {
		return decimal.Zero
	}

	closes := make([]float64, 0, window)
	for _, b := range bars[len(bars)-window:] {
		closes = append(closes, b.Close.InexactFloat64())
	}

	sma := trend.NewSmaWithPeriod[float64](window)
	out := helper.ChanToSlice(sma.Compute(helper.SliceToChan(closes)))
	if len(out) == 0 {
		return decimal.Zero
	}

	return decimal.NewFromFloat(out[len(out)-1]).Round(smaPrecision)
}

// CrossReference keeps assets whose symbol appears in the external symbol list
func CrossReference(assets []contracts.Asset, symbols []contracts.Symbol) []contracts.Asset {
	known := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		known[s.Symbol] = struct{}{}
	}

	kept := make([]contracts.Asset, 0, len(assets))
	for _, a := range assets {
		if _, ok := known[a.Symbol]; ok {
			kept = append(kept, a)
		}
	}
	return kept
}

// AssetPredicate selects assets by attribute
type AssetPredicate func(contracts.Asset) bool

// Attribute predicates for AssetsWith
var (
	IsTradable     AssetPredicate = func(a contracts.Asset) bool { return a.Tradable }
	IsShortable    AssetPredicate = func(a contracts.Asset) bool { return a.Shortable }
	IsMarginable   AssetPredicate = func(a contracts.Asset) bool { return a.Marginable }
	IsEasyToBorrow AssetPredicate = func(a contracts.Asset) bool { return a.EasyToBorrow }
)

// OnExchange selects assets listed on exchange
func OnExchange(exchange string) AssetPredicate {
	return func(a contracts.Asset) bool { return a.Exchange == exchange }
}

// OnAnyExchange selects assets listed on one of exchanges
func OnAnyExchange(exchanges ...string) AssetPredicate {
	allowed := make(map[string]struct{}, len(exchanges))
	for _, ex := range exchanges {
		allowed[ex] = struct{}{}
	}
	return func(a contracts.Asset) bool {
		_, ok := allowed[a.Exchange]
		return ok
	}
}

// AssetsWith keeps assets matching every predicate
func AssetsWith(assets []contracts.Asset, preds ...AssetPredicate) []contracts.Asset {
	kept := make([]contracts.Asset, 0, len(assets))
	for _, a := range assets {
		match := true
		for _, p := range preds {
			if !p(a) {
				match = false
				break
			}
		}
		if match {
			kept = append(kept, a)
		}
	}
	return kept
}
