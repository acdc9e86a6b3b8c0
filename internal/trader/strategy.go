// Package trader drives a Strategy through the phases of each trading day.
package trader

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wonny/aegis-us/internal/contracts"
	"github.com/wonny/aegis-us/internal/filter"
	"github.com/wonny/aegis-us/internal/snapshot"
	"github.com/wonny/aegis-us/pkg/logger"
)

// Strategy is the set of callbacks the engine runs at each phase
// ⭐ SSOT: phase callbacks are defined here only
type Strategy interface {
	Name() string

	// SelectCandidates runs before the open and returns the assets to trade today
	SelectCandidates(ctx context.Context, snap *snapshot.Snapshot) ([]contracts.Asset, error)

	// Trade runs shortly after the open and then hourly
	Trade(ctx context.Context, snap *snapshot.Snapshot) error

	// UpdateData runs before the close, after positions were refreshed
	UpdateData(ctx context.Context, snap *snapshot.Snapshot) error

	// CloseSpecifics runs after the close
	CloseSpecifics(ctx context.Context, snap *snapshot.Snapshot) error
}

// PennyStrategy selects tradable low-priced stocks showing a short-term
// breakout over their long moving average. It places no orders.
type PennyStrategy struct {
	filter   *filter.Filter
	minPrice decimal.Decimal
	maxPrice decimal.Decimal
	preds    []filter.AssetPredicate
	logger   *logger.Logger
}

// NewPennyStrategy creates the penny strategy with an inclusive price range
func NewPennyStrategy(f *filter.Filter, minPrice, maxPrice decimal.Decimal, log *logger.Logger) *PennyStrategy {
	return &PennyStrategy{
		filter:   f,
		minPrice: minPrice,
		maxPrice: maxPrice,
		logger:   log.WithComponent("penny"),
	}
}

// WithPredicates adds asset predicates applied together with tradability
func (p *PennyStrategy) WithPredicates(preds ...filter.AssetPredicate) *PennyStrategy {
	p.preds = append([]filter.AssetPredicate(nil), preds...)
	return p
}

func (p *PennyStrategy) Name() string { return "penny" }

// SelectCandidates keeps tradable assets that are listed by the symbol
// source, priced within range, and crossing above their long SMA.
func (p *PennyStrategy) SelectCandidates(ctx context.Context, snap *snapshot.Snapshot) ([]contracts.Asset, error) {
	preds := append([]filter.AssetPredicate{filter.IsTradable}, p.preds...)
	tradable := filter.AssetsWith(snap.Assets, preds...)
	listed := filter.CrossReference(tradable, snap.Symbols)

	priced, err := p.filter.FilterByPriceRange(ctx, listed, p.minPrice, p.maxPrice)
	if err != nil {
		return nil, fmt.Errorf("price filter: %w", err)
	}

	crossed, err := p.filter.FilterBySMACrossover(ctx, priced)
	if err != nil {
		return nil, fmt.Errorf("sma filter: %w", err)
	}

	p.logger.WithFields(map[string]interface{}{
		"assets":   len(snap.Assets),
		"tradable": len(tradable),
		"listed":   len(listed),
		"priced":   len(priced),
		"crossed":  len(crossed),
	}).Info("Candidates selected")

	return crossed, nil
}

func (p *PennyStrategy) Trade(_ context.Context, snap *snapshot.Snapshot) error {
	p.logger.WithFields(map[string]interface{}{
		"positions":   len(snap.Positions),
		"open_orders": len(snap.OpenOrders()),
	}).Info("Trade stocks")
	return nil
}

func (p *PennyStrategy) UpdateData(_ context.Context, snap *snapshot.Snapshot) error {
	p.logger.WithField("positions", len(snap.Positions)).Info("Update data")
	return nil
}

func (p *PennyStrategy) CloseSpecifics(_ context.Context, _ *snapshot.Snapshot) error {
	p.logger.Info("Close specifics")
	return nil
}
