package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-us/internal/filter"
	"github.com/wonny/aegis-us/internal/strategyconfig"
	"github.com/wonny/aegis-us/pkg/config"
)

func traderEnv() config.TraderConfig {
	return config.TraderConfig{
		MinPrice:    1,
		MaxPrice:    5,
		PhasePause:  120 * time.Second,
		PhaseWindow: 10 * time.Minute,
	}
}

func TestResolveStrategy_Env(t *testing.T) {
	s := resolveStrategy(traderEnv(), nil)

	assert.Equal(t, "env", s.source)
	assert.Equal(t, "1.00 ~ 5.00", s.priceRange())
	assert.Equal(t, filter.DefaultConfig().LongWindow, s.filter.LongWindow)
	assert.Empty(t, s.preds)
	assert.Equal(t, 120*time.Second, s.pause)
	assert.Equal(t, 10*time.Minute, s.window)
}

func TestResolveStrategy_FileOverridesEnv(t *testing.T) {
	params, err := strategyconfig.Parse([]byte(`
meta:
  strategy_id: penny_wide
universe:
  min_price: 0.5
  max_price: 8
  exchanges: [NASDAQ]
crossover:
  price_lookback_days: 5
  sma_lookback_days: 60
  short_window: 5
  long_window: 50
  min_spread_pct: 4
  max_spread_pct: 30
schedule:
  phase_pause: 30s
`))
	require.NoError(t, err)

	s := resolveStrategy(traderEnv(), params)

	assert.Equal(t, "penny_wide", s.source)
	assert.Equal(t, "0.50 ~ 8.00", s.priceRange(), "header shows the range the strategy uses")
	assert.Equal(t, 50, s.filter.LongWindow)
	assert.Len(t, s.preds, 1)
	assert.Equal(t, 30*time.Second, s.pause)
	assert.Equal(t, 10*time.Minute, s.window, "zero keeps the environment value")
}
