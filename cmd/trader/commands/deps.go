package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/aegis-us/internal/events"
	"github.com/wonny/aegis-us/internal/external/alpaca"
	"github.com/wonny/aegis-us/internal/external/earnings"
	"github.com/wonny/aegis-us/internal/external/polygon"
	"github.com/wonny/aegis-us/internal/filter"
	"github.com/wonny/aegis-us/internal/journal"
	"github.com/wonny/aegis-us/internal/snapshot"
	"github.com/wonny/aegis-us/internal/strategyconfig"
	"github.com/wonny/aegis-us/internal/trader"
	"github.com/wonny/aegis-us/pkg/config"
	"github.com/wonny/aegis-us/pkg/database"
	"github.com/wonny/aegis-us/pkg/httputil"
	"github.com/wonny/aegis-us/pkg/logger"
	"github.com/wonny/aegis-us/pkg/redis"
)

// deps is everything a command needs, wired once from config
type deps struct {
	cfg *config.Config
	log *logger.Logger
	loc *time.Location

	db    *database.DB
	redis *redis.Client

	broker   *alpaca.Client
	polygon  *polygon.Client
	earnings *earnings.Client

	journal  journal.Store
	builder  *snapshot.Builder
	store    *snapshot.Store
	strategy trader.Strategy
	settings strategySettings
	bus      *events.Broadcaster
}

// initDeps loads config and wires clients, storage and the strategy
func initDeps(ctx context.Context) (*deps, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" && env != cfg.Env {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	loc, err := cfg.Trader.Location()
	if err != nil {
		return nil, fmt.Errorf("load market timezone: %w", err)
	}

	d := &deps{cfg: cfg, log: log, loc: loc}

	// 3. Connect to Redis (optional)
	d.redis, err = redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if d.redis.Enabled() {
		log.Info("Connected to Redis")
	}

	// 4. Phase journal: Postgres when configured, otherwise in memory
	if cfg.Database.Enabled() {
		d.db, err = database.New(ctx, cfg.Database)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		pg := journal.NewPostgres(d.db.Pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			d.close()
			return nil, err
		}
		d.journal = pg
		log.Info("Connected to database")
	} else {
		d.journal = journal.NewMemory()
		log.Debug("DATABASE_URL not set, phase journal kept in memory")
	}

	// 5. Create HTTP clients, one per upstream quota
	base := httputil.New(cfg, log)
	limiter := redis.NewRateLimiter(d.redis, "aegis")
	limited := func(perMinute int, shared redis.RateLimitConfig) *httputil.Client {
		c := base.Clone().WithLimit(perMinute)
		if d.redis.Enabled() {
			c = c.WithRateLimiter(limiter, shared)
		}
		return c
	}

	// 6. Create external API clients
	cache := redis.NewCache(d.redis, "aegis")
	d.broker = alpaca.NewClient(cfg.Alpaca, loc, limited(cfg.Alpaca.RateLimit, redis.AlpacaRateLimit), log)
	d.polygon = polygon.NewClient(cfg.Polygon, loc, limited(cfg.Polygon.RateLimit, redis.PolygonRateLimit), cache, log)
	d.earnings = earnings.NewClient(cfg.Earnings, limited(redis.EarningsRateLimit.Limit, redis.EarningsRateLimit), log)

	// 7. Snapshot builder and store
	d.builder = snapshot.NewBuilder(d.broker, d.polygon, d.earnings, loc, log)
	d.store = snapshot.NewStore()

	// 8. Strategy, parameters from STRATEGY_CONFIG when set
	var params *strategyconfig.Config
	if cfg.Trader.StrategyConfig != "" {
		params, _, err = strategyconfig.Load(cfg.Trader.StrategyConfig)
		if err != nil {
			d.close()
			return nil, err
		}
		hash, err := strategyconfig.Hash(params)
		if err != nil {
			d.close()
			return nil, err
		}
		log.WithFields(map[string]interface{}{
			"strategy_id": params.Meta.StrategyID,
			"version":     params.Meta.Version,
			"hash":        hash[:12],
		}).Info("Strategy config loaded")
	}
	d.settings = resolveStrategy(cfg.Trader, params)

	f := filter.New(d.polygon, d.settings.filter, log)
	d.strategy = trader.NewPennyStrategy(f, d.settings.minPrice, d.settings.maxPrice, log).
		WithPredicates(d.settings.preds...)

	d.bus = events.NewBroadcaster(256)

	return d, nil
}

// engine creates the trading engine over the shared store
func (d *deps) engine() *trader.Engine {
	cfg := trader.Config{
		PollInterval: d.cfg.Trader.PollInterval,
		PhasePause:   d.settings.pause,
		PhaseWindow:  d.settings.window,
	}
	return trader.NewEngine(d.builder, d.store, d.strategy, d.journal, d.bus, d.loc, cfg, d.log)
}

// strategySettings are the parameters the strategy and engine actually run with
type strategySettings struct {
	source   string // "env" or the strategy id
	filter   filter.Config
	minPrice decimal.Decimal
	maxPrice decimal.Decimal
	preds    []filter.AssetPredicate
	pause    time.Duration
	window   time.Duration
}

// resolveStrategy starts from the environment and applies the strategy
// file when one was loaded. Zero schedule values keep the environment.
func resolveStrategy(t config.TraderConfig, params *strategyconfig.Config) strategySettings {
	s := strategySettings{
		source:   "env",
		filter:   filter.DefaultConfig(),
		minPrice: decimal.NewFromFloat(t.MinPrice),
		maxPrice: decimal.NewFromFloat(t.MaxPrice),
		pause:    t.PhasePause,
		window:   t.PhaseWindow,
	}
	if params == nil {
		return s
	}

	s.source = params.Meta.StrategyID
	s.filter = params.FilterConfig()
	s.minPrice, s.maxPrice = params.PriceRange()
	s.preds = params.Predicates()
	if p := params.Schedule.PhasePause; p > 0 {
		s.pause = p
	}
	if w := params.Schedule.PhaseWindow; w > 0 {
		s.window = w
	}
	return s
}

func (s strategySettings) priceRange() string {
	return fmt.Sprintf("%s ~ %s", s.minPrice.StringFixed(2), s.maxPrice.StringFixed(2))
}

// buildSnapshot builds a snapshot into the store
func (d *deps) buildSnapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	base := d.store.Current()
	snap, err := d.builder.Build(ctx, base)
	if err != nil {
		return nil, err
	}
	return d.store.Replace(base, snap), nil
}

func (d *deps) close() {
	if d.db != nil {
		d.db.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}
