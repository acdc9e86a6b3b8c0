package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/aegis-us/internal/contracts"
	"github.com/wonny/aegis-us/internal/events"
	"github.com/wonny/aegis-us/internal/journal"
	"github.com/wonny/aegis-us/internal/marketclock"
	"github.com/wonny/aegis-us/internal/snapshot"
	"github.com/wonny/aegis-us/pkg/logger"
)

var errNoSnapshot = errors.New("no snapshot")

// Config holds the loop timings
type Config struct {
	PollInterval time.Duration // time between ticks
	PhasePause   time.Duration // sleep after pause phases
	PhaseWindow  time.Duration // how long after its instant a phase may still fire
}

// DefaultConfig returns a one second poll, a two minute pause and the
// default guard window
func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
		PhasePause:   120 * time.Second,
		PhaseWindow:  marketclock.DefaultWindow,
	}
}

// Engine runs the strategy's phases once per trading day
// ⭐ SSOT: phase scheduling happens here only
type Engine struct {
	builder  *snapshot.Builder
	broker   contracts.Broker
	store    *snapshot.Store
	strategy Strategy
	journal  journal.Store
	guard    *marketclock.Guard
	events   *events.Broadcaster
	phases   []Phase
	loc      *time.Location
	cfg      Config
	logger   *logger.Logger
	now      func() time.Time
}

// NewEngine creates a trading engine. bus may be nil.
func NewEngine(
	builder *snapshot.Builder,
	store *snapshot.Store,
	strategy Strategy,
	jrnl journal.Store,
	bus *events.Broadcaster,
	loc *time.Location,
	cfg Config,
	log *logger.Logger,
) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		builder:  builder,
		broker:   builder.Broker(),
		store:    store,
		strategy: strategy,
		journal:  jrnl,
		guard:    marketclock.NewGuard(jrnl, cfg.PhaseWindow),
		events:   bus,
		phases:   DefaultPhases(),
		loc:      loc,
		cfg:      cfg,
		logger:   log.WithComponent("trader"),
		now:      time.Now,
	}
}

// WithClock overrides the time source
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Phases returns a copy of the daily schedule
func (e *Engine) Phases() []Phase {
	return append([]Phase(nil), e.phases...)
}

// Run builds the first snapshot and then ticks until ctx is cancelled.
// Only a failed first build is returned.
func (e *Engine) Run(ctx context.Context) error {
	base := e.store.Current()
	snap, err := e.builder.Build(ctx, base)
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	e.store.Replace(base, snap)

	e.logger.WithFields(map[string]interface{}{
		"strategy":      e.strategy.Name(),
		"poll_interval": e.cfg.PollInterval.String(),
		"phase_pause":   e.cfg.PhasePause.String(),
		"phases":        len(e.phases),
	}).Info("Trading loop started")

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := e.Tick(ctx); err != nil && ctx.Err() == nil {
			e.logger.WithError(err).Error("Tick failed")
		}

		select {
		case <-ctx.Done():
			e.logger.Info("Trading loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick refreshes the clock, resolves today's session and fires every due
// phase. Phase failures are logged, not returned.
func (e *Engine) Tick(ctx context.Context) error {
	e.refreshClock(ctx)

	snap := e.store.Current()
	if snap == nil {
		return errNoSnapshot
	}

	session, ok := marketclock.SessionFor(e.now(), snap.Calendar, snap.Clock, e.loc)
	if !ok {
		return nil
	}

	for _, p := range e.phases {
		// hourly trades past an early close are skipped
		if p.Action == ActionTrade && !p.At(session).Before(session.Close) {
			continue
		}

		now := e.now()
		due, err := e.guard.Due(ctx, p.Trigger, session, now)
		if err != nil {
			e.logger.WithPhase(p.Name).WithError(err).Warn("Failed to check phase")
			continue
		}
		if !due {
			continue
		}

		e.fire(ctx, p, session, now)

		if p.Pause {
			if err := sleepCtx(ctx, e.cfg.PhasePause); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Engine) fire(ctx context.Context, p Phase, s marketclock.Session, now time.Time) {
	log := e.logger.WithPhase(p.Name).WithField("session", s.Key())

	// marked before running so a crash mid-phase never repeats it
	if err := e.guard.MarkFired(ctx, p.Trigger, s, now); err != nil {
		log.WithError(err).Error("Failed to mark phase fired")
		return
	}

	e.publish(p, s, events.KindStarted, nil)
	log.WithField("action", p.Action.String()).Info("Phase started")

	start := time.Now()
	err := e.run(ctx, p)

	if rerr := e.journal.RecordResult(ctx, p.Name, err); rerr != nil {
		log.WithError(rerr).Warn("Failed to record phase result")
	}

	if err != nil {
		log.WithError(err).Error("Phase failed")
		e.publish(p, s, events.KindFailed, err)
		return
	}

	log.WithField("duration", time.Since(start).String()).Info("Phase finished")
	e.publish(p, s, events.KindFinished, nil)
}

// run executes the phase, converting a panic into an error
func (e *Engine) run(ctx context.Context, p Phase) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", p.Name, r)
		}
	}()
	return e.dispatch(ctx, p)
}

func (e *Engine) dispatch(ctx context.Context, p Phase) error {
	snap := e.store.Current()

	switch p.Action {
	case ActionSelectCandidates:
		candidates, err := e.strategy.SelectCandidates(ctx, snap)
		if err != nil {
			return err
		}
		e.store.SetCandidates(candidates, e.now())
		return nil

	case ActionTrade:
		return e.strategy.Trade(ctx, snap)

	case ActionPreClose:
		updated, err := e.refreshPositions(ctx)
		if err != nil {
			return err
		}
		return e.strategy.UpdateData(ctx, updated)

	case ActionCloseSpecifics:
		return e.strategy.CloseSpecifics(ctx, snap)
	}

	return fmt.Errorf("unknown action %s", p.Action)
}

// refreshClock swaps a fresh clock into the current snapshot. Failures keep
// the previous clock.
func (e *Engine) refreshClock(ctx context.Context) {
	clock, err := e.broker.GetClock(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.WithError(err).Warn("Failed to refresh clock")
		}
		return
	}
	e.store.Apply(func(s *snapshot.Snapshot) *snapshot.Snapshot {
		return s.WithClock(clock)
	})
}

// refreshPositions swaps freshly aged positions into the current snapshot
func (e *Engine) refreshPositions(ctx context.Context) (*snapshot.Snapshot, error) {
	fresh, err := e.broker.ListPositions(ctx)
	if err != nil {
		return nil, &snapshot.StepError{Step: snapshot.StepPositions, Err: err}
	}
	updated := e.store.Apply(func(s *snapshot.Snapshot) *snapshot.Snapshot {
		return s.WithPositions(snapshot.AgePositions(s.Positions, fresh))
	})
	if updated == nil {
		return nil, errNoSnapshot
	}
	return updated, nil
}

func (e *Engine) publish(p Phase, s marketclock.Session, kind string, err error) {
	ev := events.PhaseEvent{
		Timestamp: e.now(),
		Phase:     p.Name,
		Kind:      kind,
		Session:   s.Key(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	e.events.Publish(ev)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
