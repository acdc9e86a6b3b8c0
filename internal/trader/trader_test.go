package trader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-us/internal/contracts"
	"github.com/wonny/aegis-us/internal/events"
	"github.com/wonny/aegis-us/internal/filter"
	"github.com/wonny/aegis-us/internal/journal"
	"github.com/wonny/aegis-us/internal/marketclock"
	"github.com/wonny/aegis-us/internal/snapshot"
	"github.com/wonny/aegis-us/internal/snapshot/snapshottest"
	"github.com/wonny/aegis-us/pkg/logger"
)

type recorder struct {
	mu         sync.Mutex
	calls      []string
	errs       map[string]error
	panicOn    string
	candidates []contracts.Asset
	updated    *snapshot.Snapshot
}

func (r *recorder) record(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	if r.panicOn == name {
		panic("boom")
	}
	return r.errs[name]
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) SelectCandidates(context.Context, *snapshot.Snapshot) ([]contracts.Asset, error) {
	if err := r.record("select"); err != nil {
		return nil, err
	}
	return r.candidates, nil
}

func (r *recorder) Trade(context.Context, *snapshot.Snapshot) error {
	return r.record("trade")
}

func (r *recorder) UpdateData(_ context.Context, snap *snapshot.Snapshot) error {
	r.mu.Lock()
	r.updated = snap
	r.mu.Unlock()
	return r.record("update")
}

func (r *recorder) CloseSpecifics(context.Context, *snapshot.Snapshot) error {
	return r.record("close")
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func session(loc *time.Location, closeHour int) (*snapshottest.Broker, *snapshottest.Symbols, *snapshottest.Earnings) {
	broker := &snapshottest.Broker{
		Account: contracts.Account{ID: "acct-1", PortfolioValue: decimal.NewFromInt(10000)},
		Assets:  []contracts.Asset{{Symbol: "AAPL", Tradable: true}},
		Calendar: []contracts.CalendarDay{{
			Date:  time.Date(2024, 3, 1, 0, 0, 0, 0, loc),
			Open:  time.Date(2024, 3, 1, 9, 30, 0, 0, loc),
			Close: time.Date(2024, 3, 1, closeHour, 0, 0, 0, loc),
		}},
		Clock: contracts.Clock{
			NextOpen:  time.Date(2024, 3, 1, 9, 30, 0, 0, loc),
			NextClose: time.Date(2024, 3, 1, closeHour, 0, 0, 0, loc),
		},
	}
	return broker, &snapshottest.Symbols{}, &snapshottest.Earnings{}
}

type harness struct {
	engine   *Engine
	broker   *snapshottest.Broker
	store    *snapshot.Store
	journal  *journal.Memory
	strategy *recorder
	events   chan events.PhaseEvent
	now      time.Time
}

func newHarness(t *testing.T, loc *time.Location, closeHour int) *harness {
	t.Helper()
	broker, symbols, earnings := session(loc, closeHour)

	h := &harness{
		broker:   broker,
		store:    snapshot.NewStore(),
		journal:  journal.NewMemory(),
		strategy: &recorder{errs: map[string]error{}},
		now:      time.Date(2024, 3, 1, 7, 0, 0, 0, loc),
	}
	clock := func() time.Time { return h.now }

	builder := snapshot.NewBuilder(broker, symbols, earnings, loc, logger.Nop()).WithClock(clock)
	snap, err := builder.Build(context.Background(), nil)
	require.NoError(t, err)
	h.store.Set(snap)

	bus := events.NewBroadcaster(256)
	h.events = bus.Subscribe()

	cfg := Config{PollInterval: time.Second, PhasePause: 0, PhaseWindow: 10 * time.Minute}
	h.engine = NewEngine(builder, h.store, h.strategy, h.journal, bus, loc, cfg, logger.Nop()).WithClock(clock)
	return h
}

// tickUntil ticks every step from the current time until end
func (h *harness) tickUntil(t *testing.T, end time.Time, step time.Duration) {
	t.Helper()
	for ; !h.now.After(end); h.now = h.now.Add(step) {
		require.NoError(t, h.engine.Tick(context.Background()))
	}
}

func (h *harness) drain() []events.PhaseEvent {
	var out []events.PhaseEvent
	for {
		select {
		case e := <-h.events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestDefaultPhases(t *testing.T) {
	loc := newYork(t)
	s := marketclock.Session{
		Date:  time.Date(2024, 3, 1, 0, 0, 0, 0, loc),
		Open:  time.Date(2024, 3, 1, 9, 30, 0, 0, loc),
		Close: time.Date(2024, 3, 1, 16, 0, 0, 0, loc),
	}

	phases := DefaultPhases()
	require.Len(t, phases, 10)

	want := map[string]string{
		"pre_open":   "09:15:00",
		"intraday_0": "09:31:00",
		"intraday_1": "10:31:00",
		"intraday_6": "15:31:00",
		"pre_close":  "15:50:00",
		"post_close": "16:30:00",
	}
	for _, p := range phases {
		if at, ok := want[p.Name]; ok {
			assert.Equal(t, at, p.At(s).Format("15:04:05"), p.Name)
		}
	}

	assert.Equal(t, PhasePreOpen, phases[0].Name)
	assert.True(t, phases[0].Pause)
	assert.Equal(t, ActionTrade, phases[1].Action)
	assert.False(t, phases[8].Pause)
	assert.Equal(t, PhasePostClose, phases[9].Name)

	// every call returns an independent schedule
	phases[0].Offset = 0
	assert.Equal(t, -15*time.Minute, DefaultPhases()[0].Offset)
}

func TestEngine_FullDayFiresEachPhaseOnce(t *testing.T) {
	loc := newYork(t)
	h := newHarness(t, loc, 16)
	h.strategy.candidates = []contracts.Asset{{Symbol: "AAPL"}}

	h.now = time.Date(2024, 3, 1, 9, 0, 0, 0, loc)
	h.tickUntil(t, time.Date(2024, 3, 1, 17, 0, 0, 0, loc), 30*time.Second)

	assert.Equal(t, []string{
		"select",
		"trade", "trade", "trade", "trade", "trade", "trade", "trade",
		"update", "close",
	}, h.strategy.Calls())

	candidates, at := h.store.Candidates()
	assert.Equal(t, []contracts.Asset{{Symbol: "AAPL"}}, candidates)
	assert.Equal(t, "09:15:00", at.In(loc).Format("15:04:05"))

	entries, err := h.journal.Entries(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 10)
	for _, e := range entries {
		assert.Equal(t, "2024-03-01", e.Date, e.Phase)
		assert.Equal(t, 1, e.Runs, e.Phase)
		assert.Equal(t, journal.StatusOK, e.Status, e.Phase)
	}

	evs := h.drain()
	require.Len(t, evs, 20)
	assert.Equal(t, events.PhaseEvent{
		Timestamp: time.Date(2024, 3, 1, 9, 15, 0, 0, loc),
		Phase:     "pre_open",
		Kind:      events.KindStarted,
		Session:   "2024-03-01",
	}, evs[0])
	assert.Equal(t, events.KindFinished, evs[1].Kind)

	// a second pass over the same day fires nothing
	h.now = time.Date(2024, 3, 1, 9, 0, 0, 0, loc)
	h.tickUntil(t, time.Date(2024, 3, 1, 17, 0, 0, 0, loc), 30*time.Second)
	assert.Len(t, h.strategy.Calls(), 10)
}

func TestEngine_LateStartWithinWindow(t *testing.T) {
	loc := newYork(t)
	h := newHarness(t, loc, 16)

	// started nine minutes after pre-open: still due
	h.now = time.Date(2024, 3, 1, 9, 24, 0, 0, loc)
	require.NoError(t, h.engine.Tick(context.Background()))
	assert.Equal(t, []string{"select"}, h.strategy.Calls())

	// started after the window closed: missed
	h2 := newHarness(t, loc, 16)
	h2.now = time.Date(2024, 3, 1, 9, 25, 0, 0, loc)
	require.NoError(t, h2.engine.Tick(context.Background()))
	assert.Empty(t, h2.strategy.Calls())
}

func TestEngine_PhaseErrorsDoNotStopTheDay(t *testing.T) {
	loc := newYork(t)
	h := newHarness(t, loc, 16)
	h.strategy.errs["select"] = errors.New("no symbols")
	h.strategy.panicOn = "trade"

	h.now = time.Date(2024, 3, 1, 9, 0, 0, 0, loc)
	h.tickUntil(t, time.Date(2024, 3, 1, 17, 0, 0, 0, loc), time.Minute)

	calls := h.strategy.Calls()
	require.Len(t, calls, 10)
	assert.Equal(t, "close", calls[9])

	entries, err := h.journal.Entries(context.Background())
	require.NoError(t, err)
	status := map[string]journal.Entry{}
	for _, e := range entries {
		status[e.Phase] = e
	}
	assert.Equal(t, journal.StatusError, status["pre_open"].Status)
	assert.Equal(t, "no symbols", status["pre_open"].Error)
	assert.Equal(t, journal.StatusError, status["intraday_3"].Status)
	assert.Contains(t, status["intraday_3"].Error, "panic in intraday_3")
	assert.Equal(t, journal.StatusOK, status["post_close"].Status)

	var failed int
	for _, e := range h.drain() {
		if e.Kind == events.KindFailed {
			failed++
		}
	}
	assert.Equal(t, 8, failed)
}

func TestEngine_PreCloseAgesPositions(t *testing.T) {
	loc := newYork(t)
	h := newHarness(t, loc, 16)

	h.store.Apply(func(s *snapshot.Snapshot) *snapshot.Snapshot {
		return s.WithPositions([]contracts.Position{{Symbol: "AAPL", Age: 2}})
	})
	h.broker.SetPositions([]contracts.Position{{Symbol: "AAPL"}, {Symbol: "TSLA"}})

	h.now = time.Date(2024, 3, 1, 15, 50, 0, 0, loc)
	require.NoError(t, h.engine.Tick(context.Background()))

	require.Equal(t, []string{"update"}, h.strategy.Calls())
	want := []contracts.Position{{Symbol: "AAPL", Age: 3}, {Symbol: "TSLA", Age: 0}}
	assert.Equal(t, want, h.store.Current().Positions)
	assert.Equal(t, want, h.strategy.updated.Positions)
}

func TestEngine_PreClosePositionsFailure(t *testing.T) {
	loc := newYork(t)
	h := newHarness(t, loc, 16)
	h.broker.Errs = map[string]error{"positions": errors.New("timeout")}

	h.now = time.Date(2024, 3, 1, 15, 51, 0, 0, loc)
	require.NoError(t, h.engine.Tick(context.Background()))

	assert.Empty(t, h.strategy.Calls(), "UpdateData is skipped")
	entries, err := h.journal.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snapshot positions: timeout", entries[0].Error)
}

func TestEngine_EarlyCloseSkipsLateTrades(t *testing.T) {
	loc := newYork(t)
	h := newHarness(t, loc, 13)

	h.now = time.Date(2024, 3, 1, 9, 0, 0, 0, loc)
	h.tickUntil(t, time.Date(2024, 3, 1, 16, 0, 0, 0, loc), time.Minute)

	assert.Equal(t, []string{"select", "trade", "trade", "trade", "trade", "update", "close"}, h.strategy.Calls())
}

func TestEngine_NoSessionNoPhases(t *testing.T) {
	loc := newYork(t)
	h := newHarness(t, loc, 16)

	h.now = time.Date(2024, 3, 2, 9, 0, 0, 0, loc) // Saturday
	h.tickUntil(t, time.Date(2024, 3, 2, 17, 0, 0, 0, loc), time.Minute)

	assert.Empty(t, h.strategy.Calls())
}

func TestEngine_ClockRefresh(t *testing.T) {
	loc := newYork(t)
	h := newHarness(t, loc, 16)

	open := contracts.Clock{IsOpen: true, NextOpen: time.Date(2024, 3, 4, 9, 30, 0, 0, loc)}
	h.broker.SetClock(open)
	require.NoError(t, h.engine.Tick(context.Background()))
	assert.True(t, h.store.Current().Clock.IsOpen)

	// a failed refresh keeps the last clock
	h.broker.Errs = map[string]error{"clock": errors.New("down")}
	require.NoError(t, h.engine.Tick(context.Background()))
	assert.True(t, h.store.Current().Clock.IsOpen)
}

func TestEngine_Run(t *testing.T) {
	loc := newYork(t)

	t.Run("initial build failure", func(t *testing.T) {
		broker, symbols, earnings := session(loc, 16)
		broker.Errs = map[string]error{"account": errors.New("unauthorized")}
		builder := snapshot.NewBuilder(broker, symbols, earnings, loc, logger.Nop())
		e := NewEngine(builder, snapshot.NewStore(), &recorder{}, journal.NewMemory(), nil, loc, DefaultConfig(), logger.Nop())

		err := e.Run(context.Background())
		require.Error(t, err)
		var stepErr *snapshot.StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, snapshot.StepAccount, stepErr.Step)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		broker, symbols, earnings := session(loc, 16)
		night := func() time.Time { return time.Date(2024, 3, 1, 3, 0, 0, 0, loc) }
		builder := snapshot.NewBuilder(broker, symbols, earnings, loc, logger.Nop()).WithClock(night)
		store := snapshot.NewStore()
		cfg := Config{PollInterval: 5 * time.Millisecond}
		e := NewEngine(builder, store, &recorder{}, journal.NewMemory(), nil, loc, cfg, logger.Nop()).WithClock(night)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- e.Run(ctx) }()

		require.Eventually(t, func() bool { return store.Current() != nil }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Run did not stop")
		}
	})
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))
}

// pennyBars closes at 2.20 over a 45-day mean of exactly 2: a 10% spread
func pennyBars() []contracts.Bar {
	bars := make([]contracts.Bar, 0, 100)
	add := func(n int, v string) {
		for i := 0; i < n; i++ {
			bars = append(bars, contracts.Bar{Close: decimal.RequireFromString(v)})
		}
	}
	add(55, "1")
	add(39, "2")
	add(3, "1.8")
	add(3, "2.2")
	return bars
}

func flatBars(v string) []contracts.Bar {
	bars := make([]contracts.Bar, 100)
	for i := range bars {
		bars[i] = contracts.Bar{Close: decimal.RequireFromString(v)}
	}
	return bars
}

func TestPennyStrategy_SelectCandidates(t *testing.T) {
	bars := &snapshottest.Bars{
		Data: map[string][]contracts.Bar{
			"AAPL": pennyBars(),
			"BBBB": pennyBars(),
			"CCCC": pennyBars(),
			"DDDD": flatBars("2"),
			"EEEE": flatBars("12"),
		},
		Errs: map[string]error{"FFFF": errors.New("404")},
	}
	f := filter.New(bars, filter.DefaultConfig(), logger.Nop())
	p := NewPennyStrategy(f, decimal.NewFromInt(1), decimal.NewFromInt(5), logger.Nop())

	snap := &snapshot.Snapshot{
		Assets: []contracts.Asset{
			{Symbol: "AAPL", Tradable: true},
			{Symbol: "BBBB", Tradable: false},
			{Symbol: "CCCC", Tradable: true},
			{Symbol: "DDDD", Tradable: true},
			{Symbol: "EEEE", Tradable: true},
			{Symbol: "FFFF", Tradable: true},
		},
		Symbols: []contracts.Symbol{
			{Symbol: "AAPL"}, {Symbol: "BBBB"}, {Symbol: "DDDD"}, {Symbol: "EEEE"}, {Symbol: "FFFF"},
		},
	}

	got, err := p.SelectCandidates(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, "penny", p.Name())

	assert.NoError(t, p.Trade(context.Background(), snap))
	assert.NoError(t, p.UpdateData(context.Background(), snap))
	assert.NoError(t, p.CloseSpecifics(context.Background(), snap))

	p.WithPredicates(filter.OnExchange("NYSE"))
	got, err = p.SelectCandidates(context.Background(), snap)
	require.NoError(t, err)
	assert.Empty(t, got, "AAPL is not listed on NYSE here")
}
