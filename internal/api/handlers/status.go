package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-us/internal/contracts"
	"github.com/wonny/aegis-us/internal/journal"
	"github.com/wonny/aegis-us/internal/marketclock"
	"github.com/wonny/aegis-us/internal/snapshot"
	"github.com/wonny/aegis-us/internal/trader"
	"github.com/wonny/aegis-us/pkg/logger"
)

// StatusHandler serves read-only views of the trading state
// ⭐ SSOT: status API handlers live in this struct only
type StatusHandler struct {
	store   *snapshot.Store
	journal journal.Store
	phases  []trader.Phase
	loc     *time.Location
	now     func() time.Time
	logger  *logger.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(
	store *snapshot.Store,
	jrnl journal.Store,
	phases []trader.Phase,
	loc *time.Location,
	log *logger.Logger,
) *StatusHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &StatusHandler{
		store:   store,
		journal: jrnl,
		phases:  append([]trader.Phase(nil), phases...),
		loc:     loc,
		now:     time.Now,
		logger:  log,
	}
}

// WithClock overrides the time source
func (h *StatusHandler) WithClock(now func() time.Time) *StatusHandler {
	h.now = now
	return h
}

// current returns the snapshot or writes 503 when none has been built
func (h *StatusHandler) current(w http.ResponseWriter) (*snapshot.Snapshot, bool) {
	snap := h.store.Current()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, "Snapshot not built yet")
		return nil, false
	}
	return snap, true
}

// SnapshotSummary is the compact view of the current snapshot
type SnapshotSummary struct {
	CreatedAt   time.Time         `json:"created_at"`
	Account     contracts.Account `json:"account"`
	CanDayTrade bool              `json:"can_day_trade"`
	Clock       contracts.Clock   `json:"clock"`
	Counts      map[string]int    `json:"counts"`
}

// GetSnapshot returns a summary of the current snapshot
// GET /api/snapshot
func (h *StatusHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, SnapshotSummary{
		CreatedAt:   snap.CreatedAt,
		Account:     snap.Account,
		CanDayTrade: snap.Account.CanDayTrade(),
		Clock:       snap.Clock,
		Counts: map[string]int{
			"assets":      len(snap.Assets),
			"calendar":    len(snap.Calendar),
			"earnings":    len(snap.Earnings),
			"orders":      len(snap.Orders),
			"open_orders": len(snap.OpenOrders()),
			"symbols":     len(snap.Symbols),
			"positions":   len(snap.Positions),
		},
	})
}

// ClockResponse is the market clock plus today's session, if any
type ClockResponse struct {
	Clock   contracts.Clock        `json:"clock"`
	Session *marketclock.Session   `json:"session,omitempty"`
	Gate    marketclock.GateReport `json:"gate"`
}

// GetClock returns the market clock and today's session
// GET /api/clock
func (h *StatusHandler) GetClock(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}

	now := h.now()
	triggers := make([]marketclock.Trigger, 0, len(h.phases))
	for _, p := range h.phases {
		triggers = append(triggers, p.Trigger)
	}

	resp := ClockResponse{
		Clock: snap.Clock,
		Gate:  marketclock.NewGate(snap.Clock, h.loc).Report(now, triggers),
	}
	if s, found := marketclock.SessionFor(now, snap.Calendar, snap.Clock, h.loc); found {
		resp.Session = &s
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetPositions returns the open positions with their ages
// GET /api/positions
func (h *StatusHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, nonNil(snap.Positions))
}

// GetOrders returns the orders, only cancelable ones with ?open=true
// GET /api/orders
func (h *StatusHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}

	if r.URL.Query().Get("open") == "true" {
		respondJSON(w, http.StatusOK, snap.OpenOrders())
		return
	}
	respondJSON(w, http.StatusOK, nonNil(snap.Orders))
}

// CandidatesResponse is the latest candidate selection
type CandidatesResponse struct {
	SelectedAt *time.Time        `json:"selected_at,omitempty"`
	Count      int               `json:"count"`
	Assets     []contracts.Asset `json:"assets"`
}

// GetCandidates returns the assets picked by the last pre-open phase
// GET /api/candidates
func (h *StatusHandler) GetCandidates(w http.ResponseWriter, r *http.Request) {
	assets, at := h.store.Candidates()

	resp := CandidatesResponse{Count: len(assets), Assets: nonNil(assets)}
	if !at.IsZero() {
		resp.SelectedAt = &at
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetTradable reports whether a symbol can be traded
// GET /api/assets/{symbol}/tradable
func (h *StatusHandler) GetTradable(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}

	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":          symbol,
		"tradable":        snap.CanTradeSymbol(symbol),
		"can_sell_shares": snap.CanSellShares(symbol),
	})
}

// PhaseStatus is one phase of the daily schedule with its last run
type PhaseStatus struct {
	Name   string         `json:"name"`
	Action string         `json:"action"`
	At     *time.Time     `json:"at,omitempty"`
	Last   *journal.Entry `json:"last,omitempty"`
}

// PhasesResponse is today's schedule
type PhasesResponse struct {
	Session *marketclock.Session `json:"session,omitempty"`
	Phases  []PhaseStatus        `json:"phases"`
}

// GetPhases returns each phase's instant today and its last journaled run
// GET /api/phases
func (h *StatusHandler) GetPhases(w http.ResponseWriter, r *http.Request) {
	entries, err := h.journal.Entries(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to read phase journal")
		respondError(w, http.StatusInternalServerError, "Failed to read phase journal")
		return
	}

	last := make(map[string]journal.Entry, len(entries))
	for _, e := range entries {
		last[e.Phase] = e
	}

	var resp PhasesResponse
	if snap := h.store.Current(); snap != nil {
		if s, found := marketclock.SessionFor(h.now(), snap.Calendar, snap.Clock, h.loc); found {
			resp.Session = &s
		}
	}

	resp.Phases = make([]PhaseStatus, 0, len(h.phases))
	for _, p := range h.phases {
		ps := PhaseStatus{Name: p.Name, Action: p.Action.String()}
		if resp.Session != nil {
			at := p.At(*resp.Session)
			ps.At = &at
		}
		if e, ok := last[p.Name]; ok {
			ps.Last = &e
		}
		resp.Phases = append(resp.Phases, ps)
	}

	respondJSON(w, http.StatusOK, resp)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
