package trader

import (
	"fmt"
	"time"

	"github.com/wonny/aegis-us/internal/marketclock"
)

// Action is what the engine does when a phase fires
type Action int

const (
	ActionSelectCandidates Action = iota
	ActionTrade
	ActionPreClose
	ActionCloseSpecifics
)

func (a Action) String() string {
	switch a {
	case ActionSelectCandidates:
		return "select_candidates"
	case ActionTrade:
		return "trade"
	case ActionPreClose:
		return "pre_close"
	case ActionCloseSpecifics:
		return "close_specifics"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Phase binds a trigger to an action. Pause phases sleep after running.
type Phase struct {
	marketclock.Trigger
	Action Action
	Pause  bool
}

func (p Phase) String() string {
	return fmt.Sprintf("Phase{%s action=%s pause=%t}", p.Trigger, p.Action, p.Pause)
}

// Phase names
const (
	PhasePreOpen   = "pre_open"
	PhasePreClose  = "pre_close"
	PhasePostClose = "post_close"
)

// IntradayHours is the number of hourly trade phases after the open
const IntradayHours = 7

// IntradayPhase names the trade phase h hours after the open
func IntradayPhase(h int) string {
	return fmt.Sprintf("intraday_%d", h)
}

// DefaultPhases returns a fresh copy of the daily schedule, in firing order
func DefaultPhases() []Phase {
	phases := make([]Phase, 0, IntradayHours+3)

	phases = append(phases, Phase{
		Trigger: marketclock.Trigger{Name: PhasePreOpen, Anchor: marketclock.AnchorOpen, Offset: -15 * time.Minute},
		Action:  ActionSelectCandidates,
		Pause:   true,
	})

	for h := 0; h < IntradayHours; h++ {
		phases = append(phases, Phase{
			Trigger: marketclock.Trigger{
				Name:   IntradayPhase(h),
				Anchor: marketclock.AnchorOpen,
				Offset: time.Duration(h)*time.Hour + time.Minute,
			},
			Action: ActionTrade,
			Pause:  true,
		})
	}

	phases = append(phases,
		Phase{
			Trigger: marketclock.Trigger{Name: PhasePreClose, Anchor: marketclock.AnchorClose, Offset: -10 * time.Minute},
			Action:  ActionPreClose,
		},
		Phase{
			Trigger: marketclock.Trigger{Name: PhasePostClose, Anchor: marketclock.AnchorClose, Offset: 30 * time.Minute},
			Action:  ActionCloseSpecifics,
		},
	)

	return phases
}
