// Package machine is the pure phase transition function. It never
// mutates a game; the controller applies the transition it returns.
package machine

import (
	"fmt"

	"github.com/freeeve/tworooms/internal/model"
)

// Denial is a typed refusal of a transition.
type Denial struct {
	From    model.Phase
	Trigger model.Trigger
	Reason  string
}

func (d *Denial) Error() string {
	return fmt.Sprintf("transition %s from %s denied: %s", d.Trigger, d.From, d.Reason)
}

// Transition is an accepted phase change. NextRound is non-zero when the
// target phase is a round.
type Transition struct {
	From      model.Phase
	To        model.Phase
	Trigger   model.Trigger
	NextRound int
}

// Next decides whether the trigger is legal for the game's current phase
// and returns the transition to apply, or a typed denial. Pure: callers
// must hold the game lock but Next itself only reads.
func Next(g *model.Game, trigger model.Trigger) (*Transition, error) {
	from := g.State.Phase
	deny := func(reason string) (*Transition, error) {
		return nil, &Denial{From: from, Trigger: trigger, Reason: reason}
	}
	accept := func(to model.Phase, round int) (*Transition, error) {
		return &Transition{From: from, To: to, Trigger: trigger, NextRound: round}, nil
	}

	switch trigger {
	case model.TriggerLockRoom:
		if from != model.PhaseLobby {
			return deny("not in lobby")
		}
		n := len(g.Players)
		if n < model.MinPlayers {
			return deny(fmt.Sprintf("need at least %d players, have %d", model.MinPlayers, n))
		}
		if n > model.MaxPlayers {
			return deny(fmt.Sprintf("at most %d players allowed, have %d", model.MaxPlayers, n))
		}
		return accept(model.PhaseLocked, 0)

	case model.TriggerUnlockRoom:
		if from != model.PhaseLocked {
			return deny("room is not locked")
		}
		if len(g.State.Private.RoleAssignments) > 0 {
			return deny("roles already assigned")
		}
		return accept(model.PhaseLobby, 0)

	case model.TriggerStartRoleSelection:
		if from != model.PhaseLocked {
			return deny("room must be locked first")
		}
		return accept(model.PhaseRoleSelection, 0)

	case model.TriggerCancelRoleSelection:
		if from != model.PhaseRoleSelection {
			return deny("role selection is not in progress")
		}
		return accept(model.PhaseLocked, 0)

	case model.TriggerConfirmRoles:
		if from != model.PhaseRoleSelection {
			return deny("role selection is not in progress")
		}
		return accept(model.PhaseRoleDistribution, 0)

	case model.TriggerRolesDistributed:
		if from != model.PhaseRoleDistribution {
			return deny("roles are not being distributed")
		}
		for id, p := range g.Players {
			if p.CurrentRole == "" {
				return deny("player " + id + " has no assigned role")
			}
		}
		return accept(model.PhaseRoomAssignment, 0)

	case model.TriggerStartGame:
		if from != model.PhaseRoomAssignment {
			return deny("rooms are not assigned")
		}
		a := len(g.Room(model.RoomA).Members)
		b := len(g.Room(model.RoomB).Members)
		if diff := a - b; diff > 1 || diff < -1 {
			return deny("rooms are unbalanced")
		}
		return accept(model.PhaseRound, 1)

	case model.TriggerRoundComplete:
		if from != model.PhaseRound {
			return deny("no round in progress")
		}
		// Hostage exchange clears candidates and the locked flag before
		// requesting this transition, so the guard checks both are clear.
		for _, room := range g.State.Rooms {
			if len(room.HostageCandidates) > 0 || room.HostagesLocked {
				return deny("hostage exchange has not completed")
			}
		}
		if g.State.Round >= g.Config.TotalRounds {
			return accept(model.PhaseResolution, 0)
		}
		return accept(model.PhaseRound, g.State.Round+1)

	case model.TriggerInstantWin:
		if from != model.PhaseRound {
			return deny("no round in progress")
		}
		return accept(model.PhaseResolution, 0)

	case model.TriggerWinConditionsResolved:
		if from != model.PhaseResolution {
			return deny("not resolving win conditions")
		}
		return accept(model.PhaseFinished, 0)
	}

	return deny("unknown trigger")
}

// Apply mutates the game per an accepted transition, bumps the version,
// and publishes the transition on the public scope. Next stays pure;
// this is the single application step the controller and round engine
// share. Callers hold the game lock.
func Apply(g *model.Game, tr *Transition) {
	g.State.Phase = tr.To
	if tr.NextRound > 0 {
		g.State.Round = tr.NextRound
	}
	g.Touch()
	if g.Journal != nil {
		g.Journal.Publish(model.EventPhaseChanged, model.ScopePublic, map[string]any{
			"from":    tr.From,
			"to":      tr.To,
			"trigger": tr.Trigger,
			"round":   g.State.Round,
		})
	}
}
