// Package ability evaluates character abilities and win conditions. The
// rest of the core treats it as a contract: given a game and a trigger,
// it returns an ordered list of effects; at resolution it names winners.
package ability

import (
	"sort"

	"github.com/freeeve/tworooms/internal/catalog"
	"github.com/freeeve/tworooms/internal/model"
)

// EffectKind is the closed set of effect applications the core can apply.
type EffectKind string

const (
	EffectApplyCondition  EffectKind = "apply_condition"
	EffectRemoveCondition EffectKind = "remove_condition"
	EffectForceReveal     EffectKind = "force_reveal"
	EffectSwapCard        EffectKind = "swap_card"
	EffectEndRound        EffectKind = "end_round"
	EffectInstantWin      EffectKind = "instant_win"
)

// Effect is a single application the core performs in order.
type Effect struct {
	Kind      EffectKind
	PlayerID  string
	TargetID  string
	Condition string
	Team      model.Team
	Priority  int
}

// Outcome is the result of win-condition resolution.
type Outcome struct {
	Winner           model.Team
	CharacterWinners []string // player ids whose personal conditions were met
}

// Engine is the contract the controller and round engine program against.
type Engine interface {
	// OnTrigger evaluates abilities firing at a trigger point. Effects
	// come back ordered by ability priority.
	OnTrigger(g *model.Game, trig model.AbilityTrigger, actorID, targetID string) []Effect
	// Resolve evaluates win conditions at RESOLUTION.
	Resolve(g *model.Game) Outcome
}

// DefaultEngine implements the generic ability envelope against the
// catalogue's data-driven abilities and win conditions.
type DefaultEngine struct {
	catalog *catalog.Catalog
}

// NewDefault builds the default engine over a loaded catalogue.
func NewDefault(cat *catalog.Catalog) *DefaultEngine {
	return &DefaultEngine{catalog: cat}
}

// OnTrigger collects effects from every ability on the actor's character
// that fires at the trigger, ordered by priority (lowest first).
func (e *DefaultEngine) OnTrigger(g *model.Game, trig model.AbilityTrigger, actorID, targetID string) []Effect {
	actor, ok := g.Players[actorID]
	if !ok || actor.CurrentRole == "" {
		return nil
	}
	ch, err := e.catalog.ByID(actor.CurrentRole)
	if err != nil {
		return nil
	}

	var effects []Effect
	for _, ab := range ch.Abilities {
		if ab.Trigger != trig {
			continue
		}
		switch ab.Effect {
		case "swap_card":
			effects = append(effects, Effect{
				Kind: EffectSwapCard, PlayerID: actorID, TargetID: targetID, Priority: ab.Priority,
			})
		case "apply_condition":
			effects = append(effects, Effect{
				Kind: EffectApplyCondition, PlayerID: targetID,
				Condition: conditionParam(ab, "armed"), Priority: ab.Priority,
			})
		case "remove_condition":
			effects = append(effects, Effect{
				Kind: EffectRemoveCondition, PlayerID: targetID,
				Condition: conditionParam(ab, "armed"), Priority: ab.Priority,
			})
		}
	}
	sort.SliceStable(effects, func(i, j int) bool { return effects[i].Priority < effects[j].Priority })
	return effects
}

// Resolve decides team victory and per-character wins. The blue team wins
// when the blue primary is not co-located with the red primary; the red
// team wins otherwise. Character win conditions are evaluated in priority
// order; an overriding condition replaces the team result.
func (e *DefaultEngine) Resolve(g *model.Game) Outcome {
	out := Outcome{Winner: e.teamWinner(g)}

	type pending struct {
		playerID string
		cond     model.WinCondition
	}
	var conds []pending
	for id, p := range g.Players {
		if p.CurrentRole == "" {
			continue
		}
		ch, err := e.catalog.ByID(p.CurrentRole)
		if err != nil {
			continue
		}
		for _, wc := range ch.WinConditions {
			conds = append(conds, pending{playerID: id, cond: wc})
		}
	}
	sort.SliceStable(conds, func(i, j int) bool { return conds[i].cond.Priority > conds[j].cond.Priority })

	for _, c := range conds {
		if !e.conditionMet(g, c.playerID, c.cond) {
			continue
		}
		out.CharacterWinners = append(out.CharacterWinners, c.playerID)
		if c.cond.OverridesTeam {
			if p := g.Players[c.playerID]; p != nil {
				if ch, err := e.catalog.ByID(p.CurrentRole); err == nil {
					out.Winner = ch.Team
				}
			}
		}
	}
	return out
}

// teamWinner applies the primary co-location rule.
func (e *DefaultEngine) teamWinner(g *model.Game) model.Team {
	var bluePrimary, redPrimary *model.Player
	for _, p := range g.Players {
		ch, err := e.catalog.ByID(p.CurrentRole)
		if err != nil || ch.Class != model.ClassPrimary {
			continue
		}
		switch ch.Team {
		case model.TeamBlue:
			bluePrimary = p
		case model.TeamRed:
			redPrimary = p
		}
	}
	if bluePrimary == nil || redPrimary == nil {
		// A buried or absent primary leaves only the surviving side.
		if redPrimary != nil {
			return model.TeamRed
		}
		return model.TeamBlue
	}
	if bluePrimary.CurrentRoom == redPrimary.CurrentRoom {
		return model.TeamRed
	}
	return model.TeamBlue
}

// conditionMet evaluates one typed win predicate.
func (e *DefaultEngine) conditionMet(g *model.Game, playerID string, wc model.WinCondition) bool {
	p := g.Players[playerID]
	if p == nil {
		return false
	}
	switch wc.Type {
	case "avoid_primary":
		primaryID, _ := wc.Params["primary"].(string)
		for otherID, other := range g.Players {
			if otherID == playerID {
				continue
			}
			if other.CurrentRole == primaryID {
				return other.CurrentRoom != p.CurrentRoom
			}
		}
		return true
	case "usurped_and_leading":
		return p.UsurpedLeaders > 0 && p.IsLeader
	case "sent_as_hostage":
		return p.WasSentAsHostage
	default:
		// Unknown predicate types never fire; advanced abilities beyond
		// the generic envelope are out of core scope.
		return false
	}
}

func conditionParam(ab model.Ability, fallback string) string {
	if v, ok := ab.Params["condition"].(string); ok && v != "" {
		return v
	}
	return fallback
}
