// Package validate gates every externally submitted command with
// phase-indexed predicate sets. Errors are structured values; warnings
// ride alongside acceptance.
package validate

import (
	"fmt"

	"github.com/freeeve/tworooms/internal/catalog"
	"github.com/freeeve/tworooms/internal/model"
)

// Rule inspects a command against the game. A nil return accepts; a
// returned value with warning severity accepts with advice.
type Rule func(g *model.Game, cmd model.Command) *model.ValidationError

// Validator holds the phase-indexed rule sets.
type Validator struct {
	catalog *catalog.Catalog
	// legalPhases maps each command type to the phases it may be
	// submitted in. A nil entry means any phase.
	legalPhases map[model.CommandType][]model.Phase
}

// New builds the validator against a loaded catalogue.
func New(cat *catalog.Catalog) *Validator {
	return &Validator{
		catalog: cat,
		legalPhases: map[model.CommandType][]model.Phase{
			model.CmdJoinGame:              {model.PhaseLobby},
			model.CmdLeaveGame:             nil, // any phase
			model.CmdLockRoom:              {model.PhaseLobby},
			model.CmdUnlockRoom:            {model.PhaseLocked},
			model.CmdSelectRoles:           {model.PhaseLocked, model.PhaseRoleSelection},
			model.CmdSetRounds:             {model.PhaseLocked, model.PhaseRoleSelection},
			model.CmdConfirmRoles:          {model.PhaseRoleSelection},
			model.CmdStartGame:             {model.PhaseRoomAssignment},
			model.CmdNominateLeader:        {model.PhaseRound},
			model.CmdInitiateNewLeaderVote: {model.PhaseRound},
			model.CmdVoteUsurp:             {model.PhaseRound},
			model.CmdAbdicate:              {model.PhaseRound},
			model.CmdSelectHostage:         {model.PhaseRound},
			model.CmdLockHostages:          {model.PhaseRound},
			model.CmdCardShare:             {model.PhaseRound},
			model.CmdColorShare:            {model.PhaseRound},
			model.CmdPrivateReveal:         {model.PhaseRound},
			model.CmdPublicReveal:          {model.PhaseRound},
			model.CmdActivateAbility:       {model.PhaseRound},
		},
	}
}

// Validate runs every applicable predicate. It returns accumulated
// warnings and the first hard error encountered, if any.
func (v *Validator) Validate(g *model.Game, cmd model.Command) (model.ValidationErrors, error) {
	var warnings model.ValidationErrors

	if err := v.checkPhase(g, cmd); err != nil {
		return nil, err
	}
	if err := v.checkAuthorization(g, cmd); err != nil {
		return nil, err
	}

	switch cmd.Type {
	case model.CmdJoinGame:
		if err := v.checkJoin(g, cmd); err != nil {
			return nil, err
		}
	case model.CmdLockRoom:
		if err := checkPlayerCount(len(g.Players)); err != nil {
			return nil, err
		}
	case model.CmdSetRounds:
		if cmd.TotalRounds != 3 && cmd.TotalRounds != 5 {
			return nil, model.NewValidationError(model.CodeInvalidState,
				fmt.Sprintf("total rounds must be 3 or 5, got %d", cmd.TotalRounds))
		}
	case model.CmdSelectRoles:
		for _, id := range cmd.Roles {
			if !v.catalog.Has(id) {
				return nil, model.NewValidationError(model.CodeMissingTarget,
					"unknown character: "+id)
			}
		}
	case model.CmdConfirmRoles:
		deckWarnings, err := v.CheckDeck(g.Config.SelectedRoles, len(g.Players), g.Config.BuryCard)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, deckWarnings...)
	case model.CmdNominateLeader, model.CmdVoteUsurp:
		if err := v.checkRoomAction(g, cmd, cmd.CandidateID); err != nil {
			return nil, err
		}
	case model.CmdInitiateNewLeaderVote:
		if err := v.checkRoomAction(g, cmd, ""); err != nil {
			return nil, err
		}
		room := g.Room(cmd.RoomID)
		if room.LeaderID == "" {
			return nil, model.NewValidationError(model.CodeInvalidState,
				"room has no leader to replace").
				WithSuggestion("nominate a leader instead")
		}
		if room.LeaderVotingActive {
			return nil, model.NewValidationError(model.CodeVoteActive,
				"a leader vote is already in progress")
		}
		if g.State.Round <= 1 {
			return nil, model.NewValidationError(model.CodeInvalidState,
				"re-votes are only available after round 1")
		}
	case model.CmdAbdicate:
		if err := v.checkRoomAction(g, cmd, cmd.TargetID); err != nil {
			return nil, err
		}
	case model.CmdSelectHostage:
		if err := checkHostageWindow(g); err != nil {
			return nil, err
		}
		if err := v.checkHostageTarget(g, cmd); err != nil {
			return nil, err
		}
	case model.CmdLockHostages:
		if err := checkHostageWindow(g); err != nil {
			return nil, err
		}
		room := g.Room(cmd.RoomID)
		required := model.HostageCount(len(g.Players), g.State.Round)
		if len(room.HostageCandidates) != required {
			return nil, model.NewValidationError(model.CodeInvalidState,
				fmt.Sprintf("need %d hostage candidates, have %d", required, len(room.HostageCandidates)))
		}
	case model.CmdCardShare, model.CmdColorShare, model.CmdPrivateReveal:
		if err := v.checkShareTarget(g, cmd); err != nil {
			return nil, err
		}
	}

	return warnings, nil
}

// checkPhase enforces the legal-phase table.
func (v *Validator) checkPhase(g *model.Game, cmd model.Command) *model.ValidationError {
	phases, known := v.legalPhases[cmd.Type]
	if !known && cmd.Type != model.CmdCreateGame {
		return model.NewValidationError(model.CodeInvalidState, "unknown command type: "+string(cmd.Type))
	}
	if phases == nil {
		return nil
	}
	for _, p := range phases {
		if g.State.Phase == p {
			return nil
		}
	}
	return model.NewValidationError(model.CodeInvalidState,
		fmt.Sprintf("%s is not allowed during %s", cmd.Type, g.State.Phase))
}

// checkAuthorization enforces host-only / leader-only / room-member rules.
func (v *Validator) checkAuthorization(g *model.Game, cmd model.Command) *model.ValidationError {
	switch cmd.Type {
	case model.CmdLockRoom, model.CmdUnlockRoom, model.CmdSelectRoles,
		model.CmdSetRounds, model.CmdConfirmRoles, model.CmdStartGame:
		if cmd.PlayerID != g.State.Private.HostID {
			return model.NewValidationError(model.CodeUnauthorized, "only the host may do that")
		}
	case model.CmdSelectHostage, model.CmdLockHostages, model.CmdAbdicate:
		room := g.Room(cmd.RoomID)
		if room == nil || room.LeaderID != cmd.PlayerID {
			return model.NewValidationError(model.CodeNotLeader,
				"only the current leader may do that")
		}
	case model.CmdNominateLeader, model.CmdVoteUsurp, model.CmdInitiateNewLeaderVote,
		model.CmdCardShare, model.CmdColorShare, model.CmdPrivateReveal, model.CmdPublicReveal,
		model.CmdActivateAbility:
		if cmd.Type == model.CmdNominateLeader || cmd.Type == model.CmdVoteUsurp || cmd.Type == model.CmdInitiateNewLeaderVote {
			room := g.Room(cmd.RoomID)
			if room == nil || !room.HasMember(cmd.PlayerID) {
				return model.NewValidationError(model.CodeWrongRoom,
					"you are not a member of that room")
			}
		} else if _, ok := g.Players[cmd.PlayerID]; !ok {
			return model.NewValidationError(model.CodeUnauthorized, "unknown player")
		}
	case model.CmdLeaveGame:
		if _, ok := g.Players[cmd.PlayerID]; !ok {
			return model.NewValidationError(model.CodeUnauthorized, "unknown player")
		}
	}
	return nil
}

func (v *Validator) checkJoin(g *model.Game, cmd model.Command) *model.ValidationError {
	if cmd.PlayerName == "" {
		return model.NewValidationError(model.CodeMissingTarget, "player name is required")
	}
	for _, p := range g.Players {
		if p.Name == cmd.PlayerName {
			return model.NewValidationError(model.CodeNameTaken,
				"that name is already taken").WithSuggestion("pick a different display name")
		}
	}
	if len(g.Players) >= model.MaxPlayers {
		return model.NewValidationError(model.CodeTooManyPlayers,
			fmt.Sprintf("game already has the maximum of %d players", model.MaxPlayers))
	}
	return nil
}

// checkPlayerCount enforces the 6..30 lock boundary.
func checkPlayerCount(n int) *model.ValidationError {
	if n < model.MinPlayers {
		return model.NewValidationError(model.CodeInsufficientPlayers,
			fmt.Sprintf("need at least %d players, have %d", model.MinPlayers, n)).
			WithSuggestion("invite more players before locking the room")
	}
	if n > model.MaxPlayers {
		return model.NewValidationError(model.CodeTooManyPlayers,
			fmt.Sprintf("at most %d players allowed, have %d", model.MaxPlayers, n))
	}
	return nil
}

// CheckDeck validates a role configuration: required primaries present,
// size matches the player count (+1 under bury), dependencies satisfied,
// no mutually exclusive pair, and a team-balance warning.
func (v *Validator) CheckDeck(roles []string, playerCount int, buryCard bool) (model.ValidationErrors, error) {
	want := playerCount
	if buryCard {
		want = playerCount + 1
	}
	if len(roles) != want {
		return nil, model.NewValidationError(model.CodeRoleCountMismatch,
			fmt.Sprintf("deck has %d roles but needs %d for %d players", len(roles), want, playerCount)).
			WithContext("bury_card", buryCard)
	}

	inDeck := make(map[string]bool, len(roles))
	for _, id := range roles {
		inDeck[id] = true
	}

	for _, primary := range v.catalog.Primaries() {
		if !inDeck[primary.ID] {
			return nil, model.NewValidationError(model.CodeMissingDependency,
				"deck must include "+primary.Name).
				WithSuggestion("add " + primary.Name + " to the deck")
		}
	}

	teamCounts := make(map[model.Team]int)
	for _, id := range roles {
		ch, err := v.catalog.ByID(id)
		if err != nil {
			return nil, model.NewValidationError(model.CodeMissingTarget, "unknown character: "+id)
		}
		teamCounts[ch.Team]++
		for _, req := range ch.Requires {
			if !inDeck[req] {
				return nil, model.NewValidationError(model.CodeMissingDependency,
					fmt.Sprintf("%s requires %s in the deck", ch.Name, req))
			}
		}
		for _, excl := range ch.MutuallyExclusive {
			if inDeck[excl] {
				return nil, model.NewValidationError(model.CodeMutuallyExclusive,
					fmt.Sprintf("%s cannot be in the same deck as %s", ch.Name, excl))
			}
		}
	}

	var warnings model.ValidationErrors
	if diff := teamCounts[model.TeamRed] - teamCounts[model.TeamBlue]; diff > 2 || diff < -2 {
		warnings = append(warnings, &model.ValidationError{
			Code:     model.CodeTeamImbalance,
			Message:  fmt.Sprintf("red and blue team sizes differ by %d", abs(diff)),
			Severity: model.SeverityWarning,
			Context:  map[string]any{"red": teamCounts[model.TeamRed], "blue": teamCounts[model.TeamBlue]},
		})
	}
	return warnings, nil
}

// checkRoomAction verifies room and optional candidate membership.
func (v *Validator) checkRoomAction(g *model.Game, cmd model.Command, candidateID string) *model.ValidationError {
	room := g.Room(cmd.RoomID)
	if room == nil {
		return model.NewValidationError(model.CodeWrongRoom, "unknown room")
	}
	if candidateID != "" && !room.HasMember(candidateID) {
		return model.NewValidationError(model.CodeMissingTarget,
			"candidate is not a member of the room")
	}
	return nil
}

// checkHostageWindow rejects hostage commands while the round timer is
// still running: selection only opens on expiry.
func checkHostageWindow(g *model.Game) *model.ValidationError {
	if !g.State.HostageSelection {
		return model.NewValidationError(model.CodeInvalidState,
			"hostage selection is not open").
			WithSuggestion("wait for the round timer to expire")
	}
	return nil
}

// checkHostageTarget requires a non-leader member of the leader's room.
func (v *Validator) checkHostageTarget(g *model.Game, cmd model.Command) *model.ValidationError {
	room := g.Room(cmd.RoomID)
	if room == nil {
		return model.NewValidationError(model.CodeWrongRoom, "unknown room")
	}
	if cmd.TargetID == "" || !room.HasMember(cmd.TargetID) {
		return model.NewValidationError(model.CodeMissingTarget,
			"hostage must be a member of your room")
	}
	if cmd.TargetID == room.LeaderID {
		return model.NewValidationError(model.CodeMissingTarget,
			"the leader cannot be selected as a hostage")
	}
	return nil
}

// checkShareTarget requires the target to share the initiator's room.
func (v *Validator) checkShareTarget(g *model.Game, cmd model.Command) *model.ValidationError {
	if cmd.TargetID == "" {
		return model.NewValidationError(model.CodeMissingTarget, "share target is required")
	}
	srcRoom, ok := g.RoomOf(cmd.PlayerID)
	if !ok {
		return model.NewValidationError(model.CodeWrongRoom, "you are not assigned to a room")
	}
	dstRoom, ok := g.RoomOf(cmd.TargetID)
	if !ok || srcRoom != dstRoom {
		return model.NewValidationError(model.CodeWrongRoom,
			"share target must be in the same room")
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
