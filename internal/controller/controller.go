// Package controller is the single entry point for every external
// command. It composes the validator, state machine, round engine, and
// event bus; it is the only component that mutates a Game.
package controller

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/tworooms/internal/ability"
	"github.com/freeeve/tworooms/internal/catalog"
	"github.com/freeeve/tworooms/internal/event"
	"github.com/freeeve/tworooms/internal/machine"
	"github.com/freeeve/tworooms/internal/model"
	"github.com/freeeve/tworooms/internal/repository"
	"github.com/freeeve/tworooms/internal/round"
	"github.com/freeeve/tworooms/internal/store"
	"github.com/freeeve/tworooms/internal/validate"
)

// Result is the successful outcome of a command: optional warnings the
// validator surfaced alongside acceptance, and a small response payload.
type Result struct {
	Warnings model.ValidationErrors `json:"warnings,omitempty"`
	Payload  any                    `json:"payload,omitempty"`
}

// Controller dispatches commands against live games.
type Controller struct {
	store     *store.Store
	catalog   *catalog.Catalog
	validator *validate.Validator
	rounds    *round.Engine
	abilities ability.Engine
	snapshots repository.SnapshotStore // optional write-through, nil disables
}

// New wires the controller. snapshots may be nil.
func New(st *store.Store, cat *catalog.Catalog, v *validate.Validator,
	rounds *round.Engine, abilities ability.Engine, snapshots repository.SnapshotStore) *Controller {
	return &Controller{
		store:     st,
		catalog:   cat,
		validator: v,
		rounds:    rounds,
		abilities: abilities,
		snapshots: snapshots,
	}
}

// Store exposes the game store for the transport layer.
func (c *Controller) Store() *store.Store { return c.store }

// Rounds exposes the round engine for snapshot assembly.
func (c *Controller) Rounds() *round.Engine { return c.rounds }

// Dispatch validates and executes one command. It never panics; internal
// inconsistency aborts the command with an error and no public event.
func (c *Controller) Dispatch(ctx context.Context, cmd model.Command) (*Result, error) {
	switch cmd.Type {
	case model.CmdCreateGame:
		return c.createGame(ctx, cmd)
	case model.CmdJoinGame:
		return c.joinGame(ctx, cmd)
	}

	g, err := c.store.Get(cmd.GameID)
	if err != nil {
		return nil, model.NewValidationError(model.CodeGameNotFound, "game not found")
	}

	g.Lock()
	defer g.Unlock()

	warnings, err := c.validator.Validate(g, cmd)
	if err != nil {
		return nil, err
	}

	res, err := c.apply(g, cmd)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &Result{}
	}
	res.Warnings = append(warnings, res.Warnings...)

	c.writeThrough(ctx, g)
	return res, nil
}

// apply executes a validated command. Caller holds the game lock.
func (c *Controller) apply(g *model.Game, cmd model.Command) (*Result, error) {
	switch cmd.Type {
	case model.CmdLeaveGame:
		return c.leaveGame(g, cmd)
	case model.CmdLockRoom:
		return c.transitionCmd(g, model.TriggerLockRoom, model.EventRoomLocked, nil)
	case model.CmdUnlockRoom:
		return c.transitionCmd(g, model.TriggerUnlockRoom, model.EventRoomUnlocked, nil)
	case model.CmdSelectRoles:
		return c.selectRoles(g, cmd)
	case model.CmdSetRounds:
		return c.setRounds(g, cmd)
	case model.CmdConfirmRoles:
		return c.confirmRoles(g)
	case model.CmdStartGame:
		return c.startGame(g)
	case model.CmdNominateLeader:
		if err := c.rounds.CastLeaderVote(g, cmd.RoomID, cmd.PlayerID, cmd.CandidateID); err != nil {
			return nil, err
		}
		return &Result{}, nil
	case model.CmdInitiateNewLeaderVote:
		c.rounds.InitiateNewLeaderVote(g, cmd.RoomID, cmd.PlayerID)
		return &Result{}, nil
	case model.CmdVoteUsurp:
		c.rounds.VoteUsurp(g, cmd.RoomID, cmd.PlayerID, cmd.CandidateID)
		return &Result{}, nil
	case model.CmdAbdicate:
		c.rounds.Abdicate(g, cmd.RoomID, cmd.PlayerID, cmd.TargetID)
		return &Result{}, nil
	case model.CmdSelectHostage:
		if err := c.rounds.SelectHostage(g, cmd.RoomID, cmd.TargetID); err != nil {
			return nil, err
		}
		return &Result{}, nil
	case model.CmdLockHostages:
		c.rounds.LockHostages(g, cmd.RoomID)
		return &Result{}, nil
	case model.CmdCardShare:
		return c.cardShare(g, cmd, "card")
	case model.CmdColorShare:
		return c.cardShare(g, cmd, "color")
	case model.CmdPrivateReveal:
		return c.privateReveal(g, cmd)
	case model.CmdPublicReveal:
		return c.publicReveal(g, cmd)
	case model.CmdActivateAbility:
		return c.activateAbility(g, cmd)
	}
	return nil, model.NewValidationError(model.CodeInvalidState, "unsupported command: "+string(cmd.Type))
}

// createGame builds a new game with the submitter as host.
func (c *Controller) createGame(ctx context.Context, cmd model.Command) (*Result, error) {
	if cmd.HostName == "" {
		return nil, model.NewValidationError(model.CodeMissingTarget, "host name is required")
	}

	g := model.NewGame(uuid.NewString(), "")
	if _, err := rand.Read(g.State.Private.Seed[:]); err != nil {
		return nil, fmt.Errorf("seed generation: %w", err)
	}
	if err := c.store.Register(g); err != nil {
		return nil, fmt.Errorf("register game: %w", err)
	}

	journal := event.NewJournal(g.ID, func(playerID string) (model.RoomID, bool) {
		room, ok := g.State.RoomAssignments[playerID]
		return room, ok
	})
	g.Journal = journal

	host := &model.Player{
		ID:       uuid.NewString(),
		Name:     cmd.HostName,
		IsHost:   true,
		Status:   model.ConnConnected,
		LastSeen: time.Now(),
		Alive:    true,
	}
	g.Lock()
	defer g.Unlock()
	g.Players[host.ID] = host
	g.State.Private.HostID = host.ID
	journal.RegisterPlayer(host.ID)
	g.Touch()

	journal.Publish(model.EventGameCreated, model.ScopePublic, map[string]any{
		"code":    g.Code,
		"host_id": host.ID,
	})
	journal.Publish(model.EventPlayerJoined, model.ScopePublic, host.Public())
	log.Info().Str("gameId", g.ID).Str("code", g.Code).Str("hostId", host.ID).Msg("Game created")

	c.writeThrough(ctx, g)
	return &Result{Payload: map[string]any{
		"game_id":   g.ID,
		"code":      g.Code,
		"player_id": host.ID,
	}}, nil
}

// joinGame adds a player to a lobby, looked up by room code.
func (c *Controller) joinGame(ctx context.Context, cmd model.Command) (*Result, error) {
	g, err := c.store.GetByCode(cmd.Code)
	if err != nil {
		return nil, model.NewValidationError(model.CodeGameNotFound, "no game with that code").
			WithSuggestion("check the room code and try again")
	}

	g.Lock()
	defer g.Unlock()

	if _, err := c.validator.Validate(g, cmd); err != nil {
		return nil, err
	}

	p := &model.Player{
		ID:       uuid.NewString(),
		Name:     cmd.PlayerName,
		Status:   model.ConnConnected,
		LastSeen: time.Now(),
		Alive:    true,
	}
	g.Players[p.ID] = p
	if j, ok := g.Journal.(*event.Journal); ok {
		j.RegisterPlayer(p.ID)
	}
	g.Touch()

	g.Journal.Publish(model.EventPlayerJoined, model.ScopePublic, p.Public())
	log.Info().Str("gameId", g.ID).Str("playerId", p.ID).Str("name", p.Name).Msg("Player joined")

	c.writeThrough(ctx, g)
	return &Result{Payload: map[string]any{
		"game_id":   g.ID,
		"player_id": p.ID,
		"code":      g.Code,
	}}, nil
}

func (c *Controller) leaveGame(g *model.Game, cmd model.Command) (*Result, error) {
	p := g.Players[cmd.PlayerID]
	if g.State.Phase == model.PhaseLobby {
		delete(g.Players, cmd.PlayerID)
	} else {
		p.Status = model.ConnDisconnected
		p.Alive = false
	}
	g.Touch()
	g.Journal.Publish(model.EventPlayerLeft, model.ScopePublic, map[string]any{
		"player_id": cmd.PlayerID,
	})
	return &Result{}, nil
}

// transitionCmd applies a simple trigger-only command.
func (c *Controller) transitionCmd(g *model.Game, trigger model.Trigger, evt model.EventType, payload any) (*Result, error) {
	tr, err := machine.Next(g, trigger)
	if err != nil {
		return nil, model.NewValidationError(model.CodeInvalidState, err.Error())
	}
	machine.Apply(g, tr)
	g.Journal.Publish(evt, model.ScopePublic, payload)
	return &Result{}, nil
}

func (c *Controller) selectRoles(g *model.Game, cmd model.Command) (*Result, error) {
	if g.State.Phase == model.PhaseLocked {
		tr, err := machine.Next(g, model.TriggerStartRoleSelection)
		if err != nil {
			return nil, model.NewValidationError(model.CodeInvalidState, err.Error())
		}
		machine.Apply(g, tr)
	}
	g.Config.SelectedRoles = append([]string(nil), cmd.Roles...)
	g.Config.BuryCard = len(cmd.Roles) == len(g.Players)+1
	g.Touch()
	g.Journal.Publish(model.EventRolesSelected, model.ScopePublic, map[string]any{
		"roles":     g.Config.SelectedRoles,
		"bury_card": g.Config.BuryCard,
	})
	return &Result{}, nil
}

// setRounds updates the round count and re-derives the per-round timer
// schedule from the default table for that count.
func (c *Controller) setRounds(g *model.Game, cmd model.Command) (*Result, error) {
	g.Config.TotalRounds = cmd.TotalRounds
	g.Config.RoundDurations = model.DefaultRoundDurations(cmd.TotalRounds)
	g.Touch()
	g.Journal.Publish(model.EventGameConfigUpdated, model.ScopePublic, map[string]any{
		"total_rounds": g.Config.TotalRounds,
	})
	return &Result{}, nil
}

// confirmRoles runs the deck through distribution and room assignment in
// one command: ROLE_SELECTION → ROLE_DISTRIBUTION → ROOM_ASSIGNMENT.
func (c *Controller) confirmRoles(g *model.Game) (*Result, error) {
	tr, err := machine.Next(g, model.TriggerConfirmRoles)
	if err != nil {
		return nil, model.NewValidationError(model.CodeInvalidState, err.Error())
	}
	machine.Apply(g, tr)

	if err := c.distributeRoles(g); err != nil {
		return nil, err
	}

	tr, err = machine.Next(g, model.TriggerRolesDistributed)
	if err != nil {
		return nil, model.NewValidationError(model.CodeInvalidState, err.Error())
	}
	machine.Apply(g, tr)

	if err := c.assignRooms(g); err != nil {
		return nil, err
	}
	return &Result{}, nil
}

// distributeRoles shuffles the selected deck with a cryptographically
// strong Fisher–Yates, buries a card when configured, and assigns each
// player their role through a player-scoped event only.
func (c *Controller) distributeRoles(g *model.Game) error {
	roles := append([]string(nil), g.Config.SelectedRoles...)
	if err := cryptoShuffle(roles); err != nil {
		return fmt.Errorf("shuffle roles: %w", err)
	}

	if g.Config.BuryCard && len(roles) > len(g.Players) {
		g.State.Private.BuriedCard = roles[len(roles)-1]
		roles = roles[:len(roles)-1]
	}

	players := g.SortedPlayers()
	if len(roles) != len(players) {
		return fmt.Errorf("deck size %d does not match player count %d", len(roles), len(players))
	}

	for i, p := range players {
		p.CurrentRole = roles[i]
		p.OriginalRole = roles[i]
		g.State.Private.RoleAssignments[p.ID] = roles[i]
		g.Touch()

		ch, err := c.catalog.ByID(roles[i])
		if err != nil {
			return fmt.Errorf("assigned unknown character %s: %w", roles[i], err)
		}
		g.Journal.Publish(model.EventRoleAssigned, model.PlayerScope(p.ID), map[string]any{
			"character_id": ch.ID,
			"name":         ch.Name,
			"description":  ch.Description,
			"team":         ch.Team,
		})
	}
	return nil
}

// assignRooms shuffles the players and splits them between the rooms,
// sizes differing by at most one.
func (c *Controller) assignRooms(g *model.Game) error {
	players := g.SortedPlayers()
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	if err := cryptoShuffle(ids); err != nil {
		return fmt.Errorf("shuffle players: %w", err)
	}

	mid := len(ids) / 2
	roomA := g.Room(model.RoomA)
	roomB := g.Room(model.RoomB)
	roomA.Members = append([]string(nil), ids[:mid]...)
	roomB.Members = append([]string(nil), ids[mid:]...)

	for _, id := range roomA.Members {
		g.Players[id].CurrentRoom = model.RoomA
		g.State.RoomAssignments[id] = model.RoomA
	}
	for _, id := range roomB.Members {
		g.Players[id].CurrentRoom = model.RoomB
		g.State.RoomAssignments[id] = model.RoomB
	}
	g.Touch()

	g.Journal.Publish(model.EventRoomsAssigned, model.ScopePublic, map[string]any{
		"assignments": g.State.RoomAssignments,
	})
	return nil
}

func (c *Controller) startGame(g *model.Game) (*Result, error) {
	tr, err := machine.Next(g, model.TriggerStartGame)
	if err != nil {
		return nil, model.NewValidationError(model.CodeInvalidState, err.Error())
	}
	machine.Apply(g, tr)
	c.rounds.StartRound(g, tr.NextRound)
	return &Result{}, nil
}

// cardShare performs a mutual share between two same-room players. A
// card share discloses character ids through player-scoped events only;
// a colour share discloses team colours.
func (c *Controller) cardShare(g *model.Game, cmd model.Command, kind string) (*Result, error) {
	src := g.Players[cmd.PlayerID]
	dst := g.Players[cmd.TargetID]
	if src == nil || dst == nil {
		return nil, model.NewValidationError(model.CodeMissingTarget, "unknown share participant")
	}

	now := time.Now()
	g.State.Private.CardShares = append(g.State.Private.CardShares, model.CardShare{
		Round: g.State.Round, FromID: src.ID, ToID: dst.ID, Kind: kind, SharedAt: now,
	})

	evType := model.EventCardShared
	if kind == "color" {
		evType = model.EventColorShared
	}

	for _, pair := range [][2]*model.Player{{src, dst}, {dst, src}} {
		viewer, subject := pair[0], pair[1]
		payload := map[string]any{
			"from_id": subject.ID,
			"kind":    kind,
		}
		var learned string
		if kind == "card" {
			payload["character_id"] = subject.CurrentRole
			learned = subject.CurrentRole
		} else {
			team := c.apparentTeam(subject)
			payload["team"] = team
			learned = string(team)
		}
		viewer.KnownInfo = append(viewer.KnownInfo, model.KnownInfo{
			SourceID: subject.ID, Kind: kind, Value: learned,
			Round: g.State.Round, LearnedAt: now,
		})
		g.Journal.Publish(evType, model.PlayerScope(viewer.ID), payload)
	}
	g.Touch()

	for _, eff := range c.abilities.OnTrigger(g, model.TriggerCardShare, src.ID, dst.ID) {
		c.rounds.ApplyEffect(g, eff)
	}
	return &Result{}, nil
}

// privateReveal shows the initiator's card to the target, one-way.
func (c *Controller) privateReveal(g *model.Game, cmd model.Command) (*Result, error) {
	src := g.Players[cmd.PlayerID]
	dst := g.Players[cmd.TargetID]
	if src == nil || dst == nil {
		return nil, model.NewValidationError(model.CodeMissingTarget, "unknown reveal participant")
	}
	dst.KnownInfo = append(dst.KnownInfo, model.KnownInfo{
		SourceID: src.ID, Kind: "card", Value: src.CurrentRole,
		Round: g.State.Round, LearnedAt: time.Now(),
	})
	g.Touch()
	g.Journal.Publish(model.EventPrivateReveal, model.PlayerScope(dst.ID), map[string]any{
		"from_id":      src.ID,
		"character_id": src.CurrentRole,
	})

	for _, eff := range c.abilities.OnTrigger(g, model.TriggerReveal, src.ID, dst.ID) {
		c.rounds.ApplyEffect(g, eff)
	}
	return &Result{}, nil
}

// publicReveal announces the initiator's team colour to their room. The
// character id itself never rides a room-scoped event.
func (c *Controller) publicReveal(g *model.Game, cmd model.Command) (*Result, error) {
	src := g.Players[cmd.PlayerID]
	roomID, ok := g.RoomOf(cmd.PlayerID)
	if !ok {
		return nil, model.NewValidationError(model.CodeWrongRoom, "you are not assigned to a room")
	}
	g.Touch()
	g.Journal.Publish(model.EventPublicReveal, model.RoomScope(roomID), map[string]any{
		"player_id": src.ID,
		"team":      c.apparentTeam(src),
	})
	return &Result{}, nil
}

// activateAbility fires a named ability on the player's character.
func (c *Controller) activateAbility(g *model.Game, cmd model.Command) (*Result, error) {
	p := g.Players[cmd.PlayerID]
	if p == nil {
		return nil, model.NewValidationError(model.CodeUnauthorized, "unknown player")
	}
	ch, err := c.catalog.ByID(p.CurrentRole)
	if err != nil {
		return nil, model.NewValidationError(model.CodeInvalidState, "no character assigned")
	}
	var found *model.Ability
	for i := range ch.Abilities {
		if ch.Abilities[i].ID == cmd.AbilityID {
			found = &ch.Abilities[i]
			break
		}
	}
	if found == nil {
		return nil, model.NewValidationError(model.CodeMissingTarget,
			"your character has no ability "+cmd.AbilityID)
	}

	target := ""
	if len(cmd.Targets) > 0 {
		target = cmd.Targets[0]
	}
	effects := c.abilities.OnTrigger(g, found.Trigger, cmd.PlayerID, target)
	for _, eff := range effects {
		c.rounds.ApplyEffect(g, eff)
	}
	return &Result{Payload: map[string]any{"effects_applied": len(effects)}}, nil
}

// HandleDisconnect marks a player's transport as dropped without
// touching phase. The player stays in RECONNECTING until a new socket
// attaches; LEAVE_GAME is the only explicit exit.
func (c *Controller) HandleDisconnect(gameID, playerID string) {
	g, err := c.store.Get(gameID)
	if err != nil {
		return
	}
	g.Lock()
	defer g.Unlock()
	p := g.Players[playerID]
	if p == nil {
		return
	}
	p.Status = model.ConnReconnecting
	p.LastSeen = time.Now()
	g.Touch()
	g.Journal.Publish(model.EventPlayerDisconnected, model.ScopePublic, map[string]any{
		"player_id": playerID,
	})
	if p.IsLeader {
		if roomID, ok := g.RoomOf(playerID); ok {
			g.Journal.Publish(model.EventLeaderDisconnected, model.RoomScope(roomID), map[string]any{
				"leader_id": playerID,
			})
		}
	}
}

// HandleReconnect binds a new transport token to the existing player.
// The transport performs journal replay through its subscription.
func (c *Controller) HandleReconnect(gameID, playerID, connToken string) error {
	g, err := c.store.Get(gameID)
	if err != nil {
		return err
	}
	g.Lock()
	defer g.Unlock()
	p := g.Players[playerID]
	if p == nil {
		return model.NewValidationError(model.CodeUnauthorized, "unknown player")
	}
	wasDisconnected := p.Status != model.ConnConnected
	p.Status = model.ConnConnected
	p.ConnToken = connToken
	p.LastSeen = time.Now()
	g.Touch()
	if wasDisconnected {
		g.Journal.Publish(model.EventPlayerReconnected, model.ScopePublic, map[string]any{
			"player_id": playerID,
		})
	}
	return nil
}

// PublicSnapshot assembles the observer-safe view of a game.
func (c *Controller) PublicSnapshot(g *model.Game) map[string]any {
	g.Lock()
	defer g.Unlock()
	return c.publicSnapshotLocked(g)
}

func (c *Controller) publicSnapshotLocked(g *model.Game) map[string]any {
	return map[string]any{
		"code":              g.Code,
		"version":           g.Version,
		"phase":             g.State.Phase,
		"round":             g.State.Round,
		"total_rounds":      g.Config.TotalRounds,
		"room_assignments":  g.State.RoomAssignments,
		"leaders":           g.Leaders(),
		"timer":             c.rounds.TimerView(g),
		"paused":            g.State.Paused,
		"pause_reason":      g.State.PauseReason,
		"hostage_selection": g.State.HostageSelection,
		"parlay_active":     g.State.ParlayActive,
		"players":           g.Roster(),
	}
}

// writeThrough pushes the public snapshot to the optional snapshot
// store. Best effort: failures are logged, never surfaced.
func (c *Controller) writeThrough(ctx context.Context, g *model.Game) {
	if c.snapshots == nil {
		return
	}
	snap, err := json.Marshal(c.publicSnapshotLocked(g))
	if err != nil {
		log.Error().Err(err).Str("gameId", g.ID).Msg("Failed to marshal snapshot")
		return
	}
	if err := c.snapshots.SaveSnapshot(ctx, g.ID, g.Code, snap); err != nil {
		log.Warn().Err(err).Str("gameId", g.ID).Msg("Snapshot write-through failed")
	}
}

// apparentTeam is the team colour a player shows during colour shares and
// public reveals. Characters with a masquerade ability show the team named
// in its params instead of their true colour.
func (c *Controller) apparentTeam(p *model.Player) model.Team {
	ch, err := c.catalog.ByID(p.CurrentRole)
	if err != nil {
		return ""
	}
	for _, ab := range ch.Abilities {
		if ab.Effect == "masquerade" && ab.Trigger == model.TriggerReveal {
			if as, ok := ab.Params["as_team"].(string); ok && model.Team(as).Valid() {
				return model.Team(as)
			}
		}
	}
	return ch.Team
}

// cryptoShuffle is Fisher–Yates with a crypto/rand uniform draw per swap.
func cryptoShuffle(items []string) error {
	for i := len(items) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return err
		}
		j := n.Int64()
		items[i], items[j] = items[j], items[i]
	}
	return nil
}
