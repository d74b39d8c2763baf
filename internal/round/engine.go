// Package round owns per-game timers and the sub-lifecycle inside a
// round: leader elections, usurpation, hostage selection, parlay, and
// the hostage exchange. It is never called by clients directly; the
// controller invokes it with the game lock held, and timer expirations
// re-enter it as fresh locked units of work.
package round

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/tworooms/internal/ability"
	"github.com/freeeve/tworooms/internal/machine"
	"github.com/freeeve/tworooms/internal/model"
)

const (
	// DefaultParlayDuration is the bounded leader window before exchange.
	DefaultParlayDuration = 30 * time.Second

	tickInterval = 100 * time.Millisecond

	pauseReasonHostages   = "hostage selection phase"
	pauseReasonLeaderVote = "leader vote in progress"
	pauseReasonElections  = "waiting for leader elections"
)

// gameTimers holds the two timers the engine keeps per game.
type gameTimers struct {
	round  Timer
	parlay Timer
}

// Engine drives rounds for all games. Methods named after commands assume
// the caller holds the game lock; expiry handlers take it themselves.
type Engine struct {
	abilities ability.Engine

	// ParlayDuration is configurable for tests; zero means the default.
	ParlayDuration time.Duration

	// DisableScheduling stops the engine from spawning real tickers and
	// AfterFuncs. Tests drive expiry through ExpireRoundTimer and
	// ExpireParlayTimer instead.
	DisableScheduling bool

	mu     sync.Mutex
	timers map[string]*gameTimers
}

// NewEngine creates the round engine.
func NewEngine(abilities ability.Engine) *Engine {
	return &Engine{
		abilities: abilities,
		timers:    make(map[string]*gameTimers),
	}
}

func (e *Engine) gameTimers(gameID string) *gameTimers {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.timers[gameID]
	if !ok {
		t = &gameTimers{}
		e.timers[gameID] = t
	}
	return t
}

// Forget drops timer state for a finished game.
func (e *Engine) Forget(gameID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[gameID]; ok {
		t.round.Stop()
		t.parlay.Stop()
		delete(e.timers, gameID)
	}
}

// TimerView snapshots the round timer for public state.
func (e *Engine) TimerView(g *model.Game) model.TimerView {
	return e.gameTimers(g.ID).round.View(time.Now())
}

// roundDuration returns the configured duration for round k (1-based).
func roundDuration(g *model.Game, k int) time.Duration {
	if k >= 1 && k <= len(g.Config.RoundDurations) {
		return g.Config.RoundDurations[k-1]
	}
	return 3 * time.Minute
}

// StartRound begins round k: clears per-round state in both rooms,
// prepares or starts the round timer, and publishes ROUND_STARTED.
// Round 1 holds the timer paused until both rooms elect a leader.
func (e *Engine) StartRound(g *model.Game, k int) {
	g.State.Round = k
	g.State.HostageSelection = false
	for _, room := range g.State.Rooms {
		room.ResetRound()
	}

	t := e.gameTimers(g.ID)
	dur := roundDuration(g, k)
	now := time.Now()

	if k == 1 {
		for _, room := range g.State.Rooms {
			room.LeaderVotingActive = true
		}
		t.round.Prepare(dur)
		g.State.Paused = true
		g.State.PauseReason = pauseReasonElections
	} else {
		t.round.Start(dur, now)
		g.State.Paused = false
		g.State.PauseReason = ""
		e.spawnTicker(g)
	}
	g.Touch()

	g.Journal.Publish(model.EventRoundStarted, model.ScopePublic, map[string]any{
		"round":       k,
		"duration_ms": dur.Milliseconds(),
		"timer":       t.round.View(now),
	})
	log.Info().Str("gameId", g.ID).Int("round", k).Dur("duration", dur).Msg("Round started")

	for _, p := range g.SortedPlayers() {
		for _, eff := range e.abilities.OnTrigger(g, model.TriggerRoundStart, p.ID, "") {
			e.applyEffect(g, eff)
		}
	}
}

// spawnTicker runs the 100 ms tick loop for the running round timer,
// publishing TIMER_UPDATE roughly once per second and handling expiry.
func (e *Engine) spawnTicker(g *model.Game) {
	if e.DisableScheduling {
		return
	}
	t := e.gameTimers(g.ID)
	gen := t.round.Generation()

	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()

		lastSecond := int64(-1)
		for now := range ticker.C {
			g.Lock()
			if t.round.Generation() != gen || t.round.State() != model.TimerRunning {
				g.Unlock()
				return
			}
			rem := t.round.Remaining(now)
			if rem <= 0 {
				e.roundTimerExpired(g)
				g.Unlock()
				return
			}
			if sec := int64(rem / time.Second); sec != lastSecond {
				lastSecond = sec
				g.Journal.Publish(model.EventTimerUpdate, model.ScopePublic, t.round.View(now))
			}
			g.Unlock()
		}
	}()
}

// ExpireRoundTimer forces round-timer expiry. Used by tests in place of
// the real ticker; idempotent when the timer is not running.
func (e *Engine) ExpireRoundTimer(g *model.Game) {
	g.Lock()
	defer g.Unlock()
	if e.gameTimers(g.ID).round.State() != model.TimerRunning {
		return
	}
	e.roundTimerExpired(g)
}

// roundTimerExpired stops the round timer and opens hostage selection.
// Caller holds the game lock.
func (e *Engine) roundTimerExpired(g *model.Game) {
	t := e.gameTimers(g.ID)
	t.round.Stop()
	g.State.Paused = true
	g.State.PauseReason = pauseReasonHostages
	g.State.HostageSelection = true
	g.Touch()
	g.Journal.Publish(model.EventGamePaused, model.ScopePublic, map[string]any{
		"reason": pauseReasonHostages,
		"round":  g.State.Round,
		"required_hostages": map[string]int{
			string(model.RoomA): model.HostageCount(len(g.Players), g.State.Round),
			string(model.RoomB): model.HostageCount(len(g.Players), g.State.Round),
		},
	})
	log.Info().Str("gameId", g.ID).Int("round", g.State.Round).Msg("Round timer expired, hostage selection open")
}

// CastLeaderVote records a vote. The poll resolves once every member has
// voted: a unique maximum elects; a third consecutive tie breaks randomly
// with a cryptographically strong pick; earlier ties clear the poll and
// surface a retryable TIED_VOTE to the last voter.
func (e *Engine) CastLeaderVote(g *model.Game, roomID model.RoomID, voterID, candidateID string) error {
	room := g.Room(roomID)
	if !room.LeaderVotingActive {
		return model.NewValidationError(model.CodeVoteNotActive,
			"no leader vote is in progress").
			WithSuggestion("initiate a new leader vote first")
	}

	room.LeaderVotes[voterID] = candidateID
	g.Touch()
	g.Journal.Publish(model.EventVoteCast, model.RoomScope(roomID), map[string]any{
		"voter_id":     voterID,
		"candidate_id": candidateID,
		"votes":        len(room.LeaderVotes),
		"room_size":    len(room.Members),
	})

	if len(room.LeaderVotes) < len(room.Members) {
		return nil
	}

	tally := make(map[string]int)
	for _, candidate := range room.LeaderVotes {
		tally[candidate]++
	}
	max := 0
	for _, n := range tally {
		if n > max {
			max = n
		}
	}
	var winners []string
	for candidate, n := range tally {
		if n == max {
			winners = append(winners, candidate)
		}
	}
	sort.Strings(winners)

	if len(winners) == 1 {
		e.elect(g, roomID, winners[0], "MAJORITY", 0)
		return nil
	}

	room.LeaderVotingTieCount++
	if room.LeaderVotingTieCount >= 3 {
		picked, err := cryptoPick(winners)
		if err != nil {
			return fmt.Errorf("random tie break: %w", err)
		}
		e.elect(g, roomID, picked, "RANDOM_SELECTION", room.LeaderVotingTieCount)
		return nil
	}

	tieCount := room.LeaderVotingTieCount
	room.LeaderVotes = make(map[string]string)
	g.Touch()
	g.Journal.Publish(model.EventVoteTied, model.RoomScope(roomID), map[string]any{
		"tie_count": tieCount,
		"tied":      winners,
	})
	return model.NewValidationError(model.CodeTiedVote, "leader vote tied, vote again").
		WithContext("tie_count", tieCount).
		WithContext("tied", winners)
}

// elect installs a new leader and performs the round-1 ignition and
// round>1 resume cascades in the same atomic version bump.
func (e *Engine) elect(g *model.Game, roomID model.RoomID, leaderID, method string, tieCount int) {
	room := g.Room(roomID)
	if prev := g.Players[room.LeaderID]; prev != nil {
		prev.IsLeader = false
		prev.CanBeHostage = true
	}
	leader := g.Players[leaderID]
	leader.IsLeader = true
	leader.CanBeHostage = false
	room.LeaderID = leaderID
	room.LeaderVotes = make(map[string]string)
	room.LeaderVotingTieCount = 0
	room.LeaderVotingActive = false
	g.Touch()

	payload := map[string]any{
		"leader_id": leaderID,
		"method":    method,
	}
	if tieCount > 0 {
		payload["tie_count"] = tieCount
	}
	g.Journal.Publish(model.EventLeaderElected, model.RoomScope(roomID), payload)
	log.Info().Str("gameId", g.ID).Str("room", string(roomID)).
		Str("leaderId", leaderID).Str("method", method).Msg("Leader elected")

	t := e.gameTimers(g.ID)
	now := time.Now()

	if g.State.Round == 1 && t.round.State() == model.TimerPaused {
		if g.Room(model.RoomA).LeaderID != "" && g.Room(model.RoomB).LeaderID != "" {
			t.round.Ignite(now)
			g.State.Paused = false
			g.State.PauseReason = ""
			g.Journal.Publish(model.EventGameResumed, model.ScopePublic, map[string]any{
				"reason": "both leaders elected",
				"timer":  t.round.View(now),
			})
			e.spawnTicker(g)
		}
		return
	}

	if g.State.Round > 1 && t.round.State() == model.TimerPaused && g.State.PauseReason == pauseReasonLeaderVote {
		// Resume only when no other room is still mid-vote.
		for _, other := range g.State.Rooms {
			if other.LeaderVotingActive {
				return
			}
		}
		t.round.Resume(now)
		g.State.Paused = false
		g.State.PauseReason = ""
		g.Journal.Publish(model.EventGameResumed, model.ScopePublic, map[string]any{
			"reason": "leader elected",
			"timer":  t.round.View(now),
		})
		e.spawnTicker(g)
	}
}

// InitiateNewLeaderVote opens a re-vote in a room during rounds > 1. A
// running round timer pauses for the vote's duration; a timer already
// expired for hostage selection keeps its pause state.
func (e *Engine) InitiateNewLeaderVote(g *model.Game, roomID model.RoomID, playerID string) {
	room := g.Room(roomID)
	t := e.gameTimers(g.ID)
	if t.round.State() == model.TimerRunning {
		t.round.Pause(time.Now())
		g.State.Paused = true
		g.State.PauseReason = pauseReasonLeaderVote
	}

	room.LeaderVotingActive = true
	room.LeaderVotes = make(map[string]string)
	room.LeaderVotingTieCount = 0
	g.Touch()

	g.Journal.Publish(model.EventLeaderVoteStarted, model.RoomScope(roomID), map[string]any{
		"initiated_by": playerID,
	})
}

// VoteUsurp counts a usurpation vote; reaching floor(roomSize/2)+1 votes
// for one candidate replaces the leader outside the normal election.
func (e *Engine) VoteUsurp(g *model.Game, roomID model.RoomID, voterID, candidateID string) {
	room := g.Room(roomID)
	room.LeaderVotes[voterID] = candidateID
	g.Touch()
	g.Journal.Publish(model.EventVoteCast, model.RoomScope(roomID), map[string]any{
		"voter_id":     voterID,
		"candidate_id": candidateID,
		"kind":         "usurp",
	})

	votes := 0
	for _, c := range room.LeaderVotes {
		if c == candidateID {
			votes++
		}
	}
	threshold := len(room.Members)/2 + 1
	if votes < threshold {
		return
	}

	if prev := g.Players[room.LeaderID]; prev != nil {
		prev.IsLeader = false
		prev.CanBeHostage = true
	}
	usurper := g.Players[candidateID]
	usurper.IsLeader = true
	usurper.CanBeHostage = false
	usurper.UsurpedLeaders++
	room.LeaderID = candidateID
	room.LeaderVotes = make(map[string]string)
	room.LeaderVotingTieCount = 0
	priv := &g.State.Private
	priv.Usurpations[g.State.Round] = append(priv.Usurpations[g.State.Round], candidateID)
	g.Touch()

	g.Journal.Publish(model.EventLeaderUsurped, model.RoomScope(roomID), map[string]any{
		"leader_id": candidateID,
		"votes":     votes,
		"threshold": threshold,
	})
	log.Info().Str("gameId", g.ID).Str("room", string(roomID)).
		Str("leaderId", candidateID).Msg("Leader usurped")
}

// Abdicate transfers leadership immediately to a successor in the room.
func (e *Engine) Abdicate(g *model.Game, roomID model.RoomID, leaderID, successorID string) {
	room := g.Room(roomID)
	old := g.Players[leaderID]
	old.IsLeader = false
	old.CanBeHostage = true
	succ := g.Players[successorID]
	succ.IsLeader = true
	succ.CanBeHostage = false
	room.LeaderID = successorID
	g.Touch()

	g.Journal.Publish(model.EventLeaderAbdicated, model.RoomScope(roomID), map[string]any{
		"from_id": leaderID,
		"to_id":   successorID,
	})
}

// SelectHostage toggles a candidate. Selecting an already selected player
// removes them; adding past the required count fails with limit-reached.
func (e *Engine) SelectHostage(g *model.Game, roomID model.RoomID, targetID string) error {
	room := g.Room(roomID)
	required := model.HostageCount(len(g.Players), g.State.Round)

	for i, id := range room.HostageCandidates {
		if id == targetID {
			room.HostageCandidates = append(room.HostageCandidates[:i], room.HostageCandidates[i+1:]...)
			g.Touch()
			g.Journal.Publish(model.EventHostageSelected, model.RoomScope(roomID), map[string]any{
				"player_id": targetID,
				"selected":  false,
				"current":   len(room.HostageCandidates),
				"required":  required,
			})
			return nil
		}
	}

	if len(room.HostageCandidates) >= required {
		return model.NewValidationError(model.CodeHostageLimitReached,
			fmt.Sprintf("already selected %d of %d hostages", len(room.HostageCandidates), required)).
			WithSuggestion("deselect a hostage first")
	}

	room.HostageCandidates = append(room.HostageCandidates, targetID)
	g.Touch()
	g.Journal.Publish(model.EventHostageSelected, model.RoomScope(roomID), map[string]any{
		"player_id": targetID,
		"selected":  true,
		"current":   len(room.HostageCandidates),
		"required":  required,
	})
	return nil
}

// LockHostages locks a room's selection; when both rooms are locked the
// parlay begins automatically.
func (e *Engine) LockHostages(g *model.Game, roomID model.RoomID) {
	room := g.Room(roomID)
	room.HostagesLocked = true
	g.Touch()
	g.Journal.Publish(model.EventHostagesLocked, model.RoomScope(roomID), map[string]any{
		"hostages": append([]string(nil), room.HostageCandidates...),
	})

	if g.Room(model.RoomA).HostagesLocked && g.Room(model.RoomB).HostagesLocked {
		e.startParlay(g)
	}
}

// startParlay opens the 30-second leader window whose expiry performs
// the exchange. Caller holds the game lock.
func (e *Engine) startParlay(g *model.Game) {
	dur := e.ParlayDuration
	if dur <= 0 {
		dur = DefaultParlayDuration
	}
	t := e.gameTimers(g.ID)
	t.round.Stop()
	t.parlay.Start(dur, time.Now())
	g.State.HostageSelection = false
	g.State.ParlayActive = true
	g.Touch()

	g.Journal.Publish(model.EventParlayStarted, model.ScopePublic, map[string]any{
		"leader_a":    g.Room(model.RoomA).LeaderID,
		"leader_b":    g.Room(model.RoomB).LeaderID,
		"duration_ms": dur.Milliseconds(),
	})
	log.Info().Str("gameId", g.ID).Dur("duration", dur).Msg("Parlay started")

	if e.DisableScheduling {
		return
	}
	gen := t.parlay.Generation()
	time.AfterFunc(dur, func() {
		g.Lock()
		defer g.Unlock()
		if t.parlay.Generation() != gen || t.parlay.State() != model.TimerRunning {
			return
		}
		e.parlayExpired(g)
	})
}

// ExpireParlayTimer forces parlay expiry. Used by tests in place of the
// real AfterFunc; idempotent when the parlay is not running.
func (e *Engine) ExpireParlayTimer(g *model.Game) {
	g.Lock()
	defer g.Unlock()
	if e.gameTimers(g.ID).parlay.State() != model.TimerRunning {
		return
	}
	e.parlayExpired(g)
}

// parlayExpired performs the hostage exchange and ends the round.
// Caller holds the game lock.
func (e *Engine) parlayExpired(g *model.Game) {
	t := e.gameTimers(g.ID)
	t.parlay.Stop()
	g.State.ParlayActive = false
	g.Touch()
	g.Journal.Publish(model.EventParlayEnded, model.ScopePublic, nil)

	roomA := g.Room(model.RoomA)
	roomB := g.Room(model.RoomB)
	fromA := append([]string(nil), roomA.HostageCandidates...)
	fromB := append([]string(nil), roomB.HostageCandidates...)

	for _, id := range fromA {
		e.moveHostage(g, id, model.RoomB)
	}
	for _, id := range fromB {
		e.moveHostage(g, id, model.RoomA)
	}

	roomA.HostageCandidates = nil
	roomA.HostagesLocked = false
	roomB.HostageCandidates = nil
	roomB.HostagesLocked = false
	g.State.Paused = false
	g.State.PauseReason = ""
	g.Touch()

	g.Journal.Publish(model.EventHostagesExchanged, model.ScopePublic, map[string]any{
		"sent_to_b": fromA,
		"sent_to_a": fromB,
	})
	log.Info().Str("gameId", g.ID).Int("round", g.State.Round).
		Strs("sentToB", fromA).Strs("sentToA", fromB).Msg("Hostages exchanged")

	e.endRound(g, "HOSTAGES_EXCHANGED")
}

// moveHostage relocates one player to the destination room, updating the
// membership lists and the public room-assignment map.
func (e *Engine) moveHostage(g *model.Game, playerID string, dst model.RoomID) {
	p := g.Players[playerID]
	if p == nil {
		return
	}
	g.Room(dst.Other()).RemoveMember(playerID)
	g.Room(dst).Members = append(g.Room(dst).Members, playerID)
	p.CurrentRoom = dst
	p.WasSentAsHostage = true
	g.State.RoomAssignments[playerID] = dst

	for _, eff := range e.abilities.OnTrigger(g, model.TriggerBecomeHostage, playerID, "") {
		e.applyEffect(g, eff)
	}
}

// endRound publishes ROUND_ENDED and requests the round_complete
// transition, then either starts the next round or resolves the game.
func (e *Engine) endRound(g *model.Game, reason string) {
	g.Journal.Publish(model.EventRoundEnded, model.ScopePublic, map[string]any{
		"round":  g.State.Round,
		"reason": reason,
	})

	for _, p := range g.SortedPlayers() {
		for _, eff := range e.abilities.OnTrigger(g, model.TriggerRoundEnd, p.ID, "") {
			e.applyEffect(g, eff)
		}
	}

	tr, err := machine.Next(g, model.TriggerRoundComplete)
	if err != nil {
		log.Error().Err(err).Str("gameId", g.ID).Msg("Round completion transition denied")
		return
	}
	machine.Apply(g, tr)

	if tr.To == model.PhaseRound {
		e.StartRound(g, tr.NextRound)
		return
	}
	e.resolve(g)
}

// InstantWin short-circuits an active round into resolution for a team.
// Raised by ability effects through the controller.
func (e *Engine) InstantWin(g *model.Game, team model.Team) error {
	tr, err := machine.Next(g, model.TriggerInstantWin)
	if err != nil {
		return err
	}
	e.gameTimers(g.ID).round.Stop()
	e.gameTimers(g.ID).parlay.Stop()
	machine.Apply(g, tr)
	g.State.Winner = team
	e.finish(g, ability.Outcome{Winner: team})
	return nil
}

// resolve evaluates win conditions and finishes the game.
func (e *Engine) resolve(g *model.Game) {
	outcome := e.abilities.Resolve(g)
	g.State.Winner = outcome.Winner
	e.finish(g, outcome)
}

func (e *Engine) finish(g *model.Game, outcome ability.Outcome) {
	tr, err := machine.Next(g, model.TriggerWinConditionsResolved)
	if err != nil {
		log.Error().Err(err).Str("gameId", g.ID).Msg("Finish transition denied")
		return
	}
	machine.Apply(g, tr)

	g.Journal.Publish(model.EventGameFinished, model.ScopePublic, map[string]any{
		"winner":            outcome.Winner,
		"character_winners": outcome.CharacterWinners,
	})
	log.Info().Str("gameId", g.ID).Str("winner", string(outcome.Winner)).Msg("Game finished")
	e.Forget(g.ID)
}

// ApplyEffect applies one ability effect. Caller holds the game lock.
func (e *Engine) ApplyEffect(g *model.Game, eff ability.Effect) {
	e.applyEffect(g, eff)
}

// applyEffect applies one ability effect under the game lock.
func (e *Engine) applyEffect(g *model.Game, eff ability.Effect) {
	switch eff.Kind {
	case ability.EffectApplyCondition:
		if p := g.Players[eff.PlayerID]; p != nil {
			p.Conditions = append(p.Conditions, eff.Condition)
			g.Touch()
			g.Journal.Publish(model.EventConditionSet, model.PlayerScope(eff.PlayerID), map[string]any{
				"condition": eff.Condition,
				"applied":   true,
			})
		}
	case ability.EffectRemoveCondition:
		if p := g.Players[eff.PlayerID]; p != nil {
			for i, c := range p.Conditions {
				if c == eff.Condition {
					p.Conditions = append(p.Conditions[:i], p.Conditions[i+1:]...)
					break
				}
			}
			g.Touch()
			g.Journal.Publish(model.EventConditionSet, model.PlayerScope(eff.PlayerID), map[string]any{
				"condition": eff.Condition,
				"applied":   false,
			})
		}
	case ability.EffectSwapCard:
		a, b := g.Players[eff.PlayerID], g.Players[eff.TargetID]
		if a != nil && b != nil {
			a.CurrentRole, b.CurrentRole = b.CurrentRole, a.CurrentRole
			g.State.Private.RoleAssignments[a.ID] = a.CurrentRole
			g.State.Private.RoleAssignments[b.ID] = b.CurrentRole
			g.Touch()
			g.Journal.Publish(model.EventRoleAssigned, model.PlayerScope(a.ID), map[string]any{"character_id": a.CurrentRole})
			g.Journal.Publish(model.EventRoleAssigned, model.PlayerScope(b.ID), map[string]any{"character_id": b.CurrentRole})
		}
	case ability.EffectEndRound:
		e.endRound(g, "ABILITY")
	case ability.EffectInstantWin:
		if err := e.InstantWin(g, eff.Team); err != nil {
			log.Warn().Err(err).Str("gameId", g.ID).Msg("Instant win effect ignored")
		}
	}
}

// cryptoPick selects uniformly from the candidates with crypto/rand.
func cryptoPick(candidates []string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(candidates))))
	if err != nil {
		return "", err
	}
	return candidates[n.Int64()], nil
}
