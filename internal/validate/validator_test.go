package validate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/freeeve/tworooms/internal/catalog"
	"github.com/freeeve/tworooms/internal/model"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	cat, err := catalog.New(catalog.Builtin())
	if err != nil {
		t.Fatal(err)
	}
	return New(cat)
}

func lobbyGame(n int) *model.Game {
	g := model.NewGame("g1", "ABCDEF")
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("p%02d", i)
		g.Players[id] = &model.Player{ID: id, Name: "player " + id}
	}
	g.State.Private.HostID = "p00"
	return g
}

func codeOf(t *testing.T, err error) model.ErrorCode {
	t.Helper()
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return verr.Code
}

func TestLockRoomPlayerBounds(t *testing.T) {
	v := newValidator(t)

	g := lobbyGame(5)
	_, err := v.Validate(g, model.Command{Type: model.CmdLockRoom, PlayerID: "p00"})
	if codeOf(t, err) != model.CodeInsufficientPlayers {
		t.Errorf("5 players: got %v", err)
	}

	g = lobbyGame(31)
	_, err = v.Validate(g, model.Command{Type: model.CmdLockRoom, PlayerID: "p00"})
	if codeOf(t, err) != model.CodeTooManyPlayers {
		t.Errorf("31 players: got %v", err)
	}

	g = lobbyGame(6)
	if _, err := v.Validate(g, model.Command{Type: model.CmdLockRoom, PlayerID: "p00"}); err != nil {
		t.Errorf("6 players should lock: %v", err)
	}
}

func TestHostOnlyCommands(t *testing.T) {
	v := newValidator(t)
	g := lobbyGame(6)

	_, err := v.Validate(g, model.Command{Type: model.CmdLockRoom, PlayerID: "p01"})
	if codeOf(t, err) != model.CodeUnauthorized {
		t.Errorf("non-host lock: got %v", err)
	}
}

func TestPhaseGating(t *testing.T) {
	v := newValidator(t)
	g := lobbyGame(6)
	g.State.Phase = model.PhaseRound

	_, err := v.Validate(g, model.Command{Type: model.CmdJoinGame, PlayerName: "late"})
	if codeOf(t, err) != model.CodeInvalidState {
		t.Errorf("join during round: got %v", err)
	}
}

func TestJoinNameTaken(t *testing.T) {
	v := newValidator(t)
	g := lobbyGame(6)

	_, err := v.Validate(g, model.Command{Type: model.CmdJoinGame, PlayerName: "player p03"})
	if codeOf(t, err) != model.CodeNameTaken {
		t.Errorf("duplicate name: got %v", err)
	}
	if _, err := v.Validate(g, model.Command{Type: model.CmdJoinGame, PlayerName: "fresh"}); err != nil {
		t.Errorf("fresh name should pass: %v", err)
	}
}

func TestSetRoundsChoices(t *testing.T) {
	v := newValidator(t)
	g := lobbyGame(6)
	g.State.Phase = model.PhaseLocked

	for _, n := range []int{3, 5} {
		if _, err := v.Validate(g, model.Command{Type: model.CmdSetRounds, PlayerID: "p00", TotalRounds: n}); err != nil {
			t.Errorf("%d rounds should pass: %v", n, err)
		}
	}
	_, err := v.Validate(g, model.Command{Type: model.CmdSetRounds, PlayerID: "p00", TotalRounds: 4})
	if codeOf(t, err) != model.CodeInvalidState {
		t.Errorf("4 rounds: got %v", err)
	}
}

// baseDeck returns a legal 6-player deck built around both primaries.
func baseDeck() []string {
	return []string{"president", "bomber", "blue-team", "red-team", "doctor", "engineer"}
}

func TestCheckDeckSizeMismatch(t *testing.T) {
	v := newValidator(t)
	_, err := v.CheckDeck(baseDeck(), 7, false)
	if codeOf(t, err) != model.CodeRoleCountMismatch {
		t.Errorf("got %v", err)
	}
	if _, err := v.CheckDeck(baseDeck(), 5, true); err != nil {
		t.Errorf("bury card allows one extra: %v", err)
	}
}

func TestCheckDeckRequiresPrimaries(t *testing.T) {
	v := newValidator(t)
	deck := []string{"blue-team", "red-team", "doctor", "engineer", "gambler", "survivor"}
	_, err := v.CheckDeck(deck, 6, false)
	if codeOf(t, err) != model.CodeMissingDependency {
		t.Errorf("deck without primaries: got %v", err)
	}
}

func TestCheckDeckDependencies(t *testing.T) {
	v := newValidator(t)
	deck := []string{"president", "bomber", "vice-president", "red-team", "doctor", "engineer"}
	if _, err := v.CheckDeck(deck, 6, false); err != nil {
		t.Errorf("vice-president with president should pass: %v", err)
	}
}

func TestCheckDeckMutuallyExclusive(t *testing.T) {
	v := newValidator(t)
	deck := []string{"president", "bomber", "spy-blue", "spy-red", "doctor", "engineer"}
	_, err := v.CheckDeck(deck, 6, false)
	if codeOf(t, err) != model.CodeMutuallyExclusive {
		t.Errorf("both spies: got %v", err)
	}
}

func TestCheckDeckTeamImbalanceWarns(t *testing.T) {
	v := newValidator(t)
	deck := []string{"president", "bomber", "blue-team", "doctor", "vice-president", "spy-blue"}
	warnings, err := v.CheckDeck(deck, 6, false)
	if err != nil {
		t.Fatalf("imbalance is a warning, not an error: %v", err)
	}
	if len(warnings.Warnings()) != 1 || warnings[0].Code != model.CodeTeamImbalance {
		t.Errorf("expected a TEAM_IMBALANCE warning, got %v", warnings)
	}
}

func TestLeaderOnlyHostageCommands(t *testing.T) {
	v := newValidator(t)
	g := lobbyGame(6)
	g.State.Phase = model.PhaseRound
	g.State.Round = 1
	g.State.HostageSelection = true
	room := g.Room(model.RoomA)
	room.Members = []string{"p00", "p01", "p02"}
	room.LeaderID = "p01"
	for _, id := range room.Members {
		g.State.RoomAssignments[id] = model.RoomA
	}

	_, err := v.Validate(g, model.Command{
		Type: model.CmdSelectHostage, PlayerID: "p02", RoomID: model.RoomA, TargetID: "p00",
	})
	if codeOf(t, err) != model.CodeNotLeader {
		t.Errorf("non-leader select: got %v", err)
	}

	_, err = v.Validate(g, model.Command{
		Type: model.CmdSelectHostage, PlayerID: "p01", RoomID: model.RoomA, TargetID: "p01",
	})
	if codeOf(t, err) != model.CodeMissingTarget {
		t.Errorf("leader as own hostage: got %v", err)
	}

	if _, err := v.Validate(g, model.Command{
		Type: model.CmdSelectHostage, PlayerID: "p01", RoomID: model.RoomA, TargetID: "p02",
	}); err != nil {
		t.Errorf("valid selection failed: %v", err)
	}
}

func TestHostageCommandsRequireOpenSelection(t *testing.T) {
	v := newValidator(t)
	g := lobbyGame(6)
	g.State.Phase = model.PhaseRound
	g.State.Round = 1
	room := g.Room(model.RoomA)
	room.Members = []string{"p00", "p01", "p02"}
	room.LeaderID = "p01"
	room.HostageCandidates = []string{"p02"}

	_, err := v.Validate(g, model.Command{
		Type: model.CmdSelectHostage, PlayerID: "p01", RoomID: model.RoomA, TargetID: "p02",
	})
	if codeOf(t, err) != model.CodeInvalidState {
		t.Errorf("select with timer running: got %v", err)
	}

	_, err = v.Validate(g, model.Command{
		Type: model.CmdLockHostages, PlayerID: "p01", RoomID: model.RoomA,
	})
	if codeOf(t, err) != model.CodeInvalidState {
		t.Errorf("lock with timer running: got %v", err)
	}

	g.State.HostageSelection = true
	if _, err := v.Validate(g, model.Command{
		Type: model.CmdSelectHostage, PlayerID: "p01", RoomID: model.RoomA, TargetID: "p02",
	}); err != nil {
		t.Errorf("select after expiry should pass: %v", err)
	}
}

func TestActivateAbilityRequiresKnownPlayer(t *testing.T) {
	v := newValidator(t)
	g := lobbyGame(6)
	g.State.Phase = model.PhaseRound

	_, err := v.Validate(g, model.Command{
		Type: model.CmdActivateAbility, PlayerID: "ghost", AbilityID: "swap",
	})
	if codeOf(t, err) != model.CodeUnauthorized {
		t.Errorf("unknown player: got %v", err)
	}
	if _, err := v.Validate(g, model.Command{
		Type: model.CmdActivateAbility, PlayerID: "p02", AbilityID: "swap",
	}); err != nil {
		t.Errorf("known player should pass validation: %v", err)
	}
}

func TestInitiateRevoteRules(t *testing.T) {
	v := newValidator(t)
	g := lobbyGame(6)
	g.State.Phase = model.PhaseRound
	room := g.Room(model.RoomA)
	room.Members = []string{"p00", "p01", "p02"}
	room.LeaderID = "p01"

	g.State.Round = 1
	_, err := v.Validate(g, model.Command{
		Type: model.CmdInitiateNewLeaderVote, PlayerID: "p02", RoomID: model.RoomA,
	})
	if codeOf(t, err) != model.CodeInvalidState {
		t.Errorf("round 1 re-vote: got %v", err)
	}

	g.State.Round = 2
	if _, err := v.Validate(g, model.Command{
		Type: model.CmdInitiateNewLeaderVote, PlayerID: "p02", RoomID: model.RoomA,
	}); err != nil {
		t.Errorf("round 2 re-vote should pass: %v", err)
	}

	room.LeaderVotingActive = true
	_, err = v.Validate(g, model.Command{
		Type: model.CmdInitiateNewLeaderVote, PlayerID: "p02", RoomID: model.RoomA,
	})
	if codeOf(t, err) != model.CodeVoteActive {
		t.Errorf("re-vote during vote: got %v", err)
	}
}

func TestShareTargetMustShareRoom(t *testing.T) {
	v := newValidator(t)
	g := lobbyGame(6)
	g.State.Phase = model.PhaseRound
	g.State.RoomAssignments["p00"] = model.RoomA
	g.State.RoomAssignments["p01"] = model.RoomB

	_, err := v.Validate(g, model.Command{
		Type: model.CmdCardShare, PlayerID: "p00", TargetID: "p01",
	})
	if codeOf(t, err) != model.CodeWrongRoom {
		t.Errorf("cross-room share: got %v", err)
	}

	g.State.RoomAssignments["p01"] = model.RoomA
	if _, err := v.Validate(g, model.Command{
		Type: model.CmdCardShare, PlayerID: "p00", TargetID: "p01",
	}); err != nil {
		t.Errorf("same-room share should pass: %v", err)
	}
}

func TestLockHostagesCountExact(t *testing.T) {
	v := newValidator(t)
	g := lobbyGame(12) // requires 2 hostages in round 1
	g.State.Phase = model.PhaseRound
	g.State.Round = 1
	g.State.HostageSelection = true
	room := g.Room(model.RoomA)
	room.Members = []string{"p00", "p01", "p02", "p03", "p04", "p05"}
	room.LeaderID = "p00"
	room.HostageCandidates = []string{"p01"}

	_, err := v.Validate(g, model.Command{
		Type: model.CmdLockHostages, PlayerID: "p00", RoomID: model.RoomA,
	})
	if codeOf(t, err) != model.CodeInvalidState {
		t.Errorf("short selection: got %v", err)
	}

	room.HostageCandidates = []string{"p01", "p02"}
	if _, err := v.Validate(g, model.Command{
		Type: model.CmdLockHostages, PlayerID: "p00", RoomID: model.RoomA,
	}); err != nil {
		t.Errorf("exact selection should pass: %v", err)
	}
}
