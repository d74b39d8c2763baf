package machine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/freeeve/tworooms/internal/model"
)

func gameWithPlayers(n int) *model.Game {
	g := model.NewGame("g1", "ABCDEF")
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("p%02d", i)
		g.Players[id] = &model.Player{ID: id, Name: id}
	}
	return g
}

func TestLockRoomPlayerBounds(t *testing.T) {
	tests := []struct {
		players int
		wantOK  bool
	}{
		{5, false},
		{6, true},
		{30, true},
		{31, false},
	}
	for _, tt := range tests {
		g := gameWithPlayers(tt.players)
		_, err := Next(g, model.TriggerLockRoom)
		if tt.wantOK && err != nil {
			t.Errorf("%d players: unexpected denial %v", tt.players, err)
		}
		if !tt.wantOK && err == nil {
			t.Errorf("%d players: lock should be denied", tt.players)
		}
	}
}

func TestLockRoomDenialIsTyped(t *testing.T) {
	g := gameWithPlayers(5)
	_, err := Next(g, model.TriggerLockRoom)
	var denial *Denial
	if !errors.As(err, &denial) {
		t.Fatalf("expected *Denial, got %T", err)
	}
	if denial.From != model.PhaseLobby || denial.Trigger != model.TriggerLockRoom {
		t.Errorf("denial carries %s/%s", denial.From, denial.Trigger)
	}
}

func TestUnlockOnlyBeforeRoles(t *testing.T) {
	g := gameWithPlayers(6)
	g.State.Phase = model.PhaseLocked

	if _, err := Next(g, model.TriggerUnlockRoom); err != nil {
		t.Fatalf("unlock before roles should pass: %v", err)
	}

	g.State.Private.RoleAssignments["p00"] = "president"
	if _, err := Next(g, model.TriggerUnlockRoom); err == nil {
		t.Error("unlock after role assignment must be denied")
	}
}

func TestRolesDistributedRequiresAllRoles(t *testing.T) {
	g := gameWithPlayers(6)
	g.State.Phase = model.PhaseRoleDistribution
	if _, err := Next(g, model.TriggerRolesDistributed); err == nil {
		t.Fatal("should deny while players lack roles")
	}
	for _, p := range g.Players {
		p.CurrentRole = "blue-team"
	}
	tr, err := Next(g, model.TriggerRolesDistributed)
	if err != nil {
		t.Fatalf("all roles set: %v", err)
	}
	if tr.To != model.PhaseRoomAssignment {
		t.Errorf("to = %s, want %s", tr.To, model.PhaseRoomAssignment)
	}
}

func TestStartGameRequiresBalancedRooms(t *testing.T) {
	g := gameWithPlayers(7)
	g.State.Phase = model.PhaseRoomAssignment
	g.Room(model.RoomA).Members = []string{"p00", "p01", "p02"}
	g.Room(model.RoomB).Members = []string{"p03", "p04", "p05", "p06"}

	tr, err := Next(g, model.TriggerStartGame)
	if err != nil {
		t.Fatalf("size difference of 1 should pass: %v", err)
	}
	if tr.To != model.PhaseRound || tr.NextRound != 1 {
		t.Errorf("got %s round %d, want ROUND 1", tr.To, tr.NextRound)
	}

	g.Room(model.RoomA).Members = []string{"p00"}
	g.Room(model.RoomB).Members = []string{"p01", "p02", "p03", "p04", "p05", "p06"}
	if _, err := Next(g, model.TriggerStartGame); err == nil {
		t.Error("unbalanced rooms must deny start")
	}
}

func TestRoundCompleteAdvancesOrResolves(t *testing.T) {
	g := gameWithPlayers(6)
	g.State.Phase = model.PhaseRound
	g.State.Round = 1
	g.Config.TotalRounds = 3

	tr, err := Next(g, model.TriggerRoundComplete)
	if err != nil {
		t.Fatal(err)
	}
	if tr.To != model.PhaseRound || tr.NextRound != 2 {
		t.Errorf("round 1 complete should go to round 2, got %s/%d", tr.To, tr.NextRound)
	}

	g.State.Round = 3
	tr, err = Next(g, model.TriggerRoundComplete)
	if err != nil {
		t.Fatal(err)
	}
	if tr.To != model.PhaseResolution {
		t.Errorf("final round should resolve, got %s", tr.To)
	}
}

func TestRoundCompleteBlockedByPendingHostages(t *testing.T) {
	g := gameWithPlayers(6)
	g.State.Phase = model.PhaseRound
	g.State.Round = 1
	g.Room(model.RoomA).HostageCandidates = []string{"p00"}
	if _, err := Next(g, model.TriggerRoundComplete); err == nil {
		t.Error("pending candidates must block round completion")
	}

	g.Room(model.RoomA).HostageCandidates = nil
	g.Room(model.RoomB).HostagesLocked = true
	if _, err := Next(g, model.TriggerRoundComplete); err == nil {
		t.Error("locked room must block round completion")
	}
}

func TestInstantWinOnlyDuringRound(t *testing.T) {
	g := gameWithPlayers(6)
	g.State.Phase = model.PhaseRound
	if _, err := Next(g, model.TriggerInstantWin); err != nil {
		t.Errorf("instant win during round: %v", err)
	}
	g.State.Phase = model.PhaseLobby
	if _, err := Next(g, model.TriggerInstantWin); err == nil {
		t.Error("instant win outside a round must be denied")
	}
}

func TestApplyMutatesAndPublishes(t *testing.T) {
	g := gameWithPlayers(6)
	j := &stubJournal{}
	g.Journal = j
	v := g.Version

	tr, err := Next(g, model.TriggerLockRoom)
	if err != nil {
		t.Fatal(err)
	}
	Apply(g, tr)

	if g.State.Phase != model.PhaseLocked {
		t.Errorf("phase = %s, want %s", g.State.Phase, model.PhaseLocked)
	}
	if g.Version != v+1 {
		t.Errorf("version = %d, want %d", g.Version, v+1)
	}
	if len(j.published) != 1 || j.published[0] != model.EventPhaseChanged {
		t.Errorf("published %v, want one PHASE_CHANGED", j.published)
	}
}

type stubJournal struct {
	published []model.EventType
	seq       int64
}

func (s *stubJournal) Publish(typ model.EventType, scope model.Scope, payload any) *model.Event {
	s.published = append(s.published, typ)
	s.seq++
	return &model.Event{Sequence: s.seq, Type: typ, Scope: scope, Payload: payload}
}

func (s *stubJournal) LastSeq() int64 { return s.seq }
