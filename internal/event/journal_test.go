package event

import (
	"fmt"
	"testing"

	"github.com/freeeve/tworooms/internal/model"
)

// fixedRooms builds a MembershipFunc over a mutable assignment map so
// tests can move players between publishes.
func fixedRooms(assignments map[string]model.RoomID) MembershipFunc {
	return func(playerID string) (model.RoomID, bool) {
		r, ok := assignments[playerID]
		return r, ok
	}
}

func TestPublishAssignsGaplessSequence(t *testing.T) {
	j := NewJournal("g1", nil)
	for i := 1; i <= 5; i++ {
		ev := j.Publish(model.EventTimerUpdate, model.ScopePublic, nil)
		if ev.Sequence != int64(i) {
			t.Fatalf("event %d got sequence %d", i, ev.Sequence)
		}
	}
	if j.LastSeq() != 5 {
		t.Errorf("LastSeq = %d, want 5", j.LastSeq())
	}
}

func TestRoomScopedDelivery(t *testing.T) {
	rooms := map[string]model.RoomID{"alice": model.RoomA, "bob": model.RoomB}
	j := NewJournal("g1", fixedRooms(rooms))
	j.RegisterPlayer("alice")
	j.RegisterPlayer("bob")

	subA := j.Subscribe("alice", 0, 16)
	subB := j.Subscribe("bob", 0, 16)
	defer subA.Close()
	defer subB.Close()

	j.Publish(model.EventLeaderElected, model.ScopeRoomA, nil)

	select {
	case ev := <-subA.C:
		if ev.Type != model.EventLeaderElected {
			t.Errorf("alice got %s", ev.Type)
		}
	default:
		t.Fatal("alice should receive the room A event")
	}
	select {
	case ev := <-subB.C:
		t.Fatalf("bob should not receive room A events, got %s", ev.Type)
	default:
	}
}

func TestPlayerScopedDelivery(t *testing.T) {
	j := NewJournal("g1", nil)
	j.RegisterPlayer("alice")
	j.RegisterPlayer("bob")
	subA := j.Subscribe("alice", 0, 16)
	subB := j.Subscribe("bob", 0, 16)
	defer subA.Close()
	defer subB.Close()

	j.Publish(model.EventRoleAssigned, model.PlayerScope("alice"), map[string]any{"character_id": "president"})

	if len(subA.C) != 1 {
		t.Fatal("alice should receive her role event")
	}
	if len(subB.C) != 0 {
		t.Fatal("role events must never reach other players")
	}
}

// A hostage moving rooms must not gain access to events published to the
// destination room before the move: recipients snapshot at publish time.
func TestRecipientsSnapshotAtPublishTime(t *testing.T) {
	rooms := map[string]model.RoomID{"alice": model.RoomA, "bob": model.RoomB}
	j := NewJournal("g1", fixedRooms(rooms))
	j.RegisterPlayer("alice")
	j.RegisterPlayer("bob")

	j.Publish(model.EventLeaderElected, model.ScopeRoomB, nil) // seq 1, before move
	rooms["alice"] = model.RoomB                               // hostage exchange
	j.Publish(model.EventHostageSelected, model.ScopeRoomB, nil) // seq 2, after move

	visible := j.EventsSince("alice", 0)
	if len(visible) != 1 {
		t.Fatalf("alice should see exactly the post-move event, got %d", len(visible))
	}
	if visible[0].Sequence != 2 {
		t.Errorf("alice saw seq %d, want 2", visible[0].Sequence)
	}
}

func TestSubscribeReplaysSinceAck(t *testing.T) {
	j := NewJournal("g1", nil)
	j.RegisterPlayer("alice")
	for i := 0; i < 10; i++ {
		j.Publish(model.EventTimerUpdate, model.ScopePublic, i)
	}

	sub := j.Subscribe("alice", 7, 16)
	defer sub.Close()

	var seqs []int64
	for len(sub.C) > 0 {
		seqs = append(seqs, (<-sub.C).Sequence)
	}
	if len(seqs) != 3 || seqs[0] != 8 || seqs[2] != 10 {
		t.Errorf("replay got %v, want [8 9 10]", seqs)
	}
}

func TestJournalTruncation(t *testing.T) {
	j := NewJournal("g1", nil)
	j.RegisterPlayer("alice")
	total := maxRetained + 50
	for i := 0; i < total; i++ {
		j.Publish(model.EventTimerUpdate, model.ScopePublic, nil)
	}

	events := j.EventsSince("alice", 0)
	if len(events) != maxRetained {
		t.Fatalf("retained %d events, want %d", len(events), maxRetained)
	}
	if events[0].Sequence != int64(total-maxRetained+1) {
		t.Errorf("oldest retained seq = %d, want %d", events[0].Sequence, total-maxRetained+1)
	}
	if events[len(events)-1].Sequence != int64(total) {
		t.Errorf("newest seq = %d, want %d", events[len(events)-1].Sequence, total)
	}
}

func TestCloseDetachesSubscriber(t *testing.T) {
	j := NewJournal("g1", nil)
	sub := j.Subscribe("alice", 0, 4)
	if j.SubscriberCount() != 1 {
		t.Fatal("expected one subscriber")
	}
	sub.Close()
	sub.Close() // double close is safe
	if j.SubscriberCount() != 0 {
		t.Fatal("expected zero subscribers after close")
	}
	j.Publish(model.EventTimerUpdate, model.ScopePublic, nil)
}

func TestFullBufferDropsInsteadOfBlocking(t *testing.T) {
	j := NewJournal("g1", nil)
	sub := j.Subscribe("alice", 0, 1)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			j.Publish(model.EventTimerUpdate, model.ScopePublic, fmt.Sprint(i))
		}
		close(done)
	}()
	<-done // publish never blocks on a slow subscriber
}
