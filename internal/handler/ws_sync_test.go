package handler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/freeeve/tworooms/internal/ability"
	"github.com/freeeve/tworooms/internal/catalog"
	"github.com/freeeve/tworooms/internal/controller"
	"github.com/freeeve/tworooms/internal/model"
	"github.com/freeeve/tworooms/internal/round"
	"github.com/freeeve/tworooms/internal/store"
	"github.com/freeeve/tworooms/internal/validate"
)

// syncEnvelope is the shape both server-initiated sync messages share.
type syncEnvelope struct {
	Type    model.EventType `json:"type"`
	LastSeq int64           `json:"last_seq"`
	State   map[string]any  `json:"state"`
}

// newSyncFixture builds a handler over a fresh one-player game and a
// connection with a buffered send channel and no live socket, which is
// all the ack and sync paths touch.
func newSyncFixture(t *testing.T) (*WSHandler, *WSConn, *model.Game) {
	t.Helper()
	cat, err := catalog.New(catalog.Builtin())
	if err != nil {
		t.Fatal(err)
	}
	abilities := ability.NewDefault(cat)
	rounds := round.NewEngine(abilities)
	rounds.DisableScheduling = true
	ctrl := controller.New(store.New(time.Hour), cat, validate.New(cat), rounds, abilities, nil)

	res, err := ctrl.Dispatch(context.Background(), model.Command{Type: model.CmdCreateGame, HostName: "host"})
	if err != nil {
		t.Fatal(err)
	}
	payload := res.Payload.(map[string]any)
	gameID := payload["game_id"].(string)
	playerID := payload["player_id"].(string)

	g, err := ctrl.Store().Get(gameID)
	if err != nil {
		t.Fatal(err)
	}

	h := NewWSHandler(NewHub(), ctrl, nil)
	c := &WSConn{gameID: gameID, playerID: playerID, send: make(chan []byte, 8)}
	return h, c, g
}

func decodeEnvelope(t *testing.T, c *WSConn) syncEnvelope {
	t.Helper()
	var env syncEnvelope
	select {
	case data := <-c.send:
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatal(err)
		}
	default:
		t.Fatal("expected a message on the send channel")
	}
	return env
}

func TestSyncRequestSendsFullState(t *testing.T) {
	h, c, g := newSyncFixture(t)

	h.sendStateSync(c)

	env := decodeEnvelope(t, c)
	if env.Type != model.EventStateSync {
		t.Fatalf("type = %s, want STATE_SYNC", env.Type)
	}
	g.Lock()
	want := g.Journal.LastSeq()
	g.Unlock()
	if env.LastSeq != want {
		t.Errorf("last_seq = %d, want %d", env.LastSeq, want)
	}
	if code, _ := env.State["code"].(string); code == "" {
		t.Error("state should carry the public snapshot")
	}
	if env.State["players"] == nil {
		t.Error("state should carry the roster")
	}
}

func TestAckPastJournalHeadResyncs(t *testing.T) {
	h, c, g := newSyncFixture(t)

	h.recordAck(c, 999)

	if len(c.send) != 2 {
		t.Fatalf("expected a desync notice plus a state sync, got %d messages", len(c.send))
	}
	notice := decodeEnvelope(t, c)
	if notice.Type != model.EventDesyncDetected {
		t.Errorf("first message type = %s, want DESYNC_DETECTED", notice.Type)
	}
	sync := decodeEnvelope(t, c)
	if sync.Type != model.EventStateSync {
		t.Errorf("second message type = %s, want STATE_SYNC", sync.Type)
	}

	g.Lock()
	acked := g.Players[c.playerID].AckedSeq
	g.Unlock()
	if acked != 0 {
		t.Errorf("acked seq = %d, cursor must not advance past the journal head", acked)
	}
}

func TestValidAckAdvancesCursor(t *testing.T) {
	h, c, g := newSyncFixture(t)
	g.Lock()
	last := g.Journal.LastSeq()
	g.Unlock()

	h.recordAck(c, last)

	g.Lock()
	acked := g.Players[c.playerID].AckedSeq
	g.Unlock()
	if acked != last {
		t.Errorf("acked seq = %d, want %d", acked, last)
	}
	if len(c.send) != 0 {
		t.Error("a valid ack must not trigger a resync")
	}
}
