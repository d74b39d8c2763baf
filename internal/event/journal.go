// Package event implements the per-game append-only journal and the
// scope-filtered fan-out bus built on top of it.
package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/tworooms/internal/model"
)

// maxRetained is the minimum journal suffix kept per game. Older entries
// are truncated; reconnect replay reads a bounded suffix only.
const maxRetained = 1000

// MembershipFunc resolves a player's current room. The journal calls it
// at publish time so room-scoped delivery reflects membership at the
// moment of publication, not at subscription.
type MembershipFunc func(playerID string) (model.RoomID, bool)

// entry pairs a journal event with the recipient set resolved at publish
// time. A nil recipients set means everyone (PUBLIC scope).
type entry struct {
	ev         *model.Event
	recipients map[string]struct{}
}

// Journal is a per-game append-only, scope-aware event log with live
// subscriber fan-out. Writes happen only on the owning game's executor;
// reads take the journal's own lock and never mutate past entries.
type Journal struct {
	gameID   string
	memberOf MembershipFunc

	mu           sync.Mutex
	seq          int64
	entries      []entry
	subs         map[*Subscription]struct{}
	knownPlayers []string
}

// NewJournal creates the journal for one game.
func NewJournal(gameID string, memberOf MembershipFunc) *Journal {
	return &Journal{
		gameID:   gameID,
		memberOf: memberOf,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Subscription is one observer's channel onto the journal. Events arrive
// in sequence order; replayed entries always precede live ones.
type Subscription struct {
	PlayerID string
	C        chan *model.Event

	journal *Journal
	closed  bool
}

// Publish assigns the next sequence number, appends the event, resolves
// the recipient set for its scope, and fans out to live subscribers.
func (j *Journal) Publish(typ model.EventType, scope model.Scope, payload any) *model.Event {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	ev := &model.Event{
		ID:        uuid.NewString(),
		Sequence:  j.seq,
		Type:      typ,
		Scope:     scope,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	e := entry{ev: ev, recipients: j.resolveRecipients(scope)}
	j.entries = append(j.entries, e)
	if len(j.entries) > maxRetained {
		// Drop the oldest entries, keeping the retained suffix.
		excess := len(j.entries) - maxRetained
		j.entries = append([]entry(nil), j.entries[excess:]...)
	}

	for sub := range j.subs {
		if !e.visibleTo(sub.PlayerID) {
			continue
		}
		select {
		case sub.C <- ev:
		default:
			log.Warn().Str("gameId", j.gameID).Str("playerId", sub.PlayerID).
				Int64("seq", ev.Sequence).Msg("Subscriber buffer full, dropping event")
		}
	}

	return ev
}

// resolveRecipients snapshots who may see the event. Room membership is
// resolved now so later hostage exchanges cannot leak earlier room events.
func (j *Journal) resolveRecipients(scope model.Scope) map[string]struct{} {
	switch {
	case scope == model.ScopePublic:
		return nil
	case scope.IsRoom():
		if j.memberOf == nil {
			return map[string]struct{}{}
		}
		recipients := make(map[string]struct{})
		for _, id := range j.roomMembers(scope.Room()) {
			recipients[id] = struct{}{}
		}
		return recipients
	default:
		return map[string]struct{}{string(scope): {}}
	}
}

// roomMembers collects the ids of every registered player currently in
// the room. Registration happens on join, so disconnected players are
// included and can replay later.
func (j *Journal) roomMembers(room model.RoomID) []string {
	var members []string
	for _, id := range j.knownPlayers {
		if r, ok := j.memberOf(id); ok && r == room {
			members = append(members, id)
		}
	}
	return members
}

// RegisterPlayer records a player id so room-scoped recipient resolution
// covers players who are not currently subscribed.
func (j *Journal) RegisterPlayer(playerID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, id := range j.knownPlayers {
		if id == playerID {
			return
		}
	}
	j.knownPlayers = append(j.knownPlayers, playerID)
}

// visibleTo reports whether the entry's snapshot includes the player.
func (e entry) visibleTo(playerID string) bool {
	if e.recipients == nil {
		return true
	}
	_, ok := e.recipients[playerID]
	return ok
}

// LastSeq returns the sequence of the newest entry, 0 for an empty journal.
func (j *Journal) LastSeq() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Subscribe registers a subscriber keyed to a player and drains every
// retained entry with seq > acked visible to that player, in order,
// before live delivery begins.
func (j *Journal) Subscribe(playerID string, acked int64, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 256
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	sub := &Subscription{
		PlayerID: playerID,
		C:        make(chan *model.Event, buffer+len(j.entries)),
		journal:  j,
	}

	for _, e := range j.entries {
		if e.ev.Sequence > acked && e.visibleTo(playerID) {
			sub.C <- e.ev
		}
	}

	j.subs[sub] = struct{}{}
	return sub
}

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	j := s.journal
	j.mu.Lock()
	defer j.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(j.subs, s)
	close(s.C)
}

// EventsSince returns a copy of retained entries visible to the player
// with seq > acked. Used by the transport for one-shot resyncs.
func (j *Journal) EventsSince(playerID string, acked int64) []*model.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*model.Event
	for _, e := range j.entries {
		if e.ev.Sequence > acked && e.visibleTo(playerID) {
			out = append(out, e.ev)
		}
	}
	return out
}

// SubscriberCount returns the number of live subscriptions.
func (j *Journal) SubscriberCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.subs)
}
