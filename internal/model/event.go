package model

import "time"

// Scope is the audience filter attached to an event: PUBLIC, a room id,
// or a single player id.
type Scope string

const (
	ScopePublic Scope = "PUBLIC"
	ScopeRoomA  Scope = "ROOM_A"
	ScopeRoomB  Scope = "ROOM_B"
)

// PlayerScope builds the scope that targets exactly one player.
func PlayerScope(playerID string) Scope { return Scope(playerID) }

// RoomScope maps a room id to its event scope.
func RoomScope(room RoomID) Scope {
	if room == RoomB {
		return ScopeRoomB
	}
	return ScopeRoomA
}

// IsRoom reports whether the scope targets one of the two rooms.
func (s Scope) IsRoom() bool { return s == ScopeRoomA || s == ScopeRoomB }

// Room returns the room a room scope targets.
func (s Scope) Room() RoomID {
	if s == ScopeRoomB {
		return RoomB
	}
	return RoomA
}

// EventType identifies a journal entry.
type EventType string

// Connection events.
const (
	EventConnected    EventType = "CONNECTED"
	EventDisconnected EventType = "DISCONNECTED"
	EventError        EventType = "ERROR"
)

// Lifecycle events.
const (
	EventGameCreated  EventType = "GAME_CREATED"
	EventPlayerJoined EventType = "PLAYER_JOINED"
	EventPlayerLeft   EventType = "PLAYER_LEFT"
	EventRoomLocked   EventType = "ROOM_LOCKED"
	EventRoomUnlocked EventType = "ROOM_UNLOCKED"
	EventPhaseChanged EventType = "PHASE_CHANGED"
)

// Role events.
const (
	EventRolesSelected     EventType = "ROLES_SELECTED"
	EventRoleAssigned      EventType = "ROLE_ASSIGNED"
	EventGameConfigUpdated EventType = "GAME_CONFIG_UPDATED"
	EventRoomsAssigned     EventType = "ROOMS_ASSIGNED"
)

// Round events.
const (
	EventRoundStarted EventType = "ROUND_STARTED"
	EventRoundEnded   EventType = "ROUND_ENDED"
	EventTimerUpdate  EventType = "TIMER_UPDATE"
)

// Leadership events.
const (
	EventLeaderElected      EventType = "LEADER_ELECTED"
	EventLeaderUsurped      EventType = "LEADER_USURPED"
	EventLeaderAbdicated    EventType = "LEADER_ABDICATED"
	EventLeaderDisconnected EventType = "LEADER_DISCONNECTED"
	EventVoteCast           EventType = "VOTE_CAST"
	EventVoteTied           EventType = "VOTE_TIED"
	EventLeaderVoteStarted  EventType = "LEADER_VOTE_STARTED"
)

// Hostage events.
const (
	EventHostageSelected   EventType = "HOSTAGE_SELECTED"
	EventHostagesLocked    EventType = "HOSTAGES_LOCKED"
	EventParlayStarted     EventType = "PARLAY_STARTED"
	EventParlayEnded       EventType = "PARLAY_ENDED"
	EventHostagesExchanged EventType = "HOSTAGES_EXCHANGED"
)

// Flow events.
const (
	EventGamePaused   EventType = "GAME_PAUSED"
	EventGameResumed  EventType = "GAME_RESUMED"
	EventGameFinished EventType = "GAME_FINISHED"
)

// Share and reveal events.
const (
	EventCardShared    EventType = "CARD_SHARED"
	EventColorShared   EventType = "COLOR_SHARED"
	EventPrivateReveal EventType = "PRIVATE_REVEAL"
	EventPublicReveal  EventType = "PUBLIC_REVEAL"
	EventConditionSet  EventType = "CONDITION_SET"
)

// Sync events.
const (
	EventPlayerDisconnected EventType = "PLAYER_DISCONNECTED"
	EventPlayerReconnected  EventType = "PLAYER_RECONNECTED"
	EventStateSync          EventType = "STATE_SYNC"
	EventDesyncDetected     EventType = "DESYNC_DETECTED"
)

// Event is one journal entry. Sequence numbers are per game, strictly
// increasing from 1 with no gaps.
type Event struct {
	ID        string    `json:"id"`
	Sequence  int64     `json:"sequence_number"`
	Type      EventType `json:"type"`
	Scope     Scope     `json:"-"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Journal is the per-game append-only event log. The concrete
// implementation lives in the event package; model only needs publish.
type Journal interface {
	Publish(typ EventType, scope Scope, payload any) *Event
	LastSeq() int64
}
