package model

import "time"

// ConnStatus is a player's transport connection state.
type ConnStatus string

const (
	ConnConnected    ConnStatus = "connected"
	ConnDisconnected ConnStatus = "disconnected"
	ConnReconnecting ConnStatus = "reconnecting"
)

// KnownInfo is a piece of information a player has learned through a
// share or reveal.
type KnownInfo struct {
	SourceID  string    `json:"source_id"`
	Kind      string    `json:"kind"` // card, color, condition
	Value     string    `json:"value"`
	Round     int       `json:"round"`
	LearnedAt time.Time `json:"learned_at"`
}

// Player is one participant in a game. Created on join, it persists for
// the game's lifetime; disconnection never destroys it.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"is_host"`

	// Connection tracking
	Status    ConnStatus `json:"status"`
	ConnToken string     `json:"-"`
	LastSeen  time.Time  `json:"last_seen"`
	AckedSeq  int64      `json:"-"`

	// Game state (role fields are private state; never serialised into
	// public or room scoped payloads)
	CurrentRole  string `json:"-"`
	OriginalRole string `json:"-"`
	CurrentRoom  RoomID `json:"-"`
	IsLeader     bool   `json:"-"`
	CanBeHostage bool   `json:"-"`
	Alive        bool   `json:"-"`

	// Collected information
	Conditions     []string    `json:"-"`
	CollectedCards []string    `json:"-"`
	KnownInfo      []KnownInfo `json:"-"`

	// Win-condition tracking
	WasSentAsHostage bool `json:"-"`
	UsurpedLeaders   int  `json:"-"`
}

// PublicPlayerInfo is the roster entry every observer may see.
type PublicPlayerInfo struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	IsHost   bool       `json:"is_host"`
	Status   ConnStatus `json:"status"`
	IsLeader bool       `json:"is_leader"`
	Room     RoomID     `json:"room,omitempty"`
}

// PrivateView is the per-player slice of state sent only to that player.
type PrivateView struct {
	CurrentRole    string      `json:"current_role,omitempty"`
	OriginalRole   string      `json:"original_role,omitempty"`
	Conditions     []string    `json:"conditions,omitempty"`
	CollectedCards []string    `json:"collected_cards,omitempty"`
	KnownInfo      []KnownInfo `json:"known_info,omitempty"`
}

// Public returns the observer-safe roster record for the player.
func (p *Player) Public() PublicPlayerInfo {
	return PublicPlayerInfo{
		ID:       p.ID,
		Name:     p.Name,
		IsHost:   p.IsHost,
		Status:   p.Status,
		IsLeader: p.IsLeader,
		Room:     p.CurrentRoom,
	}
}

// Private returns the player's own view of their hidden state.
func (p *Player) Private() PrivateView {
	return PrivateView{
		CurrentRole:    p.CurrentRole,
		OriginalRole:   p.OriginalRole,
		Conditions:     p.Conditions,
		CollectedCards: p.CollectedCards,
		KnownInfo:      p.KnownInfo,
	}
}
