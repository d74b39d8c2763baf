package model

import (
	"sync"
	"time"
)

// Player count limits for locking a room.
const (
	MinPlayers = 6
	MaxPlayers = 30
)

// RoomID names one of the two rooms.
type RoomID string

const (
	RoomA RoomID = "A"
	RoomB RoomID = "B"
)

// Other returns the opposite room.
func (r RoomID) Other() RoomID {
	if r == RoomA {
		return RoomB
	}
	return RoomA
}

// Config is the game configuration, immutable once a round has started.
type Config struct {
	TotalRounds    int             `json:"total_rounds"` // 3 or 5
	RoundDurations []time.Duration `json:"round_durations"`
	BuryCard       bool            `json:"bury_card"`
	SelectedRoles  []string        `json:"selected_roles"`
}

// DefaultRoundDurations returns the standard per-round timer schedule for
// a given round count. Rounds shorten as the game progresses.
func DefaultRoundDurations(totalRounds int) []time.Duration {
	switch totalRounds {
	case 5:
		return []time.Duration{5 * time.Minute, 4 * time.Minute, 3 * time.Minute, 2 * time.Minute, 1 * time.Minute}
	default:
		return []time.Duration{3 * time.Minute, 2 * time.Minute, 1 * time.Minute}
	}
}

// TimerState is a timer's lifecycle state.
type TimerState string

const (
	TimerRunning TimerState = "running"
	TimerPaused  TimerState = "paused"
	TimerStopped TimerState = "stopped"
)

// TimerView is the public snapshot of a timer.
type TimerView struct {
	Duration  time.Duration `json:"duration_ms"`
	Remaining time.Duration `json:"remaining_ms"`
	State     TimerState    `json:"state"`
}

// RoomState is the per-room slice of game state.
type RoomState struct {
	Members              []string          `json:"members"`
	LeaderID             string            `json:"leader_id,omitempty"`
	LeaderVotes          map[string]string `json:"leader_votes"` // voter -> candidate
	LeaderVotingActive   bool              `json:"leader_voting_active"`
	LeaderVotingTieCount int               `json:"leader_voting_tie_count"`
	HostageCandidates    []string          `json:"hostage_candidates"`
	HostagesLocked       bool              `json:"hostages_locked"`
	ParlayComplete       bool              `json:"parlay_complete"`
}

// HasMember reports whether the player is in the room.
func (r *RoomState) HasMember(playerID string) bool {
	for _, id := range r.Members {
		if id == playerID {
			return true
		}
	}
	return false
}

// RemoveMember deletes the player from the member list if present.
func (r *RoomState) RemoveMember(playerID string) {
	for i, id := range r.Members {
		if id == playerID {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return
		}
	}
}

// ResetRound clears all per-round fields.
func (r *RoomState) ResetRound() {
	r.LeaderVotes = make(map[string]string)
	r.LeaderVotingActive = false
	r.LeaderVotingTieCount = 0
	r.HostageCandidates = nil
	r.HostagesLocked = false
	r.ParlayComplete = false
}

// CardShare records one completed card share for the private history.
type CardShare struct {
	Round    int       `json:"round"`
	FromID   string    `json:"from_id"`
	ToID     string    `json:"to_id"`
	Kind     string    `json:"kind"` // card or color
	SharedAt time.Time `json:"shared_at"`
}

// PrivateState never leaves the server.
type PrivateState struct {
	RoleAssignments map[string]string `json:"-"` // player -> character
	BuriedCard      string            `json:"-"`
	HostID          string            `json:"-"`
	Seed            [32]byte          `json:"-"`
	Usurpations     map[int][]string  `json:"-"` // round -> usurper ids
	CardShares      []CardShare       `json:"-"`
}

// GameState is the mutable state of a running game, partitioned by
// audience: public fields, two room slices, and private state.
type GameState struct {
	Phase           Phase             `json:"phase"`
	Round           int               `json:"round"`
	RoomAssignments map[string]RoomID `json:"room_assignments"`
	Paused          bool              `json:"paused"`
	PauseReason     string            `json:"pause_reason,omitempty"`
	// HostageSelection opens when the round timer expires and closes when
	// both rooms lock; hostage commands are only legal while it is open.
	HostageSelection bool `json:"hostage_selection"`
	ParlayActive     bool `json:"parlay_active"`
	Winner           Team `json:"winner,omitempty"`

	Rooms   map[RoomID]*RoomState `json:"-"`
	Private PrivateState          `json:"-"`
}

// Game is the aggregate root. All mutation goes through the controller
// and round engine while holding the game's lock (single-writer rule).
type Game struct {
	ID        string
	Code      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64

	Config  Config
	Players map[string]*Player
	State   GameState
	Journal Journal

	mu sync.Mutex
}

// NewGame builds an empty game in LOBBY with both rooms initialised.
func NewGame(id, code string) *Game {
	now := time.Now()
	return &Game{
		ID:        id,
		Code:      code,
		CreatedAt: now,
		UpdatedAt: now,
		Config: Config{
			TotalRounds:    3,
			RoundDurations: DefaultRoundDurations(3),
		},
		Players: make(map[string]*Player),
		State: GameState{
			Phase:           PhaseLobby,
			RoomAssignments: make(map[string]RoomID),
			Rooms: map[RoomID]*RoomState{
				RoomA: {LeaderVotes: make(map[string]string)},
				RoomB: {LeaderVotes: make(map[string]string)},
			},
			Private: PrivateState{
				RoleAssignments: make(map[string]string),
				Usurpations:     make(map[int][]string),
			},
		},
	}
}

// Lock serialises mutation of the game. Every command and timer callback
// holds this for its full duration.
func (g *Game) Lock() { g.mu.Lock() }

// Unlock releases the game's writer lock.
func (g *Game) Unlock() { g.mu.Unlock() }

// Touch bumps the version counter and the last-mutation timestamp.
// Callers must hold the game lock.
func (g *Game) Touch() {
	g.Version++
	g.UpdatedAt = time.Now()
}

// Host returns the host player, or nil before creation completes.
func (g *Game) Host() *Player {
	return g.Players[g.State.Private.HostID]
}

// Room returns the state for a room id.
func (g *Game) Room(id RoomID) *RoomState { return g.State.Rooms[id] }

// RoomOf returns the room a player is currently assigned to.
func (g *Game) RoomOf(playerID string) (RoomID, bool) {
	room, ok := g.State.RoomAssignments[playerID]
	return room, ok
}

// Roster returns the public roster in a stable order (by join name, then id).
func (g *Game) Roster() []PublicPlayerInfo {
	infos := make([]PublicPlayerInfo, 0, len(g.Players))
	for _, p := range g.SortedPlayers() {
		infos = append(infos, p.Public())
	}
	return infos
}

// SortedPlayers returns players ordered by id for reproducible iteration.
func (g *Game) SortedPlayers() []*Player {
	players := make([]*Player, 0, len(g.Players))
	for _, p := range g.Players {
		players = append(players, p)
	}
	for i := 1; i < len(players); i++ {
		for j := i; j > 0 && players[j-1].ID > players[j].ID; j-- {
			players[j-1], players[j] = players[j], players[j-1]
		}
	}
	return players
}

// Leaders returns the current leader ids keyed by room.
func (g *Game) Leaders() map[RoomID]string {
	leaders := make(map[RoomID]string, 2)
	for id, room := range g.State.Rooms {
		if room.LeaderID != "" {
			leaders[id] = room.LeaderID
		}
	}
	return leaders
}

// HostageCount is the single source of truth for how many hostages each
// leader must select in a round, keyed by player count and round number.
func HostageCount(playerCount, round int) int {
	switch {
	case playerCount >= 22:
		switch round {
		case 1:
			return 3
		case 2:
			return 2
		default:
			return 1
		}
	case playerCount >= 11:
		if round == 1 {
			return 2
		}
		return 1
	default:
		return 1
	}
}
