package model

// Phase is the top-level state of a game.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseLocked
	PhaseRoleSelection
	PhaseRoleDistribution
	PhaseRoomAssignment
	PhaseRound
	PhaseResolution
	PhaseFinished
)

var phaseNames = map[Phase]string{
	PhaseLobby:            "LOBBY",
	PhaseLocked:           "LOCKED",
	PhaseRoleSelection:    "ROLE_SELECTION",
	PhaseRoleDistribution: "ROLE_DISTRIBUTION",
	PhaseRoomAssignment:   "ROOM_ASSIGNMENT",
	PhaseRound:            "ROUND",
	PhaseResolution:       "RESOLUTION",
	PhaseFinished:         "FINISHED",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "UNKNOWN"
}

// MarshalText makes phases readable in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Trigger requests a phase transition.
type Trigger int

const (
	TriggerLockRoom Trigger = iota
	TriggerUnlockRoom
	TriggerStartRoleSelection
	TriggerCancelRoleSelection
	TriggerConfirmRoles
	TriggerRolesDistributed
	TriggerStartGame
	TriggerRoundComplete
	TriggerInstantWin
	TriggerWinConditionsResolved
)

var triggerNames = map[Trigger]string{
	TriggerLockRoom:              "lock_room",
	TriggerUnlockRoom:            "unlock_room",
	TriggerStartRoleSelection:    "start_role_selection",
	TriggerCancelRoleSelection:   "cancel_role_selection",
	TriggerConfirmRoles:          "confirm_roles",
	TriggerRolesDistributed:      "roles_distributed",
	TriggerStartGame:             "start_game",
	TriggerRoundComplete:         "round_complete",
	TriggerInstantWin:            "instant_win",
	TriggerWinConditionsResolved: "win_conditions_resolved",
}

func (t Trigger) String() string {
	if s, ok := triggerNames[t]; ok {
		return s
	}
	return "unknown"
}

// MarshalText makes triggers readable in JSON payloads.
func (t Trigger) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
