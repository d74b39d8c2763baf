package model

import "time"

// CommandType identifies an externally submitted command.
type CommandType string

const (
	CmdCreateGame            CommandType = "CREATE_GAME"
	CmdJoinGame              CommandType = "JOIN_GAME"
	CmdLeaveGame             CommandType = "LEAVE_GAME"
	CmdLockRoom              CommandType = "LOCK_ROOM"
	CmdUnlockRoom            CommandType = "UNLOCK_ROOM"
	CmdSelectRoles           CommandType = "SELECT_ROLES"
	CmdSetRounds             CommandType = "SET_ROUNDS"
	CmdConfirmRoles          CommandType = "CONFIRM_ROLES"
	CmdStartGame             CommandType = "START_GAME"
	CmdNominateLeader        CommandType = "NOMINATE_LEADER"
	CmdInitiateNewLeaderVote CommandType = "INITIATE_NEW_LEADER_VOTE"
	CmdVoteUsurp             CommandType = "VOTE_USURP"
	CmdAbdicate              CommandType = "ABDICATE"
	CmdSelectHostage         CommandType = "SELECT_HOSTAGE"
	CmdLockHostages          CommandType = "LOCK_HOSTAGES"
	CmdCardShare             CommandType = "CARD_SHARE"
	CmdColorShare            CommandType = "COLOR_SHARE"
	CmdPrivateReveal         CommandType = "PRIVATE_REVEAL"
	CmdPublicReveal          CommandType = "PUBLIC_REVEAL"
	CmdActivateAbility       CommandType = "ACTIVATE_ABILITY"
)

// Command is a typed message submitted by the transport adapter on behalf
// of an authenticated player. Fields beyond Type/PlayerID are populated per
// command type.
type Command struct {
	Type     CommandType `json:"type"`
	GameID   string      `json:"game_id,omitempty"`
	PlayerID string      `json:"player_id,omitempty"`

	// CREATE_GAME / JOIN_GAME
	Code       string `json:"code,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
	HostName   string `json:"host_name,omitempty"`

	// SELECT_ROLES / SET_ROUNDS
	Roles       []string `json:"roles,omitempty"`
	TotalRounds int      `json:"total_rounds,omitempty"`

	// Room-scoped actions
	RoomID      RoomID `json:"room_id,omitempty"`
	CandidateID string `json:"candidate_id,omitempty"`
	TargetID    string `json:"target_id,omitempty"`

	// ACTIVATE_ABILITY
	AbilityID string   `json:"ability_id,omitempty"`
	Targets   []string `json:"targets,omitempty"`

	Timestamp time.Time `json:"timestamp,omitempty"`
}
