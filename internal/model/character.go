package model

// Team is a character's team colour.
type Team string

const (
	TeamBlue   Team = "blue"
	TeamRed    Team = "red"
	TeamGrey   Team = "grey"
	TeamGreen  Team = "green"
	TeamPurple Team = "purple"
	TeamBlack  Team = "black"
	TeamPink   Team = "pink"
)

// Valid reports whether t is one of the closed set of team colours.
func (t Team) Valid() bool {
	switch t {
	case TeamBlue, TeamRed, TeamGrey, TeamGreen, TeamPurple, TeamBlack, TeamPink:
		return true
	}
	return false
}

// Class describes a character's structural role in the deck.
type Class string

const (
	ClassPrimary Class = "primary"
	ClassBackup  Class = "backup"
	ClassRegular Class = "regular"
)

// AbilityTrigger names the point in the game at which an ability may fire.
type AbilityTrigger string

const (
	TriggerRoundStart    AbilityTrigger = "round_start"
	TriggerRoundEnd      AbilityTrigger = "round_end"
	TriggerCardShare     AbilityTrigger = "card_share"
	TriggerReveal        AbilityTrigger = "reveal"
	TriggerBecomeHostage AbilityTrigger = "become_hostage"
	TriggerResolution    AbilityTrigger = "resolution"
)

// Ability is a data-driven character power. Evaluation is the ability
// engine's job; the rest of the core treats these as opaque records.
type Ability struct {
	ID         string         `json:"id"`
	Trigger    AbilityTrigger `json:"trigger"`
	Effect     string         `json:"effect"`
	Targeting  string         `json:"targeting,omitempty"`
	UsageLimit int            `json:"usage_limit,omitempty"` // 0 = unlimited
	Conditions []string       `json:"conditions,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Priority   int            `json:"priority"`
}

// WinCondition is a typed victory predicate attached to a character.
type WinCondition struct {
	Type          string         `json:"type"`
	Priority      int            `json:"priority"`
	OverridesTeam bool           `json:"overrides_team"`
	Params        map[string]any `json:"params,omitempty"`
}

// Character is a single entry in the character catalogue.
type Character struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Team              Team           `json:"team"`
	Class             Class          `json:"class"`
	Description       string         `json:"description"`
	Complexity        int            `json:"complexity"` // 1..5
	Requires          []string       `json:"requires,omitempty"`
	MutuallyExclusive []string       `json:"mutually_exclusive,omitempty"`
	Abilities         []Ability      `json:"abilities,omitempty"`
	WinConditions     []WinCondition `json:"win_conditions,omitempty"`
}
