package catalog

import "github.com/freeeve/tworooms/internal/model"

// Builtin returns the default character set so the server runs without an
// embedder-supplied catalogue. Embedders may pass their own definitions
// to New instead.
func Builtin() []model.Character {
	return []model.Character{
		{
			ID: "president", Name: "President", Team: model.TeamBlue,
			Class: model.ClassPrimary, Complexity: 1,
			Description: "The blue team wins if the President survives the game in a different room from the Bomber.",
		},
		{
			ID: "bomber", Name: "Bomber", Team: model.TeamRed,
			Class: model.ClassPrimary, Complexity: 1,
			Description: "The red team wins if the Bomber ends the game in the same room as the President.",
		},
		{
			ID: "vice-president", Name: "Vice President", Team: model.TeamBlue,
			Class: model.ClassBackup, Complexity: 2,
			Requires:    []string{"president"},
			Description: "Becomes the President if the President is removed from play.",
		},
		{
			ID: "martyr", Name: "Martyr", Team: model.TeamRed,
			Class: model.ClassBackup, Complexity: 2,
			Requires:    []string{"bomber"},
			Description: "Becomes the Bomber if the Bomber is removed from play.",
		},
		{
			ID: "doctor", Name: "Doctor", Team: model.TeamBlue,
			Class: model.ClassRegular, Complexity: 2,
			Description: "Must card share with the President before the end of the game.",
			Abilities: []model.Ability{
				{ID: "treat", Trigger: model.TriggerCardShare, Effect: "remove_condition", Targeting: "same_room", Priority: 10},
			},
		},
		{
			ID: "engineer", Name: "Engineer", Team: model.TeamRed,
			Class: model.ClassRegular, Complexity: 2,
			Description: "Must card share with the Bomber before the end of the game.",
			Abilities: []model.Ability{
				{ID: "arm", Trigger: model.TriggerCardShare, Effect: "apply_condition", Targeting: "same_room", Priority: 10},
			},
		},
		{
			ID: "blue-team", Name: "Blue Team", Team: model.TeamBlue,
			Class: model.ClassRegular, Complexity: 1,
			Description: "Wins with the blue team.",
		},
		{
			ID: "red-team", Name: "Red Team", Team: model.TeamRed,
			Class: model.ClassRegular, Complexity: 1,
			Description: "Wins with the red team.",
		},
		{
			ID: "gambler", Name: "Gambler", Team: model.TeamGrey,
			Class: model.ClassRegular, Complexity: 3,
			Description: "At the end of the last round, publicly announces which team they think won. Wins if correct.",
			WinConditions: []model.WinCondition{
				{Type: "correct_prediction", Priority: 5, OverridesTeam: false},
			},
		},
		{
			ID: "survivor", Name: "Survivor", Team: model.TeamGrey,
			Class: model.ClassRegular, Complexity: 3,
			Description: "Wins if they end the game in the room without the Bomber.",
			WinConditions: []model.WinCondition{
				{Type: "avoid_primary", Priority: 5, OverridesTeam: false,
					Params: map[string]any{"primary": "bomber"}},
			},
		},
		{
			ID: "spy-blue", Name: "Blue Spy", Team: model.TeamBlue,
			Class: model.ClassRegular, Complexity: 4,
			MutuallyExclusive: []string{"spy-red"},
			Description:       "Card appears red during colour shares.",
			Abilities: []model.Ability{
				{ID: "false-color", Trigger: model.TriggerReveal, Effect: "masquerade", Params: map[string]any{"as_team": "red"}, Priority: 1},
			},
		},
		{
			ID: "spy-red", Name: "Red Spy", Team: model.TeamRed,
			Class: model.ClassRegular, Complexity: 4,
			MutuallyExclusive: []string{"spy-blue"},
			Description:       "Card appears blue during colour shares.",
			Abilities: []model.Ability{
				{ID: "false-color", Trigger: model.TriggerReveal, Effect: "masquerade", Params: map[string]any{"as_team": "blue"}, Priority: 1},
			},
		},
		{
			ID: "usurper", Name: "Usurper", Team: model.TeamGrey,
			Class: model.ClassRegular, Complexity: 5,
			Description: "Wins if they usurp a leader and hold leadership at the end of the game.",
			WinConditions: []model.WinCondition{
				{Type: "usurped_and_leading", Priority: 8, OverridesTeam: false},
			},
		},
		{
			ID: "hot-potato", Name: "Hot Potato", Team: model.TeamGrey,
			Class: model.ClassRegular, Complexity: 4,
			Description: "Swaps cards with anyone they card share with. Wins if holding another card at game end.",
			Abilities: []model.Ability{
				{ID: "swap", Trigger: model.TriggerCardShare, Effect: "swap_card", Targeting: "same_room", Priority: 20},
			},
		},
	}
}
