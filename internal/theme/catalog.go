// Package theme holds the static trivia theme catalog and the
// difficulty ramp policy.
package theme

import "github.com/oddlab/oddyssey/internal/model"

// coreThemes are the playable themes, defined at process start and
// immutable afterwards.
var coreThemes = []model.Theme{
	{
		ID:             "football",
		Label:          "World Football",
		Description:    "Kits, clubs, tactics, and international legends.",
		Icon:           "football",
		AccentColor:    "#FF8C42",
		DifficultyRamp: []model.Difficulty{model.DifficultyEasy, model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard, model.DifficultyExpert},
	},
	{
		ID:             "anime",
		Label:          "Anime Universe",
		Description:    "Series lore, mangaka trivia, and iconic characters.",
		Icon:           "sparkles",
		AccentColor:    "#FF6FB5",
		DifficultyRamp: []model.Difficulty{model.DifficultyEasy, model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard, model.DifficultyExpert},
	},
	{
		ID:             "science",
		Label:          "Science & Discovery",
		Description:    "Breakthroughs, inventors, and scientific oddities.",
		Icon:           "flask",
		AccentColor:    "#F5A25D",
		DifficultyRamp: []model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard, model.DifficultyHard, model.DifficultyExpert},
	},
}

// upcomingThemes are announced but not yet playable.
var upcomingThemes = []model.Theme{
	{
		ID:             "space-explorers",
		Label:          "Space Explorers",
		Description:    "Coming soon: missions, rockets, and galaxies to unravel.",
		Icon:           "planet",
		AccentColor:    "#9C6CFF",
		DifficultyRamp: []model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard, model.DifficultyExpert, model.DifficultyExpert},
		ComingSoon:     true,
	},
	{
		ID:             "street-foods",
		Label:          "Street Foods",
		Description:    "Planned expansion celebrating spicy bites worldwide.",
		Icon:           "fast-food",
		AccentColor:    "#F07F52",
		DifficultyRamp: []model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyMedium, model.DifficultyHard, model.DifficultyExpert},
		ComingSoon:     true,
	},
}

// Playable returns the themes a session can be started on.
func Playable() []model.Theme {
	out := make([]model.Theme, len(coreThemes))
	copy(out, coreThemes)
	return out
}

// All returns playable and upcoming themes.
func All() []model.Theme {
	out := make([]model.Theme, 0, len(coreThemes)+len(upcomingThemes))
	out = append(out, coreThemes...)
	out = append(out, upcomingThemes...)
	return out
}

// Lookup returns the playable theme with the given id, or nil.
// Coming-soon themes cannot be looked up for play.
func Lookup(id string) *model.Theme {
	for i := range coreThemes {
		if coreThemes[i].ID == id {
			t := coreThemes[i]
			return &t
		}
	}
	return nil
}

// DifficultyFor returns the difficulty for the next question given how
// many questions have been fully answered or skipped in the session.
// A theme's ramp sequence is indexed by that count and clamped to its
// last entry; themes without a ramp use the default thresholds.
func DifficultyFor(t *model.Theme, answered int) model.Difficulty {
	if t != nil && len(t.DifficultyRamp) > 0 {
		idx := answered
		if idx >= len(t.DifficultyRamp) {
			idx = len(t.DifficultyRamp) - 1
		}
		return t.DifficultyRamp[idx]
	}
	switch {
	case answered >= 12:
		return model.DifficultyExpert
	case answered >= 7:
		return model.DifficultyHard
	case answered >= 3:
		return model.DifficultyMedium
	default:
		return model.DifficultyEasy
	}
}
