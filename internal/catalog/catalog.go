// Package catalog loads and validates the character catalogue. The
// catalogue is immutable after load and safe to share between games.
package catalog

import (
	"errors"
	"fmt"

	"github.com/freeeve/tworooms/internal/model"
)

var (
	ErrEmpty        = errors.New("catalogue is empty")
	ErrNotFound     = errors.New("character not found")
	ErrDuplicateID  = errors.New("duplicate character id")
	ErrNoPrimaries  = errors.New("catalogue must contain exactly one primary per protagonist team")
	ErrBadReference = errors.New("character references an unknown id")
)

// Catalog is the validated, immutable character catalogue.
type Catalog struct {
	byID    map[string]*model.Character
	ordered []*model.Character
}

// New validates the supplied definitions and builds a catalogue.
func New(characters []model.Character) (*Catalog, error) {
	if len(characters) == 0 {
		return nil, ErrEmpty
	}

	c := &Catalog{byID: make(map[string]*model.Character, len(characters))}
	for i := range characters {
		ch := characters[i]
		if ch.ID == "" {
			return nil, fmt.Errorf("character %d: empty id", i)
		}
		if _, dup := c.byID[ch.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, ch.ID)
		}
		if !ch.Team.Valid() {
			return nil, fmt.Errorf("character %s: invalid team %q", ch.ID, ch.Team)
		}
		if ch.Complexity < 1 || ch.Complexity > 5 {
			return nil, fmt.Errorf("character %s: complexity %d outside 1..5", ch.ID, ch.Complexity)
		}
		c.byID[ch.ID] = &ch
		c.ordered = append(c.ordered, &ch)
	}

	// Referential integrity for requires / mutuallyExclusive.
	for _, ch := range c.ordered {
		for _, ref := range ch.Requires {
			if _, ok := c.byID[ref]; !ok {
				return nil, fmt.Errorf("%w: %s requires %s", ErrBadReference, ch.ID, ref)
			}
		}
		for _, ref := range ch.MutuallyExclusive {
			if _, ok := c.byID[ref]; !ok {
				return nil, fmt.Errorf("%w: %s excludes %s", ErrBadReference, ch.ID, ref)
			}
		}
	}

	primaries := make(map[model.Team]int)
	for _, ch := range c.ordered {
		if ch.Class == model.ClassPrimary {
			primaries[ch.Team]++
		}
	}
	if primaries[model.TeamBlue] != 1 || primaries[model.TeamRed] != 1 {
		return nil, fmt.Errorf("%w: blue %d, red %d",
			ErrNoPrimaries, primaries[model.TeamBlue], primaries[model.TeamRed])
	}

	return c, nil
}

// ByID looks up a character.
func (c *Catalog) ByID(id string) (*model.Character, error) {
	ch, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ch, nil
}

// Has reports whether an id exists in the catalogue.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// All returns every character in load order.
func (c *Catalog) All() []*model.Character {
	out := make([]*model.Character, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// ByTeam returns every character on the given team.
func (c *Catalog) ByTeam(team model.Team) []*model.Character {
	var out []*model.Character
	for _, ch := range c.ordered {
		if ch.Team == team {
			out = append(out, ch)
		}
	}
	return out
}

// MaxComplexity returns every character at or below the given complexity.
func (c *Catalog) MaxComplexity(max int) []*model.Character {
	var out []*model.Character
	for _, ch := range c.ordered {
		if ch.Complexity <= max {
			out = append(out, ch)
		}
	}
	return out
}

// Primaries returns the PRIMARY-class characters. Every deck must include
// all of them; the validator derives the required set from here rather
// than hard-coding ids.
func (c *Catalog) Primaries() []*model.Character {
	var out []*model.Character
	for _, ch := range c.ordered {
		if ch.Class == model.ClassPrimary {
			out = append(out, ch)
		}
	}
	return out
}
