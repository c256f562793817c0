package pokeapi

import "errors"

// ErrNoAbility indicates an ability index outside the species ability list.
var ErrNoAbility = errors.New("species has no ability at the requested index")

// BaseStats holds the six base stat values for a species.
type BaseStats struct {
	HP             int `json:"hp"`
	Attack         int `json:"attack"`
	Defense        int `json:"defense"`
	SpecialAttack  int `json:"specialAttack"`
	SpecialDefense int `json:"specialDefense"`
	Speed          int `json:"speed"`
}

// Ability is one ability slot on a species.
type Ability struct {
	Name   string `json:"name"`
	Slot   int    `json:"slot"`
	Hidden bool   `json:"hidden"`
}

// Species is an immutable descriptor for one catalog species.
//
// Creatures cache a snapshot of this descriptor so stored game history
// stays readable when the catalog is unavailable.
type Species struct {
	ID               int       `json:"id"`
	Name             string    `json:"name"`
	Abilities        []Ability `json:"abilities"`
	Types            []string  `json:"types"`
	BaseStats        BaseStats `json:"baseStats"`
	EvolutionChainID int       `json:"evolutionChainId"`
}

// AbilityAt returns the ability at the given slot index.
func (s Species) AbilityAt(index int) (Ability, error) {
	if index < 0 || index >= len(s.Abilities) {
		return Ability{}, ErrNoAbility
	}
	return s.Abilities[index], nil
}

// ChainLink is one node in an evolution chain.
type ChainLink struct {
	Name      string      `json:"name"`
	EvolvesTo []ChainLink `json:"evolvesTo"`
}

// EvolutionChain is the ordered evolution graph for a species family.
type EvolutionChain struct {
	ID   int       `json:"id"`
	Root ChainLink `json:"root"`
}

// NextStage returns the name of the first next-stage evolution for the named
// species. Branching evolutions always resolve to the first listed branch.
// The second return value is false when the species is not in the chain or
// has no further stage.
func (c EvolutionChain) NextStage(name string) (string, bool) {
	link, ok := findLink(c.Root, name)
	if !ok || len(link.EvolvesTo) == 0 {
		return "", false
	}
	return link.EvolvesTo[0].Name, true
}

func findLink(link ChainLink, name string) (ChainLink, bool) {
	if link.Name == name {
		return link, true
	}
	for _, next := range link.EvolvesTo {
		if found, ok := findLink(next, name); ok {
			return found, true
		}
	}
	return ChainLink{}, false
}
