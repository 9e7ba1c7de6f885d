package parsecache

import (
	"fmt"
	"strings"
)

// CharacterKey identifies a character by normalized name and home world.
// Construct with NewCharacterKey so equality is case-insensitive.
type CharacterKey struct {
	Name  string `json:"name"`
	World string `json:"world"`
}

// NewCharacterKey normalizes a character name and world into a key.
func NewCharacterKey(name, world string) CharacterKey {
	return CharacterKey{
		Name:  strings.ToLower(strings.TrimSpace(name)),
		World: strings.ToLower(strings.TrimSpace(world)),
	}
}

// Key identifies one cacheable parse fact: a character's best percentile
// for one encounter of one ranking-service zone.
type Key struct {
	Character   CharacterKey
	ZoneID      uint32
	EncounterID uint32
}

// String renders the storage key. The v1 prefix lets the layout change
// later without old entries being misread.
func (k Key) String() string {
	return fmt.Sprintf("parse:v1:%s:%s:%d:%d", k.Character.World, k.Character.Name, k.ZoneID, k.EncounterID)
}
