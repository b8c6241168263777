package world

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

// HashLength is the number of hex characters kept from the SHA-256 digest.
const HashLength = 16

// canonicalWorld is the hashed shape of a world state. Runtime-only
// fields (events, time.turn) are stripped so that two worlds with the
// same structural content hash identically regardless of how many turns
// have elapsed.
type canonicalWorld struct {
	TimeLabel  string               `json:"time_label"`
	Weather    string               `json:"weather,omitempty"`
	Locations  map[string]Location  `json:"locations"`
	Objects    map[string]Object    `json:"objects"`
	Characters map[string]Character `json:"characters"`
}

// CanonicalJSON serializes the world deterministically: map keys sorted
// (encoding/json already guarantees this), unordered slices sorted, and
// runtime-only fields excluded.
func (w *WorldState) CanonicalJSON() ([]byte, error) {
	c := w.Clone()
	for id, loc := range c.Locations {
		sort.Slice(loc.Exits, func(i, j int) bool { return loc.Exits[i].Target < loc.Exits[j].Target })
		c.Locations[id] = loc
	}
	for id, obj := range c.Objects {
		sort.Strings(obj.Aliases)
		sort.Strings(obj.Properties)
		c.Objects[id] = obj
	}
	for id, ch := range c.Characters {
		sort.Strings(ch.Holding)
		sort.Strings(ch.Status)
		c.Characters[id] = ch
	}
	return json.Marshal(canonicalWorld{
		TimeLabel:  c.Time.Label,
		Weather:    c.Weather,
		Locations:  c.Locations,
		Objects:    c.Objects,
		Characters: c.Characters,
	})
}

// Hash computes the reproducibility hash of the world: the first
// HashLength hex characters of the SHA-256 of the canonical JSON.
func (w *WorldState) Hash() (string, error) {
	data, err := w.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize world state: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)[:HashLength], nil
}
