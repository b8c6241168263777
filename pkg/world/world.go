package world

import (
	"fmt"
	"sort"
)

// OwnerPublic marks an object that no character is holding.
const OwnerPublic = "public"

// SceneTime is the in-world clock: a narrative label plus a turn counter.
// The turn counter is runtime state and is excluded from hashing.
type SceneTime struct {
	Label string `json:"label"`
	Turn  int    `json:"turn"`
}

// Exit is a traversable connection from one location to another.
type Exit struct {
	Target      string `json:"target"`
	Description string `json:"description,omitempty"`
}

// Location is a place characters can occupy and move between.
type Location struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Exits       []Exit `json:"exits,omitempty"`
}

// Object is a prop in the world. Location is either a location id or,
// when a character is holding it, that character's id. Owner is
// OwnerPublic or a character id and must stay consistent with the
// character's Holding list.
type Object struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Aliases    []string `json:"aliases,omitempty"`
	Location   string   `json:"location"`
	Owner      string   `json:"owner"`
	Properties []string `json:"properties,omitempty"`
}

// HasProperty reports whether the object carries the given property tag.
func (o Object) HasProperty(p string) bool {
	for _, prop := range o.Properties {
		if prop == p {
			return true
		}
	}
	return false
}

// Character is one of the conversation participants.
type Character struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Location string   `json:"location"`
	Holding  []string `json:"holding,omitempty"`
	Status   []string `json:"status,omitempty"`
}

// IsHolding reports whether the character holds the given object id.
func (c Character) IsHolding(objectID string) bool {
	for _, id := range c.Holding {
		if id == objectID {
			return true
		}
	}
	return false
}

// WorldState is the authoritative description of the world at a point in
// the conversation. It is constructed once per session from a scenario
// and mutated only through judged, updater-applied deltas. Events is an
// append-only narrative log and is excluded from reproducibility hashing.
type WorldState struct {
	Time       SceneTime            `json:"time"`
	Weather    string               `json:"weather,omitempty"`
	Locations  map[string]Location  `json:"locations"`
	Objects    map[string]Object    `json:"objects"`
	Characters map[string]Character `json:"characters"`
	Events     []string             `json:"events,omitempty"`
}

// Violation codes for referential integrity failures. These are fatal at
// scenario load time, never runtime judge outcomes.
const (
	CodeExitTargetMissing  = "EXIT_TARGET_MISSING"
	CodeObjLocationMissing = "OBJ_LOCATION_MISSING"
	CodeCharLocationMissing = "CHAR_LOCATION_MISSING"
	CodeOwnerInconsistent  = "OWNER_INCONSISTENT"
)

// Violation describes a single referential integrity failure.
type Violation struct {
	Code    string
	Message string
	Details map[string]string
}

func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s", v.Code, v.Message)
}

// Validate checks the referential integrity invariants:
// every exit target is an existing location, every object location is an
// existing location or character, every character location is an existing
// location, and owner/holding are mutually consistent.
func (w *WorldState) Validate() []Violation {
	var violations []Violation

	for _, locID := range sortedKeys(w.Locations) {
		loc := w.Locations[locID]
		for _, exit := range loc.Exits {
			if _, ok := w.Locations[exit.Target]; !ok {
				violations = append(violations, Violation{
					Code:    CodeExitTargetMissing,
					Message: fmt.Sprintf("exit target %q from %q does not exist", exit.Target, locID),
					Details: map[string]string{"location": locID, "exit_target": exit.Target},
				})
			}
		}
	}

	for _, objID := range sortedKeys(w.Objects) {
		obj := w.Objects[objID]
		_, isLoc := w.Locations[obj.Location]
		_, isChar := w.Characters[obj.Location]
		if !isLoc && !isChar {
			violations = append(violations, Violation{
				Code:    CodeObjLocationMissing,
				Message: fmt.Sprintf("object %q location %q does not exist", objID, obj.Location),
				Details: map[string]string{"object": objID, "location": obj.Location},
			})
		}
		if obj.Owner != OwnerPublic {
			owner, ok := w.Characters[obj.Owner]
			if !ok {
				violations = append(violations, Violation{
					Code:    CodeOwnerInconsistent,
					Message: fmt.Sprintf("object %q owner %q is not a character", objID, obj.Owner),
					Details: map[string]string{"object": objID, "owner": obj.Owner},
				})
			} else if !owner.IsHolding(objID) {
				violations = append(violations, Violation{
					Code:    CodeOwnerInconsistent,
					Message: fmt.Sprintf("object %q is owned by %q but not in their holding list", objID, obj.Owner),
					Details: map[string]string{"object": objID, "owner": obj.Owner},
				})
			}
		}
	}

	for _, charID := range sortedKeys(w.Characters) {
		ch := w.Characters[charID]
		if _, ok := w.Locations[ch.Location]; !ok {
			violations = append(violations, Violation{
				Code:    CodeCharLocationMissing,
				Message: fmt.Sprintf("character %q location %q does not exist", charID, ch.Location),
				Details: map[string]string{"character": charID, "location": ch.Location},
			})
		}
		for _, objID := range ch.Holding {
			obj, ok := w.Objects[objID]
			if !ok {
				violations = append(violations, Violation{
					Code:    CodeOwnerInconsistent,
					Message: fmt.Sprintf("character %q holds unknown object %q", charID, objID),
					Details: map[string]string{"character": charID, "object": objID},
				})
			} else if obj.Owner != charID {
				violations = append(violations, Violation{
					Code:    CodeOwnerInconsistent,
					Message: fmt.Sprintf("character %q holds %q but its owner is %q", charID, objID, obj.Owner),
					Details: map[string]string{"character": charID, "object": objID, "owner": obj.Owner},
				})
			}
		}
	}

	return violations
}

// Clone returns a deep copy. Components never mutate a caller's world;
// the updater applies changes to a clone and returns it.
func (w *WorldState) Clone() *WorldState {
	c := &WorldState{
		Time:       w.Time,
		Weather:    w.Weather,
		Locations:  make(map[string]Location, len(w.Locations)),
		Objects:    make(map[string]Object, len(w.Objects)),
		Characters: make(map[string]Character, len(w.Characters)),
		Events:     append([]string(nil), w.Events...),
	}
	for id, loc := range w.Locations {
		loc.Exits = append([]Exit(nil), loc.Exits...)
		c.Locations[id] = loc
	}
	for id, obj := range w.Objects {
		obj.Aliases = append([]string(nil), obj.Aliases...)
		obj.Properties = append([]string(nil), obj.Properties...)
		c.Objects[id] = obj
	}
	for id, ch := range w.Characters {
		ch.Holding = append([]string(nil), ch.Holding...)
		ch.Status = append([]string(nil), ch.Status...)
		c.Characters[id] = ch
	}
	return c
}

// FindCharacter resolves a character by id or display name.
func (w *WorldState) FindCharacter(idOrName string) (Character, bool) {
	if ch, ok := w.Characters[idOrName]; ok {
		return ch, true
	}
	for _, id := range sortedKeys(w.Characters) {
		if w.Characters[id].Name == idOrName {
			return w.Characters[id], true
		}
	}
	return Character{}, false
}

// ObjectsAt returns the objects whose location is the given location or
// character id, sorted by object id for determinism.
func (w *WorldState) ObjectsAt(locID string) []Object {
	var objs []Object
	for _, id := range sortedKeys(w.Objects) {
		if w.Objects[id].Location == locID {
			objs = append(objs, w.Objects[id])
		}
	}
	return objs
}

// VisibleObjects returns the objects a character can reach: those at the
// character's location plus those the character is holding.
func (w *WorldState) VisibleObjects(ch Character) []Object {
	var objs []Object
	for _, id := range sortedKeys(w.Objects) {
		obj := w.Objects[id]
		if obj.Location == ch.Location || obj.Location == ch.ID {
			objs = append(objs, obj)
		}
	}
	return objs
}

// ExitsFrom returns the exits available from a location, or nil if the
// location is unknown.
func (w *WorldState) ExitsFrom(locID string) []Exit {
	loc, ok := w.Locations[locID]
	if !ok {
		return nil
	}
	return loc.Exits
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
