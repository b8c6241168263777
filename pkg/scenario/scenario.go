package scenario

import (
	"github.com/duotalk/duo-talk-gm/pkg/world"
)

// Meta holds scenario-level ambience settings.
type Meta struct {
	Time    string `json:"time"`
	Weather string `json:"weather"`
}

// LocationDef is a location as written in a scenario file.
type LocationDef struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Exits       []world.Exit `json:"exits"`
}

// ObjectDef is an object as written in a scenario file.
type ObjectDef struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Aliases    []string `json:"aliases"`
	Location   string   `json:"location"`
	Owner      string   `json:"owner"`
	Properties []string `json:"properties"`
}

// CharacterDef is a character as written in a scenario file.
type CharacterDef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LocationID string `json:"location_id"`
}

// File is the on-disk scenario document.
type File struct {
	ScenarioID string         `json:"scenario_id"`
	Meta       Meta           `json:"meta"`
	Locations  []LocationDef  `json:"locations"`
	Objects    []ObjectDef    `json:"objects"`
	Characters []CharacterDef `json:"characters"`
}

// BuildWorld converts a scenario file into an initial world state and
// validates referential integrity. Violations are fatal load errors.
func (f *File) BuildWorld() (*world.WorldState, error) {
	w := &world.WorldState{
		Time:       world.SceneTime{Label: f.Meta.Time},
		Weather:    f.Meta.Weather,
		Locations:  make(map[string]world.Location, len(f.Locations)),
		Objects:    make(map[string]world.Object, len(f.Objects)),
		Characters: make(map[string]world.Character, len(f.Characters)),
	}
	for _, loc := range f.Locations {
		w.Locations[loc.ID] = world.Location{
			ID:          loc.ID,
			Name:        loc.Name,
			Description: loc.Description,
			Exits:       loc.Exits,
		}
	}
	for _, ch := range f.Characters {
		w.Characters[ch.ID] = world.Character{
			ID:       ch.ID,
			Name:     ch.Name,
			Location: ch.LocationID,
		}
	}
	for _, obj := range f.Objects {
		owner := obj.Owner
		if owner == "" {
			owner = world.OwnerPublic
		}
		location := obj.Location
		// An owned object starts in its owner's hands: ownership and
		// possession move together through the whole session.
		if _, ok := w.Characters[owner]; ok && owner != world.OwnerPublic {
			location = owner
			ch := w.Characters[owner]
			ch.Holding = append(ch.Holding, obj.ID)
			w.Characters[owner] = ch
		}
		w.Objects[obj.ID] = world.Object{
			ID:         obj.ID,
			Name:       obj.Name,
			Aliases:    obj.Aliases,
			Location:   location,
			Owner:      owner,
			Properties: obj.Properties,
		}
	}

	if violations := w.Validate(); len(violations) > 0 {
		v := violations[0]
		return nil, newError(integrityCode(v.Code), v.Details, "%s", v.Message)
	}
	return w, nil
}

func integrityCode(worldCode string) ErrorCode {
	switch worldCode {
	case world.CodeExitTargetMissing:
		return CodeExitTargetMissing
	case world.CodeObjLocationMissing:
		return CodeObjLocationMissing
	case world.CodeCharLocationMissing:
		return CodeCharLocationMissing
	default:
		return CodeSchemaInvalid
	}
}
