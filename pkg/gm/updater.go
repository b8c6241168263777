package gm

import (
	"fmt"
	"strings"

	"github.com/duotalk/duo-talk-gm/pkg/parser"
	"github.com/duotalk/duo-talk-gm/pkg/world"
)

// PatchOp is one JSON-patch-style change applied to the world. Paths
// address the canonical world layout, e.g. /characters/やな/location.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Updater turns allowed judgments into world deltas. It never mutates
// the input world: Apply clones first, applies every allowed action,
// appends one event line, and returns the patch ops plus a short
// Japanese change summary for prompt assembly.
type Updater struct{}

// Apply executes the allowed judgments against a clone of w. Denied
// judgments contribute nothing. The returned world always satisfies the
// same integrity invariants as the input.
func (u Updater) Apply(w *world.WorldState, judgments []Judgment, speakerID string) (*world.WorldState, []PatchOp, string) {
	next := w.Clone()
	var ops []PatchOp
	var changes []string

	speaker, ok := next.FindCharacter(speakerID)
	if !ok {
		return next, nil, ""
	}

	for _, j := range judgments {
		if !j.Allowed || j.Intent.Type.IsConversational() {
			continue
		}
		switch j.Intent.Type {
		case parser.IntentMove:
			ops, changes = u.applyMove(next, j, speaker.ID, ops, changes)
			speaker = next.Characters[speaker.ID]
		case parser.IntentGet:
			ops, changes = u.applyGet(next, j, speaker.ID, ops, changes)
		case parser.IntentPut:
			ops, changes = u.applyPut(next, j, speaker.ID, ops, changes)
		case parser.IntentUse:
			ops, changes = u.applyUse(next, j, ops, changes)
		case parser.IntentEatDrink:
			ops, changes = u.applyEatDrink(next, j, ops, changes)
		}
	}

	summary := strings.Join(changes, "。")
	if summary != "" {
		summary += "。"
		next.Events = append(next.Events, fmt.Sprintf("turn %d: %s", next.Time.Turn, summary))
	}
	return next, ops, summary
}

// AdvanceTurn bumps the turn counter on a clone. Turn number is kept
// outside the patch stream because it is excluded from world hashing.
func (u Updater) AdvanceTurn(w *world.WorldState) *world.WorldState {
	next := w.Clone()
	next.Time.Turn++
	return next
}

func (u Updater) applyMove(w *world.WorldState, j Judgment, speakerID string, ops []PatchOp, changes []string) ([]PatchOp, []string) {
	ch := w.Characters[speakerID]
	if ch.Location == j.ResolvedTarget {
		return ops, changes
	}
	ch.Location = j.ResolvedTarget
	w.Characters[speakerID] = ch
	ops = append(ops, PatchOp{
		Op:    "replace",
		Path:  fmt.Sprintf("/characters/%s/location", speakerID),
		Value: j.ResolvedTarget,
	})
	changes = append(changes, fmt.Sprintf("%sは%sへ移動した", ch.Name, w.Locations[j.ResolvedTarget].Name))
	return ops, changes
}

// applyGet moves the object into the speaker's hands. Ownership follows
// possession so the owner/holding invariant survives the transfer.
func (u Updater) applyGet(w *world.WorldState, j Judgment, speakerID string, ops []PatchOp, changes []string) ([]PatchOp, []string) {
	obj := w.Objects[j.ResolvedTarget]
	obj.Location = speakerID
	obj.Owner = speakerID
	w.Objects[j.ResolvedTarget] = obj

	ch := w.Characters[speakerID]
	if !ch.IsHolding(j.ResolvedTarget) {
		ch.Holding = append(ch.Holding, j.ResolvedTarget)
		w.Characters[speakerID] = ch
	}

	ops = append(ops,
		PatchOp{Op: "replace", Path: fmt.Sprintf("/objects/%s/location", j.ResolvedTarget), Value: speakerID},
		PatchOp{Op: "replace", Path: fmt.Sprintf("/objects/%s/owner", j.ResolvedTarget), Value: speakerID},
		PatchOp{Op: "add", Path: fmt.Sprintf("/characters/%s/holding", speakerID), Value: j.ResolvedTarget},
	)
	changes = append(changes, fmt.Sprintf("%sは%sを手に取った", ch.Name, obj.Name))
	return ops, changes
}

func (u Updater) applyPut(w *world.WorldState, j Judgment, speakerID string, ops []PatchOp, changes []string) ([]PatchOp, []string) {
	ch := w.Characters[speakerID]
	obj := w.Objects[j.ResolvedTarget]
	obj.Location = ch.Location
	obj.Owner = world.OwnerPublic
	w.Objects[j.ResolvedTarget] = obj

	held := make([]string, 0, len(ch.Holding))
	for _, id := range ch.Holding {
		if id != j.ResolvedTarget {
			held = append(held, id)
		}
	}
	ch.Holding = held
	w.Characters[speakerID] = ch

	ops = append(ops,
		PatchOp{Op: "replace", Path: fmt.Sprintf("/objects/%s/location", j.ResolvedTarget), Value: ch.Location},
		PatchOp{Op: "replace", Path: fmt.Sprintf("/objects/%s/owner", j.ResolvedTarget), Value: world.OwnerPublic},
		PatchOp{Op: "remove", Path: fmt.Sprintf("/characters/%s/holding", speakerID), Value: j.ResolvedTarget},
	)
	changes = append(changes, fmt.Sprintf("%sは%sを置いた", ch.Name, obj.Name))
	return ops, changes
}

const propertyInUse = "in_use"

func (u Updater) applyUse(w *world.WorldState, j Judgment, ops []PatchOp, changes []string) ([]PatchOp, []string) {
	obj := w.Objects[j.ResolvedTarget]
	if !obj.HasProperty(propertyInUse) {
		obj.Properties = append(obj.Properties, propertyInUse)
		w.Objects[j.ResolvedTarget] = obj
		ops = append(ops, PatchOp{
			Op:    "add",
			Path:  fmt.Sprintf("/objects/%s/properties", j.ResolvedTarget),
			Value: propertyInUse,
		})
	}
	changes = append(changes, fmt.Sprintf("%sが使われた", obj.Name))
	return ops, changes
}

func (u Updater) applyEatDrink(w *world.WorldState, j Judgment, ops []PatchOp, changes []string) ([]PatchOp, []string) {
	obj := w.Objects[j.ResolvedTarget]
	if !obj.HasProperty(PropertyConsumed) {
		obj.Properties = append(obj.Properties, PropertyConsumed)
		w.Objects[j.ResolvedTarget] = obj
		ops = append(ops, PatchOp{
			Op:    "add",
			Path:  fmt.Sprintf("/objects/%s/properties", j.ResolvedTarget),
			Value: PropertyConsumed,
		})
	}
	changes = append(changes, fmt.Sprintf("%sが消費された", obj.Name))
	return ops, changes
}
