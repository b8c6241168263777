package gm

import (
	"fmt"

	"github.com/duotalk/duo-talk-gm/pkg/parser"
	"github.com/duotalk/duo-talk-gm/pkg/world"
)

// DeniedReason is the closed set of reasons a world-directed intent can
// be refused. Conversational intents are never denied.
type DeniedReason string

const (
	DeniedMissingObject DeniedReason = "MISSING_OBJECT"
	DeniedWrongLocation DeniedReason = "WRONG_LOCATION"
	DeniedNotOwned      DeniedReason = "NOT_OWNED"
	DeniedInvalidState  DeniedReason = "INVALID_STATE"
	DeniedOutOfScope    DeniedReason = "OUT_OF_SCOPE"
)

// PropertyLocked marks objects that refuse GET and USE until unlocked.
const PropertyLocked = "locked"

// PropertyConsumed marks objects that have already been eaten or drunk.
const PropertyConsumed = "consumed"

// Judgment is the verdict on a single action intent. ResolvedTarget is
// the world id the raw target mapped onto, when resolution succeeded.
// SoftCorrection carries a canonical-name hint when the match was not
// exact; it is advisory and never blocks the action.
type Judgment struct {
	Intent         parser.ActionIntent `json:"intent"`
	Allowed        bool                `json:"allowed"`
	DeniedReason   DeniedReason        `json:"denied_reason,omitempty"`
	Message        string              `json:"message,omitempty"`
	ResolvedTarget string              `json:"resolved_target,omitempty"`
	Resolution     ResolutionMethod    `json:"resolution,omitempty"`
	SoftCorrection string              `json:"soft_correction,omitempty"`
}

// Judge evaluates one intent against the current world. It is a pure
// function of its inputs: no randomness, no clock, no world mutation.
// The same intent against the same world always yields the same verdict.
func Judge(intent parser.ActionIntent, w *world.WorldState, speakerID string) Judgment {
	j := Judgment{Intent: intent}

	if intent.Type.IsConversational() {
		j.Allowed = true
		return j
	}

	speaker, ok := w.FindCharacter(speakerID)
	if !ok {
		j.DeniedReason = DeniedOutOfScope
		j.Message = fmt.Sprintf("発話者「%s」はこの世界に存在しません", speakerID)
		return j
	}

	switch intent.Type {
	case parser.IntentMove:
		return judgeMove(j, w, speaker)
	case parser.IntentGet:
		return judgeGet(j, w, speaker)
	case parser.IntentPut:
		return judgePut(j, w, speaker)
	case parser.IntentUse:
		return judgeUse(j, w, speaker)
	case parser.IntentEatDrink:
		return judgeEatDrink(j, w, speaker)
	}

	j.DeniedReason = DeniedOutOfScope
	j.Message = fmt.Sprintf("未知の行動種別です: %s", intent.Type)
	return j
}

// judgeMove allows movement only along exits of the speaker's current
// location. A destination that exists nowhere in the world is out of
// scope rather than wrong location: the former means the LLM invented a
// place, the latter that it picked a real but unreachable one.
func judgeMove(j Judgment, w *world.WorldState, speaker world.Character) Judgment {
	locID, method := resolveLocation(j.Intent.Target, w)
	if method == ResolveNone {
		j.DeniedReason = DeniedOutOfScope
		j.Message = fmt.Sprintf("「%s」という場所はこの世界に存在しません", j.Intent.Target)
		return j
	}
	j.ResolvedTarget = locID
	j.Resolution = method
	j.SoftCorrection = softCorrection(j.Intent.Target, w.Locations[locID].Name, method)

	if locID == speaker.Location {
		j.Allowed = true
		return j
	}
	for _, exit := range w.ExitsFrom(speaker.Location) {
		if exit.Target == locID {
			j.Allowed = true
			return j
		}
	}
	j.DeniedReason = DeniedWrongLocation
	j.Message = fmt.Sprintf("「%s」へは%sから直接移動できません", w.Locations[locID].Name, speaker.Location)
	return j
}

func judgeGet(j Judgment, w *world.WorldState, speaker world.Character) Judgment {
	objID, method := resolveObject(j.Intent.Target, w)
	if method == ResolveNone {
		j.DeniedReason = DeniedMissingObject
		j.Message = fmt.Sprintf("「%s」という物はこの世界に存在しません", j.Intent.Target)
		return j
	}
	obj := w.Objects[objID]
	j.ResolvedTarget = objID
	j.Resolution = method
	j.SoftCorrection = softCorrection(j.Intent.Target, obj.Name, method)

	if obj.Location == speaker.ID {
		j.DeniedReason = DeniedInvalidState
		j.Message = fmt.Sprintf("「%s」はすでに%sが持っています", obj.Name, speaker.Name)
		return j
	}
	if holder, ok := w.Characters[obj.Location]; ok {
		j.DeniedReason = DeniedNotOwned
		j.Message = fmt.Sprintf("「%s」は%sが持っています", obj.Name, holder.Name)
		return j
	}
	if obj.Location != speaker.Location {
		j.DeniedReason = DeniedWrongLocation
		j.Message = fmt.Sprintf("「%s」はここにはありません", obj.Name)
		return j
	}
	if obj.Owner != world.OwnerPublic && obj.Owner != speaker.ID {
		j.DeniedReason = DeniedNotOwned
		j.Message = fmt.Sprintf("「%s」は%sの持ち物です", obj.Name, obj.Owner)
		return j
	}
	if obj.HasProperty(PropertyLocked) {
		j.DeniedReason = DeniedInvalidState
		j.Message = fmt.Sprintf("「%s」は鍵がかかっています", obj.Name)
		return j
	}
	j.Allowed = true
	return j
}

func judgePut(j Judgment, w *world.WorldState, speaker world.Character) Judgment {
	objID, method := resolveObject(j.Intent.Target, w)
	if method == ResolveNone {
		j.DeniedReason = DeniedMissingObject
		j.Message = fmt.Sprintf("「%s」という物はこの世界に存在しません", j.Intent.Target)
		return j
	}
	obj := w.Objects[objID]
	j.ResolvedTarget = objID
	j.Resolution = method
	j.SoftCorrection = softCorrection(j.Intent.Target, obj.Name, method)

	if !speaker.IsHolding(objID) {
		j.DeniedReason = DeniedNotOwned
		j.Message = fmt.Sprintf("%sは「%s」を持っていません", speaker.Name, obj.Name)
		return j
	}
	j.Allowed = true
	return j
}

// judgeUse requires the object to be at hand: either held by the
// speaker or in the same location.
func judgeUse(j Judgment, w *world.WorldState, speaker world.Character) Judgment {
	objID, method := resolveObject(j.Intent.Target, w)
	if method == ResolveNone {
		j.DeniedReason = DeniedMissingObject
		j.Message = fmt.Sprintf("「%s」という物はこの世界に存在しません", j.Intent.Target)
		return j
	}
	obj := w.Objects[objID]
	j.ResolvedTarget = objID
	j.Resolution = method
	j.SoftCorrection = softCorrection(j.Intent.Target, obj.Name, method)

	if obj.Location != speaker.Location && obj.Location != speaker.ID {
		j.DeniedReason = DeniedWrongLocation
		j.Message = fmt.Sprintf("「%s」はここにはありません", obj.Name)
		return j
	}
	if obj.HasProperty(PropertyLocked) {
		j.DeniedReason = DeniedInvalidState
		j.Message = fmt.Sprintf("「%s」は鍵がかかっています", obj.Name)
		return j
	}
	j.Allowed = true
	return j
}

func judgeEatDrink(j Judgment, w *world.WorldState, speaker world.Character) Judgment {
	objID, method := resolveObject(j.Intent.Target, w)
	if method == ResolveNone {
		j.DeniedReason = DeniedMissingObject
		j.Message = fmt.Sprintf("「%s」という物はこの世界に存在しません", j.Intent.Target)
		return j
	}
	obj := w.Objects[objID]
	j.ResolvedTarget = objID
	j.Resolution = method
	j.SoftCorrection = softCorrection(j.Intent.Target, obj.Name, method)

	if obj.Location != speaker.Location && obj.Location != speaker.ID {
		j.DeniedReason = DeniedWrongLocation
		j.Message = fmt.Sprintf("「%s」はここにはありません", obj.Name)
		return j
	}
	if obj.HasProperty(PropertyConsumed) {
		j.DeniedReason = DeniedInvalidState
		j.Message = fmt.Sprintf("「%s」はもう残っていません", obj.Name)
		return j
	}
	j.Allowed = true
	return j
}

// softCorrection produces a canonical-name hint for non-exact matches.
func softCorrection(raw, canonical string, method ResolutionMethod) string {
	if method == ResolveExact || raw == canonical {
		return ""
	}
	return fmt.Sprintf("「%s」は「%s」として扱います", raw, canonical)
}
