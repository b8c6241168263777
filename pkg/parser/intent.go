package parser

// IntentType is the closed set of action intents the parser can emit.
// SAY/ASK/ANSWER/EMOTE are conversational and never touch world state;
// the rest are world-directed and subject to judgment.
type IntentType string

const (
	IntentSay      IntentType = "SAY"
	IntentAsk      IntentType = "ASK"
	IntentAnswer   IntentType = "ANSWER"
	IntentEmote    IntentType = "EMOTE"
	IntentMove     IntentType = "MOVE"
	IntentGet      IntentType = "GET"
	IntentPut      IntentType = "PUT"
	IntentUse      IntentType = "USE"
	IntentEatDrink IntentType = "EAT_DRINK"
)

// ParseIntentType maps a marker token to an IntentType.
func ParseIntentType(s string) (IntentType, bool) {
	switch IntentType(s) {
	case IntentSay, IntentAsk, IntentAnswer, IntentEmote,
		IntentMove, IntentGet, IntentPut, IntentUse, IntentEatDrink:
		return IntentType(s), true
	}
	return "", false
}

// IsConversational reports whether the intent type is speech-only.
func (t IntentType) IsConversational() bool {
	switch t {
	case IntentSay, IntentAsk, IntentAnswer, IntentEmote:
		return true
	}
	return false
}

// ActionIntent is the unit the judge evaluates. Target is the raw string
// the LLM produced; resolution onto a world id happens downstream.
type ActionIntent struct {
	Type   IntentType `json:"intent_type"`
	Target string     `json:"target,omitempty"`
	Detail string     `json:"detail,omitempty"`
}
