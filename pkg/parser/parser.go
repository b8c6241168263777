package parser

import (
	"regexp"
	"strings"
)

const (
	thoughtTag = "Thought:"
	outputTag  = "Output:"
	actionTag  = "Action:"
)

// RepairMethod names the transform that produced a usable parse.
type RepairMethod string

const (
	RepairStrip       RepairMethod = "STRIP"
	RepairTrailingCut RepairMethod = "TRAILING_CUT"
	RepairFallback    RepairMethod = "FALLBACK"
)

// BreakType classifies what was wrong with the raw text.
type BreakType string

const (
	BreakMissingThoughtTag BreakType = "MISSING_THOUGHT_TAG"
	BreakMissingOutputTags BreakType = "MISSING_OUTPUT_TAGS"
	BreakTrailingGarbage   BreakType = "TRAILING_GARBAGE"
	BreakUnstructured      BreakType = "UNSTRUCTURED"
)

// FormatBreak records that repair was needed, for observability only.
type FormatBreak struct {
	BreakType    BreakType    `json:"break_type"`
	RepairMethod RepairMethod `json:"repair_method"`
	RepairSteps  int          `json:"repair_steps"`
}

// ParsedOutput is the structured view of one LLM generation.
type ParsedOutput struct {
	Thought       string         `json:"thought"`
	Speech        string         `json:"speech"`
	ActionIntents []ActionIntent `json:"action_intents"`
	FormatBreak   *FormatBreak   `json:"format_break,omitempty"`
}

// ParseAttempts is 1 for a strict parse plus one per repair step taken.
func (p ParsedOutput) ParseAttempts() int {
	if p.FormatBreak == nil {
		return 1
	}
	return 1 + p.FormatBreak.RepairSteps
}

// Parse turns raw LLM text into a ParsedOutput. It never fails: repair
// transforms are tried in a fixed order and the final fallback treats
// the whole text as speech, so every input yields something usable.
func Parse(raw string) ParsedOutput {
	if p, ok := strictParse(raw); ok {
		return p
	}

	stripped := stripText(raw)
	if p, ok := strictParse(stripped); ok {
		p.FormatBreak = &FormatBreak{
			BreakType:    classifyBreak(raw),
			RepairMethod: RepairStrip,
			RepairSteps:  1,
		}
		return p
	}

	cut := cutTrailing(stripped)
	if p, ok := strictParse(cut); ok {
		p.FormatBreak = &FormatBreak{
			BreakType:    BreakTrailingGarbage,
			RepairMethod: RepairTrailingCut,
			RepairSteps:  2,
		}
		return p
	}

	p := fallbackParse(stripped)
	p.FormatBreak = &FormatBreak{
		BreakType:    classifyBreak(raw),
		RepairMethod: RepairFallback,
		RepairSteps:  3,
	}
	return p
}

// strictParse expects a Thought: block, an Output: block, an optional
// Action: marker line, and nothing else.
func strictParse(text string) (ParsedOutput, bool) {
	lines := strings.Split(text, "\n")
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i >= len(lines) || !strings.HasPrefix(lines[i], thoughtTag) {
		return ParsedOutput{}, false
	}

	var thoughtLines []string
	thoughtLines = append(thoughtLines, strings.TrimSpace(strings.TrimPrefix(lines[i], thoughtTag)))
	i++
	for i < len(lines) && !strings.HasPrefix(lines[i], outputTag) {
		thoughtLines = append(thoughtLines, lines[i])
		i++
	}
	if i >= len(lines) {
		return ParsedOutput{}, false
	}

	var speechLines []string
	speechLines = append(speechLines, strings.TrimSpace(strings.TrimPrefix(lines[i], outputTag)))
	i++
	for i < len(lines) && !strings.HasPrefix(lines[i], actionTag) {
		speechLines = append(speechLines, lines[i])
		i++
	}

	var intents []ActionIntent
	if i < len(lines) {
		intents = parseActionLine(strings.TrimPrefix(lines[i], actionTag))
		i++
		for ; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) != "" {
				return ParsedOutput{}, false // trailing garbage after markers
			}
		}
	}

	thought := strings.TrimSpace(strings.Join(thoughtLines, "\n"))
	speech := strings.TrimSpace(strings.Join(speechLines, "\n"))
	if speech == "" {
		return ParsedOutput{}, false
	}
	if intents == nil {
		intents = mineIntents(speech)
	}
	return ParsedOutput{Thought: thought, Speech: speech, ActionIntents: intents}, true
}

// parseActionLine splits a pipe-delimited marker line. Each token is
// TYPE, TYPE(target) or TYPE(target, detail). Unknown types are skipped.
var actionTokenRe = regexp.MustCompile(`^([A-Z_]+)(?:\((.*)\))?$`)

func parseActionLine(line string) []ActionIntent {
	intents := make([]ActionIntent, 0, 2)
	for _, token := range strings.Split(line, "|") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		m := actionTokenRe.FindStringSubmatch(token)
		if m == nil {
			continue
		}
		intentType, ok := ParseIntentType(m[1])
		if !ok {
			continue
		}
		intent := ActionIntent{Type: intentType}
		if m[2] != "" {
			parts := strings.SplitN(m[2], ",", 2)
			intent.Target = strings.TrimSpace(parts[0])
			if len(parts) == 2 {
				intent.Detail = strings.TrimSpace(parts[1])
			}
		}
		intents = append(intents, intent)
	}
	return intents
}

// mineIntents extracts intents from *action* spans in the speech when no
// explicit Action: line was given. Spans that match no verb pattern
// become EMOTE intents.
var (
	spanRe    = regexp.MustCompile(`\*([^*]+)\*`)
	mineRules = []struct {
		re   *regexp.Regexp
		kind IntentType
	}{
		{regexp.MustCompile(`^(.+?)[にへ]移動(する)?$`), IntentMove},
		{regexp.MustCompile(`^(.+?)[にへ](行く|向かう|出る)$`), IntentMove},
		{regexp.MustCompile(`^(.+?)を(手に)?取る$`), IntentGet},
		{regexp.MustCompile(`^(.+?)を(置く|戻す)$`), IntentPut},
		{regexp.MustCompile(`^(.+?)を使う$`), IntentUse},
		{regexp.MustCompile(`^(.+?)を(飲む|食べる)$`), IntentEatDrink},
	}
)

func mineIntents(speech string) []ActionIntent {
	intents := make([]ActionIntent, 0, 2)
	for _, m := range spanRe.FindAllStringSubmatch(speech, -1) {
		span := strings.TrimSpace(m[1])
		matched := false
		for _, p := range mineRules {
			if sm := p.re.FindStringSubmatch(span); sm != nil {
				intents = append(intents, ActionIntent{
					Type:   p.kind,
					Target: strings.TrimSpace(sm[1]),
					Detail: span,
				})
				matched = true
				break
			}
		}
		if !matched {
			intents = append(intents, ActionIntent{Type: IntentEmote, Detail: span})
		}
	}
	return intents
}

// stripText trims whitespace, control characters and markdown fences.
func stripText(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, text)
	text = strings.TrimSpace(text)

	lines := strings.Split(text, "\n")
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// cutTrailing truncates garbage after the last recognized block: after
// the Action: line if present, otherwise after the Output: paragraph.
func cutTrailing(text string) string {
	lines := strings.Split(text, "\n")
	outIdx := -1
	for i, line := range lines {
		if strings.HasPrefix(line, outputTag) {
			outIdx = i
		}
		if strings.HasPrefix(line, actionTag) {
			return strings.Join(lines[:i+1], "\n")
		}
	}
	if outIdx < 0 {
		return text
	}
	end := outIdx + 1
	for end < len(lines) && strings.TrimSpace(lines[end]) != "" {
		end++
	}
	return strings.Join(lines[:end], "\n")
}

// fallbackParse always succeeds: it salvages tagged blocks if any are
// present and otherwise treats the whole text as speech.
func fallbackParse(text string) ParsedOutput {
	lines := strings.Split(text, "\n")
	thoughtIdx, outIdx := -1, -1
	for i, line := range lines {
		if thoughtIdx < 0 && strings.HasPrefix(line, thoughtTag) {
			thoughtIdx = i
		}
		if outIdx < 0 && strings.HasPrefix(line, outputTag) {
			outIdx = i
		}
	}

	if outIdx < 0 {
		speech := strings.TrimSpace(text)
		return ParsedOutput{Speech: speech, ActionIntents: mineIntents(speech)}
	}

	var thought string
	if thoughtIdx >= 0 && thoughtIdx < outIdx {
		block := strings.Join(lines[thoughtIdx:outIdx], "\n")
		thought = strings.TrimSpace(strings.TrimPrefix(block, thoughtTag))
	}

	var speechLines []string
	speechLines = append(speechLines, strings.TrimSpace(strings.TrimPrefix(lines[outIdx], outputTag)))
	for i := outIdx + 1; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], actionTag) {
			break
		}
		speechLines = append(speechLines, lines[i])
	}
	speech := strings.TrimSpace(strings.Join(speechLines, "\n"))
	return ParsedOutput{Thought: thought, Speech: speech, ActionIntents: mineIntents(speech)}
}

func classifyBreak(raw string) BreakType {
	hasThought := strings.Contains(raw, thoughtTag)
	hasOutput := strings.Contains(raw, outputTag)
	switch {
	case hasOutput && hasThought:
		return BreakTrailingGarbage
	case hasOutput:
		return BreakMissingThoughtTag
	case hasThought:
		return BreakMissingOutputTags
	default:
		return BreakUnstructured
	}
}
