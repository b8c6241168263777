package gm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotalk/duo-talk-gm/pkg/scenario"
)

// scriptedGenerator replays canned outputs, recording the guidance it
// was handed. The last output repeats once the script runs out.
type scriptedGenerator struct {
	outputs []string
	err     error
	calls   [][]string
}

func (g *scriptedGenerator) Generate(_ context.Context, guidance []string) (string, error) {
	g.calls = append(g.calls, guidance)
	if g.err != nil {
		return "", g.err
	}
	i := len(g.calls) - 1
	if i >= len(g.outputs) {
		i = len(g.outputs) - 1
	}
	return g.outputs[i], nil
}

const (
	goodTurn = "Thought: マグカップを使おう。\nOutput: 「マグカップ借りるね」\nAction: GET(マグカップ)"
	badTurn  = "Thought: 豆を挽こう。\nOutput: 「コーヒー豆を挽くね」\nAction: GET(コーヒー豆)"
	sayTurn  = "Thought: 挨拶しよう。\nOutput: 「おはよう、あゆ」\nAction: SAY"
)

func stepRequest(raw string, turn int) Request {
	return Request{
		SessionID:  "s1",
		TurnNumber: turn,
		Speaker:    "やな",
		RawOutput:  raw,
		World:      scenario.KitchenMorning(),
	}
}

func TestStepCleanTurn(t *testing.T) {
	s := NewStepper(nil, 2, nil)
	resp := s.Step(context.Background(), stepRequest(goodTurn, 1))

	assert.True(t, resp.Allowed)
	assert.False(t, resp.GiveUp)
	assert.False(t, resp.RetrySuggested)
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, "「マグカップ借りるね」", resp.Parsed.Speech)
	require.Len(t, resp.WorldDelta, 3)
	assert.True(t, resp.World.Characters["やな"].IsHolding("マグカップ"))
	assert.Equal(t, 1, resp.World.Time.Turn)
	assert.NotEmpty(t, resp.WorldHash)
	assert.Empty(t, resp.World.Validate())
}

func TestStepRetryWithGenerator(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{goodTurn}}
	s := NewStepper(nil, 2, gen)

	resp := s.Step(context.Background(), stepRequest(badTurn, 1))

	require.Len(t, gen.calls, 1)
	require.NotEmpty(t, gen.calls[0])
	assert.Contains(t, gen.calls[0][0], "コーヒー豆")

	assert.True(t, resp.Allowed)
	assert.False(t, resp.GiveUp)
	assert.Equal(t, 2, resp.Attempts)
	assert.True(t, resp.World.Characters["やな"].IsHolding("マグカップ"))
}

func TestStepGiveUpAfterBudget(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{badTurn}}
	s := NewStepper(nil, 2, gen)

	resp := s.Step(context.Background(), stepRequest(badTurn, 1))

	// Two regenerations were attempted before giving up.
	assert.Len(t, gen.calls, 2)
	assert.True(t, resp.GiveUp)
	assert.True(t, resp.Allowed, "give-up fails open")
	assert.Empty(t, resp.DeniedReason)
	assert.Equal(t, 3, resp.Attempts)
	assert.Empty(t, resp.WorldDelta, "denied intents apply nothing")
	require.NotEmpty(t, resp.Guidance)
	assert.Contains(t, resp.Guidance[len(resp.Guidance)-1], "[GIVE_UP]")
	assert.False(t, resp.World.Characters["やな"].IsHolding("コーヒー豆"))
}

func TestStepWithoutGeneratorSuggestsRetry(t *testing.T) {
	s := NewStepper(nil, 2, nil)
	resp := s.Step(context.Background(), stepRequest(badTurn, 1))

	assert.True(t, resp.RetrySuggested)
	assert.False(t, resp.Allowed)
	assert.Equal(t, DeniedMissingObject, resp.DeniedReason)
	assert.Empty(t, resp.WorldDelta)
	assert.Equal(t, 0, resp.World.Time.Turn, "retry-suggested turns commit nothing")
	require.NotEmpty(t, resp.Guidance)

	// The ledger persists, so resubmitting the turn consumes the budget.
	resp = s.Step(context.Background(), stepRequest(badTurn, 1))
	assert.True(t, resp.RetrySuggested)
	assert.Equal(t, 2, resp.Attempts)
}

func TestStepGiveUpAcrossResubmissions(t *testing.T) {
	s := NewStepper(nil, 2, nil)

	for i := 0; i < 2; i++ {
		resp := s.Step(context.Background(), stepRequest(badTurn, 1))
		assert.True(t, resp.RetrySuggested)
		assert.False(t, resp.GiveUp)
	}

	// The third submission of the same turn fails open.
	resp := s.Step(context.Background(), stepRequest(badTurn, 1))
	assert.False(t, resp.RetrySuggested)
	assert.True(t, resp.GiveUp)
	assert.True(t, resp.Allowed)
	assert.Empty(t, resp.DeniedReason)
	assert.Equal(t, 3, resp.Attempts)
	assert.Empty(t, resp.WorldDelta)
	assert.Equal(t, 1, resp.World.Time.Turn, "the give-up turn commits as a no-op")
	require.NotEmpty(t, resp.Guidance)
	assert.Contains(t, resp.Guidance[len(resp.Guidance)-1], "[GIVE_UP]")

	// The commit reset the ledger, so a later submission starts fresh.
	resp = s.Step(context.Background(), stepRequest(badTurn, 1))
	assert.True(t, resp.RetrySuggested)
	assert.Equal(t, 1, resp.Attempts)
}

func TestStepEndSessionResetsRetryLedger(t *testing.T) {
	s := NewStepper(nil, 2, nil)
	resp := s.Step(context.Background(), stepRequest(badTurn, 1))
	assert.Equal(t, 1, resp.Attempts)

	s.EndSession("s1")
	resp = s.Step(context.Background(), stepRequest(badTurn, 1))
	assert.Equal(t, 1, resp.Attempts)
}

func TestStepRetryDoesNotInflateStallHistory(t *testing.T) {
	s := NewStepper(nil, 2, nil)

	// Uncommitted retries add no samples to the stall window.
	for i := 0; i < 2; i++ {
		resp := s.Step(context.Background(), stepRequest(badTurn, 1))
		assert.True(t, resp.RetrySuggested)
		assert.Zero(t, resp.StallScore)
	}

	// The committed turn is the first and only sample.
	resp := s.Step(context.Background(), stepRequest(goodTurn, 1))
	assert.False(t, resp.RetrySuggested)
	assert.Zero(t, resp.StallScore)
	assert.Equal(t, StallActive, resp.StallSeverity)
}

func TestStepGeneratorFailureFallsBack(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("llm unreachable")}
	s := NewStepper(nil, 2, gen)

	resp := s.Step(context.Background(), stepRequest(badTurn, 1))

	assert.Len(t, gen.calls, 1)
	assert.False(t, resp.RetrySuggested)
	assert.False(t, resp.Allowed)
	assert.Equal(t, DeniedMissingObject, resp.DeniedReason)
	assert.Equal(t, "「コーヒー豆を挽くね」", resp.Parsed.Speech, "original speech passes through")
}

func TestStepNilWorld(t *testing.T) {
	s := NewStepper(nil, 2, nil)
	req := stepRequest(sayTurn, 1)
	req.World = nil

	resp := s.Step(context.Background(), req)
	require.NotNil(t, resp.World)
	assert.True(t, resp.Allowed)
	assert.Equal(t, "「おはよう、あゆ」", resp.Parsed.Speech)
}

func TestStepGarbageInputNeverFails(t *testing.T) {
	s := NewStepper(nil, 2, nil)
	for _, raw := range []string{"", "\x00\x01", "}}}{{{", "Thought:"} {
		resp := s.Step(context.Background(), stepRequest(raw, 1))
		assert.NotNil(t, resp.World)
		assert.NotNil(t, resp.FactCards)
		assert.NotNil(t, resp.WorldDelta)
		assert.GreaterOrEqual(t, resp.Parsed.ParseAttempts(), 1)
	}
}

func TestStepFactCardCap(t *testing.T) {
	s := NewStepper(nil, 2, nil)
	resp := s.Step(context.Background(), stepRequest(goodTurn, 1))
	assert.LessOrEqual(t, len(resp.FactCards), MaxCards)
	for _, c := range resp.FactCards {
		assert.LessOrEqual(t, len([]rune(c)), MaxCardRunes)
	}
}

func TestStepStallIntervention(t *testing.T) {
	s := NewStepper(nil, 2, nil)
	raw := "Thought: 特になし。\nOutput: 「そうだね、いい天気だね」\nAction: SAY"

	hasStallCard := func(r Response) bool {
		return len(r.FactCards) > 0 && strings.Contains(r.FactCards[0], "話題")
	}

	resp := s.Step(context.Background(), stepRequest(raw, 1))
	assert.Equal(t, StallActive, resp.StallSeverity)
	assert.False(t, hasStallCard(resp))

	// The second identical turn saturates repetition and fires a card.
	resp = s.Step(context.Background(), stepRequest(raw, 2))
	assert.InDelta(t, 0.9, resp.StallScore, 1e-9)
	assert.Equal(t, StallCritical, resp.StallSeverity)
	assert.True(t, hasStallCard(resp))

	// Cooldown: the next stalled turns get no second card.
	for turn := 3; turn < 2+CooldownTurns; turn++ {
		resp = s.Step(context.Background(), stepRequest(raw, turn))
		assert.False(t, hasStallCard(resp), "turn %d within cooldown", turn)
	}

	// Once the cooldown has elapsed the card fires again.
	resp = s.Step(context.Background(), stepRequest(raw, 2+CooldownTurns))
	assert.True(t, hasStallCard(resp))

	// Ending the session clears detector state.
	s.EndSession("s1")
	resp = s.Step(context.Background(), stepRequest(raw, 1))
	assert.Equal(t, StallActive, resp.StallSeverity)
}
