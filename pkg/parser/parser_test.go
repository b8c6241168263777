package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrict(t *testing.T) {
	t.Run("thought, output and action line", func(t *testing.T) {
		raw := "Thought: コーヒーを淹れよう。\nOutput: 「いい匂いになるよ」\nAction: GET(マグカップ) | USE(コーヒーメーカー)"
		p := Parse(raw)

		require.Nil(t, p.FormatBreak)
		assert.Equal(t, 1, p.ParseAttempts())
		assert.Equal(t, "コーヒーを淹れよう。", p.Thought)
		assert.Equal(t, "「いい匂いになるよ」", p.Speech)
		require.Len(t, p.ActionIntents, 2)
		assert.Equal(t, ActionIntent{Type: IntentGet, Target: "マグカップ"}, p.ActionIntents[0])
		assert.Equal(t, ActionIntent{Type: IntentUse, Target: "コーヒーメーカー"}, p.ActionIntents[1])
	})

	t.Run("multiline thought and output", func(t *testing.T) {
		raw := "Thought: まず考える。\nもう少し考える。\nOutput: 「そうだね」\n「うん」"
		p := Parse(raw)

		require.Nil(t, p.FormatBreak)
		assert.Equal(t, "まず考える。\nもう少し考える。", p.Thought)
		assert.Equal(t, "「そうだね」\n「うん」", p.Speech)
	})

	t.Run("target with detail", func(t *testing.T) {
		p := Parse("Thought: t\nOutput: s\nAction: PUT(マグカップ, テーブルの上)")
		require.Len(t, p.ActionIntents, 1)
		assert.Equal(t, "マグカップ", p.ActionIntents[0].Target)
		assert.Equal(t, "テーブルの上", p.ActionIntents[0].Detail)
	})

	t.Run("unknown marker types are skipped", func(t *testing.T) {
		p := Parse("Thought: t\nOutput: s\nAction: DANCE(テーブル) | SAY")
		require.Len(t, p.ActionIntents, 1)
		assert.Equal(t, IntentSay, p.ActionIntents[0].Type)
	})

	t.Run("explicit empty action line suppresses mining", func(t *testing.T) {
		p := Parse("Thought: t\nOutput: *マグカップを取る*\nAction: ")
		require.Nil(t, p.FormatBreak)
		assert.Empty(t, p.ActionIntents)
	})
}

func TestParseRepairs(t *testing.T) {
	t.Run("markdown fences are stripped", func(t *testing.T) {
		raw := "```\nThought: t\nOutput: 「おはよう」\n```"
		p := Parse(raw)

		require.NotNil(t, p.FormatBreak)
		assert.Equal(t, RepairStrip, p.FormatBreak.RepairMethod)
		assert.Equal(t, 1, p.FormatBreak.RepairSteps)
		assert.Equal(t, 2, p.ParseAttempts())
		assert.Equal(t, "「おはよう」", p.Speech)
	})

	t.Run("leading byte order mark is stripped", func(t *testing.T) {
		raw := "\uFEFFThought: t\nOutput: 「おはよう」"
		p := Parse(raw)

		require.NotNil(t, p.FormatBreak)
		assert.Equal(t, RepairStrip, p.FormatBreak.RepairMethod)
		assert.Equal(t, "「おはよう」", p.Speech)
	})

	t.Run("control characters are stripped", func(t *testing.T) {
		raw := "\x00Thought: t\nOutput: 「おはよう」"
		p := Parse(raw)

		require.NotNil(t, p.FormatBreak)
		assert.Equal(t, RepairStrip, p.FormatBreak.RepairMethod)
		assert.Equal(t, "「おはよう」", p.Speech)
	})

	t.Run("garbage after the action line is cut", func(t *testing.T) {
		raw := "Thought: t\nOutput: 「おはよう」\nAction: SAY\nI hope that helps!"
		p := Parse(raw)

		require.NotNil(t, p.FormatBreak)
		assert.Equal(t, RepairTrailingCut, p.FormatBreak.RepairMethod)
		assert.Equal(t, BreakTrailingGarbage, p.FormatBreak.BreakType)
		assert.Equal(t, 2, p.FormatBreak.RepairSteps)
		assert.Equal(t, 3, p.ParseAttempts())
		assert.Equal(t, "「おはよう」", p.Speech)
		require.Len(t, p.ActionIntents, 1)
		assert.Equal(t, IntentSay, p.ActionIntents[0].Type)
	})

	t.Run("untagged text falls back to speech", func(t *testing.T) {
		raw := "「おはよう、あゆ」"
		p := Parse(raw)

		require.NotNil(t, p.FormatBreak)
		assert.Equal(t, RepairFallback, p.FormatBreak.RepairMethod)
		assert.Equal(t, BreakUnstructured, p.FormatBreak.BreakType)
		assert.Equal(t, 4, p.ParseAttempts())
		assert.Empty(t, p.Thought)
		assert.Equal(t, "「おはよう、あゆ」", p.Speech)
	})

	t.Run("output tag without thought tag is salvaged", func(t *testing.T) {
		raw := "preamble the model wrote\nOutput: 「おはよう」"
		p := Parse(raw)

		require.NotNil(t, p.FormatBreak)
		assert.Equal(t, RepairFallback, p.FormatBreak.RepairMethod)
		assert.Equal(t, BreakMissingThoughtTag, p.FormatBreak.BreakType)
		assert.Equal(t, "「おはよう」", p.Speech)
	})

	t.Run("thought tag without output tag is classified", func(t *testing.T) {
		raw := "Thought: 考え中"
		p := Parse(raw)

		require.NotNil(t, p.FormatBreak)
		assert.Equal(t, BreakMissingOutputTags, p.FormatBreak.BreakType)
	})
}

func TestParseNeverFails(t *testing.T) {
	inputs := []string{
		"",
		"   \n\t\n",
		"```\n```",
		"\x01\x02\x7f",
		"Output:",
		"Thought: Output: Action:",
		"|||(((",
	}
	for _, raw := range inputs {
		p := Parse(raw)
		assert.GreaterOrEqual(t, p.ParseAttempts(), 1)
		assert.NotNil(t, p.ActionIntents)
	}
}

func TestMineIntents(t *testing.T) {
	tests := []struct {
		name   string
		speech string
		want   ActionIntent
	}{
		{"get", "「これ借りるね」*マグカップを取る*", ActionIntent{Type: IntentGet, Target: "マグカップ", Detail: "マグカップを取る"}},
		{"get with hand", "*タオルを手に取る*", ActionIntent{Type: IntentGet, Target: "タオル", Detail: "タオルを手に取る"}},
		{"move", "「向こうで待ってる」*リビングへ移動する*", ActionIntent{Type: IntentMove, Target: "リビング", Detail: "リビングへ移動する"}},
		{"move go", "*キッチンに行く*", ActionIntent{Type: IntentMove, Target: "キッチン", Detail: "キッチンに行く"}},
		{"put", "*マグカップを戻す*", ActionIntent{Type: IntentPut, Target: "マグカップ", Detail: "マグカップを戻す"}},
		{"use", "*コーヒーメーカーを使う*", ActionIntent{Type: IntentUse, Target: "コーヒーメーカー", Detail: "コーヒーメーカーを使う"}},
		{"drink", "*コーヒーを飲む*", ActionIntent{Type: IntentEatDrink, Target: "コーヒー", Detail: "コーヒーを飲む"}},
		{"unmatched span becomes emote", "*くすっと笑う*", ActionIntent{Type: IntentEmote, Detail: "くすっと笑う"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intents := mineIntents(tt.speech)
			require.Len(t, intents, 1)
			assert.Equal(t, tt.want, intents[0])
		})
	}

	t.Run("multiple spans in one speech", func(t *testing.T) {
		intents := mineIntents("*マグカップを取る*「いれるよ」*コーヒーメーカーを使う*")
		require.Len(t, intents, 2)
		assert.Equal(t, IntentGet, intents[0].Type)
		assert.Equal(t, IntentUse, intents[1].Type)
	})

	t.Run("plain speech mines nothing", func(t *testing.T) {
		assert.Empty(t, mineIntents("「おはよう。今日は晴れだね」"))
	})
}

func TestParseIntentType(t *testing.T) {
	for _, s := range []string{"SAY", "ASK", "ANSWER", "EMOTE", "MOVE", "GET", "PUT", "USE", "EAT_DRINK"} {
		got, ok := ParseIntentType(s)
		assert.True(t, ok, s)
		assert.Equal(t, IntentType(s), got)
	}
	_, ok := ParseIntentType("TELEPORT")
	assert.False(t, ok)
}

func TestIsConversational(t *testing.T) {
	assert.True(t, IntentSay.IsConversational())
	assert.True(t, IntentEmote.IsConversational())
	assert.False(t, IntentMove.IsConversational())
	assert.False(t, IntentEatDrink.IsConversational())
}
