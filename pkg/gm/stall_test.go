package gm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func repeatSamples(speech string, n, deltaOps int) []TurnSample {
	samples := make([]TurnSample, n)
	for i := range samples {
		samples[i] = TurnSample{Speech: speech, DeltaOps: deltaOps}
	}
	return samples
}

func TestStallScore(t *testing.T) {
	d := StallDetector{}

	t.Run("empty history scores zero", func(t *testing.T) {
		assert.Equal(t, StallScore{}, d.Score(nil))
	})

	t.Run("identical speeches with no deltas score 0.9", func(t *testing.T) {
		s := d.Score(repeatSamples("「そうだね、いい天気だね」", 5, 0))
		assert.InDelta(t, 1.0, s.SpeechRepeat, 1e-9)
		assert.InDelta(t, 1.0, s.NoWorldDelta, 1e-9)
		assert.InDelta(t, 0.0, s.ShortSpeech, 1e-9)
		assert.InDelta(t, 0.9, s.Total, 1e-9)
		assert.Equal(t, StallCritical, d.Severity(s.Total))
	})

	t.Run("distinct short speeches with no deltas score 0.30", func(t *testing.T) {
		samples := []TurnSample{
			{Speech: "あ"},
			{Speech: "うん"},
			{Speech: "ねえ"},
			{Speech: "ふふ"},
			{Speech: "そっか"},
		}
		s := d.Score(samples)
		assert.InDelta(t, 0.0, s.SpeechRepeat, 1e-9)
		assert.InDelta(t, 0.30, s.Total, 1e-9)
		assert.Equal(t, StallWarning, d.Severity(s.Total))
	})

	t.Run("varied conversation with deltas stays active", func(t *testing.T) {
		samples := []TurnSample{
			{Speech: "「おはよう、今日は天気がいいね」", DeltaOps: 1},
			{Speech: "「コーヒー淹れるけど飲む?」", DeltaOps: 3},
			{Speech: "「ありがとう、いただくよ。テレビつけようか」", DeltaOps: 1},
			{Speech: "「ニュース見たい番組あるんだよね」", DeltaOps: 0},
		}
		s := d.Score(samples)
		assert.Less(t, s.Total, 0.3)
		assert.Equal(t, StallActive, d.Severity(s.Total))
	})

	t.Run("only the trailing window counts", func(t *testing.T) {
		old := repeatSamples("「同じ話」", 10, 0)
		fresh := []TurnSample{
			{Speech: "「まったく別の新しい話題について話そうよ」", DeltaOps: 2},
		}
		s := d.Score(append(old, fresh...))
		// The latest speech matches nothing recent, so repetition is low.
		assert.Less(t, s.SpeechRepeat, 0.5)
	})

	t.Run("gm injected turns are skipped for repetition", func(t *testing.T) {
		samples := []TurnSample{
			{Speech: "「話題を変えよう」", GMInjected: true},
			{Speech: "「話題を変えよう」"},
		}
		s := d.Score(samples)
		assert.InDelta(t, 0.0, s.SpeechRepeat, 1e-9)
	})
}

func TestStallSeverity(t *testing.T) {
	d := StallDetector{}
	assert.Equal(t, StallActive, d.Severity(0.0))
	assert.Equal(t, StallActive, d.Severity(0.29))
	assert.Equal(t, StallWarning, d.Severity(0.3))
	assert.Equal(t, StallStalled, d.Severity(0.8))
	assert.Equal(t, StallCritical, d.Severity(0.9))
	assert.Equal(t, StallCritical, d.Severity(1.0))

	// A fully saturated weighted sum accumulates float error and lands
	// just below 0.9; it must still bucket critical.
	saturated := weightSpeechRepeat*1 + weightNoWorldDelta*1 + weightShortSpeech*1
	assert.Equal(t, StallCritical, d.Severity(saturated))
}

func TestShouldTrigger(t *testing.T) {
	d := StallDetector{}
	stalled := repeatSamples("「同じことばかり」", 5, 0)

	t.Run("fires on a stalled window", func(t *testing.T) {
		assert.True(t, d.ShouldTrigger(stalled, 10, -1))
	})

	t.Run("cooldown suppresses a second trigger", func(t *testing.T) {
		assert.False(t, d.ShouldTrigger(stalled, 10, 7))
		assert.True(t, d.ShouldTrigger(stalled, 12, 7))
	})

	t.Run("healthy window never fires", func(t *testing.T) {
		healthy := []TurnSample{
			{Speech: "「おはよう」", DeltaOps: 1},
			{Speech: "「コーヒー飲もうか、それともお茶にする?」", DeltaOps: 2},
		}
		assert.False(t, d.ShouldTrigger(healthy, 10, -1))
	})
}

func TestDiceSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, diceSimilarity("おはようございます", "おはようございます"), 1e-9)
	assert.InDelta(t, 0.0, diceSimilarity("", ""), 1e-9)
	assert.InDelta(t, 0.0, diceSimilarity("あいうえお", "かきくけこ"), 1e-9)

	sim := diceSimilarity("おはようございます", "おはようございました")
	assert.Greater(t, sim, 0.5)
	assert.Less(t, sim, 1.0)

	// Single runes yield no bigrams.
	assert.InDelta(t, 0.0, diceSimilarity("あ", "い"), 1e-9)
}

func TestStallCards(t *testing.T) {
	// FactCards and StallCard live beside the detector; pin their caps here.
	long := strings.Repeat("あ", 300)
	clipped := clipCard(long)
	assert.Len(t, []rune(clipped), MaxCardRunes)
	assert.True(t, strings.HasSuffix(clipped, "…"))
}
