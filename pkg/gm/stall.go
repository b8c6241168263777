package gm

// Stall detection watches the last few turns of a session for signs
// that the conversation has collapsed into repetition. Scoring is a
// fixed weighted sum so identical transcripts always score identically.

const (
	weightSpeechRepeat = 0.70
	weightNoWorldDelta = 0.20
	weightShortSpeech  = 0.10

	// WindowTurns is how many recent turns feed the score.
	WindowTurns = 5

	// CooldownTurns is the minimum gap between two stall interventions.
	CooldownTurns = 5

	// ShortResponseRunes is the strict upper bound below which a speech
	// counts as short.
	ShortResponseRunes = 10

	thresholdWarning  = 0.3
	thresholdStalled  = 0.8
	thresholdCritical = 0.9

	// severityEpsilon absorbs floating point error in the weighted sum
	// so a fully saturated score still reaches the top bucket.
	severityEpsilon = 1e-9
)

// StallSeverity buckets a stall score.
type StallSeverity string

const (
	StallActive   StallSeverity = "active"
	StallWarning  StallSeverity = "warning"
	StallStalled  StallSeverity = "stalled"
	StallCritical StallSeverity = "critical"
)

// TurnSample is the per-turn evidence the detector scores.
type TurnSample struct {
	Speech     string `json:"speech"`
	DeltaOps   int    `json:"delta_ops"`
	GMInjected bool   `json:"gm_injected"`
}

// StallScore is the weighted total plus its components, kept separate
// for logging and for tests that pin the arithmetic.
type StallScore struct {
	Total        float64 `json:"total"`
	SpeechRepeat float64 `json:"speech_repeat"`
	NoWorldDelta float64 `json:"no_world_delta"`
	ShortSpeech  float64 `json:"short_speech"`
}

// StallDetector scores a window of recent turns. It is stateless; the
// caller owns the per-session sample history.
type StallDetector struct{}

// Score computes the weighted stall score over the trailing window of
// samples. Fewer than two samples always score zero on repetition.
func (d StallDetector) Score(samples []TurnSample) StallScore {
	window := samples
	if len(window) > WindowTurns {
		window = window[len(window)-WindowTurns:]
	}
	if len(window) == 0 {
		return StallScore{}
	}

	var s StallScore
	s.SpeechRepeat = repeatComponent(window)
	s.NoWorldDelta = fraction(window, func(t TurnSample) bool { return t.DeltaOps == 0 })
	s.ShortSpeech = fraction(window, func(t TurnSample) bool {
		return len([]rune(t.Speech)) < ShortResponseRunes
	})
	s.Total = weightSpeechRepeat*s.SpeechRepeat +
		weightNoWorldDelta*s.NoWorldDelta +
		weightShortSpeech*s.ShortSpeech
	return s
}

// Severity buckets a total score against the fixed thresholds.
func (d StallDetector) Severity(total float64) StallSeverity {
	switch {
	case total >= thresholdCritical-severityEpsilon:
		return StallCritical
	case total >= thresholdStalled-severityEpsilon:
		return StallStalled
	case total >= thresholdWarning-severityEpsilon:
		return StallWarning
	default:
		return StallActive
	}
}

// ShouldTrigger reports whether an intervention card is due: severity
// at least stalled, and no intervention within the cooldown window.
// lastTrigger is the turn of the previous intervention, or a negative
// value if none happened yet.
func (d StallDetector) ShouldTrigger(samples []TurnSample, currentTurn, lastTrigger int) bool {
	score := d.Score(samples)
	sev := d.Severity(score.Total)
	if sev != StallStalled && sev != StallCritical {
		return false
	}
	if lastTrigger >= 0 && currentTurn-lastTrigger < CooldownTurns {
		return false
	}
	return true
}

// repeatComponent is the maximum bigram similarity between the latest
// speech and any earlier speech in the window. Turns that carried a GM
// intervention are skipped so the detector does not score its own
// guidance as repetition.
func repeatComponent(window []TurnSample) float64 {
	if len(window) < 2 {
		return 0
	}
	latest := window[len(window)-1].Speech
	var max float64
	for _, t := range window[:len(window)-1] {
		if t.GMInjected {
			continue
		}
		if sim := diceSimilarity(latest, t.Speech); sim > max {
			max = sim
		}
	}
	return max
}

func fraction(window []TurnSample, pred func(TurnSample) bool) float64 {
	n := 0
	for _, t := range window {
		if pred(t) {
			n++
		}
	}
	return float64(n) / float64(len(window))
}

// diceSimilarity is the Sørensen–Dice coefficient over rune bigrams.
// Rune bigrams keep the measure meaningful for Japanese text, where
// word boundaries are not marked.
func diceSimilarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	ba := runeBigrams(a)
	bb := runeBigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}
	overlap := 0
	for bg, n := range ba {
		if m, ok := bb[bg]; ok {
			if m < n {
				overlap += m
			} else {
				overlap += n
			}
		}
	}
	total := 0
	for _, n := range ba {
		total += n
	}
	for _, n := range bb {
		total += n
	}
	return 2 * float64(overlap) / float64(total)
}

func runeBigrams(s string) map[string]int {
	runes := []rune(s)
	grams := make(map[string]int)
	for i := 0; i+1 < len(runes); i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}
