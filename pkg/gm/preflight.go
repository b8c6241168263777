package gm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/duotalk/duo-talk-gm/pkg/parser"
	"github.com/duotalk/duo-talk-gm/pkg/world"
)

// Verdict is the preflight outcome for one generation attempt.
type Verdict string

const (
	VerdictOK                 Verdict = "OK"
	VerdictSoftRetrySuggested Verdict = "SOFT_RETRY_SUGGESTED"
	VerdictHardDeny           Verdict = "HARD_DENY"
)

// giveUpPrefix marks guidance issued after the retry budget ran out.
const giveUpPrefix = "[GIVE_UP]"

// DefaultRetryBudget is how many regenerations preflight may request
// per (session, turn) before it gives up and accepts the output as-is.
const DefaultRetryBudget = 2

// Finding is one problem preflight noticed in a generation.
type Finding struct {
	Intent  parser.ActionIntent `json:"intent"`
	Reason  DeniedReason        `json:"reason"`
	Message string              `json:"message"`
}

// PreflightResult summarizes the check of one generation attempt.
// When GiveUp is set the output must still be accepted: denied intents
// are dropped, the speech passes through, and Card carries guidance for
// the next turn's prompt. Preflight fails open, never closed.
type PreflightResult struct {
	Verdict   Verdict     `json:"verdict"`
	Findings  []Finding   `json:"findings,omitempty"`
	Judgments []Judgment  `json:"judgments,omitempty"`
	Attempt   int         `json:"attempt"`
	GiveUp    bool        `json:"give_up,omitempty"`
	Card      string      `json:"card,omitempty"`
}

// Preflight checks parsed output against the world before acceptance
// and meters regeneration requests. The attempt ledger is keyed by
// (session, turn) so budgets never leak across turns or sessions.
type Preflight struct {
	budget int

	mu       sync.Mutex
	attempts map[string]int
}

// NewPreflight returns a checker with the given retry budget. A budget
// of zero or less falls back to DefaultRetryBudget.
func NewPreflight(budget int) *Preflight {
	if budget <= 0 {
		budget = DefaultRetryBudget
	}
	return &Preflight{
		budget:   budget,
		attempts: make(map[string]int),
	}
}

// Check judges every world-directed intent in the output and decides
// whether the caller should regenerate. Each call consumes one attempt
// for the (session, turn) pair.
func (p *Preflight) Check(sessionID string, turn int, out parser.ParsedOutput, w *world.WorldState, speakerID string) PreflightResult {
	key := fmt.Sprintf("%s#%d", sessionID, turn)

	p.mu.Lock()
	p.attempts[key]++
	attempt := p.attempts[key]
	p.mu.Unlock()

	res := PreflightResult{Verdict: VerdictOK, Attempt: attempt}
	for _, intent := range out.ActionIntents {
		j := Judge(intent, w, speakerID)
		res.Judgments = append(res.Judgments, j)
		if !j.Allowed {
			res.Findings = append(res.Findings, Finding{
				Intent:  intent,
				Reason:  j.DeniedReason,
				Message: j.Message,
			})
		}
	}

	if len(res.Findings) == 0 {
		return res
	}

	if attempt > p.budget {
		res.GiveUp = true
		res.Card = giveUpCard(res.Findings)
		return res
	}

	res.Verdict = VerdictSoftRetrySuggested
	return res
}

// Reset clears the attempt ledger for a (session, turn) pair. The step
// orchestrator calls this once a turn is committed.
func (p *Preflight) Reset(sessionID string, turn int) {
	key := fmt.Sprintf("%s#%d", sessionID, turn)
	p.mu.Lock()
	delete(p.attempts, key)
	p.mu.Unlock()
}

// ResetSession clears every attempt entry for a session.
func (p *Preflight) ResetSession(sessionID string) {
	prefix := sessionID + "#"
	p.mu.Lock()
	for key := range p.attempts {
		if strings.HasPrefix(key, prefix) {
			delete(p.attempts, key)
		}
	}
	p.mu.Unlock()
}

// giveUpCard summarizes unresolved findings as guidance for the next
// prompt, prefixed so downstream prompt assembly can spot it.
func giveUpCard(findings []Finding) string {
	if len(findings) == 0 {
		return giveUpPrefix + " 行動は見送られました"
	}
	return fmt.Sprintf("%s %s", giveUpPrefix, findings[0].Message)
}
