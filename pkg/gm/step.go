package gm

import (
	"context"
	"log/slog"
	"sync"

	"github.com/duotalk/duo-talk-gm/pkg/parser"
	"github.com/duotalk/duo-talk-gm/pkg/world"
)

// Generator regenerates LLM output with guidance injected into the
// prompt. It is an optional capability: without one the stepper cannot
// retry in-turn and instead asks the caller to regenerate.
type Generator interface {
	Generate(ctx context.Context, guidance []string) (string, error)
}

// Request is one turn of raw LLM output to referee.
type Request struct {
	SessionID  string            `json:"session_id"`
	TurnNumber int               `json:"turn_number"`
	Speaker    string            `json:"speaker"`
	RawOutput  string            `json:"raw_output"`
	World      *world.WorldState `json:"world_state"`
}

// Response is the structured verdict for one turn. WorldDelta holds the
// patch ops applied to produce World; when nothing was allowed the
// delta is empty and World equals the input state.
type Response struct {
	Parsed         parser.ParsedOutput `json:"parsed"`
	Allowed        bool                `json:"allowed"`
	DeniedReason   DeniedReason        `json:"denied_reason,omitempty"`
	Judgments      []Judgment          `json:"judgments,omitempty"`
	WorldDelta     []PatchOp           `json:"world_delta"`
	World          *world.WorldState   `json:"world_state"`
	WorldHash      string              `json:"world_hash,omitempty"`
	ChangeSummary  string              `json:"change_summary,omitempty"`
	StallScore     float64             `json:"stall_score"`
	StallSeverity  StallSeverity       `json:"stall_severity"`
	FactCards      []string            `json:"fact_cards"`
	GiveUp         bool                `json:"give_up,omitempty"`
	RetrySuggested bool                `json:"retry_suggested,omitempty"`
	Guidance       []string            `json:"guidance,omitempty"`
	Attempts       int                 `json:"attempts"`
}

// Stepper composes parser, preflight, judge, updater, stall detector
// and card generation into one turn-processing entry point. Step never
// returns an error and never panics: a crashed turn would take the
// whole conversation down with it.
type Stepper struct {
	logger    *slog.Logger
	preflight *Preflight
	updater   Updater
	stall     StallDetector
	generator Generator

	mu          sync.Mutex
	history     map[string][]TurnSample
	lastTrigger map[string]int
}

// NewStepper wires a stepper. generator may be nil; retryBudget <= 0
// selects the default.
func NewStepper(logger *slog.Logger, retryBudget int, generator Generator) *Stepper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stepper{
		logger:      logger,
		preflight:   NewPreflight(retryBudget),
		generator:   generator,
		history:     make(map[string][]TurnSample),
		lastTrigger: make(map[string]int),
	}
}

// Step processes one turn. Any panic in a component is recovered and
// downgraded to a no-op pass with the give-up flag set: the world is
// returned unchanged and the speech passes through.
func (s *Stepper) Step(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("step recovered from panic",
				"session_id", req.SessionID,
				"turn", req.TurnNumber,
				"panic", r)
			resp = Response{
				Parsed:        parser.Parse(req.RawOutput),
				Allowed:       true,
				World:         req.World,
				GiveUp:        true,
				StallSeverity: StallActive,
				Attempts:      1,
			}
		}
	}()

	if req.World == nil {
		req.World = &world.WorldState{
			Locations:  map[string]world.Location{},
			Objects:    map[string]world.Object{},
			Characters: map[string]world.Character{},
		}
	}

	out := parser.Parse(req.RawOutput)
	if out.FormatBreak != nil {
		s.logger.Debug("output repaired",
			"session_id", req.SessionID,
			"turn", req.TurnNumber,
			"break_type", out.FormatBreak.BreakType,
			"repair_method", out.FormatBreak.RepairMethod)
	}

	var pf PreflightResult
	for {
		pf = s.preflight.Check(req.SessionID, req.TurnNumber, out, req.World, req.Speaker)
		if pf.Verdict != VerdictSoftRetrySuggested {
			break
		}

		guidance := findingGuidance(pf.Findings)
		if s.generator == nil {
			// The ledger is kept so resubmissions of the same turn
			// consume the budget and eventually fail open.
			return s.emit(req, out, pf, Response{
				RetrySuggested: true,
				Guidance:       guidance,
			})
		}

		regenerated, err := s.generator.Generate(ctx, guidance)
		if err != nil {
			s.logger.Warn("regeneration failed, judging original output",
				"session_id", req.SessionID,
				"turn", req.TurnNumber,
				"error", err)
			break
		}
		out = parser.Parse(regenerated)
	}
	s.preflight.Reset(req.SessionID, req.TurnNumber)

	return s.emit(req, out, pf, Response{})
}

// emit runs the judged output through the updater and stall detector
// and assembles the final response. base carries retry-framing fields
// set by Step.
func (s *Stepper) emit(req Request, out parser.ParsedOutput, pf PreflightResult, base Response) Response {
	resp := base
	resp.Parsed = out
	resp.Attempts = pf.Attempt
	resp.Judgments = pf.Judgments
	resp.GiveUp = resp.GiveUp || pf.GiveUp

	resp.Allowed = true
	for _, j := range pf.Judgments {
		if !j.Allowed {
			resp.Allowed = false
			resp.DeniedReason = j.DeniedReason
			break
		}
	}
	// A give-up turn passes regardless: denied intents are simply not
	// applied, and the guidance card explains what went wrong.
	if pf.GiveUp {
		resp.Allowed = true
		resp.DeniedReason = ""
	}

	next := req.World
	if !resp.RetrySuggested {
		applied, ops, summary := s.updater.Apply(req.World, pf.Judgments, req.Speaker)
		next = s.updater.AdvanceTurn(applied)
		resp.WorldDelta = ops
		resp.ChangeSummary = summary
	}
	resp.World = next
	if hash, err := next.Hash(); err == nil {
		resp.WorldHash = hash
	} else {
		s.logger.Error("world hash failed", "session_id", req.SessionID, "error", err)
	}

	stallCard := s.observeStall(req, out, &resp)

	resp.FactCards = FactCards(next, req.Speaker)
	if stallCard != "" {
		resp.FactCards = append([]string{stallCard}, resp.FactCards...)
	}
	if pf.GiveUp && pf.Card != "" {
		resp.Guidance = append(resp.Guidance, pf.Card)
	}
	if len(resp.FactCards) > MaxCards {
		resp.FactCards = resp.FactCards[:MaxCards]
	}
	if resp.FactCards == nil {
		resp.FactCards = []string{}
	}
	if resp.WorldDelta == nil {
		resp.WorldDelta = []PatchOp{}
	}
	return resp
}

// observeStall records the turn sample, scores the window, and returns
// an intervention card when one is due. Uncommitted retry responses are
// scored against the existing history without adding a sample, so one
// logical turn resubmitted over HTTP is only counted once.
func (s *Stepper) observeStall(req Request, out parser.ParsedOutput, resp *Response) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.history[req.SessionID]
	if !resp.RetrySuggested {
		hist = append(hist, TurnSample{Speech: out.Speech, DeltaOps: len(resp.WorldDelta)})
		if len(hist) > WindowTurns {
			hist = hist[len(hist)-WindowTurns:]
		}
	}

	score := s.stall.Score(hist)
	resp.StallScore = score.Total
	resp.StallSeverity = s.stall.Severity(score.Total)

	last, seen := s.lastTrigger[req.SessionID]
	if !seen {
		last = -1
	}

	var card string
	if !resp.RetrySuggested && s.stall.ShouldTrigger(hist, req.TurnNumber, last) {
		card = StallCard(resp.World, req.Speaker, resp.StallSeverity)
		s.lastTrigger[req.SessionID] = req.TurnNumber
		hist[len(hist)-1].GMInjected = true
		s.logger.Info("stall intervention",
			"session_id", req.SessionID,
			"turn", req.TurnNumber,
			"score", score.Total,
			"severity", resp.StallSeverity)
	}

	s.history[req.SessionID] = hist
	return card
}

// EndSession drops per-session detector and retry state.
func (s *Stepper) EndSession(sessionID string) {
	s.mu.Lock()
	delete(s.history, sessionID)
	delete(s.lastTrigger, sessionID)
	s.mu.Unlock()
	s.preflight.ResetSession(sessionID)
}

// findingGuidance turns preflight findings into retry guidance strings.
func findingGuidance(findings []Finding) []string {
	guidance := make([]string, 0, len(findings))
	for _, f := range findings {
		guidance = append(guidance, clipCard(f.Message))
	}
	if len(guidance) > MaxCards {
		guidance = guidance[:MaxCards]
	}
	return guidance
}
