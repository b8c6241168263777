package artifacts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/duotalk/duo-talk-gm/pkg/parser"
	"github.com/duotalk/duo-talk-gm/pkg/world"
)

// Writer dumps per-turn diagnostics as side-channel files: raw LLM
// text, repaired text when repair happened, parsed metadata, and one
// canonical world snapshot per session. Write failures are logged and
// swallowed; observability must never break a turn.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter returns a writer rooted at dir. An empty dir disables all
// output, which is the default outside experiments.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

func (w *Writer) enabled() bool {
	return w != nil && w.dir != ""
}

// WriteRaw records the unmodified LLM output for a turn.
func (w *Writer) WriteRaw(sessionID string, turn int, raw string) {
	if !w.enabled() {
		return
	}
	w.writeFile(sessionID, fmt.Sprintf("turn_%d_raw.txt", turn), []byte(raw))
}

// WriteParsed records the parse result, plus the repaired text when a
// repair chain ran.
func (w *Writer) WriteParsed(sessionID string, turn int, out parser.ParsedOutput) {
	if !w.enabled() {
		return
	}
	if out.FormatBreak != nil {
		repaired := out.Speech
		if out.Thought != "" {
			repaired = "Thought: " + out.Thought + "\nOutput: " + out.Speech
		}
		w.writeFile(sessionID, fmt.Sprintf("turn_%d_repaired.txt", turn), []byte(repaired))
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		w.logger.Warn("Failed to marshal parsed output artifact", "session_id", sessionID, "turn", turn, "error", err)
		return
	}
	w.writeFile(sessionID, fmt.Sprintf("turn_%d_parsed.json", turn), data)
}

// WriteWorldSnapshot records the canonical world JSON used for
// reproducibility hashing. Called once per session.
func (w *Writer) WriteWorldSnapshot(sessionID string, ws *world.WorldState) {
	if !w.enabled() {
		return
	}
	data, err := ws.CanonicalJSON()
	if err != nil {
		w.logger.Warn("Failed to canonicalize world snapshot", "session_id", sessionID, "error", err)
		return
	}
	w.writeFile(sessionID, "world_canonical.json", data)
}

func (w *Writer) writeFile(sessionID, name string, data []byte) {
	dir := filepath.Join(w.dir, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.logger.Warn("Failed to create artifact dir", "dir", dir, "error", err)
		return
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		w.logger.Warn("Failed to write artifact", "path", path, "error", err)
	}
}
