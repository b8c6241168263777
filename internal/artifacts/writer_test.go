package artifacts

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duotalk/duo-talk-gm/pkg/parser"
	"github.com/duotalk/duo-talk-gm/pkg/scenario"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriterRaw(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, testLogger())

	w.WriteRaw("sess1", 3, "Thought: t\nOutput: 「おはよう」")

	data, err := os.ReadFile(filepath.Join(dir, "sess1", "turn_3_raw.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "おはよう")
}

func TestWriterParsed(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, testLogger())

	t.Run("clean parse writes only metadata", func(t *testing.T) {
		out := parser.Parse("Thought: t\nOutput: 「おはよう」")
		require.Nil(t, out.FormatBreak)
		w.WriteParsed("sess1", 1, out)

		data, err := os.ReadFile(filepath.Join(dir, "sess1", "turn_1_parsed.json"))
		require.NoError(t, err)
		var decoded parser.ParsedOutput
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "「おはよう」", decoded.Speech)

		_, err = os.Stat(filepath.Join(dir, "sess1", "turn_1_repaired.txt"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("repaired parse also writes the repaired text", func(t *testing.T) {
		out := parser.Parse("```\nThought: t\nOutput: 「おはよう」\n```")
		require.NotNil(t, out.FormatBreak)
		w.WriteParsed("sess1", 2, out)

		data, err := os.ReadFile(filepath.Join(dir, "sess1", "turn_2_repaired.txt"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "Output: 「おはよう」")
	})
}

func TestWriterWorldSnapshot(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, testLogger())

	w.WriteWorldSnapshot("sess1", scenario.KitchenMorning())

	data, err := os.ReadFile(filepath.Join(dir, "sess1", "world_canonical.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "キッチン")
}

func TestWriterDisabled(t *testing.T) {
	w := NewWriter("", testLogger())

	// No directory, no files, no panics.
	w.WriteRaw("sess1", 1, "raw")
	w.WriteParsed("sess1", 1, parser.ParsedOutput{Speech: "s"})
	w.WriteWorldSnapshot("sess1", scenario.KitchenMorning())

	var nilWriter *Writer
	nilWriter.WriteRaw("sess1", 1, "raw")
}
