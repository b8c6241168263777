package services

import (
	"context"
	"sync"

	"github.com/duotalk/duo-talk-gm/pkg/gm"
)

// MockGenerator is a scripted implementation of gm.Generator for
// testing the in-turn retry loop without a real LLM.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, guidance []string) (string, error)

	// Scripted outputs returned in order when GenerateFunc is unset.
	Outputs []string

	// Track calls for testing
	Calls [][]string

	mu   sync.Mutex
	next int
}

// Ensure MockGenerator implements gm.Generator
var _ gm.Generator = (*MockGenerator)(nil)

// NewMockGenerator creates a mock that replays the given outputs.
func NewMockGenerator(outputs ...string) *MockGenerator {
	return &MockGenerator{Outputs: outputs}
}

// Generate records the guidance and returns the next scripted output.
// When the script runs out, the last output repeats.
func (m *MockGenerator) Generate(ctx context.Context, guidance []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]string, len(guidance))
	copy(copied, guidance)
	m.Calls = append(m.Calls, copied)

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, guidance)
	}
	if len(m.Outputs) == 0 {
		return "", nil
	}
	out := m.Outputs[m.next]
	if m.next < len(m.Outputs)-1 {
		m.next++
	}
	return out, nil
}

// CallCount returns how many times Generate was invoked.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
