package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/duotalk/duo-talk-gm/pkg/scenario"
	"github.com/duotalk/duo-talk-gm/pkg/world"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	sessions  map[string]*Session
	pingError error

	LoadScenarioFunc func(ctx context.Context, scenarioID string) (*world.WorldState, scenario.Entry, string, error)
	ListScenariosFn  func(ctx context.Context) ([]scenario.Entry, error)
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		sessions: make(map[string]*Session),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.pingError = err
}

func (m *MockStorage) Ping(ctx context.Context) error {
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveSession(ctx context.Context, id uuid.UUID, s *Session) error {
	if s == nil {
		return errors.New("session cannot be nil")
	}
	m.sessions[id.String()] = s
	return nil
}

func (m *MockStorage) LoadSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	s, exists := m.sessions[id.String()]
	if !exists {
		return nil, nil // Return nil for not found
	}
	return s, nil
}

func (m *MockStorage) DeleteSession(ctx context.Context, id uuid.UUID) error {
	delete(m.sessions, id.String())
	return nil
}

func (m *MockStorage) ListScenarios(ctx context.Context) ([]scenario.Entry, error) {
	if m.ListScenariosFn != nil {
		return m.ListScenariosFn(ctx)
	}
	return []scenario.Entry{{ScenarioID: scenario.BuiltinKitchenMorning}}, nil
}

func (m *MockStorage) LoadScenario(ctx context.Context, scenarioID string) (*world.WorldState, scenario.Entry, string, error) {
	if m.LoadScenarioFunc != nil {
		return m.LoadScenarioFunc(ctx, scenarioID)
	}
	if scenarioID != scenario.BuiltinKitchenMorning {
		return nil, scenario.Entry{}, "", errors.New("scenario not found")
	}
	w := scenario.KitchenMorning()
	hash, err := w.Hash()
	if err != nil {
		return nil, scenario.Entry{}, "", err
	}
	return w, scenario.Entry{ScenarioID: scenarioID}, hash, nil
}
