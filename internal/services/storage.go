package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/duotalk/duo-talk-gm/pkg/scenario"
	"github.com/duotalk/duo-talk-gm/pkg/world"
)

// Session is one refereed conversation: a scenario instance plus the
// world state it has evolved into. TurnNumber is the next turn to be
// processed.
type Session struct {
	ID           uuid.UUID         `json:"id"`
	ScenarioID   string            `json:"scenario_id"`
	ScenarioHash string            `json:"scenario_hash"`
	TurnNumber   int               `json:"turn_number"`
	World        *world.WorldState `json:"world_state"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Storage defines session persistence plus read access to the scenario
// registry. Load returns (nil, nil) when the session does not exist.
type Storage interface {
	Ping(ctx context.Context) error
	Close() error

	SaveSession(ctx context.Context, id uuid.UUID, s *Session) error
	LoadSession(ctx context.Context, id uuid.UUID) (*Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error

	ListScenarios(ctx context.Context) ([]scenario.Entry, error)
	LoadScenario(ctx context.Context, scenarioID string) (*world.WorldState, scenario.Entry, string, error)
}
