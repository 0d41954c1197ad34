package session

import (
	"time"

	"github.com/wricardo/circuit-challenge/game/engine"
)

// RacePersistence defines the interface for persisting races
type RacePersistence interface {
	// Save persists a race to storage
	Save(data *PersistedRaceData) error

	// Load retrieves a race from storage by ID
	Load(id string) (*PersistedRaceData, error)

	// Delete removes a race from storage
	Delete(id string) error

	// ListAll returns all persisted race IDs
	ListAll() ([]string, error)

	// Exists checks if a race exists in storage
	Exists(id string) bool
}

// PersistedRaceData represents the JSON structure for persisted races.
// Open questions are not persisted; a restored race starts stopped with
// every prompt closed.
type PersistedRaceData struct {
	ID             string          `json:"id"`
	ConfigName     string          `json:"config_name"`
	CreatedAt      time.Time       `json:"created_at"`
	LastAccessedAt time.Time       `json:"last_accessed_at"`
	Snapshot       engine.Snapshot `json:"snapshot"`
	Bots           []string        `json:"bots,omitempty"`
}
