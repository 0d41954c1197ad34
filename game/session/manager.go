package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wricardo/circuit-challenge/game/engine"
)

var (
	ErrRaceNotFound      = errors.New("race not found")
	ErrRaceAlreadyExists = errors.New("race already exists")
	ErrInvalidRaceID     = errors.New("invalid race ID")
)

// ConfigLoader resolves the race config a persisted race was created from
type ConfigLoader interface {
	LoadConfig(name string) (*engine.RaceConfig, error)
}

// Manager handles race lifecycle
type Manager struct {
	races       map[string]*Race
	persistence RacePersistence
	configs     ConfigLoader
	opts        Options
	log         zerolog.Logger
	mu          sync.RWMutex
}

// NewManager creates a new race manager
func NewManager(opts Options) *Manager {
	return &Manager{
		races: make(map[string]*Race),
		opts:  opts,
		log:   opts.Logger,
	}
}

// NewManagerWithPersistence creates a race manager that saves races and
// reloads them on demand
func NewManagerWithPersistence(persistence RacePersistence, configs ConfigLoader, opts Options) *Manager {
	m := NewManager(opts)
	m.persistence = persistence
	m.configs = configs
	return m
}

// Create creates a stopped race with the given ID and configuration. An
// empty id gets a generated one.
func (m *Manager) Create(id, configName string, cfg *engine.RaceConfig) (*Race, error) {
	if id == "" {
		id = m.generateRaceID()
	} else if !validID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRaceID, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(id)
	if _, exists := m.races[key]; exists {
		return nil, ErrRaceAlreadyExists
	}
	if m.persistence != nil && m.persistence.Exists(id) {
		return nil, ErrRaceAlreadyExists
	}

	race, err := NewRace(id, configName, cfg, m.opts)
	if err != nil {
		return nil, err
	}
	m.races[key] = race
	m.log.Info().Str("race", id).Str("config", configName).Msg("race created")

	if m.persistence != nil {
		if err := m.save(context.Background(), race); err != nil {
			// Log error but don't fail the creation
			m.log.Warn().Err(err).Str("race", id).Msg("failed to persist race")
		}
	}
	return race, nil
}

// Get retrieves a race by ID (case-insensitive), loading it from
// persistence if it is not in memory
func (m *Manager) Get(id string) (*Race, error) {
	m.mu.RLock()
	race, exists := m.races[strings.ToLower(id)]
	m.mu.RUnlock()
	if exists {
		race.Touch()
		return race, nil
	}

	if m.persistence == nil || !m.persistence.Exists(id) {
		return nil, ErrRaceNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if race, exists := m.races[strings.ToLower(id)]; exists {
		return race, nil
	}
	race, err := m.load(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted race: %w", err)
	}
	m.races[strings.ToLower(id)] = race
	race.Touch()
	return race, nil
}

func (m *Manager) load(id string) (*Race, error) {
	data, err := m.persistence.Load(id)
	if err != nil {
		return nil, err
	}
	if m.configs == nil {
		return nil, fmt.Errorf("no config loader for race %s", id)
	}
	cfg, err := m.configs.LoadConfig(data.ConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to load config '%s': %w", data.ConfigName, err)
	}
	// Bots come back from the snapshot, not from the config.
	fresh := *cfg
	fresh.Bots = 0
	race, err := NewRace(data.ID, data.ConfigName, &fresh, m.opts)
	if err != nil {
		return nil, err
	}
	race.Config = cfg
	if err := race.restore(data); err != nil {
		race.Close()
		return nil, fmt.Errorf("failed to restore race: %w", err)
	}
	return race, nil
}

// List returns all races in memory, oldest first
func (m *Manager) List() []*Race {
	m.mu.RLock()
	result := make([]*Race, 0, len(m.races))
	for _, race := range m.races {
		result = append(result, race)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Delete closes a race and removes it from memory and persistence
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	key := strings.ToLower(id)
	race, inMemory := m.races[key]
	delete(m.races, key)
	m.mu.Unlock()

	if inMemory {
		race.Close()
	}

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted race: %w", err)
		}
		return nil
	}
	if !inMemory {
		return ErrRaceNotFound
	}
	return nil
}

// Save saves a specific race to persistence
func (m *Manager) Save(ctx context.Context, id string) error {
	if m.persistence == nil {
		return nil
	}
	m.mu.RLock()
	race, exists := m.races[strings.ToLower(id)]
	m.mu.RUnlock()
	if !exists {
		return ErrRaceNotFound
	}
	return m.save(ctx, race)
}

func (m *Manager) save(ctx context.Context, race *Race) error {
	data, err := race.Persisted(ctx)
	if err != nil {
		return err
	}
	return m.persistence.Save(data)
}

// SaveAll saves all in-memory races to persistence
func (m *Manager) SaveAll(ctx context.Context) error {
	if m.persistence == nil {
		return nil
	}
	errorCount := 0
	for _, race := range m.List() {
		if err := m.save(ctx, race); err != nil {
			m.log.Warn().Err(err).Str("race", race.ID).Msg("failed to save race")
			errorCount++
		}
	}
	if errorCount > 0 {
		return fmt.Errorf("failed to save %d races", errorCount)
	}
	return nil
}

// LoadPersisted loads all persisted races into memory
func (m *Manager) LoadPersisted() error {
	if m.persistence == nil {
		return nil
	}
	ids, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted races: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, id := range ids {
		if _, exists := m.races[strings.ToLower(id)]; exists {
			continue
		}
		race, err := m.load(id)
		if err != nil {
			m.log.Warn().Err(err).Str("race", id).Msg("failed to load persisted race")
			continue
		}
		m.races[strings.ToLower(id)] = race
		loaded++
	}
	if loaded > 0 {
		m.log.Info().Int("count", loaded).Msg("loaded persisted races")
	}
	return nil
}

// CleanupExpired closes races that haven't been accessed in the given
// duration. Persisted copies are kept.
func (m *Manager) CleanupExpired(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	var expired []*Race
	for key, race := range m.races {
		if race.LastAccessedAt().Before(cutoff) {
			delete(m.races, key)
			expired = append(expired, race)
		}
	}
	m.mu.Unlock()

	for _, race := range expired {
		race.Close()
	}
	return len(expired)
}

// PruneOrphans closes in-memory races whose persisted file was removed
// from disk. It returns the pruned race IDs.
func (m *Manager) PruneOrphans() []string {
	if m.persistence == nil {
		return nil
	}
	m.mu.Lock()
	var pruned []*Race
	for key, race := range m.races {
		if !m.persistence.Exists(race.ID) {
			delete(m.races, key)
			pruned = append(pruned, race)
		}
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(pruned))
	for _, race := range pruned {
		race.Close()
		ids = append(ids, race.ID)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of races in memory
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.races)
}

// Close saves and closes every race
func (m *Manager) Close(ctx context.Context) error {
	err := m.SaveAll(ctx)

	m.mu.Lock()
	races := m.races
	m.races = make(map[string]*Race)
	m.mu.Unlock()

	for _, race := range races {
		race.Close()
	}
	return err
}

// generateRaceID generates a random 4-character race ID
func (m *Manager) generateRaceID() string {
	return randomHex(2)
}
