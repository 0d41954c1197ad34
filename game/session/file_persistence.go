package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilePersistence implements RacePersistence using file system storage
type FilePersistence struct {
	racesDir string
}

// NewFilePersistence creates a new file-based race persistence layer
func NewFilePersistence(racesDir string) (*FilePersistence, error) {
	if err := os.MkdirAll(racesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create races directory: %w", err)
	}
	return &FilePersistence{racesDir: racesDir}, nil
}

// Save persists a race to a JSON file
func (fp *FilePersistence) Save(data *PersistedRaceData) error {
	if data == nil {
		return fmt.Errorf("race data cannot be nil")
	}
	if !validID(data.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidRaceID, data.ID)
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal race data: %w", err)
	}

	// Written to a temp file and renamed into place
	filePath := fp.getFilePath(data.ID)
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write race file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write race file: %w", err)
	}
	return nil
}

// Load retrieves a race from a JSON file
func (fp *FilePersistence) Load(id string) (*PersistedRaceData, error) {
	if !validID(id) {
		return nil, ErrRaceNotFound
	}
	jsonData, err := os.ReadFile(fp.getFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRaceNotFound
		}
		return nil, fmt.Errorf("failed to read race file: %w", err)
	}

	var data PersistedRaceData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal race data: %w", err)
	}
	if data.ID == "" {
		data.ID = id
	}
	return &data, nil
}

// Delete removes a race file
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return ErrRaceNotFound
	}
	if err := os.Remove(fp.getFilePath(id)); err != nil {
		return fmt.Errorf("failed to remove race file: %w", err)
	}
	return nil
}

// ListAll returns all persisted race IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.racesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read races directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name := entry.Name(); strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	return ids, nil
}

// Exists checks if a race file exists
func (fp *FilePersistence) Exists(id string) bool {
	if !validID(id) {
		return false
	}
	_, err := os.Stat(fp.getFilePath(id))
	return err == nil
}

func (fp *FilePersistence) getFilePath(id string) string {
	return filepath.Join(fp.racesDir, fmt.Sprintf("%s.json", strings.ToLower(id)))
}

// validID rejects ids that would escape the races directory
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}
