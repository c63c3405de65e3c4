package config

import (
	"os"
	"path/filepath"
	"sync"
)

const (
	// SectionIDStorage is the identifier for the storage settings section
	SectionIDStorage = "storage"
)

// StorageSection manages persistence settings for the virtual filesystem.
type StorageSection struct {
	DatabasePath string
	mu           sync.RWMutex
}

// NewStorageSection creates a new storage section with default settings.
func NewStorageSection() *StorageSection {
	return &StorageSection{
		DatabasePath: "",
	}
}

// ID returns the section identifier.
func (s *StorageSection) ID() string {
	return SectionIDStorage
}

// Title returns the section title.
func (s *StorageSection) Title() string {
	return "Storage Settings"
}

// Description returns the section description.
func (s *StorageSection) Description() string {
	return "Configure where virtual filesystem data is persisted. database_path defaults to ~/.webforge/webforge.db."
}

// Data returns the current configuration data.
func (s *StorageSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"database_path": s.DatabasePath,
	}
}

// SetData updates the configuration from the provided data.
func (s *StorageSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if path, ok := data["database_path"].(string); ok {
		s.DatabasePath = path
	}

	return nil
}

// Validate validates the current configuration.
func (s *StorageSection) Validate() error {
	return nil
}

// Reset resets the section to default configuration.
func (s *StorageSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DatabasePath = ""
}

// GetDatabasePath returns the configured database path, falling back to
// ~/.webforge/webforge.db when unset.
func (s *StorageSection) GetDatabasePath() (string, error) {
	s.mu.RLock()
	path := s.DatabasePath
	s.mu.RUnlock()

	if path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".webforge", "webforge.db"), nil
}
