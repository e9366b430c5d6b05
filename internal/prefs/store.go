package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/scopeview/internal/transform"
)

// State holds the per-device preferences that survive restarts.
type State struct {
	Filters     transform.FilterParams `toml:"filters" json:"filters"`
	AspectRatio string                 `toml:"aspect_ratio,omitempty" json:"aspectRatio,omitempty"`
	Profile     string                 `toml:"profile,omitempty" json:"profile,omitempty"`
}

// Store persists per-device preference state keyed by device identity.
type Store interface {
	Load() error
	Get(identity string) (State, bool)
	Put(identity string, state State) error
	All() map[string]State
}

// config represents the complete preferences file for TOML marshaling.
type config struct {
	Version int              `toml:"version" json:"version"`
	Devices map[string]State `toml:"devices" json:"devices"`
}

// tomlStore implements Store using TOML file storage.
type tomlStore struct {
	configPath string
	mu         sync.Mutex
	config     *config
}

// NewTOML creates a new TOML-based preference store.
func NewTOML(configPath string) Store {
	if configPath == "" {
		configPath = "preferences.toml"
	}

	return &tomlStore{
		configPath: configPath,
		config: &config{
			Version: 1,
			Devices: make(map[string]State),
		},
	}
}

// Load loads the preferences file. A missing file is not an error.
func (s *tomlStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to read preferences: %w", err)
	}

	fresh := &config{}
	if unmarshalErr := toml.Unmarshal(data, fresh); unmarshalErr != nil {
		return fmt.Errorf("failed to parse preferences: %w", unmarshalErr)
	}

	if fresh.Devices == nil {
		fresh.Devices = make(map[string]State)
	}
	if fresh.Version == 0 {
		fresh.Version = 1
	}
	s.config = fresh

	return nil
}

// Get retrieves the stored state for a device identity.
func (s *tomlStore) Get(identity string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, exists := s.config.Devices[identity]
	return state, exists
}

// Put stores state for a device identity and writes the file.
func (s *tomlStore) Put(identity string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config.Devices[identity] = state
	return s.saveLocked()
}

// All returns a copy of every stored device state.
func (s *tomlStore) All() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]State, len(s.config.Devices))
	for identity, state := range s.config.Devices {
		out[identity] = state
	}
	return out
}

func (s *tomlStore) saveLocked() error {
	dir := filepath.Dir(s.configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}

	data, err := toml.Marshal(s.config)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	if writeErr := os.WriteFile(s.configPath, data, 0o644); writeErr != nil {
		return fmt.Errorf("failed to write preferences: %w", writeErr)
	}

	return nil
}
