package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/spf13/viper"
)

const (
	KeyMasterVolume = "master.volume"
	KeyMasterMute   = "master.mute"

	DefaultMasterVolume = 100
	DefaultMasterMute   = false
)

// Store is the durable key/value collaborator the mixer settings live in.
type Store interface {
	GetInt(key string) int
	GetBool(key string) bool
	Set(key string, value any)
	// Sync writes every pending change to durable storage.
	Sync() error
}

// ViperStore keeps the settings in one file read and written through viper.
// The file format follows its extension.
type ViperStore struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// NewViperStore loads path if it exists. A missing file is not an error;
// the defaults apply until the first sync creates it.
func NewViperStore(path string) (*ViperStore, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault(KeyMasterVolume, DefaultMasterVolume)
	v.SetDefault(KeyMasterMute, DefaultMasterMute)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
		}
	}

	return &ViperStore{v: v, path: path}, nil
}

func (s *ViperStore) GetInt(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetInt(key)
}

func (s *ViperStore) GetBool(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetBool(key)
}

func (s *ViperStore) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
}

func (s *ViperStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write settings %s: %w", s.path, err)
	}
	return nil
}

// Path returns the file the store syncs to.
func (s *ViperStore) Path() string {
	return s.path
}

// LoadMaster reads the master volume (percent) and mute flag.
func LoadMaster(s Store) (volume int, muted bool) {
	return s.GetInt(KeyMasterVolume), s.GetBool(KeyMasterMute)
}
