package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/matzehuels/humbleplugin/pkg/errors"
)

// FileStore keeps credentials in a JSON file for CLI runs.
type FileStore struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// DefaultPath returns ~/.config/humbleplugin/session.json or the platform
// equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "locate config directory")
	}
	return filepath.Join(dir, "humbleplugin", "session.json"), nil
}

// NewFileStore creates a store at path.
func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{fs: fs, path: path}
}

// Load returns the stored credentials, or nil when none are stored.
func (s *FileStore) Load() (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read session file")
	}
	return Parse(data)
}

// Save writes c, readable by the current user only.
func (s *FileStore) Save(c *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode session")
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "create session dir")
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write session file")
	}
	return nil
}

// Delete removes the stored credentials.
func (s *FileStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeInternal, err, "remove session file")
	}
	return nil
}

// Path returns the session file path.
func (s *FileStore) Path() string { return s.path }
