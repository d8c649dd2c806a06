package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/o1export/internal/interfaces"
	"github.com/ternarybob/o1export/internal/models"
)

// FileStore persists the session as an indented JSON document
type FileStore struct {
	path string
}

// Compile-time interface assertion
var _ interfaces.SessionStore = (*FileStore)(nil)

// NewFileStore creates a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the session file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the session file. A bare JSON array of cookies is also accepted.
func (s *FileStore) Load(ctx context.Context) (*models.Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file %s: %w", s.path, err)
	}

	trimmed := bytes.TrimSpace(data)
	session := &models.Session{}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &session.Cookies); err != nil {
			return nil, fmt.Errorf("failed to parse session file %s: %w", s.path, err)
		}
		return session, nil
	}

	if err := json.Unmarshal(trimmed, session); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", s.path, err)
	}
	return session, nil
}

// Save writes the session atomically (temp file + rename)
func (s *FileStore) Save(ctx context.Context, session *models.Session) error {
	data, err := json.MarshalIndent(session, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set session file permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}
