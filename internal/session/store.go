// Package session persists the opencode session id between runs so a new
// process can continue the previous conversation.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const DefaultFile = ".voice_chat_state.json"

type state struct {
	SessionID string `json:"session_id"`
}

type Store struct {
	path string
}

func NewStore(path string) *Store {
	if path == "" {
		path = DefaultFile
	}
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load returns the saved session id. A missing file, unparsable content or a
// blank id all yield "". The error is non-nil only when something worth
// reporting went wrong (unreadable or malformed file); it is never fatal.
func (s *Store) Load() (string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("could not read session file %s: %w", s.path, err)
	}

	var st map[string]any
	if err := json.Unmarshal(raw, &st); err != nil {
		return "", fmt.Errorf("could not read session file %s: %w", s.path, err)
	}

	id, _ := st["session_id"].(string)
	return strings.TrimSpace(id), nil
}

// Save writes {"session_id": id} with two-space indentation and a trailing
// newline, creating parent directories first.
func (s *Store) Save(id string) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(state{SessionID: id}, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Resolve picks the session to start with. An explicit id wins and is saved
// immediately; newSession starts fresh without touching the file; otherwise
// the saved id is loaded. The returned error is informational, the id is
// always usable.
func (s *Store) Resolve(explicit string, newSession bool) (string, error) {
	if explicit != "" {
		return explicit, s.Save(explicit)
	}
	if newSession {
		return "", nil
	}
	return s.Load()
}
