package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Store persists the deletion progress between invocations.
type Store interface {
	// Load reads the durable state, returning defaults with a fresh
	// start time when none exists yet.
	Load(ctx context.Context) (State, error)
	// Save stamps last_run_time and atomically persists the full state.
	Save(ctx context.Context, state State) error
}

// NewStore picks a backend from the file extension: .db/.sqlite/.sqlite3
// open a SQLite store, anything else a JSON file store.
func NewStore(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLiteStore(path)
	default:
		return NewFileStore(path), nil
	}
}

// FileStore keeps the state as one pretty-printed JSON document. Writes
// go to a temp file first and are renamed into place, so a crash mid-save
// leaves the previous snapshot intact.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileStore creates a JSON file store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) Load(_ context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return DefaultState(s.now()), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("invalid state file %s: %w", s.path, err)
	}
	state.backfill(s.now())
	return state, nil
}

func (s *FileStore) Save(_ context.Context, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.LastRunTime = s.now()

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
	}

	content, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	content = append(content, '\n')

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return os.Rename(tmpPath, s.path)
}
