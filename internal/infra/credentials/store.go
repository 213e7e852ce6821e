package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	ProviderGemini = "gemini"

	// KeyGeminiAPIKey is the fixed slot name inside the credential file.
	KeyGeminiAPIKey = "gemini_api_key"
)

// ErrEmptyKey is returned when an empty credential is stored.
var ErrEmptyKey = errors.New("gemini api key is required")

// Event is delivered to subscribers whenever the credential changes state.
type Event struct {
	Present bool
	Reason  string
}

type fileState struct {
	Tokens    map[string]string `json:"tokens"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Store holds the single user supplied credential. It is persisted to a JSON
// file so it survives restarts; a Store opened with an empty path keeps the
// value in memory only.
type Store struct {
	path string

	mu          sync.RWMutex
	tokens      map[string]string
	invalid     bool
	nextID      int
	subscribers map[int]func(Event)
}

// Open loads the credential file at path. A missing file is the
// unconfigured state, not an error.
func Open(path string) (*Store, error) {
	s := &Store{
		path:        strings.TrimSpace(path),
		tokens:      map[string]string{},
		subscribers: map[int]func(Event){},
	}
	if s.path == "" {
		return s, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("credentials: read %s: %w", s.path, err)
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("credentials: decode %s: %w", s.path, err)
	}
	for k, v := range state.Tokens {
		if v = strings.TrimSpace(v); v != "" {
			s.tokens[k] = v
		}
	}
	return s, nil
}

// NewMemoryStore returns a Store that never touches disk.
func NewMemoryStore() *Store {
	s, _ := Open("")
	return s
}

// Path returns the backing file, empty for memory stores.
func (s *Store) Path() string {
	return s.path
}

// GeminiAPIKey returns the stored key or the empty string.
func (s *Store) GeminiAPIKey() string {
	return s.Token(KeyGeminiAPIKey)
}

// APIKey satisfies the credential source contract used by the generation
// client and asset fetcher.
func (s *Store) APIKey() string {
	return s.GeminiAPIKey()
}

// Token returns the value stored under name.
func (s *Store) Token(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[name]
}

// Present reports whether a usable credential is configured. A credential the
// service rejected stays stored but is not present until it is set again.
func (s *Store) Present() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[KeyGeminiAPIKey] != "" && !s.invalid
}

// SetGeminiAPIKey stores key and clears any earlier invalidation.
func (s *Store) SetGeminiAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	previous := s.tokens[KeyGeminiAPIKey]
	s.tokens[KeyGeminiAPIKey] = key
	wasInvalid := s.invalid
	s.invalid = false
	if err := s.persistLocked(); err != nil {
		if previous == "" {
			delete(s.tokens, KeyGeminiAPIKey)
		} else {
			s.tokens[KeyGeminiAPIKey] = previous
		}
		s.invalid = wasInvalid
		s.mu.Unlock()
		return err
	}
	subs := s.snapshotLocked()
	s.mu.Unlock()

	notify(subs, Event{Present: true, Reason: "set"})
	return nil
}

// Clear removes the stored key.
func (s *Store) Clear() error {
	s.mu.Lock()
	previous, ok := s.tokens[KeyGeminiAPIKey]
	delete(s.tokens, KeyGeminiAPIKey)
	if err := s.persistLocked(); err != nil {
		if ok {
			s.tokens[KeyGeminiAPIKey] = previous
		}
		s.mu.Unlock()
		return err
	}
	subs := s.snapshotLocked()
	s.mu.Unlock()

	notify(subs, Event{Present: false, Reason: "cleared"})
	return nil
}

// Invalidate marks the current key as rejected by the service so every gate
// asks for it again. The value itself is kept on disk.
func (s *Store) Invalidate(reason string) {
	s.mu.Lock()
	if s.invalid {
		s.mu.Unlock()
		return
	}
	s.invalid = true
	subs := s.snapshotLocked()
	s.mu.Unlock()

	notify(subs, Event{Present: false, Reason: reason})
}

// Subscribe registers fn for change events and returns a function that
// removes the subscription.
func (s *Store) Subscribe(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotLocked() []func(Event) {
	subs := make([]func(Event), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	state := fileState{Tokens: make(map[string]string, len(s.tokens)), UpdatedAt: time.Now().UTC()}
	for k, v := range s.tokens {
		state.Tokens[k] = v
	}
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("credentials: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("credentials: ensure directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("credentials: write file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("credentials: replace file: %w", err)
	}
	return nil
}
