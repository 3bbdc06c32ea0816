package apiclient

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Tokens is the credential pair a session holds between requests. Expiry
// is not tracked locally; a stale access token surfaces as a 401 and is
// refreshed on the spot.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (t Tokens) empty() bool { return t.AccessToken == "" && t.RefreshToken == "" }

// TokenStorage persists tokens across process restarts. Implementations must
// be safe for concurrent use by a single Session.
type TokenStorage interface {
	Load() (Tokens, error)
	Save(Tokens) error
	Clear() error
}

// ErrNoTokens is returned by Load when nothing is stored.
var ErrNoTokens = errors.New("apiclient: no stored tokens")

// FileStorage keeps tokens in a JSON file with owner-only permissions.
type FileStorage struct {
	Path string
	mu   sync.Mutex
}

func NewFileStorage(path string) *FileStorage { return &FileStorage{Path: path} }

func (s *FileStorage) Load() (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Tokens{}, ErrNoTokens
		}
		return Tokens{}, err
	}
	var t Tokens
	if err := json.Unmarshal(raw, &t); err != nil {
		return Tokens{}, err
	}
	if t.empty() {
		return Tokens{}, ErrNoTokens
	}
	return t, nil
}

func (s *FileStorage) Save(t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(s.Path, raw, 0o600)
}

func (s *FileStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MemoryStorage holds tokens in process memory; suitable for tests and
// short-lived tools.
type MemoryStorage struct {
	mu     sync.Mutex
	tokens Tokens
	set    bool
}

func NewMemoryStorage() *MemoryStorage { return &MemoryStorage{} }

func (s *MemoryStorage) Load() (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return Tokens{}, ErrNoTokens
	}
	return s.tokens, nil
}

func (s *MemoryStorage) Save(t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens, s.set = t, true
	return nil
}

func (s *MemoryStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens, s.set = Tokens{}, false
	return nil
}
