package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sereno-go/internal/field"
)

// blob is the persisted session state. It is encrypted at rest with the
// configured key pair.
type blob struct {
	Session field.Session `json:"session"`
	SavedAt time.Time     `json:"saved_at"`
}

// Store is the single source of truth for the authenticated session. All
// mutations happen under one lock: state change, persistence and event
// broadcast are never observable half-applied.
type Store struct {
	path   string
	enc    field.Encryptor
	bus    field.SessionBus
	origin string
	logger field.Logger
	clock  field.Clock

	mu      sync.RWMutex
	current field.Session
}

var _ field.SessionStore = (*Store)(nil)

// NewStore creates a Store persisting to path. bus may be nil when no other
// instances need notifying.
func NewStore(path string, enc field.Encryptor, bus field.SessionBus, idgen field.IDGenerator, logger field.Logger, clock field.Clock) *Store {
	if logger == nil {
		logger = field.NewNopLogger()
	}
	return &Store{
		path:   path,
		enc:    enc,
		bus:    bus,
		origin: idgen.New(),
		logger: logger,
		clock:  clock,
	}
}

// Login sets the token/user pair, persists it encrypted, and broadcasts the
// change.
func (s *Store) Login(token string, user *field.User) error {
	if token == "" || user == nil {
		return errors.New("session requires both token and user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = field.Session{Token: token, User: user}
	if err := s.persistLocked(); err != nil {
		s.current = field.Session{}
		return err
	}
	s.publishLocked(false)
	return nil
}

// Logout clears the session and removes the persisted blob.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = field.Session{}
	if err := s.removeLocked(); err != nil {
		return err
	}
	s.publishLocked(false)
	return nil
}

// Expire clears the session like Logout and marks the broadcast as an
// expiry so listeners can prompt for re-authentication. Calling it when
// already logged out is a no-op.
func (s *Store) Expire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current.Valid() {
		return nil
	}
	s.current = field.Session{}
	if err := s.removeLocked(); err != nil {
		return err
	}
	s.publishLocked(true)
	return nil
}

// Session returns the current pair, possibly empty.
func (s *Store) Session() field.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Token returns the current token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// Rehydrate restores the session from the persisted blob. Missing or
// undecryptable state fails open: the store stays logged out and the bad
// blob is removed, never blocking startup.
func (s *Store) Rehydrate(dc field.DecryptionContext) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading session state: %w", err)
	}

	var plain bytes.Buffer
	if err := dc.Decrypt(bytes.NewReader(data), &plain); err != nil {
		s.logger.Warn("discarding unreadable session state", "error", err)
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.removeLocked()
	}

	var b blob
	if err := json.Unmarshal(plain.Bytes(), &b); err != nil {
		s.logger.Warn("discarding corrupt session state", "error", err)
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.removeLocked()
	}
	if !b.Session.Valid() {
		return nil
	}

	s.mu.Lock()
	s.current = b.Session
	s.mu.Unlock()
	s.logger.Debug("session restored", "sereno_id", b.Session.User.IDSereno, "saved_at", b.SavedAt)
	return nil
}

// ApplyEvent folds a broadcast from another store instance into local
// state. Events this store published itself are ignored.
func (s *Store) ApplyEvent(e field.SessionEvent) {
	if e.Origin == s.origin {
		return
	}
	s.mu.Lock()
	s.current = e.Session
	s.mu.Unlock()
}

func (s *Store) persistLocked() error {
	b := blob{Session: s.current, SavedAt: s.clock.Now()}
	plain, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	var cipher bytes.Buffer
	if err := s.enc.Encrypt(bytes.NewReader(plain), &cipher); err != nil {
		return fmt.Errorf("encrypting session state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, cipher.Bytes(), 0600); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing session state: %w", err)
	}
	return nil
}

func (s *Store) removeLocked() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing session state: %w", err)
	}
	return nil
}

func (s *Store) publishLocked(expired bool) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(field.SessionEvent{
		Origin:  s.origin,
		Session: s.current,
		Expired: expired,
	})
}
