// Package session holds the signed-in user's state between CLI invocations:
// the backend token, the zkLogin address and salt, and the ephemeral key.
// The state is loaded once, persisted on every change and removed on logout.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"

	"suiml.io/suiml/sui"
)

type Session struct {
	Token         string `json:"token,omitempty"`
	SuiAddress    string `json:"sui_address,omitempty"`
	UserSalt      string `json:"user_salt,omitempty"`
	EphemeralSeed string `json:"ephemeral_seed,omitempty"`
	MaxEpoch      uint64 `json:"max_epoch,omitempty"`
	Randomness    string `json:"randomness,omitempty"`
	Theme         string `json:"theme,omitempty"`
}

// Claims are the fields read from the backend token.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.StandardClaims
}

// Claims decodes the token without verifying its signature; the backend
// does that on every request.
func (s Session) Claims() (*Claims, error) {
	if s.Token == "" {
		return nil, errors.New("session has no token")
	}
	claims := &Claims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(s.Token, claims); err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	return claims, nil
}

// TokenExpiry returns the exp claim. ok is false when the token has none.
func (s Session) TokenExpiry() (exp time.Time, ok bool, err error) {
	c, err := s.Claims()
	if err != nil {
		return time.Time{}, false, err
	}
	if c.ExpiresAt == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(c.ExpiresAt, 0), true, nil
}

// Expired reports whether the token is missing, unreadable or past exp.
func (s Session) Expired(now time.Time) bool {
	exp, ok, err := s.TokenExpiry()
	if err != nil {
		return true
	}
	return ok && !now.Before(exp)
}

func (s Session) LoggedIn(now time.Time) bool { return s.Token != "" && !s.Expired(now) }

// EphemeralKeypair returns the stored ephemeral key, if any.
func (s Session) EphemeralKeypair() (*sui.Keypair, error) {
	if s.EphemeralSeed == "" {
		return nil, errors.New("session has no ephemeral key")
	}
	return sui.ParsePrivateKey(s.EphemeralSeed)
}

// Store persists a Session as JSON at a fixed path. It is safe for
// concurrent use within one process.
type Store struct {
	path string
	mu   sync.Mutex
	cur  Session
}

// Open loads the session at path. A missing file is an empty session.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Load re-reads the file, replacing the in-memory session.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.cur = Session{}
		return nil
	}
	if err != nil {
		return err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return fmt.Errorf("session %s: %w", s.path, err)
	}
	s.cur = sess
	return nil
}

// Current returns a copy of the session.
func (s *Store) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Update applies fn and persists the result. On a write error the
// in-memory session is left unchanged.
func (s *Store) Update(fn func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur
	fn(&next)
	if err := s.write(next); err != nil {
		return err
	}
	s.cur = next
	return nil
}

// Clear forgets the session and removes the file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	s.cur = Session{}
	return nil
}

func (s *Store) write(sess Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
