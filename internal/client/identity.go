package client

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotConnected is returned when an intent is sent before the transport
// has established a connection.
var ErrNotConnected = errors.New("not connected to relay")

// Identity is the locally persisted player identity. The id is the join key,
// generated once and reused across reconnects so history survives; it is not
// a session token.
type Identity struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	AutoJoinRoom string `json:"autoJoinRoom,omitempty"`
}

// IdentityStore persists the identity as a small JSON file.
type IdentityStore struct {
	path string
}

func NewIdentityStore(path string) *IdentityStore {
	return &IdentityStore{path: path}
}

// Load reads the stored identity. A missing file yields a zero identity.
func (s *IdentityStore) Load() (Identity, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Identity{}, nil
	}
	if err != nil {
		return Identity{}, fmt.Errorf("read identity: %w", err)
	}
	var identity Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return Identity{}, fmt.Errorf("parse identity: %w", err)
	}
	return identity, nil
}

func (s *IdentityStore) Save(identity Identity) error {
	data, err := json.MarshalIndent(identity, "", "  ")
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return nil
}

// Ensure returns the stored identity, minting an id on first use and
// updating the username when a non-empty one is supplied.
func (s *IdentityStore) Ensure(username string) (Identity, error) {
	identity, err := s.Load()
	if err != nil {
		return Identity{}, err
	}
	changed := false
	if identity.ID == "" {
		identity.ID = NewID()
		changed = true
	}
	if username != "" && identity.Username != username {
		identity.Username = username
		changed = true
	}
	if changed {
		if err := s.Save(identity); err != nil {
			return Identity{}, err
		}
	}
	return identity, nil
}

// SetAutoJoinRoom remembers a room id so the next session can rejoin it
// after navigating to the room's real quiz url.
func (s *IdentityStore) SetAutoJoinRoom(roomID string) error {
	identity, err := s.Load()
	if err != nil {
		return err
	}
	identity.AutoJoinRoom = roomID
	return s.Save(identity)
}

// ClearAutoJoinRoom forgets the remembered room after a successful join.
func (s *IdentityStore) ClearAutoJoinRoom() error {
	identity, err := s.Load()
	if err != nil {
		return err
	}
	if identity.AutoJoinRoom == "" {
		return nil
	}
	identity.AutoJoinRoom = ""
	return s.Save(identity)
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID mints a pseudo-random 26 character player id.
func NewID() string {
	buf := make([]byte, 26)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf)
}
