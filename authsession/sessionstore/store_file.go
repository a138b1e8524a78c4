package sessionstore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/chacha20poly1305"
)

// schemaVersion is bumped whenever the persisted session layout changes. A
// blob with any other version is treated as absent, never partially recovered.
const schemaVersion = 1

const (
	keyFileName     = "store.key"
	sessionFileName = "session.bin"
	pendingFileName = "pending.bin"
)

// persistedSession is the versioned on-disk schema for a Session.
type persistedSession struct {
	Version      int       `json:"version"`
	ID           string    `json:"id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	StoredAt     time.Time `json:"stored_at"`
}

// FileStore keeps the session and pending nonce in the client's data folder,
// each sealed with XChaCha20-Poly1305 under a locally generated key. The key
// file stands in for an OS keychain: 0600, created on first use.
type FileStore struct {
	mu     sync.Mutex
	folder string
	aead   cipher.AEAD
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens (or initialises) the store under folder.
func NewFileStore(folder string) (*FileStore, error) {
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, fmt.Errorf("[NewFileStore] failed to create data folder: %w", err)
	}

	key, err := loadOrCreateKey(filepath.Join(folder, keyFileName))
	if err != nil {
		return nil, fmt.Errorf("[NewFileStore] %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("[NewFileStore] failed to initialise cipher: %w", err)
	}

	return &FileStore{folder: folder, aead: aead}, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("key file %s has wrong size", path)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate store key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	return key, nil
}

func (s *FileStore) SaveSession(ctx context.Context, session Session) error {
	blob, err := json.Marshal(persistedSession{
		Version:      schemaVersion,
		ID:           session.ID,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		UserID:       session.UserID,
		Email:        session.Email,
		StoredAt:     session.StoredAt,
	})
	if err != nil {
		return fmt.Errorf("[FileStore SaveSession] failed to encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeSealed(sessionFileName, blob)
}

func (s *FileStore) LoadSession(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, ok := s.readSealed(sessionFileName)
	if !ok {
		return nil, nil
	}

	var persisted persistedSession
	if err := json.Unmarshal(blob, &persisted); err != nil {
		log.Warn().Err(err).Msg("Persisted session is not decodable, treating as absent")
		return nil, nil
	}
	if persisted.Version != schemaVersion {
		log.Warn().Int("version", persisted.Version).Msg("Persisted session has unknown schema version, treating as absent")
		return nil, nil
	}

	return &Session{
		ID:           persisted.ID,
		AccessToken:  persisted.AccessToken,
		RefreshToken: persisted.RefreshToken,
		UserID:       persisted.UserID,
		Email:        persisted.Email,
		StoredAt:     persisted.StoredAt,
	}, nil
}

func (s *FileStore) ClearSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(sessionFileName)
}

func (s *FileStore) SavePendingState(ctx context.Context, nonce string) error {
	if nonce == "" {
		return fmt.Errorf("[FileStore SavePendingState] nonce cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeSealed(pendingFileName, []byte(nonce))
}

func (s *FileStore) LoadPendingState(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, ok := s.readSealed(pendingFileName)
	if !ok {
		return "", nil
	}
	return string(blob), nil
}

func (s *FileStore) ClearPendingState(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(pendingFileName)
}

// writeSealed encrypts blob and replaces the named file atomically so a crash
// mid-write never leaves a truncated slot behind.
func (s *FileStore) writeSealed(name string, blob []byte) error {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("[FileStore] failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, blob, nil)

	path := filepath.Join(s.folder, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("[FileStore] failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("[FileStore] failed to replace %s: %w", name, err)
	}
	return nil
}

// readSealed returns the decrypted contents of the named file. Anything that
// prevents a clean read reports the slot as absent.
func (s *FileStore) readSealed(name string) ([]byte, bool) {
	sealed, err := os.ReadFile(filepath.Join(s.folder, name))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", name).Msg("Failed to read store file, treating as absent")
		}
		return nil, false
	}
	if len(sealed) < chacha20poly1305.NonceSizeX {
		log.Warn().Str("file", name).Msg("Store file is truncated, treating as absent")
		return nil, false
	}

	nonce, ciphertext := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	blob, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		log.Warn().Err(err).Str("file", name).Msg("Failed to decrypt store file, treating as absent")
		return nil, false
	}
	return blob, true
}

func (s *FileStore) remove(name string) error {
	if err := os.Remove(filepath.Join(s.folder, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("[FileStore] failed to remove %s: %w", name, err)
	}
	return nil
}
