// Package credstore is the durable client-side credential storage: access
// and refresh tokens plus the cached current-user record, the browser
// localStorage analog. Only the gateway's token functions and the session
// store write here.
package credstore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/chacha20poly1305"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ecofinds/ecofinds-client/internal/models"
)

const (
	keyAccessToken  = "accessToken"
	keyRefreshToken = "refreshToken"
	keyCurrentUser  = "currentUser"
)

type entry struct {
	Key   string `gorm:"primaryKey"`
	Value []byte `gorm:"not null"`
}

func (entry) TableName() string { return "credentials" }

type Store struct {
	db   *gorm.DB
	seal *sealer
}

// Open initializes the store under dir, creating the state database and the
// sealing key file on first use.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	key, err := loadOrCreateKey(filepath.Join(dir, "client.key"))
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "state.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return newStore(db, key)
}

// OpenMemory backs the store with an in-memory database and a throwaway
// key. Used by tests.
func OpenMemory() (*Store, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return newStore(db, key)
}

func newStore(db *gorm.DB, key []byte) (*Store, error) {
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, err
	}
	seal, err := newSealer(key)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, seal: seal}, nil
}

func (s *Store) get(key string) ([]byte, error) {
	var e entry
	err := s.db.Where("key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

func (s *Store) put(key string, value []byte) error {
	e := entry{Key: key, Value: value}
	return s.db.Save(&e).Error
}

func (s *Store) delete(keys ...string) error {
	return s.db.Where("key IN ?", keys).Delete(&entry{}).Error
}

// AccessToken returns the stored access token, or "" when none is held.
func (s *Store) AccessToken() (string, error) {
	v, err := s.get(keyAccessToken)
	return string(v), err
}

func (s *Store) SetAccessToken(token string) error {
	return s.put(keyAccessToken, []byte(token))
}

// RefreshToken unseals and returns the stored refresh token, or "" when
// none is held.
func (s *Store) RefreshToken() (string, error) {
	blob, err := s.get(keyRefreshToken)
	if err != nil || len(blob) == 0 {
		return "", err
	}
	plain, err := s.seal.open(blob)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (s *Store) SetRefreshToken(token string) error {
	blob, err := s.seal.seal([]byte(token))
	if err != nil {
		return err
	}
	return s.put(keyRefreshToken, blob)
}

// SetTokens persists both tokens. An empty refresh token leaves the stored
// one untouched; the backend does not rotate refresh tokens.
func (s *Store) SetTokens(access, refresh string) error {
	if err := s.SetAccessToken(access); err != nil {
		return err
	}
	if refresh == "" {
		return nil
	}
	return s.SetRefreshToken(refresh)
}

// CachedUser returns the warm-start identity hint. It is never trusted over
// a server response.
func (s *Store) CachedUser() (*models.User, error) {
	v, err := s.get(keyCurrentUser)
	if err != nil || len(v) == 0 {
		return nil, err
	}
	var u models.User
	if err := json.Unmarshal(v, &u); err != nil {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) SetCachedUser(u *models.User) error {
	v, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.put(keyCurrentUser, v)
}

func (s *Store) ClearCachedUser() error {
	return s.delete(keyCurrentUser)
}

// Clear removes tokens and the cached identity in one step.
func (s *Store) Clear() error {
	return s.delete(keyAccessToken, keyRefreshToken, keyCurrentUser)
}
