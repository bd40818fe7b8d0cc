package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jghoshh/wellspring/config"
	"github.com/jghoshh/wellspring/models"
)

// Keys of the persisted blob.
const (
	UsersKey                = "users"
	SessionKey              = "currentSession"
	NotificationsEnabledKey = "notificationsEnabled"
)

// ErrNotFound is returned by a KV backend when a key holds no value.
var ErrNotFound = errors.New("key does not exist")

// DirectoryStore persists the whole user directory as one unit.
type DirectoryStore interface {
	// Loads every registered user. A store that was never written returns an empty directory.
	LoadDirectory(ctx context.Context) ([]models.User, error)
	// Overwrites the directory with users.
	SaveDirectory(ctx context.Context, users []models.User) error
	// Loads the directory, applies fn and saves the result. Nothing is saved when fn
	// returns an error. Calls are serialised within the process.
	UpdateDirectory(ctx context.Context, fn func([]models.User) ([]models.User, error)) error
}

// SessionStore persists which user the application is bound to.
type SessionStore interface {
	// Returns the current session, or nil when there is none.
	LoadSession(ctx context.Context) (*models.Session, error)
	// Binds the session to a user.
	SaveSession(ctx context.Context, session models.Session) error
	// Removes the current session.
	ClearSession(ctx context.Context) error
}

// PreferenceStore persists boolean preferences such as notificationsEnabled.
type PreferenceStore interface {
	// Returns the stored value, or false when the key was never written.
	LoadPreference(ctx context.Context, key string) (bool, error)
	// Stores value under key.
	SavePreference(ctx context.Context, key string, value bool) error
}

// StorageInterface is the full Store Gateway used by the application.
type StorageInterface interface {
	DirectoryStore
	SessionStore
	PreferenceStore
	// Releases the underlying backend.
	Close() error
}

// KV is the raw byte store underneath the gateway. Values are JSON documents.
type KV interface {
	// Get returns ErrNotFound when key holds no value.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// NewStorage creates a StorageInterface backed by the KV selected in cfg.
func NewStorage(ctx context.Context, cfg *config.Config) (StorageInterface, error) {
	var (
		kv  KV
		err error
	)

	switch cfg.StorageBackend {
	case config.StorageFile:
		kv, err = NewFileKV(cfg.DataFile)
	case config.StorageMemory:
		kv = NewMemoryKV()
	case config.StorageRedis:
		kv, err = NewRedisKV(ctx, cfg.RedisURL, "wellspring")
	case config.StorageMongo:
		kv, err = NewMongoKV(ctx, cfg.MongoURI, cfg.MongoDB)
	case config.StorageSQLite:
		kv, err = NewSQLiteKV(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return NewBlobStore(kv), nil
}
