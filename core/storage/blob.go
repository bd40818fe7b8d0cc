package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jghoshh/wellspring/models"
)

// BlobStore implements StorageInterface on top of any KV backend, keeping the
// key layout used by the browser version of the app: users, currentSession, notificationsEnabled.
type BlobStore struct {
	mu sync.Mutex // serialises directory writes
	kv KV
}

// NewBlobStore wraps kv.
func NewBlobStore(kv KV) *BlobStore {
	return &BlobStore{kv: kv}
}

func (b *BlobStore) LoadDirectory(ctx context.Context) ([]models.User, error) {
	raw, err := b.kv.Get(ctx, UsersKey)
	if errors.Is(err, ErrNotFound) {
		return []models.User{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading directory: %w", err)
	}

	var users []models.User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("error decoding directory: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

func (b *BlobStore) SaveDirectory(ctx context.Context, users []models.User) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saveDirectory(ctx, users)
}

func (b *BlobStore) UpdateDirectory(ctx context.Context, fn func([]models.User) ([]models.User, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	users, err := b.LoadDirectory(ctx)
	if err != nil {
		return err
	}
	updated, err := fn(users)
	if err != nil {
		return err
	}
	return b.saveDirectory(ctx, updated)
}

func (b *BlobStore) saveDirectory(ctx context.Context, users []models.User) error {
	if users == nil {
		users = []models.User{}
	}
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("error encoding directory: %w", err)
	}
	if err := b.kv.Set(ctx, UsersKey, raw); err != nil {
		return fmt.Errorf("error saving directory: %w", err)
	}
	return nil
}

// LoadSession treats a malformed or empty session value as no session.
func (b *BlobStore) LoadSession(ctx context.Context) (*models.Session, error) {
	raw, err := b.kv.Get(ctx, SessionKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading session: %w", err)
	}

	var session *models.Session
	if err := json.Unmarshal(raw, &session); err != nil || session == nil || session.Email == "" {
		return nil, nil
	}
	return session, nil
}

func (b *BlobStore) SaveSession(ctx context.Context, session models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("error encoding session: %w", err)
	}
	if err := b.kv.Set(ctx, SessionKey, raw); err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}

func (b *BlobStore) ClearSession(ctx context.Context) error {
	if err := b.kv.Delete(ctx, SessionKey); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("error clearing session: %w", err)
	}
	return nil
}

// LoadPreference returns false for missing or malformed values.
func (b *BlobStore) LoadPreference(ctx context.Context, key string) (bool, error) {
	raw, err := b.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error loading preference %s: %w", key, err)
	}

	var value bool
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, nil
	}
	return value, nil
}

func (b *BlobStore) SavePreference(ctx context.Context, key string, value bool) error {
	raw, _ := json.Marshal(value)
	if err := b.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("error saving preference %s: %w", key, err)
	}
	return nil
}

func (b *BlobStore) Close() error {
	return b.kv.Close()
}
