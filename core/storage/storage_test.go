package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jghoshh/wellspring/config"
	"github.com/jghoshh/wellspring/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runGatewaySuite exercises the Store Gateway contract against any KV backend.
func runGatewaySuite(t *testing.T, newKV func(t *testing.T) KV) {
	ctx := context.Background()

	t.Run("EmptyStore", func(t *testing.T) {
		s := NewBlobStore(newKV(t))

		users, err := s.LoadDirectory(ctx)
		require.NoError(t, err)
		assert.NotNil(t, users)
		assert.Empty(t, users)

		session, err := s.LoadSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, session)

		enabled, err := s.LoadPreference(ctx, NotificationsEnabledKey)
		require.NoError(t, err)
		assert.False(t, enabled)
	})

	t.Run("DirectoryRoundTrip", func(t *testing.T) {
		s := NewBlobStore(newKV(t))

		when := time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC)
		u := models.NewUser("Ada", "ada@x.io", 30, "pw")
		u.Streak = 3
		u.LastActivity = models.NewActivityTime(when)
		u.Workouts = append(u.Workouts, models.WorkoutRecord{Name: "Push-ups", Duration: 10, Reps: 15, Sets: 3, Date: when})
		u.Journals = append(u.Journals, models.JournalRecord{Text: "good day", Date: when})

		require.NoError(t, s.SaveDirectory(ctx, []models.User{u, models.NewUser("Bob", "bob@x.io", 40, "pw2")}))

		users, err := s.LoadDirectory(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "ada@x.io", users[0].Email)
		assert.Equal(t, 3, users[0].Streak)
		assert.True(t, users[0].LastActivity.Equal(when))
		require.Len(t, users[0].Workouts, 1)
		assert.Equal(t, 15, users[0].Workouts[0].Reps)
		assert.False(t, users[1].LastActivity.IsSet())
	})

	t.Run("SessionLifecycle", func(t *testing.T) {
		s := NewBlobStore(newKV(t))

		require.NoError(t, s.SaveSession(ctx, models.Session{Email: "ada@x.io"}))
		session, err := s.LoadSession(ctx)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "ada@x.io", session.Email)

		require.NoError(t, s.ClearSession(ctx))
		session, err = s.LoadSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, session)

		// clearing twice is harmless
		require.NoError(t, s.ClearSession(ctx))
	})

	t.Run("Preferences", func(t *testing.T) {
		s := NewBlobStore(newKV(t))

		require.NoError(t, s.SavePreference(ctx, NotificationsEnabledKey, true))
		enabled, err := s.LoadPreference(ctx, NotificationsEnabledKey)
		require.NoError(t, err)
		assert.True(t, enabled)

		require.NoError(t, s.SavePreference(ctx, NotificationsEnabledKey, false))
		enabled, err = s.LoadPreference(ctx, NotificationsEnabledKey)
		require.NoError(t, err)
		assert.False(t, enabled)
	})

	t.Run("MalformedValuesAreTolerated", func(t *testing.T) {
		kv := newKV(t)
		s := NewBlobStore(kv)

		require.NoError(t, kv.Set(ctx, SessionKey, []byte(`"not a session"`)))
		require.NoError(t, kv.Set(ctx, NotificationsEnabledKey, []byte(`"yes"`)))

		session, err := s.LoadSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, session)

		enabled, err := s.LoadPreference(ctx, NotificationsEnabledKey)
		require.NoError(t, err)
		assert.False(t, enabled)
	})
}

func TestMemoryGateway(t *testing.T) {
	runGatewaySuite(t, func(t *testing.T) KV { return NewMemoryKV() })
}

func TestFileGateway(t *testing.T) {
	runGatewaySuite(t, func(t *testing.T) KV {
		kv, err := NewFileKV(filepath.Join(t.TempDir(), "nested", "data.json"))
		require.NoError(t, err)
		return kv
	})
}

func TestSQLiteGateway(t *testing.T) {
	runGatewaySuite(t, func(t *testing.T) KV {
		kv, err := NewSQLiteKV(filepath.Join(t.TempDir(), "wellspring.db"))
		require.NoError(t, err)
		t.Cleanup(func() { kv.Close() })
		return kv
	})
}

func TestRedisGateway(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	runGatewaySuite(t, func(t *testing.T) KV {
		kv, err := NewRedisKV(context.Background(), url, "wellspring-test-"+t.Name())
		require.NoError(t, err)
		t.Cleanup(func() {
			kv.Clear(context.Background())
			kv.Close()
		})
		return kv
	})
}

func TestMongoGateway(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	runGatewaySuite(t, func(t *testing.T) KV {
		kv, err := NewMongoKV(context.Background(), uri, "wellspring_test")
		require.NoError(t, err)
		t.Cleanup(func() {
			kv.collection.Drop(context.Background())
			kv.Close()
		})
		return kv
	})
}

func TestFileKVPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")

	first, err := NewFileKV(path)
	require.NoError(t, err)
	require.NoError(t, NewBlobStore(first).SaveSession(ctx, models.Session{Email: "ada@x.io"}))

	second, err := NewFileKV(path)
	require.NoError(t, err)
	session, err := NewBlobStore(second).LoadSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "ada@x.io", session.Email)
}

func TestFileKVRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	kv, err := NewFileKV(path)
	require.NoError(t, err)

	_, err = NewBlobStore(kv).LoadDirectory(context.Background())
	assert.Error(t, err)
}

func TestMemoryKVCopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	value := []byte(`true`)
	require.NoError(t, kv.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `true`, string(got))
}

func TestNewStorage(t *testing.T) {
	ctx := context.Background()

	s, err := NewStorage(ctx, &config.Config{StorageBackend: config.StorageMemory})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &BlobStore{}, s)

	s, err = NewStorage(ctx, &config.Config{StorageBackend: config.StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	defer s.Close()

	_, err = NewStorage(ctx, &config.Config{StorageBackend: "floppy"})
	assert.Error(t, err)
}

func TestUpdateDirectory(t *testing.T) {
	ctx := context.Background()
	s := NewBlobStore(NewMemoryKV())
	require.NoError(t, s.SaveDirectory(ctx, []models.User{models.NewUser("Ada", "ada@x.io", 30, "pw")}))

	err := s.UpdateDirectory(ctx, func(users []models.User) ([]models.User, error) {
		users[0].Streak = 7
		return append(users, models.NewUser("Bob", "bob@x.io", 40, "pw")), nil
	})
	require.NoError(t, err)

	users, err := s.LoadDirectory(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, 7, users[0].Streak)
}

func TestUpdateDirectoryAbortsOnError(t *testing.T) {
	ctx := context.Background()
	s := NewBlobStore(NewMemoryKV())
	require.NoError(t, s.SaveDirectory(ctx, []models.User{models.NewUser("Ada", "ada@x.io", 30, "pw")}))

	boom := errors.New("boom")
	err := s.UpdateDirectory(ctx, func(users []models.User) ([]models.User, error) {
		users[0].Streak = 99
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	users, err := s.LoadDirectory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, users[0].Streak)
}

func TestUpdateDirectorySerialisesWriters(t *testing.T) {
	ctx := context.Background()
	s := NewBlobStore(NewMemoryKV())
	require.NoError(t, s.SaveDirectory(ctx, []models.User{models.NewUser("Ada", "ada@x.io", 30, "pw")}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.UpdateDirectory(ctx, func(users []models.User) ([]models.User, error) {
				users[0].Streak++
				return users, nil
			})
		}()
	}
	wg.Wait()

	users, err := s.LoadDirectory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, users[0].Streak)
}
