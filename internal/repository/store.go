package repository

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/credkeeper/internal/models"
)

// CredentialStore owns the user collection. It prefers a durable Storage and
// falls back to process memory when the durable one cannot be initialized or
// written. The switch happens at most once and is never undone.
//
// Storage failures are never returned to callers; they are logged.
type CredentialStore struct {
	mu       sync.Mutex
	durable  Storage
	fallback *MemoryStorage
	degraded bool
	log      *zap.Logger
}

// NewCredentialStore creates the users file at path (mode 0644, parent dir 0755)
// if it does not exist. If that fails, or path is empty, the store runs on
// in-memory storage for its whole lifetime.
func NewCredentialStore(path string, log *zap.Logger) *CredentialStore {
	if log == nil {
		log = zap.NewNop()
	}
	if path == "" {
		log.Info("no users file configured, using in-memory storage")
		return &CredentialStore{fallback: NewMemoryStorage(), degraded: true, log: log}
	}

	fs := NewFileStorage(path)
	if err := fs.Init(); err != nil {
		log.Warn("cannot initialize users file, using in-memory storage",
			zap.String("path", path), zap.Error(err))
		return &CredentialStore{fallback: NewMemoryStorage(), degraded: true, log: log}
	}
	return NewCredentialStoreWith(fs, log)
}

// NewCredentialStoreWith wraps an already initialized durable storage.
func NewCredentialStoreWith(durable Storage, log *zap.Logger) *CredentialStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &CredentialStore{durable: durable, fallback: NewMemoryStorage(), log: log}
}

// Degraded reports whether the store has switched to in-memory storage.
func (s *CredentialStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Load returns the current collection.
func (s *CredentialStore) Load(ctx context.Context) []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Save replaces the collection.
func (s *CredentialStore) Save(ctx context.Context, users []models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked(ctx, users)
}

// Len returns the number of stored records.
func (s *CredentialStore) Len(ctx context.Context) int {
	return len(s.Load(ctx))
}

// FindByUsername returns the first record whose username equals username.
func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	users := s.Load(ctx)
	if u := find(users, username); u != nil {
		return u, nil
	}
	return nil, ErrUserNotFound
}

// InsertIfAbsent appends user unless a record with the same username exists.
// The check and the write happen under one lock. It reports whether the
// record was inserted.
func (s *CredentialStore) InsertIfAbsent(ctx context.Context, user models.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.loadLocked(ctx)
	if find(users, user.Username) != nil {
		return false, nil
	}
	s.saveLocked(ctx, append(users, user))
	return true, nil
}

func (s *CredentialStore) loadLocked(ctx context.Context) []models.User {
	if s.degraded {
		users, _ := s.fallback.Load(ctx)
		return users
	}
	users, err := s.durable.Load(ctx)
	if err != nil {
		s.log.Error("failed to read users, serving fallback collection", zap.Error(err))
		users, _ = s.fallback.Load(ctx)
	}
	return users
}

func (s *CredentialStore) saveLocked(ctx context.Context, users []models.User) {
	if !s.degraded {
		err := s.durable.Save(ctx, users)
		if err == nil {
			return
		}
		s.log.Error("failed to save users, switching to in-memory storage", zap.Error(err))
		s.degraded = true
	}
	_ = s.fallback.Save(ctx, users)
}

func find(users []models.User, username string) *models.User {
	for i := range users {
		if users[i].Username == username {
			u := users[i]
			return &u
		}
	}
	return nil
}
