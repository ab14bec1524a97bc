// Package repository provides persistence implementations for user credentials:
// a flat-file credential store with an in-memory fallback, and a PostgreSQL
// repository.
package repository

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/atinyakov/credkeeper/internal/models"
)

// ErrUserNotFound is returned by FindByUsername when no record matches.
var ErrUserNotFound = errors.New("user not found")

// Storage loads and saves the whole user collection.
type Storage interface {
	// Load returns the stored collection in insertion order.
	Load(ctx context.Context) ([]models.User, error)
	// Save replaces the stored collection.
	Save(ctx context.Context, users []models.User) error
}

// MemoryStorage keeps the collection in process memory.
type MemoryStorage struct {
	mu    sync.RWMutex
	users []models.User
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Load returns a copy of the collection. It never fails.
func (m *MemoryStorage) Load(_ context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.users), nil
}

// Save replaces the collection with a copy of users. It never fails.
func (m *MemoryStorage) Save(_ context.Context, users []models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = slices.Clone(users)
	return nil
}
