package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultCost is the bcrypt cost used for new password hashes.
const DefaultCost = 10

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	// Hash returns a salted one-way hash of password.
	Hash(ctx context.Context, password string) (string, error)
	// Compare returns nil if password matches hash, ErrInvalidPassword if it
	// does not, or another error if the comparison could not run.
	Compare(ctx context.Context, hash, password string) error
}

// BcryptHasher is a PasswordHasher backed by bcrypt. The number of hashes
// computed at the same time is capped so that CPU-bound work cannot starve
// the rest of the server.
type BcryptHasher struct {
	cost int
	sem  *semaphore.Weighted
}

// NewBcryptHasher returns a hasher with the given cost and at most
// concurrency hashes in flight. Non-positive concurrency means GOMAXPROCS.
func NewBcryptHasher(cost, concurrency int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &BcryptHasher{cost: cost, sem: semaphore.NewWeighted(int64(concurrency))}, nil
}

// Hash implements PasswordHasher.
func (h *BcryptHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Compare implements PasswordHasher.
func (h *BcryptHasher) Compare(ctx context.Context, hash, password string) error {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrInvalidPassword
	default:
		return fmt.Errorf("compare password: %w", err)
	}
}
