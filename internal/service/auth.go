// Package service provides authentication business logic,
// delegating persistence to a UserRepository.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/credkeeper/internal/models"
	"github.com/atinyakov/credkeeper/internal/repository"
)

var (
	// ErrDuplicateUsername is returned by Register when the username is taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrUserNotFound is returned by Login when no user has the given username.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidPassword is returned by Login when the password does not match.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrPasswordTooLong is returned when the password exceeds 72 bytes.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrInvalidUsername is returned when the username is not valid UTF-8.
	// Such names cannot be stored without being rewritten.
	ErrInvalidUsername = errors.New("username is not valid UTF-8")
)

// UserRepository defines the persistence operations
// required by the authentication service.
type UserRepository interface {
	// FindByUsername returns the user with the exact username,
	// or repository.ErrUserNotFound.
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	// InsertIfAbsent stores user unless its username is taken, atomically.
	// It reports whether the user was stored.
	InsertIfAbsent(ctx context.Context, user models.User) (bool, error)
}

// Service implements registration and login on top of a UserRepository.
type Service struct {
	// repo performs the data-layer operations.
	repo   UserRepository
	hasher PasswordHasher
	newID  func() string
	now    func() time.Time
	log    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithHasher replaces the default bcrypt hasher.
func WithHasher(h PasswordHasher) Option {
	return func(s *Service) { s.hasher = h }
}

// WithIDGenerator replaces uuid.NewString as the user ID source.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// WithClock replaces time.Now.
func WithClock(f func() time.Time) Option {
	return func(s *Service) { s.now = f }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewAuthService constructs a new Service using the provided repository.
// Without WithHasher it hashes with bcrypt at DefaultCost.
func NewAuthService(repo UserRepository, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		newID: uuid.NewString,
		now:   time.Now,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hasher == nil {
		// DefaultCost is always within bcrypt bounds.
		s.hasher, _ = NewBcryptHasher(DefaultCost, 0)
	}
	return s
}

// Register creates a user with a bcrypt hash of password.
// It returns ErrDuplicateUsername if the username is already registered
// and ErrInvalidUsername if it is not valid UTF-8.
func (s *Service) Register(ctx context.Context, username, password string) (models.UserInfo, error) {
	if !utf8.ValidString(username) {
		return models.UserInfo{}, ErrInvalidUsername
	}

	// Cheap pre-check so taken usernames do not pay for a hash.
	_, err := s.repo.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return models.UserInfo{}, ErrDuplicateUsername
	case !errors.Is(err, repository.ErrUserNotFound):
		return models.UserInfo{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return models.UserInfo{}, err
	}

	user := models.User{
		ID:           s.newID(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    models.FormatCreatedAt(s.now()),
	}

	inserted, err := s.repo.InsertIfAbsent(ctx, user)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("store user: %w", err)
	}
	if !inserted {
		return models.UserInfo{}, ErrDuplicateUsername
	}

	s.log.Info("user registered", zap.String("id", user.ID), zap.String("username", username))
	return user.Info(), nil
}

// Login verifies password against the stored hash for username.
// It returns ErrUserNotFound or ErrInvalidPassword on failure.
func (s *Service) Login(ctx context.Context, username, password string) (models.UserInfo, error) {
	if !utf8.ValidString(username) {
		return models.UserInfo{}, ErrInvalidUsername
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.UserInfo{}, ErrUserNotFound
		}
		return models.UserInfo{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.hasher.Compare(ctx, user.PasswordHash, password); err != nil {
		return models.UserInfo{}, err
	}

	return user.Info(), nil
}
