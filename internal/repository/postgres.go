package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/atinyakov/credkeeper/internal/models"
)

// ErrIDConflict is returned when a generated user ID is already taken.
var ErrIDConflict = errors.New("user id already exists")

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresUserRepository stores user credentials in a PostgreSQL database.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// FindByUsername looks up a user by exact username.
// It returns ErrUserNotFound if no row matches.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var (
		u         models.User
		createdAt time.Time
	)
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("FindByUsername: %w", err)
	}
	u.CreatedAt = models.FormatCreatedAt(createdAt)
	return &u, nil
}

// InsertIfAbsent inserts user unless the username is already taken.
// The ON CONFLICT (username) DO NOTHING clause makes the check atomic; the
// returned bool is false when no row was inserted.
func (r *PostgresUserRepository) InsertIfAbsent(ctx context.Context, user models.User) (bool, error) {
	createdAt, err := time.Parse(models.CreatedAtLayout, user.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("parse created_at: %w", err)
	}
	res, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (username) DO NOTHING`,
		user.ID, user.Username, user.PasswordHash, createdAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return false, fmt.Errorf("InsertIfAbsent: %w", ErrIDConflict)
		}
		return false, fmt.Errorf("InsertIfAbsent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("InsertIfAbsent: %w", err)
	}
	return n == 1, nil
}
