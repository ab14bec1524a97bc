package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/credkeeper/internal/models"
	"github.com/atinyakov/credkeeper/internal/repository"
)

type mockUserRepo struct {
	FindByUsernameFunc func(ctx context.Context, username string) (*models.User, error)
	InsertIfAbsentFunc func(ctx context.Context, user models.User) (bool, error)
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.FindByUsernameFunc(ctx, username)
}

func (m *mockUserRepo) InsertIfAbsent(ctx context.Context, user models.User) (bool, error) {
	return m.InsertIfAbsentFunc(ctx, user)
}

func fastHasher(t *testing.T) *BcryptHasher {
	t.Helper()
	h, err := NewBcryptHasher(bcrypt.MinCost, 2)
	if err != nil {
		t.Fatalf("NewBcryptHasher: %v", err)
	}
	return h
}

func notFound(ctx context.Context, username string) (*models.User, error) {
	return nil, repository.ErrUserNotFound
}

func TestRegister_Success(t *testing.T) {
	fixed := time.Date(2026, 5, 6, 7, 8, 9, 10_000_000, time.UTC)
	var stored models.User
	repo := &mockUserRepo{
		FindByUsernameFunc: notFound,
		InsertIfAbsentFunc: func(ctx context.Context, user models.User) (bool, error) {
			stored = user
			return true, nil
		},
	}
	svc := NewAuthService(repo,
		WithHasher(fastHasher(t)),
		WithIDGenerator(func() string { return "id-1" }),
		WithClock(func() time.Time { return fixed }),
	)

	got, err := svc.Register(context.Background(), "carol", "s3cret")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if got != (models.UserInfo{ID: "id-1", Username: "carol"}) {
		t.Errorf("Register = %+v", got)
	}
	if stored.CreatedAt != "2026-05-06T07:08:09.010Z" {
		t.Errorf("CreatedAt = %q", stored.CreatedAt)
	}
	if stored.PasswordHash == "s3cret" || !strings.HasPrefix(stored.PasswordHash, "$2") {
		t.Errorf("PasswordHash = %q; want a bcrypt hash", stored.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
}

func TestRegister_DefaultCostIsTen(t *testing.T) {
	var stored models.User
	repo := &mockUserRepo{
		FindByUsernameFunc: notFound,
		InsertIfAbsentFunc: func(ctx context.Context, user models.User) (bool, error) {
			stored = user
			return true, nil
		},
	}
	svc := NewAuthService(repo)

	if _, err := svc.Register(context.Background(), "dave", "pw"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(stored.PasswordHash))
	if err != nil {
		t.Fatalf("bcrypt.Cost: %v", err)
	}
	if cost != DefaultCost {
		t.Errorf("cost = %d; want %d", cost, DefaultCost)
	}
	if _, err := uuid.Parse(stored.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", stored.ID, err)
	}
}

func TestRegister_DuplicateFromLookup(t *testing.T) {
	repo := &mockUserRepo{
		FindByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return &models.User{ID: "1", Username: username}, nil
		},
		InsertIfAbsentFunc: func(ctx context.Context, user models.User) (bool, error) {
			t.Fatal("InsertIfAbsent must not be called for a taken username")
			return false, nil
		},
	}
	svc := NewAuthService(repo, WithHasher(fastHasher(t)))

	_, err := svc.Register(context.Background(), "erin", "pw")
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("Register error = %v; want %v", err, ErrDuplicateUsername)
	}
}

func TestRegister_DuplicateFromInsert(t *testing.T) {
	repo := &mockUserRepo{
		FindByUsernameFunc: notFound,
		InsertIfAbsentFunc: func(ctx context.Context, user models.User) (bool, error) {
			return false, nil
		},
	}
	svc := NewAuthService(repo, WithHasher(fastHasher(t)))

	_, err := svc.Register(context.Background(), "frank", "pw")
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("Register error = %v; want %v", err, ErrDuplicateUsername)
	}
}

func TestRegister_RepositoryErrors(t *testing.T) {
	wantErr := errors.New("db error")
	tests := []struct {
		name string
		repo *mockUserRepo
	}{
		{
			name: "lookup",
			repo: &mockUserRepo{
				FindByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
					return nil, wantErr
				},
			},
		},
		{
			name: "insert",
			repo: &mockUserRepo{
				FindByUsernameFunc: notFound,
				InsertIfAbsentFunc: func(ctx context.Context, user models.User) (bool, error) {
					return false, wantErr
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAuthService(tt.repo, WithHasher(fastHasher(t)))
			_, err := svc.Register(context.Background(), "gina", "pw")
			if !errors.Is(err, wantErr) {
				t.Fatalf("Register error = %v; want wrapped %v", err, wantErr)
			}
		})
	}
}

func TestRegister_PasswordTooLong(t *testing.T) {
	repo := &mockUserRepo{FindByUsernameFunc: notFound}
	svc := NewAuthService(repo, WithHasher(fastHasher(t)))

	_, err := svc.Register(context.Background(), "hank", strings.Repeat("x", 73))
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("Register error = %v; want %v", err, ErrPasswordTooLong)
	}
}

func TestRegister_CancelledContext(t *testing.T) {
	h, err := NewBcryptHasher(bcrypt.MinCost, 1)
	if err != nil {
		t.Fatal(err)
	}
	// Occupy the only slot so Hash has to wait for it.
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer h.sem.Release(1)

	repo := &mockUserRepo{FindByUsernameFunc: notFound}
	svc := NewAuthService(repo, WithHasher(h))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Register(ctx, "ivy", "pw"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Register error = %v; want %v", err, context.Canceled)
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	stored := &models.User{ID: "42", Username: "alice", PasswordHash: string(hash)}
	dbErr := errors.New("db error")

	tests := []struct {
		name     string
		username string
		password string
		find     func(ctx context.Context, username string) (*models.User, error)
		want     models.UserInfo
		wantErr  error
	}{
		{
			name:     "success",
			username: "alice",
			password: "hunter2",
			find:     func(context.Context, string) (*models.User, error) { return stored, nil },
			want:     models.UserInfo{ID: "42", Username: "alice"},
		},
		{
			name:     "wrong password",
			username: "alice",
			password: "wrong",
			find:     func(context.Context, string) (*models.User, error) { return stored, nil },
			wantErr:  ErrInvalidPassword,
		},
		{
			name:     "unknown user",
			username: "bob",
			password: "x",
			find:     notFound,
			wantErr:  ErrUserNotFound,
		},
		{
			name:     "repository error",
			username: "alice",
			password: "hunter2",
			find:     func(context.Context, string) (*models.User, error) { return nil, dbErr },
			wantErr:  dbErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAuthService(&mockUserRepo{FindByUsernameFunc: tt.find}, WithHasher(fastHasher(t)))
			got, err := svc.Login(context.Background(), tt.username, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Login error = %v; want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Login = %+v; want %+v", got, tt.want)
			}
		})
	}
}

func TestLogin_CorruptHash(t *testing.T) {
	repo := &mockUserRepo{
		FindByUsernameFunc: func(context.Context, string) (*models.User, error) {
			return &models.User{ID: "1", Username: "alice", PasswordHash: "not-a-hash"}, nil
		},
	}
	svc := NewAuthService(repo, WithHasher(fastHasher(t)))

	_, err := svc.Login(context.Background(), "alice", "pw")
	if err == nil || errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("Login error = %v; want a comparison error", err)
	}
}

// TestScenario runs register and login against a file-backed store.
func TestScenario(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "users.json")
	svc := NewAuthService(repository.NewCredentialStore(path, nil), WithHasher(fastHasher(t)))

	alice, err := svc.Register(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if alice.Username != "alice" || alice.ID == "" {
		t.Fatalf("register alice = %+v", alice)
	}

	if _, err := svc.Register(ctx, "alice", "other"); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("second register error = %v; want %v", err, ErrDuplicateUsername)
	}

	got, err := svc.Login(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("login alice: %v", err)
	}
	if got != alice {
		t.Errorf("login = %+v; want %+v", got, alice)
	}

	if _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("wrong password error = %v; want %v", err, ErrInvalidPassword)
	}
	if _, err := svc.Login(ctx, "bob", "x"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user error = %v; want %v", err, ErrUserNotFound)
	}

	// Returned values never carry the password or its hash.
	out, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "hunter2") || strings.Contains(string(out), "$2") {
		t.Errorf("UserInfo leaks credentials: %s", out)
	}

	// A fresh service over the same file sees the same user.
	restarted := NewAuthService(repository.NewCredentialStore(path, nil), WithHasher(fastHasher(t)))
	again, err := restarted.Login(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("login after restart: %v", err)
	}
	if again != alice {
		t.Errorf("login after restart = %+v; want %+v", again, alice)
	}
}

func TestInvalidUTF8Username(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")
	store := repository.NewCredentialStore(path, nil)
	svc := NewAuthService(store, WithHasher(fastHasher(t)))

	for _, name := range []string{"al\xffice", "al\xfeice", "\xc3"} {
		if _, err := svc.Register(ctx, name, "pw"); !errors.Is(err, ErrInvalidUsername) {
			t.Errorf("Register(%q) error = %v; want %v", name, err, ErrInvalidUsername)
		}
		if _, err := svc.Login(ctx, name, "pw"); !errors.Is(err, ErrInvalidUsername) {
			t.Errorf("Login(%q) error = %v; want %v", name, err, ErrInvalidUsername)
		}
	}
	if n := store.Len(ctx); n != 0 {
		t.Fatalf("stored %d records; want 0", n)
	}

	// Valid multi-byte names round-trip through the file unchanged.
	name := "alïce 日本"
	if _, err := svc.Register(ctx, name, "pw"); err != nil {
		t.Fatalf("Register(%q): %v", name, err)
	}
	if _, err := svc.Register(ctx, name, "pw"); !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("second Register(%q) error = %v; want %v", name, err, ErrDuplicateUsername)
	}
	restarted := NewAuthService(repository.NewCredentialStore(path, nil), WithHasher(fastHasher(t)))
	if got, err := restarted.Login(ctx, name, "pw"); err != nil || got.Username != name {
		t.Fatalf("Login after restart = %+v, %v", got, err)
	}
}
