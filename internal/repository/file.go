package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atinyakov/credkeeper/internal/models"
)

const (
	// DirMode is the permission of the directory holding the users file.
	DirMode os.FileMode = 0o755
	// FileMode is the permission of the users file.
	FileMode os.FileMode = 0o644
)

// ErrUsersFileMissing is returned by FileStorage.Save when the users file no
// longer exists. Only Init creates the file.
var ErrUsersFileMissing = errors.New("users file missing")

// FileStorage persists the collection as an indented JSON array in a single file.
type FileStorage struct {
	path string
}

// NewFileStorage returns a FileStorage backed by path. Call Init before use.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the location of the users file.
func (f *FileStorage) Path() string {
	return f.path
}

// Init creates the parent directory and seeds the file with an empty
// collection if either is missing.
func (f *FileStorage) Init() error {
	if err := os.MkdirAll(filepath.Dir(f.path), DirMode); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if _, err := os.Stat(f.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat users file: %w", err)
	}
	if err := f.write(nil); err != nil {
		return fmt.Errorf("seed users file: %w", err)
	}
	return nil
}

// Load reads and decodes the users file. A missing file is an error.
func (f *FileStorage) Load(_ context.Context) ([]models.User, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	var users []models.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("decode users file: %w", err)
	}
	return users, nil
}

// Save writes users to a temporary file in the same directory and renames it
// over the users file, so readers never observe a partial write. It returns
// ErrUsersFileMissing if the file was removed after Init.
func (f *FileStorage) Save(_ context.Context, users []models.User) error {
	if _, err := os.Stat(f.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrUsersFileMissing, f.path)
		}
		return fmt.Errorf("stat users file: %w", err)
	}
	return f.write(users)
}

func (f *FileStorage) write(users []models.User) error {
	if users == nil {
		users = []models.User{}
	}
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	return writeFileAtomic(f.path, data, FileMode)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	// After a successful rename this is a no-op.
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
