package character

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

const fileExt = ".yaml"

// FileStore keeps one YAML document per character in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create characters dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

var _ Store = (*FileStore)(nil)

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+fileExt)
}

// Load reads <dir>/<name>.yaml.
func (s *FileStore) Load(_ context.Context, name string) (*domain.Character, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	path := s.path(name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var c domain.Character
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if c.Name == "" {
		c.Name = name
	}
	if c.CreatedAt.IsZero() || c.UpdatedAt.IsZero() {
		if info, err := os.Stat(path); err == nil {
			if c.CreatedAt.IsZero() {
				c.CreatedAt = info.ModTime()
			}
			if c.UpdatedAt.IsZero() {
				c.UpdatedAt = info.ModTime()
			}
		}
	}
	return &c, nil
}

// Save writes the character atomically.
func (s *FileStore) Save(_ context.Context, c *domain.Character) error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal character: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".character-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write character: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(c.Name)); err != nil {
		return fmt.Errorf("failed to rename character file: %w", err)
	}
	return nil
}

// List returns character names sorted alphabetically.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read characters dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the character file.
func (s *FileStore) Delete(_ context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete character file: %w", err)
	}
	return true, nil
}
