package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

type LocalStorage struct {
	basePath string
	baseURL  string // e.g., "http://localhost:8080/files"
}

func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: abs,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}, nil
}

// resolve maps a storage key to a path under basePath, rejecting traversal.
func (s *LocalStorage) resolve(key string) (string, string, error) {
	clean := path.Clean("/" + filepath.ToSlash(key))[1:]
	if clean == "" {
		return "", "", fmt.Errorf("invalid file path: %q", key)
	}
	full := filepath.Join(s.basePath, filepath.FromSlash(clean))
	if !strings.HasPrefix(full, s.basePath+string(os.PathSeparator)) {
		return "", "", fmt.Errorf("invalid file path: %q", key)
	}
	return clean, full, nil
}

func (s *LocalStorage) Upload(ctx context.Context, file io.Reader, key string, contentType string) (string, error) {
	clean, full, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temp file first so readers never see a partial snapshot.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to store file: %w", err)
	}

	return clean, nil
}

func (s *LocalStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	_, full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	_, full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *LocalStorage) GetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	clean, _, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/" + clean, nil
}

func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, full, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
