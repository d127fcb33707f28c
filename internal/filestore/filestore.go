package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Archiver keeps a copy of every raw inbound message
type Archiver interface {
	// Archive stores raw and returns where it went
	Archive(ctx context.Context, raw []byte, receivedAt time.Time) (string, error)
}

// Store handles local file storage
type Store struct {
	basePath string
}

// New creates a new file store with the given base path
func New(basePath string) (*Store, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create filestore directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// objectName lays messages out by day: 2026/01/02/<uuid>.eml
func objectName(receivedAt time.Time) string {
	return filepath.ToSlash(filepath.Join(
		receivedAt.UTC().Format("2006/01/02"),
		uuid.NewString()+".eml",
	))
}

// Save stores a file under the relative name and returns it
func (s *Store) Save(name string, r io.Reader) (string, error) {
	fullPath := s.FullPath(name)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	// Raw messages carry payer data, keep them private
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(fullPath) // Clean up on error
		return "", fmt.Errorf("write file: %w", err)
	}

	return name, nil
}

// Archive implements Archiver on the local directory
func (s *Store) Archive(ctx context.Context, raw []byte, receivedAt time.Time) (string, error) {
	name, err := s.Save(objectName(receivedAt), bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("archive message: %w", err)
	}
	return s.FullPath(name), nil
}

// FullPath returns the full filesystem path for a relative name
func (s *Store) FullPath(name string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(name))
}

// Archives writes every message to each archiver in turn. The first location
// is returned; a failure in any destination is reported.
type Archives []Archiver

func (as Archives) Archive(ctx context.Context, raw []byte, receivedAt time.Time) (string, error) {
	var (
		first string
		errs  []error
	)
	for _, a := range as {
		loc, err := a.Archive(ctx, raw, receivedAt)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if first == "" {
			first = loc
		}
	}
	return first, errors.Join(errs...)
}
