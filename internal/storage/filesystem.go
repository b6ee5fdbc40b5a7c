package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const PlaceholderName = "default.png"

// PreviewStore persists rendered wallpapers as PNG files in a single
// directory and hands out URL references under urlPrefix.
type PreviewStore struct {
	dir       string
	urlPrefix string
}

// NewPreviewStore creates dir if needed. urlPrefix is the URL path the
// directory is served under, e.g. "/static/previews".
func NewPreviewStore(dir, urlPrefix string) (*PreviewStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage: preview directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure preview directory: %w", err)
	}
	return &PreviewStore{dir: dir, urlPrefix: "/" + strings.Trim(urlPrefix, "/")}, nil
}

func (s *PreviewStore) Dir() string { return s.dir }

// PlaceholderRef is the reference of the fallback image.
func (s *PreviewStore) PlaceholderRef() string {
	return path.Join(s.urlPrefix, PlaceholderName)
}

// Save encodes img as PNG under a random name and returns its reference.
func (s *PreviewStore) Save(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := fmt.Sprintf("wallpaper_%s.png", strings.ReplaceAll(uuid.NewString(), "-", ""))
	if err := s.write(name, img); err != nil {
		return "", err
	}
	return path.Join(s.urlPrefix, name), nil
}

// EnsurePlaceholder writes img as the fallback image unless one exists.
func (s *PreviewStore) EnsurePlaceholder(img image.Image) error {
	if _, err := os.Stat(filepath.Join(s.dir, PlaceholderName)); err == nil {
		return nil
	}
	return s.write(PlaceholderName, img)
}

// Resolve maps a reference to a file on disk. When the referenced file is
// missing the placeholder path is returned with found=false.
func (s *PreviewStore) Resolve(ref string) (filePath string, found bool) {
	placeholder := filepath.Join(s.dir, PlaceholderName)
	name, err := sanitizeName(path.Base(ref))
	if err != nil {
		return placeholder, false
	}
	full := filepath.Join(s.dir, name)
	if info, err := os.Stat(full); err != nil || info.IsDir() {
		return placeholder, false
	}
	return full, true
}

func (s *PreviewStore) write(name string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("storage: encode png: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".tmp-*.png")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: rename file: %w", err)
	}
	return nil
}

// sanitizeName rejects anything that is not a plain file name.
func sanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", errors.New("storage: invalid name")
	}
	if strings.ContainsAny(name, `/\`) {
		return "", errors.New("storage: invalid name")
	}
	return name, nil
}
