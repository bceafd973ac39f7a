package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"ragledger/internal/models"
)

// Metadata stored with an uploaded document.
type Metadata struct {
	OriginalFilename string `json:"original_filename"`
	FileID           string `json:"file_id"`
	FileType         string `json:"file_type"`
	ContentType      string `json:"content_type"`
}

func (m Metadata) Map() map[string]string {
	return map[string]string{
		"original_filename": m.OriginalFilename,
		"file_id":           m.FileID,
		"file_type":         m.FileType,
	}
}

type Object struct {
	Key string
}

// Store is the document blob store.
type Store interface {
	Upload(ctx context.Context, key string, body []byte, meta Metadata) error
	// List returns keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]Object, error)
	// Download copies the object into a new temp file under dir ("" for the OS default)
	// and returns its path; the caller removes it with Remove.
	Download(ctx context.Context, key, dir string) (string, error)
	Ping(ctx context.Context) error
	Name() string
}

// DocumentKey is documents/{file_id}/{filename}.
func DocumentKey(fileID, filename string) string {
	return DocumentPrefix(fileID) + path.Base(filename)
}

func DocumentPrefix(fileID string) string {
	return models.DocumentPrefix + fileID + "/"
}

// Remove deletes a downloaded copy. A missing file is not an error.
func Remove(p string) error {
	if p == "" {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// writeTemp streams r into a fresh temp file that keeps the key's extension.
func writeTemp(dir, key string, r io.Reader) (string, error) {
	pattern := "ragledger-*" + strings.ToLower(path.Ext(key))
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return f.Name(), nil
}
