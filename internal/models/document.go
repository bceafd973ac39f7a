package models

import (
	"fmt"
	"strings"

	"github.com/samber/mo"
)

// FileType is one of the supported document extensions.
type FileType string

const (
	FileTypePDF FileType = "pdf"
	FileTypeCSV FileType = "csv"
)

// ParseFileType accepts an extension with or without the leading dot.
func ParseFileType(ext string) (FileType, error) {
	switch ft := FileType(strings.ToLower(strings.TrimPrefix(ext, "."))); ft {
	case FileTypePDF, FileTypeCSV:
		return ft, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
}

// ContentType used when storing the raw upload.
func (ft FileType) ContentType() string {
	switch ft {
	case FileTypePDF:
		return "application/pdf"
	case FileTypeCSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// Document is an uploaded file fetched for ingestion.
// Path points at a local temporary copy that the ingestor removes.
type Document struct {
	FileID   string
	Filename string
	FileType FileType
	Path     string
}

// Page is a unit of extracted text; Number is absent for page-less sources.
type Page struct {
	Text   string
	Number mo.Option[int]
}

// Chunk represents a token window of a document with metadata
type Chunk struct {
	ID       string
	FileID   string
	Filename string
	FileType FileType
	Page     mo.Option[int]
	Content  string
}

// ChunkID builds the record id of the i-th chunk of a file.
func ChunkID(fileID string, i int) string {
	return fmt.Sprintf("%s_%d", fileID, i)
}
