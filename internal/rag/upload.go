package rag

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"ragledger/internal/blob"
	"ragledger/internal/helper"
	"ragledger/internal/models"
)

type UploadResult struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	Key      string `json:"-"`
}

// Uploader stores new documents under a fresh file id.
type Uploader struct {
	blobs  blob.Store
	logger zerolog.Logger
}

func NewUploader(blobs blob.Store, logger zerolog.Logger) *Uploader {
	return &Uploader{blobs: blobs, logger: logger}
}

func (u *Uploader) Upload(ctx context.Context, filename string, body []byte) (*UploadResult, error) {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("%w: missing filename", models.ErrUnsupportedFileType)
	}
	ft, err := models.ParseFileType(path.Ext(name))
	if err != nil {
		return nil, err
	}

	fileID, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	key := blob.DocumentKey(fileID, name)
	meta := blob.Metadata{
		OriginalFilename: name,
		FileID:           fileID,
		FileType:         string(ft),
		ContentType:      ft.ContentType(),
	}
	if err := u.blobs.Upload(ctx, key, body, meta); err != nil {
		u.logger.Error().Err(err).Str("file_id", fileID).Str("filename", name).Msg("Upload failed")
		return nil, err
	}

	u.logger.Info().Str("file_id", fileID).Str("filename", name).Int("bytes", len(body)).Msg("Uploaded document")
	return &UploadResult{FileID: fileID, Filename: name, Key: key}, nil
}
