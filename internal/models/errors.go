package models

import "errors"

// error kinds; clients wrap them so callers can branch with errors.Is
var (
	ErrConfiguration = errors.New("configuration error")
	ErrExtraction    = errors.New("extraction error")
	ErrEmbedding     = errors.New("embedding error")
	ErrIndex         = errors.New("index error")
	ErrGeneration    = errors.New("generation error")
	ErrNotFound      = errors.New("not found")
)

// input errors
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrInvalidTopK         = errors.New("top_k must be between 1 and 20")
	ErrInvalidQuery        = errors.New("query must not be empty")
	ErrInvalidFileID       = errors.New("invalid file_id")
	ErrInvalidFilter       = errors.New("invalid filter")
)

// IsInputError reports whether err was caused by a bad request rather than a failing dependency.
func IsInputError(err error) bool {
	return errors.Is(err, ErrUnsupportedFileType) ||
		errors.Is(err, ErrInvalidTopK) ||
		errors.Is(err, ErrInvalidQuery) ||
		errors.Is(err, ErrInvalidFileID) ||
		errors.Is(err, ErrInvalidFilter)
}
