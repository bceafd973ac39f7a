package models

import (
	"fmt"
	"strconv"

	"github.com/samber/mo"
)

// Metadata stored next to every vector.
type Metadata struct {
	Filename string
	FileID   string
	ChunkID  string
	Page     mo.Option[int]
	FileType FileType
	Content  string
}

// Record is the indexed form of a chunk.
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is one ranked search hit.
type Match struct {
	ID       string
	Score    float32
	Metadata Metadata
}

// Filter is an equality predicate over metadata keys (file_id, filename, type).
type Filter map[string]string

const (
	MetaFilename = "filename"
	MetaFileID   = "file_id"
	MetaChunkID  = "chunk_id"
	MetaPage     = "page"
	MetaType     = "type"
	MetaContent  = "content"
)

// Validate rejects keys outside file_id, filename and type.
func (f Filter) Validate() error {
	for key := range f {
		switch key {
		case MetaFileID, MetaFilename, MetaType:
		default:
			return fmt.Errorf("%w: unsupported key %q", ErrInvalidFilter, key)
		}
	}
	return nil
}

// StringMap flattens metadata for backends that only store strings.
// page is left out when absent.
func (m Metadata) StringMap() map[string]string {
	out := map[string]string{
		MetaFilename: m.Filename,
		MetaFileID:   m.FileID,
		MetaChunkID:  m.ChunkID,
		MetaType:     string(m.FileType),
		MetaContent:  m.Content,
	}
	if p, ok := m.Page.Get(); ok {
		out[MetaPage] = strconv.Itoa(p)
	}
	return out
}

// MetadataFromStrings is the inverse of StringMap. An unparsable page is treated as absent.
func MetadataFromStrings(in map[string]string) Metadata {
	md := Metadata{
		Filename: in[MetaFilename],
		FileID:   in[MetaFileID],
		ChunkID:  in[MetaChunkID],
		FileType: FileType(in[MetaType]),
		Content:  in[MetaContent],
	}
	if p, err := strconv.Atoi(in[MetaPage]); err == nil {
		md.Page = mo.Some(p)
	}
	return md
}
