package models

import "github.com/samber/mo"

type SourceMetadata struct {
	FileID string `json:"file_id"`
	Type   string `json:"type"`
}

// Source is a cited chunk returned with an answer.
type Source struct {
	Filename        string         `json:"filename"`
	Page            mo.Option[int] `json:"page"`
	ChunkID         string         `json:"chunk_id"`
	SimilarityScore float32        `json:"similarity_score"`
	Content         string         `json:"content"`
	Metadata        SourceMetadata `json:"metadata"`
}

// SourceFromMatch keeps the ordering information of the hit.
func SourceFromMatch(m Match) Source {
	chunkID := m.Metadata.ChunkID
	if chunkID == "" {
		chunkID = m.ID
	}
	return Source{
		Filename:        m.Metadata.Filename,
		Page:            m.Metadata.Page,
		ChunkID:         chunkID,
		SimilarityScore: m.Score,
		Content:         m.Metadata.Content,
		Metadata: SourceMetadata{
			FileID: m.Metadata.FileID,
			Type:   string(m.Metadata.FileType),
		},
	}
}

type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Query   string   `json:"query"`
}
