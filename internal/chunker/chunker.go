package chunker

import (
	"fmt"
	"strings"

	"ragledger/internal/models"
)

// Chunker splits text into overlapping token windows.
type Chunker struct {
	tok     Tokenizer
	size    int
	overlap int
}

func New(tok Tokenizer, size, overlap int) (*Chunker, error) {
	if tok == nil {
		return nil, fmt.Errorf("%w: tokenizer is required", models.ErrConfiguration)
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", models.ErrConfiguration, size, overlap)
	}
	return &Chunker{tok: tok, size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the decoded windows of text. Blank text gives no windows.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	tokens := c.tok.Encode(text)
	n := len(tokens)
	if n == 0 {
		return nil
	}

	stride := c.size - c.overlap
	windows := make([]string, 0, windowCount(n, c.size, c.overlap))
	for start := 0; ; start += stride {
		end := min(start+c.size, n)
		windows = append(windows, c.tok.Decode(tokens[start:end]))
		if end == n {
			break
		}
	}
	return windows
}

// ChunkDocument chunks every page in order. Ids run across pages: {file_id}_0, {file_id}_1, ...
func (c *Chunker) ChunkDocument(doc models.Document, pages []models.Page) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		for _, text := range c.Split(page.Text) {
			chunks = append(chunks, models.Chunk{
				ID:       models.ChunkID(doc.FileID, len(chunks)),
				FileID:   doc.FileID,
				Filename: doc.Filename,
				FileType: doc.FileType,
				Page:     page.Number,
				Content:  text,
			})
		}
	}
	return chunks
}

// windowCount is ceil((n-overlap)/(size-overlap)) for n > overlap, else 1 (0 for empty input).
func windowCount(n, size, overlap int) int {
	switch {
	case n == 0:
		return 0
	case n <= overlap:
		return 1
	}
	stride := size - overlap
	return (n - overlap + stride - 1) / stride
}
