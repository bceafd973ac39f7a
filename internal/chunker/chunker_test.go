package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragledger/internal/models"
)

// wordTokenizer maps each whitespace separated word to one token.
type wordTokenizer struct {
	ids   map[string]int
	words []string
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{ids: map[string]int{}}
}

func (w *wordTokenizer) Encode(text string) []int {
	fields := strings.Fields(text)
	out := make([]int, len(fields))
	for i, f := range fields {
		id, ok := w.ids[f]
		if !ok {
			id = len(w.words)
			w.ids[f] = id
			w.words = append(w.words, f)
		}
		out[i] = id
	}
	return out
}

func (w *wordTokenizer) Decode(tokens []int) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = w.words[t]
	}
	return strings.Join(parts, " ")
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestNewValidation(t *testing.T) {
	tok := newWordTokenizer()
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{name: "defaults", size: 500, overlap: 50},
		{name: "no overlap", size: 10, overlap: 0},
		{name: "overlap equals size", size: 10, overlap: 10, wantErr: true},
		{name: "overlap larger than size", size: 10, overlap: 20, wantErr: true},
		{name: "negative overlap", size: 10, overlap: -1, wantErr: true},
		{name: "zero size", size: 0, overlap: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tok, tt.size, tt.overlap)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrConfiguration)
				return
			}
			assert.NoError(t, err)
		})
	}

	_, err := New(nil, 10, 1)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestSplitBlankText(t *testing.T) {
	c, err := New(newWordTokenizer(), 500, 50)
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("  \n\t "))
}

func TestSplitWindowCount(t *testing.T) {
	const size, overlap = 10, 3
	expect := func(n int) int {
		if n == 0 {
			return 0
		}
		if n <= overlap {
			return 1
		}
		return (n - overlap + (size - overlap) - 1) / (size - overlap)
	}

	for n := 0; n <= 60; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			c, err := New(newWordTokenizer(), size, overlap)
			require.NoError(t, err)

			got := c.Split(words(n))
			assert.Len(t, got, expect(n))
		})
	}
}

func TestSplitSingleWindow(t *testing.T) {
	tok := newWordTokenizer()
	c, err := New(tok, 500, 50)
	require.NoError(t, err)

	text := words(500)
	got := c.Split(text)
	require.Len(t, got, 1)
	assert.Equal(t, text, got[0])

	assert.Len(t, c.Split(words(501)), 2)
}

func TestSplitOverlap(t *testing.T) {
	tok := newWordTokenizer()
	const size, overlap = 8, 3
	c, err := New(tok, size, overlap)
	require.NoError(t, err)

	windows := c.Split(words(40))
	require.Greater(t, len(windows), 1)

	for i := 0; i+1 < len(windows); i++ {
		cur := tok.Encode(windows[i])
		next := tok.Encode(windows[i+1])
		require.Len(t, cur, size)
		assert.Equal(t, cur[len(cur)-overlap:], next[:overlap], "window %d", i)
	}
}

func TestChunkDocument(t *testing.T) {
	c, err := New(newWordTokenizer(), 4, 1)
	require.NoError(t, err)

	doc := models.Document{FileID: "file", Filename: "report.pdf", FileType: models.FileTypePDF}
	pages := []models.Page{
		{Text: words(7), Number: mo.Some(1)},
		{Text: "", Number: mo.Some(2)},
		{Text: "tail words", Number: mo.Some(3)},
	}

	chunks := c.ChunkDocument(doc, pages)
	require.Len(t, chunks, 3)

	for i, ch := range chunks {
		assert.Equal(t, fmt.Sprintf("file_%d", i), ch.ID)
		assert.Equal(t, "report.pdf", ch.Filename)
		assert.Equal(t, models.FileTypePDF, ch.FileType)
	}
	assert.Equal(t, mo.Some(1), chunks[0].Page)
	assert.Equal(t, mo.Some(1), chunks[1].Page)
	assert.Equal(t, mo.Some(3), chunks[2].Page)
	assert.Equal(t, "tail words", chunks[2].Content)
}

func TestTiktokenChunking(t *testing.T) {
	tok, err := NewTiktoken(DefaultEncoding)
	require.NoError(t, err)

	c, err := New(tok, models.DefaultChunkSize, models.DefaultChunkOverlap)
	require.NoError(t, err)

	text := strings.Repeat(" balance", 1200)
	n := len(tok.Encode(text))
	require.Greater(t, n, models.DefaultChunkSize)

	windows := c.Split(text)
	assert.Len(t, windows, windowCount(n, models.DefaultChunkSize, models.DefaultChunkOverlap))

	first := tok.Encode(windows[0])
	second := tok.Encode(windows[1])
	assert.Len(t, first, models.DefaultChunkSize)
	assert.Equal(t, first[len(first)-models.DefaultChunkOverlap:], second[:models.DefaultChunkOverlap])
}
