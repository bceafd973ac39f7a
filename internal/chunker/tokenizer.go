package chunker

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"ragledger/internal/models"
)

const DefaultEncoding = "cl100k_base"

// Tokenizer turns text into token ids and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

var loaderOnce sync.Once

// NewTiktoken loads the BPE ranks from the embedded offline loader, no network needed.
func NewTiktoken(encoding string) (Tokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load tokenizer %q: %w", models.ErrConfiguration, encoding, err)
	}
	return &tiktokenTokenizer{enc: enc}, nil
}

// special tokens in document text are encoded as plain text
func (t *tiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *tiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}
