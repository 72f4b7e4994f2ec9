package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// OpenAI BPE encodings accepted by NewTiktokenCounter.
const (
	EncodingO200K  = "o200k_base"
	EncodingCL100K = "cl100k_base"
)

// encoder is the part of *tiktoken.Tiktoken the counter uses.
type encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// TiktokenCounter counts tokens exactly as OpenAI models do. Special-token
// markers in the text are counted as ordinary text.
type TiktokenCounter struct {
	encoding string
	enc      encoder
}

// NewTiktokenCounter loads the named encoding. The BPE ranks are downloaded
// on first use and cached in TIKTOKEN_CACHE_DIR when that is set.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = EncodingO200K
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{encoding: encoding, enc: enc}, nil
}

// Encoding returns the encoding name.
func (c *TiktokenCounter) Encoding() string {
	return c.encoding
}

// Count implements TokenCounter.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}
