package llm

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many model tokens a text uses
type TokenCounter interface {
	CountTokens(text string) int
}

// TiktokenCounter counts tokens with an OpenAI BPE encoding
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter resolves the encoding for a model name, falling back to
// treating name as an encoding name (e.g. "cl100k_base").
func NewTiktokenCounter(name string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, err
		}
	}
	return &TiktokenCounter{enc: enc}, nil
}

// CountTokens implements TokenCounter
func (t *TiktokenCounter) CountTokens(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
