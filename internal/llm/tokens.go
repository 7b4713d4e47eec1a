package llm

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// Budget truncates text to a maximum number of cl100k tokens before it is
// sent to a model. Counts are approximate for non-OpenAI providers, which is
// acceptable for a size guard.
type Budget struct {
	codec     tokenizer.Codec
	maxTokens int
}

func NewBudget(maxTokens int) (*Budget, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &Budget{codec: codec, maxTokens: maxTokens}, nil
}

// Count returns the token count of text, or -1 if it cannot be encoded.
func (b *Budget) Count(text string) int {
	ids, _, err := b.codec.Encode(text)
	if err != nil {
		return -1
	}
	return len(ids)
}

// Truncate keeps the head of text within the budget. It reports whether
// anything was cut. A nil Budget or non-positive limit disables truncation.
func (b *Budget) Truncate(text string) (string, bool) {
	if b == nil || b.maxTokens <= 0 {
		return text, false
	}
	ids, _, err := b.codec.Encode(text)
	if err != nil || len(ids) <= b.maxTokens {
		return text, false
	}
	out, err := b.codec.Decode(ids[:b.maxTokens])
	if err != nil {
		return text, false
	}
	return out, true
}
