package llm

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenBudget counts and trims text in model tokens. All providers are
// approximated with the GPT-4 encoding.
type TokenBudget struct {
	codec tokenizer.Codec
}

// NewTokenBudget loads the GPT-4 codec.
func NewTokenBudget() (*TokenBudget, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &TokenBudget{codec: codec}, nil
}

// Count returns the token count of text. It falls back to a four
// characters per token estimate when the codec is unavailable.
func (b *TokenBudget) Count(text string) int {
	if b == nil || b.codec == nil {
		return len(text) / 4
	}
	n, err := b.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}

// CountRequest sums the tokens of the system prompt and every message.
func (b *TokenBudget) CountRequest(req Request) int {
	total := b.Count(req.System)
	for _, m := range req.Messages {
		total += b.Count(m.Content)
	}
	return total
}

// Truncate cuts text to at most limit tokens.
func (b *TokenBudget) Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if b == nil || b.codec == nil {
		if len(text) <= limit*4 {
			return text
		}
		return text[:limit*4]
	}
	ids, _, err := b.codec.Encode(text)
	if err != nil || len(ids) <= limit {
		return text
	}
	out, err := b.codec.Decode(ids[:limit])
	if err != nil {
		return text
	}
	return out
}

// Fit keeps the newest messages whose combined size stays within limit
// tokens. The newest message is always kept.
func (b *TokenBudget) Fit(msgs []Message, limit int) []Message {
	if len(msgs) == 0 {
		return msgs
	}
	used := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		n := b.Count(msgs[i].Content)
		if start < len(msgs) && used+n > limit {
			break
		}
		used += n
		start = i
	}
	return msgs[start:]
}
