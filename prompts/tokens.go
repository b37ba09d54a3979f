package prompts

import (
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/SaiNageswarS/chat-boot/llm"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

const (
	perMessageTokens = 4 // role and separators
	replyPrimeTokens = 3
)

// TokenCounter estimates the prompt size of a payload. Until the encoding is
// loaded, or when it cannot be loaded, it falls back to ~4 characters per token.
type TokenCounter struct {
	load     func() (*tiktoken.Tiktoken, error)
	once     sync.Once
	encoding atomic.Pointer[tiktoken.Tiktoken]
}

func NewTokenCounter(load func() (*tiktoken.Tiktoken, error)) *TokenCounter {
	return &TokenCounter{load: load}
}

var DefaultTokenCounter = NewTokenCounter(func() (*tiktoken.Tiktoken, error) {
	return tiktoken.GetEncoding("cl100k_base")
})

// Warm loads the encoding. It may fetch the BPE ranks over the network, so
// callers run it in the background.
func (c *TokenCounter) Warm() {
	c.once.Do(func() {
		enc, err := c.load()
		if err != nil {
			logger.Error("Token encoding unavailable, using estimates", zap.Error(err))
			return
		}
		c.encoding.Store(enc)
	})
}

func (c *TokenCounter) CountText(text string) int {
	if enc := c.encoding.Load(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}

func (c *TokenCounter) CountMessages(messages []llm.Message) int {
	if len(messages) == 0 {
		return 0
	}

	tokens := replyPrimeTokens
	for _, m := range messages {
		tokens += perMessageTokens
		tokens += c.CountText(string(m.Role))
		tokens += c.CountText(m.Content)
	}
	return tokens
}
