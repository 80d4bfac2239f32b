// Package tokens counts text tokens for the query token report.
package tokens

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens using the encoding of a specific model. When the
// model's encoding is unavailable it falls back to a word-count
// approximation (words x 1.3).
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter creates a Counter for the given model. An unknown model is not
// an error: the counter silently degrades to the approximation.
func NewCounter(model string) *Counter {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return &Counter{}
	}
	return &Counter{encoding: encoding}
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if c.encoding != nil {
		return len(c.encoding.Encode(text, nil, nil))
	}
	return int(float64(len(strings.Fields(text))) * 1.3)
}
