// Package tokenizer estimates conversation size in tokens so the agent can
// report context usage without depending on provider-reported numbers.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/entrhq/webforge/pkg/types"
	"github.com/pkoukk/tiktoken-go"
)

const (
	// encodingName is the BPE encoding used for counting. cl100k_base is a
	// reasonable estimator across current model families.
	encodingName = "cl100k_base"

	// perMessageOverhead approximates the framing tokens each message adds.
	perMessageOverhead = 4

	// imageTokenEstimate is the flat cost charged for an inline image block.
	imageTokenEstimate = 1100
)

// Tokenizer counts tokens with a fixed BPE encoding. Safe for concurrent use.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

var (
	shared     *Tokenizer
	sharedErr  error
	sharedOnce sync.Once
)

// New creates a tokenizer backed by the cl100k_base encoding.
func New() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encodingName, err)
	}
	return &Tokenizer{enc: enc}, nil
}

// Shared returns a lazily initialized process-wide tokenizer. Loading the
// encoding is not free, so callers that count per turn share one instance.
func Shared() (*Tokenizer, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = New()
	})
	return shared, sharedErr
}

// CountText returns the token count of a string.
func (t *Tokenizer) CountText(s string) int {
	if s == "" {
		return 0
	}
	return len(t.enc.Encode(s, nil, nil))
}

// CountMessage returns the estimated token count of one message, including
// tool inputs and nested result payloads.
func (t *Tokenizer) CountMessage(m *types.Message) int {
	count := perMessageOverhead
	for _, b := range m.Content {
		count += t.countBlock(b)
	}
	return count
}

// CountMessages returns the estimated token count of a conversation.
func (t *Tokenizer) CountMessages(msgs []*types.Message) int {
	var count int
	for _, m := range msgs {
		count += t.CountMessage(m)
	}
	return count
}

func (t *Tokenizer) countBlock(b types.ContentBlock) int {
	var count int
	switch b.Type {
	case types.BlockTypeText:
		count += t.CountText(b.Text)
	case types.BlockTypeToolUse:
		count += t.CountText(b.Name)
		count += t.CountText(string(b.Input))
	case types.BlockTypeToolResult:
		for _, inner := range b.Content {
			count += t.countBlock(inner)
		}
	case types.BlockTypeImage:
		count += imageTokenEstimate
	}
	return count
}
