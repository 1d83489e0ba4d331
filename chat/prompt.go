package chat

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/vakeel/vakeel/retrieval"
)

// TokenCounter measures prompt size for context budgeting.
type TokenCounter interface {
	Count(text string) int
}

// TikTokenCounter counts tokens with the model's BPE encoding.
type TikTokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTikTokenCounter resolves the encoding for model. The encoding data
// is fetched on first use, so this can fail offline; callers should fall
// back to HeuristicCounter.
func NewTikTokenCounter(model string) (*TikTokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("resolve encoding for %s: %w", model, err)
	}
	return &TikTokenCounter{encoding: encoding}, nil
}

// Count implements TokenCounter.
func (c *TikTokenCounter) Count(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// HeuristicCounter approximates tokens as one per four bytes, the usual
// rule of thumb for English text.
type HeuristicCounter struct{}

// Count implements TokenCounter.
func (HeuristicCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

// DefaultContextTokenBudget bounds the passage context in the prompt.
const DefaultContextTokenBudget = 3000

// PromptBuilder composes the completion prompt from conversation memory
// and retrieved passages.
type PromptBuilder struct {
	counter TokenCounter
	budget  int
}

// NewPromptBuilder creates a builder with the given token budget for the
// context block; budget <= 0 uses the default.
func NewPromptBuilder(counter TokenCounter, budget int) *PromptBuilder {
	if counter == nil {
		counter = HeuristicCounter{}
	}
	if budget <= 0 {
		budget = DefaultContextTokenBudget
	}
	return &PromptBuilder{counter: counter, budget: budget}
}

// Build composes the prompt. Passages are included in order until the
// token budget is spent; memory is prepended untrimmed since it is
// already capped at a few turns.
func (b *PromptBuilder) Build(query, memory string, results []retrieval.Result) string {
	context := b.contextBlock(results)
	if memory != "" {
		context = memory + context
	}

	return fmt.Sprintf(
		"Context:\n%s\n\nUser Query: %s\n\nTask: Provide a clear, factual legal response or summary.",
		context, query,
	)
}

func (b *PromptBuilder) contextBlock(results []retrieval.Result) string {
	if len(results) == 0 {
		return "No relevant legal documents found."
	}

	var parts []string
	used := 0
	for _, r := range results {
		if r.Text == "" {
			continue
		}
		cost := b.counter.Count(r.Text)
		if used > 0 && used+cost > b.budget {
			break
		}
		parts = append(parts, r.Text)
		used += cost
	}

	if len(parts) == 0 {
		return "No relevant legal documents found."
	}
	return strings.Join(parts, "\n\n")
}
