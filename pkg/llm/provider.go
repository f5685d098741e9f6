// Package llm turns a record's context into a single quantized number by
// asking a text-completion provider.
package llm

import (
	"context"

	"github.com/harrisonrobin/estima/pkg/model"
)

// Prompt is a single-turn request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Provider sends one prompt and returns the raw reply text. Implementations
// make exactly one attempt and mark throttling with retry.RateLimited.
type Provider interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Subject is the record being estimated plus its comparison data.
type Subject struct {
	Name        string
	Description string
	Content     string
	Summary     string
	History     []model.HistoricalRecord
}
