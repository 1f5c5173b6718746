package domain

import "context"

// Embedder converts free text into a fixed-length numeric vector. One model
// serves one knowledge base for its whole lifetime; mixing vector spaces
// inside a base corrupts nearest-neighbor ranking.
type Embedder interface {
	Model() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
