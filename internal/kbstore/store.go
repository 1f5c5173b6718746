package kbstore

import (
	"context"
	"errors"
	"math"

	"youkb/internal/domain"
)

var (
	// ErrNotFound is returned when a named knowledge base does not exist.
	ErrNotFound = errors.New("knowledge base not found")
	// ErrAlreadyExists is returned when creating a knowledge base whose name is taken.
	ErrAlreadyExists = errors.New("knowledge base already exists")
	// ErrSchemaMismatch is returned when an appended vector does not match the
	// collection's fixed width. The whole batch is rejected.
	ErrSchemaMismatch = errors.New("vector width does not match collection schema")
)

// Store is a collection of named knowledge bases holding embedded passages.
// Append serializes writers per store; Search is safe for concurrent callers.
type Store interface {
	Create(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	Drop(ctx context.Context, name string) error
	Append(ctx context.Context, name string, passages []domain.Passage) error
	Search(ctx context.Context, name string, vector []float32, k int) ([]domain.SearchResult, error)
	List(ctx context.Context) ([]string, error)
	Stats(ctx context.Context, name string) (domain.Stats, error)
	HasFileHash(ctx context.Context, name, hash string) (bool, error)
	Close() error
}

// Cosine computes cosine similarity between two vectors. Mismatched lengths
// compare over the shorter prefix; zero vectors score zero.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
