package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"youkb/internal/domain"
	"youkb/internal/kbstore"
)

type collection struct {
	dimension int
	passages  []domain.Passage
}

// Store keeps knowledge bases in process memory. It mirrors the sqlite
// backend's semantics and backs tests and throwaway sessions.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) Create(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return fmt.Errorf("%q: %w", name, kbstore.ErrAlreadyExists)
	}
	s.collections[name] = &collection{}
	return nil
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *Store) Drop(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *Store) Append(ctx context.Context, name string, passages []domain.Passage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, kbstore.ErrNotFound)
	}
	if len(passages) == 0 {
		return nil
	}
	dim := c.dimension
	if dim == 0 {
		dim = len(passages[0].Vector)
	}
	for _, p := range passages {
		if len(p.Vector) != dim || dim == 0 {
			return fmt.Errorf("%q: got width %d, want %d: %w", name, len(p.Vector), dim, kbstore.ErrSchemaMismatch)
		}
	}
	c.dimension = dim
	c.passages = append(c.passages, passages...)
	return nil
}

func (s *Store) Search(ctx context.Context, name string, vector []float32, k int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, kbstore.ErrNotFound)
	}
	if k <= 0 {
		k = 5
	}
	results := make([]domain.SearchResult, 0, len(c.passages))
	for _, p := range c.passages {
		results = append(results, domain.SearchResult{Passage: p, Score: kbstore.Cosine(p.Vector, vector)})
	}
	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Stats(ctx context.Context, name string) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return domain.Stats{}, fmt.Errorf("%q: %w", name, kbstore.ErrNotFound)
	}
	stats := domain.Stats{
		Rows:         int64(len(c.passages)),
		ByFileType:   make(map[string]int64),
		BySourceFile: make(map[string]int64),
	}
	videos := make(map[string]struct{})
	for _, p := range c.passages {
		stats.ByFileType[p.FileType]++
		stats.BySourceFile[p.FileName]++
		if p.VideoID != "" {
			videos[p.VideoID] = struct{}{}
		}
	}
	stats.DistinctVideos = int64(len(videos))
	return stats, nil
}

func (s *Store) HasFileHash(ctx context.Context, name, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return false, fmt.Errorf("%q: %w", name, kbstore.ErrNotFound)
	}
	for _, p := range c.passages {
		if p.FileHash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Close() error { return nil }
