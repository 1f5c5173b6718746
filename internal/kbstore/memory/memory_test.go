package memory

import (
	"context"
	"errors"
	"testing"

	"youkb/internal/domain"
	"youkb/internal/kbstore"
)

func passage(text string, vec []float32) domain.Passage {
	return domain.Passage{
		Text:     text,
		Vector:   vec,
		FileName: "talk.vtt",
		FileType: "vtt",
		FileHash: "hash-" + text,
	}
}

func TestCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Create(ctx, "kb"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, "kb"); !errors.Is(err, kbstore.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestAppendValidatesWidth(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Create(ctx, "kb"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Append(ctx, "kb", []domain.Passage{passage("a", []float32{1, 0})}); err != nil {
		t.Fatalf("append: %v", err)
	}
	err := s.Append(ctx, "kb", []domain.Passage{
		passage("b", []float32{0, 1}),
		passage("c", []float32{0, 1, 2}),
	})
	if !errors.Is(err, kbstore.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	stats, err := s.Stats(ctx, "kb")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Rows != 1 {
		t.Errorf("rejected batch must not be partially applied, rows = %d", stats.Rows)
	}
}

func TestAppendToMissingBase(t *testing.T) {
	s := New()
	err := s.Append(context.Background(), "nope", []domain.Passage{passage("a", []float32{1})})
	if !errors.Is(err, kbstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchOrderAndTies(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Create(ctx, "kb"); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.Append(ctx, "kb", []domain.Passage{
		passage("far", []float32{0, 1}),
		passage("tie-first", []float32{1, 0}),
		passage("tie-second", []float32{1, 0}),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	results, err := s.Search(ctx, "kb", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Passage.Text != "tie-first" || results[1].Passage.Text != "tie-second" {
		t.Errorf("ties must keep insertion order, got %q then %q", results[0].Passage.Text, results[1].Passage.Text)
	}
	if results[2].Passage.Text != "far" {
		t.Errorf("worst match must come last, got %q", results[2].Passage.Text)
	}

	again, err := s.Search(ctx, "kb", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	for i := range results {
		if results[i].Passage.Text != again[i].Passage.Text {
			t.Errorf("search is not deterministic at rank %d", i)
		}
	}
}

func TestDropIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Create(ctx, "kb"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Drop(ctx, "kb"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := s.Drop(ctx, "kb"); err != nil {
		t.Fatalf("second drop should be a no-op, got %v", err)
	}
	if ok, _ := s.Exists(ctx, "kb"); ok {
		t.Error("dropped base still exists")
	}
}

func TestHasFileHash(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Create(ctx, "kb"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok, err := s.HasFileHash(ctx, "kb", "hash-a"); err != nil || ok {
		t.Fatalf("empty base should have no hashes: %v %v", ok, err)
	}
	if err := s.Append(ctx, "kb", []domain.Passage{passage("a", []float32{1})}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if ok, err := s.HasFileHash(ctx, "kb", "hash-a"); err != nil || !ok {
		t.Fatalf("expected hash hit, got %v %v", ok, err)
	}
}

func TestStatsBreakdown(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Create(ctx, "kb"); err != nil {
		t.Fatalf("create: %v", err)
	}
	batch := []domain.Passage{
		{Text: "a", Vector: []float32{1}, FileName: "one.vtt", FileType: "vtt", VideoID: "abcdefghijk"},
		{Text: "b", Vector: []float32{1}, FileName: "one.vtt", FileType: "vtt", VideoID: "abcdefghijk"},
		{Text: "c", Vector: []float32{1}, FileName: "two.txt", FileType: "txt"},
	}
	if err := s.Append(ctx, "kb", batch); err != nil {
		t.Fatalf("append: %v", err)
	}
	stats, err := s.Stats(ctx, "kb")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Rows != 3 {
		t.Errorf("rows = %d, want 3", stats.Rows)
	}
	if stats.ByFileType["vtt"] != 2 || stats.ByFileType["txt"] != 1 {
		t.Errorf("unexpected type breakdown: %v", stats.ByFileType)
	}
	if stats.BySourceFile["one.vtt"] != 2 {
		t.Errorf("unexpected file breakdown: %v", stats.BySourceFile)
	}
	if stats.DistinctVideos != 1 {
		t.Errorf("distinct videos = %d, want 1", stats.DistinctVideos)
	}
}
