package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"youkb/internal/domain"
	"youkb/internal/kbstore"
	"youkb/internal/kbstore/memory"
)

type fakeEmbedder struct{ vec []float32 }

func (f *fakeEmbedder) Model() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}

type fakeGenerator struct {
	answer string
	calls  int
	prompt string
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.answer, f.err
}

func seededStore(t *testing.T) kbstore.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if err := store.Create(ctx, "kb"); err != nil {
		t.Fatalf("create: %v", err)
	}
	batch := []domain.Passage{
		{Vector: []float32{1, 0}, Text: "closest passage", FileName: "talk.vtt", FileType: "vtt", VideoID: "dQw4w9WgXcQ", StartSec: 42},
		{Vector: []float32{0.9, 0.1}, Text: "second passage", FileName: "notes.txt", FileType: "txt"},
		{Vector: []float32{0, 1}, Text: "unrelated passage", FileName: "other.txt", FileType: "txt"},
	}
	if err := store.Append(ctx, "kb", batch); err != nil {
		t.Fatalf("append: %v", err)
	}
	return store
}

func TestAskCitationsAlignWithRetrieval(t *testing.T) {
	store := seededStore(t)
	gen := &fakeGenerator{answer: "The answer [1] with detail [2]."}
	svc := New(store, &fakeEmbedder{vec: []float32{1, 0}}, gen, 2, nil)

	answer, citations, err := svc.Ask(context.Background(), "kb", "what is this about?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if answer != "The answer [1] with detail [2]." {
		t.Errorf("unexpected answer: %q", answer)
	}
	if len(citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(citations))
	}
	for i, c := range citations {
		if c.Ref != i+1 {
			t.Errorf("citation %d has ref %d, want %d", i, c.Ref, i+1)
		}
	}
	if citations[0].Locator != "https://youtu.be/dQw4w9WgXcQ?t=42" {
		t.Errorf("video passages must cite a time-coded deep link, got %q", citations[0].Locator)
	}
	if citations[1].Locator != "notes.txt" {
		t.Errorf("non-video passages must cite the file name, got %q", citations[1].Locator)
	}
}

func TestAskPromptCarriesNumberedContext(t *testing.T) {
	store := seededStore(t)
	gen := &fakeGenerator{answer: "ok"}
	svc := New(store, &fakeEmbedder{vec: []float32{1, 0}}, gen, 2, nil)

	if _, _, err := svc.Ask(context.Background(), "kb", "question?"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	for _, want := range []string{
		"[1] https://youtu.be/dQw4w9WgXcQ?t=42",
		"closest passage",
		"[2] notes.txt",
		"Question: question?",
		`say "I don't know"`,
	} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("prompt is missing %q:\n%s", want, gen.prompt)
		}
	}
}

func TestAskEmptyBaseRefusesWithoutGenerating(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if err := store.Create(ctx, "empty"); err != nil {
		t.Fatalf("create: %v", err)
	}
	gen := &fakeGenerator{answer: "should never be used"}
	svc := New(store, &fakeEmbedder{vec: []float32{1, 0}}, gen, 5, nil)

	answer, citations, err := svc.Ask(ctx, "empty", "anything?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if answer != RefusalAnswer {
		t.Errorf("expected refusal answer, got %q", answer)
	}
	if len(citations) != 0 {
		t.Errorf("expected no citations, got %v", citations)
	}
	if gen.calls != 0 {
		t.Errorf("generator must not be invoked for an empty base, called %d times", gen.calls)
	}
}

func TestAskMissingBase(t *testing.T) {
	svc := New(memory.New(), &fakeEmbedder{vec: []float32{1}}, &fakeGenerator{}, 5, nil)
	_, _, err := svc.Ask(context.Background(), "missing", "q")
	if !errors.Is(err, kbstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAskGenerationFailureReturnsNoAnswer(t *testing.T) {
	store := seededStore(t)
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	svc := New(store, &fakeEmbedder{vec: []float32{1, 0}}, gen, 2, nil)

	answer, citations, err := svc.Ask(context.Background(), "kb", "q")
	if err == nil {
		t.Fatal("expected an error when generation fails")
	}
	if answer != "" || citations != nil {
		t.Errorf("no partial answer may escape a failed call: %q %v", answer, citations)
	}
}
