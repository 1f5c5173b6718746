package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"youkb/internal/domain"
	"youkb/internal/kbstore"
)

// RefusalAnswer is returned without invoking the generation capability when
// retrieval produces no context to ground an answer on.
const RefusalAnswer = "I don't know. The knowledge base has no content relevant to this question."

const promptTemplate = `You are a helpful assistant answering questions about transcribed videos and documents.
Answer the user's question using only the numbered context below.
Mark every factual claim with the bracketed number of the context block it came from, like [1] or [2].
If the context does not contain the answer, say "I don't know". Do not make up an answer.

Context:
%s
Question: %s

Answer:`

// Service drives the read path: embed the query, retrieve the closest
// passages, and synthesize a cited answer.
type Service struct {
	store     kbstore.Store
	embedder  domain.Embedder
	generator domain.Generator
	topK      int
	log       *slog.Logger
}

func New(store kbstore.Store, embedder domain.Embedder, generator domain.Generator, topK int, log *slog.Logger) *Service {
	if topK <= 0 {
		topK = 5
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, embedder: embedder, generator: generator, topK: topK, log: log.With("component", "chat")}
}

// Ask answers a question against the named knowledge base. The returned
// citations are numbered 1..K in retrieval order, matching the bracketed
// references the prompt asks the model to emit. Capability failures surface
// whole; no partial answer is ever returned.
func (s *Service) Ask(ctx context.Context, kbName, query string) (string, []domain.Citation, error) {
	ok, err := s.store.Exists(ctx, kbName)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, fmt.Errorf("%q: %w", kbName, kbstore.ErrNotFound)
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return "", nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := s.store.Search(ctx, kbName, vector, s.topK)
	if err != nil {
		return "", nil, fmt.Errorf("search %q: %w", kbName, err)
	}
	if len(results) == 0 {
		s.log.Info("no passages retrieved", "kb", kbName)
		return RefusalAnswer, nil, nil
	}

	citations := make([]domain.Citation, 0, len(results))
	var contextBlock strings.Builder
	for i, r := range results {
		c := buildCitation(i+1, r.Passage)
		citations = append(citations, c)
		fmt.Fprintf(&contextBlock, "[%d] %s\n%s\n\n", c.Ref, c.Locator, r.Passage.Text)
	}

	prompt := fmt.Sprintf(promptTemplate, contextBlock.String(), query)
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", nil, fmt.Errorf("generate answer: %w", err)
	}
	s.log.Info("answer generated", "kb", kbName, "passages", len(results))
	return strings.TrimSpace(answer), citations, nil
}

// buildCitation formats a locator for one retrieved passage: a time-coded
// deep link when the passage came from a known video, else the source file name.
func buildCitation(ref int, p domain.Passage) domain.Citation {
	seconds := int(p.StartSec)
	if p.VideoID == "" {
		return domain.Citation{Ref: ref, Seconds: seconds, Locator: p.FileName}
	}
	return domain.Citation{
		Ref:     ref,
		VideoID: p.VideoID,
		Seconds: seconds,
		Locator: fmt.Sprintf("https://youtu.be/%s?t=%d", p.VideoID, seconds),
	}
}
