package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"youkb/internal/chunker"
	"youkb/internal/domain"
	"youkb/internal/kbstore"
	"youkb/internal/parser"
)

// Report aggregates one digest run. Files that failed or could not be parsed
// count as skipped; the run itself still succeeds.
type Report struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Chunks    int `json:"total_chunks"`
}

// Options tune discovery and processing for one ingester.
type Options struct {
	Patterns   []string
	Recursive  bool
	SizeBudget int
	Workers    int
}

// Ingester drives the write path: discover files, deduplicate by content
// hash, parse, chunk, embed, and append to the knowledge base store.
type Ingester struct {
	store    kbstore.Store
	embedder domain.Embedder
	opts     Options
	log      *slog.Logger
}

func New(store kbstore.Store, embedder domain.Embedder, opts Options, log *slog.Logger) *Ingester {
	if len(opts.Patterns) == 0 {
		opts.Patterns = []string{"*.vtt", "*.txt", "*.md"}
	}
	if opts.SizeBudget <= 0 {
		opts.SizeBudget = chunker.DefaultSizeBudget
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ingester{store: store, embedder: embedder, opts: opts, log: log.With("component", "ingest")}
}

// Digest ingests every matching file under roots into the named knowledge
// base. Files fan out across a bounded worker pool; failures local to one
// file are logged and counted as skipped. Appends are the atomic unit, so
// cancellation between files never leaves a partially visible file.
func (in *Ingester) Digest(ctx context.Context, kbName string, roots []string) (Report, error) {
	ok, err := in.store.Exists(ctx, kbName)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		return Report{}, fmt.Errorf("%q: %w", kbName, kbstore.ErrNotFound)
	}

	paths, err := in.discover(roots)
	if err != nil {
		return Report{}, err
	}
	in.log.Info("starting digest", "kb", kbName, "candidates", len(paths))

	var (
		mu     sync.Mutex
		report Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.opts.Workers)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			added, err := in.processFile(gctx, kbName, path)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				return err
			case err != nil:
				in.log.Warn("file failed, continuing", "path", path, "error", err)
				report.Skipped++
			case added == 0:
				report.Skipped++
			default:
				report.Processed++
				report.Chunks += added
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	in.log.Info("digest finished", "kb", kbName,
		"processed", report.Processed, "skipped", report.Skipped, "chunks", report.Chunks)
	return report, nil
}

// processFile returns the number of chunks appended for path. Zero with a
// nil error means the file was skipped (duplicate, unsupported, or empty).
func (in *Ingester) processFile(ctx context.Context, kbName, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	seen, err := in.store.HasFileHash(ctx, kbName, hash)
	if err != nil {
		return 0, fmt.Errorf("hash lookup: %w", err)
	}
	if seen {
		in.log.Debug("unchanged file skipped", "path", path)
		return 0, nil
	}

	fileType, supported := parser.DetectType(path)
	if !supported {
		in.log.Warn("unsupported file type skipped", "path", path)
		return 0, nil
	}
	entries := parser.Parse(fileType, string(data))
	if len(entries) == 0 {
		in.log.Warn("no entries parsed", "path", path)
		return 0, nil
	}
	chunks := chunker.Chunk(entries, in.opts.SizeBudget)
	if len(chunks) == 0 {
		return 0, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	docID := uuid.NewString()
	videoID := ""
	if fileType == parser.TypeVTT {
		videoID = sourceVideoID(path)
	}

	passages := make([]domain.Passage, 0, len(chunks))
	for _, ch := range chunks {
		vec, err := in.embedder.Embed(ctx, ch.Text)
		if err != nil {
			return 0, fmt.Errorf("embed chunk at %.0fs: %w", ch.StartSec, err)
		}
		passages = append(passages, domain.Passage{
			DocID:    docID,
			Vector:   vec,
			Text:     ch.Text,
			FileName: filepath.Base(path),
			FileType: fileType,
			FilePath: abs,
			FileHash: hash,
			VideoID:  videoID,
			StartSec: ch.StartSec,
		})
	}
	if err := in.store.Append(ctx, kbName, passages); err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}
	in.log.Info("file ingested", "path", path, "chunks", len(passages))
	return len(passages), nil
}

// discover enumerates candidate files under roots matching the configured
// patterns, deduplicated and in sorted order for a deterministic run.
func (in *Ingester) discover(roots []string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat root %s: %w", root, err)
		}
		if !info.IsDir() {
			if in.matches(filepath.Base(root)) {
				seen[root] = struct{}{}
			}
			continue
		}
		if in.opts.Recursive {
			err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && in.matches(d.Name()) {
					seen[path] = struct{}{}
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walk %s: %w", root, err)
			}
			continue
		}
		dirents, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", root, err)
		}
		for _, d := range dirents {
			if !d.IsDir() && in.matches(d.Name()) {
				seen[filepath.Join(root, d.Name())] = struct{}{}
			}
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (in *Ingester) matches(name string) bool {
	for _, pattern := range in.opts.Patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
