// Package ingest turns uploaded documents into searchable lore: it loads and
// splits files, embeds the chunks it has not seen before and upserts them into
// the vector index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jschreck/saga/internal/embedding"
	"github.com/jschreck/saga/internal/store"
	"github.com/jschreck/saga/internal/vectorstore"
)

var ErrQueueFull = errors.New("ingest queue is full")

// VectorIndex is where embedded chunks end up.
type VectorIndex interface {
	Upsert(ctx context.Context, collection string, points []vectorstore.Point) error
}

// ChunkIndex remembers which chunks are already indexed.
type ChunkIndex interface {
	ExistingIDs(ids []string) (map[string]bool, error)
	InsertBatch(chunks []store.Chunk) error
	RecordDocument(source, path string) error
}

// Options configures a Pipeline.
type Options struct {
	Collection string
	ChunkSize  int
	Overlap    int
	BatchSize  int
	Workers    int
	QueueSize  int
}

// Result summarizes one ingestion run.
type Result struct {
	Files       int `json:"files"`
	FailedFiles int `json:"failedFiles"`
	Chunks      int `json:"chunks"`
	New         int `json:"new"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

func (r *Result) add(o Result) {
	r.Files += o.Files
	r.FailedFiles += o.FailedFiles
	r.Chunks += o.Chunks
	r.New += o.New
	r.Skipped += o.Skipped
	r.Failed += o.Failed
}

type pendingChunk struct {
	store.Chunk
	vector []float32
}

// Pipeline is safe for concurrent use. Files passed to Enqueue are processed
// one at a time by Run.
type Pipeline struct {
	chunks   ChunkIndex
	embedder embedding.Embedder
	index    VectorIndex
	splitter Splitter
	opts     Options
	logger   *slog.Logger
	queue    chan string
}

func NewPipeline(chunks ChunkIndex, embedder embedding.Embedder, index VectorIndex, opts Options, logger *slog.Logger) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		chunks:   chunks,
		embedder: embedder,
		index:    index,
		splitter: Splitter{ChunkSize: opts.ChunkSize, Overlap: opts.Overlap},
		opts:     opts,
		logger:   logger,
		queue:    make(chan string, opts.QueueSize),
	}
}

// Enqueue schedules path for ingestion by Run.
func (p *Pipeline) Enqueue(path string) error {
	select {
	case p.queue <- path:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run drains the queue until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-p.queue:
			res, err := p.IngestFile(ctx, path)
			if err != nil {
				p.logger.Error("ingest failed", "file", filepath.Base(path), "error", err)
				continue
			}
			p.logger.Info("ingest complete", "file", filepath.Base(path),
				"chunks", res.Chunks, "new", res.New, "skipped", res.Skipped, "failed", res.Failed)
		}
	}
}

// IngestDir ingests every supported file directly under dir, in name order.
// A file that cannot be read is logged and counted, not fatal.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) (Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Result{}, fmt.Errorf("read dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && Supported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var total Result
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := p.IngestFile(ctx, filepath.Join(dir, name))
		if err != nil {
			p.logger.Error("ingest failed", "file", name, "error", err)
			total.FailedFiles++
			continue
		}
		total.add(res)
	}
	return total, nil
}

// IngestFile loads, splits and indexes one document. Chunk ids are
// "<filename>_<index>"; ids already recorded are skipped. A batch that fails
// to embed or upsert is logged and counted in Failed.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (Result, error) {
	source := filepath.Base(path)
	text, err := Load(path)
	if err != nil {
		return Result{}, err
	}

	pieces := p.splitter.Split(text)
	res := Result{Files: 1, Chunks: len(pieces)}

	ids := make([]string, len(pieces))
	for i := range pieces {
		ids[i] = fmt.Sprintf("%s_%d", source, i)
	}
	existing, err := p.chunks.ExistingIDs(ids)
	if err != nil {
		return res, fmt.Errorf("lookup existing chunks: %w", err)
	}

	var fresh []*pendingChunk
	for i, piece := range pieces {
		if existing[ids[i]] {
			res.Skipped++
			continue
		}
		fresh = append(fresh, &pendingChunk{Chunk: store.Chunk{
			ID:          ids[i],
			Source:      source,
			Seq:         i,
			PointID:     vectorstore.PointID(ids[i]),
			ContentHash: embedding.ContentHash(piece),
			Text:        piece,
			Collection:  p.opts.Collection,
		}})
	}

	for start := 0; start < len(fresh); start += p.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		batch := fresh[start:min(start+p.opts.BatchSize, len(fresh))]
		if err := p.indexBatch(ctx, batch); err != nil {
			p.logger.Warn("batch failed", "file", source, "offset", start, "size", len(batch), "error", err)
			res.Failed += len(batch)
			continue
		}
		res.New += len(batch)
		p.logger.Debug("batch indexed", "file", source, "done", start+len(batch), "total", len(fresh))
	}

	if err := p.chunks.RecordDocument(source, path); err != nil {
		p.logger.Warn("record document failed", "file", source, "error", err)
	}
	return res, nil
}

func (p *Pipeline) indexBatch(ctx context.Context, batch []*pendingChunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for _, c := range batch {
		g.Go(func() error {
			vec, err := p.embedder.Embed(gctx, c.Text)
			if err != nil {
				return fmt.Errorf("embed %s: %w", c.ID, err)
			}
			c.vector = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	points := make([]vectorstore.Point, len(batch))
	rows := make([]store.Chunk, len(batch))
	for i, c := range batch {
		points[i] = vectorstore.Point{
			ID:     c.PointID,
			Vector: c.vector,
			Payload: map[string]any{
				"chunk_id": c.ID,
				"source":   c.Source,
				"text":     c.Text,
			},
		}
		rows[i] = c.Chunk
	}
	if err := p.index.Upsert(ctx, p.opts.Collection, points); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	if err := p.chunks.InsertBatch(rows); err != nil {
		return fmt.Errorf("record chunks: %w", err)
	}
	return nil
}
