// Package index keeps the lexical index representation of every chunk
// consistent with its current raw text. Writes flow through the
// synchronizer so raw text, normalized text and the inverted index are
// never visible in a mixed state.
package index

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/fama-labs/searchcore/internal/errors"
	"github.com/fama-labs/searchcore/internal/lexical"
	"github.com/fama-labs/searchcore/internal/normalize"
	"github.com/fama-labs/searchcore/internal/store"
)

// lockStripes serializes concurrent writes to the same chunk ID while
// letting writes to different chunks proceed independently.
const lockStripes = 64

// defaultReindexWorkers bounds the reindex worker pool when the caller
// does not configure one.
const defaultReindexWorkers = 4

// ChunkFailure records one chunk that could not be processed during a
// batch operation.
type ChunkFailure struct {
	ChunkID string `json:"chunk_id"`
	Reason  string `json:"reason"`
}

// ReindexReport is the outcome of ReindexAll. Failures never abort the
// batch; they are collected here instead.
type ReindexReport struct {
	Total     int            `json:"total"`
	Reindexed int            `json:"reindexed"`
	Failures  []ChunkFailure `json:"failures,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

// SyncReport is the outcome of ValidateSync: which chunks' stored
// normalized text disagrees with a fresh recomputation.
type SyncReport struct {
	Checked     int            `json:"checked"`
	Unsynced    int            `json:"unsynced"`
	UnsyncedIDs []string       `json:"unsynced_ids,omitempty"`
	Failures    []ChunkFailure `json:"failures,omitempty"`
}

// InSync reports whether every checked chunk matched.
func (r *SyncReport) InSync() bool {
	return r.Unsynced == 0 && len(r.Failures) == 0
}

// VectorIndexer mirrors the write path into a semantic vector index.
// The in-process semantic searcher implements it; remote collaborators
// maintain their own index and do not.
type VectorIndexer interface {
	IndexText(ctx context.Context, chunkID, text string, metadata map[string]string) error
	Remove(chunkID string)
}

// Synchronizer derives normalized text from raw text and keeps the
// chunk store and the lexical engine in lockstep.
type Synchronizer struct {
	chunks   store.ChunkStore
	pipeline *normalize.Pipeline
	engine   *lexical.Engine
	vectors  VectorIndexer
	logger   *slog.Logger
	workers  int

	locks [lockStripes]sync.Mutex
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithReindexWorkers sets the worker pool size for ReindexAll.
func WithReindexWorkers(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithVectorIndexer mirrors writes into an in-process semantic index.
// On the write path vector indexing is best effort: an embedding
// backend outage must not block chunk persistence, so failures are
// logged and left for ReindexAll to repair.
func WithVectorIndexer(v VectorIndexer) Option {
	return func(s *Synchronizer) {
		s.vectors = v
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSynchronizer wires the chunk store, normalization pipeline and
// lexical engine together.
func NewSynchronizer(chunks store.ChunkStore, pipeline *normalize.Pipeline, engine *lexical.Engine, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		chunks:   chunks,
		pipeline: pipeline,
		engine:   engine,
		logger:   slog.Default(),
		workers:  defaultReindexWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChunkWritten ingests a chunk whose raw text was just created or
// changed: it recomputes the normalized text, persists both fields in
// one transaction and updates the inverted index. Writes to the same
// chunk ID serialize; writes to different chunks run concurrently.
func (s *Synchronizer) OnChunkWritten(ctx context.Context, chunk *store.Chunk) error {
	if chunk == nil || chunk.ID == "" {
		return errors.New(errors.ErrCodeStoreFailed, "chunk must have a non-empty ID", nil)
	}

	lock := s.stripeFor(chunk.ID)
	lock.Lock()
	defer lock.Unlock()

	normalized, err := s.pipeline.Text(chunk.RawText)
	if err != nil {
		return errors.NormalizationError(chunk.ID, err)
	}
	chunk.NormalizedText = normalized

	if err := s.chunks.Put(ctx, chunk); err != nil {
		return err
	}
	if err := s.engine.Index(chunk.ID, chunk.RawText, chunk.Metadata); err != nil {
		return errors.NormalizationError(chunk.ID, err)
	}
	if s.vectors != nil {
		if err := s.vectors.IndexText(ctx, chunk.ID, chunk.RawText, chunk.Metadata); err != nil {
			s.logger.Warn("vector indexing failed, run reindex to repair",
				"chunk_id", chunk.ID, "error", err)
		}
	}

	s.logger.Debug("chunk indexed",
		"chunk_id", chunk.ID,
		"document_id", chunk.DocumentID)
	return nil
}

// DeleteChunk removes a chunk from the store and the index.
func (s *Synchronizer) DeleteChunk(ctx context.Context, chunkID string) error {
	lock := s.stripeFor(chunkID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.chunks.Delete(ctx, chunkID); err != nil {
		return err
	}
	s.engine.Remove(chunkID)
	if s.vectors != nil {
		s.vectors.Remove(chunkID)
	}
	return nil
}

// Bootstrap rebuilds the in-memory inverted index from the persisted
// chunks. Called once at startup before the engine serves queries.
func (s *Synchronizer) Bootstrap(ctx context.Context) error {
	loaded := 0
	err := s.chunks.List(ctx, func(c *store.Chunk) error {
		if err := s.engine.Index(c.ID, c.RawText, c.Metadata); err != nil {
			s.logger.Warn("skipping unindexable chunk", "chunk_id", c.ID, "error", err)
			return nil
		}
		if s.vectors != nil {
			if err := s.vectors.IndexText(ctx, c.ID, c.RawText, c.Metadata); err != nil {
				s.logger.Warn("vector indexing failed, run reindex to repair",
					"chunk_id", c.ID, "error", err)
			}
		}
		loaded++
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("lexical index bootstrapped", "chunks", loaded)
	return nil
}

// ReindexAll recomputes normalized text for every chunk. It is
// idempotent and safe to re-run; individual chunk failures are reported
// in the result instead of aborting the batch. Chunks are processed by
// a bounded worker pool, each under its own stripe lock, so concurrent
// single-chunk writes are never blocked for long.
func (s *Synchronizer) ReindexAll(ctx context.Context) (*ReindexReport, error) {
	start := time.Now()

	var ids []string
	if err := s.chunks.List(ctx, func(c *store.Chunk) error {
		ids = append(ids, c.ID)
		return nil
	}); err != nil {
		return nil, errors.New(errors.ErrCodeIndexRebuildFailed, "failed to enumerate chunks", err)
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, errors.New(errors.ErrCodeIndexRebuildFailed, "failed to create worker pool", err)
	}
	defer pool.Release()

	var (
		mu       sync.Mutex
		report   = &ReindexReport{Total: len(ids)}
		wg       sync.WaitGroup
		recordOK = func() {
			mu.Lock()
			report.Reindexed++
			mu.Unlock()
		}
		recordFail = func(chunkID string, cause error) {
			mu.Lock()
			report.Failures = append(report.Failures, ChunkFailure{ChunkID: chunkID, Reason: cause.Error()})
			mu.Unlock()
		}
	)

	for _, chunkID := range ids {
		chunkID := chunkID
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := s.reindexOne(ctx, chunkID); err != nil {
				recordFail(chunkID, err)
				return
			}
			recordOK()
		})
		if submitErr != nil {
			wg.Done()
			recordFail(chunkID, submitErr)
		}
	}
	wg.Wait()

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].ChunkID < report.Failures[j].ChunkID
	})
	report.Duration = time.Since(start)

	s.logger.Info("reindex completed",
		"total", report.Total,
		"reindexed", report.Reindexed,
		"failures", len(report.Failures),
		"duration", report.Duration)
	return report, nil
}

// reindexOne re-derives one chunk from its latest committed raw text.
func (s *Synchronizer) reindexOne(ctx context.Context, chunkID string) error {
	lock := s.stripeFor(chunkID)
	lock.Lock()
	defer lock.Unlock()

	chunk, err := s.chunks.Get(ctx, chunkID)
	if err != nil {
		// Deleted since enumeration; nothing to do.
		if errors.GetCode(err) == errors.ErrCodeChunkNotFound {
			return nil
		}
		return err
	}

	normalized, nerr := s.pipeline.Text(chunk.RawText)
	if nerr != nil {
		return errors.NormalizationError(chunkID, nerr)
	}

	if chunk.NormalizedText != normalized {
		chunk.NormalizedText = normalized
		if err := s.chunks.Put(ctx, chunk); err != nil {
			return err
		}
	}
	if err := s.engine.Index(chunk.ID, chunk.RawText, chunk.Metadata); err != nil {
		return err
	}
	// Reindex is the repair path for vectors that were skipped on a
	// degraded write path, so a failure here counts against the chunk.
	if s.vectors != nil {
		if err := s.vectors.IndexText(ctx, chunk.ID, chunk.RawText, chunk.Metadata); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSync scans every chunk and reports those whose stored
// normalized text does not equal a fresh recomputation from the current
// raw text. It never corrects anything; it only observes.
func (s *Synchronizer) ValidateSync(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{}
	err := s.chunks.List(ctx, func(c *store.Chunk) error {
		report.Checked++
		normalized, nerr := s.pipeline.Text(c.RawText)
		if nerr != nil {
			report.Failures = append(report.Failures, ChunkFailure{ChunkID: c.ID, Reason: nerr.Error()})
			return nil
		}
		if c.NormalizedText != normalized {
			report.Unsynced++
			report.UnsyncedIDs = append(report.UnsyncedIDs, c.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(report.UnsyncedIDs)
	return report, nil
}

func (s *Synchronizer) stripeFor(chunkID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(chunkID))
	return &s.locks[h.Sum32()%lockStripes]
}
