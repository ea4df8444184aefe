package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// LocalSearcher is an in-process semantic engine: chunk vectors live in
// an HNSW graph, queries are embedded on demand. It satisfies Searcher
// so the orchestrator cannot tell it apart from a remote collaborator.
type LocalSearcher struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[uint64]
	embedder Embedder

	// HNSW wants integer keys; keep a bidirectional mapping to chunk
	// IDs. Deletion is lazy: the node stays in the graph but loses its
	// mapping, which drops it from results.
	idMap    map[string]uint64
	keyMap   map[uint64]string
	metadata map[string]map[string]string
	nextKey  uint64
}

// NewLocalSearcher builds an empty local semantic index over the given
// embedder.
func NewLocalSearcher(embedder Embedder) *LocalSearcher {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25
	return &LocalSearcher{
		graph:    graph,
		embedder: embedder,
		idMap:    make(map[string]uint64),
		keyMap:   make(map[uint64]string),
		metadata: make(map[string]map[string]string),
	}
}

// IndexVector stores a precomputed vector for a chunk, replacing any
// previous one.
func (s *LocalSearcher) IndexVector(chunkID string, vector []float32, metadata map[string]string) error {
	if dims := s.embedder.Dimensions(); dims > 0 && len(vector) != dims {
		return fmt.Errorf("vector dimension mismatch for chunk %s: expected %d, got %d",
			chunkID, dims, len(vector))
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalizeVectorInPlace(vec)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existingKey, exists := s.idMap[chunkID]; exists {
		delete(s.keyMap, existingKey)
		delete(s.idMap, chunkID)
	}
	key := s.nextKey
	s.nextKey++

	s.graph.Add(hnsw.MakeNode(key, vec))
	s.idMap[chunkID] = key
	s.keyMap[key] = chunkID

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	s.metadata[chunkID] = meta
	return nil
}

// IndexText embeds the text and stores the resulting vector.
func (s *LocalSearcher) IndexText(ctx context.Context, chunkID, text string, metadata map[string]string) error {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	return s.IndexVector(chunkID, vec, metadata)
}

// Remove drops a chunk's vector. Unknown IDs are ignored.
func (s *LocalSearcher) Remove(chunkID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, exists := s.idMap[chunkID]; exists {
		delete(s.keyMap, key)
		delete(s.idMap, chunkID)
	}
	delete(s.metadata, chunkID)
}

// Size returns the number of live vectors.
func (s *LocalSearcher) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idMap)
}

// Search embeds the query and returns the topK nearest chunks that
// satisfy the filters, in descending similarity order with ties broken
// by chunk ID.
func (s *LocalSearcher) Search(ctx context.Context, query string, topK int, filters map[string]string) ([]Result, error) {
	if topK <= 0 || query == "" {
		return nil, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	normalizeVectorInPlace(queryVec)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.graph.Len() == 0 {
		return nil, nil
	}

	// Over-fetch to absorb lazily deleted nodes and filter misses.
	fetch := topK * 4
	if fetch < 16 {
		fetch = 16
	}
	nodes := s.graph.Search(queryVec, fetch)

	results := make([]Result, 0, topK)
	for _, node := range nodes {
		chunkID, live := s.keyMap[node.Key]
		if !live || !matchesMetadata(s.metadata[chunkID], filters) {
			continue
		}
		distance := s.graph.Distance(queryVec, node.Value)
		results = append(results, Result{
			ChunkID: chunkID,
			Score:   cosineDistanceToScore(distance),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

func matchesMetadata(meta, filters map[string]string) bool {
	for k, want := range filters {
		if meta[k] != want {
			return false
		}
	}
	return true
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// cosineDistanceToScore maps cosine distance (0..2) onto a 0..1
// similarity score.
func cosineDistanceToScore(distance float32) float64 {
	return float64(1.0 - distance/2.0)
}
