// Package index implements the index coordinator (C7) and persistence
// layer (C8) described in spec §4.7/§4.8: the single entry point
// external callers use to reindex a corpus and to run `query` /
// `query_by_file` against the resulting HNSW graph.
package index

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dewey-index/dewey/internal/async"
	"github.com/dewey-index/dewey/internal/cache"
	"github.com/dewey-index/dewey/internal/config"
	"github.com/dewey-index/dewey/internal/embed"
	deweyerrors "github.com/dewey-index/dewey/internal/errors"
	"github.com/dewey-index/dewey/internal/hnsw"
	"github.com/dewey-index/dewey/internal/source"
	"github.com/dewey-index/dewey/internal/vector"
)

const (
	vectorsFileName = "vectors.bin"
	sourcesFileName = "sources.log"
	graphFileName   = "graph.bin"
)

// Result is one row of a query response (spec §6, "Query interface").
type Result struct {
	Path  string
	Start uint64
	End   uint64
	Score float32
}

// Coordinator is the process-wide singleton over a Dewey index's three
// files (spec §5: "The index is a process-wide singleton over its
// three files"). All exported methods are safe for concurrent use; a
// single reader-writer lock enforces the single-writer/multi-reader
// posture from spec §5.
type Coordinator struct {
	mu sync.RWMutex

	home        string
	dim         int
	hcfg        hnsw.Config
	maxFileSize int64

	vectors  *vector.Store
	cacheLyr *cache.Cache
	sources  *source.Directory
	graph    *hnsw.Graph
	embedder embed.Embedder

	// Progress, when non-nil, is updated with file/chunk counts as
	// Reindex walks the corpus. It is nil unless a caller sets it via
	// SetProgress, so status reporting never adds overhead to callers
	// that don't ask for it (e.g. one-shot `dewey query`).
	progress *async.IndexProgress
}

// SetProgress attaches a progress tracker that Reindex updates as it
// walks and commits. Pass nil to detach.
func (c *Coordinator) SetProgress(p *async.IndexProgress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = p
}

// Open opens (creating if necessary) the three persisted files under
// cfg.DeweyHome and returns a ready Coordinator.
func Open(cfg config.Config, embedder embed.Embedder) (*Coordinator, error) {
	if err := os.MkdirAll(cfg.DeweyHome, 0o755); err != nil {
		return nil, deweyerrors.IO("failed to create dewey home directory", err)
	}

	vs, err := vector.Open(filepath.Join(cfg.DeweyHome, vectorsFileName), cfg.Dimensions)
	if err != nil {
		return nil, err
	}

	sd, err := source.Open(filepath.Join(cfg.DeweyHome, sourcesFileName))
	if err != nil {
		_ = vs.Close()
		return nil, err
	}

	hcfg := hnsw.Config{
		M:               cfg.HNSW.M,
		M0:              cfg.HNSW.M0,
		EfConstruction:  cfg.HNSW.EfConstruction,
		EfSearchDefault: cfg.HNSW.EfSearchDefault,
	}

	graph, err := loadOrCreateGraph(filepath.Join(cfg.DeweyHome, graphFileName), cfg.Dimensions, hcfg, vs)
	if err != nil {
		_ = vs.Close()
		_ = sd.Close()
		return nil, err
	}

	return &Coordinator{
		home:        cfg.DeweyHome,
		dim:         cfg.Dimensions,
		hcfg:        hcfg,
		maxFileSize: cfg.MaxFileSize,
		vectors:     vs,
		cacheLyr:    cache.New(vs, cfg.Cache.Capacity),
		sources:     sd,
		graph:       graph,
		embedder:    embedder,
	}, nil
}

func loadOrCreateGraph(path string, dim int, hcfg hnsw.Config, vs *vector.Store) (*hnsw.Graph, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return hnsw.New(hcfg, newGraphSeed()), nil
	}
	if err != nil {
		return nil, deweyerrors.IO("failed to open graph file", err)
	}
	defer func() { _ = f.Close() }()

	g, err := hnsw.Load(f, dim, newGraphSeed())
	if err != nil {
		return nil, err
	}
	if err := g.Rehydrate(vs.Read); err != nil {
		return nil, err
	}
	g.SetEfSearchDefault(hcfg.EfSearchDefault)
	return g, nil
}

// Close releases the underlying file handles.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.sources.Close(); err != nil {
		return err
	}
	return c.vectors.Close()
}

// Query embeds text, searches the graph under the configured default
// ef, and returns results ordered by ascending cosine distance (spec
// §4.7 query).
func (c *Coordinator) Query(ctx context.Context, text string, tags []string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, deweyerrors.InvalidArgument("k must be positive", nil)
	}

	vecs, err := c.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, deweyerrors.Internal("embedder returned unexpected vector count", nil)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.searchLocked(hnsw.Normalize(vecs[0]), tags, k)
}

// QueryByFile resolves every block id attributed to path, averages
// their normalized vectors, re-normalizes, and searches the graph
// (spec §4.7 query_by_file). Returns an empty result, with no error,
// if path has no indexed chunks.
func (c *Coordinator) QueryByFile(ctx context.Context, path string, tags []string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, deweyerrors.InvalidArgument("k must be positive", nil)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.sources.BlockIDsForPath(path)
	if len(ids) == 0 {
		return nil, nil
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	avg := make([]float32, c.dim)
	for _, id := range ids {
		vec, err := c.cacheLyr.Get(id)
		if err != nil {
			return nil, err
		}
		for i, v := range vec {
			avg[i] += v
		}
	}
	for i := range avg {
		avg[i] /= float32(len(ids))
	}

	return c.searchLocked(hnsw.Normalize(avg), tags, k)
}

// searchLocked runs a graph search and converts the result to the
// external Result shape. Callers must hold c.mu (read or write).
func (c *Coordinator) searchLocked(query []float32, tags []string, k int) ([]Result, error) {
	tombstoned := func(id hnsw.BlockID) bool { return c.sources.IsTombstoned(id) }

	var filter hnsw.TagFilter
	if len(tags) > 0 {
		wanted := make(map[string]struct{}, len(tags))
		for _, t := range tags {
			wanted[t] = struct{}{}
		}
		filter = func(id hnsw.BlockID) bool {
			rec, err := c.sources.Get(id)
			if err != nil {
				return false
			}
			for _, t := range rec.Tags {
				if _, ok := wanted[t]; ok {
					return true
				}
			}
			return false
		}
	}

	hits := c.graph.Search(query, k, c.hcfg.EfSearchDefault, tombstoned, filter)

	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		rec, err := c.sources.Get(h.ID)
		if err != nil {
			continue
		}
		out = append(out, Result{Path: rec.Path, Start: rec.Start, End: rec.End, Score: h.Distance})
	}
	return out, nil
}

// contentHash returns the content hash C3 stores alongside a record
// (spec §3: "used to detect stale entries").
func contentHash(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// Status is a snapshot of index size used by the `dewey status` command.
type Status struct {
	Home           string
	Dimensions     int
	ChunkCount     uint64
	SourceCount    int
	VectorFileSize int64
	SourceFileSize int64
	GraphFileSize  int64
}

// Status reports the coordinator's current size, without mutating
// anything (spec SPEC_FULL.md's "dewey status").
func (c *Coordinator) Status() (Status, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Status{
		Home:        c.home,
		Dimensions:  c.dim,
		ChunkCount:  c.vectors.Len(),
		SourceCount: c.sources.Len(),
	}

	for _, entry := range []struct {
		name string
		dst  *int64
	}{
		{vectorsFileName, &st.VectorFileSize},
		{sourcesFileName, &st.SourceFileSize},
		{graphFileName, &st.GraphFileSize},
	} {
		if info, err := os.Stat(filepath.Join(c.home, entry.name)); err == nil {
			*entry.dst = info.Size()
		}
	}

	return st, nil
}
