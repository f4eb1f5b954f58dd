package index

import (
	"bytes"
	"context"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/dewey-index/dewey/internal/async"
	deweyerrors "github.com/dewey-index/dewey/internal/errors"
	"github.com/dewey-index/dewey/internal/hnsw"
	"github.com/dewey-index/dewey/internal/source"
	"github.com/dewey-index/dewey/internal/splitter"
)

// Stats summarizes one reindex run (spec §4.7: "Progress is reported
// by count of chunks committed").
type Stats struct {
	FilesWalked     int
	ChunksCommitted int
	// Partial is true when reindex stopped before walking the whole
	// corpus, either because of a cancellation or a fatal embedding
	// error (spec §4.7: "On fatal embedding failure, partial progress
	// persists and the operation reports the first unprocessed chunk").
	Partial          bool
	FirstUnprocessed string
}

// pendingChunk is one chunk queued for embedding, carrying enough
// context to commit it once a vector comes back. absPath is what gets
// stored in C3 (spec §3: "path: absolute file path at index time");
// the walk itself still resolves a root-relative path for the
// splitter/gitignore calls that need one, but that path never leaves
// the walk closure.
type pendingChunk struct {
	absPath string
	text    string
	start   uint64
	end     uint64
	tags    []string
}

// batchSize bounds how many chunks are embedded per C5 call before
// the coordinator takes the write lock to commit them (spec §5:
// "reindex takes the write lock for the duration of one batch").
const batchSize = 32

// Reindex walks rootPath honoring ignore rules, splits each
// non-ignored file via C4, embeds chunks in batches via C5, and
// commits each resulting vector to C1/C3/C6 (spec §4.7). Progress is
// reported by Stats.ChunksCommitted as batches land; cancelling ctx
// between batches returns with Stats.Partial set and no error.
func (c *Coordinator) Reindex(ctx context.Context, rootPath string, table splitter.Table) (Stats, error) {
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return Stats{}, deweyerrors.InvalidArgument("cannot resolve root to an absolute path", err)
	}
	if _, err := os.Stat(absRoot); err != nil {
		return Stats{}, deweyerrors.IO("cannot read reindex root", err)
	}

	sp, err := splitter.New(absRoot, table)
	if err != nil {
		return Stats{}, err
	}
	defer sp.Close()

	c.mu.RLock()
	progress := c.progress
	c.mu.RUnlock()
	if progress != nil {
		progress.SetStage(async.StageScanning, 0)
	}

	var stats Stats
	var pending []pendingChunk

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if progress != nil {
			progress.SetStage(async.StageEmbedding, stats.FilesWalked)
		}
		if err := c.commitBatch(ctx, pending, &stats); err != nil {
			return err
		}
		if progress != nil {
			progress.UpdateChunks(stats.ChunksCommitted)
		}
		pending = pending[:0]
		return nil
	}

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			stats.Partial = true
			return errStopWalk
		default:
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		if sp.IsIgnored(relPath) {
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			return nil
		}
		if c.maxFileSize > 0 && info.Size() > c.maxFileSize {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		if looksBinary(content) {
			return nil
		}

		stats.FilesWalked++
		if progress != nil {
			progress.SetStage(async.StageChunking, stats.FilesWalked)
			progress.UpdateFiles(stats.FilesWalked)
		}

		chunks, splitErr := sp.Split(relPath, content)
		if splitErr != nil {
			return nil
		}

		for _, chunk := range chunks {
			pending = append(pending, pendingChunk{
				absPath: path,
				text:    string(content[chunk.Start:chunk.End]),
				start:   chunk.Start,
				end:     chunk.End,
				tags:    chunk.Tags,
			})
			if len(pending) >= batchSize {
				if flushErr := flush(); flushErr != nil {
					if stats.FirstUnprocessed == "" {
						stats.FirstUnprocessed = path
					}
					return flushErr
				}
			}
		}
		return nil
	})

	if walkErr != nil && walkErr != errStopWalk {
		if progress != nil {
			progress.SetError(walkErr.Error())
		}
		stats.Partial = true
		return stats, walkErr
	}
	if walkErr == errStopWalk {
		if progress != nil {
			progress.SetError("reindex cancelled with partial progress")
		}
		return stats, nil
	}

	if err := flush(); err != nil {
		if progress != nil {
			progress.SetError(err.Error())
		}
		stats.Partial = true
		return stats, err
	}

	if progress != nil {
		progress.SetStage(async.StageIndexing, stats.FilesWalked)
		progress.SetReady()
	}

	return stats, nil
}

// looksBinary reports whether content's leading bytes contain a NUL,
// the conventional signal that a file isn't plaintext.
func looksBinary(content []byte) bool {
	n := len(content)
	if n > 512 {
		n = 512
	}
	return bytes.Contains(content[:n], []byte{0})
}

var errStopWalk = &stopWalkError{}

type stopWalkError struct{}

func (*stopWalkError) Error() string { return "reindex: context cancelled" }

// commitBatch embeds pending's texts in one C5 call, then appends
// each resulting vector to C1, inserts the source record into C3, and
// inserts the vector into C6, all under the writer lock for the
// duration of this one batch (spec §5).
func (c *Coordinator) commitBatch(ctx context.Context, pending []pendingChunk, stats *Stats) error {
	texts := make([]string, len(pending))
	for i, p := range pending {
		texts[i] = p.text
	}

	vecs, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(pending) {
		return deweyerrors.Internal("embedder returned a mismatched vector count", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, p := range pending {
		vec := hnsw.Normalize(vecs[i])

		id, err := c.vectors.Append(vec)
		if err != nil {
			return err
		}

		rec := source.Record{
			ID:    id,
			Path:  p.absPath,
			Start: p.start,
			End:   p.end,
			Tags:  p.tags,
			Hash:  contentHash([]byte(p.text)),
		}
		if err := c.sources.Insert(rec); err != nil {
			return err
		}
		if err := c.graph.Insert(id, vec); err != nil {
			return err
		}

		stats.ChunksCommitted++
	}

	return nil
}

// newGraphSeed returns a fresh seed for a newly-created or reloaded
// graph's level-draw RNG. Tests construct graphs directly via
// hnsw.New/hnsw.Load with a pinned seed instead of going through this.
func newGraphSeed() int64 {
	return time.Now().UnixNano() ^ int64(rand.Uint64())
}
