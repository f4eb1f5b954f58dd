package index

import (
	"os"
	"path/filepath"

	"github.com/google/renameio"

	deweyerrors "github.com/dewey-index/dewey/internal/errors"
	"github.com/dewey-index/dewey/internal/hnsw"
)

func openForAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, deweyerrors.IO("failed to reopen sources.log after snapshot", err)
	}
	return f, nil
}

// Snapshot persists the coordinator's mutable on-disk state (spec
// §4.8, C8): sources.log is rewritten as a tombstone-compacted
// snapshot and graph.bin is rewritten from the in-memory graph, both
// via temp-file-then-rename so a crash mid-write never leaves a
// corrupt file in place. vectors.bin has no separate snapshot step:
// each C1 append is written straight to the file with no in-process
// buffer. No fsync is issued for it.
func (c *Coordinator) Snapshot() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.snapshotSourcesLocked(); err != nil {
		return err
	}
	return c.snapshotGraphLocked()
}

func (c *Coordinator) snapshotSourcesLocked() error {
	path := filepath.Join(c.home, sourcesFileName)

	pf, err := renameio.TempFile("", path)
	if err != nil {
		return deweyerrors.IO("failed to create temp file for sources snapshot", err)
	}
	defer func() { _ = pf.Cleanup() }()

	if err := c.sources.Snapshot(pf); err != nil {
		return err
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return deweyerrors.IO("failed to atomically replace sources.log", err)
	}

	f, err := openForAppend(path)
	if err != nil {
		return err
	}
	return c.sources.ReplaceFile(f)
}

func (c *Coordinator) snapshotGraphLocked() error {
	path := filepath.Join(c.home, graphFileName)

	pf, err := renameio.TempFile("", path)
	if err != nil {
		return deweyerrors.IO("failed to create temp file for graph snapshot", err)
	}
	defer func() { _ = pf.Cleanup() }()

	if err := hnsw.Save(c.graph, pf, c.dim); err != nil {
		return err
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return deweyerrors.IO("failed to atomically replace graph.bin", err)
	}
	return nil
}
