// Package source implements the source directory described in spec §4.3
// (C3): a persistent, append-only mapping from block id to
// (file path, byte range, tag set, content hash, tombstone), with an
// in-memory reverse multimap from path to block ids for
// query_by_file resolution.
package source

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	roaring "github.com/RoaringBitmap/roaring/v2/roaring64"

	deweyerrors "github.com/dewey-index/dewey/internal/errors"
	"github.com/dewey-index/dewey/internal/vector"
)

// Record is one source-directory entry (spec §3, "Source record").
type Record struct {
	ID        vector.BlockID
	Path      string
	Start     uint64
	End       uint64
	Tags      []string
	Hash      [32]byte
	Tombstone bool
}

// Directory is the in-memory + on-disk source directory (C3).
type Directory struct {
	mu sync.RWMutex

	path string
	file *os.File

	records    map[vector.BlockID]*Record
	byPath     map[string]map[vector.BlockID]struct{}
	tombstones *roaring.Bitmap
}

// Open opens (creating if necessary) the source directory log at path,
// replaying prior entries into memory. A corrupted trailing record
// (incomplete length-prefix) is recoverable: the log is truncated back to
// the last complete record and a warning is logged, per spec §4.8.
func Open(path string) (*Directory, error) {
	d := &Directory{
		path:       path,
		records:    make(map[vector.BlockID]*Record),
		byPath:     make(map[string]map[vector.BlockID]struct{}),
		tombstones: roaring.New(),
	}

	if err := d.replay(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, deweyerrors.IO("failed to open source directory log", err)
	}
	d.file = f
	return d, nil
}

// replay reads every complete record from path into memory, truncating a
// trailing incomplete record if found.
func (d *Directory) replay() error {
	f, err := os.OpenFile(d.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return deweyerrors.IO("failed to open source directory log", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var offset int64

	for {
		lenBuf := make([]byte, 4)
		n, err := io.ReadFull(r, lenBuf)
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF || (err != nil && n > 0) {
			slog.Warn("truncating corrupt trailing source-directory record",
				slog.String("path", d.path), slog.Int64("offset", offset))
			d.truncateToLocked(f, offset)
			return nil
		}
		if err != nil {
			return deweyerrors.IO("failed to read source directory log", err)
		}

		payloadLen := binary.LittleEndian.Uint32(lenBuf)
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			slog.Warn("truncating corrupt trailing source-directory record",
				slog.String("path", d.path), slog.Int64("offset", offset))
			d.truncateToLocked(f, offset)
			return nil
		}

		rec, err := decodeRecord(payload)
		if err != nil {
			slog.Warn("truncating corrupt trailing source-directory record",
				slog.String("path", d.path), slog.Int64("offset", offset), slog.String("error", err.Error()))
			d.truncateToLocked(f, offset)
			return nil
		}

		d.applyLocked(rec)
		offset += 4 + int64(payloadLen)
	}

	return nil
}

func (d *Directory) truncateToLocked(f *os.File, offset int64) {
	if err := f.Truncate(offset); err != nil {
		slog.Warn("failed to truncate corrupt source directory log", slog.String("error", err.Error()))
	}
}

// applyLocked installs rec into the in-memory maps; later calls for the
// same id supersede earlier ones (last-write-wins on load).
func (d *Directory) applyLocked(rec *Record) {
	if old, ok := d.records[rec.ID]; ok {
		d.removeFromPathIndex(old.Path, old.ID)
	}
	d.records[rec.ID] = rec
	if !rec.Tombstone {
		d.addToPathIndex(rec.Path, rec.ID)
	}
	if rec.Tombstone {
		d.tombstones.Add(uint64(rec.ID))
	} else {
		d.tombstones.Remove(uint64(rec.ID))
	}
}

func (d *Directory) addToPathIndex(path string, id vector.BlockID) {
	set, ok := d.byPath[path]
	if !ok {
		set = make(map[vector.BlockID]struct{})
		d.byPath[path] = set
	}
	set[id] = struct{}{}
}

func (d *Directory) removeFromPathIndex(path string, id vector.BlockID) {
	if set, ok := d.byPath[path]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(d.byPath, path)
		}
	}
}

// Insert appends a new source record and makes it visible in memory.
func (d *Directory) Insert(rec Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.appendLocked(&rec)
}

func (d *Directory) appendLocked(rec *Record) error {
	payload := encodeRecord(rec)
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(payload)))

	if _, err := d.file.Write(lenBuf); err != nil {
		return deweyerrors.IO("failed to append source record length", err)
	}
	if _, err := d.file.Write(payload); err != nil {
		return deweyerrors.IO("failed to append source record", err)
	}

	d.applyLocked(rec)
	return nil
}

// Get returns the current record for id, or NotFound if absent.
func (d *Directory) Get(id vector.BlockID) (*Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.records[id]
	if !ok {
		return nil, deweyerrors.NotFound(fmt.Sprintf("no source record for block %d", id), nil)
	}
	cp := *rec
	return &cp, nil
}

// IsTombstoned reports whether id is logically deleted.
func (d *Directory) IsTombstoned(id vector.BlockID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tombstones.Contains(uint64(id))
}

// Tombstone marks id as logically deleted by appending a superseding
// record with the tombstone bit set. The vector slot in C1 is retained.
func (d *Directory) Tombstone(id vector.BlockID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[id]
	if !ok {
		return deweyerrors.NotFound(fmt.Sprintf("no source record for block %d", id), nil)
	}
	updated := *rec
	updated.Tombstone = true
	return d.appendLocked(&updated)
}

// BlockIDsForPath returns every non-tombstoned block id currently
// attributed to path, via the reverse multimap. Returns an empty slice
// (no error) if path has no entries, per spec §4.7 (query_by_file).
func (d *Directory) BlockIDsForPath(path string) []vector.BlockID {
	d.mu.RLock()
	defer d.mu.RUnlock()

	set, ok := d.byPath[path]
	if !ok {
		return nil
	}
	out := make([]vector.BlockID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Len returns the number of live (non-superseded) records tracked.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// Snapshot rewrites the log in compact form: exactly one record per
// block id, reflecting its current (possibly tombstoned) state.
func (d *Directory) Snapshot(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	bw := bufio.NewWriter(w)
	for _, rec := range d.records {
		payload := encodeRecord(rec)
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(payload)))
		if _, err := bw.Write(lenBuf); err != nil {
			return deweyerrors.IO("failed to write source snapshot", err)
		}
		if _, err := bw.Write(payload); err != nil {
			return deweyerrors.IO("failed to write source snapshot", err)
		}
	}
	return bw.Flush()
}

// ReplaceFile atomically swaps the backing log for one produced by
// Snapshot (used by the persistence layer after a compact rewrite).
func (d *Directory) ReplaceFile(f *os.File) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.file.Close(); err != nil {
		return deweyerrors.IO("failed to close old source directory log", err)
	}
	d.file = f
	return nil
}

// Close releases the underlying file handle.
func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.file.Close(); err != nil {
		return deweyerrors.IO("failed to close source directory log", err)
	}
	return nil
}

func encodeRecord(rec *Record) []byte {
	pathBytes := []byte(rec.Path)
	size := 8 + 2 + len(pathBytes) + 8 + 8 + 2
	for _, tag := range rec.Tags {
		size += 2 + len(tag)
	}
	size += 32 + 1

	buf := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], uint64(rec.ID))
	off += 8
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(pathBytes)))
	off += 2
	copy(buf[off:], pathBytes)
	off += len(pathBytes)
	binary.LittleEndian.PutUint64(buf[off:], rec.Start)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], rec.End)
	off += 8
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(rec.Tags)))
	off += 2
	for _, tag := range rec.Tags {
		tb := []byte(tag)
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(tb)))
		off += 2
		copy(buf[off:], tb)
		off += len(tb)
	}
	copy(buf[off:], rec.Hash[:])
	off += 32
	if rec.Tombstone {
		buf[off] = 1
	} else {
		buf[off] = 0
	}
	return buf
}

func decodeRecord(payload []byte) (*Record, error) {
	if len(payload) < 8+2 {
		return nil, fmt.Errorf("source record too short")
	}
	off := 0
	id := binary.LittleEndian.Uint64(payload[off:])
	off += 8
	pathLen := int(binary.LittleEndian.Uint16(payload[off:]))
	off += 2
	if off+pathLen+8+8+2 > len(payload) {
		return nil, fmt.Errorf("source record truncated in path/range")
	}
	path := string(payload[off : off+pathLen])
	off += pathLen
	start := binary.LittleEndian.Uint64(payload[off:])
	off += 8
	end := binary.LittleEndian.Uint64(payload[off:])
	off += 8
	tagCount := int(binary.LittleEndian.Uint16(payload[off:]))
	off += 2

	tags := make([]string, 0, tagCount)
	for i := 0; i < tagCount; i++ {
		if off+2 > len(payload) {
			return nil, fmt.Errorf("source record truncated in tags")
		}
		tagLen := int(binary.LittleEndian.Uint16(payload[off:]))
		off += 2
		if off+tagLen > len(payload) {
			return nil, fmt.Errorf("source record truncated in tag bytes")
		}
		tags = append(tags, string(payload[off:off+tagLen]))
		off += tagLen
	}

	if off+32+1 > len(payload) {
		return nil, fmt.Errorf("source record truncated in hash/tombstone")
	}
	var hash [32]byte
	copy(hash[:], payload[off:off+32])
	off += 32
	tombstone := payload[off] != 0

	return &Record{
		ID:        vector.BlockID(id),
		Path:      path,
		Start:     start,
		End:       end,
		Tags:      tags,
		Hash:      hash,
		Tombstone: tombstone,
	}, nil
}
