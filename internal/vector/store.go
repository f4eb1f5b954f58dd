// Package vector implements the fixed-stride append-only vector file
// described in spec §4.1 (C1): a flat store of D-dimensional float32
// vectors addressed by a stable, monotonically assigned BlockID, backed
// by a memory-mapped file for zero-copy reads.
package vector

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/blevesearch/mmap-go"

	deweyerrors "github.com/dewey-index/dewey/internal/errors"
)

// BlockID is a stable 64-bit identifier for a single vector slot.
// It is assigned monotonically by Store.Append and never reused.
type BlockID = uint64

const (
	// magic identifies a Dewey vector sidecar file (spec §6).
	magic = "DWY1"
	// currentVersion is bumped whenever the on-disk layout changes.
	currentVersion uint32 = 1
	// metaSize is the fixed byte length of the vectors.meta sidecar:
	// 4 bytes magic + 4 bytes version + 4 bytes dimension.
	metaSize = 4 + 4 + 4
)

// Store is the fixed-stride append-only vector file (C1). It exposes
// Append, Read and Len as specified; Append grows the file by exactly
// D*4 bytes and the new block id is the previous length divided by the
// stride.
type Store struct {
	mu sync.RWMutex

	dim    int
	stride int64

	dataPath string
	metaPath string

	file   *os.File
	mapped mmap.MMap // nil when the file is empty
	length int64     // bytes currently mapped

	closed bool
}

// Open opens or creates the vector store rooted at dataPath (conventionally
// "vectors.bin"); the sidecar "<dataPath>.meta" (spec's vectors.meta) is
// read or written alongside it. A dimension mismatch between dim and an
// existing sidecar is fatal, per spec §4.1 ("mismatched D on open is
// fatal").
func Open(dataPath string, dim int) (*Store, error) {
	if dim <= 0 {
		return nil, deweyerrors.InvalidArgument(fmt.Sprintf("invalid dimension %d", dim), nil)
	}

	metaPath := dataPath + ".meta"
	existingDim, exists, err := readMeta(metaPath)
	if err != nil {
		return nil, err
	}
	if exists && existingDim != dim {
		return nil, deweyerrors.Dimension(
			fmt.Sprintf("vector store dimension mismatch: on-disk %d, requested %d", existingDim, dim), nil)
	}
	if !exists {
		if err := writeMeta(metaPath, dim); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, deweyerrors.IO("failed to open vector store", err)
	}

	s := &Store{
		dim:      dim,
		stride:   int64(dim) * 4,
		dataPath: dataPath,
		metaPath: metaPath,
		file:     f,
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, deweyerrors.IO("failed to stat vector store", err)
	}
	if info.Size()%s.stride != 0 {
		_ = f.Close()
		return nil, deweyerrors.CorruptIndex(
			fmt.Sprintf("vector store length %d is not a multiple of stride %d", info.Size(), s.stride), nil)
	}

	if info.Size() > 0 {
		if err := s.remapLocked(info.Size()); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	return s, nil
}

func readMeta(path string) (dim int, exists bool, err error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return 0, false, nil
		}
		return 0, false, deweyerrors.IO("failed to read vector sidecar", readErr)
	}
	if len(data) != metaSize || string(data[0:4]) != magic {
		return 0, false, deweyerrors.CorruptIndex("vector sidecar has bad magic", nil)
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != currentVersion {
		return 0, false, deweyerrors.CorruptIndex(fmt.Sprintf("vector sidecar version %d unsupported", version), nil)
	}
	d := binary.LittleEndian.Uint32(data[8:12])
	return int(d), true, nil
}

func writeMeta(path string, dim int) error {
	buf := make([]byte, metaSize)
	copy(buf[0:4], magic)
	binary.LittleEndian.PutUint32(buf[4:8], currentVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(dim))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return deweyerrors.IO("failed to write vector sidecar", err)
	}
	return nil
}

// Dimensions returns D, the shared vector dimension.
func (s *Store) Dimensions() int {
	return s.dim
}

// Len returns the number of blocks currently stored.
func (s *Store) Len() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(s.length / s.stride)
}

// Append writes vec as a new block and returns its BlockID. vec must have
// exactly Dimensions() elements.
func (s *Store) Append(vec []float32) (BlockID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, deweyerrors.Internal("vector store is closed", nil)
	}
	if len(vec) != s.dim {
		return 0, deweyerrors.Dimension(fmt.Sprintf("expected %d dims, got %d", s.dim, len(vec)), nil)
	}

	id := BlockID(s.length / s.stride)

	raw := make([]byte, s.stride)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], math.Float32bits(f))
	}

	if _, err := s.file.WriteAt(raw, s.length); err != nil {
		return 0, deweyerrors.IO("failed to append vector", err)
	}
	newLength := s.length + s.stride

	if err := s.remapLocked(newLength); err != nil {
		return 0, err
	}

	return id, nil
}

// Read returns a copy of the vector stored at id.
func (s *Store) Read(id BlockID) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, deweyerrors.Internal("vector store is closed", nil)
	}
	offset := int64(id) * s.stride
	if offset < 0 || offset+s.stride > s.length {
		return nil, deweyerrors.NotFound(fmt.Sprintf("block id %d out of range", id), nil)
	}

	raw := s.mapped[offset : offset+s.stride]
	out := make([]float32, s.dim)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
	}
	return out, nil
}

// remapLocked re-establishes the memory map when the file has grown past
// the currently mapped extent. Callers must hold s.mu.
func (s *Store) remapLocked(newLength int64) error {
	if newLength == s.length && s.mapped != nil {
		return nil
	}
	if s.mapped != nil {
		if err := s.mapped.Unmap(); err != nil {
			return deweyerrors.IO("failed to unmap vector store", err)
		}
		s.mapped = nil
	}
	if newLength == 0 {
		s.length = 0
		return nil
	}
	m, err := mmap.MapRegion(s.file, int(newLength), mmap.RDONLY, 0, 0)
	if err != nil {
		return deweyerrors.IO("failed to mmap vector store", err)
	}
	s.mapped = m
	s.length = newLength
	return nil
}

// Close releases the memory map and underlying file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.mapped != nil {
		if err := s.mapped.Unmap(); err != nil {
			_ = s.file.Close()
			return deweyerrors.IO("failed to unmap vector store", err)
		}
	}
	if err := s.file.Close(); err != nil {
		return deweyerrors.IO("failed to close vector store", err)
	}
	return nil
}

// Path returns the backing file path, used by the persistence layer.
func (s *Store) Path() string {
	return s.dataPath
}
