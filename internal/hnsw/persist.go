package hnsw

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	deweyerrors "github.com/dewey-index/dewey/internal/errors"
)

// magic identifies a Dewey graph file, matching the vector store's
// sidecar magic (spec §6: "DWY1").
const magic = "DWY1"

// currentVersion is bumped whenever graph.bin's layout changes.
const currentVersion uint32 = 1

// Save writes g in the wire format from spec §6 ("graph.bin"):
//
//	header: DWY1 | version(u32) | D(u32) | M(u32) | M0(u32) |
//	        ef_construction(u32) | entry_point(u64, all-ones=none) |
//	        max_level(u32) | node_count(u64)
//	then node_count node records:
//	        block_id(u64) | level(u8) |
//	        (neighbor_count(u16) (neighbor(u64))*){per layer 0..=level}
//
// dim is D, the shared vector dimension, persisted for the dimension
// check Load performs on open.
func Save(g *Graph, w io.Writer, dim int) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(magic); err != nil {
		return deweyerrors.IO("failed to write graph magic", err)
	}
	if err := writeU32(bw, currentVersion); err != nil {
		return err
	}
	if err := writeU32(bw, uint32(dim)); err != nil {
		return err
	}
	if err := writeU32(bw, uint32(g.cfg.M)); err != nil {
		return err
	}
	if err := writeU32(bw, uint32(g.cfg.M0)); err != nil {
		return err
	}
	if err := writeU32(bw, uint32(g.cfg.EfConstruction)); err != nil {
		return err
	}

	entryPoint := noEntryPoint
	if g.hasEntry {
		entryPoint = g.entryPoint
	}
	if err := writeU64(bw, uint64(entryPoint)); err != nil {
		return err
	}
	if err := writeU32(bw, uint32(g.maxLevel)); err != nil {
		return err
	}
	if err := writeU64(bw, uint64(len(g.nodes))); err != nil {
		return err
	}

	ids := make([]BlockID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		n := g.nodes[id]
		if err := writeU64(bw, uint64(id)); err != nil {
			return err
		}
		if n.level > math.MaxUint8 {
			return deweyerrors.Internal(fmt.Sprintf("node level %d exceeds u8 range", n.level), nil)
		}
		if err := bw.WriteByte(byte(n.level)); err != nil {
			return deweyerrors.IO("failed to write node level", err)
		}
		for l := 0; l <= n.level; l++ {
			var layerNeighbors []BlockID
			if l < len(n.neighbors) {
				layerNeighbors = n.neighbors[l]
			}
			if len(layerNeighbors) > math.MaxUint16 {
				return deweyerrors.Internal("neighbor count exceeds u16 range", nil)
			}
			if err := writeU16(bw, uint16(len(layerNeighbors))); err != nil {
				return err
			}
			for _, nb := range layerNeighbors {
				if err := writeU64(bw, uint64(nb)); err != nil {
					return err
				}
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return deweyerrors.IO("failed to flush graph file", err)
	}
	return nil
}

// Load reads a graph.bin written by Save. Version mismatch, dimension
// mismatch, or a truncated trailing record are all fatal (spec §4.8:
// "the graph file has no such tolerance" for recovery, unlike
// sources.log).
func Load(r io.Reader, dim int, rngSeed int64) (*Graph, error) {
	br := bufio.NewReader(r)

	magicBuf := make([]byte, 4)
	if _, err := io.ReadFull(br, magicBuf); err != nil {
		return nil, deweyerrors.CorruptIndex("failed to read graph magic", err)
	}
	if string(magicBuf) != magic {
		return nil, deweyerrors.CorruptIndex("graph file has bad magic", nil)
	}

	version, err := readU32(br)
	if err != nil {
		return nil, err
	}
	if version != currentVersion {
		return nil, deweyerrors.CorruptIndex(fmt.Sprintf("graph file version %d unsupported", version), nil)
	}

	onDiskDim, err := readU32(br)
	if err != nil {
		return nil, err
	}
	if int(onDiskDim) != dim {
		return nil, deweyerrors.Dimension(
			fmt.Sprintf("graph file dimension %d does not match store dimension %d", onDiskDim, dim), nil)
	}

	m, err := readU32(br)
	if err != nil {
		return nil, err
	}
	m0, err := readU32(br)
	if err != nil {
		return nil, err
	}
	efConstruction, err := readU32(br)
	if err != nil {
		return nil, err
	}
	entryPointRaw, err := readU64(br)
	if err != nil {
		return nil, err
	}
	maxLevel, err := readU32(br)
	if err != nil {
		return nil, err
	}
	nodeCount, err := readU64(br)
	if err != nil {
		return nil, err
	}

	cfg := Config{
		M:              int(m),
		M0:             int(m0),
		EfConstruction: int(efConstruction),
	}
	cfg.EfSearchDefault = DefaultConfig().EfSearchDefault

	g := New(cfg, rngSeed)

	for i := uint64(0); i < nodeCount; i++ {
		blockID, err := readU64(br)
		if err != nil {
			return nil, deweyerrors.CorruptIndex("truncated graph file: missing node record", err)
		}
		levelByte, err := br.ReadByte()
		if err != nil {
			return nil, deweyerrors.CorruptIndex("truncated graph file: missing node level", err)
		}
		level := int(levelByte)

		neighbors := make([][]BlockID, level+1)
		for l := 0; l <= level; l++ {
			count, err := readU16(br)
			if err != nil {
				return nil, deweyerrors.CorruptIndex("truncated graph file: missing neighbor count", err)
			}
			layer := make([]BlockID, count)
			for j := uint16(0); j < count; j++ {
				nb, err := readU64(br)
				if err != nil {
					return nil, deweyerrors.CorruptIndex("truncated graph file: missing neighbor id", err)
				}
				layer[j] = BlockID(nb)
			}
			neighbors[l] = layer
		}

		// Vectors live in the vector store (C1), not in graph.bin; the
		// caller re-attaches each node's vector via Rehydrate after Load.
		g.LoadNode(BlockID(blockID), nil, level, neighbors)
	}

	hasEntry := entryPointRaw != uint64(noEntryPoint)
	g.SetHeader(BlockID(entryPointRaw), hasEntry, int(maxLevel))

	return g, nil
}

// Rehydrate re-attaches each loaded node's vector from a reader, e.g.
// the vector store. Load leaves node.vec nil because vectors are the
// vector store's responsibility (spec §3: "For every block id appearing
// in C6, a record exists in both C1 and C3"); callers must call this
// once after Load and before any Search/Insert.
func (g *Graph) Rehydrate(read func(id BlockID) ([]float32, error)) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, n := range g.nodes {
		vec, err := read(id)
		if err != nil {
			return err
		}
		n.vec = vec
	}
	return nil
}

func writeU16(w io.Writer, v uint16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	if _, err := w.Write(buf); err != nil {
		return deweyerrors.IO("failed to write graph file", err)
	}
	return nil
}

func writeU32(w io.Writer, v uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	if _, err := w.Write(buf); err != nil {
		return deweyerrors.IO("failed to write graph file", err)
	}
	return nil
}

func writeU64(w io.Writer, v uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	if _, err := w.Write(buf); err != nil {
		return deweyerrors.IO("failed to write graph file", err)
	}
	return nil
}

func readU16(r io.Reader) (uint16, error) {
	buf := make([]byte, 2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, deweyerrors.CorruptIndex("truncated graph file", err)
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func readU32(r io.Reader) (uint32, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, deweyerrors.CorruptIndex("truncated graph file", err)
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func readU64(r io.Reader) (uint64, error) {
	buf := make([]byte, 8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, deweyerrors.CorruptIndex("truncated graph file", err)
	}
	return binary.LittleEndian.Uint64(buf), nil
}
