package source

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewey-index/dewey/internal/vector"
)

func testRecord(id vector.BlockID, path string) Record {
	var hash [32]byte
	hash[0] = byte(id)
	return Record{
		ID:    id,
		Path:  path,
		Start: id * 10,
		End:   id*10 + 5,
		Tags:  []string{"doc", "chunk"},
		Hash:  hash,
	}
}

func TestInsertAndGet(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(filepath.Join(dir, "sources.log"))
	require.NoError(t, err)
	defer d.Close()

	rec := testRecord(0, "a.txt")
	require.NoError(t, d.Insert(rec))

	got, err := d.Get(0)
	require.NoError(t, err)
	assert.Equal(t, rec, *got)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(filepath.Join(dir, "sources.log"))
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Get(42)
	assert.Error(t, err)
}

func TestBlockIDsForPathMultimap(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(filepath.Join(dir, "sources.log"))
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Insert(testRecord(0, "a.txt")))
	require.NoError(t, d.Insert(testRecord(1, "a.txt")))
	require.NoError(t, d.Insert(testRecord(2, "b.txt")))

	ids := d.BlockIDsForPath("a.txt")
	assert.ElementsMatch(t, []vector.BlockID{0, 1}, ids)
	assert.Empty(t, d.BlockIDsForPath("missing.txt"))
}

func TestTombstoneRemovesFromPathIndexAndMarksBitset(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(filepath.Join(dir, "sources.log"))
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Insert(testRecord(0, "a.txt")))
	assert.False(t, d.IsTombstoned(0))

	require.NoError(t, d.Tombstone(0))
	assert.True(t, d.IsTombstoned(0))
	assert.Empty(t, d.BlockIDsForPath("a.txt"))

	rec, err := d.Get(0)
	require.NoError(t, err)
	assert.True(t, rec.Tombstone)
}

func TestTombstoneMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(filepath.Join(dir, "sources.log"))
	require.NoError(t, err)
	defer d.Close()

	assert.Error(t, d.Tombstone(7))
}

func TestReopenReplaysLastWriteWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.log")

	d1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, d1.Insert(testRecord(0, "a.txt")))
	require.NoError(t, d1.Tombstone(0))
	require.NoError(t, d1.Insert(testRecord(1, "b.txt")))
	require.NoError(t, d1.Close())

	d2, err := Open(path)
	require.NoError(t, err)
	defer d2.Close()

	assert.True(t, d2.IsTombstoned(0))
	assert.False(t, d2.IsTombstoned(1))
	assert.Equal(t, 2, d2.Len())
	assert.Empty(t, d2.BlockIDsForPath("a.txt"))
	assert.ElementsMatch(t, []vector.BlockID{1}, d2.BlockIDsForPath("b.txt"))
}

func TestCorruptTrailingRecordIsTruncatedAndWarned(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.log")

	d1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, d1.Insert(testRecord(0, "a.txt")))
	goodSize := fileSize(t, path)
	require.NoError(t, d1.Insert(testRecord(1, "b.txt")))
	require.NoError(t, d1.Close())

	// Simulate a torn write: truncate mid-way through the second record.
	fullSize := fileSize(t, path)
	require.NoError(t, os.Truncate(path, (fullSize+goodSize)/2))

	d2, err := Open(path)
	require.NoError(t, err)
	defer d2.Close()

	assert.Equal(t, 1, d2.Len())
	got, err := d2.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.Path)

	// The log is now repaired in place; appending further records works.
	require.NoError(t, d2.Insert(testRecord(1, "b.txt")))
	got2, err := d2.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", got2.Path)
}

func TestSnapshotIsCompactOneRecordPerID(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(filepath.Join(dir, "sources.log"))
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Insert(testRecord(0, "a.txt")))
	require.NoError(t, d.Insert(testRecord(0, "a.txt"))) // superseding write
	require.NoError(t, d.Insert(testRecord(1, "b.txt")))

	var buf bytes.Buffer
	require.NoError(t, d.Snapshot(&buf))

	snapPath := filepath.Join(dir, "snapshot.log")
	require.NoError(t, os.WriteFile(snapPath, buf.Bytes(), 0o644))

	replayed, err := Open(snapPath)
	require.NoError(t, err)
	defer replayed.Close()

	assert.Equal(t, 2, replayed.Len())
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}
