package mcp

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewey-index/dewey/internal/index"
)

type fakeCoordinator struct {
	queryResults       []index.Result
	queryByFileResults []index.Result
	err                error
	lastText           string
	lastFile           string
	lastTags           []string
	lastK              int
}

func (f *fakeCoordinator) Query(_ context.Context, text string, tags []string, k int) ([]index.Result, error) {
	f.lastText, f.lastTags, f.lastK = text, tags, k
	if f.err != nil {
		return nil, f.err
	}
	return f.queryResults, nil
}

func (f *fakeCoordinator) QueryByFile(_ context.Context, path string, tags []string, k int) ([]index.Result, error) {
	f.lastFile, f.lastTags, f.lastK = path, tags, k
	if f.err != nil {
		return nil, f.err
	}
	return f.queryByFileResults, nil
}

func TestNewServer_RejectsNilCoordinator(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestHandleQuery_RejectsEmptyText(t *testing.T) {
	s, err := NewServer(&fakeCoordinator{})
	require.NoError(t, err)

	_, _, err = s.handleQuery(t.Context(), nil, QueryInput{})
	assert.Error(t, err)
}

func TestHandleQuery_ForwardsToCoordinatorAndConvertsResults(t *testing.T) {
	fc := &fakeCoordinator{
		queryResults: []index.Result{
			{Path: "a.txt", Start: 0, End: 5, Score: 0.1},
		},
	}
	s, err := NewServer(fc)
	require.NoError(t, err)

	_, out, err := s.handleQuery(t.Context(), nil, QueryInput{Text: "hello", K: 3, Tags: []string{"prose"}})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "a.txt", out.Results[0].Path)
	assert.Equal(t, "hello", fc.lastText)
	assert.Equal(t, 3, fc.lastK)
	assert.Equal(t, []string{"prose"}, fc.lastTags)
}

func TestHandleQuery_DefaultsKWhenUnset(t *testing.T) {
	fc := &fakeCoordinator{}
	s, err := NewServer(fc)
	require.NoError(t, err)

	_, _, err = s.handleQuery(t.Context(), nil, QueryInput{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 10, fc.lastK)
}

func TestHandleQueryByFile_RejectsEmptyFile(t *testing.T) {
	s, err := NewServer(&fakeCoordinator{})
	require.NoError(t, err)

	_, _, err = s.handleQueryByFile(t.Context(), nil, QueryInput{})
	assert.Error(t, err)
}

func TestHandleQueryByFile_ForwardsToCoordinator(t *testing.T) {
	fc := &fakeCoordinator{
		queryByFileResults: []index.Result{
			{Path: "b.txt", Start: 10, End: 20, Score: 0.5},
		},
	}
	s, err := NewServer(fc)
	require.NoError(t, err)

	_, out, err := s.handleQueryByFile(t.Context(), nil, QueryInput{File: "a.txt", K: 5})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "b.txt", out.Results[0].Path)
	want, absErr := filepath.Abs("a.txt")
	require.NoError(t, absErr)
	assert.Equal(t, want, fc.lastFile)
}
