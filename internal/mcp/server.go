// Package mcp bridges the index coordinator to the Model Context
// Protocol so a sibling chat client can call `query` / `query_by_file`
// as tools (spec §6, SPEC_FULL.md's "dewey serve").
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dewey-index/dewey/internal/index"
	deweyerrors "github.com/dewey-index/dewey/internal/errors"
	"github.com/dewey-index/dewey/pkg/version"
)

// Coordinator is the subset of *index.Coordinator the server depends
// on, narrowed for testability.
type Coordinator interface {
	Query(ctx context.Context, text string, tags []string, k int) ([]index.Result, error)
	QueryByFile(ctx context.Context, path string, tags []string, k int) ([]index.Result, error)
}

// Server wraps an index.Coordinator with an MCP tool surface.
type Server struct {
	mcp    *mcp.Server
	coord  Coordinator
	logger *slog.Logger
}

// QueryInput is the shared input schema for the query and
// query_by_file tools.
type QueryInput struct {
	Text string   `json:"text,omitempty" jsonschema:"the natural-language text to embed and search for"`
	File string   `json:"file,omitempty" jsonschema:"path to a previously indexed file; its chunks are averaged into one query vector"`
	Tags []string `json:"tags,omitempty" jsonschema:"only return chunks tagged with at least one of these"`
	K    int      `json:"k,omitempty" jsonschema:"number of results to return, default 10"`
}

// ResultOutput mirrors spec §6's query response row.
type ResultOutput struct {
	Path  string  `json:"path"`
	Start uint64  `json:"start"`
	End   uint64  `json:"end"`
	Score float32 `json:"score"`
}

// QueryOutput wraps the ordered result list.
type QueryOutput struct {
	Results []ResultOutput `json:"results"`
}

// NewServer constructs a Server bridging coord to MCP tools.
func NewServer(coord Coordinator) (*Server, error) {
	if coord == nil {
		return nil, errors.New("mcp: a coordinator is required")
	}

	s := &Server{
		coord:  coord,
		logger: slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "dewey",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query",
		Description: "Search the index by natural-language text, returning the k nearest chunks by cosine distance.",
	}, s.handleQuery)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_by_file",
		Description: "Search the index using a previously indexed file's own content as the query, returning the k nearest chunks; the file's own chunks are not excluded and can appear in the results.",
	}, s.handleQueryByFile)
}

func defaultK(k int) int {
	if k <= 0 {
		return 10
	}
	return k
}

func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (
	*mcp.CallToolResult,
	QueryOutput,
	error,
) {
	if input.Text == "" {
		return nil, QueryOutput{}, deweyerrors.InvalidArgument("text is required for query", nil)
	}

	results, err := s.coord.Query(ctx, input.Text, input.Tags, defaultK(input.K))
	if err != nil {
		return nil, QueryOutput{}, err
	}
	return nil, toQueryOutput(results), nil
}

func (s *Server) handleQueryByFile(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (
	*mcp.CallToolResult,
	QueryOutput,
	error,
) {
	if input.File == "" {
		return nil, QueryOutput{}, deweyerrors.InvalidArgument("file is required for query_by_file", nil)
	}

	absFile, err := filepath.Abs(input.File)
	if err != nil {
		return nil, QueryOutput{}, deweyerrors.InvalidArgument("cannot resolve file to an absolute path", err)
	}

	results, err := s.coord.QueryByFile(ctx, absFile, input.Tags, defaultK(input.K))
	if err != nil {
		return nil, QueryOutput{}, err
	}
	return nil, toQueryOutput(results), nil
}

func toQueryOutput(results []index.Result) QueryOutput {
	out := QueryOutput{Results: make([]ResultOutput, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, ResultOutput{Path: r.Path, Start: r.Start, End: r.End, Score: r.Score})
	}
	return out
}

// Serve runs the server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}
