package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	deweyerrors "github.com/dewey-index/dewey/internal/errors"
	"github.com/dewey-index/dewey/internal/index"
)

func newQueryCmd() *cobra.Command {
	var text string
	var file string
	var tags []string
	var k int
	var root string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Search the index by text or by an already-indexed file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if text == "" && file == "" {
				return deweyerrors.InvalidArgument("one of --text or --file is required", nil)
			}
			if text != "" && file != "" {
				return deweyerrors.InvalidArgument("only one of --text or --file may be set", nil)
			}

			c, _, err := openCoordinator(root)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			var results []index.Result
			if text != "" {
				results, err = c.Query(cmd.Context(), text, tags, k)
			} else {
				absFile, absErr := filepath.Abs(file)
				if absErr != nil {
					return deweyerrors.InvalidArgument("cannot resolve --file to an absolute path", absErr)
				}
				results, err = c.QueryByFile(cmd.Context(), absFile, tags, k)
			}
			if err != nil {
				return err
			}

			printResults(cmd, results)
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "query text to embed and search for")
	cmd.Flags().StringVar(&file, "file", "", "path to a previously indexed file to use as the query")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "only return chunks tagged with at least one of these (repeatable)")
	cmd.Flags().IntVarP(&k, "k", "k", 10, "number of results to return")
	cmd.Flags().StringVar(&root, "root", ".", "project root to load dewey.yaml from")

	return cmd
}

// printResults prints one result per line: path\tstart\tend\tscore
// (spec §6's CLI surface).
func printResults(cmd *cobra.Command, results []index.Result) {
	out := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(out, "%s\t%d\t%d\t%g\n", r.Path, r.Start, r.End, r.Score)
	}
}
