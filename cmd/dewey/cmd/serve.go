package cmd

import (
	"github.com/spf13/cobra"

	deweymcp "github.com/dewey-index/dewey/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an MCP bridge exposing query/query_by_file as tools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := openCoordinator(root)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			srv, err := deweymcp.NewServer(c)
			if err != nil {
				return err
			}
			return srv.Serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "project root to load dewey.yaml from")
	return cmd
}
