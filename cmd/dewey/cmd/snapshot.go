package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Atomically persist sources.log and graph.bin to disk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := openCoordinator(root)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.Snapshot(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "snapshot written")
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "project root to load dewey.yaml from")
	return cmd
}
