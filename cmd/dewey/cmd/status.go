package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dewey-index/dewey/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var root string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report index location, dimensions, and on-disk size",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, cfg, err := openCoordinator(root)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			st, err := c.Status()
			if err != nil {
				return err
			}

			embedderType := "http"
			if os.Getenv("DEWEY_OFFLINE") != "" {
				embedderType = "static"
			}

			info := ui.StatusInfo{
				ProjectName:    filepath.Base(root),
				TotalFiles:     st.SourceCount,
				TotalChunks:    int(st.ChunkCount),
				SourcesSize:    st.SourceFileSize,
				GraphSize:      st.GraphFileSize,
				VectorSize:     st.VectorFileSize,
				TotalSize:      st.VectorFileSize + st.SourceFileSize + st.GraphFileSize,
				EmbedderType:   embedderType,
				EmbedderStatus: "ready",
				EmbedderModel:  cfg.Embedding.Model,
			}

			r := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
			if asJSON {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "project root to load dewey.yaml from")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit status as JSON")
	return cmd
}
