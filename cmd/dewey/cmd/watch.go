package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dewey-index/dewey/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <root>",
		Short: "Continuously reindex a corpus as files change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0])
		},
	}
	return cmd
}

func runWatch(cmd *cobra.Command, root string) error {
	c, cfg, err := openCoordinator(root)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx := cmd.Context()

	w := watcher.New(watcher.DefaultOptions())
	if err := w.Start(ctx, root); err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	fmt.Fprintf(cmd.OutOrStdout(), "watching %s for changes\n", root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			slog.Info("change detected, reindexing", slog.String("path", ev.Path), slog.String("op", ev.Operation.String()))
			if _, err := c.Reindex(ctx, root, cfg.SplitTable()); err != nil {
				slog.Error("incremental reindex failed", slog.String("error", err.Error()))
				continue
			}
			if err := c.Snapshot(); err != nil {
				slog.Error("snapshot after incremental reindex failed", slog.String("error", err.Error()))
			}
		case err, ok := <-w.Errors():
			if !ok {
				continue
			}
			slog.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}
