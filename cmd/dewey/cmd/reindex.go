package cmd

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/dewey-index/dewey/internal/async"
	"github.com/dewey-index/dewey/internal/lock"
)

func newReindexCmd() *cobra.Command {
	var progress bool

	cmd := &cobra.Command{
		Use:   "reindex <root>",
		Short: "Walk a corpus and (re)build the index over it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cmd, args[0], progress)
		},
	}
	cmd.Flags().BoolVar(&progress, "progress", false, "emit periodic JSON progress snapshots to stderr")
	return cmd
}

func runReindex(cmd *cobra.Command, root string, reportProgress bool) error {
	c, cfg, err := openCoordinator(root)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	l := lock.New(cfg.DeweyHome)
	ok, err := l.TryLock()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("another dewey process is already writing this index")
	}
	defer func() { _ = l.Unlock() }()

	if reportProgress {
		p := async.NewIndexProgress()
		c.SetProgress(p)
		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			reportProgressSnapshots(cmd, p, stop)
		}()
		defer func() {
			close(stop)
			wg.Wait()
		}()
	}

	stats, err := c.Reindex(cmd.Context(), root, cfg.SplitTable())
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "reindex stopped after %d chunks (%d files walked): %v\n",
			stats.ChunksCommitted, stats.FilesWalked, err)
		if stats.ChunksCommitted == 0 {
			return err
		}
		return &partialReindexError{stats: stats, cause: err}
	}

	if err := c.Snapshot(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d files, %d chunks committed\n", stats.FilesWalked, stats.ChunksCommitted)
	return nil
}

// reportProgressSnapshots writes p's snapshot as JSON to stderr every
// second until stop is closed.
func reportProgressSnapshots(cmd *cobra.Command, p *async.IndexProgress, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	enc := json.NewEncoder(cmd.ErrOrStderr())
	for {
		select {
		case <-stop:
			_ = enc.Encode(p.Snapshot())
			return
		case <-ticker.C:
			_ = enc.Encode(p.Snapshot())
		}
	}
}
