package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/overview/pkg/snapshot"
)

// scanOpts holds the command-line flags for the scan command.
type scanOpts struct {
	output    string // snapshot path; extension picks JSON or BSON
	noCache   bool   // skip the snapshot cache entirely
	refresh   bool   // rescan even on a cache hit, then update the cache
	maxFrames int    // layout frames to run before giving up on settling
}

// scanCommand creates the scan command.
func (c *CLI) scanCommand() *cobra.Command {
	opts := scanOpts{maxFrames: defaultMaxFrames}

	cmd := &cobra.Command{
		Use:   "scan DIR",
		Short: "Scan a folder hierarchy and save a snapshot",
		Long: `Scan walks DIR, aggregates folder metrics up the tree, settles the layout,
and writes a snapshot that render and serve can open without rescanning.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runScan(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "snapshot file (.json or .bson, default DIR-name.json)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the snapshot cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "rescan even when a cached snapshot exists")
	cmd.Flags().IntVar(&opts.maxFrames, "max-frames", opts.maxFrames, "layout frames to run before writing")

	return cmd
}

func (c *CLI) runScan(ctx context.Context, dir string, opts scanOpts) error {
	logger := loggerFromContext(ctx)
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	ov, err := c.newOverview(cfg)
	if err != nil {
		return err
	}

	t, cached, err := c.openSource(ctx, cfg, ov, dir, sourceOpts{noCache: opts.noCache, refresh: opts.refresh})
	if err != nil {
		return err
	}
	frames := ov.Settle(opts.maxFrames)
	logger.Debug("layout settled", "frames", frames, "hot", ov.Hot())

	out := opts.output
	if out == "" {
		out = filepath.Base(t.Path()) + ".json"
	}
	if err := snapshot.WriteFile(out, snapshot.FromTree(t)); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	printSuccess("Scanned %s", t.Path())
	printStats(t.Len(), len(t.Links()), cached)
	printFile(out)
	return nil
}
