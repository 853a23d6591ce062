package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/matzehuels/overview/pkg/config"
	"github.com/matzehuels/overview/pkg/errors"
	"github.com/matzehuels/overview/pkg/overview"
	"github.com/matzehuels/overview/pkg/snapshot"
	"github.com/matzehuels/overview/pkg/tree"
)

// sourceOpts controls how a command argument becomes a tree.
type sourceOpts struct {
	noCache bool
	refresh bool
	quiet   bool
}

// openSource turns arg into a fully populated tree inside ov. A folder is
// scanned (or restored from the snapshot cache); any other file is read as
// a snapshot. The bool reports a cache hit.
func (c *CLI) openSource(ctx context.Context, cfg config.Config, ov *overview.Overview, arg string, opts sourceOpts) (*tree.Tree, bool, error) {
	logger := loggerFromContext(ctx)
	info, err := os.Stat(arg)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", arg)
	}
	if !info.IsDir() {
		doc, err := snapshot.ReadFile(arg)
		if err != nil {
			return nil, false, err
		}
		t, err := ov.Load(doc)
		return t, false, err
	}

	root, err := filepath.Abs(arg)
	if err != nil {
		return nil, false, err
	}
	sc, err := c.openCache(ctx, cfg, opts.noCache)
	if err != nil {
		return nil, false, err
	}
	defer sc.Close()

	if !opts.refresh {
		if doc, hit, err := sc.Get(ctx, root, cfg.Scan); err != nil {
			logger.Warn("snapshot cache unavailable", "err", err)
		} else if hit {
			logger.Debug("restored cached snapshot", "root", root)
			t, err := ov.Load(doc)
			return t, true, err
		}
	}

	t, err := ov.Open(root)
	if err != nil {
		return nil, false, err
	}

	prog := newProgress(logger)
	var spin *Spinner
	if !opts.quiet {
		spin = newSpinnerWithContext(ctx, "Scanning "+root)
		spin.Start()
	}
	stats, err := ov.Scan(ctx, t)
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return nil, false, fmt.Errorf("scan %s: %w", root, err)
	}
	ov.Settle(0)
	prog.done(fmt.Sprintf("Scanned %s folders, %s files, %s",
		humanize.Comma(int64(stats.Dirs)),
		humanize.Comma(int64(stats.Files)),
		humanize.Bytes(uint64(stats.Bytes))))

	if err := sc.Put(ctx, snapshot.FromTree(t), cfg.Scan); err != nil {
		logger.Warn("could not cache snapshot", "err", err)
	}
	return t, false, nil
}
