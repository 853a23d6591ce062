package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/overview/pkg/tree"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr    string // listen address, overrides serve.addr
	watch   bool   // keep folder sources in sync with the file system
	noCache bool   // disable the snapshot cache
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve SNAPSHOT|DIR...",
		Short: "Serve live layouts over HTTP",
		Long: `Serve opens every argument as a tree, keeps the layout engine running, and
exposes nodes, links, hit testing and dragging as a JSON API:

  GET  /trees
  GET  /trees/{id}/nodes
  GET  /trees/{id}/links
  GET  /trees/{id}/hit?x=..&y=..&zoom=..
  POST /trees/{id}/drag   {"node": 3, "phase": "move", "dx": 0, "dy": 40, "zoom": 1}
  GET  /trees/{id}/dot
  GET  /metrics`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "watch folder sources for changes")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the snapshot cache")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, sources []string, opts serveOpts) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Serve.Addr = opts.addr
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	newMetrics(reg).install()

	ov, err := c.newOverview(cfg)
	if err != nil {
		return err
	}

	var watched []*tree.Tree
	for _, src := range sources {
		t, _, err := c.openSource(ctx, cfg, ov, src, sourceOpts{noCache: opts.noCache, quiet: true})
		if err != nil {
			return err
		}
		if info, err := os.Stat(src); err == nil && info.IsDir() {
			watched = append(watched, t)
		}
		printInfo("%s %s", t.ID(), t.Path())
	}

	srv := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           newRouter(ov, reg, c.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ov.Run(ctx) })
	if opts.watch {
		for _, t := range watched {
			g.Go(func() error { return ov.Watch(ctx, t) })
		}
	}
	g.Go(func() error {
		c.Logger.Info("listening", "addr", cfg.Serve.Addr, "trees", len(sources))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
