package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/overview/pkg/render"
	"github.com/matzehuels/overview/pkg/render/nodelink"
	"github.com/matzehuels/overview/pkg/tree"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output    string  // output file; extension picks svg, png, pdf or dot
	detailed  bool    // add file counts and dominant type to labels
	scale     float64 // PNG scale factor
	noCache   bool    // disable the snapshot cache when the source is a folder
	maxFrames int     // layout frames to run before exporting
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{scale: 2, maxFrames: defaultMaxFrames}

	cmd := &cobra.Command{
		Use:   "render SNAPSHOT|DIR",
		Short: "Render a settled layout as SVG, PNG, PDF or DOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.scale <= 0 {
				return fmt.Errorf("invalid scale: %v (must be positive)", opts.scale)
			}
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (.svg, .png, .pdf or .dot; default NAME.svg)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show file counts and dominant file type")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "PNG scale factor")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the snapshot cache")
	cmd.Flags().IntVar(&opts.maxFrames, "max-frames", opts.maxFrames, "layout frames to run before exporting")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, src string, opts renderOpts) error {
	logger := loggerFromContext(ctx)
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	ov, err := c.newOverview(cfg)
	if err != nil {
		return err
	}

	t, _, err := c.openSource(ctx, cfg, ov, src, sourceOpts{noCache: opts.noCache})
	if err != nil {
		return err
	}
	prog := newProgress(logger)
	frames := ov.Settle(opts.maxFrames)
	if ov.Hot() {
		logger.Warn("layout did not settle", "frames", frames)
	}
	prog.done(fmt.Sprintf("Laid out %d nodes in %d frames", t.Len(), frames))

	out := opts.output
	if out == "" {
		out = strings.TrimSuffix(filepath.Base(t.Path()), filepath.Ext(t.Path())) + ".svg"
	}
	data, err := export(ctx, t, render.FormatFromPath(out), opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	printSuccess("Rendered %s", t.Root().Name)
	printFile(out)
	return nil
}

// export produces the bytes of t in format f.
func export(ctx context.Context, t *tree.Tree, f render.Format, opts renderOpts) ([]byte, error) {
	dot := nodelink.ToDOT(t, nodelink.Options{Detailed: opts.detailed})
	if f == render.FormatDOT {
		return []byte(dot), nil
	}
	svg, err := nodelink.RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	switch f {
	case render.FormatPNG:
		return render.ToPNG(ctx, svg, opts.scale)
	case render.FormatPDF:
		return render.ToPDF(ctx, svg)
	default:
		return svg, nil
	}
}
