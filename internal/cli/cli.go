// Package cli implements the overview command-line interface.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/overview/pkg/buildinfo"
	"github.com/matzehuels/overview/pkg/config"
	"github.com/matzehuels/overview/pkg/overview"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "overview"

	// defaultMaxFrames bounds how long scan and render wait for a layout to settle.
	defaultMaxFrames = 20000
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogWarn  = log.WarnLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	strategy   string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Overview lays out folder hierarchies as animated node-link diagrams",
		Long:         `Overview scans folder hierarchies, aggregates size, file count, age and file types up the tree, and lays the tree out with a spring-column physics engine that can be exported, watched live, or served over HTTP.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (.toml or .yaml, default $XDG_CONFIG_HOME/overview/config.toml)")
	root.PersistentFlags().StringVar(&c.strategy, "strategy", "", "layout strategy (spring-column, spring-column-extended)")

	root.AddCommand(c.scanCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Shared Setup
// =============================================================================

// loadConfig reads the config file and applies global flag overrides.
func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return cfg, err
	}
	if c.strategy != "" {
		cfg.Layout.Strategy = c.strategy
	}
	return cfg, cfg.Validate()
}

// newOverview builds an overview from the loaded config.
func (c *CLI) newOverview(cfg config.Config) (*overview.Overview, error) {
	return overview.New(overview.Options{Config: &cfg, Logger: c.Logger})
}

// openCache opens the configured snapshot cache, or the null backend when
// caching is disabled for this run.
func (c *CLI) openCache(ctx context.Context, cfg config.Config, noCache bool) (*overview.SnapshotCache, error) {
	cc := cfg.Cache
	if noCache {
		cc.Backend = config.BackendNone
	}
	return overview.OpenCache(ctx, cc, c.Logger)
}
