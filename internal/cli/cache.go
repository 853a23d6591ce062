package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/overview/pkg/cache"
	"github.com/matzehuels/overview/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the snapshot cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Cache.Backend == config.BackendNone {
				printInfo("Cache is disabled")
				return nil
			}
			sc, err := c.openCache(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer sc.Close()

			if err := sc.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			printSuccess("Cleared %s cache", cfg.Cache.Backend)
			if dir, err := cacheLocation(cfg); err == nil {
				printDetail("Location: %s", dir)
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where snapshots are cached",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			loc, err := cacheLocation(cfg)
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), loc)
			return nil
		},
	}
}

// cacheLocation describes where the configured backend keeps its entries.
func cacheLocation(cfg config.Config) (string, error) {
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		return "redis://" + cfg.Cache.RedisAddr, nil
	case config.BackendNone:
		return "", fmt.Errorf("cache disabled")
	}
	if cfg.Cache.Dir != "" {
		return cfg.Cache.Dir, nil
	}
	return cache.DefaultDir()
}
