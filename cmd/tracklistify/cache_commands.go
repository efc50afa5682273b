package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tracklistify/internal/cache"
	"tracklistify/internal/config"
	"tracklistify/internal/logger"
)

func newCacheCommand(opts *rootOptions) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the segment fingerprint cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(opts))
	cacheCmd.AddCommand(newCacheClearCommand(opts))

	return cacheCmd
}

func openCache(opts *rootOptions) (*cache.Cache, config.Config, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, config.Config{}, err
	}
	log := logger.New(cfg.Verbose)
	c, err := cache.Open(cfg.Cache.Directory, time.Duration(cfg.Cache.TTLHours)*time.Hour, log)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("failed to open cache: %w", err)
	}
	return c, cfg, nil
}

func newCacheStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cached segment counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := openCache(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			count, err := c.Count(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Directory: %s\n", cfg.Cache.Directory)
			fmt.Fprintf(out, "Segments:  %d\n", count)
			fmt.Fprintf(out, "TTL:       %dh\n", cfg.Cache.TTLHours)
			return nil
		},
	}
}

func newCacheClearCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached segment results",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := openCache(opts)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Segment cache cleared")
			return nil
		},
	}
}
