package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"beatset/internal/featurecache"
	"beatset/internal/preflight"
	"beatset/internal/songs"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the feature cache",
	}

	cacheCmd.AddCommand(newCacheRebuildCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))

	return cacheCmd
}

func newCacheRebuildCommand(ctx *commandContext) *cobra.Command {
	var rootFlag string

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute features for every song under the songs root",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			root := strings.TrimSpace(rootFlag)
			if root == "" {
				root = cfg.Paths.DataDir
			}
			checks := []preflight.Result{
				preflight.CheckReadableDirectory("Songs directory", root),
				preflight.CheckDirectoryAccess("Cache directory", cfg.Cache.Dir),
				preflight.CheckFFmpeg(cmd.Context(), cfg),
			}
			if err := preflight.Failed(checks); err != nil {
				return err
			}

			folders, err := songs.Discover(root)
			if err != nil {
				return err
			}
			cache, closeCache, err := ctx.openCache(progressFor(cmd, logger))
			if err != nil {
				return err
			}
			defer closeCache()

			report, err := cache.Rebuild(cmd.Context(), featurecache.SourcePaths(folders, logger))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sources: %d requested, %d written, %d failed, %d skipped (%s)\n",
				report.Requested, report.Written, len(report.Failed), report.Skipped, report.Duration.Round(time.Millisecond))
			for _, f := range report.Failed {
				fmt.Fprintf(out, "  - %s: %v\n", f.Source, f.Err)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&rootFlag, "root", "", "Songs root directory (defaults to paths.data_dir)")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached feature artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			cache, closeCache, err := ctx.openCache(progressFor(cmd, logger))
			if err != nil {
				return err
			}
			defer closeCache()

			removed, err := cache.Clear(cmd.Context())
			if err != nil {
				return err
			}
			if removed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Feature cache already empty")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached artifacts\n", removed)
			return nil
		},
	}
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show feature cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			cache, closeCache, err := ctx.openCache(progressFor(cmd, logger))
			if err != nil {
				return err
			}
			defer closeCache()

			stats, err := cache.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, stats)
			}
			rows := [][]string{
				{"Backend", stats.Backend},
				{"Location", stats.Location},
				{"Entries", strconv.Itoa(stats.Entries)},
				{"Size", humanBytes(stats.Bytes)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func humanBytes(v int64) string {
	const unit = 1024
	if v < unit {
		return fmt.Sprintf("%d B", v)
	}
	div, exp := int64(unit), 0
	for n := v / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(v)/float64(div), "KMGTPE"[exp])
}
