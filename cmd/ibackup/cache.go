package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/ibackup/pkg/ibackup/cache"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the catalog query cache",
	Long: `Commands for managing the catalog query cache.

The cache stores the rows of catalog queries so repeated queries against an
unchanged Manifest.db skip the database. Entries are dropped automatically
once the catalog changes. Cache data is stored in the XDG cache directory
(typically ~/.cache/ibackup/catalog).`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [manifest.db]",
	Short: "Clear cached queries",
	Long:  `Removes cached queries for one catalog, or all cached data when no catalog is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if _, err := os.Stat(cfg.Cache.Path); os.IsNotExist(err) {
			printInfo(cmd, "Cache is already empty.")
			return nil
		}

		c, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		defer func() { _ = c.Close() }()

		if len(args) == 1 {
			if err := c.Clear(args[0]); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			printInfo(cmd, "Cache cleared for %s.", args[0])
			return nil
		}

		if err := c.ClearAll(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		printInfo(cmd, "Cache cleared.")
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Long:  `Displays the cache location, its size on disk, and the number of cached queries per catalog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if _, err := os.Stat(cfg.Cache.Path); os.IsNotExist(err) {
			fmt.Fprintln(out, "Cache: empty (no cache directory)")
			fmt.Fprintf(out, "Cache location: %s\n", cfg.Cache.Path)
			return nil
		}

		c, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		defer func() { _ = c.Close() }()

		stats, err := c.Stats()
		if err != nil {
			return fmt.Errorf("failed to read cache: %w", err)
		}

		size, err := dirSize(cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("failed to calculate cache size: %w", err)
		}

		fmt.Fprintf(out, "Cache location: %s\n", cfg.Cache.Path)
		fmt.Fprintf(out, "Cache size: %s\n", humanize.IBytes(uint64(size)))

		catalogs := make([]string, 0, len(stats))
		total := 0
		for db, n := range stats {
			catalogs = append(catalogs, db)
			total += n
		}
		sort.Strings(catalogs)

		fmt.Fprintf(out, "Cached queries: %d\n", total)
		for _, db := range catalogs {
			fmt.Fprintf(out, "  %4d  %s\n", stats[db], db)
		}
		return nil
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	Long:  `Prints the path to the cache directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.Cache.Path)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

// dirSize sums the sizes of the regular files directly in dir. Badger
// keeps its files flat.
func dirSize(dir string) (int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var size int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		size += info.Size()
	}
	return size, nil
}
