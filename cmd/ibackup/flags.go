package main

import (
	"fmt"

	"github.com/jamesainslie/ibackup/pkg/ibackup/catalog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Catalog filter flags shared by files and tree.
var (
	appFilter    string
	domainFilter string
	pathFilter   string
)

// addFilterFlags registers the row filter flags on cmd.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&appFilter, "app", "", "only entries of this app container (bundle identifier)")
	cmd.Flags().StringVar(&domainFilter, "domain", "", "only domains containing this text")
	cmd.Flags().StringVar(&pathFilter, "path", "", "only relative paths containing this text")
}

// filterOptions returns the row filter options from the filter flags.
func filterOptions() []catalog.Option {
	var opts []catalog.Option
	if appFilter != "" {
		opts = append(opts, catalog.WithApp(appFilter))
	}
	if domainFilter != "" {
		opts = append(opts, catalog.WithDomain(domainFilter))
	}
	if pathFilter != "" {
		opts = append(opts, catalog.WithRelativePath(pathFilter))
	}
	return opts
}

// queryOptions combines the filter flags with the query settings from
// configuration (overridable by --flag, --real-path and --info).
func queryOptions() ([]catalog.Option, error) {
	flag := viper.GetInt("query.flag")
	switch flag {
	case catalog.FlagFile, catalog.FlagDirectory, catalog.FlagSymlink:
	default:
		return nil, fmt.Errorf("invalid flag %d: want %d (file), %d (directory) or %d (symlink)",
			flag, catalog.FlagFile, catalog.FlagDirectory, catalog.FlagSymlink)
	}

	opts := filterOptions()
	opts = append(opts,
		catalog.WithFlag(flag),
		catalog.WithRealPath(viper.GetBool("query.real_path")),
		catalog.WithInfo(viper.GetBool("query.info")),
	)
	return opts, nil
}
