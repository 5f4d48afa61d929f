package main

import (
	"github.com/jamesainslie/ibackup/pkg/ibackup/catalog"
	"github.com/jamesainslie/ibackup/pkg/ibackup/output"
	"github.com/jamesainslie/ibackup/pkg/ibackup/tree"
	"github.com/spf13/cobra"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show a size tree of the device catalog",
	Long: `Aggregate the file sizes recorded in the catalog into a directory tree.

Without --app the tree has one branch per installed app. Sizes come from
each entry's metadata, so no content file is read.`,
	Args: cobra.NoArgs,
	RunE: runTree,
}

var treeDepth int

func init() {
	addFilterFlags(treeCmd)
	treeCmd.Flags().IntVar(&treeDepth, "depth", 0, "collapse the tree below this depth (0 = unlimited)")
	rootCmd.AddCommand(treeCmd)
}

func runTree(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	warnings := collectWarnings()
	active, closeSession, err := openActive(cfg)
	if err != nil {
		warnings.Stop()
		return err
	}
	defer closeSession()

	opts := append(filterOptions(), catalog.WithRealPath(false), catalog.WithInfo(true))
	records, err := active.Files(cmd.Context(), opts...)
	if err != nil {
		warnings.Stop()
		return err
	}

	var root *tree.Node
	if appFilter != "" {
		root = tree.Build(appFilter, records)
	} else {
		root = tree.ByApp(active.ListApps(records), records)
	}
	if treeDepth > 0 {
		root = root.Truncate(treeDepth)
	}

	return render(cmd, &output.Result{
		Kind:     output.KindTree,
		Source:   active.Path,
		Tree:     root,
		Warnings: warnings.Stop(),
	})
}
