package main

import (
	"github.com/jamesainslie/ibackup/pkg/ibackup/catalog"
	"github.com/jamesainslie/ibackup/pkg/ibackup/output"
	"github.com/spf13/cobra"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List apps installed on a device",
	Long: `List the bundle identifiers of the apps on the selected device.

The list comes from Info.plist. Backups without it fall back to the app
container domains (AppDomain-<bundle id>) recorded in the catalog.`,
	Args: cobra.NoArgs,
	RunE: runApps,
}

func init() {
	rootCmd.AddCommand(appsCmd)
}

func runApps(cmd *cobra.Command, args []string) error {
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

	apps := active.ListApps(nil)
	if len(apps) == 0 {
		scan, err := active.Files(cmd.Context(), catalog.WithRealPath(false))
		if err != nil {
			warnings.Stop()
			return err
		}
		apps = active.ListApps(scan)
	}

	return render(cmd, &output.Result{
		Kind:     output.KindApps,
		Source:   active.Path,
		Apps:     apps,
		Warnings: warnings.Stop(),
	})
}
