package main

import (
	"github.com/jamesainslie/ibackup/pkg/ibackup/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Query the device catalog",
	Long: `List catalog entries of the selected device's Manifest.db.

Filters combine: --app matches one app container exactly, --domain and
--path match substrings. By default only regular files are listed and each
is resolved to its content file inside the backup; a missing content file
fails the whole query.

Examples:
  ibackup files --app com.apple.Pages
  ibackup files --domain CameraRollDomain --path DCIM -o paths
  ibackup files --flag 2 --real-path=false   # directories
  ibackup files --info -o json               # include decoded metadata`,
	Args: cobra.NoArgs,
	RunE: runFiles,
}

func init() {
	addFilterFlags(filesCmd)
	filesCmd.Flags().Int("flag", 0, "entry kind: 1 file, 2 directory, 4 symlink (default from config)")
	filesCmd.Flags().Bool("real-path", true, "resolve content file paths")
	filesCmd.Flags().Bool("info", false, "decode entry metadata")

	_ = viper.BindPFlag("query.flag", filesCmd.Flags().Lookup("flag"))
	_ = viper.BindPFlag("query.real_path", filesCmd.Flags().Lookup("real-path"))
	_ = viper.BindPFlag("query.info", filesCmd.Flags().Lookup("info"))

	rootCmd.AddCommand(filesCmd)
}

func runFiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts, err := queryOptions()
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

	records, err := active.Files(cmd.Context(), opts...)
	if err != nil {
		warnings.Stop()
		return err
	}

	return render(cmd, &output.Result{
		Kind:     output.KindFiles,
		Source:   active.Path,
		Files:    output.NewFileEntries(records),
		Warnings: warnings.Stop(),
	})
}
