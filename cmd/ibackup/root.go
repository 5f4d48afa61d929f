package main

import (
	"fmt"

	"github.com/jamesainslie/ibackup/pkg/ibackup/config"
	"github.com/jamesainslie/ibackup/pkg/ibackup/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	// configErr holds a config file failure from initConfig until a command
	// can report it.
	configErr error

	rootCmd = &cobra.Command{
		Use:   "ibackup",
		Short: "Inspect local iOS device backups",
		Long: `ibackup reads the MobileSync backups that Finder and iTunes keep on disk.

It lists the device backups under the backup root, the apps installed on a
device, and the files recorded in its Manifest.db catalog.

Examples:
  ibackup devices                       # List device backups
  ibackup devices --size                # Include on-disk usage
  ibackup apps -u <udid>                # Apps of one device
  ibackup files --app com.apple.Pages   # Files of one app container
  ibackup files --domain Camera -o json # JSON output
  ibackup tree --depth 3                # Size tree of the catalog
  ibackup config show                   # Show configuration`,
		SilenceUsage:      true,
		PersistentPreRunE: bootstrap,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Close()
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/ibackup/config.yaml)")
	rootCmd.PersistentFlags().StringP("backup-dir", "b", "", "backup root (default: platform MobileSync directory)")
	rootCmd.PersistentFlags().StringP("udid", "u", "", "device to open (default: most recent backup)")
	rootCmd.PersistentFlags().String("db", "", "open a standalone Manifest.db instead of a device backup")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format ("+formatList()+")")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().Bool("no-cache", false, "bypass the catalog query cache")

	// Bind flags to viper
	_ = viper.BindPFlag("backup_dir", rootCmd.PersistentFlags().Lookup("backup-dir"))
	_ = viper.BindPFlag("udid", rootCmd.PersistentFlags().Lookup("udid"))
	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("no_cache", rootCmd.PersistentFlags().Lookup("no-cache"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	configErr = config.Setup(viper.GetViper(), cfgFile)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(cmd *cobra.Command, format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
	}
}
