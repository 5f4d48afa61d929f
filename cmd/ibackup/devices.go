package main

import (
	"errors"

	"github.com/jamesainslie/ibackup/pkg/ibackup/device"
	"github.com/jamesainslie/ibackup/pkg/ibackup/output"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List device backups",
	Long: `List every device backup under the backup root with the details read
from its Info.plist and Manifest.plist. The device that other commands open
by default (the configured --udid, else the most recent backup) is marked
active.

Directories whose descriptor files are missing or unreadable are listed
without details.`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

var devicesSize bool

func init() {
	devicesCmd.Flags().BoolVar(&devicesSize, "size", false, "compute the on-disk size of each backup")
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	warnings := collectWarnings()
	s, err := openSession(cfg, true)
	if err != nil {
		warnings.Stop()
		return err
	}
	defer s.Close()

	devices, err := s.backup.Devices()
	if err != nil {
		warnings.Stop()
		return err
	}

	var activeUDID string
	if d, err := device.SelectFrom(devices, cfg.UDID); err == nil {
		activeUDID = d.UDID
	} else if !errors.Is(err, device.ErrNoDevice) {
		warnings.Stop()
		return err
	}

	entries := output.NewDeviceEntries(devices, activeUDID)
	if devicesSize {
		for i := range entries {
			usage, err := device.DiskUsage(cmd.Context(), s.backup.Root, entries[i].UDID)
			if err != nil {
				warnings.Stop()
				return err
			}
			entries[i].SetUsage(usage)
		}
	}

	return render(cmd, &output.Result{
		Kind:     output.KindDevices,
		Source:   s.backup.Root,
		Devices:  entries,
		Warnings: warnings.Stop(),
	})
}
