package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamesainslie/ibackup/pkg/ibackup/device"
	"github.com/jamesainslie/ibackup/pkg/ibackup/watcher"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Report device backups as they change",
	Long: `Watch the backup root and print a line whenever a device backup is
added, removed, or rewrites its Manifest.plist or Manifest.db. Runs until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	b, err := openBackup(cfg, nil)
	if err != nil {
		return err
	}

	w, err := watcher.New(b.Root, devicePredicate(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	if err := w.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printInfo(cmd, "Watching %s (Ctrl+C to stop)", b.Root)
	watchLoop(ctx, cmd, w, b.Root)
	return nil
}

// watchLoop prints each event with the device name when it can be read.
func watchLoop(ctx context.Context, cmd *cobra.Command, w *watcher.Watcher, root string) {
	w.Run(ctx, func(ev watcher.Event) {
		name := ev.UDID
		if ev.Op != watcher.OpRemoved {
			if d := device.BuildDescriptor(root, ev.UDID); !d.Empty() {
				name = d.Name + " (" + ev.UDID + ")"
			}
		}
		printInfo(cmd, "%-8s %s", ev.Op, name)
	})
}
