package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jamesainslie/ibackup/pkg/ibackup/backup"
	"github.com/jamesainslie/ibackup/pkg/ibackup/cache"
	"github.com/jamesainslie/ibackup/pkg/ibackup/config"
	"github.com/jamesainslie/ibackup/pkg/ibackup/device"
	"github.com/jamesainslie/ibackup/pkg/ibackup/logging"
	"github.com/jamesainslie/ibackup/pkg/ibackup/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// bootstrap loads configuration and initializes logging before any command.
func bootstrap(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return configErr
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	return initializeLogging(cfg)
}

// loadConfig decodes the shared viper instance, flags included.
func loadConfig() (*config.Config, error) {
	return config.Decode(viper.GetViper())
}

// parseRotationConfig converts file rotation settings. An empty or invalid
// max_size falls back to the default size.
func parseRotationConfig(rc config.RotationConfig) logging.RotationConfig {
	maxSize, err := logging.ParseMaxSize(rc.MaxSize)
	if err != nil || maxSize == 0 {
		maxSize = logging.DefaultRotationConfig().MaxSize
	}

	return logging.RotationConfig{
		MaxSize:    maxSize,
		MaxAge:     rc.MaxAge,
		MaxBackups: rc.MaxBackups,
		Daily:      rc.Daily,
	}
}

// loggingConfig builds the logging setup. Console output shows errors
// only; warnings are collected into the rendered result instead.
func loggingConfig(cfg *config.Config, verbose, quiet bool) logging.Config {
	lc := logging.Config{
		Level:        cfg.Logging.Level,
		Path:         cfg.Logging.Path,
		Rotation:     parseRotationConfig(cfg.Logging.Rotation),
		Components:   cfg.Logging.Components,
		ConsoleLevel: "error",
	}

	switch {
	case verbose:
		lc.Level = "debug"
		lc.ConsoleLevel = "debug"
		lc.Components = nil
	case quiet:
		lc.ConsoleLevel = ""
	}

	return lc
}

// initializeLogging sets up the logging system from configuration.
func initializeLogging(cfg *config.Config) error {
	if err := logging.Init(loggingConfig(cfg, getVerbose(), getQuiet())); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	return nil
}

// devicePredicate returns the device directory filter from configuration.
func devicePredicate(cfg *config.Config) device.Predicate {
	if len(cfg.Device.UDIDLengths) == 0 {
		return device.AcceptAll
	}
	return device.LengthPredicate(cfg.Device.UDIDLengths...)
}

// session is an opened backup root with its optional query cache.
type session struct {
	cfg    *config.Config
	backup *backup.Backup
	cache  *cache.Cache
}

// openSession opens the query cache unless disabled and resolves the backup
// root. A cache that cannot be opened (another ibackup holds it) is skipped
// with a warning. With --db set and needRoot false no root is resolved.
func openSession(cfg *config.Config, needRoot bool) (*session, error) {
	s := &session{cfg: cfg}

	if cfg.Cache.Enabled && !viper.GetBool("no_cache") {
		c, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			logging.Get("cli").Warn("query cache unavailable", "path", cfg.Cache.Path, "error", err)
		} else {
			s.cache = c
		}
	}

	if !needRoot && viper.GetString("db") != "" {
		return s, nil
	}

	b, err := openBackup(cfg, s.cache)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.backup = b
	return s, nil
}

// openBackup resolves the configured backup root. A nil cache leaves
// catalog queries uncached.
func openBackup(cfg *config.Config, c *cache.Cache) (*backup.Backup, error) {
	opts := []backup.Option{backup.WithPredicate(devicePredicate(cfg))}
	if c != nil {
		opts = append(opts, backup.WithCache(c))
	}
	return backup.Open(cfg.BackupDir, opts...)
}

// Active opens the device to query: a standalone catalog when --db is set,
// otherwise the configured or most recent device.
func (s *session) Active() (*backup.Active, error) {
	if db := viper.GetString("db"); db != "" {
		a, err := backup.OpenCatalog(db)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			a.Catalog = a.Catalog.WithCache(s.cache)
		}
		return a, nil
	}
	return s.backup.SetDevice(s.cfg.UDID)
}

// Close releases the query cache.
func (s *session) Close() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Close(); err != nil {
		logging.Get("cli").Warn("closing query cache", "error", err)
	}
	s.cache = nil
}

// openActive opens the device a single-catalog command works on.
func openActive(cfg *config.Config) (*backup.Active, func(), error) {
	s, err := openSession(cfg, false)
	if err != nil {
		return nil, nil, err
	}
	a, err := s.Active()
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return a, s.Close, nil
}

// warningCollector gathers warning log entries emitted while a command
// runs so they can be rendered with the result.
type warningCollector struct {
	ch       <-chan logging.LogEntry
	stop     chan struct{}
	done     chan struct{}
	warnings []string
}

func collectWarnings() *warningCollector {
	wc := &warningCollector{
		ch:   logging.Subscribe(),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go wc.run()
	return wc
}

func (wc *warningCollector) run() {
	defer close(wc.done)
	for {
		select {
		case entry := <-wc.ch:
			wc.add(entry)
		case <-wc.stop:
			for {
				select {
				case entry := <-wc.ch:
					wc.add(entry)
				default:
					return
				}
			}
		}
	}
}

func (wc *warningCollector) add(entry logging.LogEntry) {
	if entry.Level == logging.LevelWarn {
		wc.warnings = append(wc.warnings, formatEntry(entry))
	}
}

// Stop ends collection and returns the warnings seen so far.
func (wc *warningCollector) Stop() []string {
	close(wc.stop)
	<-wc.done
	logging.Unsubscribe(wc.ch)
	return wc.warnings
}

func formatEntry(entry logging.LogEntry) string {
	var b strings.Builder
	b.WriteString(entry.Message)
	for i := 0; i+1 < len(entry.Args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", entry.Args[i], entry.Args[i+1])
	}
	return b.String()
}

// outputFormat returns the selected format, validated against the registry.
func outputFormat() (string, error) {
	format := viper.GetString("output")
	if format == "" {
		format = config.DefaultOutput
	}
	if _, err := output.Get(format); err != nil {
		return "", fmt.Errorf("unknown output format %q: available formats are %v", format, output.Available())
	}
	return format, nil
}

func formatList() string {
	return strings.Join(output.Available(), ", ")
}

// render formats result and writes it to the command output.
func render(cmd *cobra.Command, result *output.Result) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	formatter, err := output.Get(format)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	_, err = cmd.OutOrStdout().Write(buf.Bytes())
	return err
}
