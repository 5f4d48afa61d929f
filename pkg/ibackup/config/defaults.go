// Package config provides configuration management for ibackup.
package config

// Default configuration values for ibackup.
const (
	// DefaultFlag selects regular files in catalog queries.
	DefaultFlag = 1

	// DefaultOutput is the output format used when none is given.
	DefaultOutput = "pretty"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultLogMaxSize is the default rotation size.
	DefaultLogMaxSize = "10MB"

	// DefaultLogMaxAge is the default number of days rotated logs are kept.
	DefaultLogMaxAge = 30

	// DefaultLogMaxBackups is the default number of rotated logs kept.
	DefaultLogMaxBackups = 5
)

// DefaultComponentLevels holds the per-component log levels written to a
// fresh config file.
var DefaultComponentLevels = map[string]string{
	"locator": "info",
	"device":  "info",
	"catalog": "info",
	"cache":   "warn",
	"watcher": "warn",
}
