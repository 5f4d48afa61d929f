// Package locator finds the MobileSync backup root on the local machine.
package locator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/adrg/xdg"

	"github.com/jamesainslie/ibackup/pkg/ibackup/logging"
)

var (
	// ErrNotFound is returned when no backup directory exists at the
	// requested or default location.
	ErrNotFound = errors.New("backup directory not found")

	// ErrUnsupportedPlatform is returned when no default location is known
	// for the running operating system.
	ErrUnsupportedPlatform = errors.New("no default backup directory for this platform")
)

var log = logging.Get("locator")

// Resolve returns the backup root. A non-empty explicitPath has its
// environment references and leading ~ expanded and must name an existing
// directory. An empty explicitPath falls back to Default.
func Resolve(explicitPath string) (string, error) {
	if explicitPath == "" {
		return Default()
	}

	path := Expand(explicitPath)
	if !isDir(path) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	log.Debug("using explicit backup directory", "path", path)
	return path, nil
}

// Default probes the platform's conventional locations in order and returns
// the first one that exists.
func Default() (string, error) {
	candidates, err := Candidates(runtime.GOOS)
	if err != nil {
		return "", err
	}
	return firstDir(candidates)
}

// Candidates lists the conventional backup locations for goos in probe
// order. Only darwin and windows are supported.
func Candidates(goos string) ([]string, error) {
	return candidates(goos, os.Getenv, xdg.Home)
}

func candidates(goos string, getenv func(string) string, home string) ([]string, error) {
	switch goos {
	case "darwin":
		return []string{
			filepath.Join(home, "Library", "Application Support", "MobileSync", "Backup"),
		}, nil
	case "windows":
		var out []string
		for _, env := range []string{"APPDATA", "USERPROFILE"} {
			base := getenv(env)
			if base == "" {
				continue
			}
			out = append(out,
				filepath.Join(base, "Apple Computer", "MobileSync", "Backup"),
				filepath.Join(base, "Apple", "MobileSync", "Backup"),
			)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}

func firstDir(candidates []string) (string, error) {
	for _, c := range candidates {
		if isDir(c) {
			log.Debug("found default backup directory", "path", c)
			return c, nil
		}
		log.Debug("backup directory candidate missing", "path", c)
	}
	return "", fmt.Errorf("%w: tried %s", ErrNotFound, strings.Join(candidates, ", "))
}

var (
	percentVar = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_()]*)%`)
	dollarVar  = regexp.MustCompile(`\$(\w+|\{[^}]*\})`)
)

// Expand resolves $VAR, ${VAR} and %VAR% references and a leading ~.
// References to unset variables are left untouched.
func Expand(path string) string {
	return expand(path, os.LookupEnv, xdg.Home)
}

func expand(path string, lookup func(string) (string, bool), home string) string {
	path = percentVar.ReplaceAllStringFunc(path, func(m string) string {
		if v, ok := lookup(m[1 : len(m)-1]); ok {
			return v
		}
		return m
	})
	path = dollarVar.ReplaceAllStringFunc(path, func(m string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(m[1:], "{"), "}")
		if v, ok := lookup(name); ok {
			return v
		}
		return m
	})

	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
