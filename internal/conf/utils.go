// conf/utils.go various util functions for configuration package
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// OS name constants for runtime.GOOS comparisons.
const (
	osLinux   = "linux"
	osWindows = "windows"
)

// GetDefaultConfigPaths returns a list of default configuration paths for the
// current operating system, based on standard conventions for storing
// application configuration files.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("error fetching executable path: %w", err)
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	switch runtime.GOOS {
	case osWindows:
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "retkikartta"),
		}
	case osLinux:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "retkikartta"),
			"/etc/retkikartta",
			exeDir,
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "retkikartta"),
			exeDir,
		}
	}

	return configPaths, nil
}

// GetBasePath expands a possibly relative directory to an absolute path and
// ensures the directory exists.
func GetBasePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	basePath := filepath.Join(".", path)
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		absPath = basePath
	}

	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return basePath
	}
	return absPath
}
