// config.go: This file contains the configuration for the Retkikartta
// application. It defines the settings struct and functions to load and save
// the settings.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// MainSettings contains basic application settings.
type MainSettings struct {
	Name string // name of this node, used for identification
	Log  LogConfig
}

// LogConfig defines the configuration for application log files.
type LogConfig struct {
	Enabled    bool   // true to enable file logging
	Path       string // directory for log files
	MaxSize    int    // maximum size in megabytes before rotation
	MaxBackups int    // maximum number of rotated files to keep
	MaxAge     int    // maximum age in days of rotated files
}

// WebServerSettings contains settings for the HTTP server.
type WebServerSettings struct {
	Enabled bool   // true to enable the web server
	Port    string // port for the web server
	Debug   bool   // true to enable debug logging of requests
}

// PlacesSettings contains settings for the places-details API client.
type PlacesSettings struct {
	APIKey            string  // API key for the places API
	BaseURL           string  // base URL of the places API
	PhotoMaxWidth     int     // maxwidth parameter used when building photo URLs
	CacheTTLMinutes   int     // TTL of the in-memory details cache
	RequestsPerSecond float64 // client-side rate limit towards the API
	Debug             bool    // true to enable debug mode
}

// ImageCacheSettings contains settings for the image resolution pipeline.
type ImageCacheSettings struct {
	Debug          bool   // true to enable debug mode
	ExpiryDays     int    // URL cache mapping validity window in days
	PlaceholderURL string // default image served when resolution fails
	EdgeTTLMinutes int    // TTL of the edge response cache
}

// BlobStoreSettings contains settings for durable image storage.
type BlobStoreSettings struct {
	Enabled    bool   // true to persist downloaded image bytes
	Path       string // filesystem root for stored blobs
	PublicBase string // public base path for serving stored blobs
}

// RefreshSettings contains settings for the batch refresh scheduler.
type RefreshSettings struct {
	Enabled       bool // true to run the background refresh loop
	IntervalHours int  // how often to scan for stale thumbnails
	BatchSize     int  // number of locations refreshed per batch
	DelayMs       int  // delay between individual refreshes
	StaleDays     int  // thumbnail age after which a refresh is due
}

// OutputSettings contains database output settings.
type OutputSettings struct {
	SQLite struct {
		Enabled bool   // true to enable SQLite
		Path    string // path to SQLite database file
	}
	MySQL struct {
		Enabled  bool   // true to enable MySQL
		Username string // MySQL username
		Password string // MySQL password
		Database string // MySQL database name
		Host     string // MySQL host
		Port     string // MySQL port
	}
}

// Settings is the root configuration struct.
type Settings struct {
	Debug      bool // true to enable debug mode
	Version    string
	Main       MainSettings
	WebServer  WebServerSettings
	Places     PlacesSettings
	ImageCache ImageCacheSettings
	BlobStore  BlobStoreSettings
	Refresh    RefreshSettings
	Output     OutputSettings
}

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter,
	// defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the
// first default config path.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded
// config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading embedded config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading it if necessary.
func Setting() *Settings {
	settingsMutex.RLock()
	s := settingsInstance
	settingsMutex.RUnlock()
	if s != nil {
		return s
	}
	s, err := Load()
	if err != nil {
		log.Fatalf("Error loading settings: %v", err)
	}
	return s
}

// SetTestSettings installs the given settings instance. Intended for tests.
func SetTestSettings(s *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
}
