package configuration

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/famworld/famagent/internal/file"
)

var defaultConfig = Config{
	APIKey:         "API_KEY",
	APIHost:        "https://api.us-west-2.modal.direct/v1",
	Model:          "zai-org/GLM-5-FP8",
	RequestTimeout: 60,
	Database:       "~/.config/famagent/famagent.db",

	Persist: &PersistConfig{
		DebounceMilliseconds: 800,
		ThumbnailMaxWidth:    96,
		ThumbnailQuality:     40,
	},
}

// Config holds configuration for the famagent tool.
type Config struct {
	APIKey         string `json:"api_key"`
	APIHost        string `json:"api_host"`
	Model          string `json:"model"`
	RequestTimeout int    `json:"request_timeout"`
	// Path of the sqlite database backing local storage.
	Database string `json:"database"`

	Persist *PersistConfig `json:"persist"`
}

// PersistConfig holds configuration for the sanitize-and-persist pass.
type PersistConfig struct {
	// How long after the last mutation we wait before persisting.
	DebounceMilliseconds int `json:"debounce_milliseconds"`
	// Bounded pixel width of stored image thumbnails.
	ThumbnailMaxWidth int `json:"thumbnail_max_width"`
	// JPEG quality of stored image thumbnails.
	ThumbnailQuality int `json:"thumbnail_quality"`
}

// Parse a configuration file.
func Parse(path string) (*Config, error) {
	path, err := file.ExpandPath(path)
	if err != nil {
		return nil, errors.Wrap(err, "expanding path")
	}

	if err := initializeIfNotPresent(path); err != nil {
		return nil, errors.Wrap(err, "initializing configuration")
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}

	config := &Config{}
	if err = json.Unmarshal(bytes, config); err != nil {
		return nil, errors.Wrap(err, "unmarshaling into config")
	}
	if config.Persist == nil {
		config.Persist = defaultConfig.Persist
	}

	expandedDatabasePath, err := file.ExpandPath(config.Database)
	if err != nil {
		return nil, errors.Wrap(err, "expanding database path")
	}
	config.Database = expandedDatabasePath
	return config, nil
}

// save a configuration file.
func (c *Config) save(path string) error {
	bytes, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}

	err = os.WriteFile(path, bytes, 0644)
	if err != nil {
		return errors.Wrap(err, "writing file")
	}

	return nil
}

// initializeIfNotPresent initializes a config if it does not exist.
func initializeIfNotPresent(path string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	// Create the directories.
	dir, _ := filepath.Split(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "creating folders")
	}

	if err := defaultConfig.save(path); err != nil {
		return errors.Wrap(err, "saving default config")
	}
	return nil
}
