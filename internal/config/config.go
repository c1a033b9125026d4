// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Default policy thresholds for the suitability classifier.
const (
	DefaultMinQualityScore = 6.0
	DefaultMinCodeLines    = 10
	DefaultMaxCodeLines    = 1000
)

// DefaultAllowedLicenses is the license allow-list for learning use. A file
// whose repository has no license information at all is also allowed.
var DefaultAllowedLicenses = []string{
	"MIT License",
	"Apache License 2.0",
	"BSD License",
	"GNU General Public License v3.0",
	"GNU Lesser General Public License v3.0",
}

// Config holds all configuration for the application.
type Config struct {
	LogLevel        string  `mapstructure:"LOG_LEVEL"`
	DataDir         string  `mapstructure:"DATA_DIR"`
	DBBackend       string  `mapstructure:"DB_BACKEND"`
	DBURL           string  `mapstructure:"DB_URL"`
	GithubToken     string  `mapstructure:"GITHUB_TOKEN"`
	HTTPAddr        string  `mapstructure:"HTTP_ADDR"`
	MinQualityScore float64 `mapstructure:"MIN_QUALITY_SCORE"`
	MinCodeLines    int     `mapstructure:"MIN_CODE_LINES"`
	MaxCodeLines    int     `mapstructure:"MAX_CODE_LINES"`
	ConflictPolicy  string  `mapstructure:"CONFLICT_POLICY"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DATA_DIR", "collected_code")
	viper.SetDefault("DB_BACKEND", "sqlite")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("MIN_QUALITY_SCORE", DefaultMinQualityScore)
	viper.SetDefault("MIN_CODE_LINES", DefaultMinCodeLines)
	viper.SetDefault("MAX_CODE_LINES", DefaultMaxCodeLines)
	viper.SetDefault("CONFLICT_POLICY", "keep")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DBBackend {
	case "sqlite":
	case "postgres":
		if c.DBURL == "" {
			return errors.New("DB_URL is required when DB_BACKEND is postgres")
		}
	default:
		return fmt.Errorf("DB_BACKEND must be sqlite or postgres, got %q", c.DBBackend)
	}
	if c.MinQualityScore < 0 || c.MinQualityScore > 10 {
		return fmt.Errorf("MIN_QUALITY_SCORE must be within [0,10], got %v", c.MinQualityScore)
	}
	if c.MinCodeLines < 0 || c.MinCodeLines > c.MaxCodeLines {
		return fmt.Errorf("MIN_CODE_LINES/MAX_CODE_LINES bounds are invalid: [%d,%d]", c.MinCodeLines, c.MaxCodeLines)
	}
	switch c.ConflictPolicy {
	case "keep", "overwrite":
	default:
		return fmt.Errorf("CONFLICT_POLICY must be keep or overwrite, got %q", c.ConflictPolicy)
	}
	return nil
}

// MetadataFile is the path of the JSON metadata log inside the data directory.
func (c *Config) MetadataFile() string {
	return filepath.Join(c.DataDir, "metadata.json")
}

// DBFile is the path of the sqlite database file inside the data directory.
// It is meaningless for the postgres backend.
func (c *Config) DBFile() string {
	return filepath.Join(c.DataDir, "code_database.db")
}
