package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDirectories ensures all required directories exist
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Dataset.DataDir,
		filepath.Join(c.Dataset.DataDir, "spill"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// GetDataPath returns the full path for a data file
func (c *Config) GetDataPath(filename string) string {
	return filepath.Join(c.Dataset.DataDir, filename)
}

// GetSpillPath returns the full path for a spilled chunk file
func (c *Config) GetSpillPath(filename string) string {
	return filepath.Join(c.Dataset.DataDir, "spill", filename)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Logging.Level == "info" && c.Logging.Format == "json"
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

// Strategy returns the strategy config for the given key, matching
// case-insensitively. The second return value reports whether it exists.
func (c *ForecastConfig) Strategy(key string) (StrategyConfig, bool) {
	s, ok := c.Strategies[strings.ToLower(key)]
	return s, ok
}

// TierAllowed reports whether the strategy may run on the given volume tier.
func (s *StrategyConfig) TierAllowed(tier string) bool {
	for _, t := range s.AllowedTiers {
		if strings.EqualFold(t, tier) {
			return true
		}
	}
	return false
}

// PresetFor returns the feature preset name for a volume tier, falling
// back to minimal for unknown tiers.
func (c *FeaturesConfig) PresetFor(tier string) string {
	if p, ok := c.TierPresets[strings.ToUpper(tier)]; ok {
		return p
	}
	return "minimal"
}
