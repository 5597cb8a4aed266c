package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	Quality  QualityConfig  `mapstructure:"quality"`
	Cluster  ClusterConfig  `mapstructure:"cluster"`
	Anomaly  AnomalyConfig  `mapstructure:"anomaly"`
	Features FeaturesConfig `mapstructure:"features"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host     string `mapstructure:"host"`      // Bind address (e.g., 0.0.0.0 for all interfaces)
	HTTPPort int    `mapstructure:"http_port"` // HTTP server port
}

// DatasetConfig controls dataset loading and the out-of-core spill cache
type DatasetConfig struct {
	DataDir       string `mapstructure:"data_dir"`         // Working directory for spilled chunks
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"` // Reject source files above this size
	SampleRows    int    `mapstructure:"sample_rows"`      // Rows sampled for schema detection
	SpillEnabled  bool   `mapstructure:"spill_enabled"`    // Spill item partitions to compressed disk cache
}

// SchemaConfig controls column role detection
type SchemaConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"` // Minimum score to auto-map a role
}

// QualityConfig controls data health scoring and default repair policies
type QualityConfig struct {
	OutlierZThreshold  float64 `mapstructure:"outlier_z_threshold"`  // Z threshold for outlier counting
	MinPointsPerItem   float64 `mapstructure:"min_points_per_item"`  // Average points per item below which coverage is flagged
	CoverageGoodPoints float64 `mapstructure:"coverage_good_points"` // Average points per item at or above which coverage grades good
	CoverageWarnPoints float64 `mapstructure:"coverage_warn_points"` // At or above grades warning; below grades critical
	MissingPolicy      string  `mapstructure:"missing_policy"`       // fill_forward, zero, mean, drop_row
	DuplicatePolicy    string  `mapstructure:"duplicate_policy"`     // sum, average, take_first
	NegativePolicy     string  `mapstructure:"negative_policy"`      // zero, absolute
	OutlierPolicy      string  `mapstructure:"outlier_policy"`       // remove, cap
}

// ClusterConfig controls ABC tiering and pattern classification
type ClusterConfig struct {
	ClassACumulative float64 `mapstructure:"class_a_cumulative"` // Cumulative volume percent covered by tier A
	ClassBCumulative float64 `mapstructure:"class_b_cumulative"` // Cumulative volume percent covered by tiers A+B
	SeasonalQ4       float64 `mapstructure:"seasonal_q4"`        // Q4 concentration at or above which an item is seasonal
	ErraticCV        float64 `mapstructure:"erratic_cv"`         // CV at or above which an item is erratic
	VariableCV       float64 `mapstructure:"variable_cv"`        // CV at or above which an item is variable
}

// AnomalyConfig controls the anomaly detectors
type AnomalyConfig struct {
	Detectors       []string `mapstructure:"detectors"`        // Detector registry names to run
	IQRMultiplier   float64  `mapstructure:"iqr_multiplier"`   // k in Q1-k*IQR / Q3+k*IQR bounds
	ZScoreThreshold float64  `mapstructure:"zscore_threshold"` // Standard deviations for global z-score
	RollingWindow   int      `mapstructure:"rolling_window"`   // Window size for rolling detector
	MinDataPoints   int      `mapstructure:"min_data_points"`  // Minimum points before detection runs
	ZeroRunLength   int      `mapstructure:"zero_run_length"`  // Consecutive zeros that form a zero-run anomaly
}

// FeaturesConfig controls feature engineering presets
type FeaturesConfig struct {
	TierPresets map[string]string `mapstructure:"tier_presets"` // Volume tier -> preset name (full, medium, minimal)
}

// StrategyConfig describes one forecasting strategy
type StrategyConfig struct {
	Name            string        `mapstructure:"name"`              // Display name (e.g., "Simple & Fast")
	Models          []string      `mapstructure:"models"`            // Forecaster registry names to try
	AllowedTiers    []string      `mapstructure:"allowed_tiers"`     // Volume tiers the strategy may run on
	PerItemEstimate time.Duration `mapstructure:"per_item_estimate"` // Rough wall-clock cost per item
}

// ForecastConfig controls the forecast factory
type ForecastConfig struct {
	DefaultHorizon   int                       `mapstructure:"default_horizon"`   // Periods ahead when request omits horizon
	HoldoutRatio     float64                   `mapstructure:"holdout_ratio"`     // Fraction of history held out for validation
	MinHoldout       int                       `mapstructure:"min_holdout"`       // Minimum held-out points for out-of-sample metrics
	GoodMAPE         float64                   `mapstructure:"good_mape"`         // MAPE below this is status good
	ReviewMAPE       float64                   `mapstructure:"review_mape"`       // MAPE at or above this is status review
	Confidence       float64                   `mapstructure:"confidence"`        // Confidence level for prediction intervals
	MinDataPoints    int                       `mapstructure:"min_data_points"`   // Minimum history before fitting
	ComparisonSample int                       `mapstructure:"comparison_sample"` // Items sampled in model comparison mode
	Strategies       map[string]StrategyConfig `mapstructure:"strategies"`
}

// PipelineConfig controls chunking and parallelism
type PipelineConfig struct {
	ChunkSize        int `mapstructure:"chunk_size"`          // Items per chunk for chunked iteration
	MaxItemsInMemory int `mapstructure:"max_items_in_memory"` // Upper bound on simultaneously resident items
	Workers          int `mapstructure:"workers"`             // Parallel chunk workers
	MaxAnomalyPasses int `mapstructure:"max_anomaly_passes"`  // Bound on the detect/correct/re-detect loop
}

// QueueConfig represents the progress event bus configuration
type QueueConfig struct {
	Type     string `mapstructure:"type"`     // Queue type: memory (default), nats, redis, kafka
	URL      string `mapstructure:"url"`      // Queue server URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Username string `mapstructure:"username"` // Optional authentication
	Password string `mapstructure:"password"` // Optional authentication

	// Redis-specific options
	RedisDB       int    `mapstructure:"redis_db"`       // Redis database number (default: 0)
	RedisStream   string `mapstructure:"redis_stream"`   // Redis stream prefix (default: "stocksight")
	RedisGroup    string `mapstructure:"redis_group"`    // Redis consumer group (default: "stocksight-group")
	RedisConsumer string `mapstructure:"redis_consumer"` // Redis consumer name (default: hostname)

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"`  // Kafka broker addresses
	KafkaGroupID string   `mapstructure:"kafka_group_id"` // Kafka consumer group ID
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, etc
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Dataset.Validate(); err != nil {
		return fmt.Errorf("dataset config: %w", err)
	}

	if err := c.Schema.Validate(); err != nil {
		return fmt.Errorf("schema config: %w", err)
	}

	if err := c.Cluster.Validate(); err != nil {
		return fmt.Errorf("cluster config: %w", err)
	}

	if err := c.Anomaly.Validate(); err != nil {
		return fmt.Errorf("anomaly config: %w", err)
	}

	if err := c.Forecast.Validate(); err != nil {
		return fmt.Errorf("forecast config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}
	return nil
}

// Validate validates dataset configuration
func (c *DatasetConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max_file_size_mb must be positive")
	}

	if c.SampleRows < 1 {
		return fmt.Errorf("sample_rows must be at least 1")
	}

	return nil
}

// Validate validates schema configuration
func (c *SchemaConfig) Validate() error {
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in (0, 1], got %v", c.ConfidenceThreshold)
	}
	return nil
}

// Validate validates cluster configuration
func (c *ClusterConfig) Validate() error {
	if c.ClassACumulative <= 0 || c.ClassACumulative >= 100 {
		return fmt.Errorf("class_a_cumulative must be in (0, 100), got %v", c.ClassACumulative)
	}

	if c.ClassBCumulative <= c.ClassACumulative || c.ClassBCumulative > 100 {
		return fmt.Errorf("class_b_cumulative must be in (class_a_cumulative, 100], got %v", c.ClassBCumulative)
	}

	if c.ErraticCV <= c.VariableCV {
		return fmt.Errorf("erratic_cv must exceed variable_cv")
	}

	return nil
}

// Validate validates anomaly configuration
func (c *AnomalyConfig) Validate() error {
	if c.IQRMultiplier <= 0 {
		return fmt.Errorf("iqr_multiplier must be positive")
	}

	if c.ZScoreThreshold <= 0 {
		return fmt.Errorf("zscore_threshold must be positive")
	}

	if c.RollingWindow < 2 {
		return fmt.Errorf("rolling_window must be at least 2")
	}

	return nil
}

// Validate validates forecast configuration
func (c *ForecastConfig) Validate() error {
	if c.GoodMAPE <= 0 || c.ReviewMAPE <= c.GoodMAPE {
		return fmt.Errorf("review_mape must exceed good_mape and both must be positive")
	}

	if c.HoldoutRatio < 0 || c.HoldoutRatio >= 1 {
		return fmt.Errorf("holdout_ratio must be in [0, 1), got %v", c.HoldoutRatio)
	}

	if c.DefaultHorizon < 1 {
		return fmt.Errorf("default_horizon must be at least 1")
	}

	for key, s := range c.Strategies {
		if len(s.Models) == 0 {
			return fmt.Errorf("strategy %q has no models", key)
		}
		if len(s.AllowedTiers) == 0 {
			return fmt.Errorf("strategy %q allows no tiers", key)
		}
	}

	return nil
}

// Validate validates pipeline configuration
func (c *PipelineConfig) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be at least 1")
	}

	if c.MaxItemsInMemory < c.ChunkSize {
		return fmt.Errorf("max_items_in_memory (%d) cannot be below chunk_size (%d)", c.MaxItemsInMemory, c.ChunkSize)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	if c.MaxAnomalyPasses < 1 {
		return fmt.Errorf("max_anomaly_passes must be at least 1")
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
		"pretty":  true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be one of: json, console, pretty")
	}

	return nil
}
