package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")               // Current directory
		v.AddConfigPath("./configs")       // Project configs directory
		v.AddConfigPath("./config")        // Alternative config directory
		v.AddConfigPath("/etc/stocksight") // System-wide config
	}

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides
	v.SetEnvPrefix("STOCKSIGHT")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 5555)

	// Dataset defaults
	v.SetDefault("dataset.data_dir", "./data")
	v.SetDefault("dataset.max_file_size_mb", 500)
	v.SetDefault("dataset.sample_rows", 1000)
	v.SetDefault("dataset.spill_enabled", true)

	// Schema defaults
	v.SetDefault("schema.confidence_threshold", 0.5)

	// Quality defaults
	v.SetDefault("quality.outlier_z_threshold", 3.0)
	v.SetDefault("quality.min_points_per_item", 30)
	v.SetDefault("quality.coverage_good_points", 12)
	v.SetDefault("quality.coverage_warn_points", 7)
	v.SetDefault("quality.missing_policy", "fill_forward")
	v.SetDefault("quality.duplicate_policy", "sum")
	v.SetDefault("quality.negative_policy", "zero")
	v.SetDefault("quality.outlier_policy", "cap")

	// Cluster defaults
	v.SetDefault("cluster.class_a_cumulative", 80.0)
	v.SetDefault("cluster.class_b_cumulative", 95.0)
	v.SetDefault("cluster.seasonal_q4", 0.45)
	v.SetDefault("cluster.erratic_cv", 1.0)
	v.SetDefault("cluster.variable_cv", 0.5)

	// Anomaly defaults
	v.SetDefault("anomaly.detectors", []string{"iqr", "zscore", "rolling"})
	v.SetDefault("anomaly.iqr_multiplier", 1.5)
	v.SetDefault("anomaly.zscore_threshold", 3.0)
	v.SetDefault("anomaly.rolling_window", 7)
	v.SetDefault("anomaly.min_data_points", 10)
	v.SetDefault("anomaly.zero_run_length", 7)

	// Features defaults
	v.SetDefault("features.tier_presets", map[string]string{
		"A": "full",
		"B": "medium",
		"C": "minimal",
	})

	// Forecast defaults
	v.SetDefault("forecast.default_horizon", 12)
	v.SetDefault("forecast.holdout_ratio", 0.2)
	v.SetDefault("forecast.min_holdout", 4)
	v.SetDefault("forecast.good_mape", 20.0)
	v.SetDefault("forecast.review_mape", 50.0)
	v.SetDefault("forecast.confidence", 0.95)
	v.SetDefault("forecast.min_data_points", 8)
	v.SetDefault("forecast.comparison_sample", 20)

	// Pipeline defaults
	v.SetDefault("pipeline.chunk_size", 200)
	v.SetDefault("pipeline.max_items_in_memory", 2000)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.max_anomaly_passes", 5)

	// Queue defaults
	v.SetDefault("queue.type", "memory")
	v.SetDefault("queue.url", "nats://localhost:4222")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Forecast.Strategies == nil {
		cfg.Forecast.Strategies = DefaultStrategies()
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		// Return default configuration
		return DefaultConfig()
	}
	return cfg
}

// DefaultStrategies returns the built-in forecasting strategy catalog
func DefaultStrategies() map[string]StrategyConfig {
	return map[string]StrategyConfig{
		"simple": {
			Name:            "Simple & Fast",
			Models:          []string{"naive", "seasonal_naive", "sma"},
			AllowedTiers:    []string{"A", "B", "C"},
			PerItemEstimate: 5 * time.Millisecond,
		},
		"balanced": {
			Name:            "Smart & Balanced",
			Models:          []string{"exponential", "linear", "sma"},
			AllowedTiers:    []string{"A", "B", "C"},
			PerItemEstimate: 20 * time.Millisecond,
		},
		"advanced": {
			Name:            "Advanced AI",
			Models:          []string{"holt_winters", "exponential", "linear"},
			AllowedTiers:    []string{"A"},
			PerItemEstimate: 100 * time.Millisecond,
		},
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			HTTPPort: 5555,
		},
		Dataset: DatasetConfig{
			DataDir:       "./data",
			MaxFileSizeMB: 500,
			SampleRows:    1000,
			SpillEnabled:  true,
		},
		Schema: SchemaConfig{
			ConfidenceThreshold: 0.5,
		},
		Quality: QualityConfig{
			OutlierZThreshold:  3.0,
			MinPointsPerItem:   30,
			CoverageGoodPoints: 12,
			CoverageWarnPoints: 7,
			MissingPolicy:      "fill_forward",
			DuplicatePolicy:    "sum",
			NegativePolicy:     "zero",
			OutlierPolicy:      "cap",
		},
		Cluster: ClusterConfig{
			ClassACumulative: 80.0,
			ClassBCumulative: 95.0,
			SeasonalQ4:       0.45,
			ErraticCV:        1.0,
			VariableCV:       0.5,
		},
		Anomaly: AnomalyConfig{
			Detectors:       []string{"iqr", "zscore", "rolling"},
			IQRMultiplier:   1.5,
			ZScoreThreshold: 3.0,
			RollingWindow:   7,
			MinDataPoints:   10,
			ZeroRunLength:   7,
		},
		Features: FeaturesConfig{
			TierPresets: map[string]string{
				"A": "full",
				"B": "medium",
				"C": "minimal",
			},
		},
		Forecast: ForecastConfig{
			DefaultHorizon:   12,
			HoldoutRatio:     0.2,
			MinHoldout:       4,
			GoodMAPE:         20.0,
			ReviewMAPE:       50.0,
			Confidence:       0.95,
			MinDataPoints:    8,
			ComparisonSample: 20,
			Strategies:       DefaultStrategies(),
		},
		Pipeline: PipelineConfig{
			ChunkSize:        200,
			MaxItemsInMemory: 2000,
			Workers:          4,
			MaxAnomalyPasses: 5,
		},
		Queue: QueueConfig{
			Type: "memory",
			URL:  "nats://localhost:4222",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
