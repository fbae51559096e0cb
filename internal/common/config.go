package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Queue       QueueConfig     `toml:"queue"`
	Engine      EngineConfig    `toml:"engine"`
	Generator   GeneratorConfig `toml:"generator"`
	Retry       RetryConfig     `toml:"retry"`
	Logging     LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger    BadgerConfig    `toml:"badger"`
	Artifacts ArtifactsConfig `toml:"artifacts"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// ArtifactsConfig configures the filesystem artifact store
type ArtifactsConfig struct {
	Dir string `toml:"dir"` // Root directory for generated artifacts
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g., "1s" - how often workers poll for messages
	Concurrency       int    `toml:"concurrency"`        // Number of concurrent workers
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g., "2m" - message visibility timeout for redelivery
	MaxReceive        int    `toml:"max_receive"`        // Max times a message can be received before dead-letter
	QueueName         string `toml:"queue_name"`         // Queue name prefix in Badger
	JobTimeout        string `toml:"job_timeout"`        // Wall-clock timeout per job (generation + rendering)
	ReclaimSchedule   string `toml:"reclaim_schedule"`   // Cron schedule for the stale-lease sweep
}

// EngineConfig selects and tunes the rendering engine
type EngineConfig struct {
	Kind              string  `toml:"kind" validate:"oneof=browser static"` // Active engine: "browser" or "static"
	MaxInstances      int     `toml:"max_instances"`                        // Global cap on concurrent browser renders
	RenderTimeout     string  `toml:"render_timeout"`                       // Per-render timeout inside the engine
	SettleTimeout     string  `toml:"settle_timeout"`                       // Fixed delay for async visuals before capture
	WaitForCharts     bool    `toml:"wait_for_charts"`                      // Wait for chart runtime readiness flag
	WaitForFonts      bool    `toml:"wait_for_fonts"`                       // Wait for document.fonts.ready
	NoSandbox         bool    `toml:"no_sandbox"`                           // Disable Chrome sandbox (restricted execution environments only)
	PageSize          string  `toml:"page_size"`                            // "A4" or "Letter"
	MarginInches      float64 `toml:"margin_inches"`                        // Uniform page margin
	HeaderFooter      bool    `toml:"header_footer"`                        // Inject print header/footer
	LaunchesPerSecond float64 `toml:"launches_per_second"`                  // Browser launch throttle
}

// GeneratorConfig carries the policy constants the report generators use.
// Thresholds are configuration, not hard-coded, because the classification
// boundaries are operator policy.
type GeneratorConfig struct {
	TopN                    int     `toml:"top_n"`                      // Executive top-N ranking size
	QuickWinMaxEffortHours  float64 `toml:"quick_win_max_effort_hours"` // Effort at or below: quick win
	StrategicMinEffortHours float64 `toml:"strategic_min_effort_hours"` // Effort above: strategic
	HourlyRate              float64 `toml:"hourly_rate"`                // Implementation cost per effort hour
	SecurityHighWeight      int     `toml:"security_high_weight"`       // Posture score deduction per high finding
	SecurityMediumWeight    int     `toml:"security_medium_weight"`     // Posture score deduction per medium finding
}

type RetryConfig struct {
	MaxAttempts int    `toml:"max_attempts"` // Attempt cap before terminal failure
	BackoffBase string `toml:"backoff_base"` // Base delay, doubles per attempt
	BackoffCap  string `toml:"backoff_cap"`  // Upper bound for the backoff delay
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

// NewDefaultConfig returns the configuration defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/refero",
			},
			Artifacts: ArtifactsConfig{
				Dir: "./data/artifacts",
			},
		},
		Queue: QueueConfig{
			PollInterval:      "1s",
			Concurrency:       4,
			VisibilityTimeout: "2m",
			MaxReceive:        3,
			QueueName:         "reports",
			JobTimeout:        "5m",
			ReclaimSchedule:   "*/1 * * * *",
		},
		Engine: EngineConfig{
			Kind:              "browser",
			MaxInstances:      2,
			RenderTimeout:     "90s",
			SettleTimeout:     "2s",
			WaitForCharts:     true,
			WaitForFonts:      true,
			NoSandbox:         false,
			PageSize:          "A4",
			MarginInches:      0.4,
			HeaderFooter:      true,
			LaunchesPerSecond: 1,
		},
		Generator: GeneratorConfig{
			TopN:                    5,
			QuickWinMaxEffortHours:  40,
			StrategicMinEffortHours: 160,
			HourlyRate:              100,
			SecurityHighWeight:      15,
			SecurityMediumWeight:    5,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BackoffBase: "2s",
			BackoffCap:  "1m",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks structural constraints on the loaded configuration
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Duration fields fail fast at load rather than first use
	for name, val := range map[string]string{
		"queue.poll_interval":      c.Queue.PollInterval,
		"queue.visibility_timeout": c.Queue.VisibilityTimeout,
		"queue.job_timeout":        c.Queue.JobTimeout,
		"engine.render_timeout":    c.Engine.RenderTimeout,
		"engine.settle_timeout":    c.Engine.SettleTimeout,
		"retry.backoff_base":       c.Retry.BackoffBase,
		"retry.backoff_cap":        c.Retry.BackoffCap,
	} {
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("invalid configuration: %s=%q: %w", name, val, err)
		}
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("REFERO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("REFERO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("REFERO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if path := os.Getenv("REFERO_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if dir := os.Getenv("REFERO_ARTIFACTS_DIR"); dir != "" {
		config.Storage.Artifacts.Dir = dir
	}

	if concurrency := os.Getenv("REFERO_QUEUE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.Concurrency = c
		}
	}

	if kind := os.Getenv("REFERO_ENGINE_KIND"); kind != "" {
		config.Engine.Kind = kind
	}
	if sandbox := os.Getenv("REFERO_ENGINE_NO_SANDBOX"); sandbox != "" {
		config.Engine.NoSandbox = sandbox == "true" || sandbox == "1"
	}

	if level := os.Getenv("REFERO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Duration helpers. Values are validated at load, the zero fallback covers
// configs constructed directly in tests.

func (c *QueueConfig) GetPollInterval() time.Duration {
	return parseDurationOr(c.PollInterval, time.Second)
}

func (c *QueueConfig) GetVisibilityTimeout() time.Duration {
	return parseDurationOr(c.VisibilityTimeout, 2*time.Minute)
}

func (c *QueueConfig) GetJobTimeout() time.Duration {
	return parseDurationOr(c.JobTimeout, 5*time.Minute)
}

func (c *EngineConfig) GetRenderTimeout() time.Duration {
	return parseDurationOr(c.RenderTimeout, 90*time.Second)
}

func (c *EngineConfig) GetSettleTimeout() time.Duration {
	return parseDurationOr(c.SettleTimeout, 2*time.Second)
}

func (c *RetryConfig) GetBackoffBase() time.Duration {
	return parseDurationOr(c.BackoffBase, 2*time.Second)
}

func (c *RetryConfig) GetBackoffCap() time.Duration {
	return parseDurationOr(c.BackoffCap, time.Minute)
}

func parseDurationOr(val string, fallback time.Duration) time.Duration {
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}

// IsProduction returns true when running with production settings
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
