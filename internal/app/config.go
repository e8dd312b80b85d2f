package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raysh454/offerlens/internal/history"
	"github.com/raysh454/offerlens/internal/sink"
	"github.com/raysh454/offerlens/internal/webclient"
)

// Config holds runtime configuration. Zero-valued fields fall back to the
// DefaultConfig values when the orchestrator is built.
type Config struct {
	// Listen is the HTTP listen address for the API server.
	Listen string `yaml:"listen"`

	// StorageRoot is where the history database lives. Empty disables
	// persistent history.
	StorageRoot string `yaml:"storage_root"`

	LogLevel string `yaml:"log_level"`

	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`
	CacheSize  int           `yaml:"cache_size"`

	// JobRetentionTime is how long finished jobs stay listed.
	JobRetentionTime time.Duration `yaml:"job_retention"`

	WebClient webclient.Config `yaml:"webclient"`
	Sources   SourcesConfig    `yaml:"sources"`
	Kafka     KafkaConfig      `yaml:"kafka"`
	Redis     RedisConfig      `yaml:"redis"`
}

// SourcesConfig points live networks at their product-data endpoints.
// A network with an empty base URL uses synthetic product data.
type SourcesConfig struct {
	ClickBankAPI string `yaml:"clickbank_api"`
	APIKey       string `yaml:"api_key"`

	AmazonBase string `yaml:"amazon_base"`

	// AmazonBackend overrides the webclient backend for product pages,
	// e.g. "chromedp" for pages that need JavaScript.
	AmazonBackend webclient.Backend `yaml:"amazon_backend"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	ResultTopic string   `yaml:"result_topic"`
	ErrorTopic  string   `yaml:"error_topic"`
}

type RedisConfig struct {
	URL string `yaml:"url"`

	sink.RedisConfig `yaml:",inline"`
}

const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = time.Second
)

// DefaultConfig returns a Config populated with local development defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:           "localhost:8080",
		StorageRoot:      "~/.config/offerlens",
		LogLevel:         "info",
		BatchSize:        DefaultBatchSize,
		BatchDelay:       DefaultBatchDelay,
		CacheSize:        history.DefaultCacheSize,
		JobRetentionTime: 30 * time.Minute,
		WebClient:        webclient.DefaultConfig(),
		Kafka: KafkaConfig{
			ResultTopic: sink.DefaultResultTopic,
			ErrorTopic:  sink.DefaultErrorTopic,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig. An empty path returns the
// defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

var ErrInvalidConfig = errors.New("invalid config")

// Validate rejects values that cannot be defaulted sensibly.
func (c *Config) Validate() error {
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: batch_size must not be negative", ErrInvalidConfig)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("%w: batch_delay must not be negative", ErrInvalidConfig)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("%w: cache_size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// HistoryPath is the SQLite file under StorageRoot, with a leading ~
// expanded. It is empty when StorageRoot is.
func (c *Config) HistoryPath() (string, error) {
	root := strings.TrimSpace(c.StorageRoot)
	if root == "" {
		return "", nil
	}
	if root == "~" || strings.HasPrefix(root, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		root = filepath.Join(home, strings.TrimPrefix(root, "~"))
	}
	return filepath.Join(root, "history.db"), nil
}

func (c *Config) batchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

func (c *Config) cacheSize() int {
	if c.CacheSize <= 0 {
		return history.DefaultCacheSize
	}
	return c.CacheSize
}
