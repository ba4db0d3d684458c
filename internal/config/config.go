package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// APIConfig points the client at the assessment API
type APIConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// AuthConfig tunes the session refresh cycle
type AuthConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"` // Unconditional refresh period
	RefreshSkew     time.Duration `yaml:"refresh_skew" json:"refresh_skew"`         // Refresh this long before a JWT exp
	RetryDelay      time.Duration `yaml:"retry_delay" json:"retry_delay"`           // Re-arm delay after a network failure
}

// TestsConfig tunes the test-taking screen
type TestsConfig struct {
	AutoSubmit   bool          `yaml:"auto_submit" json:"auto_submit"`       // Submit once the countdown reaches zero
	LockOnExpiry bool          `yaml:"lock_on_expiry" json:"lock_on_expiry"` // Reject answer edits after expiry
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// StorageConfig locates the local token store
type StorageConfig struct {
	Path    string `yaml:"path" json:"path"`
	Encrypt bool   `yaml:"encrypt" json:"encrypt"`
}

// GateConfig configures the routing gate server
type GateConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Upstream string `yaml:"upstream" json:"upstream"` // Web frontend the gate proxies to
}

// Config holds user preferences
type Config struct {
	API     APIConfig     `yaml:"api" json:"api"`
	Auth    AuthConfig    `yaml:"auth" json:"auth"`
	Tests   TestsConfig   `yaml:"tests" json:"tests"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Gate    GateConfig    `yaml:"gate" json:"gate"`

	// Logging configuration
	LogLevel   string `yaml:"log_level" json:"log_level"`     // Log level: DEBUG, INFO, WARN, ERROR
	LogFile    string `yaml:"log_file" json:"log_file"`       // Path to log file
	LogConsole bool   `yaml:"log_console" json:"log_console"` // Enable console logging
}

// Dir returns the quizdesk state directory (~/.quizdesk unless QUIZDESK_HOME is set)
func Dir() (string, error) {
	if dir := os.Getenv("QUIZDESK_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".quizdesk"), nil
}

// DefaultConfig returns default settings
func DefaultConfig() *Config {
	dir, _ := Dir()
	logPath := ""
	storePath := "quizdesk.db"
	if dir != "" {
		logPath = filepath.Join(dir, "logs", "quizdesk.log")
		storePath = filepath.Join(dir, "state.db")
	}

	return &Config{
		API: APIConfig{
			BaseURL: getEnv("QUIZDESK_API_BASE_URL", "http://localhost:3001"),
			Timeout: getEnvDuration("QUIZDESK_API_TIMEOUT", 30*time.Second),
		},
		Auth: AuthConfig{
			RefreshInterval: getEnvDuration("QUIZDESK_REFRESH_INTERVAL", time.Hour),
			RefreshSkew:     30 * time.Second,
			RetryDelay:      time.Minute,
		},
		Tests: TestsConfig{
			AutoSubmit:   getEnvBool("QUIZDESK_AUTO_SUBMIT", false),
			LockOnExpiry: false,
			PollInterval: 5 * time.Second,
		},
		Storage: StorageConfig{
			Path:    getEnv("QUIZDESK_STORE", storePath),
			Encrypt: getEnvBool("QUIZDESK_STORE_ENCRYPT", false),
		},
		Gate: GateConfig{
			Addr:     getEnv("QUIZDESK_GATE_ADDR", ":8080"),
			Upstream: getEnv("QUIZDESK_GATE_UPSTREAM", "http://localhost:3000"),
		},
		LogLevel:   getEnv("QUIZDESK_LOG_LEVEL", "INFO"),
		LogFile:    getEnv("QUIZDESK_LOG_FILE", logPath),
		LogConsole: getEnvBool("QUIZDESK_LOG_CONSOLE", false),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// Path returns the location of config.yaml
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads config from ~/.quizdesk/config.yaml
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads config from path, falling back to defaults if it does not exist
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that required fields are usable
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0")
	}
	if c.Auth.RefreshInterval <= 0 {
		return fmt.Errorf("auth.refresh_interval must be > 0")
	}
	if c.Auth.RefreshSkew < 0 {
		return fmt.Errorf("auth.refresh_skew must be >= 0")
	}
	if c.Tests.PollInterval <= 0 {
		return fmt.Errorf("tests.poll_interval must be > 0")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path cannot be empty")
	}
	return nil
}

// Save saves config to ~/.quizdesk/config.yaml
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config as YAML to path
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
