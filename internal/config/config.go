package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/chew-z/llm-nodes/internal/chat"
	"github.com/chew-z/llm-nodes/internal/nodes"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	ModelID        string        `mapstructure:"model_id"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Timeout        time.Duration `mapstructure:"timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	Debug          bool          `mapstructure:"debug"`
	Verbose        bool          `mapstructure:"verbose"` // Enable terminal output (default: quiet, logs to file only)
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		APIKey:         "",
		BaseURL:        nodes.DefaultBaseURL,
		ModelID:        nodes.DefaultModelID,
		Host:           "127.0.0.1",
		Port:           8189,
		Timeout:        chat.DefaultTimeout,
		AllowedOrigins: []string{},
	}
}

// Load loads configuration with precedence: ENV vars > config file > defaults.
// A .env file in the working directory is loaded into the environment first;
// variables already set are not overridden.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	defaultCfg := DefaultConfig()
	v.SetDefault("api_key", defaultCfg.APIKey)
	v.SetDefault("base_url", defaultCfg.BaseURL)
	v.SetDefault("model_id", defaultCfg.ModelID)
	v.SetDefault("host", defaultCfg.Host)
	v.SetDefault("port", defaultCfg.Port)
	v.SetDefault("timeout", defaultCfg.Timeout)
	v.SetDefault("allowed_origins", defaultCfg.AllowedOrigins)
	v.SetDefault("debug", defaultCfg.Debug)

	v.SetConfigName("config")
	v.SetConfigType("json")

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("XZ")
	v.AutomaticEnv()

	_ = v.BindEnv("api_key", "XZ_API_KEY")
	_ = v.BindEnv("base_url", "XZ_BASE_URL")
	_ = v.BindEnv("model_id", "XZ_MODEL_ID")
	_ = v.BindEnv("host", "XZ_HOST")
	_ = v.BindEnv("port", "XZ_PORT")
	_ = v.BindEnv("timeout", "XZ_TIMEOUT")
	_ = v.BindEnv("allowed_origins", "XZ_ALLOWED_ORIGINS")
	_ = v.BindEnv("debug", "XZ_DEBUG")

	// Missing config file is fine: defaults and env vars still apply
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if apiKey := getAPIKeyFromEnv(); apiKey != "" {
		cfg.APIKey = apiKey
	}

	return &cfg, nil
}

// Save saves the configuration to file
func Save(cfg *Config) error {
	configDir, err := getConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(configDir)

	v.Set("api_key", cfg.APIKey)
	v.Set("base_url", cfg.BaseURL)
	v.Set("model_id", cfg.ModelID)
	v.Set("host", cfg.Host)
	v.Set("port", cfg.Port)
	v.Set("timeout", cfg.Timeout.String())
	v.Set("allowed_origins", cfg.AllowedOrigins)
	v.Set("debug", cfg.Debug)

	configPath := filepath.Join(configDir, "config.json")
	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path (XDG-compliant)
func getConfigDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "llm-nodes"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "llm-nodes"), nil
}

// getAPIKeyFromEnv checks multiple environment variable names for API key
func getAPIKeyFromEnv() string {
	envVars := []string{
		"XZ_API_KEY",
		"OPENAI_API_KEY",
	}

	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			return value
		}
	}

	return ""
}
