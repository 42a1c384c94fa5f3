package cmd

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/chew-z/llm-nodes/internal/config"
	"github.com/spf13/cobra"
)

const validKeysList = "api_key, base_url, model_id, host, port, timeout, allowed_origins"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage configuration settings for llm-nodes.`,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Set a configuration value. Supported keys:
- api_key: API key sent as a Bearer token
- base_url: Chat completions base URL (default: https://api.openai.com/v1)
- model_id: Default model (default: gpt-4o-mini)
- host: Host to bind the node server to (default: 127.0.0.1)
- port: Port to listen on (default: 8189)
- timeout: Per-request timeout, e.g. 120s
- allowed_origins: Comma-separated CORS origins, * for any (default: none, CORS disabled)`,
	Args: cobra.ExactArgs(2),
	Run:  runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Long: `Get a configuration value. Supported keys:
- api_key (masked)
- base_url
- model_id
- host
- port
- timeout
- allowed_origins`,
	Args: cobra.ExactArgs(1),
	Run:  runConfigGet,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
}

// setConfigValue applies value to key on cfg.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "api_key":
		cfg.APIKey = value
	case "base_url":
		cfg.BaseURL = value
	case "model_id":
		cfg.ModelID = value
	case "host":
		cfg.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port value: %s. Must be an integer", value)
		}
		cfg.Port = port
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid timeout value: %s. Must be a positive duration like 120s", value)
		}
		cfg.Timeout = d
	case "allowed_origins":
		var origins []string
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.AllowedOrigins = origins
	default:
		return fmt.Errorf("invalid key: %s. Valid keys are: %s", key, validKeysList)
	}
	return nil
}

// getConfigValue returns the display value of key; api_key is masked.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "api_key":
		if cfg.APIKey != "" {
			return "********", nil
		}
		return "", nil
	case "base_url":
		return cfg.BaseURL, nil
	case "model_id":
		return cfg.ModelID, nil
	case "host":
		return cfg.Host, nil
	case "port":
		if cfg.Port != 0 {
			return strconv.Itoa(cfg.Port), nil
		}
		return "", nil
	case "timeout":
		if cfg.Timeout != 0 {
			return cfg.Timeout.String(), nil
		}
		return "", nil
	case "allowed_origins":
		return strings.Join(cfg.AllowedOrigins, ","), nil
	default:
		return "", fmt.Errorf("invalid key: %s. Valid keys are: %s", key, validKeysList)
	}
}

func runConfigSet(cmd *cobra.Command, args []string) {
	key := args[0]
	value := args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := setConfigValue(cfg, key, value); err != nil {
		log.Fatal(err)
	}

	if err := config.Save(cfg); err != nil {
		log.Fatalf("Failed to save configuration: %v", err)
	}

	fmt.Printf("Configuration updated: %s = %s\n", key, maskIfAPIKey(key, value))
}

func runConfigGet(cmd *cobra.Command, args []string) {
	key := args[0]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	value, err := getConfigValue(cfg, key)
	if err != nil {
		log.Fatal(err)
	}

	if value == "" {
		fmt.Printf("%s is not set\n", key)
	} else {
		fmt.Printf("%s = %s\n", key, value)
	}
}

func maskIfAPIKey(key, value string) string {
	if key == "api_key" && value != "" {
		return "********"
	}
	return value
}
