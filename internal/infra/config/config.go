// Package config loads agentdesk runtime configuration.
// Sources, lowest precedence first: built-in defaults, the YAML file named by
// AGENTDESK_CONFIG, a .env file, then the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for agentdesk.
type Config struct {
	// Server
	Host   string `yaml:"host"`    // HOST, default "0.0.0.0"
	Port   int    `yaml:"port"`    // PORT, default 8080
	DBPath string `yaml:"db_path"` // DB_PATH, default "./data/agentdesk.db"

	// LLM
	LLMBaseURL        string `yaml:"llm_api_url"`         // LLM_API_URL, blank uses the provider default endpoint
	LLMAPIKey         string `yaml:"llm_api_key"`         // LLM_API_KEY, no default
	LLMModel          string `yaml:"llm_model"`           // LLM_MODEL, default "gemini-2.5-flash"
	LLMMaxTokens      int    `yaml:"llm_max_tokens"`      // LLM_MAX_TOKENS, default 32768
	LLMThinkingBudget int    `yaml:"llm_thinking_budget"` // LLM_THINKING_BUDGET, default 128

	// Chat
	HistoryWindow int `yaml:"chat_history_window"` // CHAT_HISTORY_WINDOW, default 20

	// Ops
	LogLevel    string   `yaml:"log_level"`            // LOG_LEVEL, default "info"
	CORSOrigins []string `yaml:"cors_allowed_origins"` // CORS_ALLOWED_ORIGINS, comma separated, default none

	// Auth
	JWTSecret string        `yaml:"jwt_secret"` // JWT_SECRET, no default
	JWTExpiry time.Duration `yaml:"-"`          // JWT_EXPIRY, hours, default 24
}

const (
	envKeyConfigFile        = "AGENTDESK_CONFIG"
	envKeyHost              = "HOST"
	envKeyPort              = "PORT"
	envKeyDBPath            = "DB_PATH"
	envKeyLLMBaseURL        = "LLM_API_URL"
	envKeyLLMAPIKey         = "LLM_API_KEY"
	envKeyLLMModel          = "LLM_MODEL"
	envKeyLLMMaxTokens      = "LLM_MAX_TOKENS"
	envKeyLLMThinkingBudget = "LLM_THINKING_BUDGET"
	envKeyHistoryWindow     = "CHAT_HISTORY_WINDOW"
	envKeyLogLevel          = "LOG_LEVEL"
	envKeyCORSOrigins       = "CORS_ALLOWED_ORIGINS"
	envKeyJWTSecret         = "JWT_SECRET"
	envKeyJWTExpiry         = "JWT_EXPIRY"
)

// ErrMissingJWTSecret is returned by Validate when no signing secret is set.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8080,
		DBPath:            "./data/agentdesk.db",
		LLMModel:          "gemini-2.5-flash",
		LLMMaxTokens:      32768,
		LLMThinkingBudget: 128,
		HistoryWindow:     20,
		LogLevel:          "info",
		JWTExpiry:         24 * time.Hour,
	}
}

// Load builds a Config from defaults, the optional YAML file, the optional
// dotenv files and the environment. A missing .env is not an error.
func Load(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		// godotenv never overrides variables already present in the environment.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	cfg := Defaults()
	if path := os.Getenv(envKeyConfigFile); path != "" {
		if err := cfg.mergeYAML(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH cannot be empty")
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("CHAT_HISTORY_WINDOW must be > 0, got %d", c.HistoryWindow)
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// fileConfig mirrors Config for YAML; jwt_expiry is written in hours.
type fileConfig struct {
	Config    `yaml:",inline"`
	JWTExpiry *int `yaml:"jwt_expiry"`
}

func (c *Config) mergeYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	fc := fileConfig{Config: *c}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	expiry := c.JWTExpiry
	*c = fc.Config
	c.JWTExpiry = expiry
	if fc.JWTExpiry != nil && *fc.JWTExpiry > 0 {
		c.JWTExpiry = time.Duration(*fc.JWTExpiry) * time.Hour
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Host = envOr(envKeyHost, c.Host)
	c.DBPath = envOr(envKeyDBPath, c.DBPath)
	c.LLMBaseURL = envOr(envKeyLLMBaseURL, c.LLMBaseURL)
	c.LLMAPIKey = envOr(envKeyLLMAPIKey, c.LLMAPIKey)
	c.LLMModel = envOr(envKeyLLMModel, c.LLMModel)
	c.LogLevel = envOr(envKeyLogLevel, c.LogLevel)
	c.JWTSecret = envOr(envKeyJWTSecret, c.JWTSecret)
	if v := strings.TrimSpace(os.Getenv(envKeyCORSOrigins)); v != "" {
		c.CORSOrigins = splitList(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{envKeyPort, &c.Port},
		{envKeyLLMMaxTokens, &c.LLMMaxTokens},
		{envKeyLLMThinkingBudget, &c.LLMThinkingBudget},
		{envKeyHistoryWindow, &c.HistoryWindow},
	}
	for _, f := range ints {
		v, err := envInt(f.key, *f.dst)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	hours, err := envInt(envKeyJWTExpiry, int(c.JWTExpiry/time.Hour))
	if err != nil {
		return err
	}
	if hours > 0 {
		c.JWTExpiry = time.Duration(hours) * time.Hour
	}
	return nil
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, v)
	}
	return n, nil
}

// splitList splits a comma separated list, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
