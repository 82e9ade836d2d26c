package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type BackendConfig struct {
	BaseURL      string `toml:"base_url"`
	DefaultModel string `toml:"default_model"`
}

type UserConfig struct {
	Backend         BackendConfig `toml:"backend"`
	ReasoningEffort string        `toml:"reasoning_effort,omitempty"`
	WebSearch       bool          `toml:"web_search"`
}

type Config struct {
	DataDirectory   string
	BaseURL         string
	DefaultModel    string
	ReasoningEffort string
	WebSearch       bool
	APIKey          string
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) Model() string {
	return c.DefaultModel
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if base := os.Getenv("ORCHAT_BASE_URL"); base != "" {
		c.BaseURL = base
	}
	if model := os.Getenv("ORCHAT_MODEL"); model != "" {
		c.DefaultModel = model
	}
	if dataDir := os.Getenv("ORCHAT_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if key := os.Getenv("ORCHAT_API_KEY"); key != "" {
		c.APIKey = key
	}
}

func CheckDebug() bool {
	debug := os.Getenv("ORCHAT_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600 - the log may contain request payloads
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (ORCHAT_DEBUG=%s) ===", os.Getenv("ORCHAT_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

func HasAllEnvVars() bool {
	return os.Getenv("ORCHAT_BASE_URL") != "" &&
		os.Getenv("ORCHAT_MODEL") != "" &&
		os.Getenv("ORCHAT_DATA_DIR") != ""
}

func Load() (*Config, error) {
	cfg := &Config{
		DataDirectory: "~/.local/share/orchat",
		BaseURL:       "http://localhost:8080",
		DefaultModel:  "meta-llama/llama-3.2-90b-instruct",
	}

	settingsPath := GetSettingsFilePath()
	settingsExist := FileExists(settingsPath)

	if settingsExist || !HasAllEnvVars() {
		systemCfg, err := LoadSystemConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load system config: %w", err)
		}
		cfg.DataDirectory = systemCfg.DataDirectory

		dataDir := cfg.DataDir()
		userCfg, err := LoadUserConfig(dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
		cfg.BaseURL = userCfg.Backend.BaseURL
		cfg.DefaultModel = userCfg.Backend.DefaultModel
		cfg.ReasoningEffort = userCfg.ReasoningEffort
		cfg.WebSearch = userCfg.WebSearch
	}

	cfg.applyEnvOverrides()

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	if cfg.APIKey == "" {
		key, err := LoadAPIKey(dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load API key: %w", err)
		}
		cfg.APIKey = key
	}

	return cfg, nil
}
