// Package config provides application configuration for the PDF translator.
// Values come from a JSON file, with PDFTRANS_* environment variables taking
// precedence and built-in defaults filling anything left unset.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "pdf-translator-config.json"
	// EnvPrefix prefixes every environment override, e.g. PDFTRANS_MODEL
	EnvPrefix = "PDFTRANS"
	// DefaultEndpointURL is the chat completions endpoint
	DefaultEndpointURL = "https://api.openai.com/v1/chat/completions"
	// DefaultModel is the model every translation request names
	DefaultModel = "gpt-4o-mini-2024-07-18"
	// DefaultFontPath is the TTF used to render translated documents
	DefaultFontPath = "./fonts/LiberationSans-Regular.ttf"
	// DefaultSettingsFileName is the key-value store the GUI writes to
	DefaultSettingsFileName = "storeTradFile.json"
	// DefaultServerAddr is used by the HTTP mode when no address is given
	DefaultServerAddr = "127.0.0.1:8080"

	BackendHTTP = "http"
	BackendEino = "eino"
)

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	configDir  string
	config     *types.Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, it uses ~/.config/pdf-translator/.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "pdf-translator", DefaultConfigFileName)
	}

	m := &ConfigManager{
		configPath: configPath,
		configDir:  filepath.Dir(configPath),
	}
	m.config = m.defaultConfig()

	logger.Info("ConfigManager initialized", logger.String("configPath", configPath))
	return m, nil
}

func (m *ConfigManager) defaultConfig() *types.Config {
	return &types.Config{
		SettingsPath: filepath.Join(m.configDir, DefaultSettingsFileName),
		EndpointURL:  DefaultEndpointURL,
		Model:        DefaultModel,
		Backend:      BackendHTTP,
		FontPath:     DefaultFontPath,
		LogFile:      filepath.Join(m.configDir, "pdf-translator.log"),
		LogLevel:     "info",
		LogFormat:    "text",
		ServerAddr:   DefaultServerAddr,
		FailuresDir:  filepath.Join(m.configDir, "failures"),
	}
}

func (m *ConfigManager) newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(m.configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := m.defaultConfig()
	v.SetDefault("settings_path", d.SettingsPath)
	v.SetDefault("endpoint_url", d.EndpointURL)
	v.SetDefault("model", d.Model)
	v.SetDefault("backend", d.Backend)
	v.SetDefault("font_path", d.FontPath)
	v.SetDefault("max_concurrency", d.MaxConcurrency)
	v.SetDefault("request_timeout_seconds", d.RequestTimeoutSeconds)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("log_console", d.LogConsole)
	v.SetDefault("server_addr", d.ServerAddr)
	v.SetDefault("cache_path", d.CachePath)
	v.SetDefault("failures_dir", d.FailuresDir)
	return v
}

// Load loads configuration from the config file.
// A missing or malformed file falls back to defaults; environment variables
// are applied either way.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	v := m.newViper()
	if err := v.ReadInConfig(); err != nil {
		var parseErr viper.ConfigParseError
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
		case errors.As(err, &parseErr):
			logger.Warn("invalid config file format, using defaults", logger.String("path", m.configPath), logger.Err(err))
			v = m.newViper()
		default:
			logger.Error("failed to read config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "failed to read config file", err)
		}
	}

	cfg := &types.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		logger.Error("failed to decode configuration", err)
		return types.NewAppError(types.ErrConfig, "failed to decode configuration", err)
	}

	m.config = cfg
	m.applyDefaults()

	logger.Info("configuration loaded",
		logger.String("path", m.configPath),
		logger.String("endpoint", cfg.EndpointURL),
		logger.String("model", cfg.Model),
		logger.String("backend", cfg.Backend),
		logger.Int("maxConcurrency", cfg.MaxConcurrency))
	return nil
}

func (m *ConfigManager) applyDefaults() {
	d := m.defaultConfig()
	c := m.config
	if c.SettingsPath == "" {
		c.SettingsPath = d.SettingsPath
	}
	if c.EndpointURL == "" {
		c.EndpointURL = d.EndpointURL
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.FontPath == "" {
		c.FontPath = d.FontPath
	}
	if c.FailuresDir == "" {
		c.FailuresDir = d.FailuresDir
	}
	if c.MaxConcurrency < 0 {
		c.MaxConcurrency = 0
	}
	if c.RequestTimeoutSeconds < 0 {
		c.RequestTimeoutSeconds = 0
	}
}

// Save writes the current configuration to the config file.
func (m *ConfigManager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", m.configDir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved", logger.String("path", m.configPath))
	return nil
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		return m.defaultConfig()
	}
	return m.config
}

// SetConfig replaces the configuration without saving it.
func (m *ConfigManager) SetConfig(config *types.Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

func (m *ConfigManager) GetSettingsPath() string { return m.GetConfig().SettingsPath }
func (m *ConfigManager) GetEndpointURL() string  { return m.GetConfig().EndpointURL }
func (m *ConfigManager) GetModel() string        { return m.GetConfig().Model }
func (m *ConfigManager) GetFontPath() string     { return m.GetConfig().FontPath }
func (m *ConfigManager) GetMaxConcurrency() int  { return m.GetConfig().MaxConcurrency }

// GetBackend returns BackendEino or BackendHTTP; unknown values map to HTTP.
func (m *ConfigManager) GetBackend() string {
	if strings.EqualFold(m.GetConfig().Backend, BackendEino) {
		return BackendEino
	}
	return BackendHTTP
}

// GetRequestTimeout returns zero when requests should use the transport default.
func (m *ConfigManager) GetRequestTimeout() time.Duration {
	return time.Duration(m.GetConfig().RequestTimeoutSeconds) * time.Second
}

// GetServerAddr returns the listen address for HTTP mode.
func (m *ConfigManager) GetServerAddr() string {
	if addr := m.GetConfig().ServerAddr; addr != "" {
		return addr
	}
	return DefaultServerAddr
}

// GetCachePath returns the translation cache file, or "" when caching is off.
func (m *ConfigManager) GetCachePath() string { return m.GetConfig().CachePath }

// GetFailuresDir returns the directory holding failed-document records.
func (m *ConfigManager) GetFailuresDir() string { return m.GetConfig().FailuresDir }

// LoggerConfig converts the log_* settings into a logger configuration.
func (m *ConfigManager) LoggerConfig() *logger.Config {
	c := m.GetConfig()
	lc := logger.DefaultConfig()
	if c.LogFile != "" {
		lc.LogFilePath = c.LogFile
	}
	if level, err := logger.ParseLevel(c.LogLevel); err == nil {
		lc.Level = level
	}
	if c.LogFormat != "" {
		lc.Format = c.LogFormat
	}
	lc.EnableConsole = c.LogConsole
	return lc
}
