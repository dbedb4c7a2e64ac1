// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/ingest"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// CurrentVersion is written into saved configs.
	CurrentVersion = "1"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "RIGCHAT_"

	// HomeEnv overrides the config directory.
	HomeEnv = "RIGCHAT_HOME"

	configDirName = ".rigchat"
	configBase    = "config"
)

// Extensions are tried in this order by Load.
var Extensions = []string{".toml", ".json", ".yaml"}

// ErrUnsupportedFormat is returned for config files with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the process-wide configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	API     APIConfig     `toml:"api" json:"api" yaml:"api" envPrefix:"API_"`
	Model   ModelConfig   `toml:"model" json:"model" yaml:"model" envPrefix:"MODEL_"`
	Chat    ChatConfig    `toml:"chat" json:"chat" yaml:"chat" envPrefix:"CHAT_"`
	Storage StorageConfig `toml:"storage" json:"storage" yaml:"storage" envPrefix:"STORAGE_"`
	Ingest  IngestConfig  `toml:"ingest" json:"ingest" yaml:"ingest" envPrefix:"INGEST_"`
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging" envPrefix:"LOG_"`

	source string
}

// APIConfig holds the completion endpoint settings.
type APIConfig struct {
	Key               string `toml:"key" json:"key" yaml:"key" env:"KEY"`
	BaseURL           string `toml:"base_url" json:"base_url" yaml:"base_url" env:"BASE_URL" validate:"required,url"`
	TimeoutSeconds    int    `toml:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds" env:"TIMEOUT_SECONDS" validate:"min=1,max=600"`
	RequestsPerMinute int    `toml:"requests_per_minute" json:"requests_per_minute" yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE" validate:"min=0"`
}

// ModelConfig holds the generation parameters sent with every request.
type ModelConfig struct {
	ID               string  `toml:"id" json:"id" yaml:"id" env:"ID" validate:"required"`
	Temperature      float64 `toml:"temperature" json:"temperature" yaml:"temperature" env:"TEMPERATURE" validate:"gte=0,lte=2"`
	MaxTokens        int     `toml:"max_tokens" json:"max_tokens" yaml:"max_tokens" env:"MAX_TOKENS" validate:"min=1,max=131072"`
	TopP             float64 `toml:"top_p" json:"top_p" yaml:"top_p" env:"TOP_P" validate:"gte=0,lte=1"`
	FrequencyPenalty float64 `toml:"frequency_penalty" json:"frequency_penalty" yaml:"frequency_penalty" env:"FREQUENCY_PENALTY" validate:"gte=-2,lte=2"`
	PresencePenalty  float64 `toml:"presence_penalty" json:"presence_penalty" yaml:"presence_penalty" env:"PRESENCE_PENALTY" validate:"gte=-2,lte=2"`
	SystemPrompt     string  `toml:"system_prompt" json:"system_prompt" yaml:"system_prompt" env:"SYSTEM_PROMPT"`
	Stream           bool    `toml:"stream" json:"stream" yaml:"stream" env:"STREAM"`
	MaxHistoryLength int     `toml:"max_history_length" json:"max_history_length" yaml:"max_history_length" env:"MAX_HISTORY_LENGTH" validate:"min=0"`
}

// ChatConfig holds session behaviour.
type ChatConfig struct {
	AutoSave        bool   `toml:"auto_save" json:"auto_save" yaml:"auto_save" env:"AUTO_SAVE"`
	AutoSaveDelayMs int    `toml:"auto_save_delay_ms" json:"auto_save_delay_ms" yaml:"auto_save_delay_ms" env:"AUTO_SAVE_DELAY_MS" validate:"min=0,max=60000"`
	Notifications   bool   `toml:"notifications" json:"notifications" yaml:"notifications" env:"NOTIFICATIONS"`
	Locale          string `toml:"locale" json:"locale" yaml:"locale" env:"LOCALE"`
	ShowArchived    bool   `toml:"show_archived" json:"show_archived" yaml:"show_archived" env:"SHOW_ARCHIVED"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend       string `toml:"backend" json:"backend" yaml:"backend" env:"BACKEND" validate:"oneof=file sqlite redis memory"`
	Path          string `toml:"path" json:"path" yaml:"path" env:"PATH"`
	RedisAddr     string `toml:"redis_addr" json:"redis_addr" yaml:"redis_addr" env:"REDIS_ADDR" validate:"required_if=Backend redis"`
	RedisPassword string `toml:"redis_password" json:"redis_password" yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `toml:"redis_db" json:"redis_db" yaml:"redis_db" env:"REDIS_DB" validate:"min=0"`
	RedisPrefix   string `toml:"redis_prefix" json:"redis_prefix" yaml:"redis_prefix" env:"REDIS_PREFIX"`
	Encrypt       bool   `toml:"encrypt" json:"encrypt" yaml:"encrypt" env:"ENCRYPT"`

	// Passphrase is only ever read from the environment.
	Passphrase string `toml:"-" json:"-" yaml:"-" env:"PASSPHRASE" validate:"required_if=Encrypt true"`
}

// IngestConfig bounds file attachments.
type IngestConfig struct {
	MaxFileSizeMB  int  `toml:"max_file_size_mb" json:"max_file_size_mb" yaml:"max_file_size_mb" env:"MAX_FILE_SIZE_MB" validate:"min=1,max=1024"`
	CompressImages bool `toml:"compress_images" json:"compress_images" yaml:"compress_images" env:"COMPRESS_IMAGES"`
	MaxImageWidth  int  `toml:"max_image_width" json:"max_image_width" yaml:"max_image_width" env:"MAX_IMAGE_WIDTH" validate:"min=64,max=8192"`
	ImageQuality   int  `toml:"image_quality" json:"image_quality" yaml:"image_quality" env:"IMAGE_QUALITY" validate:"min=1,max=100"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level" env:"LEVEL" validate:"oneof=trace debug info warn error"`
	File       string `toml:"file" json:"file" yaml:"file" env:"FILE"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days" env:"MAX_AGE_DAYS" validate:"min=1,max=365"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		API: APIConfig{
			BaseURL:        cloud.DefaultBaseURL,
			TimeoutSeconds: int(cloud.DefaultTimeout / time.Second),
		},
		Model: ModelConfig{
			ID:               model.DefaultModel,
			Temperature:      0.7,
			MaxTokens:        2048,
			TopP:             0.9,
			Stream:           true,
			MaxHistoryLength: 50,
		},
		Chat: ChatConfig{
			AutoSave:        true,
			AutoSaveDelayMs: 500,
			Notifications:   true,
			Locale:          "en",
		},
		Storage: StorageConfig{
			Backend:     storage.BackendFile,
			RedisPrefix: storage.DefaultRedisPrefix,
		},
		Ingest: IngestConfig{
			MaxFileSizeMB:  50,
			CompressImages: true,
			MaxImageWidth:  ingest.DefaultMaxWidth,
			ImageQuality:   ingest.DefaultCompressQuality,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxAgeDays: 7,
		},
	}
}

// SetDefaults fills zero values that must not stay zero.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = CurrentVersion
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = d.API.TimeoutSeconds
	}
	if c.Model.ID == "" {
		c.Model.ID = d.Model.ID
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = d.Model.MaxTokens
	}
	if c.Chat.Locale == "" {
		c.Chat.Locale = d.Chat.Locale
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.RedisPrefix == "" {
		c.Storage.RedisPrefix = d.Storage.RedisPrefix
	}
	if c.Ingest.MaxFileSizeMB == 0 {
		c.Ingest.MaxFileSizeMB = d.Ingest.MaxFileSizeMB
	}
	if c.Ingest.MaxImageWidth == 0 {
		c.Ingest.MaxImageWidth = d.Ingest.MaxImageWidth
	}
	if c.Ingest.ImageQuality == 0 {
		c.Ingest.ImageQuality = d.Ingest.ImageQuality
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = d.Logging.MaxAgeDays
	}
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	c.Logging.Level = strings.ToLower(c.Logging.Level)
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the config directory: $RIGCHAT_HOME or ~/.rigchat.
func Dir() (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// DefaultPath returns the path Save writes to when the config was not
// loaded from a file.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configBase+".toml"), nil
}

// Path returns the file this config was loaded from, if any.
func (c *Config) Path() string {
	return c.source
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the first of config.toml, config.json, config.yaml found in
// Dir, falling back to defaults. Environment overrides apply last.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadDir(dir)
}

// LoadDir is Load with an explicit directory.
func LoadDir(dir string) (*Config, error) {
	for _, ext := range Extensions {
		path := filepath.Join(dir, configBase+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return LoadFile(path)
	}

	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	log.Debug().Str("dir", dir).Msg("no config file, using defaults")
	return cfg, nil
}

// LoadFile reads one config file, choosing the decoder by extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := decode(cfg, path, data); err != nil {
		return nil, err
	}
	cfg.source = path
	if err := cfg.finish(); err != nil {
		return nil, err
	}

	log.Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}

func decode(cfg *Config, path string, data []byte) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (c *Config) finish() error {
	if err := c.ApplyEnvOverrides(); err != nil {
		return err
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies RIGCHAT_* environment variables, for example
// RIGCHAT_API_KEY or RIGCHAT_MODEL_TEMPERATURE. Unset variables leave the
// current value alone.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("environment override: %w", err)
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the config back to where it came from, or to DefaultPath.
// The file is created with 0600 permissions since it may hold the API key.
func (c *Config) Save() error {
	path := c.source
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := c.SaveAs(path); err != nil {
		return err
	}
	c.source = path
	return nil
}

// SaveAs encodes the config by the path's extension and writes it atomically.
func (c *Config) SaveAs(path string) error {
	data, err := c.encode(path)
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	log.Info().Str("path", path).Msg("config saved")
	return nil
}

func (c *Config) encode(path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var buf bytes.Buffer
		buf.WriteString("# rigchat configuration file\n")
		buf.WriteString("# Secrets such as the storage passphrase belong in the environment.\n\n")
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		return buf.Bytes(), nil
	case ".json":
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		return data, nil
	case ".yaml", ".yml":
		data, err := yaml.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

// SessionSettings is the snapshot copied into new sessions.
func (c *Config) SessionSettings() *model.SessionSettings {
	return &model.SessionSettings{
		SystemPrompt:  c.Model.SystemPrompt,
		Temperature:   c.Model.Temperature,
		MaxTokens:     c.Model.MaxTokens,
		Model:         c.Model.ID,
		AutoSave:      c.Chat.AutoSave,
		Notifications: c.Chat.Notifications,
	}
}

// Params builds request parameters, with the session snapshot taking
// precedence over the global values it captured.
func (c *Config) Params(s *model.SessionSettings) cloud.Params {
	p := cloud.Params{
		Model:            c.Model.ID,
		Temperature:      c.Model.Temperature,
		MaxTokens:        c.Model.MaxTokens,
		TopP:             c.Model.TopP,
		FrequencyPenalty: c.Model.FrequencyPenalty,
		PresencePenalty:  c.Model.PresencePenalty,
		SystemPrompt:     c.Model.SystemPrompt,
		MaxHistoryLength: c.Model.MaxHistoryLength,
	}
	if s != nil {
		if s.Model != "" {
			p.Model = s.Model
		}
		p.Temperature = s.Temperature
		if s.MaxTokens > 0 {
			p.MaxTokens = s.MaxTokens
		}
		p.SystemPrompt = s.SystemPrompt
	}
	return p
}

// ClientOptions returns the options for cloud.New.
func (c *Config) ClientOptions() cloud.Options {
	return cloud.Options{
		APIKey:            c.API.Key,
		BaseURL:           c.API.BaseURL,
		Timeout:           time.Duration(c.API.TimeoutSeconds) * time.Second,
		RequestsPerMinute: c.API.RequestsPerMinute,
	}
}

// IngestOptions returns the options for ingest.New.
func (c *Config) IngestOptions() ingest.Options {
	return ingest.Options{
		Compress: c.Ingest.CompressImages,
		MaxWidth: c.Ingest.MaxImageWidth,
		Quality:  c.Ingest.ImageQuality,
	}
}

// MaxFileSize returns the attachment limit in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.Ingest.MaxFileSizeMB) * 1024 * 1024
}

// StorageOptions returns the options for storage.Open.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:       c.Storage.Backend,
		Path:          c.Storage.Path,
		RedisAddr:     c.Storage.RedisAddr,
		RedisPassword: c.Storage.RedisPassword,
		RedisDB:       c.Storage.RedisDB,
		RedisPrefix:   c.Storage.RedisPrefix,
	}
}

// AutoSaveDelay returns the autosave debounce.
func (c *Config) AutoSaveDelay() time.Duration {
	return time.Duration(c.Chat.AutoSaveDelayMs) * time.Millisecond
}

// String renders the config as TOML with the API key masked.
func (c *Config) String() string {
	masked := c.Clone()
	if masked.API.Key != "" {
		masked.API.Key = "********"
	}
	if masked.Storage.RedisPassword != "" {
		masked.Storage.RedisPassword = "********"
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(masked); err != nil {
		return fmt.Sprintf("config encode error: %v", err)
	}
	return buf.String()
}
