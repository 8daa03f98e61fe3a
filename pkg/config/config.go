package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	FileManager FileManagerConfig `mapstructure:"filemanager"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Security    SecurityConfig    `mapstructure:"security"`
	Upload      UploadConfig      `mapstructure:"upload"`
	WebDAV      WebDAVConfig      `mapstructure:"webdav"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Log         LogConfig         `mapstructure:"log"`
}

// ServerConfig contains server-specific configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// FileManagerConfig describes the directory tree being managed
type FileManagerConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// AuthConfig holds the single credential pair and session settings
type AuthConfig struct {
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SessionLifetime time.Duration `mapstructure:"session_lifetime"`
}

// SecurityConfig contains request-forgery and cookie settings
type SecurityConfig struct {
	SecretKey     string        `mapstructure:"secret_key"`
	CSRFTimeLimit time.Duration `mapstructure:"csrf_time_limit"`
	SecureCookies bool          `mapstructure:"secure_cookies"`
}

// UploadConfig limits accepted uploads
type UploadConfig struct {
	MaxFileSizeMB int    `mapstructure:"max_file_size_mb"`
	MaxFiles      int    `mapstructure:"max_files"`
	AllowedTypes  string `mapstructure:"allowed_types"`
}

// WebDAVConfig toggles the /dav/ mount
type WebDAVConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TelemetryConfig contains telemetry configuration
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// ErrMissing is returned by Load when a required value is not configured.
var ErrMissing = errors.New("required configuration value is not set")

// MaxFileSize returns the per-file upload limit in bytes.
func (u UploadConfig) MaxFileSize() int64 {
	return int64(u.MaxFileSizeMB) << 20
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load loads the configuration from viper
func Load() (*Config, error) {
	return load(true)
}

// LoadLocal loads the configuration for local commands that only touch the
// base directory; credentials and the secret key are not required.
func LoadLocal() (*Config, error) {
	return load(false)
}

func load(requireCredentials bool) (*Config, error) {
	cfg := &Config{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg, requireCredentials); err != nil {
		return nil, err
	}

	if err := postProcess(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)

	viper.SetDefault("auth.session_lifetime", 12*time.Hour)

	viper.SetDefault("security.csrf_time_limit", time.Hour)
	viper.SetDefault("security.secure_cookies", false)

	// Upload widget limits.
	viper.SetDefault("upload.max_file_size_mb", 3)
	viper.SetDefault("upload.max_files", 30)
	viper.SetDefault("upload.allowed_types", "image/*,.txt,.pdf,.docx,.html,.py")

	viper.SetDefault("webdav.enabled", false)

	viper.SetDefault("telemetry.enabled", false)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.json", false)

	// Environment variable mappings
	_ = viper.BindEnv("filemanager.base_dir", "BASEDIR")
	_ = viper.BindEnv("security.secret_key", "SECRET_KEY")
	_ = viper.BindEnv("auth.username", "FILEMANAGER_USERNAME", "USERNAME")
	_ = viper.BindEnv("auth.password", "FILEMANAGER_PASSWORD", "PASSWORD")
	_ = viper.BindEnv("auth.session_lifetime", "SESSION_LIFETIME")
	_ = viper.BindEnv("security.csrf_time_limit", "CSRF_TIME_LIMIT")
	_ = viper.BindEnv("security.secure_cookies", "SECURE_COOKIES")
	_ = viper.BindEnv("upload.max_file_size_mb", "UPLOAD_MAX_FILE_SIZE_MB")
	_ = viper.BindEnv("upload.max_files", "UPLOAD_MAX_FILES")
	_ = viper.BindEnv("upload.allowed_types", "UPLOAD_ALLOWED_TYPES")
	_ = viper.BindEnv("webdav.enabled", "WEBDAV_ENABLED")
	_ = viper.BindEnv("telemetry.enabled", "TELEMETRY_ENABLED")
	_ = viper.BindEnv("telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func validate(cfg *Config, requireCredentials bool) error {
	type requirement struct {
		key   string
		value string
	}
	required := []requirement{
		{"filemanager.base_dir (BASEDIR)", cfg.FileManager.BaseDir},
	}
	if requireCredentials {
		required = append(required,
			requirement{"security.secret_key (SECRET_KEY)", cfg.Security.SecretKey},
			requirement{"auth.username (USERNAME)", cfg.Auth.Username},
			requirement{"auth.password (PASSWORD)", cfg.Auth.Password},
		)
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s: %w", r.key, ErrMissing)
		}
	}
	if cfg.Upload.MaxFileSizeMB <= 0 {
		return fmt.Errorf("upload.max_file_size_mb must be positive, got %d", cfg.Upload.MaxFileSizeMB)
	}
	if cfg.Upload.MaxFiles <= 0 {
		return fmt.Errorf("upload.max_files must be positive, got %d", cfg.Upload.MaxFiles)
	}
	return nil
}

func postProcess(cfg *Config) error {
	// Ensure the base directory is absolute
	if !filepath.IsAbs(cfg.FileManager.BaseDir) {
		abs, err := filepath.Abs(cfg.FileManager.BaseDir)
		if err != nil {
			return err
		}
		cfg.FileManager.BaseDir = abs
	}
	cfg.FileManager.BaseDir = filepath.Clean(cfg.FileManager.BaseDir)

	info, err := os.Stat(cfg.FileManager.BaseDir)
	if err != nil {
		return fmt.Errorf("base directory %s: %w", cfg.FileManager.BaseDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("base directory %s is not a directory", cfg.FileManager.BaseDir)
	}

	return nil
}
