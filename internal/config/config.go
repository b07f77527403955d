package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// Type picks the implementation: "webdav" (default), "dav", "s3" or "local".
	Type string `yaml:"type" json:"type"`

	// WebDAV fields
	Location string `yaml:"location" json:"location"`
	// BaseURL is kept for compatibility; no operation uses it.
	BaseURL   string `yaml:"base_url" json:"base_url"`
	PublicURL string `yaml:"public_url" json:"public_url"`
	User      string `yaml:"user" json:"user"`
	Pass      string `yaml:"pass" json:"pass"`

	// FilenameTransform names a registered transform ("slugify", "lower", "hash").
	FilenameTransform string `yaml:"filename_transform" json:"filename_transform"`

	// S3 fields
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Region    string `yaml:"region" json:"region"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`

	// Local filesystem fields
	LocalPath string `yaml:"local_path" json:"local_path"`
}

// ServerConfig configures the development WebDAV server.
type ServerConfig struct {
	Listen string `yaml:"listen" json:"listen"`
	Prefix string `yaml:"prefix" json:"prefix"`
	Root   string `yaml:"root" json:"root"`
	Auth   Auth   `yaml:"auth" json:"auth"`
}

type Auth struct {
	User string `yaml:"user" json:"user"`
	Pass string `yaml:"pass" json:"pass"`
}

// LoadConfig reads path if it exists and applies environment overrides.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		// Return error if it's not a "file not found" error (e.g., permissions)
		return nil, err
	}

	// Always override with environment variables
	processEnvOverrides(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding ones already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Storage.Type) == "" {
		cfg.Storage.Type = "webdav"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = "127.0.0.1:8081"
	}
	if cfg.Server.Prefix == "" {
		cfg.Server.Prefix = "/dav"
	}
	if cfg.Server.Root == "" {
		cfg.Server.Root = "data/webdav"
	}
}

func processEnvOverrides(cfg *Config) {
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("STORAGE_LOCATION"); v != "" {
		cfg.Storage.Location = v
	}
	if v := os.Getenv("STORAGE_BASE_URL"); v != "" {
		cfg.Storage.BaseURL = v
	}
	if v := os.Getenv("STORAGE_PUBLIC_URL"); v != "" {
		cfg.Storage.PublicURL = v
	}
	if v := os.Getenv("STORAGE_USER"); v != "" {
		cfg.Storage.User = v
	}
	if v := os.Getenv("STORAGE_PASS"); v != "" {
		cfg.Storage.Pass = v
	}
	if v := os.Getenv("STORAGE_FILENAME_TRANSFORM"); v != "" {
		cfg.Storage.FilenameTransform = v
	}
	if v := os.Getenv("STORAGE_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("STORAGE_REGION"); v != "" {
		cfg.Storage.Region = v
	}
	if v := os.Getenv("STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("STORAGE_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("STORAGE_USE_SSL"); v != "" {
		cfg.Storage.UseSSL = v == "true" || v == "1"
	}
	if v := os.Getenv("STORAGE_LOCAL_PATH"); v != "" {
		cfg.Storage.LocalPath = v
	}
	if v := os.Getenv("SERVER_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("SERVER_PREFIX"); v != "" {
		cfg.Server.Prefix = v
	}
	if v := os.Getenv("SERVER_ROOT"); v != "" {
		cfg.Server.Root = v
	}
	if v := os.Getenv("SERVER_AUTH_USER"); v != "" {
		cfg.Server.Auth.User = v
	}
	if v := os.Getenv("SERVER_AUTH_PASS"); v != "" {
		cfg.Server.Auth.Pass = v
	}
}

// SaveConfig saves the configuration struct to the specified file path
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
