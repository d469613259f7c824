package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config represents the main configuration for pacs2go.
type Config struct {
	LogDir   string         `toml:"log_dir"`
	Archive  ArchiveConfig  `toml:"archive"`
	Database DatabaseConfig `toml:"database"`
	Export   ExportConfig   `toml:"export"`
}

// ArchiveConfig represents configuration for the remote archive backend.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type ArchiveConfig struct {
	Type string `toml:"type" validate:"required,oneof=xnat s3 memory"`

	// XNAT-specific fields (only used when Type == "xnat")
	XNATBaseURL  string `toml:"xnat_base_url,omitempty" validate:"required_if=Type xnat,omitempty,url"`
	XNATUsername string `toml:"xnat_username,omitempty" validate:"required_if=Type xnat"`
	XNATPassword string `toml:"xnat_password,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty" validate:"required_if=Type s3"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty" validate:"required_if=Type s3"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty" validate:"omitempty,url"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
	// The username the session reports when the backend has no notion
	// of accounts of its own (s3, memory).
	User string `toml:"user,omitempty"`
}

// DatabaseConfig represents configuration for the metadata database.
type DatabaseConfig struct {
	Type string `toml:"type" validate:"required,oneof=sqlite memory"`
	Path string `toml:"path,omitempty" validate:"required_if=Type sqlite"` // only used for type=sqlite
}

// ExportConfig controls encryption of downloaded project/directory
// archives.
type ExportConfig struct {
	Type           string `toml:"type" validate:"omitempty,oneof=age none"` // "none" (default) or "age"
	PublicKeyPath  string `toml:"public_key_path,omitempty" validate:"required_if=Type age"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
}

// NewConfig creates a Config with sensible defaults under baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		LogDir: filepath.Join(baseDir, "log"),
		Archive: ArchiveConfig{
			Type: "memory",
			User: "local",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: filepath.Join(baseDir, "pacs2go.db"),
		},
		Export: ExportConfig{Type: "none"},
	}
}

// Validate checks the config's structural rules (required fields per
// backend type).
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes and validates a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the
// provided Config. Refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
