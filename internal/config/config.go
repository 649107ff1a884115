package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for sereno.
type Config struct {
	BaseDir       string             `toml:"base_dir"`
	LogDir        string             `toml:"log_dir"`
	API           APIConfig          `toml:"api"`
	Encryption    EncryptionConfig   `toml:"encryption"`
	Database      DatabaseConfig     `toml:"database"`
	Staging       StagingConfig      `toml:"staging"`
	Vault         VaultConfig        `toml:"vault"`
	Location      LocationConfig     `toml:"location"`
	Jurisdictions JurisdictionConfig `toml:"jurisdictions"`
	Geocoder      GeocoderConfig     `toml:"geocoder"`
}

// APIConfig holds the remote platform endpoints. The incidence endpoint
// serves the multipart submission and gets the longer timeout.
type APIConfig struct {
	MainURL          string `toml:"main_url"`
	IncidenceURL     string `toml:"incidence_url"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`        // default 60
	IncidenceTimeout int    `toml:"incidence_timeout_secs"` // default 70
}

// EncryptionConfig holds paths to the age key pair protecting the local
// session blob.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// DatabaseConfig represents configuration for the local cache database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// StagingConfig represents configuration for the media staging queue.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StagingConfig struct {
	Type       string `toml:"type"`                  // "memory" or "filesystem"
	StagingDir string `toml:"staging_dir,omitempty"` // only used for type=filesystem
}

// VaultConfig represents configuration for the evidence vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "none", "memory", "filesystem", or "s3"

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`

	// Optional static credentials. When empty the AWS default credential
	// chain is used (env vars, shared config, instance metadata).
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// S3Endpoint overrides the S3 endpoint for S3-compatible stores.
	S3Endpoint string `toml:"s3_endpoint,omitempty"`
}

// LocationConfig represents configuration for the location provider.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type LocationConfig struct {
	Type string `toml:"type"` // "exec" (default), "static", or "none"

	// Exec-specific fields (only used when Type == "exec")
	Command string   `toml:"command,omitempty"` // defaults to termux-location
	Args    []string `toml:"args,omitempty"`

	// Static-specific fields (only used when Type == "static")
	Latitude  float64 `toml:"latitude,omitempty"`
	Longitude float64 `toml:"longitude,omitempty"`
	AccuracyM float64 `toml:"accuracy_m,omitempty"`
}

// JurisdictionConfig points at the GeoJSON jurisdiction dataset, either a
// local file or an HTTP URL.
type JurisdictionConfig struct {
	Source string `toml:"source"`
}

// GeocoderConfig holds the reverse-geocoding endpoint settings.
type GeocoderConfig struct {
	BaseURL        string `toml:"base_url"` // defaults to Nominatim
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"` // default 10
}

// NewConfig creates a new Config with the provided base directory and
// default values.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		API: APIConfig{
			TimeoutSeconds:   60,
			IncidenceTimeout: 70,
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "sereno.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "sereno.key"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Staging: StagingConfig{
			Type:       "filesystem",
			StagingDir: filepath.Join(baseDir, "staging"),
		},
		Vault: VaultConfig{
			Type: "none",
		},
		Location: LocationConfig{
			Type: "exec",
		},
		Geocoder: GeocoderConfig{
			TimeoutSeconds: 10,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
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

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
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

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
