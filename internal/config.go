package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/jakebiddle/notegraph/internal/settings"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Graph  GraphConfig       `yaml:"graph"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Graph.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// GraphConfig seeds the runtime-mutable graph settings.
type GraphConfig struct {
	AliasFields           []string `yaml:"alias_fields"`
	SemanticEnabled       *bool    `yaml:"semantic_enabled"`
	SemanticFields        []string `yaml:"semantic_fields"`
	SemanticMinConfidence float64  `yaml:"semantic_min_confidence"`
	SemanticBatchSize     int      `yaml:"semantic_batch_size"`
	RetrievalEnabled      *bool    `yaml:"retrieval_enabled"`
	MaxHops               int      `yaml:"max_hops"`
	MaxDocs               int      `yaml:"max_docs"`
	IncludePrefixes       []string `yaml:"include_prefixes"`
	ExcludePrefixes       []string `yaml:"exclude_prefixes"`
}

// Validate validates the graph configuration.
func (c *GraphConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SemanticMinConfidence, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.SemanticBatchSize, validation.Min(0), validation.Max(200)),
		validation.Field(&c.MaxHops, validation.Min(0), validation.Max(4)),
		validation.Field(&c.MaxDocs, validation.Min(0), validation.Max(100)),
	)
}

// Settings maps the static config onto runtime defaults; unset fields keep
// the defaults.
func (c *GraphConfig) Settings() settings.Settings {
	s := settings.Defaults()
	if len(c.AliasFields) > 0 {
		s.AliasFields = c.AliasFields
	}
	if c.SemanticEnabled != nil {
		s.SemanticEnabled = *c.SemanticEnabled
	}
	if len(c.SemanticFields) > 0 {
		s.SemanticFields = c.SemanticFields
	}
	if c.SemanticMinConfidence > 0 {
		s.SemanticMinConfidence = c.SemanticMinConfidence
	}
	if c.SemanticBatchSize > 0 {
		s.SemanticBatchSize = c.SemanticBatchSize
	}
	if c.RetrievalEnabled != nil {
		s.GraphRetrievalEnabled = *c.RetrievalEnabled
	}
	if c.MaxHops > 0 {
		s.GraphMaxHops = c.MaxHops
	}
	if c.MaxDocs > 0 {
		s.GraphMaxDocs = c.MaxDocs
	}
	if len(c.IncludePrefixes) > 0 {
		s.IncludePrefixes = c.IncludePrefixes
	}
	if len(c.ExcludePrefixes) > 0 {
		s.ExcludePrefixes = c.ExcludePrefixes
	}
	return s
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./notegraph.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
