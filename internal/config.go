package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Auto-heal modes.
const (
	AutoHealManual = "manual"
	AutoHealWatch  = "watch"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Vault   VaultConfig       `yaml:"vault"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Sync    SyncConfig        `yaml:"sync"`
	Quality QualityConfig     `yaml:"quality"`
	Graph   GraphConfig       `yaml:"graph"`
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
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if err := c.Quality.Validate(); err != nil {
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

// VaultConfig holds the path to the person record vault directory.
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

// SyncConfig controls how reciprocal-link healing is triggered.
//
// AutoHeal modes:
//   - "manual" (default): healing runs only through the API or MCP tools.
//   - "watch": the file watcher heals each record right after an external
//     edit lands, so hand edits converge without an operator.
type SyncConfig struct {
	AutoHeal string `yaml:"auto_heal"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	if c.AutoHeal == "" {
		c.AutoHeal = AutoHealManual
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.AutoHeal, validation.Required, validation.In(AutoHealManual, AutoHealWatch)),
	)
}

// QualityConfig holds the plausibility thresholds for consistency checks.
// Zero values are normalised to the defaults.
type QualityConfig struct {
	MaxAgeYears        int `yaml:"max_age_years"`
	MinParentAgeYears  int `yaml:"min_parent_age_years"`
	MaxParentAgeYears  int `yaml:"max_parent_age_years"`
	MaxAfterDeathYears int `yaml:"max_after_death_years"`
}

// Validate validates the quality configuration.
func (c *QualityConfig) Validate() error {
	if c.MaxAgeYears == 0 {
		c.MaxAgeYears = 120
	}
	if c.MinParentAgeYears == 0 {
		c.MinParentAgeYears = 13
	}
	if c.MaxParentAgeYears == 0 {
		c.MaxParentAgeYears = 70
	}
	if c.MaxAfterDeathYears == 0 {
		c.MaxAfterDeathYears = 1
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.MaxAgeYears, validation.Min(1)),
		validation.Field(&c.MinParentAgeYears, validation.Min(1)),
		validation.Field(&c.MaxParentAgeYears, validation.Min(1)),
		validation.Field(&c.MaxAfterDeathYears, validation.Min(1)),
	); err != nil {
		return err
	}
	if c.MinParentAgeYears >= c.MaxParentAgeYears {
		return fmt.Errorf("quality: min_parent_age_years %d must be below max_parent_age_years %d",
			c.MinParentAgeYears, c.MaxParentAgeYears)
	}
	return nil
}

// GraphConfig holds traversal defaults.
type GraphConfig struct {
	// DefaultMaxGenerations bounds tree queries that do not name a limit.
	// Negative means unlimited; zero is normalised to 5.
	DefaultMaxGenerations int `yaml:"default_max_generations"`
}

// Validate validates the graph configuration.
func (c *GraphConfig) Validate() error {
	if c.DefaultMaxGenerations == 0 {
		c.DefaultMaxGenerations = 5
	}
	return nil
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
			Path: "./othala.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Sync: SyncConfig{
			AutoHeal: AutoHealManual,
		},
		Quality: QualityConfig{
			MaxAgeYears:        120,
			MinParentAgeYears:  13,
			MaxParentAgeYears:  70,
			MaxAfterDeathYears: 1,
		},
		Graph: GraphConfig{
			DefaultMaxGenerations: 5,
		},
	}
}
