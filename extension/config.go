package extension

import "time"

// Config holds the certledger extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.certledger" or "certledger" keys).
type Config struct {
	// Owner is the hex address allowed to create entries and confirm delivery.
	Owner string `json:"owner" mapstructure:"owner" yaml:"owner"`

	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for ledger routes (default: "/certledger").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// PluginTimeout bounds every plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// LenientFallback makes unknown value-less transaction methods a no-op
	// instead of an error.
	LenientFallback bool `json:"lenient_fallback" mapstructure:"lenient_fallback" yaml:"lenient_fallback"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:      "/certledger",
		PluginTimeout: 5 * time.Second,
	}
}
