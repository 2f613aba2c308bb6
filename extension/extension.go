// Package extension provides the Forge extension adapter for certledger.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.certledger" or
// "certledger" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/certledger"
	"github.com/xraph/certledger/api"
	"github.com/xraph/certledger/observability"
	"github.com/xraph/certledger/store"
	"github.com/xraph/certledger/store/memory"
	"github.com/xraph/certledger/tx"
	"github.com/xraph/certledger/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "certledger"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Single-owner certificate catalog and order ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts certledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *certledger.Ledger
	dispatcher *tx.Dispatcher
	router     http.Handler
	store      store.Store
	registry   *prometheus.Registry
	ledgerOpts []certledger.Option
}

// New creates a new certledger Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *certledger.Ledger { return e.engine }

// Dispatcher returns the signed-transaction dispatcher.
// This is nil until Register is called.
func (e *Extension) Dispatcher() *tx.Dispatcher { return e.dispatcher }

// Handler returns the HTTP routes, or nil when routes are disabled or
// Register has not run.
func (e *Extension) Handler() http.Handler { return e.router }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration,
// initializes the ledger engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.build(); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*certledger.Ledger, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}
	return vessel.Provide(fapp.Container(), func() (*tx.Dispatcher, error) {
		return e.dispatcher, nil
	})
}

// build constructs the engine, dispatcher, and routes from the resolved config.
func (e *Extension) build() error {
	if e.config.Owner == "" {
		return errors.New("certledger: owner is required; set 'owner' in config or use WithOwner")
	}
	owner, err := types.ParseAddress(e.config.Owner)
	if err != nil {
		return fmt.Errorf("certledger: owner: %w", err)
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}
	s := e.store
	if e.config.DisableMigrate {
		s = noMigrate{s}
	}

	e.engine = certledger.New(s, owner, e.buildLedgerOpts()...)

	var txOpts []tx.Option
	if e.config.LenientFallback {
		txOpts = append(txOpts, tx.WithLenientFallback())
	}
	e.dispatcher = tx.NewDispatcher(e.engine, txOpts...)

	if !e.config.DisableRoutes {
		cfg := api.RouterConfig{
			Handler:  api.NewHandler(slog.Default(), e.engine, e.dispatcher),
			Logger:   slog.Default(),
			BasePath: e.config.BasePath,
		}
		if e.registry != nil {
			cfg.Metrics = api.NewHTTPMetrics(e.registry)
			cfg.MetricsHandler = promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
		}
		e.router = api.NewRouter(cfg)
	}
	return nil
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("certledger: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("certledger: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildLedgerOpts constructs certledger.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []certledger.Option {
	opts := make([]certledger.Option, 0, len(e.ledgerOpts)+2)

	if e.config.PluginTimeout > 0 {
		opts = append(opts, certledger.WithPluginTimeout(e.config.PluginTimeout))
	}
	if e.registry != nil {
		factory := observability.NewPrometheusFactory(e.registry)
		opts = append(opts, certledger.WithPlugin(observability.NewMetricsExtension(factory)))
	}

	// Append any pass-through ledger options.
	opts = append(opts, e.ledgerOpts...)

	return opts
}

// noMigrate hides Migrate from the ledger when auto-migration is disabled.
type noMigrate struct {
	store.Store
}

func (noMigrate) Migrate(context.Context) error { return nil }

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("certledger: configuration is required but not found in config files; " +
				"ensure 'extensions.certledger' or 'certledger' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("certledger: configuration loaded",
		forge.F("owner", e.config.Owner),
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("plugin_timeout", e.config.PluginTimeout),
		forge.F("lenient_fallback", e.config.LenientFallback),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.certledger", "certledger"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("certledger: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("certledger: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.LenientFallback {
		yamlConfig.LenientFallback = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.Owner == "" {
		yamlConfig.Owner = programmaticConfig.Owner
	}
	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}

	// Duration fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
