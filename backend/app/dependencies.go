package app

import (
	"fmt"
	"time"

	"github.com/radialtimeline/beats-gateway/backend/config"
	"github.com/radialtimeline/beats-gateway/backend/services/analysis"
	"github.com/radialtimeline/beats-gateway/backend/services/audit"
	"github.com/radialtimeline/beats-gateway/backend/services/prompt"
	"github.com/radialtimeline/beats-gateway/backend/services/providers"
	"github.com/radialtimeline/beats-gateway/backend/services/providers/anthropic"
	"github.com/radialtimeline/beats-gateway/backend/services/providers/gemini"
	"github.com/radialtimeline/beats-gateway/backend/services/providers/openai"
	"github.com/radialtimeline/beats-gateway/backend/services/templates"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	Registry  *providers.Registry
	Templates *templates.Registry
	Prompt    *prompt.Service
	Audit     *audit.Service
	Analysis  *analysis.Service
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initTemplates(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize templates: %w", err)
	}

	deps.Prompt = prompt.NewServiceWithDefaults()

	deps.Audit = audit.NewService(
		audit.NewMemoryStore(cfg.Analysis.AuditCapacity),
		logger,
		audit.DefaultConfig(),
	)
	if err := deps.Audit.Start(); err != nil {
		return nil, fmt.Errorf("failed to start audit service: %w", err)
	}

	deps.Analysis = analysis.NewService(
		deps.Registry,
		deps.Templates,
		deps.Prompt,
		deps.Audit,
		analysis.Options{CacheTTL: cfg.Analysis.CacheTTL},
		logger,
	)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initProviders registers the configured provider adapters and the model
// prefix routes
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry := providers.NewRegistry()

	if cfg.Providers.Anthropic.APIKey != "" {
		adapterCfg := providers.DefaultConfig()
		adapterCfg.APIKey = cfg.Providers.Anthropic.APIKey
		adapterCfg.BaseURL = cfg.Providers.Anthropic.BaseURL
		adapterCfg.Timeout = cfg.Providers.Anthropic.Timeout
		if err := registry.Register(anthropic.New(adapterCfg)); err != nil {
			return err
		}
		if err := registry.RegisterPrefix("claude-", "anthropic"); err != nil {
			return err
		}
		d.Logger.Info("registered Anthropic provider")
	}

	if cfg.Providers.Gemini.APIKey != "" {
		adapterCfg := providers.DefaultConfig()
		adapterCfg.APIKey = cfg.Providers.Gemini.APIKey
		adapterCfg.BaseURL = cfg.Providers.Gemini.BaseURL
		adapterCfg.Timeout = cfg.Providers.Gemini.Timeout
		if err := registry.Register(gemini.New(adapterCfg)); err != nil {
			return err
		}
		if err := registry.RegisterPrefix("gemini-", "gemini"); err != nil {
			return err
		}
		d.Logger.Info("registered Gemini provider")
	}

	if cfg.Providers.OpenAI.APIKey != "" {
		adapterCfg := providers.DefaultConfig()
		adapterCfg.APIKey = cfg.Providers.OpenAI.APIKey
		adapterCfg.BaseURL = cfg.Providers.OpenAI.BaseURL
		adapterCfg.Timeout = cfg.Providers.OpenAI.Timeout

		var adapter *openai.Adapter
		if cfg.Providers.OpenAI.Compatible {
			adapter = openai.NewCompatible(adapterCfg)
		} else {
			adapter = openai.New(adapterCfg)
		}
		if err := registry.Register(adapter); err != nil {
			return err
		}
		if err := registry.RegisterPrefix("gpt-", "openai"); err != nil {
			return err
		}
		d.Logger.Info("registered OpenAI provider",
			zap.Bool("compatible", cfg.Providers.OpenAI.Compatible))
	}

	if registry.Count() == 0 {
		return fmt.Errorf("no providers configured")
	}

	d.Registry = registry
	return nil
}

// initTemplates loads the built-in beat templates plus any user overrides
func (d *Dependencies) initTemplates(cfg *config.Config) error {
	registry := templates.NewRegistry()

	if cfg.Analysis.TemplateDir != "" {
		if err := registry.LoadDir(cfg.Analysis.TemplateDir); err != nil {
			return fmt.Errorf("failed to load templates from %s: %w", cfg.Analysis.TemplateDir, err)
		}
		d.Logger.Info("loaded user beat templates", zap.String("dir", cfg.Analysis.TemplateDir))
	}

	d.Templates = registry
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(timeout time.Duration) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Audit != nil {
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
