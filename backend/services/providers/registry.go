package providers

import (
	"errors"
	"strings"
	"sync"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrModelNotSupported is returned when a model is not supported by any provider
	ErrModelNotSupported = errors.New("model not supported")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry manages provider instances and model mappings
type Registry struct {
	mu             sync.RWMutex
	providers      map[string]Provider
	modelProviders map[string]string // model -> provider name
	modelPrefixes  map[string]string // model prefix -> provider name
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers:      make(map[string]Provider),
		modelProviders: make(map[string]string),
		modelPrefixes:  make(map[string]string),
	}
}

// Register registers a provider instance
func (r *Registry) Register(provider Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	if _, exists := r.providers[name]; exists {
		return ErrProviderAlreadyRegistered
	}

	r.providers[name] = provider

	// Register all models from the provider
	for _, model := range provider.ListModels() {
		r.modelProviders[model] = name
	}

	return nil
}

// RegisterPrefix registers a model prefix to provider mapping
// (e.g., "claude-" -> "anthropic") for models absent from the static tables.
func (r *Registry) RegisterPrefix(prefix, providerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[providerName]; !exists {
		return ErrProviderNotFound
	}

	r.modelPrefixes[prefix] = providerName
	return nil
}

// Provider retrieves a provider by name
func (r *Registry) Provider(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, ErrProviderNotFound
	}

	return provider, nil
}

// ProviderForModel finds the provider that supports a given model
func (r *Registry) ProviderForModel(model string) (Provider, error) {
	r.mu.RLock()
	if providerName, exists := r.modelProviders[model]; exists {
		if provider, ok := r.providers[providerName]; ok {
			r.mu.RUnlock()
			return provider, nil
		}
	}

	// Prefix matching for models not in the static tables
	var matched Provider
	var matchedName string
	for prefix, providerName := range r.modelPrefixes {
		if strings.HasPrefix(model, prefix) {
			if provider, ok := r.providers[providerName]; ok {
				matched = provider
				matchedName = providerName
				break
			}
		}
	}
	r.mu.RUnlock()

	if matched == nil {
		return nil, ErrModelNotSupported
	}

	// Cache the mapping for future lookups
	r.mu.Lock()
	r.modelProviders[model] = matchedName
	r.mu.Unlock()

	return matched, nil
}

// ListProviders returns all registered provider names
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}

	return names
}

// ListModels returns all supported models across all providers
func (r *Registry) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]string, 0, len(r.modelProviders))
	for model := range r.modelProviders {
		models = append(models, model)
	}

	return models
}

// ValidateModel checks if a model is supported by any provider
func (r *Registry) ValidateModel(model string) error {
	_, err := r.ProviderForModel(model)
	return err
}

// ModelInfo retrieves model information across providers
func (r *Registry) ModelInfo(model string) (*ModelInfo, error) {
	provider, err := r.ProviderForModel(model)
	if err != nil {
		return nil, err
	}

	return provider.ModelInfo(model)
}

// AllModelInfo returns information for all models across all providers
func (r *Registry) AllModelInfo() []*ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var allInfo []*ModelInfo

	for _, provider := range r.providers {
		for _, model := range provider.ListModels() {
			info, err := provider.ModelInfo(model)
			if err != nil {
				// Skip models that fail to provide info
				continue
			}
			allInfo = append(allInfo, info)
		}
	}

	return allInfo
}

// Count returns the number of registered providers
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.providers)
}
