package registry

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/logger"
)

// Registry manages adapter registration and instantiation, keyed by the URL
// scheme each adapter serves.
type Registry struct {
	factories map[string]Factory
	infos     map[string]*AdapterInfo
	mu        sync.RWMutex
	logger    *zap.Logger
}

// Factory is a function that creates adapter instances. It takes the scan
// configuration (which carries the connection URL and credentials) and
// returns a configured adapter or an error.
type Factory func(cfg *config.ScanConfig) (core.Adapter, error)

// AdapterInfo provides metadata about a registered adapter.
type AdapterInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
	Example      string   `json:"example"`
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new adapter registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		infos:     make(map[string]*AdapterInfo),
		logger:    logger.Get().With(zap.String("component", "adapter_registry")),
	}
}

// Register registers an adapter factory under a scheme
func (r *Registry) Register(scheme string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[scheme]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("adapter %s already registered", scheme))
	}

	r.factories[scheme] = factory
	return nil
}

// RegisterInfo records metadata for a registered adapter
func (r *Registry) RegisterInfo(info *AdapterInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.infos[info.Name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("adapter info %s already registered", info.Name))
	}

	r.infos[info.Name] = info
	return nil
}

// Create creates an adapter instance for a scheme
func (r *Registry) Create(scheme string, cfg *config.ScanConfig) (core.Adapter, error) {
	r.mu.RLock()
	factory, exists := r.factories[scheme]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("no adapter registered for scheme %s", scheme)).
			WithDetail("scheme", scheme).
			WithDetail("known", r.Schemes())
	}

	a, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create %s adapter", scheme))
	}

	r.logger.Debug("adapter created", zap.String("scheme", scheme))
	return a, nil
}

// Has checks if an adapter is registered for a scheme
func (r *Registry) Has(scheme string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[scheme]
	return exists
}

// Schemes returns the registered schemes in sorted order
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemes := make([]string, 0, len(r.factories))
	for scheme := range r.factories {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// Infos returns metadata for all registered adapters, sorted by name
func (r *Registry) Infos() []*AdapterInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*AdapterInfo, 0, len(r.infos))
	for _, info := range r.infos {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Clear removes all registered adapters (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories = make(map[string]Factory)
	r.infos = make(map[string]*AdapterInfo)
}

// Global registry functions

// Register registers an adapter factory in the global registry
func Register(scheme string, factory Factory) error {
	return globalRegistry.Register(scheme, factory)
}

// RegisterInfo records adapter metadata in the global registry
func RegisterInfo(info *AdapterInfo) error {
	return globalRegistry.RegisterInfo(info)
}

// Create creates an adapter from the global registry
func Create(scheme string, cfg *config.ScanConfig) (core.Adapter, error) {
	return globalRegistry.Create(scheme, cfg)
}

// Has checks if a scheme is registered in the global registry
func Has(scheme string) bool {
	return globalRegistry.Has(scheme)
}

// Schemes returns registered schemes from the global registry
func Schemes() []string {
	return globalRegistry.Schemes()
}

// Infos returns adapter metadata from the global registry
func Infos() []*AdapterInfo {
	return globalRegistry.Infos()
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}
