package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	pyscript "github.com/opendmp/python-script-processor/modules/pyscript/ext"
	"github.com/opendmp/python-script-processor/sdk/api/spi"
)

// ErrDuplicate is returned when a service name is registered twice.
var ErrDuplicate = errors.New("plugin already registered")

// Registry holds plugin descriptors keyed by service name. Values are copied
// on the way in and on the way out.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]spi.PluginConfiguration
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: map[string]spi.PluginConfiguration{}}
}

// Register validates d and adds it under its service name.
func (r *Registry) Register(d spi.PluginConfiguration) error {
	if err := d.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[d.ServiceName]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, d.ServiceName)
	}
	r.descriptors[d.ServiceName] = d.Clone()
	return nil
}

// Descriptor returns the descriptor registered under name.
func (r *Registry) Descriptor(name string) (spi.PluginConfiguration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	if !ok {
		return spi.PluginConfiguration{}, false
	}
	return d.Clone(), true
}

// Descriptors returns a copy of all registered descriptors.
func (r *Registry) Descriptors() map[string]spi.PluginConfiguration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]spi.PluginConfiguration, len(r.descriptors))
	for k, d := range r.descriptors {
		out[k] = d.Clone()
	}
	return out
}

// IDs returns the registered service names in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.descriptors))
	for k := range r.descriptors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}

var builtin = NewRegistry()

// Default returns the process-wide registry holding the built-in plugins.
func Default() *Registry { return builtin }

// Register adds a descriptor to the default registry.
func Register(d spi.PluginConfiguration) error { return builtin.Register(d) }

// MustRegister is Register for init-time wiring; it panics on error.
func MustRegister(d spi.PluginConfiguration) {
	if err := Register(d); err != nil {
		panic(err)
	}
}

// Descriptor returns a descriptor from the default registry.
func Descriptor(name string) (spi.PluginConfiguration, bool) { return builtin.Descriptor(name) }

// Descriptors returns all descriptors of the default registry.
func Descriptors() map[string]spi.PluginConfiguration { return builtin.Descriptors() }

// IDs returns the service names of the default registry.
func IDs() []string { return builtin.IDs() }

// Wire built-in plugins.
func init() {
	MustRegister(pyscript.Descriptor())
}
