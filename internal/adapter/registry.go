package adapter

import (
	"fmt"
	"sort"
	"sync"

	"tether/internal/agent"
)

// Bundle pairs a session's agent with the adapter that translates for it.
type Bundle struct {
	Agent   agent.Agent
	Adapter *Adapter
}

// Factory builds a fresh bundle for one session.
type Factory func(cfg agent.Config) (Bundle, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a provider available under the given name. Provider
// packages call this from init; registering the same name twice panics.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("adapter: provider %q registered twice", name))
	}
	registry[name] = factory
}

// New builds a bundle for the named provider.
func New(name string, cfg agent.Config) (Bundle, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return Bundle{}, fmt.Errorf("unknown provider %q (available: %v)", name, Providers())
	}
	return factory(cfg)
}

// Providers lists the registered provider names, sorted.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
