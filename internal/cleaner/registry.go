package cleaner

import "sync"

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Transformer)
)

// Register makes a named transformer available to source configurations.
// Source packages register themselves from an init function.
func Register(name string, factory func() Transformer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// For returns the transformer registered under name, or Base when name is
// empty or unknown.
func For(name string) Transformer {
	if name == "" {
		return Base{}
	}
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return Base{}
	}
	return factory()
}
