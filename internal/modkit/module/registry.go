package module

import "sync"

// global registry for cross wiring ports during bootstrap in main
// safe for tests and single process composition
var (
	mu  sync.RWMutex
	reg = map[string]any{}
)

// Register stores a module's port set under its name, replacing any earlier entry
func Register(m Module) {
	mu.Lock()
	reg[m.Name()] = m.Ports()
	mu.Unlock()
}

// PortsAs fetches and type asserts a port set for name
func PortsAs[T any](name string) (T, bool) {
	mu.RLock()
	v, ok := reg[name]
	mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	out, ok := v.(T)
	return out, ok
}
