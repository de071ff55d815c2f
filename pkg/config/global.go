package config

import "sync"

var (
	global    = &Config{}
	globalMux sync.RWMutex
)

// Global returns a copy of the running configuration.
// The service list can be changed freely by the caller.
func Global() *Config {
	globalMux.RLock()
	defer globalMux.RUnlock()

	cfg := &Config{}
	*cfg = *global
	cfg.Services = append([]*ServiceConfig(nil), global.Services...)
	return cfg
}

func SetGlobal(c *Config) {
	if c == nil {
		c = &Config{}
	}

	globalMux.Lock()
	defer globalMux.Unlock()

	global = c
}
