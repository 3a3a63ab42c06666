// Package metrics defines the observability interfaces netmount's
// components accept, plus the shared Prometheus registry they are
// enabled against. Every interface here is optional: passing nil to a
// component disables metrics collection with zero overhead.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
)

// InitRegistry creates the shared Prometheus registry. Call it once at
// process startup before constructing any metrics implementation;
// RPCMetrics/GatewayMetrics constructors return nil until this has run.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return registry != nil
}

// GetRegistry returns the shared registry, or nil if metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}
