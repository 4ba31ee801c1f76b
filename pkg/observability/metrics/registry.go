package metrics

import (
	"sort"
	"strings"
	"sync"
)

// Registry holds registered metrics keyed by name. Registering a name
// twice replaces the earlier metric.
type Registry struct {
	metrics sync.Map
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry backs the package-level Register and Export.
var DefaultRegistry = NewRegistry()

// Register adds a metric to the registry.
func (r *Registry) Register(m Metric) {
	r.metrics.Store(m.Name(), m)
}

// Export renders every registered metric in Prometheus text format,
// sorted by metric name so scrapes are stable.
func (r *Registry) Export() string {
	var names []string
	r.metrics.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		if val, ok := r.metrics.Load(name); ok {
			sb.WriteString(val.(Metric).Describe())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Reset drops every registered metric.
func (r *Registry) Reset() {
	r.metrics.Range(func(key, _ any) bool {
		r.metrics.Delete(key)
		return true
	})
}

// Register adds a metric to the default registry.
func Register(m Metric) {
	DefaultRegistry.Register(m)
}

// Export renders the default registry in Prometheus text format.
func Export() string {
	return DefaultRegistry.Export()
}
