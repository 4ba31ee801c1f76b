// Package metrics is a minimal counter registry with Prometheus text
// exposition. The service exports cumulative counters only; durations
// are exported as cumulative seconds rather than histograms, which
// keeps the scrape surface dependency-free.
package metrics

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
)

// Metric is anything the registry can export.
type Metric interface {
	Name() string
	Help() string
	// Describe renders the metric in Prometheus text format, including
	// its HELP and TYPE header lines.
	Describe() string
}

// Counter is a monotonically increasing value. Implementations are
// safe for concurrent use.
type Counter interface {
	Metric
	Inc()
	Add(float64)
	Get() float64
}

type counter struct {
	name string
	help string
	// Float64 bits, updated with compare-and-swap.
	bits uint64
}

// NewCounter creates a counter. The name must be a valid Prometheus
// metric name; it is not validated here.
func NewCounter(name, help string) Counter {
	return &counter{name: name, help: help}
}

func (c *counter) Name() string { return c.name }
func (c *counter) Help() string { return c.help }

func (c *counter) Inc() {
	c.Add(1)
}

// Add ignores negative deltas; a counter never goes down.
func (c *counter) Add(v float64) {
	if v < 0 {
		return
	}
	for {
		old := atomic.LoadUint64(&c.bits)
		val := math.Float64frombits(old) + v
		if atomic.CompareAndSwapUint64(&c.bits, old, math.Float64bits(val)) {
			return
		}
	}
}

func (c *counter) Get() float64 {
	return math.Float64frombits(atomic.LoadUint64(&c.bits))
}

func (c *counter) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# HELP %s %s\n", c.name, c.help)
	fmt.Fprintf(&sb, "# TYPE %s counter\n", c.name)
	fmt.Fprintf(&sb, "%s %.6f\n", c.name, c.Get())
	return sb.String()
}
