// Lightweight metrics registry with Prometheus text exposition.
//
// Tracks the interlock's diagnostic series: safety violations, latch
// engagements, current ceiling, and the latest sensor readings. Served by
// the telemetry server at /metrics.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing metric.
type Counter struct {
	value atomic.Int64
	help  string
}

// Inc increments the counter by one.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add increments the counter by n. Negative deltas are ignored.
func (c *Counter) Add(n int64) {
	if n > 0 {
		c.value.Add(n)
	}
}

// Value returns the current count.
func (c *Counter) Value() int64 {
	return c.value.Load()
}

// Set forces the counter to a value, provided it does not go backwards.
// Used to mirror an externally owned monotonic count.
func (c *Counter) Set(v int64) {
	for {
		cur := c.value.Load()
		if v <= cur {
			return
		}
		if c.value.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Gauge is a metric that can go up and down.
type Gauge struct {
	mu    sync.Mutex
	value float64
	help  string
}

// Set replaces the gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Registry holds named metrics and renders them in Prometheus text format.
type Registry struct {
	mu       sync.Mutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
	}
}

// Counter returns the named counter, creating it on first use.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{help: help}
	r.counters[name] = c
	return c
}

// Gauge returns the named gauge, creating it on first use.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{help: help}
	r.gauges[name] = g
	return g
}

// WriteText renders all metrics in Prometheus text exposition format,
// sorted by name for stable output.
func (r *Registry) WriteText(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.counters)+len(r.gauges))
	for name := range r.counters {
		names = append(names, name)
	}
	for name := range r.gauges {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if c, ok := r.counters[name]; ok {
			if c.help != "" {
				if _, err := fmt.Fprintf(w, "# HELP %s %s\n", name, c.help); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "# TYPE %s counter\n%s %d\n", name, name, c.Value()); err != nil {
				return err
			}
			continue
		}
		g := r.gauges[name]
		if g.help != "" {
			if _, err := fmt.Fprintf(w, "# HELP %s %s\n", name, g.help); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n%s %g\n", name, name, g.Value()); err != nil {
			return err
		}
	}
	return nil
}
