// Package metrics exposes Prometheus instrumentation for tool dispatch,
// record persistence, and session activity.
package metrics
