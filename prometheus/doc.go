// Package prometheus provides a Prometheus adapter for
// github.com/ipsentry/bouncer.
//
// The package exposes bouncer options that install a Prometheus-backed
// Metrics implementation on an engine, using either the default registerer
// or a caller-provided registerer.
package prometheus
