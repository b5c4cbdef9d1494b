// Package metrics defines the Prometheus metrics exported by the archive
// indexer. All metrics are registered via promauto at package init and
// served on the dedicated metrics port.
package metrics
