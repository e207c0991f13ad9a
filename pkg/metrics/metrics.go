/*
Copyright © 2026 Deutsche Telekom AG
*/

// Package metrics provides Prometheus metrics for platformctl.
// It exposes custom metrics for discovery performance, error tracking,
// and the set of installed platform kinds.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	// Namespace is the Prometheus metrics namespace for platformctl
	Namespace = "platformctl"
)

var (
	// DiscoveryDuration measures the duration of platform discovery queries in seconds
	DiscoveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "discovery_duration_seconds",
			Help:      "Duration of platform discovery queries in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// DiscoveryErrors counts the total number of failed platform discovery queries
	DiscoveryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "discovery_errors_total",
			Help:      "Total number of failed platform discovery queries",
		},
		[]string{"operation"},
	)

	// InstalledKinds tracks the number of group version kinds discovered per platform
	// API group. A kind served in two versions counts twice.
	InstalledKinds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "installed_kinds",
			Help:      "Number of group version kinds served per platform API group as of the last query",
		},
		[]string{"group"},
	)

	// WatchChanges counts kinds added to or removed from the cluster while watching
	WatchChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "watch_changes_total",
			Help:      "Total number of kinds added or removed between watch polls",
		},
		[]string{"change"},
	)
)

func init() {
	// Register all metrics with controller-runtime's registry
	metrics.Registry.MustRegister(
		DiscoveryDuration,
		DiscoveryErrors,
		InstalledKinds,
		WatchChanges,
	)
}

// Operation constants for labeling discovery errors
const (
	OperationListGroups    = "list_groups"
	OperationListResources = "list_resources"
	OperationCanceled      = "canceled"
)

// Change constants for labeling watch changes
const (
	ChangeAdded   = "added"
	ChangeRemoved = "removed"
)

// SetInstalledKinds replaces the per-group kind counts with the given values.
// Groups absent from counts are reset to zero so stale series do not linger.
func SetInstalledKinds(groups []string, counts map[string]int) {
	for _, group := range groups {
		InstalledKinds.WithLabelValues(group).Set(float64(counts[group]))
	}
}
