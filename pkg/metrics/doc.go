// Package metrics defines and registers Prometheus metrics for platformctl,
// covering discovery query durations and failures, installed kind counts per
// platform API group, and changes observed while watching.
package metrics
