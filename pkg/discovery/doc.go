// Package discovery answers which platform kinds a Kubernetes cluster serves.
// It filters the API groups reported by the Discovery API against the fixed
// platform group list and flattens the remaining group versions into
// GroupVersionKinds. Every query hits the API server; nothing is cached.
// The package also waits for platform CRDs to become established and polls
// for changes in the installed kinds.
package discovery
