// Package config loads platformctl settings from flags, PLATFORMCTL_ environment
// variables and an optional YAML config file, and builds the Kubernetes client
// configuration from kubeconfig.
package config
