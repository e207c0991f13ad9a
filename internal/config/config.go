package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/exampletech/platformctl/internal/system"
	"github.com/exampletech/platformctl/pkg/tracing"
)

// EnvPrefix is prepended to every environment variable read by platformctl,
// e.g. PLATFORMCTL_CONTEXT or PLATFORMCTL_DISCOVERY_CONCURRENCY.
const EnvPrefix = "PLATFORMCTL"

// Keys of the settings known to platformctl. Nested keys map to nested config file sections.
const (
	KeyKubeconfig           = "kubeconfig"
	KeyContext              = "context"
	KeyVerbosity            = "verbosity"
	KeyConcurrency          = "discovery.concurrency"
	KeyQPS                  = "discovery.qps"
	KeyBurst                = "discovery.burst"
	KeyTracingEndpoint      = "tracing.endpoint"
	KeyTracingInsecure      = "tracing.insecure"
	KeyTracingSamplingRate  = "tracing.samplingRate"
	KeyWatchInterval        = "watch.interval"
	KeyWatchMetricsBindAddr = "watch.metricsBindAddress"
)

const (
	// restQPS and restBurst raise the client-go defaults for the discovery burst of requests.
	restQPS   = 100
	restBurst = 200
)

type Config struct {
	Kubeconfig string    `mapstructure:"kubeconfig"`
	Context    string    `mapstructure:"context"`
	Verbosity  int       `mapstructure:"verbosity"`
	Discovery  Discovery `mapstructure:"discovery"`
	Tracing    Tracing   `mapstructure:"tracing"`
	Watch      Watch     `mapstructure:"watch"`
}

type Discovery struct {
	// Concurrency is the number of group versions queried in parallel.
	Concurrency int `mapstructure:"concurrency"`
	// QPS limits the per group version requests; 0 disables the limit.
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type Tracing struct {
	Endpoint     string  `mapstructure:"endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	SamplingRate float64 `mapstructure:"samplingRate"`
}

type Watch struct {
	Interval           time.Duration `mapstructure:"interval"`
	MetricsBindAddress string        `mapstructure:"metricsBindAddress"`
}

// New returns a viper instance with platformctl defaults and environment lookup configured.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyKubeconfig, "")
	v.SetDefault(KeyContext, "")
	v.SetDefault(KeyVerbosity, 0)
	v.SetDefault(KeyConcurrency, 1)
	v.SetDefault(KeyQPS, 0.0)
	v.SetDefault(KeyBurst, 0)
	v.SetDefault(KeyTracingEndpoint, "")
	v.SetDefault(KeyTracingInsecure, false)
	v.SetDefault(KeyTracingSamplingRate, 1.0)
	v.SetDefault(KeyWatchInterval, 30*time.Second)
	v.SetDefault(KeyWatchMetricsBindAddr, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path into v and decodes the result.
// Precedence is flag, environment, config file, default.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that have a restricted range.
func (c Config) Validate() error {
	var errs []error
	if c.Discovery.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("discovery concurrency must be at least 1, got %d", c.Discovery.Concurrency))
	}
	if c.Discovery.QPS < 0 {
		errs = append(errs, fmt.Errorf("discovery qps must not be negative, got %v", c.Discovery.QPS))
	}
	if c.Discovery.Burst < 0 {
		errs = append(errs, fmt.Errorf("discovery burst must not be negative, got %d", c.Discovery.Burst))
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("tracing sampling rate must be between 0.0 and 1.0, got %v", c.Tracing.SamplingRate))
	}
	if c.Watch.Interval <= 0 {
		errs = append(errs, fmt.Errorf("watch interval must be positive, got %s", c.Watch.Interval))
	}
	return errors.Join(errs...)
}

// TracingConfig returns the tracing settings. Tracing is enabled when an endpoint is set.
func (c Config) TracingConfig() tracing.Config {
	return tracing.Config{
		Enabled:      c.Tracing.Endpoint != "",
		Endpoint:     c.Tracing.Endpoint,
		Insecure:     c.Tracing.Insecure,
		SamplingRate: c.Tracing.SamplingRate,
	}
}

// RESTConfig builds the client configuration from the kubeconfig files.
// An explicit kubeconfig path wins over $KUBECONFIG and ~/.kube/config, and a
// non-empty Context replaces the current context. In-cluster configuration is not used.
func (c Config) RESTConfig() (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.ExplicitPath = c.Kubeconfig

	raw, err := rules.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	overrides := &clientcmd.ConfigOverrides{CurrentContext: c.Context}
	restConfig, err := clientcmd.NewDefaultClientConfig(*raw, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build client config: %w", err)
	}

	restConfig.QPS = restQPS
	restConfig.Burst = restBurst
	restConfig.UserAgent = fmt.Sprintf("%s/%s", system.Name, system.Version)
	return restConfig, nil
}
