/*
Copyright © 2026 Deutsche Telekom AG
*/
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	k8sdiscovery "k8s.io/client-go/discovery"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/exampletech/platformctl/internal/config"
	"github.com/exampletech/platformctl/internal/system"
	"github.com/exampletech/platformctl/pkg/discovery"
	"github.com/exampletech/platformctl/pkg/tracing"
)

var (
	setupLog        logr.Logger
	scheme          *runtime.Scheme
	configFile      string
	cfg             config.Config
	tracingProvider *tracing.Provider
)

// newDiscoveryClient and newClient are replaced in tests.
var (
	newDiscoveryClient = func(c *rest.Config) (k8sdiscovery.DiscoveryInterface, error) {
		return k8sdiscovery.NewDiscoveryClientForConfig(c)
	}
	newClient = func(c *rest.Config) (client.Client, error) {
		return client.New(c, client.Options{Scheme: scheme})
	}
)

// sensitivePattern matches flag names whose values must not be logged.
var sensitivePattern = regexp.MustCompile(`(?i)(token|secret|password|passphrase|key|auth|credential|private|cert|bearer|client[-_]id)`)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "platformctl",
	Short: "Inspect the data platform kinds installed in a Kubernetes cluster",
	Long: `platformctl asks the Kubernetes API server which API groups it serves,
keeps the groups of the data platform operators (kafka.example.tech,
trino.example.tech, ...) and lists the kinds they provide.

It only reads from the cluster. Results are never cached: every command
queries the discovery endpoint again.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}
		if err := flag.Set("v", strconv.Itoa(cfg.Verbosity)); err != nil {
			return fmt.Errorf("failed to set log verbosity: %w", err)
		}

		ctrl.SetLogger(klog.NewKlogr())
		setupLog = ctrl.Log.WithName("setup")
		setupLog.V(1).Info("app info", "name", system.Name, "version", system.Version, "commit", system.Commit)
		setupLog.V(2).Info("flags", "values", redactSensitiveFlags(cmd.Flags()))

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		tracingProvider, err = tracing.Setup(ctx, cfg.TracingConfig(), system.Version)
		if err != nil {
			return fmt.Errorf("unable to set up tracing: %w", err)
		}
		cmd.SetContext(log.IntoContext(ctx, ctrl.Log))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.ExecuteContext(ctrl.SetupSignalHandler())
	if tracingProvider != nil {
		if shutdownErr := tracingProvider.Shutdown(context.Background()); shutdownErr != nil {
			setupLog.Error(shutdownErr, "failed to flush traces")
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	setupLog = ctrl.Log.WithName("setup")
	klog.InitFlags(nil)
	cobra.OnInitialize(initScheme)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a YAML config file")
	flags.String("kubeconfig", "", "Path to the kubeconfig file. Defaults to $KUBECONFIG or ~/.kube/config")
	flags.String("context", "", "The kubeconfig context to use instead of the current context")
	flags.IntP("verbosity", "v", 0, "Log level (0-9)")
	flags.String("tracing-endpoint", "", "OTLP gRPC collector endpoint. Tracing is disabled when empty")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter connection")
	flags.Float64("tracing-sampling-rate", 1.0, "Ratio of traces to sample (0.0 to 1.0)")

	bindFlag(config.KeyKubeconfig, flags.Lookup("kubeconfig"))
	bindFlag(config.KeyContext, flags.Lookup("context"))
	bindFlag(config.KeyVerbosity, flags.Lookup("verbosity"))
	bindFlag(config.KeyTracingEndpoint, flags.Lookup("tracing-endpoint"))
	bindFlag(config.KeyTracingInsecure, flags.Lookup("tracing-insecure"))
	bindFlag(config.KeyTracingSamplingRate, flags.Lookup("tracing-sampling-rate"))
}

// flagKeys maps config keys to the flags that set them.
var flagKeys = map[string]*pflag.Flag{}

func bindFlag(key string, f *pflag.Flag) {
	if f == nil {
		panic(fmt.Sprintf("no flag for config key %s", key))
	}
	flagKeys[key] = f
}

// loadConfig merges flags, PLATFORMCTL_ environment variables, the config file and defaults.
func loadConfig() (config.Config, error) {
	v := config.New()
	for key, f := range flagKeys {
		if err := v.BindPFlag(key, f); err != nil {
			return config.Config{}, fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	}
	return config.Load(v, configFile)
}

func initScheme() {
	scheme = runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(apiextensionsv1.AddToScheme(scheme))
}

// redactSensitiveFlags returns all flags with their values, hiding the values of
// flags whose name looks like it carries a credential.
func redactSensitiveFlags(fs *pflag.FlagSet) map[string]string {
	values := make(map[string]string)
	fs.VisitAll(func(f *pflag.Flag) {
		if sensitivePattern.MatchString(f.Name) {
			values[f.Name] = "[REDACTED]"
			return
		}
		values[f.Name] = f.Value.String()
	})
	return values
}

// newPlatformAPI builds the discovery query from the loaded configuration.
func newPlatformAPI() (*discovery.PlatformAPI, error) {
	restConfig, err := cfg.RESTConfig()
	if err != nil {
		return nil, err
	}
	dc, err := newDiscoveryClient(restConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize Discovery client: %w", err)
	}
	return discovery.NewPlatformAPI(dc,
		discovery.WithConcurrency(cfg.Discovery.Concurrency),
		discovery.WithRequestLimit(cfg.Discovery.QPS, cfg.Discovery.Burst),
	), nil
}
