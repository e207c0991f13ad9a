/*
Copyright © 2026 Deutsche Telekom AG
*/
package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/log"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/exampletech/platformctl/internal/config"
	"github.com/exampletech/platformctl/pkg/discovery"
	"github.com/exampletech/platformctl/pkg/printer"
)

var (
	outputFormat string
	waitTimeout  time.Duration
	waitKinds    []string
)

// crdsCmd groups the commands working on the installed platform kinds.
var crdsCmd = &cobra.Command{
	Use:   "crds",
	Short: "Work with the platform kinds installed in the cluster",
}

var crdsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the platform kinds served by the cluster",
	Long: `List every kind served under one of the platform API groups.

Kinds are printed in discovery order: groups and versions as the API server
reports them. A kind served in several versions is listed once per version.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := printer.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		api, err := newPlatformAPI()
		if err != nil {
			return err
		}
		resources, err := api.InstalledResources(cmd.Context())
		if err != nil {
			return err
		}
		return printer.Print(cmd.OutOrStdout(), format, resources)
	},
}

var crdsWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait until the CRDs of the platform kinds are established",
	Long: `Wait until the CustomResourceDefinitions behind the installed platform kinds
report the Established condition. With --kind only the given kinds are waited for;
they need not be served yet.

This only looks at the CRD objects. It does not check that an operator is running.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		gvks, err := parseKinds(waitKinds)
		if err != nil {
			return err
		}

		restConfig, err := cfg.RESTConfig()
		if err != nil {
			return err
		}
		c, err := newClient(restConfig)
		if err != nil {
			return fmt.Errorf("unable to create client: %w", err)
		}
		waiter := discovery.NewCRDWaiter(c, log.FromContext(ctx))

		if len(gvks) > 0 {
			if err := waiter.WaitForCRDs(ctx, gvks, waitTimeout); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d platform kinds established\n", len(gvks))
			return nil
		}

		api, err := newPlatformAPI()
		if err != nil {
			return err
		}
		resources, err := api.InstalledResources(ctx)
		if err != nil {
			return err
		}
		if err := waiter.WaitForResources(ctx, resources, waitTimeout); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d platform kinds established\n", len(resources))
		return nil
	},
}

var crdsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print platform kinds as they are installed or removed",
	Long: `Poll the discovery endpoint and print a line per change:
"+ Kind.version.group" for an added kind and "- Kind.version.group" for a removed one.
The first poll prints every installed kind.

With --metrics-bind-address the Prometheus metrics are served on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newPlatformAPI()
		if err != nil {
			return err
		}
		watcher := discovery.NewWatcher(api, cfg.Watch.Interval)
		out := cmd.OutOrStdout()

		g, ctx := errgroup.WithContext(cmd.Context())
		if addr := cfg.Watch.MetricsBindAddress; addr != "" && addr != "0" {
			srv, err := newMetricsServer(addr)
			if err != nil {
				return err
			}
			g.Go(func() error {
				return srv.Start(ctx)
			})
		}
		g.Go(func() error {
			err := watcher.Run(ctx, func(change discovery.Change) error {
				return printer.PrintChange(out, change)
			})
			if discovery.IsWatchStopped(err) {
				return nil
			}
			return err
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(crdsCmd)
	crdsCmd.AddCommand(crdsListCmd, crdsWaitCmd, crdsWatchCmd)

	flags := crdsCmd.PersistentFlags()
	flags.Int("concurrency", 1, "Number of API group versions queried in parallel")
	flags.Float64("qps", 0, "Maximum discovery requests per second. 0 disables the limit")
	flags.Int("burst", 0, "Burst of discovery requests allowed above --qps")
	bindFlag(config.KeyConcurrency, flags.Lookup("concurrency"))
	bindFlag(config.KeyQPS, flags.Lookup("qps"))
	bindFlag(config.KeyBurst, flags.Lookup("burst"))

	crdsListCmd.Flags().StringVarP(&outputFormat, "output", "o", string(printer.FormatTable), "Output format. One of: table|wide|name|json|yaml")

	crdsWaitCmd.Flags().DurationVar(&waitTimeout, "timeout", 2*time.Minute, "Maximum time to wait for all CRDs")
	crdsWaitCmd.Flags().StringSliceVar(&waitKinds, "kind", nil, "Kind to wait for as Kind.version.group. May be repeated")

	crdsWatchCmd.Flags().Duration("interval", discovery.DefaultWatchInterval, "Time between two discovery polls")
	crdsWatchCmd.Flags().String("metrics-bind-address", "", "The address the metrics endpoint binds to, e.g. :8080. Disabled when empty")
	bindFlag(config.KeyWatchInterval, crdsWatchCmd.Flags().Lookup("interval"))
	bindFlag(config.KeyWatchMetricsBindAddr, crdsWatchCmd.Flags().Lookup("metrics-bind-address"))
}

// parseKinds parses Kind.version.group arguments and rejects kinds outside the platform groups.
func parseKinds(kinds []string) ([]schema.GroupVersionKind, error) {
	gvks := make([]schema.GroupVersionKind, 0, len(kinds))
	for _, k := range kinds {
		gvk, err := discovery.ParseGVK(k)
		if err != nil {
			return nil, err
		}
		if !discovery.IsPlatformGroup(gvk.Group) {
			return nil, fmt.Errorf("kind %q is not in a platform API group", k)
		}
		gvks = append(gvks, gvk)
	}
	return gvks, nil
}

// newMetricsServer serves the controller-runtime metrics registry, which holds
// the platformctl collectors, over plain HTTP.
func newMetricsServer(addr string) (metricsserver.Server, error) {
	return metricsserver.NewServer(metricsserver.Options{BindAddress: addr}, &rest.Config{}, http.DefaultClient)
}
