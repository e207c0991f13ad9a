// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/exampletech/platformctl/pkg/metrics"
	"github.com/exampletech/platformctl/pkg/tracing"
)

const (
	opListGroups    = "list API groups"
	opListResources = "list API resources"
)

// InstalledResource is a platform kind served by the API server, together with the
// resource name and scope discovery reports for it.
type InstalledResource struct {
	Group      string `json:"group"`
	Version    string `json:"version"`
	Kind       string `json:"kind"`
	Resource   string `json:"resource"`
	Namespaced bool   `json:"namespaced"`
}

// GroupVersionKind returns the GroupVersionKind of the resource.
func (r InstalledResource) GroupVersionKind() schema.GroupVersionKind {
	return schema.GroupVersionKind{Group: r.Group, Version: r.Version, Kind: r.Kind}
}

// GroupVersionResource returns the GroupVersionResource of the resource.
func (r InstalledResource) GroupVersionResource() schema.GroupVersionResource {
	return schema.GroupVersionResource{Group: r.Group, Version: r.Version, Resource: r.Resource}
}

// Option configures a PlatformAPI.
type Option func(*PlatformAPI)

// WithConcurrency sets how many group versions are queried in parallel.
// Values below 1 are treated as 1. The result order does not depend on it.
func WithConcurrency(n int) Option {
	return func(a *PlatformAPI) {
		if n < 1 {
			n = 1
		}
		a.concurrency = n
	}
}

// WithRequestLimit throttles per group version requests to qps with the given burst.
// A non-positive qps disables throttling.
func WithRequestLimit(qps float64, burst int) Option {
	return func(a *PlatformAPI) {
		if qps <= 0 {
			a.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(qps), burst)
	}
}

// PlatformAPI queries which platform API groups, versions and kinds the cluster serves.
// Results are not cached: every call goes to the API server.
type PlatformAPI struct {
	client      discovery.DiscoveryInterface
	concurrency int
	limiter     *rate.Limiter
}

// NewPlatformAPI creates a PlatformAPI on top of the given discovery client.
// The client is owned by the caller and may be shared; it is only used on query.
func NewPlatformAPI(client discovery.DiscoveryInterface, opts ...Option) *PlatformAPI {
	a := &PlatformAPI{
		client:      client,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// InstalledGVKs returns every platform GroupVersionKind installed in the cluster.
// This does not mean that an operator is running for any of them.
//
// Kinds are ordered as discovery reports them: by group, then version, then
// resource. A kind served under several versions appears once per version.
// Any failed request fails the whole query with a *ClusterCommunicationError.
func (a *PlatformAPI) InstalledGVKs(ctx context.Context) ([]schema.GroupVersionKind, error) {
	resources, err := a.InstalledResources(ctx)
	if err != nil {
		return nil, err
	}
	gvks := make([]schema.GroupVersionKind, 0, len(resources))
	for _, r := range resources {
		gvks = append(gvks, r.GroupVersionKind())
	}
	return gvks, nil
}

// InstalledResources is like InstalledGVKs but also reports the plural resource
// name and scope of every kind.
func (a *PlatformAPI) InstalledResources(ctx context.Context) (_ []InstalledResource, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "PlatformAPI.InstalledResources")
	defer span.End()

	logger := log.FromContext(ctx).WithName("PlatformAPI")
	startTime := time.Now()
	defer func() {
		metrics.DiscoveryDuration.Observe(time.Since(startTime).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := ctx.Err(); err != nil {
		recordError(metrics.OperationListGroups, err)
		return nil, clusterError(opListGroups, err)
	}

	groupList, err := a.client.ServerGroups()
	if err != nil {
		logger.Error(err, "failed to discover API groups")
		recordError(metrics.OperationListGroups, err)
		return nil, clusterError(opListGroups, err)
	}

	groupVersions := platformGroupVersions(groupList)
	logger.V(1).Info("discovered platform API groups",
		"serverGroupCount", len(groupList.Groups), "groupVersionCount", len(groupVersions))
	span.SetAttributes(
		tracing.AttrServerGroups.Int(len(groupList.Groups)),
		tracing.AttrPlatformGroups.Int(countGroups(groupVersions)),
		tracing.AttrConcurrency.Int(a.concurrency),
	)

	// One slot per group version keeps the output in discovery order
	// regardless of which request finishes first.
	slots := make([][]InstalledResource, len(groupVersions))
	errorGroup, groupCtx := errgroup.WithContext(ctx)
	errorGroup.SetLimit(a.concurrency)
	for i, gv := range groupVersions {
		errorGroup.Go(func() error {
			_, gvSpan := tracing.Tracer().Start(groupCtx, "PlatformAPI.ServerResourcesForGroupVersion",
				trace.WithAttributes(
					tracing.AttrAPIGroup.String(gv.Group),
					tracing.AttrGroupVersion.String(gv.String()),
				))
			defer gvSpan.End()

			if err := a.wait(groupCtx); err != nil {
				gvSpan.SetStatus(codes.Error, err.Error())
				return clusterError(opListResources+" for "+gv.String(), err)
			}
			list, err := a.client.ServerResourcesForGroupVersion(gv.String())
			if err != nil {
				logger.Error(err, "failed to discover API resources for group version",
					"group", gv.Group, "version", gv.Version)
				gvSpan.RecordError(err)
				gvSpan.SetStatus(codes.Error, err.Error())
				return clusterError(opListResources+" for "+gv.String(), err)
			}
			slots[i] = flattenResources(gv, list)
			gvSpan.SetAttributes(tracing.AttrKindCount.Int(len(slots[i])))
			return nil
		})
	}
	if err := errorGroup.Wait(); err != nil {
		recordError(metrics.OperationListResources, err)
		return nil, err
	}

	resources := make([]InstalledResource, 0, len(groupVersions))
	counts := make(map[string]int)
	for _, slot := range slots {
		resources = append(resources, slot...)
		for _, r := range slot {
			counts[r.Group]++
		}
	}
	metrics.SetInstalledKinds(groupFilter, counts)
	span.SetAttributes(tracing.AttrKindCount.Int(len(resources)))

	logger.V(2).Info("discovered platform kinds", "kindCount", len(resources))
	return resources, nil
}

func (a *PlatformAPI) wait(ctx context.Context) error {
	if a.limiter != nil {
		return a.limiter.Wait(ctx)
	}
	return ctx.Err()
}

// platformGroupVersions returns the group versions of all platform groups in
// groupList, keeping the server's group and version order.
func platformGroupVersions(groupList *metav1.APIGroupList) []schema.GroupVersion {
	var groupVersions []schema.GroupVersion
	if groupList == nil {
		return groupVersions
	}
	for _, group := range groupList.Groups {
		if !IsPlatformGroup(group.Name) {
			continue
		}
		for _, version := range group.Versions {
			groupVersions = append(groupVersions, schema.GroupVersion{Group: group.Name, Version: version.Version})
		}
	}
	return groupVersions
}

// flattenResources converts a resource list into installed resources.
// Subresources such as kafkaclusters/status belong to their parent and are skipped.
func flattenResources(gv schema.GroupVersion, list *metav1.APIResourceList) []InstalledResource {
	if list == nil {
		return nil
	}
	resources := make([]InstalledResource, 0, len(list.APIResources))
	for _, resource := range list.APIResources {
		if strings.Contains(resource.Name, "/") {
			continue
		}
		resources = append(resources, InstalledResource{
			Group:      gv.Group,
			Version:    gv.Version,
			Kind:       resource.Kind,
			Resource:   resource.Name,
			Namespaced: resource.Namespaced,
		})
	}
	return resources
}

func countGroups(groupVersions []schema.GroupVersion) int {
	groups := make(map[string]struct{})
	for _, gv := range groupVersions {
		groups[gv.Group] = struct{}{}
	}
	return len(groups)
}

func recordError(operation string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		operation = metrics.OperationCanceled
	}
	metrics.DiscoveryErrors.WithLabelValues(operation).Inc()
}
