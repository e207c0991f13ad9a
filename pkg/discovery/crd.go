package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// CRDWaiter waits for the CustomResourceDefinitions behind platform kinds to become established.
// It only reads CRD objects; it says nothing about whether an operator serves them.
type CRDWaiter struct {
	client client.Client
	log    logr.Logger
}

// NewCRDWaiter creates a new CRDWaiter.
func NewCRDWaiter(c client.Client, log logr.Logger) *CRDWaiter {
	return &CRDWaiter{
		client: c,
		log:    log.WithName("crd-waiter"),
	}
}

// WaitForResources waits for the CRDs of the given installed resources to be established.
// The CRD name is built from the discovered plural resource name.
func (w *CRDWaiter) WaitForResources(ctx context.Context, resources []InstalledResource, timeout time.Duration) error {
	names := make([]string, 0, len(resources))
	for _, r := range resources {
		names = append(names, crdNameFromResource(r))
	}
	return w.waitForNames(ctx, names, timeout)
}

// WaitForCRDs waits for all CRDs of the given kinds to be established.
// CRD names are derived from the kinds with a pluralisation heuristic; prefer
// WaitForResources when the resources were discovered.
// It returns an error if the context is cancelled or times out.
func (w *CRDWaiter) WaitForCRDs(ctx context.Context, gvks []schema.GroupVersionKind, timeout time.Duration) error {
	names := make([]string, 0, len(gvks))
	for _, gvk := range gvks {
		names = append(names, crdNameFromGVK(gvk))
	}
	return w.waitForNames(ctx, names, timeout)
}

func (w *CRDWaiter) waitForNames(ctx context.Context, names []string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	seen := make(map[string]struct{}, len(names))
	for _, crdName := range names {
		// the same CRD backs every version of a kind
		if _, ok := seen[crdName]; ok {
			continue
		}
		seen[crdName] = struct{}{}

		w.log.Info("waiting for CRD to be established", "crd", crdName)
		if err := w.waitForCRD(ctx, crdName); err != nil {
			return fmt.Errorf("failed waiting for CRD %s: %w", crdName, err)
		}
		w.log.Info("CRD is established", "crd", crdName)
	}

	return nil
}

// waitForCRD waits for a single CRD to be established.
func (w *CRDWaiter) waitForCRD(ctx context.Context, crdName string) error {
	backoff := wait.Backoff{
		Duration: 500 * time.Millisecond,
		Factor:   1.5,
		Jitter:   0.1,
		Steps:    30, // ~2.5 minutes with this backoff
		Cap:      10 * time.Second,
	}

	return wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		crd := &apiextensionsv1.CustomResourceDefinition{}
		err := w.client.Get(ctx, types.NamespacedName{Name: crdName}, crd)
		if err != nil {
			if apierrors.IsNotFound(err) {
				w.log.V(1).Info("CRD not found, retrying...", "crd", crdName)
				return false, nil
			}
			w.log.V(1).Info("error fetching CRD, retrying...", "crd", crdName, "error", err.Error())
			return false, nil
		}

		if isEstablished(crd) {
			return true, nil
		}
		w.log.V(1).Info("CRD not yet established, retrying...", "crd", crdName)
		return false, nil
	})
}

func isEstablished(crd *apiextensionsv1.CustomResourceDefinition) bool {
	for _, condition := range crd.Status.Conditions {
		if condition.Type == apiextensionsv1.Established {
			return condition.Status == apiextensionsv1.ConditionTrue
		}
	}
	return false
}

// crdNameFromResource returns the CRD name of a discovered resource: <plural>.<group>.
func crdNameFromResource(r InstalledResource) string {
	if r.Resource == "" {
		return crdNameFromGVK(r.GroupVersionKind())
	}
	return fmt.Sprintf("%s.%s", r.Resource, r.Group)
}

// crdNameFromGVK constructs the CRD name from a GroupVersionKind
// CRD names follow the pattern: <plural>.<group>
// For example: kafkaclusters.kafka.example.tech.
func crdNameFromGVK(gvk schema.GroupVersionKind) string {
	return fmt.Sprintf("%s.%s", pluralize(gvk.Kind), gvk.Group)
}

// pluralize converts a Kind to its lowercase plural form
// This is a simple heuristic that works for most Kubernetes resource kinds.
func pluralize(kind string) string {
	lower := strings.ToLower(kind)
	switch {
	case strings.HasSuffix(lower, "s"):
		return lower + "es"
	case strings.HasSuffix(lower, "y"):
		// Vowel + y: just add 's' (e.g., gateway -> gateways, key -> keys)
		// Consonant + y: replace with 'ies' (e.g., policy -> policies)
		if len(lower) >= 2 && isVowel(lower[len(lower)-2]) {
			return lower + "s"
		}
		return lower[:len(lower)-1] + "ies"
	default:
		return lower + "s"
	}
}

func isVowel(c byte) bool {
	return c == 'a' || c == 'e' || c == 'i' || c == 'o' || c == 'u'
}

// ParseGVK parses a kind in the Kind.version.group form used on the command line,
// e.g. KafkaCluster.v1alpha1.kafka.example.tech.
func ParseGVK(s string) (schema.GroupVersionKind, error) {
	gvk, _ := schema.ParseKindArg(s)
	if gvk == nil || gvk.Kind == "" || gvk.Version == "" || gvk.Group == "" {
		return schema.GroupVersionKind{}, fmt.Errorf("invalid kind %q: expected Kind.version.group", s)
	}
	return *gvk, nil
}
