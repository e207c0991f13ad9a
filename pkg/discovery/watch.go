package discovery

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	pkgerrors "github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/exampletech/platformctl/pkg/metrics"
)

// DefaultWatchInterval is the time between two watch polls.
const DefaultWatchInterval = 30 * time.Second

// GVKLister lists the platform kinds installed in a cluster.
// It is implemented by *PlatformAPI.
type GVKLister interface {
	InstalledGVKs(ctx context.Context) ([]schema.GroupVersionKind, error)
}

// Change describes how the installed platform kinds differ from the previous poll.
type Change struct {
	Added   []schema.GroupVersionKind
	Removed []schema.GroupVersionKind
}

// Empty returns true if nothing was added or removed.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// Watcher polls the installed platform kinds and reports changes between polls.
// Only the previous poll is kept, for diffing; it is never handed out.
type Watcher struct {
	lister   GVKLister
	interval time.Duration
}

// NewWatcher creates a Watcher polling lister every interval.
// A non-positive interval selects DefaultWatchInterval.
func NewWatcher(lister GVKLister, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return &Watcher{
		lister:   lister,
		interval: interval,
	}
}

// Run polls until ctx is done. onChange is called after the first successful poll,
// with every kind reported as added, and after every poll that differs from the
// previous successful one. Failed polls are logged and retried with backoff.
// Run returns ctx.Err() when the context ends, or the error of onChange.
func (w *Watcher) Run(ctx context.Context, onChange func(Change) error) error {
	logger := log.FromContext(ctx).WithName("Watcher")
	logger.Info("starting platform kind watch", "interval", w.interval)

	var previous []schema.GroupVersionKind
	first := true
	backoff := NewPollRetryBackoff(w.interval)

	for {
		delay := w.interval

		current, err := w.lister.InstalledGVKs(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			logger.Info("stopping platform kind watch due to context done")
			return ctx.Err()
		case err != nil:
			delay = backoff.Step()
			logger.Error(err, "failed to query installed platform kinds, retrying", "delay", delay)
		default:
			backoff = NewPollRetryBackoff(w.interval)
			var change Change
			if !equalGVKs(previous, current) {
				change = diffGVKs(previous, current)
			}
			if first || !change.Empty() {
				metrics.WatchChanges.WithLabelValues(metrics.ChangeAdded).Add(float64(len(change.Added)))
				metrics.WatchChanges.WithLabelValues(metrics.ChangeRemoved).Add(float64(len(change.Removed)))
				logger.V(1).Info("installed platform kinds changed",
					"added", len(change.Added), "removed", len(change.Removed))

				if err := onChange(change); err != nil {
					return pkgerrors.Wrap(err, "failed to handle platform kind change")
				}
			} else {
				logger.V(2).Info("installed platform kinds unchanged")
			}
			previous = current
			first = false
		}

		if err := sleepWithContext(ctx, delay); err != nil {
			logger.Info("stopping platform kind watch due to context done")
			return err
		}
	}
}

// IsWatchStopped returns true if err only reports that the watch context ended.
func IsWatchStopped(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func compareGVK(a, b schema.GroupVersionKind) int {
	return cmp.Or(
		strings.Compare(a.Group, b.Group),
		strings.Compare(a.Version, b.Version),
		strings.Compare(a.Kind, b.Kind),
	)
}

func equalGVKs(a, b []schema.GroupVersionKind) bool {
	less := func(x, y schema.GroupVersionKind) bool { return compareGVK(x, y) < 0 }
	return gocmp.Equal(a, b, cmpopts.SortSlices(less), cmpopts.EquateEmpty())
}

// diffGVKs returns the kinds in current but not in previous as added and the
// kinds in previous but not in current as removed, both sorted.
func diffGVKs(previous, current []schema.GroupVersionKind) Change {
	before := sets.New(previous...)
	after := sets.New(current...)
	return Change{
		Added:   sortedGVKs(after.Difference(before)),
		Removed: sortedGVKs(before.Difference(after)),
	}
}

func sortedGVKs(s sets.Set[schema.GroupVersionKind]) []schema.GroupVersionKind {
	if s.Len() == 0 {
		return nil
	}
	gvks := s.UnsortedList()
	slices.SortFunc(gvks, compareGVK)
	return gvks
}
